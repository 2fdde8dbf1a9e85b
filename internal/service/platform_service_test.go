package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/transfer"
	"github.com/hashipost/hashipost/pkg/utils"
)

func testConfig() config.Config {
	return config.Config{
		TiktokClientKey:      "tt-key",
		TiktokRedirectURI:    "https://app.example.com/social/connect/tiktok",
		GoogleClientID:       "g-id",
		GoogleRedirectURI:    "https://app.example.com/social/connect/youtube",
		FacebookClientID:     "fb-id",
		FacebookRedirectURI:  "https://app.example.com/social/connect/facebook",
		InstagramClientID:    "ig-id",
		InstagramRedirectURI: "https://app.example.com/social/connect/instagram",
		SecretKey:            "0123456789abcdef0123456789abcdef",
	}
}

func TestGetAuthURLTiktok(t *testing.T) {
	states := newFakeStateRepo()
	svc := NewPlatformService(testConfig(), &fakeAccountRepo{}, states, nil)

	authURL, err := svc.GetAuthURL(context.Background(), 7, models.PlatformTiktok)
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authURL, TIKTOK_AUTH_URL))

	q := parsed.Query()
	assert.Equal(t, "tt-key", q.Get("client_key"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("state"))
	assert.NotEmpty(t, q.Get("code_challenge"))

	// The persisted state must match what went into the URL.
	pending, err := states.Consume(context.Background(), q.Get("state"))
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, int64(7), pending.UserID)
	assert.Equal(t, models.PlatformTiktok, pending.Platform)
	assert.Equal(t, utils.CodeChallenge(pending.CodeVerifier), q.Get("code_challenge"))
	assert.GreaterOrEqual(t, len(pending.CodeVerifier), utils.MinVerifierLength)
}

func TestGetAuthURLUnsupportedPlatform(t *testing.T) {
	svc := NewPlatformService(testConfig(), &fakeAccountRepo{}, newFakeStateRepo(), nil)

	_, err := svc.GetAuthURL(context.Background(), 7, "myspace")
	assert.ErrorIs(t, err, transfer.ErrUnsupportedPlatform)
}

func TestConsumeAuthState(t *testing.T) {
	states := newFakeStateRepo()
	svc := NewPlatformService(testConfig(), &fakeAccountRepo{}, states, nil)

	authURL, err := svc.GetAuthURL(context.Background(), 7, models.PlatformTiktok)
	require.NoError(t, err)
	parsed, _ := url.Parse(authURL)
	state := parsed.Query().Get("state")

	pending, err := svc.ConsumeAuthState(context.Background(), models.PlatformTiktok, state)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pending.UserID)

	// Single use.
	_, err = svc.ConsumeAuthState(context.Background(), models.PlatformTiktok, state)
	assert.ErrorIs(t, err, transfer.ErrAuthStateMismatch)
}

func TestConsumeAuthStateRejections(t *testing.T) {
	states := newFakeStateRepo()
	svc := NewPlatformService(testConfig(), &fakeAccountRepo{}, states, nil)

	_, err := svc.ConsumeAuthState(context.Background(), models.PlatformTiktok, "")
	assert.ErrorIs(t, err, transfer.ErrAuthStateMismatch)

	_, err = svc.ConsumeAuthState(context.Background(), models.PlatformTiktok, "never-issued")
	assert.ErrorIs(t, err, transfer.ErrAuthStateMismatch)

	// Issued for another platform.
	require.NoError(t, states.Create(context.Background(), &models.OAuthState{
		State:    "yt-state",
		UserID:   7,
		Platform: models.PlatformYoutube,
	}))
	_, err = svc.ConsumeAuthState(context.Background(), models.PlatformTiktok, "yt-state")
	assert.ErrorIs(t, err, transfer.ErrAuthStateMismatch)

	// Expired.
	require.NoError(t, states.Create(context.Background(), &models.OAuthState{
		State:     "old-state",
		UserID:    7,
		Platform:  models.PlatformTiktok,
		CreatedAt: time.Now().Add(-11 * time.Minute),
	}))
	_, err = svc.ConsumeAuthState(context.Background(), models.PlatformTiktok, "old-state")
	assert.ErrorIs(t, err, transfer.ErrAuthStateMismatch)
}

func TestStatusCoversAllPlatforms(t *testing.T) {
	accounts := &fakeAccountRepo{}
	accounts.Upsert(context.Background(), connectedAccount(7, models.PlatformTiktok))

	svc := NewPlatformService(testConfig(), accounts, newFakeStateRepo(), nil)

	status, err := svc.Status(context.Background(), 7)
	require.NoError(t, err)

	assert.Len(t, status, len(models.SupportedPlatforms))
	assert.True(t, status[models.PlatformTiktok])
	assert.False(t, status[models.PlatformYoutube])
	assert.False(t, status[models.PlatformFacebook])
	assert.False(t, status[models.PlatformInstagram])
}

func TestProfilesNotFound(t *testing.T) {
	svc := NewPlatformService(testConfig(), &fakeAccountRepo{}, newFakeStateRepo(), nil)

	_, err := svc.Profiles(context.Background(), 7, models.PlatformTiktok)
	assert.ErrorIs(t, err, transfer.ErrProfileNotFound)
}

func TestDisconnectRemovesDespiteRevokeFailure(t *testing.T) {
	accounts := &fakeAccountRepo{}
	acc := connectedAccount(7, models.PlatformTiktok)
	accounts.Upsert(context.Background(), acc)

	revoker := &fakeRevoker{err: assert.AnError}
	svc := NewPlatformService(testConfig(), accounts, newFakeStateRepo(), map[string]TokenRevoker{
		models.PlatformTiktok: revoker,
	})

	err := svc.Disconnect(context.Background(), 7, models.PlatformTiktok, "tester")
	require.NoError(t, err)

	assert.Len(t, revoker.revoked, 1)
	assert.Contains(t, accounts.removed, acc.ID)
}

func TestDisconnectSingleAccountFallback(t *testing.T) {
	accounts := &fakeAccountRepo{}
	acc := connectedAccount(7, models.PlatformYoutube)
	accounts.Upsert(context.Background(), acc)

	svc := NewPlatformService(testConfig(), accounts, newFakeStateRepo(), nil)

	// No username given; the lone account is the obvious target.
	require.NoError(t, svc.Disconnect(context.Background(), 7, models.PlatformYoutube, ""))
	assert.Contains(t, accounts.removed, acc.ID)
}

func TestRelinkReplacesAccount(t *testing.T) {
	accounts := &fakeAccountRepo{}

	first := connectedAccount(7, models.PlatformTiktok)
	firstID, err := accounts.Upsert(context.Background(), first)
	require.NoError(t, err)

	// Linking the same handle again rotates tokens on the existing row.
	relinked := connectedAccount(7, models.PlatformTiktok)
	relinked.AccessToken = "enc-rotated"
	relinkedID, err := accounts.Upsert(context.Background(), relinked)
	require.NoError(t, err)
	assert.Equal(t, firstID, relinkedID)

	list, err := accounts.ListByUserID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "enc-rotated", list[0].AccessToken)

	// A different handle on the same platform is a second account.
	other := connectedAccount(7, models.PlatformTiktok)
	other.AccountUsername = "tester-two"
	otherID, err := accounts.Upsert(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, otherID)

	list, err = accounts.ListByUserID(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDisconnectUnknownAccount(t *testing.T) {
	svc := NewPlatformService(testConfig(), &fakeAccountRepo{}, newFakeStateRepo(), nil)

	err := svc.Disconnect(context.Background(), 7, models.PlatformTiktok, "ghost")
	assert.ErrorIs(t, err, transfer.ErrAccountNotFound)
}
