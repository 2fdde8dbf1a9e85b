package service

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/transfer"
	"github.com/hashipost/hashipost/pkg/utils"
)

const (
	TIKTOK_AUTH_URL    = "https://www.tiktok.com/v2/auth/authorize/"
	GOOGLE_AUTH_URL    = "https://accounts.google.com/o/oauth2/v2/auth"
	FACEBOOK_AUTH_URL  = "https://www.facebook.com/v19.0/dialog/oauth"
	INSTAGRAM_AUTH_URL = "https://www.instagram.com/oauth/authorize"
)

// A pending link flow older than this is treated as abandoned and its state
// is rejected on callback.
const authStateMaxAge = 10 * time.Minute

// TokenRevoker is the per-platform best-effort revocation capability used by
// the disconnect flow.
type TokenRevoker interface {
	Revoke(ctx context.Context, acc *models.SocialAccount) error
}

type PlatformService interface {
	GetAuthURL(ctx context.Context, userID int64, platform string) (string, error)
	ConsumeAuthState(ctx context.Context, platform, state string) (*models.OAuthState, error)
	Status(ctx context.Context, userID int64) (map[string]bool, error)
	Profiles(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID int64, platform, username string) error
}

type platformService struct {
	cfg      config.Config
	sa       repository.SocialAccountRepository
	st       repository.OAuthStateRepository
	revokers map[string]TokenRevoker
}

func NewPlatformService(
	cfg config.Config,
	sa repository.SocialAccountRepository,
	st repository.OAuthStateRepository,
	revokers map[string]TokenRevoker) PlatformService {
	return &platformService{
		cfg:      cfg,
		sa:       sa,
		st:       st,
		revokers: revokers,
	}
}

// GetAuthURL starts a link flow: it generates the CSRF state and the PKCE
// verifier/challenge pair, persists them as a pending state row, and returns
// the platform authorization URL embedding state and challenge.
func (s *platformService) GetAuthURL(ctx context.Context, userID int64, platform string) (string, error) {
	if !models.IsSupportedPlatform(platform) {
		return "", transfer.ErrUnsupportedPlatform
	}

	state, err := gonanoid.New(21)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	verifier, err := utils.GenerateCodeVerifier(64)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	challenge := utils.CodeChallenge(verifier)

	err = s.st.Create(ctx, &models.OAuthState{
		State:         state,
		UserID:        userID,
		Platform:      platform,
		CodeVerifier:  verifier,
		CodeChallenge: challenge,
	})
	if err != nil {
		return "", err
	}

	switch platform {
	case models.PlatformTiktok:
		params := url.Values{}
		params.Add("client_key", s.cfg.TiktokClientKey)
		params.Add("scope", "user.info.basic,user.info.profile,video.publish,video.upload")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.TiktokRedirectURI)
		params.Add("state", state)
		params.Add("code_challenge", challenge)
		params.Add("code_challenge_method", "S256")
		return fmt.Sprintf("%s?%s", TIKTOK_AUTH_URL, params.Encode()), nil

	case models.PlatformYoutube:
		params := url.Values{}
		params.Add("client_id", s.cfg.GoogleClientID)
		params.Add("redirect_uri", s.cfg.GoogleRedirectURI)
		params.Add("response_type", "code")
		params.Add("scope", "https://www.googleapis.com/auth/userinfo.profile https://www.googleapis.com/auth/userinfo.email https://www.googleapis.com/auth/youtube.upload")
		params.Add("state", state)
		params.Add("access_type", "offline")
		params.Add("prompt", "consent")
		return fmt.Sprintf("%s?%s", GOOGLE_AUTH_URL, params.Encode()), nil

	case models.PlatformFacebook:
		params := url.Values{}
		params.Add("client_id", s.cfg.FacebookClientID)
		params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
		params.Add("response_type", "code")
		params.Add("scope", "public_profile,pages_manage_posts,publish_video")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", FACEBOOK_AUTH_URL, params.Encode()), nil

	case models.PlatformInstagram:
		params := url.Values{}
		params.Add("client_id", s.cfg.InstagramClientID)
		params.Add("scope", "instagram_business_basic,instagram_business_content_publish")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.InstagramRedirectURI)
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", INSTAGRAM_AUTH_URL, params.Encode()), nil

	default:
		return "", transfer.ErrUnsupportedPlatform
	}
}

// ConsumeAuthState validates and consumes the pending state for a callback.
// A state that was never issued, already consumed, issued for another
// platform, or expired all fail the same way, so a callback cannot be
// replayed or pointed at someone else's flow.
func (s *platformService) ConsumeAuthState(ctx context.Context, platform, state string) (*models.OAuthState, error) {
	if state == "" {
		return nil, transfer.ErrAuthStateMismatch
	}

	pending, err := s.st.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.Platform != platform {
		return nil, transfer.ErrAuthStateMismatch
	}
	if time.Since(pending.CreatedAt) > authStateMaxAge {
		slog.Info("oauth state expired", "platform", platform)
		return nil, transfer.ErrAuthStateMismatch
	}

	return pending, nil
}

func (s *platformService) Status(ctx context.Context, userID int64) (map[string]bool, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}

	status := make(map[string]bool, len(models.SupportedPlatforms))
	for _, platform := range models.SupportedPlatforms {
		status[platform] = false
	}
	for _, acc := range accounts {
		status[acc.Platform] = true
	}

	return status, nil
}

func (s *platformService) Profiles(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error) {
	if !models.IsSupportedPlatform(platform) {
		return nil, transfer.ErrUnsupportedPlatform
	}

	accounts, err := s.sa.ListByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, transfer.ErrProfileNotFound
	}

	return accounts, nil
}

// Disconnect revokes the platform token (best effort) and removes the linked
// account. Local removal is the source of truth for "connected", so a failed
// revocation is logged and otherwise ignored.
func (s *platformService) Disconnect(ctx context.Context, userID int64, platform, username string) error {
	if !models.IsSupportedPlatform(platform) {
		return transfer.ErrUnsupportedPlatform
	}

	var acc *models.SocialAccount
	var err error

	if username != "" {
		acc, err = s.sa.GetByUsername(ctx, userID, platform, username)
	} else {
		// Single-account callers may omit the username.
		accounts, listErr := s.sa.ListByUserAndPlatform(ctx, userID, platform)
		if listErr != nil {
			return listErr
		}
		if len(accounts) == 1 {
			acc = accounts[0]
		}
	}
	if err != nil {
		return err
	}
	if acc == nil {
		return transfer.ErrAccountNotFound
	}

	if revoker, ok := s.revokers[platform]; ok {
		if err := revoker.Revoke(ctx, acc); err != nil {
			log.Printf("Token revocation failed for %s account %s: %v", platform, acc.AccountUsername, err)
		}
	}

	if err := s.sa.Remove(ctx, acc.ID); err != nil {
		return fmt.Errorf("error removing account info: %w", err)
	}

	return nil
}
