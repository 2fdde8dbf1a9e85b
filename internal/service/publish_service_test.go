package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/transfer"
)

func connectedAccount(userID int64, platform string) *models.SocialAccount {
	return &models.SocialAccount{
		UserID:          userID,
		Platform:        platform,
		AccountUsername: "tester",
		AccessToken:     "enc",
	}
}

func TestPublishValidation(t *testing.T) {
	svc := NewPublishService(nil, &fakeAccountRepo{}, &fakePostRepo{}, nil)

	_, err := svc.Publish(context.Background(), 1, &transfer.PublishRequest{
		Platforms: []string{models.PlatformTiktok},
	})
	assert.ErrorIs(t, err, transfer.ErrInvalidPost)

	_, err = svc.Publish(context.Background(), 1, &transfer.PublishRequest{
		Content: "hello",
	})
	assert.ErrorIs(t, err, transfer.ErrNoPlatformsSelected)

	_, err = svc.Publish(context.Background(), 1, &transfer.PublishRequest{
		Content:   "hello",
		Platforms: []string{"myspace"},
	})
	assert.ErrorIs(t, err, transfer.ErrUnsupportedPlatform)
}

func TestPublishFanOutMixedResults(t *testing.T) {
	accounts := &fakeAccountRepo{}
	accounts.Upsert(context.Background(), connectedAccount(1, models.PlatformYoutube))
	accounts.Upsert(context.Background(), connectedAccount(1, models.PlatformFacebook))

	posts := &fakePostRepo{}

	svc := NewPublishService(map[string]Publisher{
		models.PlatformYoutube:  &fakePublisher{result: &PublishResult{PostID: "yt1", PostURL: "https://youtu.be/yt1"}},
		models.PlatformFacebook: &fakePublisher{err: errors.New("graph api down")},
	}, accounts, posts, nil)

	resp, err := svc.Publish(context.Background(), 1, &transfer.PublishRequest{
		Content:   "cross post",
		Platforms: []string{models.PlatformYoutube, models.PlatformFacebook},
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.Results, 2)

	byPlatform := map[string]*transfer.PlatformResult{}
	for _, res := range resp.Results {
		byPlatform[res.Platform] = res
	}

	assert.True(t, byPlatform[models.PlatformYoutube].Success)
	assert.Equal(t, "yt1", byPlatform[models.PlatformYoutube].PostID)
	assert.Equal(t, "https://youtu.be/yt1", byPlatform[models.PlatformYoutube].PostURL)

	assert.False(t, byPlatform[models.PlatformFacebook].Success)
	assert.Contains(t, byPlatform[models.PlatformFacebook].Error, "graph api down")

	// Exactly one post row regardless of outcome.
	require.Len(t, posts.posts, 1)
	assert.Len(t, posts.posts[0].Results, 2)
}

func TestPublishNotConnected(t *testing.T) {
	svc := NewPublishService(map[string]Publisher{
		models.PlatformTiktok: &fakePublisher{},
	}, &fakeAccountRepo{}, &fakePostRepo{}, nil)

	resp, err := svc.Publish(context.Background(), 1, &transfer.PublishRequest{
		Content:   "hello",
		Platforms: []string{models.PlatformTiktok},
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Not connected to tiktok", resp.Results[0].Error)
}

func TestPublishAllSucceed(t *testing.T) {
	accounts := &fakeAccountRepo{}
	accounts.Upsert(context.Background(), connectedAccount(1, models.PlatformYoutube))

	svc := NewPublishService(map[string]Publisher{
		models.PlatformYoutube: &fakePublisher{result: &PublishResult{PostID: "ok", PostURL: "u"}},
	}, accounts, &fakePostRepo{}, nil)

	resp, err := svc.Publish(context.Background(), 1, &transfer.PublishRequest{
		Content:   "hello",
		Platforms: []string{models.PlatformYoutube},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.PostID)
}

func TestPublishPendingTiktokEnqueuesBackfill(t *testing.T) {
	accounts := &fakeAccountRepo{}
	accounts.Upsert(context.Background(), connectedAccount(1, models.PlatformTiktok))

	enqueuer := &fakeEnqueuer{}
	svc := NewPublishService(map[string]Publisher{
		models.PlatformTiktok: &fakePublisher{err: &PublishPendingError{PublishID: "pub123"}},
	}, accounts, &fakePostRepo{}, enqueuer)

	resp, err := svc.Publish(context.Background(), 1, &transfer.PublishRequest{
		Content:   "hello",
		MediaURL:  "https://cdn.example.com/v.mp4",
		Platforms: []string{models.PlatformTiktok},
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "pub123", resp.Results[0].PostID)

	require.Len(t, enqueuer.enqueued, 1)
	assert.Equal(t, "pub123", enqueuer.enqueued[0])
}

func TestHistoryDefaultsLimit(t *testing.T) {
	posts := &fakePostRepo{}
	for i := 0; i < 25; i++ {
		posts.Create(context.Background(), &models.Post{UserID: 1, Content: "p"})
	}

	svc := NewPublishService(nil, &fakeAccountRepo{}, posts, nil)

	out, err := svc.History(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, out, 20)
}
