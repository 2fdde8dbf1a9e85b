package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/service"
)

// TokenRefresher is implemented by every platform service that can renew its
// own credentials.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type TokenRefreshJob struct {
	sr         repository.SocialAccountRepository
	refreshers map[string]TokenRefresher
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	yt service.YoutubeService,
	tt service.TiktokService,
	fb service.FacebookService,
	ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		refreshers: map[string]TokenRefresher{
			models.PlatformYoutube:   yt,
			models.PlatformTiktok:    tt,
			models.PlatformFacebook:  fb,
			models.PlatformInstagram: ig,
		},
	}
}

// RefreshTokens renews credentials for every account expiring within the next
// 30 minutes. A failed refresh leaves the stored tokens alone and is retried
// on the next run.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		refresher, ok := c.refreshers[acc.Platform]
		if !ok {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount, refresher TokenRefresher) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := refresher.RefreshToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh tokens", "platform", acc.Platform, "account_id", acc.ID)
			}
		}(acc, refresher)
	}

	wg.Wait()
}
