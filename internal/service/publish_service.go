package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync"

	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/transfer"
)

const maxConcurrentPublishes = 10

// BackfillEnqueuer schedules a later status re-check for publishes that were
// accepted upstream but still processing when the request finished.
type BackfillEnqueuer interface {
	EnqueueBackfill(ctx context.Context, resultID, accountID int64, publishID string) error
}

type PublishService interface {
	Publish(ctx context.Context, userID int64, req *transfer.PublishRequest) (*transfer.PublishResponse, error)
	History(ctx context.Context, userID int64, limit int) ([]*models.Post, error)
}

type publishService struct {
	publishers map[string]Publisher
	sa         repository.SocialAccountRepository
	posts      repository.PostRepository
	backfill   BackfillEnqueuer
}

func NewPublishService(
	publishers map[string]Publisher,
	sa repository.SocialAccountRepository,
	posts repository.PostRepository,
	backfill BackfillEnqueuer,
) PublishService {
	return &publishService{
		publishers: publishers,
		sa:         sa,
		posts:      posts,
		backfill:   backfill,
	}
}

// Publish fans the post out to every selected platform concurrently, then
// records one post row with a per-platform result each. A platform failing
// never blocks the others; Success in the response is the AND of all results.
func (s *publishService) Publish(ctx context.Context, userID int64, req *transfer.PublishRequest) (*transfer.PublishResponse, error) {
	if strings.TrimSpace(req.Content) == "" && req.MediaURL == "" {
		return nil, transfer.ErrInvalidPost
	}
	if len(req.Platforms) == 0 {
		return nil, transfer.ErrNoPlatformsSelected
	}
	for _, platform := range req.Platforms {
		if !models.IsSupportedPlatform(platform) {
			return nil, fmt.Errorf("%w: %s", transfer.ErrUnsupportedPlatform, platform)
		}
	}

	results := make([]*models.PostResult, len(req.Platforms))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentPublishes)

	for i, platform := range req.Platforms {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, platform string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.publishToPlatform(ctx, userID, platform, req.Content, req.MediaURL)
		}(i, platform)
	}

	wg.Wait()

	post := &models.Post{
		UserID:   userID,
		Content:  req.Content,
		MediaURL: req.MediaURL,
		Results:  results,
	}

	postID, err := s.posts.Create(ctx, post)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	success := true
	platformResults := make([]*transfer.PlatformResult, 0, len(results))
	for _, res := range results {
		if !res.Posted {
			success = false
		}
		platformResults = append(platformResults, &transfer.PlatformResult{
			Platform: res.Platform,
			Success:  res.Posted,
			PostID:   res.ExternalPostID,
			PostURL:  res.PostURL,
			Error:    res.ErrorMessage,
		})
	}

	s.enqueuePending(ctx, userID, results)

	return &transfer.PublishResponse{
		Success: success,
		Results: platformResults,
		PostID:  postID,
	}, nil
}

func (s *publishService) publishToPlatform(ctx context.Context, userID int64, platform, content, mediaURL string) *models.PostResult {
	result := &models.PostResult{Platform: platform}

	accounts, err := s.sa.ListByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		slog.Info(err.Error())
		result.ErrorMessage = "internal error"
		return result
	}
	if len(accounts) == 0 {
		result.ErrorMessage = fmt.Sprintf("Not connected to %s", platform)
		return result
	}

	publisher, ok := s.publishers[platform]
	if !ok {
		result.ErrorMessage = fmt.Sprintf("publishing to %s is not supported", platform)
		return result
	}

	acc := accounts[0]
	published, err := publisher.Publish(ctx, acc, content, mediaURL)
	if err != nil {
		var pending *PublishPendingError
		if errors.As(err, &pending) {
			// The row stays unposted with the publish id recorded so the
			// backfill worker can flip it once processing completes.
			result.ExternalPostID = pending.PublishID
			result.ErrorMessage = "still processing"
			return result
		}

		log.Printf("Error publishing to %s: %v", platform, err)
		result.ErrorMessage = err.Error()
		return result
	}

	result.Posted = true
	result.ExternalPostID = published.PostID
	result.PostURL = published.PostURL
	return result
}

// enqueuePending hands pending TikTok publishes to the task queue. The post
// row is already written; failing to enqueue only means the URL never gets
// backfilled, so it is logged and swallowed.
func (s *publishService) enqueuePending(ctx context.Context, userID int64, results []*models.PostResult) {
	if s.backfill == nil {
		return
	}

	for _, res := range results {
		if res.Posted || res.Platform != models.PlatformTiktok || res.ExternalPostID == "" {
			continue
		}

		accounts, err := s.sa.ListByUserAndPlatform(ctx, userID, res.Platform)
		if err != nil || len(accounts) == 0 {
			continue
		}

		if err := s.backfill.EnqueueBackfill(ctx, res.ID, accounts[0].ID, res.ExternalPostID); err != nil {
			log.Printf("Error enqueueing backfill for result %d: %v", res.ID, err)
		}
	}
}

func (s *publishService) History(ctx context.Context, userID int64, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.posts.ListRecentByUserID(ctx, userID, limit)
}
