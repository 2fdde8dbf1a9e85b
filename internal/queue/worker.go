package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/hashipost/hashipost/internal/service"
)

// HandleBackfillURLTask re-checks a TikTok publish that was still processing
// when the original request returned, and fills in the final post URL once
// TikTok reports completion. Returning an error makes asynq retry with
// backoff; SkipRetry marks terminal outcomes.
func (j *Queue) HandleBackfillURLTask(ctx context.Context, task *asynq.Task) error {
	var payload BackfillURLPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	acc, err := j.ac.GetByID(ctx, payload.AccountID)
	if err != nil {
		return err
	}
	if acc == nil {
		// Account disconnected since the publish; nothing left to backfill.
		log.Printf("Account %d gone, dropping backfill for publish %s", payload.AccountID, payload.PublishID)
		return nil
	}

	data, err := j.tt.CheckPublishStatus(ctx, acc, payload.PublishID)
	if err != nil {
		return err
	}

	switch data.Status {
	case service.PostStatusComplete:
		postID, postURL := j.tt.PostURL(acc.AccountUsername, data, payload.PublishID)
		if err := j.pr.SetResultPosted(ctx, payload.ResultID, postID, postURL); err != nil {
			return err
		}
		log.Printf("Backfilled URL for publish %s: %s", payload.PublishID, postURL)
		return nil
	case service.PostStatusFailed:
		log.Printf("Publish %s failed upstream: %s", payload.PublishID, data.FailReason)
		return fmt.Errorf("publish failed: %s: %w", data.FailReason, asynq.SkipRetry)
	default:
		return fmt.Errorf("publish %s still processing", payload.PublishID)
	}
}
