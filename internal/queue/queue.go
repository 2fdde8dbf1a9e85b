package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer wraps the asynq client behind the interface the publish service
// depends on.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueBackfill schedules a status re-check for a publish that was still
// processing. The first probe runs after a short delay; asynq retries with
// backoff cover the slower encodes.
func (e *Enqueuer) EnqueueBackfill(ctx context.Context, resultID, accountID int64, publishID string) error {
	taskPayload, err := json.Marshal(BackfillURLPayload{
		ResultID:  resultID,
		AccountID: accountID,
		PublishID: publishID,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeBackfillURL, taskPayload)

	_, err = e.client.EnqueueContext(ctx, task, asynq.ProcessIn(time.Minute), asynq.MaxRetry(10))
	if err != nil {
		return err
	}

	log.Printf("Backfill scheduled for publish %s", publishID)
	return nil
}
