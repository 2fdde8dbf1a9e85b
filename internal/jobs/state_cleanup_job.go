package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashipost/hashipost/internal/repository"
)

// StateCleanupJob sweeps abandoned OAuth handshakes. States are normally
// consumed by the callback; this only catches flows the user never finished.
type StateCleanupJob struct {
	os repository.OAuthStateRepository
}

func NewStateCleanupJob(os repository.OAuthStateRepository) *StateCleanupJob {
	return &StateCleanupJob{os: os}
}

func (c *StateCleanupJob) CleanupStates() {
	ctx := context.Background()

	cutoff := time.Now().Add(-1 * time.Hour)
	deleted, err := c.os.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if deleted > 0 {
		slog.Info("Swept abandoned link flows", "count", deleted)
	}
}
