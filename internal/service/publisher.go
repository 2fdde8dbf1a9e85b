package service

import (
	"context"
	"fmt"

	"github.com/hashipost/hashipost/internal/models"
)

// PublishResult is what a platform reports back for a successful publish.
type PublishResult struct {
	PostID  string
	PostURL string
}

// Publisher is the per-platform publish capability. The orchestrator fans a
// post out to one Publisher per selected platform and never needs to know
// how any of them move bytes.
type Publisher interface {
	Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (*PublishResult, error)
}

// PublishPendingError reports that a TikTok upload was accepted but was still
// processing when the in-request poll hit its deadline. The publish id lets
// the backfill worker finish the job later.
type PublishPendingError struct {
	PublishID string
}

func (e *PublishPendingError) Error() string {
	return fmt.Sprintf("publish %s still processing after deadline", e.PublishID)
}
