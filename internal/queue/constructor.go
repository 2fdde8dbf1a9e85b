package queue

import (
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/service"
)

type Queue struct {
	pr repository.PostRepository
	ac repository.SocialAccountRepository
	tt service.TiktokService
}

func NewQueue(
	pr repository.PostRepository,
	ac repository.SocialAccountRepository,
	tt service.TiktokService) *Queue {
	return &Queue{
		pr: pr,
		ac: ac,
		tt: tt,
	}
}

const TaskTypeBackfillURL = "tiktok:backfill_url"

type BackfillURLPayload struct {
	ResultID  int64  `json:"result_id"`
	AccountID int64  `json:"account_id"`
	PublishID string `json:"publish_id"`
}
