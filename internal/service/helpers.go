package service

import (
	"time"
)

const (
	PostStatusComplete   = "PUBLISH_COMPLETE"
	PostStatusFailed     = "FAILED"
	PostStatusProcessing = "PROCESSING_UPLOAD"
)

func GetExpiresAt(expiresIn int) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}
