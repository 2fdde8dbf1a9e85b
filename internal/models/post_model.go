package models

import "time"

// Post is an immutable record of one publish attempt across platforms.
// Content and media never change after creation; the only later write is the
// TikTok post URL backfill on a single PostResult row.
type Post struct {
	ID        int64         `db:"id" json:"id"`
	UserID    int64         `db:"user_id" json:"user_id"`
	Content   string        `db:"content" json:"content"`
	MediaURL  string        `db:"media_url" json:"media_url"`
	Results   []*PostResult `json:"platforms"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// PostResult is the outcome of one platform's publish attempt.
type PostResult struct {
	ID             int64  `db:"id" json:"-"`
	PostID         int64  `db:"post_id" json:"-"`
	Platform       string `db:"platform" json:"name"`
	Posted         bool   `db:"posted" json:"posted"`
	ExternalPostID string `db:"external_post_id" json:"postId"`
	PostURL        string `db:"post_url" json:"postUrl"`
	ErrorMessage   string `db:"error_message" json:"error,omitempty"`
}
