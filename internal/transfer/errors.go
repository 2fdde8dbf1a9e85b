package transfer

import "errors"

// Error taxonomy surfaced at the handler boundary. Handlers map these to
// HTTP statuses; everything unmatched becomes a 500 with the upstream
// description in the body.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnsupportedPlatform = errors.New("platform not supported")
	ErrInvalidPost         = errors.New("post must have either content or media")
	ErrNoPlatformsSelected = errors.New("no platforms selected")
	ErrAccountNotFound     = errors.New("social account not found")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrNoRefreshToken      = errors.New("no refresh token stored")
	ErrAuthStateMismatch   = errors.New("oauth state missing or mismatched")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrUploadFailed        = errors.New("upload failed")
	ErrUploadTimeout       = errors.New("upload still processing after deadline")
)
