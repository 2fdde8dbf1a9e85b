package models

import "time"

// Platform names accepted by the API. Anything else is rejected with
// ErrUnsupportedPlatform before touching storage.
const (
	PlatformTiktok    = "tiktok"
	PlatformYoutube   = "youtube"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
)

var SupportedPlatforms = []string{PlatformTiktok, PlatformYoutube, PlatformFacebook, PlatformInstagram}

func IsSupportedPlatform(platform string) bool {
	for _, p := range SupportedPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

// SocialAccount is one linked identity on one external platform. A user may
// link several accounts per platform; (user_id, platform, account_username)
// is unique, so re-linking the same external account replaces the row.
type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        string    `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountName     string    `db:"account_name" json:"account_name"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	ProfilePicture  string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken     string    `db:"access_token" json:"-"`
	RefreshToken    string    `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OAuthState is the pending PKCE tuple created when a link flow starts and
// consumed exactly once by the callback. Rows left behind by abandoned flows
// are swept by age, never reused.
type OAuthState struct {
	State         string    `db:"state"`
	UserID        int64     `db:"user_id"`
	Platform      string    `db:"platform"`
	CodeVerifier  string    `db:"code_verifier"`
	CodeChallenge string    `db:"code_challenge"`
	CreatedAt     time.Time `db:"created_at"`
}
