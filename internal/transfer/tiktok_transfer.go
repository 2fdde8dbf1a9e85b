package transfer

type TiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type TiktokUserResponse struct {
	Data  TiktokUserData `json:"data"`
	Error TiktokError    `json:"error"`
}

type TiktokUserData struct {
	User TiktokUser `json:"user"`
}

type TiktokUser struct {
	OpenID      string `json:"open_id"`
	AvatarURL   string `json:"avatar_url"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

type TiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type TiktokPostInfo struct {
	Title        string `json:"title"`
	PrivacyLevel string `json:"privacy_level"`
}

// TiktokSourceInfo covers both publish sources. PULL_FROM_URL sets VideoURL;
// FILE_UPLOAD sets the three size fields, which TikTok requires to describe
// uniform chunks (only the last chunk may be short).
type TiktokSourceInfo struct {
	Source          string `json:"source"`
	VideoURL        string `json:"video_url,omitempty"`
	VideoSize       int64  `json:"video_size,omitempty"`
	ChunkSize       int64  `json:"chunk_size,omitempty"`
	TotalChunkCount int64  `json:"total_chunk_count,omitempty"`
}

type TiktokPublishInitRequest struct {
	PostInfo   TiktokPostInfo   `json:"post_info"`
	SourceInfo TiktokSourceInfo `json:"source_info"`
}

type TiktokPublishInitResponse struct {
	Data  TiktokPublishInitData `json:"data"`
	Error TiktokError           `json:"error"`
}

type TiktokPublishInitData struct {
	PublishID string `json:"publish_id"`
	UploadURL string `json:"upload_url"`
}

type TiktokStatusRequest struct {
	PublishID string `json:"publish_id"`
}

type TiktokStatusResponse struct {
	Data  TiktokStatusData `json:"data"`
	Error TiktokError      `json:"error"`
}

type TiktokStatusData struct {
	Status                   string   `json:"status"`
	FailReason               string   `json:"fail_reason"`
	PublicalyAvailablePostID []int64  `json:"publicaly_available_post_id"`
	UploadedBytes            int64    `json:"uploaded_bytes"`
	DownloadedBytes          int64    `json:"downloaded_bytes"`
	PublishErrors            []string `json:"publish_errors"`
}

type TiktokCreatorInfoResponse struct {
	Data  TiktokCreatorInfo `json:"data"`
	Error TiktokError       `json:"error"`
}

type TiktokCreatorInfo struct {
	CreatorAvatarURL        string   `json:"creator_avatar_url"`
	CreatorUsername         string   `json:"creator_username"`
	CreatorNickname         string   `json:"creator_nickname"`
	PrivacyLevelOptions     []string `json:"privacy_level_options"`
	CommentDisabled         bool     `json:"comment_disabled"`
	DuetDisabled            bool     `json:"duet_disabled"`
	StitchDisabled          bool     `json:"stitch_disabled"`
	MaxVideoPostDurationSec int32    `json:"max_video_post_duration_sec"`
}

type TiktokRevokeData struct {
	ErrorCode   int64  `json:"error_code"`
	Description string `json:"description"`
}
