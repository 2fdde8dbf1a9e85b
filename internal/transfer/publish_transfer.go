package transfer

// PublishRequest is the body of POST /social/publish. At least one of
// Content and MediaURL must be present.
type PublishRequest struct {
	Content   string   `json:"content"`
	MediaURL  string   `json:"mediaUrl"`
	Platforms []string `json:"platforms"`
}

// PlatformResult is one platform's outcome inside the publish response.
type PlatformResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	PostID   string `json:"postId,omitempty"`
	PostURL  string `json:"postUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

type PublishResponse struct {
	Success bool              `json:"success"`
	Results []*PlatformResult `json:"results"`
	PostID  int64             `json:"postId"`
}

type DisconnectRequest struct {
	Username string `json:"username"`
}

type UploadResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}
