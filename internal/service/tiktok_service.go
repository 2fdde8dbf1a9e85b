package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/transfer"
	"github.com/hashipost/hashipost/pkg/utils"
)

const (
	tiktokTokenURL       = "https://open.tiktokapis.com/v2/oauth/token/"
	tiktokRevokeURL      = "https://open.tiktokapis.com/v2/oauth/revoke/"
	tiktokUserInfoURL    = "https://open.tiktokapis.com/v2/user/info/?fields=open_id,avatar_url,display_name,username"
	tiktokCreatorInfoURL = "https://open.tiktokapis.com/v2/post/publish/creator_info/query/"
	tiktokVideoInitURL   = "https://open.tiktokapis.com/v2/post/publish/video/init/"
	tiktokStatusURL      = "https://open.tiktokapis.com/v2/post/publish/status/fetch/"
)

const (
	// TikTok accepts chunk sizes between 512 KiB and 4 MiB and requires all
	// chunks except the last to be exactly chunk_size bytes.
	minChunkSize = 512 * 1024
	maxChunkSize = 4 * 1024 * 1024

	chunkUploadAttempts = 3
	statusPollInterval  = 3 * time.Second
	statusPollDeadline  = 2 * time.Minute

	// Unaudited clients can only post to private accounts.
	tiktokPrivacyLevel = "SELF_ONLY"
)

type TiktokService interface {
	Publisher
	TokenRevoker
	Callback(ctx context.Context, code string, pending *models.OAuthState) error
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
	CheckPublishStatus(ctx context.Context, acc *models.SocialAccount, publishID string) (*transfer.TiktokStatusData, error)
	PostURL(username string, data *transfer.TiktokStatusData, publishID string) (string, string)
}

type tiktokService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewTiktokService(cfg config.Config, sa repository.SocialAccountRepository) TiktokService {
	return &tiktokService{
		cfg: cfg,
		sa:  sa,
	}
}

// Callback finishes the link flow: the single-use authorization code plus the
// stored PKCE verifier are exchanged for tokens, the profile is fetched, and
// the linked account is upserted keyed by the external username.
func (s *tiktokService) Callback(ctx context.Context, code string, pending *models.OAuthState) error {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return err
	}

	tokenResponse, err := s.exchangeCodeForToken(ctx, code, pending.CodeVerifier)
	if err != nil {
		return err
	}

	userInfo, err := TiktokUserInfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          pending.UserID,
		Platform:        models.PlatformTiktok,
		AccountID:       userInfo.Data.User.OpenID,
		AccountName:     userInfo.Data.User.DisplayName,
		AccountUsername: userInfo.Data.User.Username,
		ProfilePicture:  userInfo.Data.User.AvatarURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  GetExpiresAt(tokenResponse.ExpiresIn),
	}

	_, err = s.sa.Upsert(ctx, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *tiktokService) exchangeCodeForToken(ctx context.Context, code, codeVerifier string) (*transfer.TiktokTokenResponse, error) {
	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.TiktokRedirectURI)
	data.Add("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	// Authorization codes are single-use; never retry the exchange.
	if resp.StatusCode != http.StatusOK || tokenResponse.AccessToken == "" {
		slog.Info("TikTok token endpoint rejected the code", "description", tokenResponse.ErrorDescription)
		return nil, fmt.Errorf("%w: %s", transfer.ErrTokenExchangeFailed, tokenResponse.ErrorDescription)
	}

	return &tokenResponse, nil
}

func TiktokUserInfo(ctx context.Context, accessToken string) (*transfer.TiktokUserResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tiktokUserInfoURL, nil)
	if err != nil {
		log.Println("Error creating request:", err)
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var result transfer.TiktokUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &result, nil
}

// RefreshToken exchanges the stored refresh token for a fresh pair. On any
// upstream failure the stored tokens are left untouched; the profile columns
// are never written by a refresh.
func (s *tiktokService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	if acc.RefreshToken == "" {
		return transfer.ErrNoRefreshToken
	}

	decryptedRefreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", decryptedRefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return err
	}

	if resp.StatusCode != http.StatusOK || tokenResponse.AccessToken == "" {
		slog.Info("TikTok refresh rejected", "description", tokenResponse.ErrorDescription)
		return fmt.Errorf("%w: %s", transfer.ErrRefreshFailed, tokenResponse.ErrorDescription)
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.sa.SetToken(ctx, acc.ID, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: GetExpiresAt(tokenResponse.ExpiresIn),
	})
}

func (s *tiktokService) Revoke(ctx context.Context, acc *models.SocialAccount) error {
	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Add("client_key", s.cfg.TiktokClientKey)
	params.Add("client_secret", s.cfg.TiktokClientSecret)
	params.Add("token", decryptedAccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokRevokeURL, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result transfer.TiktokRevokeData
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			slog.Info(err.Error())
			return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to revoke token: %s", result.Description)
	}

	return nil
}

// Publish pushes one video to TikTok. Media hosted on our own R2 bucket goes
// through PULL_FROM_URL; anything else (or a PULL_FROM_URL rejected for
// domain-verification reasons) is downloaded and re-uploaded in chunks. The
// publish is then polled until TikTok reports completion or the deadline
// passes.
func (s *tiktokService) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (*PublishResult, error) {
	if mediaURL == "" {
		return nil, fmt.Errorf("%w: tiktok requires a video", transfer.ErrInvalidPost)
	}

	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	if err := s.queryCreatorInfo(ctx, decryptedAccessToken); err != nil {
		log.Println("Error querying creator info:", err.Error())
		return nil, err
	}

	var publishID string
	useMethod := "FILE_UPLOAD"
	if s.isTrustedMediaHost(mediaURL) {
		useMethod = "PULL_FROM_URL"
	}

	if useMethod == "PULL_FROM_URL" {
		publishID, err = s.initPullFromURL(ctx, decryptedAccessToken, content, mediaURL)
		if err != nil {
			if !errors.Is(err, errURLOwnershipUnverified) {
				return nil, err
			}
			// Single fallback, not a retry loop.
			log.Println("PULL_FROM_URL rejected for domain verification, switching to FILE_UPLOAD")
			useMethod = "FILE_UPLOAD"
		}
	}

	if useMethod == "FILE_UPLOAD" {
		publishID, err = s.uploadChunked(ctx, decryptedAccessToken, content, mediaURL)
		if err != nil {
			return nil, err
		}
	}

	return s.waitForPublish(ctx, acc, decryptedAccessToken, publishID)
}

func (s *tiktokService) isTrustedMediaHost(mediaURL string) bool {
	return s.cfg.R2.PublicURL != "" && strings.HasPrefix(mediaURL, s.cfg.R2.PublicURL)
}

func (s *tiktokService) queryCreatorInfo(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokCreatorInfoURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result transfer.TiktokCreatorInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch creator info: %s", result.Error.Message)
	}

	return nil
}

var errURLOwnershipUnverified = errors.New("url ownership unverified")

func (s *tiktokService) initPullFromURL(ctx context.Context, accessToken, content, mediaURL string) (string, error) {
	initData, err := s.publishInit(ctx, accessToken, &transfer.TiktokPublishInitRequest{
		PostInfo: transfer.TiktokPostInfo{
			Title:        content,
			PrivacyLevel: tiktokPrivacyLevel,
		},
		SourceInfo: transfer.TiktokSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: mediaURL,
		},
	})
	if err != nil {
		return "", err
	}
	return initData.PublishID, nil
}

// uploadChunked downloads the media and re-uploads it to TikTok in uniform
// chunks with bounded per-chunk retry. Chunks are strictly sequential; the
// upstream protocol addresses them by byte offset.
func (s *tiktokService) uploadChunked(ctx context.Context, accessToken, content, mediaURL string) (string, error) {
	video, err := s.fetchMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	if len(video) == 0 {
		return "", fmt.Errorf("%w: media at %s is empty", transfer.ErrUploadFailed, mediaURL)
	}

	fileSize := int64(len(video))
	chunkSize, totalChunks := chunkPlan(fileSize)

	initData, err := s.publishInit(ctx, accessToken, &transfer.TiktokPublishInitRequest{
		PostInfo: transfer.TiktokPostInfo{
			Title:        content,
			PrivacyLevel: tiktokPrivacyLevel,
		},
		SourceInfo: transfer.TiktokSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       fileSize,
			ChunkSize:       chunkSize,
			TotalChunkCount: totalChunks,
		},
	})
	if err != nil {
		return "", err
	}

	for i := int64(0); i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > fileSize {
			end = fileSize
		}

		if err := s.uploadChunk(ctx, initData.UploadURL, video[start:end], start, end, fileSize); err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, totalChunks, err)
		}
	}

	return initData.PublishID, nil
}

// chunkPlan picks a chunk size that divides the total evenly, starting from
// 4 MiB and stepping down in 512 KiB increments; if nothing divides evenly it
// settles on the 512 KiB floor and lets the final chunk run short.
func chunkPlan(fileSize int64) (chunkSize, totalChunks int64) {
	if fileSize <= 0 {
		return 0, 0
	}

	chunkSize = maxChunkSize
	if fileSize < chunkSize {
		chunkSize = fileSize
	}
	for fileSize%chunkSize != 0 && chunkSize > minChunkSize {
		chunkSize -= minChunkSize
	}
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}
	if chunkSize > fileSize {
		chunkSize = fileSize
	}

	totalChunks = (fileSize + chunkSize - 1) / chunkSize
	return chunkSize, totalChunks
}

func (s *tiktokService) fetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch video file: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (s *tiktokService) publishInit(ctx context.Context, accessToken string, initReq *transfer.TiktokPublishInitRequest) (*transfer.TiktokPublishInitData, error) {
	jsonData, err := json.Marshal(initReq)
	if err != nil {
		log.Println("Error marshalling data:", err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokVideoInitURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result transfer.TiktokPublishInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if result.Error.Code == "url_ownership_unverified" {
		return nil, errURLOwnershipUnverified
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: init rejected: %s", transfer.ErrUploadFailed, result.Error.Message)
	}

	return &result.Data, nil
}

func (s *tiktokService) uploadChunk(ctx context.Context, uploadURL string, chunk []byte, start, end, total int64) error {
	var lastErr error

	for attempt := 1; attempt <= chunkUploadAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, total))
		req.Header.Set("Content-Type", "video/mp4")
		req.ContentLength = int64(len(chunk))

		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			// 201 for intermediate chunks, 200/206 variants for the last one.
			if resp.StatusCode < 300 {
				resp.Body.Close()
				return nil
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			err = fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
		}

		lastErr = err
		log.Printf("Retrying chunk upload (%d/%d): %v", attempt, chunkUploadAttempts, err)

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", transfer.ErrUploadFailed, ctx.Err())
		}
	}

	return fmt.Errorf("%w: %v", transfer.ErrUploadFailed, lastErr)
}

// waitForPublish polls the status endpoint at a fixed interval under a
// deadline. Hitting the deadline while TikTok still reports processing is not
// a terminal failure: the publish id is handed back so the backfill worker
// can pick it up.
func (s *tiktokService) waitForPublish(ctx context.Context, acc *models.SocialAccount, accessToken, publishID string) (*PublishResult, error) {
	pollCtx, cancel := context.WithTimeout(ctx, statusPollDeadline)
	defer cancel()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		data, err := s.fetchPublishStatus(pollCtx, accessToken, publishID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, &PublishPendingError{PublishID: publishID}
			}
			return nil, err
		}

		switch data.Status {
		case PostStatusComplete:
			postID, postURL := s.PostURL(acc.AccountUsername, data, publishID)
			return &PublishResult{PostID: postID, PostURL: postURL}, nil
		case PostStatusFailed:
			return nil, fmt.Errorf("%w: %s", transfer.ErrUploadFailed, data.FailReason)
		}

		select {
		case <-pollCtx.Done():
			return nil, &PublishPendingError{PublishID: publishID}
		case <-ticker.C:
		}
	}
}

func (s *tiktokService) fetchPublishStatus(ctx context.Context, accessToken, publishID string) (*transfer.TiktokStatusData, error) {
	jsonData, err := json.Marshal(transfer.TiktokStatusRequest{PublishID: publishID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokStatusURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result transfer.TiktokStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status fetch failed: %s", result.Error.Message)
	}

	return &result.Data, nil
}

// CheckPublishStatus is a single status probe used by the URL backfill
// worker; retry and backoff live in the task queue, not here.
func (s *tiktokService) CheckPublishStatus(ctx context.Context, acc *models.SocialAccount, publishID string) (*transfer.TiktokStatusData, error) {
	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}
	return s.fetchPublishStatus(ctx, decryptedAccessToken, publishID)
}

// PostURL derives the public video URL once processing completes. TikTok only
// reports the public post id for some account types; without one the profile
// URL is the best available.
func (s *tiktokService) PostURL(username string, data *transfer.TiktokStatusData, publishID string) (string, string) {
	if len(data.PublicalyAvailablePostID) > 0 {
		postID := fmt.Sprintf("%d", data.PublicalyAvailablePostID[0])
		return postID, fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", username, postID)
	}
	return publishID, fmt.Sprintf("https://www.tiktok.com/@%s", username)
}
