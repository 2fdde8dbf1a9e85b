package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/transfer"
	"github.com/hashipost/hashipost/pkg/utils"
)

const (
	instagramAPIURL      = "https://api.instagram.com"
	instagramGraphURL    = "https://graph.instagram.com"
	containerPollTries   = 20
	containerPollBackoff = 3 * time.Second
)

type InstagramService interface {
	Publisher
	TokenRevoker
	Callback(ctx context.Context, code string, pending *models.OAuthState) error
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type instagramService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewInstagramService(cfg config.Config, sa repository.SocialAccountRepository) InstagramService {
	return &instagramService{
		cfg: cfg,
		sa:  sa,
	}
}

// Callback exchanges the code for a short-lived token, immediately upgrades
// it to a long-lived one (60 days), then stores the linked profile.
func (s *instagramService) Callback(ctx context.Context, code string, pending *models.OAuthState) error {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return err
	}

	shortLived, err := s.exchangeCode(ctx, code)
	if err != nil {
		return err
	}

	longLived, err := s.exchangeLongLived(ctx, shortLived.AccessToken)
	if err != nil {
		return err
	}

	profile, err := s.fetchProfile(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(longLived.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          pending.UserID,
		Platform:        models.PlatformInstagram,
		AccountID:       strconv.FormatInt(shortLived.UserID, 10),
		AccountName:     profile.Name,
		AccountUsername: profile.Username,
		ProfilePicture:  profile.ProfilePicture,
		AccessToken:     encryptedAccessToken,
		TokenExpiresAt:  GetExpiresAt(longLived.ExpiresIn),
	}
	if accountInfo.AccountName == "" {
		accountInfo.AccountName = profile.Username
	}

	_, err = s.sa.Upsert(ctx, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *instagramService) exchangeCode(ctx context.Context, code string) (*transfer.InstagramTokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.InstagramClientID)
	data.Set("client_secret", s.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.InstagramRedirectURI)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, instagramAPIURL+"/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var tokenResponse transfer.InstagramTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK || tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("%w: instagram token endpoint returned status %d", transfer.ErrTokenExchangeFailed, resp.StatusCode)
	}

	return &tokenResponse, nil
}

func (s *instagramService) exchangeLongLived(ctx context.Context, shortToken string) (*transfer.InstagramTokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_exchange_token")
	params.Set("client_secret", s.cfg.InstagramClientSecret)
	params.Set("access_token", shortToken)

	return s.tokenRequest(ctx, instagramGraphURL+"/access_token?"+params.Encode())
}

func (s *instagramService) tokenRequest(ctx context.Context, endpoint string) (*transfer.InstagramTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var tokenResponse transfer.InstagramTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK || tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("instagram token request returned status %d", resp.StatusCode)
	}

	return &tokenResponse, nil
}

func (s *instagramService) fetchProfile(ctx context.Context, accessToken string) (*transfer.InstagramProfile, error) {
	params := url.Values{}
	params.Set("fields", "user_id,username,name,profile_picture_url")
	params.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instagramGraphURL+"/me?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var profile transfer.InstagramProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK || profile.Username == "" {
		return nil, errors.New("failed to fetch instagram profile")
	}

	return &profile, nil
}

// RefreshToken extends the long-lived token. Instagram only refreshes tokens
// that are at least 24 hours old and not yet expired.
func (s *instagramService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	if acc.AccessToken == "" {
		return transfer.ErrNoRefreshToken
	}

	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", decryptedAccessToken)

	tokenResponse, err := s.tokenRequest(ctx, instagramGraphURL+"/refresh_access_token?"+params.Encode())
	if err != nil {
		return fmt.Errorf("%w: %v", transfer.ErrRefreshFailed, err)
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.sa.SetToken(ctx, acc.ID, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: GetExpiresAt(tokenResponse.ExpiresIn),
	})
}

// Revoke: Instagram Basic Display has no revoke endpoint; the removal of the
// stored tokens is the whole disconnect. Kept so the platform service can
// treat every platform uniformly.
func (s *instagramService) Revoke(ctx context.Context, acc *models.SocialAccount) error {
	return nil
}

// Publish creates a media container, waits for Instagram to ingest the media,
// then publishes the container. Instagram cannot post bare text.
func (s *instagramService) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (*PublishResult, error) {
	if mediaURL == "" {
		return nil, fmt.Errorf("%w: instagram requires an image or video", transfer.ErrInvalidPost)
	}

	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	containerID, err := s.createContainer(ctx, acc.AccountID, decryptedAccessToken, content, mediaURL)
	if err != nil {
		return nil, err
	}

	if err := s.waitForContainer(ctx, containerID, decryptedAccessToken); err != nil {
		return nil, err
	}

	mediaID, err := s.publishContainer(ctx, acc.AccountID, decryptedAccessToken, containerID)
	if err != nil {
		return nil, err
	}

	return &PublishResult{
		PostID:  mediaID,
		PostURL: "https://www.instagram.com/" + acc.AccountUsername + "/",
	}, nil
}

func (s *instagramService) createContainer(ctx context.Context, igUserID, accessToken, content, mediaURL string) (string, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	params.Set("caption", content)
	if isVideoURL(mediaURL) {
		params.Set("media_type", "REELS")
		params.Set("video_url", mediaURL)
	} else {
		params.Set("image_url", mediaURL)
	}

	return s.containerRequest(ctx, instagramGraphURL+"/"+igUserID+"/media", params)
}

func (s *instagramService) publishContainer(ctx context.Context, igUserID, accessToken, containerID string) (string, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	params.Set("creation_id", containerID)

	return s.containerRequest(ctx, instagramGraphURL+"/"+igUserID+"/media_publish", params)
}

func (s *instagramService) containerRequest(ctx context.Context, endpoint string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	var result transfer.InstagramContainerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if resp.StatusCode != http.StatusOK || result.ID == "" {
		return "", fmt.Errorf("%w: %s", transfer.ErrUploadFailed, result.Error.Message)
	}

	return result.ID, nil
}

func (s *instagramService) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	params := url.Values{}
	params.Set("fields", "status_code")
	params.Set("access_token", accessToken)
	endpoint := instagramGraphURL + "/" + containerID + "?" + params.Encode()

	for i := 0; i < containerPollTries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}

		var status struct {
			StatusCode string `json:"status_code"`
		}
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return err
		}

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("%w: container status %s", transfer.ErrUploadFailed, status.StatusCode)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", transfer.ErrUploadTimeout, ctx.Err())
		case <-time.After(containerPollBackoff):
		}
	}

	return fmt.Errorf("%w: container never finished processing", transfer.ErrUploadTimeout)
}
