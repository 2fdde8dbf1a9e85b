package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/transfer"
	"github.com/hashipost/hashipost/pkg/utils"
)

const facebookGraphURL = "https://graph.facebook.com/v19.0"

type FacebookService interface {
	Publisher
	TokenRevoker
	Callback(ctx context.Context, code string, pending *models.OAuthState) error
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type facebookService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewFacebookService(cfg config.Config, sa repository.SocialAccountRepository) FacebookService {
	return &facebookService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *facebookService) Callback(ctx context.Context, code string, pending *models.OAuthState) error {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return err
	}

	params := url.Values{}
	params.Set("client_id", s.cfg.FacebookClientID)
	params.Set("client_secret", s.cfg.FacebookClientSecret)
	params.Set("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Set("code", code)

	tokenResponse, err := s.fetchToken(ctx, params)
	if err != nil {
		return fmt.Errorf("%w: %v", transfer.ErrTokenExchangeFailed, err)
	}

	profile, err := s.fetchProfile(ctx, tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          pending.UserID,
		Platform:        models.PlatformFacebook,
		AccountID:       profile.ID,
		AccountName:     profile.Name,
		AccountUsername: profile.Name,
		ProfilePicture:  profile.Picture.Data.URL,
		AccessToken:     encryptedAccessToken,
		TokenExpiresAt:  GetExpiresAt(tokenResponse.ExpiresIn),
	}

	_, err = s.sa.Upsert(ctx, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *facebookService) fetchToken(ctx context.Context, params url.Values) (*transfer.FacebookTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, facebookGraphURL+"/oauth/access_token?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var tokenResponse transfer.FacebookTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK || tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("facebook token endpoint returned status %d", resp.StatusCode)
	}

	return &tokenResponse, nil
}

func (s *facebookService) fetchProfile(ctx context.Context, accessToken string) (*transfer.FacebookProfile, error) {
	params := url.Values{}
	params.Set("fields", "id,name,picture")
	params.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, facebookGraphURL+"/me?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var profile transfer.FacebookProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK || profile.ID == "" {
		return nil, errors.New("failed to fetch facebook profile")
	}

	return &profile, nil
}

// RefreshToken trades the current long-lived token for a fresh one via the
// fb_exchange_token grant. Facebook has no separate refresh token; an expired
// access token means the user has to re-link.
func (s *facebookService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	if acc.AccessToken == "" {
		return transfer.ErrNoRefreshToken
	}

	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", s.cfg.FacebookClientID)
	params.Set("client_secret", s.cfg.FacebookClientSecret)
	params.Set("fb_exchange_token", decryptedAccessToken)

	tokenResponse, err := s.fetchToken(ctx, params)
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

func (s *facebookService) Revoke(ctx context.Context, acc *models.SocialAccount) error {
	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("access_token", decryptedAccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, facebookGraphURL+"/me/permissions?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}

	return nil
}

// Publish posts to the user's feed, picking the Graph edge by media type:
// videos go to me/videos via file_url, images to me/photos, text to me/feed.
func (s *facebookService) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (*PublishResult, error) {
	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", decryptedAccessToken)

	var endpoint string
	switch {
	case mediaURL == "":
		endpoint = "/me/feed"
		params.Set("message", content)
	case isVideoURL(mediaURL):
		endpoint = "/me/videos"
		params.Set("file_url", mediaURL)
		params.Set("description", content)
	default:
		endpoint = "/me/photos"
		params.Set("url", mediaURL)
		params.Set("message", content)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, facebookGraphURL+endpoint, strings.NewReader(params.Encode()))
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

	var result transfer.FacebookPublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", transfer.ErrUploadFailed, result.Error.Message)
	}

	postID := result.ID
	if postID == "" {
		postID = result.PostID
	}

	return &PublishResult{
		PostID:  postID,
		PostURL: "https://www.facebook.com/" + postID,
	}, nil
}

func isVideoURL(mediaURL string) bool {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	lower := strings.ToLower(u.Path)
	return strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".mov")
}
