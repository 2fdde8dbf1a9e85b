package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/repository"
	"github.com/hashipost/hashipost/internal/transfer"
	"github.com/hashipost/hashipost/pkg/utils"
)

const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

type YoutubeService interface {
	Publisher
	TokenRevoker
	Callback(ctx context.Context, code string, pending *models.OAuthState) error
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type youtubeService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewYoutubeService(cfg config.Config, sa repository.SocialAccountRepository) YoutubeService {
	return &youtubeService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *youtubeService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/youtube.upload",
			"https://www.googleapis.com/auth/youtube.readonly",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: googleoauth.Endpoint,
	}
}

func (s *youtubeService) Callback(ctx context.Context, code string, pending *models.OAuthState) error {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return err
	}

	conf := s.oauthConfig()
	token, err := conf.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", pending.CodeVerifier))
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("%w: %v", transfer.ErrTokenExchangeFailed, err)
	}

	channel, err := s.channelInfo(ctx, conf, token)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	// Google only returns a refresh token on the first consent; keep the old
	// one when re-linking.
	var encryptedRefreshToken string
	if token.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	var avatar string
	if channel.Snippet.Thumbnails != nil && channel.Snippet.Thumbnails.Default != nil {
		avatar = channel.Snippet.Thumbnails.Default.Url
	}

	accountInfo := &models.SocialAccount{
		UserID:          pending.UserID,
		Platform:        models.PlatformYoutube,
		AccountID:       channel.Id,
		AccountName:     channel.Snippet.Title,
		AccountUsername: strings.TrimPrefix(channel.Snippet.CustomUrl, "@"),
		ProfilePicture:  avatar,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  token.Expiry,
	}
	if accountInfo.AccountUsername == "" {
		accountInfo.AccountUsername = channel.Snippet.Title
	}

	_, err = s.sa.Upsert(ctx, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *youtubeService) channelInfo(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (*youtube.Channel, error) {
	service, err := youtube.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	call := service.Channels.List([]string{"snippet"}).Mine(true)
	resp, err := call.Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, errors.New("no YouTube channel found for this account")
	}

	return resp.Items[0], nil
}

func (s *youtubeService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	if acc.RefreshToken == "" {
		return transfer.ErrNoRefreshToken
	}

	decryptedRefreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	conf := s.oauthConfig()
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: decryptedRefreshToken})
	token, err := src.Token()
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("%w: %v", transfer.ErrRefreshFailed, err)
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var encryptedRefreshToken string
	if token.RefreshToken != "" && token.RefreshToken != decryptedRefreshToken {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	return s.sa.SetToken(ctx, acc.ID, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: token.Expiry,
	})
}

func (s *youtubeService) Revoke(ctx context.Context, acc *models.SocialAccount) error {
	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("token", decryptedAccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleRevokeURL, strings.NewReader(data.Encode()))
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
		var result map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
			return fmt.Errorf("failed to revoke token: %v", result["error_description"])
		}
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}

	return nil
}

// Publish uploads one video to the linked channel. The YouTube client wants a
// seekable reader for resumable uploads, so the media is spooled to a temp
// file first.
func (s *youtubeService) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (*PublishResult, error) {
	if mediaURL == "" {
		return nil, fmt.Errorf("%w: youtube requires a video", transfer.ErrInvalidPost)
	}

	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	file, err := s.downloadToTemp(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(file.Name())
	defer file.Close()

	conf := s.oauthConfig()
	token := &oauth2.Token{AccessToken: decryptedAccessToken, Expiry: acc.TokenExpiresAt}
	service, err := youtube.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	title := content
	if len(title) > 100 {
		title = title[:100]
	}
	if title == "" {
		title = "Untitled video " + time.Now().Format("2006-01-02")
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: content,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{PrivacyStatus: "public"},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	uploaded, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", transfer.ErrUploadFailed, err)
	}

	return &PublishResult{
		PostID:  uploaded.Id,
		PostURL: "https://www.youtube.com/watch?v=" + uploaded.Id,
	}, nil
}

func (s *youtubeService) downloadToTemp(ctx context.Context, mediaURL string) (*os.File, error) {
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

	file, err := os.CreateTemp("", "upload-*.mp4")
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}

	log.Println("Downloaded media to", file.Name())
	return file, nil
}
