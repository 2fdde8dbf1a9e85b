package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashipost/hashipost/internal/api/middleware"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/transfer"
	"github.com/hashipost/hashipost/pkg/utils"
)

type fakeUserService struct {
	user    *models.User
	err     error
	removed []int64
}

func (f *fakeUserService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	return f.user, f.err
}

func (f *fakeUserService) RemoveUser(ctx context.Context, userID int64) error {
	f.removed = append(f.removed, userID)
	return f.err
}

type fakeMediaService struct {
	removed []string
	err     error
}

func (f *fakeMediaService) Upload(ctx context.Context, file *multipart.FileHeader) (*transfer.UploadResponse, error) {
	return nil, f.err
}

func (f *fakeMediaService) Remove(ctx context.Context, publicID string) error {
	f.removed = append(f.removed, publicID)
	return f.err
}

func newUserTestApp(t *testing.T, us *fakeUserService, ms *fakeMediaService) (*fiber.App, *http.Cookie) {
	t.Helper()
	cfg := handlerTestConfig()

	app := fiber.New()
	authMiddleware := middleware.NewAuthMiddleware(cfg)
	api := app.Group("/")
	api.Use(authMiddleware.AuthMiddleware())

	user := NewUserHandler(cfg, us)
	api.Get("/user/info", user.GetUserInfo)
	api.Delete("/user", user.DeleteUser)

	upload := NewUploadHandler(ms)
	api.Delete("/upload/:key", upload.DeleteHandler)

	token, err := utils.GenerateToken(cfg.SecretKey, "7", time.Hour)
	require.NoError(t, err)

	return app, &http.Cookie{Name: cfg.CookieName, Value: token}
}

func TestGetUserInfo(t *testing.T) {
	svc := &fakeUserService{user: &models.User{ID: 7, Name: "sam"}}
	app, cookie := newUserTestApp(t, svc, &fakeMediaService{})

	req := httptest.NewRequest("GET", "/user/info", nil)
	req.AddCookie(cookie)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDeleteUserClearsSession(t *testing.T) {
	svc := &fakeUserService{}
	app, cookie := newUserTestApp(t, svc, &fakeMediaService{})

	req := httptest.NewRequest("DELETE", "/user", nil)
	req.AddCookie(cookie)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{7}, svc.removed)

	// The session cookie must be expired so the deleted account cannot
	// keep calling authenticated routes.
	cfg := handlerTestConfig()
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == cfg.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestDeleteUserFailure(t *testing.T) {
	svc := &fakeUserService{err: errors.New("pq: connection refused")}
	app, cookie := newUserTestApp(t, svc, &fakeMediaService{})

	req := httptest.NewRequest("DELETE", "/user", nil)
	req.AddCookie(cookie)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestDeleteUploadRemovesObject(t *testing.T) {
	ms := &fakeMediaService{}
	app, cookie := newUserTestApp(t, &fakeUserService{}, ms)

	req := httptest.NewRequest("DELETE", "/upload/abc123.mp4", nil)
	req.AddCookie(cookie)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"abc123.mp4"}, ms.removed)
}
