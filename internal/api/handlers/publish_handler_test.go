package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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

type fakePublishService struct {
	resp *transfer.PublishResponse
	err  error
}

func (f *fakePublishService) Publish(ctx context.Context, userID int64, req *transfer.PublishRequest) (*transfer.PublishResponse, error) {
	return f.resp, f.err
}

func (f *fakePublishService) History(ctx context.Context, userID int64, limit int) ([]*models.Post, error) {
	return []*models.Post{{ID: 1, UserID: userID, Content: "old post"}}, nil
}

func newPublishTestApp(t *testing.T, svc *fakePublishService) (*fiber.App, *http.Cookie) {
	t.Helper()
	cfg := handlerTestConfig()

	app := fiber.New()
	authMiddleware := middleware.NewAuthMiddleware(cfg)
	api := app.Group("/")
	api.Use(authMiddleware.AuthMiddleware())

	publish := NewPublishHandler(svc)
	api.Post("/social/publish", publish.PublishHandler)
	api.Get("/social/posts", publish.HistoryHandler)

	token, err := utils.GenerateToken(cfg.SecretKey, "7", time.Hour)
	require.NoError(t, err)

	return app, &http.Cookie{Name: cfg.CookieName, Value: token}
}

func TestPublishHandlerPartialFailure(t *testing.T) {
	svc := &fakePublishService{resp: &transfer.PublishResponse{
		Success: false,
		PostID:  5,
		Results: []*transfer.PlatformResult{
			{Platform: "youtube", Success: true, PostID: "yt1"},
			{Platform: "facebook", Success: false, Error: "graph api down"},
		},
	}}
	app, cookie := newPublishTestApp(t, svc)

	body := `{"content":"hello","platforms":["youtube","facebook"]}`
	req := httptest.NewRequest("POST", "/social/publish", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out transfer.PublishResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Success)
	assert.Len(t, out.Results, 2)
}

func TestPublishHandlerEmptyPost(t *testing.T) {
	svc := &fakePublishService{err: transfer.ErrInvalidPost}
	app, cookie := newPublishTestApp(t, svc)

	req := httptest.NewRequest("POST", "/social/publish", strings.NewReader(`{"platforms":["youtube"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHistoryHandler(t *testing.T) {
	app, cookie := newPublishTestApp(t, &fakePublishService{})

	req := httptest.NewRequest("GET", "/social/posts", nil)
	req.AddCookie(cookie)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var posts []*models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "old post", posts[0].Content)
}
