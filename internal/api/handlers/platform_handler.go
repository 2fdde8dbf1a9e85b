package handlers

import (
	"fmt"
	"log"
	"net/url"

	"github.com/gofiber/fiber/v2"
	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/models"
	"github.com/hashipost/hashipost/internal/service"
	"github.com/hashipost/hashipost/internal/transfer"
)

type PlatformHandler struct {
	ps  service.PlatformService
	tt  service.TiktokService
	yt  service.YoutubeService
	fb  service.FacebookService
	ig  service.InstagramService
	cfg config.Config
}

func NewPlatformHandler(
	ps service.PlatformService,
	tt service.TiktokService,
	yt service.YoutubeService,
	fb service.FacebookService,
	ig service.InstagramService,
	cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		tt:  tt,
		yt:  yt,
		fb:  fb,
		ig:  ig,
		cfg: cfg,
	}
}

// AuthURL hands the frontend the platform authorization URL for a new link
// flow. The CSRF state and PKCE verifier are created and persisted here.
func (h *PlatformHandler) AuthURL(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	authURL, err := h.ps.GetAuthURL(c.Context(), userID, platform)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"url": authURL,
	})
}

// CallbackHandler finishes a link flow. The platform redirects here with the
// code and our state; the state row identifies the user, so this route runs
// without a session. The browser always ends up back on the dashboard with
// the outcome in the query string.
func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	platform := c.Params("platform")

	pending, err := h.ps.ConsumeAuthState(c.Context(), platform, state)
	if err != nil {
		return h.redirectDashboard(c, "error", "Unable to validate the link request")
	}

	switch platform {
	case models.PlatformTiktok:
		err = h.tt.Callback(c.Context(), code, pending)
	case models.PlatformYoutube:
		err = h.yt.Callback(c.Context(), code, pending)
	case models.PlatformFacebook:
		err = h.fb.Callback(c.Context(), code, pending)
	case models.PlatformInstagram:
		err = h.ig.Callback(c.Context(), code, pending)
	default:
		err = transfer.ErrUnsupportedPlatform
	}

	if err != nil {
		log.Printf("Error linking %s account: %v", platform, err)
		return h.redirectDashboard(c, "error", fmt.Sprintf("Failed to connect %s account", platform))
	}

	return h.redirectDashboard(c, "success", fmt.Sprintf("Connected %s account", platform))
}

func (h *PlatformHandler) redirectDashboard(c *fiber.Ctx, status, message string) error {
	params := url.Values{}
	params.Set("status", status)
	params.Set("message", message)

	redirectURL := fmt.Sprintf("%s/dashboard/accounts?%s", h.cfg.FrontendURL, params.Encode())
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

// RefreshHandler force-refreshes the stored tokens for every linked account
// of one platform.
func (h *PlatformHandler) RefreshHandler(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	accounts, err := h.ps.Profiles(c.Context(), userID, platform)
	if err != nil {
		return jsonError(c, err)
	}

	for _, acc := range accounts {
		switch platform {
		case models.PlatformTiktok:
			err = h.tt.RefreshToken(c.Context(), acc)
		case models.PlatformYoutube:
			err = h.yt.RefreshToken(c.Context(), acc)
		case models.PlatformFacebook:
			err = h.fb.RefreshToken(c.Context(), acc)
		case models.PlatformInstagram:
			err = h.ig.RefreshToken(c.Context(), acc)
		}
		if err != nil {
			return jsonError(c, err)
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

// StatusHandler reports connected/not-connected for every supported platform
// in one shot, for the dashboard account grid.
func (h *PlatformHandler) StatusHandler(c *fiber.Ctx) error {
	userID := GetUserID(c)

	status, err := h.ps.Status(c.Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *PlatformHandler) ProfileHandler(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	accounts, err := h.ps.Profiles(c.Context(), userID, platform)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

// DisconnectHandler unlinks an account. Token revocation upstream is best
// effort; the local rows are always removed.
func (h *PlatformHandler) DisconnectHandler(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	var req transfer.DisconnectRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.ps.Disconnect(c.Context(), userID, platform, req.Username); err != nil {
		return jsonError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
