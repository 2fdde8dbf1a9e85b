package handlers

import (
	"github.com/gofiber/fiber/v2"
	config "github.com/hashipost/hashipost/configs"
	"github.com/hashipost/hashipost/internal/service"
)

type UserHandler struct {
	s   service.UserService
	cfg config.Config
}

func NewUserHandler(cfg config.Config, service service.UserService) *UserHandler {
	return &UserHandler{s: service, cfg: cfg}
}

func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	userInfo, err := h.s.GetUserInfo(c.Context(), userID)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(userInfo)
}

// DeleteUser removes the account and ends the session. Linked social
// accounts and posts go with it via the schema's cascading deletes.
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if err := h.s.RemoveUser(c.Context(), userID); err != nil {
		return jsonError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	return c.SendStatus(fiber.StatusOK)
}
