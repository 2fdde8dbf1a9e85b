package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hashipost/hashipost/internal/service"
	"github.com/hashipost/hashipost/internal/transfer"
)

const historyLimit = 20

type PublishHandler struct {
	s service.PublishService
}

func NewPublishHandler(s service.PublishService) *PublishHandler {
	return &PublishHandler{s: s}
}

// PublishHandler fans the post out to the selected platforms and returns the
// per-platform outcome. Partial failure still comes back 200 with success
// false; only a rejected request or a storage error is an HTTP error.
func (h *PublishHandler) PublishHandler(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	resp, err := h.s.Publish(c.Context(), userID, &req)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PublishHandler) HistoryHandler(c *fiber.Ctx) error {
	userID := GetUserID(c)

	posts, err := h.s.History(c.Context(), userID, historyLimit)
	if err != nil {
		return jsonError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}
