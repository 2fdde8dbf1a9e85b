package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hashipost/hashipost/internal/transfer"
)

// jsonError maps service sentinels onto HTTP statuses so every handler
// reports failures the same way. Upstream failures (exchange, refresh,
// upload) are 500s that keep the platform's error description in the body;
// only errors outside the taxonomy get the generic body, since those can
// carry internals like SQL state.
func jsonError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	known := false

	switch {
	case errors.Is(err, transfer.ErrUnauthorized):
		status, known = fiber.StatusUnauthorized, true
	case errors.Is(err, transfer.ErrInvalidPost),
		errors.Is(err, transfer.ErrNoPlatformsSelected),
		errors.Is(err, transfer.ErrUnsupportedPlatform),
		errors.Is(err, transfer.ErrAuthStateMismatch),
		errors.Is(err, transfer.ErrNoRefreshToken):
		status, known = fiber.StatusBadRequest, true
	case errors.Is(err, transfer.ErrAccountNotFound),
		errors.Is(err, transfer.ErrProfileNotFound):
		status, known = fiber.StatusNotFound, true
	case errors.Is(err, transfer.ErrTokenExchangeFailed),
		errors.Is(err, transfer.ErrRefreshFailed),
		errors.Is(err, transfer.ErrUploadFailed),
		errors.Is(err, transfer.ErrUploadTimeout):
		known = true
	}

	if !known {
		slog.Info(err.Error())
		return c.Status(status).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
