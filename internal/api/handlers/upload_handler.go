package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/hashipost/hashipost/internal/service"
)

type UploadHandler struct {
	s service.MediaService
}

func NewUploadHandler(s service.MediaService) *UploadHandler {
	return &UploadHandler{s: s}
}

// UploadHandler accepts one multipart file, stores it on R2, and returns the
// public URL the publish request should reference.
func (h *UploadHandler) UploadHandler(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing file",
		})
	}

	resp, err := h.s.Upload(c.Context(), file)
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// DeleteHandler removes an uploaded object by the key returned from upload.
func (h *UploadHandler) DeleteHandler(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing file key",
		})
	}

	if err := h.s.Remove(c.Context(), key); err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not delete file",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
