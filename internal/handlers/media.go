package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/primarystore"
	"github.com/courtflow/media-transcription/internal/record"
)

// MediaHandler serves record reads, display-metadata updates and the
// administrative delete.
type MediaHandler struct {
	repo  record.Repository
	store primarystore.Store
	log   *logrus.Logger
}

// NewMediaHandler creates the record CRUD handler.
func NewMediaHandler(repo record.Repository, store primarystore.Store, log *logrus.Logger) *MediaHandler {
	return &MediaHandler{repo: repo, store: store, log: log}
}

// List returns the newest records first.
func (h *MediaHandler) List(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	files, err := h.repo.List(limit)
	if err != nil {
		h.log.WithError(err).Error("list media failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lookup failed",
			"code":  "ERR_DB_FAILED",
		})
	}
	return c.JSON(files)
}

// Get returns one record. Status and error_message are always readable, so
// operators can see where a pipeline run ended up.
func (h *MediaHandler) Get(c *fiber.Ctx) error {
	media, err := h.repo.ByID(c.Params("id"))
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media file not found",
				"code":  "ERR_NOT_FOUND",
			})
		}
		h.log.WithError(err).Error("get media failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lookup failed",
			"code":  "ERR_DB_FAILED",
		})
	}
	return c.JSON(media)
}

// updateRequest carries the only fields CRUD flows are allowed to touch.
type updateRequest struct {
	CustomFilename *string `json:"custom_filename"`
	CaseID         *string `json:"case_id"`
}

// Update changes display metadata only. Lifecycle fields are off limits to
// this endpoint by construction.
func (h *MediaHandler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	id := c.Params("id")
	if err := h.repo.UpdateDisplay(id, req.CustomFilename, req.CaseID); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media file not found",
				"code":  "ERR_NOT_FOUND",
			})
		}
		h.log.WithError(err).Error("update media failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Update failed",
			"code":  "ERR_DB_FAILED",
		})
	}

	media, err := h.repo.ByID(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lookup failed",
			"code":  "ERR_DB_FAILED",
		})
	}
	return c.JSON(media)
}

// Delete is the explicit administrative delete: it removes the stored
// binary too, unless the retention job already did.
func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	media, err := h.repo.ByID(id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media file not found",
				"code":  "ERR_NOT_FOUND",
			})
		}
		h.log.WithError(err).Error("delete lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lookup failed",
			"code":  "ERR_DB_FAILED",
		})
	}

	if !media.BinaryDeleted {
		if err := h.store.Delete(c.Context(), media.StoragePath); err != nil {
			h.log.WithError(err).WithField("path", media.StoragePath).Error("could not delete binary")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to delete stored binary",
				"code":  "ERR_STORE_FAILED",
			})
		}
	}

	if err := h.repo.Delete(id); err != nil {
		h.log.WithError(err).Error("delete record failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete record",
			"code":  "ERR_DB_FAILED",
		})
	}

	h.log.WithField("media_id", id).Info("media deleted by operator")
	return c.JSON(fiber.Map{"deleted": id})
}
