package handlers

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/primarystore"
	"github.com/courtflow/media-transcription/internal/record"
	"github.com/courtflow/media-transcription/internal/validate"
)

// UploadHandler receives evidence files, runs the validation gate, writes
// the binary to the primary store and creates the pending record. It never
// starts transcription; that is the trigger endpoint's job.
type UploadHandler struct {
	repo    record.Repository
	store   primarystore.Store
	maxSize int64
	log     *logrus.Logger
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(repo record.Repository, store primarystore.Store, maxSize int64, log *logrus.Logger) *UploadHandler {
	return &UploadHandler{
		repo:    repo,
		store:   store,
		maxSize: maxSize,
		log:     log,
	}
}

// Handle processes the multipart upload request.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	mimeType := file.Header.Get("Content-Type")
	if verdict := validate.Check(file.Size, mimeType, h.maxSize); !verdict.OK {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": verdict.Reason,
			"code":  "ERR_VALIDATION",
		})
	}

	kind, _ := validate.KindForMIME(mimeType)

	id := uuid.New().String()
	storagePath := fmt.Sprintf("media/%s%s", id, filepath.Ext(file.Filename))

	src, err := file.Open()
	if err != nil {
		h.log.WithError(err).Error("could not open uploaded file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
			"code":  "ERR_READ_FAILED",
		})
	}
	defer src.Close()

	if err := h.store.Put(c.Context(), storagePath, src, mimeType); err != nil {
		h.log.WithError(err).Error("could not store uploaded file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store file",
			"code":  "ERR_STORE_FAILED",
		})
	}

	// Duration is a bitrate-based estimate until (if ever) something probes
	// the container for real.
	estimate := validate.EstimateDuration(file.Size, kind)

	media := &record.MediaFile{
		ID:               id,
		OriginalFilename: file.Filename,
		CustomFilename:   optionalForm(c, "custom_name"),
		StoragePath:      storagePath,
		MediaKind:        kind,
		SizeBytes:        file.Size,
		DurationSeconds:  &estimate,
		CaseID:           optionalForm(c, "case_id"),
		UploadedBy:       uploader(c),
		CreatedAt:        time.Now().UTC(),
	}
	media.UpdatedAt = media.CreatedAt

	if err := h.repo.Create(media); err != nil {
		h.log.WithError(err).Error("could not create media record")
		// Best-effort rollback of the stored binary.
		if delErr := h.store.Delete(c.Context(), storagePath); delErr != nil {
			h.log.WithError(delErr).WithField("path", storagePath).Warn("orphaned binary after failed insert")
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create record",
			"code":  "ERR_DB_FAILED",
		})
	}

	h.log.WithFields(logrus.Fields{
		"media_id": id,
		"kind":     kind,
		"size":     file.Size,
	}).Info("media uploaded")

	return c.Status(fiber.StatusAccepted).JSON(media)
}

func optionalForm(c *fiber.Ctx, key string) *string {
	v := c.FormValue(key)
	if v == "" {
		return nil
	}
	return &v
}

func uploader(c *fiber.Ctx) string {
	if v := c.Get("X-Uploaded-By"); v != "" {
		return v
	}
	if v := c.FormValue("uploaded_by"); v != "" {
		return v
	}
	return "unknown"
}
