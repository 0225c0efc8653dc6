package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/cleanup"
)

// CleanupHandler lets an authorized operator run the retention sweep on
// demand. The daily scheduler calls the same job; there is no behavioral
// difference beyond the execute flag.
type CleanupHandler struct {
	job *cleanup.Job
	log *logrus.Logger
}

// NewCleanupHandler creates the manual trigger handler.
func NewCleanupHandler(job *cleanup.Job, log *logrus.Logger) *CleanupHandler {
	return &CleanupHandler{job: job, log: log}
}

type cleanupRequest struct {
	Execute bool `json:"execute"`
}

// Handle runs a sweep. Default is a dry run; deletion is opt-in.
func (h *CleanupHandler) Handle(c *fiber.Ctx) error {
	var req cleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
				"code":  "ERR_INVALID_BODY",
			})
		}
	}

	h.log.WithField("execute", req.Execute).Info("manual retention sweep requested")
	report := h.job.Run(c.Context(), time.Now(), req.Execute)
	return c.JSON(report)
}
