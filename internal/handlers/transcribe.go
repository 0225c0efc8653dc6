package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/engine"
	"github.com/courtflow/media-transcription/internal/queue"
	"github.com/courtflow/media-transcription/internal/record"
)

// Enqueuer is the slice of the worker pool the trigger needs.
type Enqueuer interface {
	Enqueue(job *queue.Job) bool
}

// TranscribeHandler turns a trigger request into a queued job. The same
// handler serves first attempts and re-transcriptions of failed records;
// the repository's claim guard decides which transitions are legal.
type TranscribeHandler struct {
	repo     record.Repository
	pool     Enqueuer
	language string
	log      *logrus.Logger
}

// NewTranscribeHandler creates the trigger handler.
func NewTranscribeHandler(repo record.Repository, pool Enqueuer, language string, log *logrus.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		repo:     repo,
		pool:     pool,
		language: language,
		log:      log,
	}
}

// transcribeRequest carries optional engine overrides. Compressed uploads
// often lie about their encoding, so operators can steer the engine here.
type transcribeRequest struct {
	Model        string `json:"model"`
	Encoding     string `json:"encoding"`
	SampleRate   int64  `json:"sample_rate"`
	Language     string `json:"language"`
	Enhanced     *bool  `json:"enhanced"`
	Diarization  bool   `json:"diarization"`
	SpeakerCount int64  `json:"speaker_count"`
	TryVariants  bool   `json:"try_variants"`
}

// Handle validates the trigger and enqueues the job.
func (h *TranscribeHandler) Handle(c *fiber.Ctx) error {
	id := c.Params("id")

	var req transcribeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
				"code":  "ERR_INVALID_BODY",
			})
		}
	}

	media, err := h.repo.ByID(id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Media file not found",
				"code":  "ERR_NOT_FOUND",
			})
		}
		h.log.WithError(err).Error("trigger lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lookup failed",
			"code":  "ERR_DB_FAILED",
		})
	}

	// Advisory pre-check for a friendly response; the conditional update in
	// the worker is the authoritative guard.
	if !media.Transcribable() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "Media file cannot be transcribed in its current state",
			"code":   "ERR_NOT_TRANSCRIBABLE",
			"status": media.Status,
		})
	}

	profile := h.buildProfile(req)
	if !h.pool.Enqueue(queue.NewJob(id, profile, req.TryVariants)) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Transcription queue is full, try again later",
			"code":  "ERR_QUEUE_FULL",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"media_id": id,
		"status":   media.Status,
		"message":  "Transcription queued",
	})
}

func (h *TranscribeHandler) buildProfile(req transcribeRequest) engine.Profile {
	profile := engine.DefaultProfile(h.language)
	if req.Model != "" {
		profile.Model = req.Model
	}
	if req.Encoding != "" {
		profile.Encoding = req.Encoding
	}
	if req.SampleRate != 0 {
		profile.SampleRateHertz = req.SampleRate
	}
	if req.Language != "" {
		profile.LanguageCode = req.Language
	}
	if req.Enhanced != nil {
		profile.UseEnhanced = *req.Enhanced
	}
	if req.Diarization {
		profile.EnableDiarization = true
		profile.SpeakerCount = req.SpeakerCount
	}
	return profile
}
