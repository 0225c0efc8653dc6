package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/record"
	"github.com/courtflow/media-transcription/internal/types"
)

// StatusStreamHandler pushes a record's status over a WebSocket until it
// reaches a terminal state, so the portal can show live transcription
// progress without polling the REST endpoint itself.
type StatusStreamHandler struct {
	repo         record.Repository
	pollInterval time.Duration
	maxLifetime  time.Duration
	log          *logrus.Logger
}

// NewStatusStreamHandler creates the stream handler.
func NewStatusStreamHandler(repo record.Repository, log *logrus.Logger) *StatusStreamHandler {
	return &StatusStreamHandler{
		repo:         repo,
		pollInterval: time.Second,
		maxLifetime:  time.Hour,
		log:          log,
	}
}

type statusUpdate struct {
	MediaID      string  `json:"media_id"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// statusConn is the slice of *websocket.Conn the stream loop uses.
type statusConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handle streams status changes for the record in the :id route param.
func (h *StatusStreamHandler) Handle(c *websocket.Conn) {
	h.stream(c, c.Params("id"))
}

// stream polls the record and pushes each status change. It exits when the
// record reaches a terminal state, the client disconnects, or the lifetime
// cap elapses.
func (h *StatusStreamHandler) stream(c statusConn, id string) {
	defer c.Close()

	log := h.log.WithField("media_id", id)
	log.Debug("status stream opened")

	// Clients send no messages; the read exists to surface a dropped
	// connection, which otherwise goes unnoticed while the status is
	// unchanged. The deferred Close unblocks the read on our own exit.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	deadline := time.After(h.maxLifetime)

	var lastStatus string
	for {
		media, err := h.repo.ByID(id)
		if err != nil {
			c.WriteMessage(websocket.TextMessage, []byte(`{"error":"media file not found"}`))
			return
		}

		if media.Status != lastStatus {
			lastStatus = media.Status
			payload, err := json.Marshal(statusUpdate{
				MediaID:      media.ID,
				Status:       media.Status,
				ErrorMessage: media.ErrorMessage,
			})
			if err != nil {
				log.WithError(err).Warn("could not marshal status update")
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.WithError(err).Debug("status stream client gone")
				return
			}
		}

		if types.TerminalStatus(media.Status) {
			return
		}

		select {
		case <-gone:
			log.Debug("status stream client closed")
			return
		case <-deadline:
			log.Debug("status stream lifetime cap reached")
			return
		case <-ticker.C:
		}
	}
}
