package queue

import (
	"time"

	"github.com/courtflow/media-transcription/internal/engine"
)

// Job is one transcription attempt waiting for a worker.
type Job struct {
	MediaID     string
	Profile     engine.Profile
	TryVariants bool
	EnqueuedAt  time.Time
}

// NewJob creates a job for the given record with the given engine profile.
func NewJob(mediaID string, profile engine.Profile, tryVariants bool) *Job {
	return &Job{
		MediaID:     mediaID,
		Profile:     profile,
		TryVariants: tryVariants,
		EnqueuedAt:  time.Now(),
	}
}
