package record

import (
	"time"

	"github.com/courtflow/media-transcription/internal/types"
)

// MediaFile is one uploaded audio/video asset and its transcription
// lifecycle state. The binary lives in the primary store at StoragePath
// until BinaryDeleted flips; the transcript and metadata outlive it.
type MediaFile struct {
	ID                    string     `db:"id" json:"id"`
	OriginalFilename      string     `db:"original_filename" json:"original_filename"`
	CustomFilename        *string    `db:"custom_filename" json:"custom_filename,omitempty"`
	StoragePath           string     `db:"storage_path" json:"storage_path"`
	MediaKind             string     `db:"media_kind" json:"media_kind"`
	SizeBytes             int64      `db:"size_bytes" json:"size_bytes"`
	DurationSeconds       *float64   `db:"duration_seconds" json:"duration_seconds,omitempty"`
	Transcript            *string    `db:"transcript" json:"transcript,omitempty"`
	TranscriptConfidence  *float64   `db:"transcript_confidence" json:"transcript_confidence,omitempty"`
	Status                string     `db:"status" json:"status"`
	ErrorMessage          *string    `db:"error_message" json:"error_message,omitempty"`
	CaseID                *string    `db:"case_id" json:"case_id,omitempty"`
	UploadedBy            string     `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	TranscribedAt         *time.Time `db:"transcribed_at" json:"transcribed_at,omitempty"`
	TranscriptCompletedAt *time.Time `db:"transcript_completed_at" json:"transcript_completed_at,omitempty"`
	CleanupScheduledAt    *time.Time `db:"cleanup_scheduled_at" json:"cleanup_scheduled_at,omitempty"`
	BinaryDeleted         bool       `db:"binary_deleted" json:"binary_deleted"`
}

// DisplayName returns the operator-facing name for the file.
func (m *MediaFile) DisplayName() string {
	if m.CustomFilename != nil && *m.CustomFilename != "" {
		return *m.CustomFilename
	}
	return m.OriginalFilename
}

// Transcribable reports whether a transcription attempt may start. Mirrors
// the claim guard in the repository; this is the advisory pre-check, the
// conditional UPDATE is the authoritative one.
func (m *MediaFile) Transcribable() bool {
	if m.BinaryDeleted {
		return false
	}
	return m.Status == types.StatusPending || m.Status == types.StatusFailed
}
