package types

// Transcription status constants. These are the only values ever persisted
// in media_files.status.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Media kind constants
const (
	KindAudio = "audio"
	KindVideo = "video"
)

// TerminalStatus reports whether a status can no longer change without an
// explicit operator action (re-transcription or administrative delete).
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
