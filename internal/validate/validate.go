package validate

import (
	"fmt"
	"strings"

	"github.com/courtflow/media-transcription/internal/types"
)

// Verdict is the outcome of the upload gate. Reason is human-readable and
// only set when OK is false.
type Verdict struct {
	OK     bool
	Reason string
}

// allowedMIMETypes maps accepted container types to their media kind.
// Covers the audio/video containers courts actually upload; anything else
// is rejected before any state exists.
var allowedMIMETypes = map[string]string{
	"audio/mpeg":     types.KindAudio,
	"audio/mp3":      types.KindAudio,
	"audio/mp4":      types.KindAudio,
	"audio/x-m4a":    types.KindAudio,
	"audio/m4a":      types.KindAudio,
	"audio/wav":      types.KindAudio,
	"audio/x-wav":    types.KindAudio,
	"audio/wave":     types.KindAudio,
	"audio/ogg":      types.KindAudio,
	"audio/webm":     types.KindAudio,
	"audio/flac":     types.KindAudio,
	"audio/aac":      types.KindAudio,
	"audio/x-ms-wma": types.KindAudio,
	"video/mp4":      types.KindVideo,
	"video/quicktime": types.KindVideo,
	"video/webm":     types.KindVideo,
	"video/x-msvideo": types.KindVideo,
	"video/x-ms-wmv": types.KindVideo,
	"video/mpeg":     types.KindVideo,
}

// Check applies the upload constraints. It is pure and total: identical
// (size, mimeType) inputs always produce the same verdict, and it never
// panics on malformed input.
func Check(size int64, mimeType string, maxSize int64) Verdict {
	if size <= 0 {
		return Verdict{Reason: "file is empty"}
	}
	if size > maxSize {
		return Verdict{Reason: fmt.Sprintf("file too large (max %dMB)", maxSize/(1024*1024))}
	}
	if _, ok := allowedMIMETypes[normalizeMIME(mimeType)]; !ok {
		return Verdict{Reason: fmt.Sprintf("unsupported media type %q", mimeType)}
	}
	return Verdict{OK: true}
}

// KindForMIME maps an accepted MIME type to audio or video. Returns false
// for types the gate would reject.
func KindForMIME(mimeType string) (string, bool) {
	kind, ok := allowedMIMETypes[normalizeMIME(mimeType)]
	return kind, ok
}

func normalizeMIME(mimeType string) string {
	// Strip parameters like "; codecs=opus" and normalize case.
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Rough container bitrates used only for the duration estimate below.
const (
	audioBytesPerSecond = 16 * 1024  // ~128kbps audio
	videoBytesPerSecond = 128 * 1024 // ~1Mbps consumer video
)

// EstimateDuration approximates media duration from byte size. This is an
// estimate only, derived from typical container bitrates; it must never be
// treated as authoritative. Probing real container metadata is out of scope.
func EstimateDuration(size int64, kind string) float64 {
	if size <= 0 {
		return 0
	}
	divisor := int64(audioBytesPerSecond)
	if kind == types.KindVideo {
		divisor = videoBytesPerSecond
	}
	return float64(size) / float64(divisor)
}
