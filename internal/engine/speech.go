package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	speech "google.golang.org/api/speech/v1"
)

// ErrEngineTimeout means the long-running operation never finished within
// the poll budget. Distinct from an empty result, so operators can tell
// "engine never finished" from "engine finished but found nothing".
var ErrEngineTimeout = errors.New("speech operation timed out")

// EmptyResultMessage explains a zero-segment response. Silence, an
// unsupported encoding, and a corrupted container are indistinguishable
// from the response shape alone, so the message names all three.
const EmptyResultMessage = "engine returned no transcript segments: " +
	"source may be silent, in an unsupported encoding, or corrupted"

// Recognition models accepted by the engine.
const (
	ModelDefault     = "default"
	ModelPhoneCall   = "phone_call"
	ModelVideo       = "video"
	ModelLatestLong  = "latest_long"
	ModelLatestShort = "latest_short"
)

// Profile is one engine invocation's configuration. Compressed consumer
// formats frequently misreport their true encoding, and different
// model/encoding combinations yield materially different transcripts on the
// same source, so every knob stays caller-overridable. The adapter never
// auto-detects the right combination itself.
type Profile struct {
	Encoding          string
	SampleRateHertz   int64
	LanguageCode      string
	Model             string
	UseEnhanced       bool
	EnableDiarization bool
	SpeakerCount      int64
	BoostPhrases      []string
}

// DefaultProfile returns the reference configuration: 16-bit linear PCM at
// 16kHz, US English, default acoustic model with the enhanced variant,
// diarization off.
func DefaultProfile(language string) Profile {
	if language == "" {
		language = "en-US"
	}
	return Profile{
		Encoding:        "LINEAR16",
		SampleRateHertz: 16000,
		LanguageCode:    language,
		Model:           ModelDefault,
		UseEnhanced:     true,
	}
}

// Result is the normalized outcome of one invocation. Message is set only
// for the zero-segment case.
type Result struct {
	Transcript      string
	Confidence      float64
	DurationSeconds float64
	SpeakerCount    int64
	Message         string
}

// operationAPI is the slice of the speech service the adapter needs.
// Implemented by speechOperations below and by fakes in tests.
type operationAPI interface {
	Start(ctx context.Context, req *speech.LongRunningRecognizeRequest) (string, error)
	Poll(ctx context.Context, name string) (*speech.Operation, error)
}

// Adapter invokes the long-running recognition operation and normalizes its
// outcome. It never retries; retry policy belongs to the caller.
type Adapter struct {
	ops          operationAPI
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          *logrus.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewAdapter builds an adapter over an initialized speech service.
func NewAdapter(svc *speech.Service, pollInterval, pollTimeout time.Duration, log *logrus.Logger) *Adapter {
	return newAdapter(&speechOperations{svc: svc}, pollInterval, pollTimeout, log)
}

func newAdapter(ops operationAPI, pollInterval, pollTimeout time.Duration, log *logrus.Logger) *Adapter {
	return &Adapter{
		ops:          ops,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		log:          log,
		sleep:        sleepCtx,
	}
}

// Transcribe submits stagedURI for recognition and polls until the
// operation finishes or the poll budget runs out.
func (a *Adapter) Transcribe(ctx context.Context, stagedURI string, profile Profile) (*Result, error) {
	req := &speech.LongRunningRecognizeRequest{
		Config: recognitionConfig(profile),
		Audio:  &speech.RecognitionAudio{Uri: stagedURI},
	}

	opName, err := a.ops.Start(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit recognition: %w", err)
	}

	a.log.WithFields(logrus.Fields{
		"operation": opName,
		"model":     profile.Model,
		"encoding":  profile.Encoding,
	}).Info("recognition operation started")

	deadline := time.Now().Add(a.pollTimeout)
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %s (operation %s)", ErrEngineTimeout, a.pollTimeout, opName)
		}
		if err := a.sleep(ctx, a.pollInterval); err != nil {
			return nil, err
		}

		op, err := a.ops.Poll(ctx, opName)
		if err != nil {
			return nil, fmt.Errorf("poll operation %s: %w", opName, err)
		}
		if !op.Done {
			continue
		}
		if op.Error != nil {
			return nil, fmt.Errorf("engine error %d: %s", op.Error.Code, op.Error.Message)
		}
		return decodeResponse(op.Response)
	}
}

// recognitionConfig maps a Profile onto the wire config. The legal
// vocabulary is always injected regardless of caller-supplied phrases.
func recognitionConfig(p Profile) *speech.RecognitionConfig {
	model := p.Model
	if model == "" {
		model = ModelDefault
	}

	cfg := &speech.RecognitionConfig{
		Encoding:                   p.Encoding,
		SampleRateHertz:            p.SampleRateHertz,
		LanguageCode:               p.LanguageCode,
		Model:                      model,
		UseEnhanced:                p.UseEnhanced,
		EnableAutomaticPunctuation: true,
		SpeechContexts: []*speech.SpeechContext{
			{Phrases: legalVocabulary, Boost: vocabularyBoost},
		},
	}

	if len(p.BoostPhrases) > 0 {
		cfg.SpeechContexts = append(cfg.SpeechContexts, &speech.SpeechContext{
			Phrases: p.BoostPhrases,
			Boost:   vocabularyBoost,
		})
	}

	if p.EnableDiarization {
		count := p.SpeakerCount
		if count < 2 {
			count = 2
		}
		cfg.DiarizationConfig = &speech.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          2,
			MaxSpeakerCount:          count,
		}
	}

	return cfg
}

// decodeResponse turns the raw operation response into a Result. A
// zero-segment response is a completed recognition with an explanatory
// message, not an error.
func decodeResponse(raw []byte) (*Result, error) {
	var resp speech.LongRunningRecognizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode recognition response: %w", err)
	}

	if len(resp.Results) == 0 {
		return &Result{Message: EmptyResultMessage}, nil
	}

	var (
		parts      []string
		confidence float64
		segments   int
		duration   float64
	)
	for _, res := range resp.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		alt := res.Alternatives[0]
		if alt.Transcript != "" {
			parts = append(parts, strings.TrimSpace(alt.Transcript))
		}
		confidence += alt.Confidence
		segments++
		if secs := parseEndTime(res.ResultEndTime); secs > duration {
			duration = secs
		}
	}

	result := &Result{
		Transcript:      strings.Join(parts, " "),
		DurationSeconds: duration,
	}
	if segments > 0 {
		result.Confidence = confidence / float64(segments)
	}
	if result.Transcript == "" {
		result.Message = EmptyResultMessage
	}
	return result, nil
}

// parseEndTime parses durations like "123.500s" from the response.
func parseEndTime(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "s")
	if s == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return secs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// speechOperations is the production operationAPI over the REST service.
type speechOperations struct {
	svc *speech.Service
}

func (s *speechOperations) Start(ctx context.Context, req *speech.LongRunningRecognizeRequest) (string, error) {
	op, err := s.svc.Speech.Longrunningrecognize(req).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return op.Name, nil
}

func (s *speechOperations) Poll(ctx context.Context, name string) (*speech.Operation, error) {
	return s.svc.Operations.Get(name).Context(ctx).Do()
}
