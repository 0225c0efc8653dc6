package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/engine"
	"github.com/courtflow/media-transcription/internal/primarystore"
	"github.com/courtflow/media-transcription/internal/record"
)

// Bridge is the staging surface the processor drives. Satisfied by
// *staging.Bridge.
type Bridge interface {
	Stage(ctx context.Context, sourceURL, filename string) (string, error)
	Unstage(ctx context.Context, stagedURI string)
}

// Processor runs one record's transcription attempt end to end:
// claim -> sign -> stage -> transcribe -> unstage -> commit. Each invocation
// is an independent unit of work; all coordination happens through the
// persisted status.
type Processor struct {
	repo      record.Repository
	store     primarystore.Store
	bridge    Bridge
	engine    engine.Transcriber
	variants  *engine.VariantRunner
	retention time.Duration
	log       *logrus.Logger
	now       func() time.Time
}

// NewProcessor wires the pipeline. variants may be nil, in which case
// TryVariants jobs fall back to a single shot.
func NewProcessor(
	repo record.Repository,
	store primarystore.Store,
	bridge Bridge,
	eng engine.Transcriber,
	variants *engine.VariantRunner,
	retention time.Duration,
	log *logrus.Logger,
) *Processor {
	return &Processor{
		repo:      repo,
		store:     store,
		bridge:    bridge,
		engine:    eng,
		variants:  variants,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Process executes one transcription attempt. Claim failures propagate to
// the caller (the trigger endpoint turns them into a 409); every error after
// a successful claim is converted into a failed state transition and logged,
// never returned, so the upload/trigger caller never sees an unhandled
// fault. A nil error therefore means the record reached a terminal state.
func (p *Processor) Process(ctx context.Context, mediaID string, profile engine.Profile, tryVariants bool) error {
	media, err := p.repo.ByID(mediaID)
	if err != nil {
		return err
	}

	if err := p.repo.ClaimForProcessing(mediaID, p.now()); err != nil {
		return err
	}

	log := p.log.WithFields(logrus.Fields{
		"media_id": mediaID,
		"file":     media.OriginalFilename,
	})

	sourceURL, err := p.store.SignedGetURL(ctx, media.StoragePath)
	if err != nil {
		p.fail(mediaID, fmt.Sprintf("could not sign source URL: %v", err), log)
		return nil
	}

	stagedURI, err := p.bridge.Stage(ctx, sourceURL, media.OriginalFilename)
	if err != nil {
		p.fail(mediaID, fmt.Sprintf("staging failed: %v", err), log)
		return nil
	}
	// Exactly one unstage per successful stage, on every outcome including
	// panics unwinding through here.
	defer p.bridge.Unstage(ctx, stagedURI)

	result, err := p.transcribe(ctx, stagedURI, profile, tryVariants)
	if err != nil {
		p.fail(mediaID, fmt.Sprintf("transcription failed: %v", err), log)
		return nil
	}

	if result.Transcript == "" {
		// Zero segments: silence, unsupported encoding and corruption are
		// indistinguishable here. Failed but retriable.
		p.fail(mediaID, result.Message, log)
		return nil
	}

	if err := p.repo.MarkCompleted(mediaID, result.Transcript, result.Confidence, result.DurationSeconds, p.now(), p.retention); err != nil {
		log.WithError(err).Error("could not commit completed transcription")
		return nil
	}

	log.WithFields(logrus.Fields{
		"confidence": result.Confidence,
		"characters": len(result.Transcript),
	}).Info("transcription completed")
	return nil
}

func (p *Processor) transcribe(ctx context.Context, stagedURI string, profile engine.Profile, tryVariants bool) (*engine.Result, error) {
	if tryVariants && p.variants != nil {
		return p.variants.Run(ctx, stagedURI, engine.DefaultVariants(profile))
	}
	return p.engine.Transcribe(ctx, stagedURI, profile)
}

func (p *Processor) fail(mediaID, message string, log *logrus.Entry) {
	log.Warn(message)
	if err := p.repo.MarkFailed(mediaID, message, p.now()); err != nil && !errors.Is(err, record.ErrInvalidTransition) {
		log.WithError(err).Error("could not record failure")
	}
}

// MarkFailedAfterPanic is the worker's last resort when a job panics. The
// staged copy, if any, was already removed by the defer in Process.
func (p *Processor) MarkFailedAfterPanic(mediaID string, recovered any) {
	msg := fmt.Sprintf("internal error during transcription: %v", recovered)
	if err := p.repo.MarkFailed(mediaID, msg, p.now()); err != nil {
		p.log.WithError(err).WithField("media_id", mediaID).Error("could not record panic failure")
	}
}
