package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Transcriber is the single-shot engine surface the variant runner layers
// over. Satisfied by *Adapter.
type Transcriber interface {
	Transcribe(ctx context.Context, stagedURI string, profile Profile) (*Result, error)
}

// VariantRunner tries a ranked list of profiles in sequence and stops at
// the first result that clears the confidence threshold with a non-empty
// transcript. It exists because the adapter deliberately does not guess
// which model/encoding combination suits a given source; this is the
// explicit exploration policy layered on top.
type VariantRunner struct {
	engine    Transcriber
	threshold float64
	log       *logrus.Logger
}

// NewVariantRunner builds a runner. Results at or above threshold are
// accepted immediately.
func NewVariantRunner(engine Transcriber, threshold float64, log *logrus.Logger) *VariantRunner {
	return &VariantRunner{engine: engine, threshold: threshold, log: log}
}

// Run executes the profiles in rank order. If no variant clears the
// threshold, the best non-empty result seen is returned. An error is
// returned only when every variant errored.
func (r *VariantRunner) Run(ctx context.Context, stagedURI string, profiles []Profile) (*Result, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no variant profiles given")
	}

	var (
		best    *Result
		lastErr error
	)
	for i, profile := range profiles {
		result, err := r.engine.Transcribe(ctx, stagedURI, profile)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.WithError(err).WithField("variant", i).Warn("variant attempt failed")
			lastErr = err
			continue
		}

		if result.Transcript != "" && result.Confidence >= r.threshold {
			r.log.WithFields(logrus.Fields{
				"variant":    i,
				"confidence": result.Confidence,
			}).Info("variant cleared threshold")
			return result, nil
		}
		if best == nil || betterResult(result, best) {
			best = result
		}
	}

	if best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("all variants failed: %w", lastErr)
}

func betterResult(a, b *Result) bool {
	if (a.Transcript != "") != (b.Transcript != "") {
		return a.Transcript != ""
	}
	return a.Confidence > b.Confidence
}

// DefaultVariants is the reference exploration order for sources whose
// container metadata cannot be trusted: the caller's profile as-is, the
// long-form model, then letting the engine sniff the encoding itself.
func DefaultVariants(base Profile) []Profile {
	long := base
	long.Model = ModelLatestLong

	sniff := base
	sniff.Encoding = "ENCODING_UNSPECIFIED"
	sniff.SampleRateHertz = 0

	return []Profile{base, long, sniff}
}
