package engine

import (
	"context"
	"errors"
	"testing"
)

// scriptedEngine returns canned results per call.
type scriptedEngine struct {
	results []*Result
	errs    []error
	calls   int
}

func (s *scriptedEngine) Transcribe(ctx context.Context, uri string, p Profile) (*Result, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.results[i], nil
}

func TestVariantRunnerStopsAtThreshold(t *testing.T) {
	eng := &scriptedEngine{results: []*Result{
		{Transcript: "low quality", Confidence: 0.40},
		{Transcript: "good quality", Confidence: 0.91},
		{Transcript: "never reached", Confidence: 0.99},
	}}

	runner := NewVariantRunner(eng, 0.85, quietLogger())
	result, err := runner.Run(context.Background(), "gs://b/o", DefaultVariants(DefaultProfile("en-US")))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Transcript != "good quality" {
		t.Fatalf("transcript = %q", result.Transcript)
	}
	if eng.calls != 2 {
		t.Fatalf("calls = %d, want 2 (stop at first clearing variant)", eng.calls)
	}
}

func TestVariantRunnerReturnsBestWhenNoneClears(t *testing.T) {
	eng := &scriptedEngine{results: []*Result{
		{Transcript: "", Confidence: 0, Message: EmptyResultMessage},
		{Transcript: "partial", Confidence: 0.55},
		{Transcript: "weaker", Confidence: 0.30},
	}}

	runner := NewVariantRunner(eng, 0.85, quietLogger())
	result, err := runner.Run(context.Background(), "gs://b/o", DefaultVariants(DefaultProfile("en-US")))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Transcript != "partial" {
		t.Fatalf("best transcript = %q", result.Transcript)
	}
	if eng.calls != 3 {
		t.Fatalf("calls = %d, want 3", eng.calls)
	}
}

func TestVariantRunnerAllErrored(t *testing.T) {
	engineErr := errors.New("backend exploded")
	eng := &scriptedEngine{
		results: []*Result{nil, nil, nil},
		errs:    []error{engineErr, engineErr, engineErr},
	}

	runner := NewVariantRunner(eng, 0.85, quietLogger())
	if _, err := runner.Run(context.Background(), "gs://b/o", DefaultVariants(DefaultProfile("en-US"))); !errors.Is(err, engineErr) {
		t.Fatalf("err = %v, want wrapped engine error", err)
	}
}

func TestDefaultVariantsOrder(t *testing.T) {
	base := DefaultProfile("en-US")
	variants := DefaultVariants(base)
	if len(variants) != 3 {
		t.Fatalf("variant count = %d", len(variants))
	}
	if variants[0].Model != base.Model || variants[0].Encoding != base.Encoding {
		t.Fatal("first variant must be the caller's profile unchanged")
	}
	if variants[1].Model != ModelLatestLong {
		t.Fatalf("second variant model = %q", variants[1].Model)
	}
	if variants[2].Encoding != "ENCODING_UNSPECIFIED" || variants[2].SampleRateHertz != 0 {
		t.Fatalf("third variant = %+v", variants[2])
	}
}
