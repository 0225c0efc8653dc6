package cleanup

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/primarystore"
	"github.com/courtflow/media-transcription/internal/record"
)

// Failure is one record the batch could not clean. The record stays
// eligible and is retried on the next run.
type Failure struct {
	MediaID string `json:"media_id"`
	Path    string `json:"path"`
	Reason  string `json:"reason"`
}

// Report summarizes one retention batch run.
type Report struct {
	DryRun    bool      `json:"dry_run"`
	Cutoff    time.Time `json:"cutoff"`
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Failures  []Failure `json:"failures"`

	// Candidates is populated on dry runs so operators can see what an
	// executing run would delete.
	Candidates []string `json:"candidates,omitempty"`
}

// Job permanently deletes source binaries whose retention window has
// elapsed, keeping transcripts and metadata. Safe to run repeatedly: the
// candidate query excludes anything already cleaned, and deleting an
// already-absent object is not an error.
type Job struct {
	repo      record.Repository
	store     primarystore.Store
	retention time.Duration
	log       *logrus.Logger
}

// NewJob builds a retention job with the given window.
func NewJob(repo record.Repository, store primarystore.Store, retention time.Duration, log *logrus.Logger) *Job {
	return &Job{
		repo:      repo,
		store:     store,
		retention: retention,
		log:       log,
	}
}

// Run executes one batch. Dry runs enumerate without deleting; executing
// runs delete the binary then flip the record's flag. Both compute the same
// cutoff from now. Per-record failures never abort the batch.
func (j *Job) Run(ctx context.Context, now time.Time, execute bool) Report {
	cutoff := now.Add(-j.retention)
	report := Report{DryRun: !execute, Cutoff: cutoff}

	candidates, err := j.repo.CleanupCandidates(cutoff)
	if err != nil {
		j.log.WithError(err).Error("retention sweep: could not enumerate candidates")
		report.Failures = append(report.Failures, Failure{Reason: "enumerate candidates: " + err.Error()})
		return report
	}

	report.Attempted = len(candidates)

	if !execute {
		for _, m := range candidates {
			report.Candidates = append(report.Candidates, m.ID)
		}
		j.log.WithFields(logrus.Fields{
			"candidates": len(candidates),
			"cutoff":     cutoff,
		}).Info("retention dry run")
		return report
	}

	for _, m := range candidates {
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, Failure{MediaID: m.ID, Path: m.StoragePath, Reason: err.Error()})
			continue
		}
		if err := j.cleanOne(ctx, m); err != nil {
			j.log.WithError(err).WithField("media_id", m.ID).Warn("retention sweep: record skipped")
			report.Failures = append(report.Failures, Failure{MediaID: m.ID, Path: m.StoragePath, Reason: err.Error()})
			continue
		}
		report.Succeeded++
	}

	j.log.WithFields(logrus.Fields{
		"attempted": report.Attempted,
		"succeeded": report.Succeeded,
		"failed":    len(report.Failures),
	}).Info("retention sweep complete")
	return report
}

// cleanOne deletes the stored binary, then marks the record. Order matters:
// the flag only flips after the object is gone, so a crash in between leaves
// the record eligible for the next run rather than silently orphaned.
func (j *Job) cleanOne(ctx context.Context, m *record.MediaFile) error {
	if err := j.store.Delete(ctx, m.StoragePath); err != nil {
		return err
	}
	return j.repo.MarkBinaryDeleted(m.ID, time.Now())
}
