package cleanup

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler runs the retention job on a fixed interval, daily by default.
// Overlapping runs are safe (each record's deletion is idempotent), but the
// ticker makes them unlikely anyway.
type Scheduler struct {
	job      *Job
	interval time.Duration
	log      *logrus.Logger
	stopChan chan struct{}
}

// NewScheduler wraps a retention job with a periodic trigger.
func NewScheduler(job *Job, interval time.Duration, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic executing runs. The first sweep happens after one
// interval, not at startup, so a crash-looping process cannot hammer the
// store.
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.job.Run(context.Background(), time.Now(), true)
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.WithField("interval", s.interval).Info("retention scheduler started")
}

// Stop halts the periodic trigger. An in-flight sweep finishes on its own.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.log.Info("retention scheduler stopped")
}
