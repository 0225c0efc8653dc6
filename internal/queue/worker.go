package queue

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/pipeline"
	"github.com/courtflow/media-transcription/internal/record"
)

// WorkerPool runs transcription jobs on a fixed set of workers. Workers are
// stateless; everything they coordinate on lives in the record store.
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	processor   *pipeline.Processor
	log         *logrus.Logger
	wg          sync.WaitGroup
}

// NewWorkerPool creates a pool draining into the given processor.
func NewWorkerPool(workerCount int, processor *pipeline.Processor, log *logrus.Logger) *WorkerPool {
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		processor:   processor,
		log:         log,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	wp.log.WithField("workers", wp.workerCount).Info("starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	wp.log.Info("worker pool stopped")
}

// Enqueue adds a job. Returns false if the queue is full, so callers can
// report backpressure instead of blocking a request.
func (wp *WorkerPool) Enqueue(job *Job) bool {
	select {
	case wp.jobQueue <- job:
		wp.log.WithField("media_id", job.MediaID).Info("transcription job enqueued")
		return true
	default:
		wp.log.WithField("media_id", job.MediaID).Warn("job queue full, rejecting")
		return false
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.WithField("worker", id)
	log.Debug("worker started")

	for job := range wp.jobQueue {
		wp.runJob(id, job)
	}
}

// runJob executes one job with panic recovery: a panicking job marks its
// record failed instead of taking the worker down.
func (wp *WorkerPool) runJob(workerID int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			wp.log.WithFields(logrus.Fields{
				"worker":   workerID,
				"media_id": job.MediaID,
			}).Errorf("panic in transcription job: %v\n%s", r, debug.Stack())
			wp.processor.MarkFailedAfterPanic(job.MediaID, r)
		}
	}()

	err := wp.processor.Process(context.Background(), job.MediaID, job.Profile, job.TryVariants)
	if err != nil && !errors.Is(err, record.ErrNotClaimable) {
		// Claim races with a concurrent trigger are expected; anything
		// else here means the record never entered processing.
		wp.log.WithError(err).WithField("media_id", job.MediaID).Error("job could not start")
	}
}
