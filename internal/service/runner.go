package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Job identifies one scoring run over a staged upload.
type Job struct {
	AnalysisID string
	FilePath   string
}

// Runner executes scoring jobs on a fixed worker pool behind a bounded
// queue. A job is submitted exactly once per analysis id, so work for
// one record is sequential while different records may run
// concurrently. The completion signal is the record's status
// transition in the store.
type Runner struct {
	jobs    chan Job
	process func(ctx context.Context, job Job)
	workers int
	log     *logrus.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewRunner creates a runner. process is invoked once per job and must
// leave the analysis in a terminal state itself.
func NewRunner(workers, queueSize int, process func(ctx context.Context, job Job), logger *logrus.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Runner{
		jobs:    make(chan Job, queueSize),
		process: process,
		workers: workers,
		log:     logger,
	}
}

// Start launches the worker pool. Workers drain the queue until Stop
// is called.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		// Stop drains the queue during shutdown, after ctx is already
		// cancelled. Jobs still have to reach a terminal state in the
		// store, so workers keep a context that survives cancellation.
		jobCtx := context.WithoutCancel(ctx)

		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go func(worker int) {
				defer r.wg.Done()
				for job := range r.jobs {
					r.log.WithFields(logrus.Fields{
						"worker":      worker,
						"analysis_id": job.AnalysisID,
					}).Debug("Picked up scoring job")
					r.process(jobCtx, job)
				}
			}(i)
		}
		r.log.WithField("workers", r.workers).Info("Scoring runner started")
	})
}

// Submit enqueues a job without blocking. A full queue is reported to
// the caller rather than waited out.
func (r *Runner) Submit(job Job) error {
	select {
	case r.jobs <- job:
		return nil
	default:
		return fmt.Errorf("scoring queue is full")
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.jobs)
		r.wg.Wait()
		r.log.Info("Scoring runner stopped")
	})
}
