// Package tasks runs memory pipeline work in the background. Ingestion
// calls return immediately; summarization, extraction, analysis, and
// consolidation all go through a Runner so their failures are observable
// without ever blocking the foreground path.
package tasks

import (
	"context"
	"log/slog"
	"sync"
)

// Job is a named unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner processes jobs on a fixed worker pool over a bounded queue.
type Runner struct {
	jobs    chan Job
	workers int

	wg      sync.WaitGroup // worker goroutines
	pending sync.WaitGroup // in-flight jobs, for Wait()
}

// NewRunner creates a Runner. Zero values fall back to a queue of 64 and
// 4 workers.
func NewRunner(queueSize, workers int) *Runner {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 4
	}
	return &Runner{
		jobs:    make(chan Job, queueSize),
		workers: workers,
	}
}

// Start launches the worker goroutines.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for job := range r.jobs {
				if ctx.Err() != nil {
					r.pending.Done()
					continue
				}
				r.runJob(ctx, job)
			}
		}()
	}
}

// Dispatch enqueues a job. Non-blocking: when the queue is full the job is
// dropped with a warning, never stalling the caller. Returns whether the
// job was accepted.
func (r *Runner) Dispatch(job Job) bool {
	r.pending.Add(1)
	select {
	case r.jobs <- job:
		return true
	default:
		r.pending.Done()
		slog.Warn("task queue full, dropping job", "job", job.Name)
		return false
	}
}

// Wait blocks until every accepted job has finished. Used by tests and
// clean shutdown for deterministic draining.
func (r *Runner) Wait() {
	r.pending.Wait()
}

// Stop closes the queue, drains remaining jobs, and joins the workers.
func (r *Runner) Stop() {
	close(r.jobs)
	r.wg.Wait()
}

func (r *Runner) runJob(ctx context.Context, job Job) {
	defer r.pending.Done()
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("background task panicked", "job", job.Name, "panic", rec)
		}
	}()

	if err := job.Run(ctx); err != nil {
		slog.Warn("background task failed", "job", job.Name, "error", err)
	}
}
