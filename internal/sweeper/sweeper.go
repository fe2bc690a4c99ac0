// Package sweeper reclaims job records and artifacts past the retention window.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/internal/workspace"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgtovideo_sweep_runs_total",
		Help: "Total number of expiry sweeps",
	})

	sweepJobsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgtovideo_sweep_jobs_removed_total",
		Help: "Total number of job records removed by the sweeper",
	})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgtovideo_sweep_errors_total",
		Help: "Total number of errors while reclaiming jobs",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imgtovideo_sweep_duration_seconds",
		Help:    "Duration of an expiry sweep in seconds",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Result summarizes one sweep.
type Result struct {
	Scanned  int
	Removed  int
	Errors   int
	Duration time.Duration
}

// Sweeper periodically deletes every job older than the retention window,
// whatever its status.
type Sweeper struct {
	store     store.JobStore
	layout    *workspace.Layout
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex // serializes RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper.
func New(s store.JobStore, layout *workspace.Layout, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     s,
		layout:    layout,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "sweeper")),
		now:       time.Now,
	}
}

// Start runs the sweep loop in the background until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("retention", s.retention),
	)
}

// Stop stops the loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. A job is reclaimed when its age is
// strictly greater than the retention window.
func (s *Sweeper) RunOnce(ctx context.Context) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &Result{}

	jobs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		result.Errors++
		sweepErrorsTotal.Inc()
		return result
	}
	result.Scanned = len(jobs)

	cutoff := s.now().Add(-s.retention)
	for _, job := range jobs {
		if !job.CreatedAt.Before(cutoff) {
			continue
		}
		result.Errors += s.reclaim(ctx, job)
		result.Removed++
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepJobsRemovedTotal.Add(float64(result.Removed))
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.Removed > 0 || result.Errors > 0 {
		s.logger.Info("sweep finished",
			slog.Int("scanned", result.Scanned),
			slog.Int("removed", result.Removed),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}
	return result
}

// reclaim removes a job's files and record, returning the number of file errors.
func (s *Sweeper) reclaim(ctx context.Context, job store.Job) int {
	errs := 0
	log := s.logger.With(slog.String("job_id", job.ID), slog.String("status", string(job.Status)))

	if err := s.layout.RemoveOutput(job.ID); err != nil {
		log.Warn("failed to remove output", slog.String("error", err.Error()))
		errs++
	}
	if err := s.layout.RemoveInputs(job.ID); err != nil {
		log.Warn("failed to remove inputs", slog.String("error", err.Error()))
		errs++
	}
	if err := s.store.Delete(ctx, job.ID); err != nil {
		log.Warn("failed to delete job record", slog.String("error", err.Error()))
		errs++
	}

	log.Debug("job reclaimed", slog.Time("created_at", job.CreatedAt))
	return errs
}
