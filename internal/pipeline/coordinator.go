// Package pipeline coordinates a conversion job from submission to a terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/logger"
	"github.com/ShivamThakkar1/imgtovideo/internal/progress"
	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/internal/transcode"
	"github.com/ShivamThakkar1/imgtovideo/internal/workspace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// maxTextLength bounds the per-request overlay text.
const maxTextLength = 120

// Fetcher downloads a source image to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) error
}

// Transcoder renders the video and blocks until the transform is terminal.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request, onProgress func(int)) transcode.Result
}

// Config holds the coordinator's policy knobs.
type Config struct {
	MinDuration       int
	MaxDuration       int
	EstimateFactor    float64
	EstimateOverhead  int
	MaxConcurrentJobs int
	// PublicURL prefixes download links; empty yields relative links.
	PublicURL   string
	OverlayText string
}

// Request is a validated-on-submit conversion request.
type Request struct {
	Image1URL string
	Image2URL string
	Duration  int
	Text      string
}

// Coordinator owns every job's active phase: it is the only writer of a job
// record between creation and the terminal transition.
type Coordinator struct {
	store      store.JobStore
	fetcher    Fetcher
	transcoder Transcoder
	layout     *workspace.Layout
	config     Config
	logger     *slog.Logger
	now        func() time.Time

	removeInputs func(jobID string) error

	sem    chan struct{}
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	submitted metric.Int64Counter
	finished  metric.Int64Counter
}

// New creates a coordinator. Pipelines run until Shutdown is called.
func New(s store.JobStore, f Fetcher, t Transcoder, layout *workspace.Layout, config Config, log *slog.Logger) *Coordinator {
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}
	if config.EstimateFactor <= 0 {
		config.EstimateFactor = 2.0
	}
	config.PublicURL = strings.TrimRight(config.PublicURL, "/")

	ctx, cancel := context.WithCancel(context.Background())

	meter := otel.Meter("imgtovideo/pipeline")
	submitted, err := meter.Int64Counter("imgtovideo.jobs.submitted",
		metric.WithDescription("Jobs accepted for processing"))
	if err != nil {
		log.Warn("failed to register submitted counter", slog.String("error", err.Error()))
	}
	finished, err := meter.Int64Counter("imgtovideo.jobs.finished",
		metric.WithDescription("Jobs that reached a terminal status"))
	if err != nil {
		log.Warn("failed to register finished counter", slog.String("error", err.Error()))
	}

	return &Coordinator{
		store:      s,
		fetcher:    f,
		transcoder: t,
		layout:     layout,
		config:     config,
		logger:     log.With(slog.String("component", "pipeline")),
		now:        time.Now,
		sem:        make(chan struct{}, config.MaxConcurrentJobs),
		ctx:        ctx,
		cancel:     cancel,
		submitted:  submitted,
		finished:   finished,

		removeInputs: layout.RemoveInputs,
	}
}

// Submit validates the request, records a queued job and hands it to a
// background pipeline. It never waits on fetch or transcode.
func (c *Coordinator) Submit(ctx context.Context, req Request) (*store.Job, error) {
	if err := c.validate(&req); err != nil {
		return nil, err
	}

	// Registering with wg under mu keeps every Add ordered before Shutdown's Wait.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrShutdown
	}
	c.wg.Add(1)
	c.mu.Unlock()

	job := &store.Job{
		ID:                   uuid.NewString(),
		Status:               store.JobStatusQueued,
		CreatedAt:            c.now().UTC(),
		Duration:             req.Duration,
		Image1URL:            req.Image1URL,
		Image2URL:            req.Image2URL,
		Text:                 req.Text,
		EstimatedTimeSeconds: progress.Estimate(req.Duration, c.config.EstimateFactor, c.config.EstimateOverhead),
	}
	if err := c.store.Create(ctx, job); err != nil {
		c.wg.Done()
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if c.submitted != nil {
		c.submitted.Add(ctx, 1)
	}
	logger.FromContext(ctx, c.logger).Info("job queued",
		slog.String("job_id", job.ID),
		slog.Int("duration", job.Duration),
		slog.Int("estimated_time_seconds", job.EstimatedTimeSeconds),
	)

	go c.execute(job.Clone())

	return job, nil
}

// Wait blocks until every pipeline has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Shutdown cancels in-flight pipelines and waits for them to record their
// terminal state, or for ctx to expire.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) validate(req *Request) error {
	req.Image1URL = strings.TrimSpace(req.Image1URL)
	req.Image2URL = strings.TrimSpace(req.Image2URL)
	req.Text = strings.TrimSpace(req.Text)

	if err := validateImageURL("image1_url", req.Image1URL); err != nil {
		return err
	}
	if err := validateImageURL("image2_url", req.Image2URL); err != nil {
		return err
	}
	if req.Duration < c.config.MinDuration || req.Duration > c.config.MaxDuration {
		return &ValidationError{
			Field:   "duration",
			Message: fmt.Sprintf("must be between %d and %d seconds", c.config.MinDuration, c.config.MaxDuration),
		}
	}
	if len([]rune(req.Text)) > maxTextLength {
		return &ValidationError{Field: "text", Message: fmt.Sprintf("must be at most %d characters", maxTextLength)}
	}
	return nil
}

func validateImageURL(field, raw string) error {
	if raw == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// execute runs one job's pipeline: wait for a slot, fetch, transcode, finalize.
func (c *Coordinator) execute(job *store.Job) {
	defer c.wg.Done()

	ctx := logger.WithJobID(c.ctx, job.ID)
	log := logger.FromContext(ctx, c.logger)

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		c.fail(ctx, job.ID, "server shutting down before the job started")
		return
	}
	defer func() { <-c.sem }()

	tracer := otel.Tracer("imgtovideo/pipeline")
	ctx, span := tracer.Start(ctx, "process_job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.Int("job.duration", job.Duration),
		),
	)
	defer span.End()

	startedAt := c.now().UTC()
	c.update(ctx, job.ID, func(j *store.Job) {
		j.Status = store.JobStatusProcessing
		j.StartedAt = &startedAt
		j.Progress = 0
	})
	log.Info("job processing")

	if err := c.layout.PrepareInputs(job.ID); err != nil {
		c.failSpan(span, err)
		c.fail(ctx, job.ID, fmt.Sprintf("failed to prepare workspace: %v", err))
		c.cleanup(log, job.ID, false)
		return
	}

	inputs, err := c.fetchInputs(ctx, job)
	if err != nil {
		c.failSpan(span, err)
		c.fail(ctx, job.ID, err.Error())
		c.cleanup(log, job.ID, false)
		return
	}

	text := job.Text
	if text == "" {
		text = c.config.OverlayText
	}
	output := c.layout.OutputPath(job.ID)

	result := c.transcoder.Transcode(ctx, transcode.Request{
		JobID: job.ID,
		Params: transcode.Params{
			Image1:   inputs[0],
			Image2:   inputs[1],
			Output:   output,
			Duration: job.Duration,
			Text:     text,
		},
		Mounts: []string{c.layout.InputDir(job.ID), c.layout.OutputDir},
	}, c.progressUpdater(ctx, job.ID))

	if result.State != transcode.StateSucceeded {
		err := result.Err
		if err == nil {
			err = fmt.Errorf("transcode ended in state %s", result.State)
		}
		c.failSpan(span, err)
		c.fail(ctx, job.ID, err.Error())
		c.cleanup(log, job.ID, true)
		return
	}

	info, err := os.Stat(output)
	if err != nil {
		c.failSpan(span, err)
		c.fail(ctx, job.ID, fmt.Sprintf("transcode produced no output: %v", err))
		c.cleanup(log, job.ID, true)
		return
	}

	c.complete(ctx, job.ID, info.Size())
	c.cleanup(log, job.ID, false)

	// The record can be reclaimed while the job is still running; its
	// artifact must not outlive it.
	if _, err := c.store.Get(ctx, job.ID); errors.Is(err, store.ErrNotFound) {
		log.Warn("job record reclaimed during processing, removing artifact")
		c.cleanup(log, job.ID, true)
	}
}

func (c *Coordinator) fetchInputs(ctx context.Context, job *store.Job) ([2]string, error) {
	var paths [2]string
	tracer := otel.Tracer("imgtovideo/pipeline")

	for i, src := range []string{job.Image1URL, job.Image2URL} {
		n := i + 1
		dest := c.layout.InputPath(job.ID, n, src)

		fctx, span := tracer.Start(ctx, "fetch_image", trace.WithAttributes(attribute.Int("image.index", n)))
		err := c.fetcher.Fetch(fctx, src, dest)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err != nil {
			return paths, fmt.Errorf("failed to download image %d: %w", n, err)
		}
		paths[i] = dest
	}
	return paths, nil
}

// progressUpdater applies progress monotonically and refreshes the remaining time.
func (c *Coordinator) progressUpdater(ctx context.Context, jobID string) func(int) {
	return func(p int) {
		now := c.now()
		c.update(ctx, jobID, func(j *store.Job) {
			if j.Status != store.JobStatusProcessing || p <= j.Progress {
				return
			}
			j.Progress = p
			if j.StartedAt == nil {
				return
			}
			if remaining, ok := progress.Remaining(p, *j.StartedAt, now); ok {
				j.RemainingTimeSeconds = &remaining
			}
		})
	}
}

func (c *Coordinator) complete(ctx context.Context, jobID string, size int64) {
	sizeMB := math.Round(float64(size)/(1024*1024)*100) / 100
	completedAt := c.now().UTC()
	zero := 0

	c.update(context.WithoutCancel(ctx), jobID, func(j *store.Job) {
		j.Status = store.JobStatusCompleted
		j.Progress = 100
		j.RemainingTimeSeconds = &zero
		j.CompletedAt = &completedAt
		j.FileSizeMB = &sizeMB
		j.DownloadURL = c.config.PublicURL + "/download/" + jobID
	})

	if c.finished != nil {
		c.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(store.JobStatusCompleted))))
	}
	logger.FromContext(ctx, c.logger).Info("job completed", slog.Float64("file_size_mb", sizeMB))
}

func (c *Coordinator) fail(ctx context.Context, jobID, message string) {
	completedAt := c.now().UTC()
	// Shutdown cancels ctx, and the failure must still be recorded.
	c.update(context.WithoutCancel(ctx), jobID, func(j *store.Job) {
		j.Status = store.JobStatusFailed
		j.Error = message
		j.CompletedAt = &completedAt
		j.RemainingTimeSeconds = nil
	})

	if c.finished != nil {
		c.finished.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", string(store.JobStatusFailed))))
	}
	logger.FromContext(ctx, c.logger).Error("job failed", slog.String("error", message))
}

// update applies fn to the job record. A store error leaves the record in its
// previous state, so it is logged rather than dropped.
func (c *Coordinator) update(ctx context.Context, jobID string, fn func(*store.Job)) {
	if err := c.store.Update(ctx, jobID, fn); err != nil {
		logger.FromContext(logger.WithJobID(ctx, jobID), c.logger).Error("failed to update job",
			slog.String("error", err.Error()))
	}
}

func (c *Coordinator) failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// cleanup removes the job's temp inputs and, when requested, its output.
// Failures are logged as CleanupError and never affect the job's status.
func (c *Coordinator) cleanup(log *slog.Logger, jobID string, removeOutput bool) {
	if err := c.removeInputs(jobID); err != nil {
		cerr := &CleanupError{JobID: jobID, Path: c.layout.InputDir(jobID), Err: err}
		log.Warn("cleanup failed", slog.String("error", cerr.Error()))
	}
	if !removeOutput {
		return
	}
	if err := c.layout.RemoveOutput(jobID); err != nil {
		cerr := &CleanupError{JobID: jobID, Path: c.layout.OutputPath(jobID), Err: err}
		log.Warn("cleanup failed", slog.String("error", cerr.Error()))
	}
}
