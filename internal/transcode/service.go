package transcode

import (
	"context"
	"log/slog"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/transcode/runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ServiceConfig configures how every job's transform is launched.
type ServiceConfig struct {
	Binary            string // ffmpeg binary (exec) or entrypoint (docker)
	Image             string // container image, docker runtime only
	Timeout           time.Duration
	KeepAliveInterval time.Duration
	Width             int
	Height            int
	FPS               int
	FontFile          string
}

// Request is one job's transform.
type Request struct {
	JobID  string
	Params Params
	// Mounts are the directories the transform reads and writes.
	Mounts []string
}

// Service builds and supervises one transform per request.
type Service struct {
	runtime   runtime.Runtime
	builder   *CommandBuilder
	config    ServiceConfig
	scheduler Scheduler
	logger    *slog.Logger

	keepalives metric.Int64Counter
	durations  metric.Float64Histogram
}

// NewService creates a transcode service on top of the given runtime.
func NewService(rt runtime.Runtime, config ServiceConfig, logger *slog.Logger) *Service {
	if config.Binary == "" {
		config.Binary = "ffmpeg"
	}
	if config.Width <= 0 {
		config.Width = 1080
	}
	if config.Height <= 0 {
		config.Height = 1920
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}

	meter := otel.Meter("imgtovideo/transcode")
	keepalives, err := meter.Int64Counter("imgtovideo.transcode.keepalives",
		metric.WithDescription("Keep-alive ticks emitted by running transforms"))
	if err != nil {
		logger.Warn("failed to register keepalive counter", slog.String("error", err.Error()))
	}
	durations, err := meter.Float64Histogram("imgtovideo.transcode.duration",
		metric.WithDescription("Wall time of finished transforms"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to register duration histogram", slog.String("error", err.Error()))
	}

	return &Service{
		runtime:    rt,
		builder:    NewCommandBuilder(config.Width, config.Height, config.FPS),
		config:     config,
		scheduler:  RealScheduler{},
		logger:     logger,
		keepalives: keepalives,
		durations:  durations,
	}
}

// Transcode runs the transform for req and blocks until it terminates.
// onProgress receives values in [0, 99] from the calling goroutine.
func (s *Service) Transcode(ctx context.Context, req Request, onProgress func(int)) Result {
	tracer := otel.Tracer("imgtovideo/transcode")
	ctx, span := tracer.Start(ctx, "transcode",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.Int("job.duration", req.Params.Duration),
		),
	)
	defer span.End()

	params := req.Params
	if params.FontFile == "" {
		params.FontFile = s.config.FontFile
	}
	command := append([]string{s.config.Binary}, s.builder.Args(params)...)

	logger := s.logger.With(slog.String("job_id", req.JobID))
	sup := NewSupervisor(s.runtime, runtime.StartOptions{
		Command: command,
		Image:   s.config.Image,
		Mounts:  req.Mounts,
	}, SupervisorConfig{
		Timeout:           s.config.Timeout,
		KeepAliveInterval: s.config.KeepAliveInterval,
		Total:             time.Duration(params.Duration) * time.Second,
	}, s.scheduler, Hooks{
		OnProgress: onProgress,
		OnKeepAlive: func() {
			if s.keepalives != nil {
				s.keepalives.Add(context.Background(), 1)
			}
		},
	}, logger)

	result := sup.Run(ctx)

	if s.durations != nil && !result.StartedAt.IsZero() {
		s.durations.Record(ctx, result.FinishedAt.Sub(result.StartedAt).Seconds(),
			metric.WithAttributes(attribute.String("state", result.State.String())))
	}
	span.SetAttributes(attribute.String("transcode.state", result.State.String()))
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	return result
}
