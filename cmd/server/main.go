// Package main is the entry point for the imgtovideo server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ShivamThakkar1/imgtovideo/internal/config"
	"github.com/ShivamThakkar1/imgtovideo/internal/controller"
	"github.com/ShivamThakkar1/imgtovideo/internal/controller/handlers"
	"github.com/ShivamThakkar1/imgtovideo/internal/fetch"
	"github.com/ShivamThakkar1/imgtovideo/internal/logger"
	"github.com/ShivamThakkar1/imgtovideo/internal/observability"
	"github.com/ShivamThakkar1/imgtovideo/internal/pipeline"
	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/internal/sweeper"
	"github.com/ShivamThakkar1/imgtovideo/internal/transcode"
	"github.com/ShivamThakkar1/imgtovideo/internal/transcode/runtime"
	"github.com/ShivamThakkar1/imgtovideo/internal/workspace"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: imgtovideo.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logg)

	if err := run(cfg, logg); err != nil {
		logg.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "imgtovideo", cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logg.Warn("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logg.Warn("failed to shutdown metrics", slog.String("error", err.Error()))
		}
	}()

	layout := workspace.New(cfg.TempDir, cfg.OutputDir)
	if err := layout.Ensure(); err != nil {
		return err
	}

	jobs := store.NewMemoryStore()
	if err := observability.RegisterJobGauge(func(ctx context.Context) (store.StatusCounts, error) {
		list, err := jobs.List(ctx)
		if err != nil {
			return store.StatusCounts{}, err
		}
		return store.CountByStatus(list), nil
	}); err != nil {
		logg.Warn("failed to register jobs gauge", slog.String("error", err.Error()))
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	transcoder := transcode.NewService(rt, transcode.ServiceConfig{
		Binary:            cfg.FFmpegPath,
		Image:             cfg.FFmpegImage,
		Timeout:           cfg.TranscodeTimeout,
		KeepAliveInterval: cfg.KeepAliveInterval,
		Width:             cfg.VideoWidth,
		Height:            cfg.VideoHeight,
		FPS:               cfg.VideoFPS,
		FontFile:          cfg.FontFile,
	}, logg)

	fetcher := fetch.New(fetch.Config{
		Timeout:      cfg.FetchTimeout,
		MaxRedirects: cfg.FetchMaxRedirects,
		MaxBytes:     cfg.FetchMaxBytes,
	})

	coordinator := pipeline.New(jobs, fetcher, transcoder, layout, pipeline.Config{
		MinDuration:       cfg.MinDuration,
		MaxDuration:       cfg.MaxDuration,
		EstimateFactor:    cfg.EstimateFactor,
		EstimateOverhead:  cfg.EstimateOverhead,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		PublicURL:         cfg.PublicURL,
		OverlayText:       cfg.OverlayText,
	}, logg)

	sweep := sweeper.New(jobs, layout, cfg.Retention, cfg.SweepInterval, logg)
	sweep.Start(ctx)
	defer sweep.Stop()

	h := handlers.New(coordinator, jobs, layout, cfg.PublicURL, logg)
	srv := controller.New(controller.Options{
		Addr:                fmt.Sprintf(":%d", cfg.HTTPPort),
		MetricsHandler:      metricsHandler,
		RateLimit:           cfg.RateLimit,
		RateLimitBurst:      cfg.RateLimitBurst,
		RateLimitMaxClients: cfg.RateLimitMaxClients,
		ShutdownTimeout:     cfg.ShutdownTimeout,
	}, h, logg)

	logg.Info("imgtovideo starting",
		slog.Int("port", cfg.HTTPPort),
		slog.String("runtime", cfg.Runtime),
		slog.String("output_dir", cfg.OutputDir),
		slog.Int("max_concurrent_jobs", cfg.MaxConcurrentJobs),
	)

	// Run blocks until a signal arrives and then drains HTTP connections.
	serverErr := srv.Run(ctx)

	logg.Info("shutting down pipelines")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logg.Warn("pipelines did not finish before shutdown timeout", slog.String("error", err.Error()))
	}

	if serverErr != nil {
		return fmt.Errorf("server stopped: %w", serverErr)
	}
	logg.Info("server exited properly")
	return nil
}

func newRuntime(cfg *config.Config) (runtime.Runtime, error) {
	switch cfg.Runtime {
	case "docker":
		rt, err := runtime.NewDockerRuntime()
		if err != nil {
			return nil, fmt.Errorf("failed to create docker runtime: %w", err)
		}
		return rt, nil
	default:
		return runtime.NewExecRuntime(""), nil
	}
}
