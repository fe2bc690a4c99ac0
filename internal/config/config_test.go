package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected HTTPPort 8080, got %d", cfg.HTTPPort)
	}
	if cfg.MinDuration != 1 || cfg.MaxDuration != 300 {
		t.Errorf("expected duration range 1..300, got %d..%d", cfg.MinDuration, cfg.MaxDuration)
	}
	if cfg.TranscodeTimeout != 5*time.Minute {
		t.Errorf("expected TranscodeTimeout 5m, got %v", cfg.TranscodeTimeout)
	}
	if cfg.KeepAliveInterval != 10*time.Second {
		t.Errorf("expected KeepAliveInterval 10s, got %v", cfg.KeepAliveInterval)
	}
	if cfg.Retention != 24*time.Hour {
		t.Errorf("expected Retention 24h, got %v", cfg.Retention)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("expected SweepInterval 1h, got %v", cfg.SweepInterval)
	}
	if cfg.EstimateFactor != 2.0 || cfg.EstimateOverhead != 10 {
		t.Errorf("expected estimate model 2.0/10, got %v/%d", cfg.EstimateFactor, cfg.EstimateOverhead)
	}
	if cfg.FetchTimeout != 30*time.Second || cfg.FetchMaxRedirects != 5 {
		t.Errorf("unexpected fetch defaults: %v/%d", cfg.FetchTimeout, cfg.FetchMaxRedirects)
	}
	if cfg.Runtime != "exec" {
		t.Errorf("expected Runtime exec, got %s", cfg.Runtime)
	}
	if cfg.VideoWidth != 1080 || cfg.VideoHeight != 1920 || cfg.VideoFPS != 30 {
		t.Errorf("unexpected video geometry: %dx%d@%d", cfg.VideoWidth, cfg.VideoHeight, cfg.VideoFPS)
	}
	if cfg.RateLimitMaxClients != 10000 {
		t.Errorf("expected RateLimitMaxClients 10000, got %d", cfg.RateLimitMaxClients)
	}
	if cfg.OTELEndpoint != "" {
		t.Errorf("expected tracing export disabled by default, got %s", cfg.OTELEndpoint)
	}
	if !strings.HasPrefix(cfg.TempDir, os.TempDir()) {
		t.Errorf("expected TempDir under %s, got %s", os.TempDir(), cfg.TempDir)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("PUBLIC_URL", "https://video.example.com/")
	t.Setenv("MAX_DURATION", "60")
	t.Setenv("TRANSCODE_TIMEOUT", "2m")
	t.Setenv("KEEPALIVE_INTERVAL", "30s")
	t.Setenv("RUNTIME", "docker")
	t.Setenv("MAX_CONCURRENT_JOBS", "8")
	t.Setenv("RATE_LIMIT", "0")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9999 {
		t.Errorf("expected HTTPPort 9999, got %d", cfg.HTTPPort)
	}
	if cfg.PublicURL != "https://video.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.PublicURL)
	}
	if cfg.MaxDuration != 60 {
		t.Errorf("expected MaxDuration 60, got %d", cfg.MaxDuration)
	}
	if cfg.TranscodeTimeout != 2*time.Minute {
		t.Errorf("expected TranscodeTimeout 2m, got %v", cfg.TranscodeTimeout)
	}
	if cfg.KeepAliveInterval != 30*time.Second {
		t.Errorf("expected KeepAliveInterval 30s, got %v", cfg.KeepAliveInterval)
	}
	if cfg.Runtime != "docker" {
		t.Errorf("expected Runtime docker, got %s", cfg.Runtime)
	}
	if cfg.MaxConcurrentJobs != 8 {
		t.Errorf("expected MaxConcurrentJobs 8, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("expected RateLimit 0, got %v", cfg.RateLimit)
	}
	if cfg.OTELEndpoint != "otel-collector:4317" {
		t.Errorf("expected OTELEndpoint otel-collector:4317, got %s", cfg.OTELEndpoint)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"runtime", map[string]string{"RUNTIME": "kubernetes"}, "RUNTIME"},
		{"duration range", map[string]string{"MIN_DURATION": "10", "MAX_DURATION": "5"}, "MAX_DURATION"},
		{"zero min duration", map[string]string{"MIN_DURATION": "0"}, "MIN_DURATION"},
		{"concurrency", map[string]string{"MAX_CONCURRENT_JOBS": "0"}, "MAX_CONCURRENT_JOBS"},
		{"port", map[string]string{"PORT": "70000"}, "PORT"},
		{"burst", map[string]string{"RATE_LIMIT": "5", "RATE_LIMIT_BURST": "0"}, "RATE_LIMIT_BURST"},
		{"max clients", map[string]string{"RATE_LIMIT": "5", "RATE_LIMIT_MAX_CLIENTS": "0"}, "RATE_LIMIT_MAX_CLIENTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error to mention %s, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgtovideo.yaml")
	content := `
port: 7777
output_dir: /srv/videos
max_duration: 30
retention: 2h
runtime: docker
overlay_text: "Hello"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 7777 {
		t.Errorf("expected HTTPPort 7777, got %d", cfg.HTTPPort)
	}
	if cfg.OutputDir != "/srv/videos" {
		t.Errorf("expected OutputDir from file, got %s", cfg.OutputDir)
	}
	if cfg.MaxDuration != 30 {
		t.Errorf("expected MaxDuration 30, got %d", cfg.MaxDuration)
	}
	if cfg.Retention != 2*time.Hour {
		t.Errorf("expected Retention 2h, got %v", cfg.Retention)
	}
	if cfg.Runtime != "docker" {
		t.Errorf("expected Runtime docker, got %s", cfg.Runtime)
	}
	if cfg.OverlayText != "Hello" {
		t.Errorf("expected OverlayText Hello, got %s", cfg.OverlayText)
	}
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgtovideo.yaml")
	if err := os.WriteFile(path, []byte("port: 7777\nruntime: docker\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("PORT", "8888")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8888 {
		t.Errorf("expected HTTPPort 8888 from env, got %d", cfg.HTTPPort)
	}
	if cfg.Runtime != "docker" {
		t.Errorf("expected Runtime docker from file, got %s", cfg.Runtime)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent config file")
	}
}
