// Package config loads server configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// HTTP server port
	HTTPPort int
	// Base URL used for status and download links; empty means derive it from the request
	PublicURL string

	TempDir   string
	OutputDir string

	// Accepted output duration range in seconds (inclusive)
	MinDuration int
	MaxDuration int

	// Estimate model: ceil(duration*factor + overhead)
	EstimateFactor   float64
	EstimateOverhead int

	MaxConcurrentJobs int

	TranscodeTimeout  time.Duration
	KeepAliveInterval time.Duration

	Retention     time.Duration
	SweepInterval time.Duration

	FetchTimeout      time.Duration
	FetchMaxRedirects int
	FetchMaxBytes     int64

	// Transcoder runtime: "exec" or "docker"
	Runtime     string
	FFmpegPath  string
	FFmpegImage string

	OverlayText string
	FontFile    string
	VideoWidth  int
	VideoHeight int
	VideoFPS    int

	// Requests per second per client on POST /convert; 0 disables limiting
	RateLimit           float64
	RateLimitBurst      int
	// Client buckets kept at once; the least recently seen are dropped first
	RateLimitMaxClients int

	LogLevel  string
	LogFormat string

	// OTLP gRPC collector for traces; empty disables export
	OTELEndpoint string

	ShutdownTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	base := filepath.Join(os.TempDir(), "imgtovideo")

	v.SetDefault("port", 8080)
	v.SetDefault("public_url", "")
	v.SetDefault("temp_dir", filepath.Join(base, "tmp"))
	v.SetDefault("output_dir", filepath.Join(base, "output"))
	v.SetDefault("min_duration", 1)
	v.SetDefault("max_duration", 300)
	v.SetDefault("estimate_factor", 2.0)
	v.SetDefault("estimate_overhead", 10)
	v.SetDefault("max_concurrent_jobs", 4)
	v.SetDefault("transcode_timeout", 5*time.Minute)
	v.SetDefault("keepalive_interval", 10*time.Second)
	v.SetDefault("retention", 24*time.Hour)
	v.SetDefault("sweep_interval", time.Hour)
	v.SetDefault("fetch_timeout", 30*time.Second)
	v.SetDefault("fetch_max_redirects", 5)
	v.SetDefault("fetch_max_bytes", 20*1024*1024)
	v.SetDefault("runtime", "exec")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg_image", "linuxserver/ffmpeg:latest")
	v.SetDefault("overlay_text", "Made with imgtovideo")
	v.SetDefault("font_file", "")
	v.SetDefault("video_width", 1080)
	v.SetDefault("video_height", 1920)
	v.SetDefault("video_fps", 30)
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("rate_limit_max_clients", 10000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load reads configuration. Precedence: environment > config file > defaults.
// With an empty path, imgtovideo.yaml in the working directory is used if present.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("imgtovideo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		HTTPPort:            v.GetInt("port"),
		PublicURL:           strings.TrimRight(v.GetString("public_url"), "/"),
		TempDir:             v.GetString("temp_dir"),
		OutputDir:           v.GetString("output_dir"),
		MinDuration:         v.GetInt("min_duration"),
		MaxDuration:         v.GetInt("max_duration"),
		EstimateFactor:      v.GetFloat64("estimate_factor"),
		EstimateOverhead:    v.GetInt("estimate_overhead"),
		MaxConcurrentJobs:   v.GetInt("max_concurrent_jobs"),
		TranscodeTimeout:    v.GetDuration("transcode_timeout"),
		KeepAliveInterval:   v.GetDuration("keepalive_interval"),
		Retention:           v.GetDuration("retention"),
		SweepInterval:       v.GetDuration("sweep_interval"),
		FetchTimeout:        v.GetDuration("fetch_timeout"),
		FetchMaxRedirects:   v.GetInt("fetch_max_redirects"),
		FetchMaxBytes:       v.GetInt64("fetch_max_bytes"),
		Runtime:             v.GetString("runtime"),
		FFmpegPath:          v.GetString("ffmpeg_path"),
		FFmpegImage:         v.GetString("ffmpeg_image"),
		OverlayText:         v.GetString("overlay_text"),
		FontFile:            v.GetString("font_file"),
		VideoWidth:          v.GetInt("video_width"),
		VideoHeight:         v.GetInt("video_height"),
		VideoFPS:            v.GetInt("video_fps"),
		RateLimit:           v.GetFloat64("rate_limit"),
		RateLimitBurst:      v.GetInt("rate_limit_burst"),
		RateLimitMaxClients: v.GetInt("rate_limit_max_clients"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		OTELEndpoint:        v.GetString("otel_exporter_otlp_endpoint"),
		ShutdownTimeout:     v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Errors name the offending key.
func (c *Config) Validate() error {
	switch {
	case c.HTTPPort <= 0 || c.HTTPPort > 65535:
		return fmt.Errorf("invalid port %d (env: PORT)", c.HTTPPort)
	case c.MinDuration < 1:
		return fmt.Errorf("min_duration must be at least 1 (env: MIN_DURATION)")
	case c.MaxDuration < c.MinDuration:
		return fmt.Errorf("max_duration must not be below min_duration (env: MAX_DURATION)")
	case c.EstimateFactor <= 0:
		return fmt.Errorf("estimate_factor must be positive (env: ESTIMATE_FACTOR)")
	case c.EstimateOverhead < 0:
		return fmt.Errorf("estimate_overhead must not be negative (env: ESTIMATE_OVERHEAD)")
	case c.MaxConcurrentJobs < 1:
		return fmt.Errorf("max_concurrent_jobs must be at least 1 (env: MAX_CONCURRENT_JOBS)")
	case c.TranscodeTimeout <= 0:
		return fmt.Errorf("transcode_timeout must be positive (env: TRANSCODE_TIMEOUT)")
	case c.KeepAliveInterval <= 0:
		return fmt.Errorf("keepalive_interval must be positive (env: KEEPALIVE_INTERVAL)")
	case c.Retention <= 0:
		return fmt.Errorf("retention must be positive (env: RETENTION)")
	case c.SweepInterval <= 0:
		return fmt.Errorf("sweep_interval must be positive (env: SWEEP_INTERVAL)")
	case c.FetchTimeout <= 0:
		return fmt.Errorf("fetch_timeout must be positive (env: FETCH_TIMEOUT)")
	case c.FetchMaxRedirects < 0:
		return fmt.Errorf("fetch_max_redirects must not be negative (env: FETCH_MAX_REDIRECTS)")
	case c.Runtime != "exec" && c.Runtime != "docker":
		return fmt.Errorf("invalid runtime %q, must be exec or docker (env: RUNTIME)", c.Runtime)
	case c.VideoWidth <= 0 || c.VideoHeight <= 0 || c.VideoFPS <= 0:
		return fmt.Errorf("video_width, video_height and video_fps must be positive")
	case c.RateLimit < 0:
		return fmt.Errorf("rate_limit must not be negative (env: RATE_LIMIT)")
	case c.RateLimit > 0 && c.RateLimitBurst < 1:
		return fmt.Errorf("rate_limit_burst must be at least 1 when rate limiting (env: RATE_LIMIT_BURST)")
	case c.RateLimit > 0 && c.RateLimitMaxClients < 1:
		return fmt.Errorf("rate_limit_max_clients must be at least 1 when rate limiting (env: RATE_LIMIT_MAX_CLIENTS)")
	}
	return nil
}
