// Package config provides configuration management for air using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort            = 8080
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultBufferDepth           = 3
	defaultSeamLeadSegments      = 1
	defaultPadAudioThreshold     = 1
	defaultVideoPID              = 0x0100
	defaultAudioPID              = 0x0101
	defaultPCRInterval           = 40 * time.Millisecond
	defaultDiagnosticInterval    = "@every 30s"
	defaultCircuitBreakerThresh  = 3
	defaultCircuitBreakerTimeout = 30 * time.Second
	defaultRetryAttempts         = 3
	defaultRetryDelay            = 500 * time.Millisecond
)

// Config holds all configuration for the air playout engine.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Mux      MuxConfig      `mapstructure:"mux"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
}

// ServerConfig holds admin HTTP server configuration (health/metrics only —
// not the control-plane RPC surface, which is out of scope for this core).
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SessionConfig holds the session-immutable program format (§3 ProgramFormat).
type SessionConfig struct {
	VideoWidth    int    `mapstructure:"video_width"`
	VideoHeight   int    `mapstructure:"video_height"`
	FPSNum        int    `mapstructure:"fps_num"`
	FPSDen        int    `mapstructure:"fps_den"`
	SampleRate    int    `mapstructure:"sample_rate"`
	Channels      int    `mapstructure:"channels"`
	SampleFormat  string `mapstructure:"sample_format"` // s16, fltp, ...
	AspectPolicy  string `mapstructure:"aspect_policy"` // preserve, stretch
}

// PipelineConfig tunes the pipeline manager's internal thresholds (§4.2-§4.5).
type PipelineConfig struct {
	// BufferDepth is N, the lookahead buffer's target depth; capacity is 2N.
	BufferDepth int `mapstructure:"buffer_depth"`
	// SeamLeadSegments is how many non-pad segments ahead ArmSegmentPrep targets
	// (always 1 per §4.5, kept configurable for test harnesses).
	SeamLeadSegments int `mapstructure:"seam_lead_segments"`
	// PadAudioThreshold is the minimum audio depth required for a pad-incoming
	// swap to become eligible (§4.4 "Pad eligibility specialization").
	PadAudioThreshold int `mapstructure:"pad_audio_threshold"`
	// DiagnosticSchedule is a robfig/cron spec for the periodic buffer-equilibrium
	// audit job (buffer depths only; clock drift is not audited).
	DiagnosticSchedule string `mapstructure:"diagnostic_schedule"`
	// DecodeRetry configures segment decode-launch retries.
	DecodeRetry RetryConfig `mapstructure:"decode_retry"`
	// DecodeCircuitBreaker configures per-asset circuit breaking on repeated
	// decode faults.
	DecodeCircuitBreaker CircuitBreakerConfig `mapstructure:"decode_circuit_breaker"`
}

// RetryConfig configures retry behavior for FFmpeg process startup.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	// MinRunTime is the heuristic cutoff distinguishing a startup failure
	// (worth retrying) from a mid-stream failure (not worth retrying): a
	// decode attempt that ran for at least MinRunTime before failing is
	// treated as the latter.
	MinRunTime time.Duration `mapstructure:"min_run_time"`
}

// CircuitBreakerConfig configures the per-asset decode circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// MuxConfig configures the MPEG-TS mux/sink adapter (§4.8).
type MuxConfig struct {
	VideoPID    int           `mapstructure:"video_pid"`
	AudioPID    int           `mapstructure:"audio_pid"`
	PCRInterval time.Duration `mapstructure:"pcr_interval"`
	VideoCodec  string        `mapstructure:"video_codec"` // h264, h265
	AudioCodec  string        `mapstructure:"audio_codec"` // aac, ac3, eac3, mp3, opus
}

// FFmpegConfig holds FFmpeg binary configuration for the decode/encode subprocesses.
type FFmpegConfig struct {
	BinaryPath      string   `mapstructure:"binary_path"`      // path to ffmpeg binary (empty = auto-detect)
	ProbePath       string   `mapstructure:"probe_path"`       // path to ffprobe binary (empty = auto-detect)
	HWAccelPriority []string `mapstructure:"hwaccel_priority"` // priority order: vaapi, nvenc, qsv, videotoolbox
	VideoPreset     string   `mapstructure:"video_preset"`
	VideoBitrateKbps int     `mapstructure:"video_bitrate_kbps"`
	AudioBitrateKbps int     `mapstructure:"audio_bitrate_kbps"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with AIR_ and use underscores for nesting.
// Example: AIR_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/air")
		v.AddConfigPath("$HOME/.air")
	}

	v.SetEnvPrefix("AIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("session.video_width", 1920)
	v.SetDefault("session.video_height", 1080)
	v.SetDefault("session.fps_num", 30000)
	v.SetDefault("session.fps_den", 1001)
	v.SetDefault("session.sample_rate", 48000)
	v.SetDefault("session.channels", 2)
	v.SetDefault("session.sample_format", "s16")
	v.SetDefault("session.aspect_policy", "preserve")

	v.SetDefault("pipeline.buffer_depth", defaultBufferDepth)
	v.SetDefault("pipeline.seam_lead_segments", defaultSeamLeadSegments)
	v.SetDefault("pipeline.pad_audio_threshold", defaultPadAudioThreshold)
	v.SetDefault("pipeline.diagnostic_schedule", defaultDiagnosticInterval)
	v.SetDefault("pipeline.decode_retry.max_attempts", defaultRetryAttempts)
	v.SetDefault("pipeline.decode_retry.initial_delay", defaultRetryDelay)
	v.SetDefault("pipeline.decode_retry.max_delay", 5*time.Second)
	v.SetDefault("pipeline.decode_retry.backoff_factor", 2.0)
	v.SetDefault("pipeline.decode_retry.min_run_time", 2*time.Second)
	v.SetDefault("pipeline.decode_circuit_breaker.failure_threshold", defaultCircuitBreakerThresh)
	v.SetDefault("pipeline.decode_circuit_breaker.success_threshold", 2)
	v.SetDefault("pipeline.decode_circuit_breaker.timeout", defaultCircuitBreakerTimeout)

	v.SetDefault("mux.video_pid", defaultVideoPID)
	v.SetDefault("mux.audio_pid", defaultAudioPID)
	v.SetDefault("mux.pcr_interval", defaultPCRInterval)
	v.SetDefault("mux.video_codec", "h264")
	v.SetDefault("mux.audio_codec", "aac")

	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.hwaccel_priority", []string{"vaapi", "nvenc", "qsv", "videotoolbox"})
	v.SetDefault("ffmpeg.video_preset", "veryfast")
	v.SetDefault("ffmpeg.video_bitrate_kbps", 6000)
	v.SetDefault("ffmpeg.audio_bitrate_kbps", 192)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Session.FPSNum <= 0 || c.Session.FPSDen <= 0 {
		return fmt.Errorf("session.fps_num and session.fps_den must be positive")
	}
	if c.Session.VideoWidth <= 0 || c.Session.VideoHeight <= 0 {
		return fmt.Errorf("session.video_width and session.video_height must be positive")
	}
	if c.Session.SampleRate <= 0 || c.Session.Channels <= 0 {
		return fmt.Errorf("session.sample_rate and session.channels must be positive")
	}
	validAspect := map[string]bool{"preserve": true, "stretch": true}
	if !validAspect[c.Session.AspectPolicy] {
		return fmt.Errorf("session.aspect_policy must be one of: preserve, stretch")
	}

	if c.Pipeline.BufferDepth < 1 {
		return fmt.Errorf("pipeline.buffer_depth must be at least 1")
	}
	if c.Pipeline.PadAudioThreshold < 1 {
		return fmt.Errorf("pipeline.pad_audio_threshold must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
