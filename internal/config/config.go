// Package config provides configuration loading from environment variables
// and TOML preset files.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/firstcut/internal/cut"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int      `env:"PORT, default=8080" json:"port" validate:"gte=1,lte=65535"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"cors_allowed_origins" validate:"min=1"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/firstcut" json:"temp_dir"`

	// JobRetention is how many finished jobs the server remembers; 0 keeps all.
	JobRetention int `env:"JOB_RETENTION, default=200" json:"job_retention" validate:"gte=0"`

	// Media tools
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path" validate:"required"`

	// Engine settings. SilenceThresholdDB, when set, overrides SilenceThreshold.
	SilenceThreshold   float64 `env:"FIRSTCUT_SILENCE_THRESHOLD, default=0.02" json:"silence_threshold"`
	SilenceThresholdDB string  `env:"FIRSTCUT_SILENCE_THRESHOLD_DB" json:"silence_threshold_db,omitempty"`
	MinSilence         float64 `env:"FIRSTCUT_MIN_SILENCE, default=0.35" json:"min_silence"`
	MinClip            float64 `env:"FIRSTCUT_MIN_CLIP, default=0.5" json:"min_clip"`
	Padding            float64 `env:"FIRSTCUT_PADDING, default=0.08" json:"padding"`
	FrameWindow        float64 `env:"FIRSTCUT_FRAME_WINDOW, default=0.02" json:"frame_window"`
	SampleRate         int     `env:"FIRSTCUT_SAMPLE_RATE, default=16000" json:"sample_rate"`
	PresetPath         string  `env:"FIRSTCUT_PRESET" json:"preset,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json TEXT JSON"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`                                         // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig and
// overlays the preset file named by FIRSTCUT_PRESET, if any.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.PresetPath != "" {
		if err := cfg.ApplyPreset(cfg.PresetPath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// preset is the TOML form of the engine settings. Pointers tell absent keys
// from zero values.
type preset struct {
	SilenceThreshold   *float64 `toml:"silence_threshold"`
	SilenceThresholdDB *float64 `toml:"silence_threshold_db"`
	MinSilence         *float64 `toml:"min_silence"`
	MinClip            *float64 `toml:"min_clip"`
	Padding            *float64 `toml:"padding"`
	FrameWindow        *float64 `toml:"frame_window"`
	SampleRate         *int     `toml:"sample_rate"`
}

// ApplyPreset overlays the engine settings present in the TOML file at path.
// Keys missing from the file keep their current values.
func (c *Config) ApplyPreset(path string) error {
	file, err := os.Open(path) // #nosec G304 - preset path is chosen by the operator
	if err != nil {
		return fmt.Errorf("open preset: %w", err)
	}
	defer file.Close()

	var p preset
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return fmt.Errorf("parse preset %s: %w", path, err)
	}

	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat(&c.SilenceThreshold, p.SilenceThreshold)
	setFloat(&c.MinSilence, p.MinSilence)
	setFloat(&c.MinClip, p.MinClip)
	setFloat(&c.Padding, p.Padding)
	setFloat(&c.FrameWindow, p.FrameWindow)
	if p.SampleRate != nil {
		c.SampleRate = *p.SampleRate
	}
	if p.SilenceThresholdDB != nil {
		c.SilenceThresholdDB = strconv.FormatFloat(*p.SilenceThresholdDB, 'g', -1, 64)
	} else if p.SilenceThreshold != nil {
		// A linear threshold in the preset beats a dB one from the environment.
		c.SilenceThresholdDB = ""
	}
	return nil
}

// Settings returns the validated engine settings.
func (c *Config) Settings() (cut.Settings, error) {
	s := cut.Settings{
		SilenceThreshold: c.SilenceThreshold,
		MinSilence:       c.MinSilence,
		MinClip:          c.MinClip,
		Padding:          c.Padding,
		FrameWindow:      c.FrameWindow,
		SampleRate:       c.SampleRate,
	}
	if c.SilenceThresholdDB != "" {
		db, err := strconv.ParseFloat(strings.TrimSpace(c.SilenceThresholdDB), 64)
		if err != nil {
			return cut.Settings{}, fmt.Errorf("%w: silence_threshold_db=%q is not a number", cut.ErrInvalidSettings, c.SilenceThresholdDB)
		}
		s = s.WithThresholdDB(db)
	}
	if err := s.Validate(); err != nil {
		return cut.Settings{}, err
	}
	return s, nil
}

// Validate checks the service settings and the engine settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidConfig, verrs[0].Field(), verrs[0].Value())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// NewLogger creates a structured logger writing to w.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, FFmpegPath: %s, FFprobePath: %s, SilenceThreshold: %g, SilenceThresholdDB: %s, MinSilence: %g, MinClip: %g, Padding: %g, FrameWindow: %g, SampleRate: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.SilenceThreshold,
		c.SilenceThresholdDB,
		c.MinSilence,
		c.MinClip,
		c.Padding,
		c.FrameWindow,
		c.SampleRate,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
