// Package config holds the detection viewer's runtime configuration.
//
// Values come from Default, then an optional JSON file, then DETECTION_VIEWER_*
// environment variables (optionally seeded from .env files), and are
// validated last.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"time"

	dimaging "github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/detection-viewer/internal/imaging"
	"github.com/ironsheep/detection-viewer/internal/view"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DETECTION_VIEWER_"

// Config holds the application configuration
type Config struct {
	// Dataset is an optional detection dataset loaded at startup.
	Dataset string        `json:"dataset"`
	Viewer  ViewerConfig  `json:"viewer"`
	Fetch   FetchConfig   `json:"fetch"`
	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
}

// ViewerConfig holds display settings
type ViewerConfig struct {
	ContainerWidth   int     `json:"container_width" validate:"gt=0"`
	ContainerHeight  int     `json:"container_height" validate:"gt=0"`
	WindowWidth      int     `json:"window_width" validate:"gt=0"`
	WindowHeight     int     `json:"window_height" validate:"gt=0"`
	MaxSurfacePixels int     `json:"max_surface_pixels" validate:"gte=0"`
	Resampler        string  `json:"resampler" validate:"oneof=nearest linear catmullrom lanczos"`
	Background       string  `json:"background" validate:"required"`
	Threshold        float64 `json:"threshold" validate:"gte=0,lte=1"`
}

// FetchConfig holds image loading settings
type FetchConfig struct {
	TimeoutSeconds         int `json:"timeout_seconds" validate:"gt=0"`
	FallbackTimeoutSeconds int `json:"fallback_timeout_seconds" validate:"gt=0"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level string `json:"level" validate:"oneof=trace debug info warn warning error"`
	// File enables a rotating log file in addition to stderr.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" validate:"gte=0"`
	Compress   bool   `json:"compress"`
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Namespace string `json:"namespace" validate:"required,excludesall=-."`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			ContainerWidth:   800,
			ContainerHeight:  view.DefaultMaxContainerHeight,
			WindowWidth:      1920,
			WindowHeight:     1080,
			MaxSurfacePixels: 64 << 20,
			Resampler:        "linear",
			Background:       "#f8f9fa",
			Threshold:        0,
		},
		Fetch: FetchConfig{
			TimeoutSeconds:         30,
			FallbackTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Namespace: "viewer",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields the file omits
// keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load builds the effective configuration. path may be empty. Each env file
// that exists is loaded into the process environment first; variables that
// are already set win.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func intVar(dst func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func stringVar(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

var envBindings = []envBinding{
	{"DATASET", stringVar(func(c *Config) *string { return &c.Dataset })},
	{"CONTAINER_WIDTH", intVar(func(c *Config) *int { return &c.Viewer.ContainerWidth })},
	{"CONTAINER_HEIGHT", intVar(func(c *Config) *int { return &c.Viewer.ContainerHeight })},
	{"WINDOW_WIDTH", intVar(func(c *Config) *int { return &c.Viewer.WindowWidth })},
	{"WINDOW_HEIGHT", intVar(func(c *Config) *int { return &c.Viewer.WindowHeight })},
	{"MAX_SURFACE_PIXELS", intVar(func(c *Config) *int { return &c.Viewer.MaxSurfacePixels })},
	{"RESAMPLER", stringVar(func(c *Config) *string { return &c.Viewer.Resampler })},
	{"BACKGROUND", stringVar(func(c *Config) *string { return &c.Viewer.Background })},
	{"THRESHOLD", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Viewer.Threshold = f
		return nil
	}},
	{"FETCH_TIMEOUT", intVar(func(c *Config) *int { return &c.Fetch.TimeoutSeconds })},
	{"FALLBACK_TIMEOUT", intVar(func(c *Config) *int { return &c.Fetch.FallbackTimeoutSeconds })},
	{"LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FILE", stringVar(func(c *Config) *string { return &c.Logging.File })},
	{"METRICS_NAMESPACE", stringVar(func(c *Config) *string { return &c.Metrics.Namespace })},
}

// ApplyEnv overrides fields from DETECTION_VIEWER_* variables.
func (c *Config) ApplyEnv() error {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(EnvPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, b.name, v, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := imaging.ParseHexColor(c.Viewer.Background); err != nil {
		return fmt.Errorf("invalid config: viewer.background: %w", err)
	}
	return nil
}

// Container returns the windowed display area.
func (v ViewerConfig) Container() view.Size {
	return view.Size{W: float64(v.ContainerWidth), H: float64(v.ContainerHeight)}
}

// Window returns the fullscreen display area.
func (v ViewerConfig) Window() view.Size {
	return view.Size{W: float64(v.WindowWidth), H: float64(v.WindowHeight)}
}

// BackgroundColor returns the parsed frame background. Validate guarantees it
// parses.
func (v ViewerConfig) BackgroundColor() color.NRGBA {
	c, _ := imaging.ParseHexColor(v.Background)
	return c
}

// Filter maps Resampler to a resampling filter.
func (v ViewerConfig) Filter() dimaging.ResampleFilter {
	switch v.Resampler {
	case "nearest":
		return dimaging.NearestNeighbor
	case "catmullrom":
		return dimaging.CatmullRom
	case "lanczos":
		return dimaging.Lanczos
	default:
		return dimaging.Linear
	}
}

// Timeout returns the raster fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// FallbackTimeout returns the image fallback fetch timeout.
func (f FetchConfig) FallbackTimeout() time.Duration {
	return time.Duration(f.FallbackTimeoutSeconds) * time.Second
}
