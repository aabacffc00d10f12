package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BYTE-6D65/driftsync/pkg/registry"
	"github.com/BYTE-6D65/driftsync/pkg/spline"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("engine: invalid configuration")

// ChannelConfig holds the parameters of one synchronization channel: the
// sync transmitter both receivers hear, and how its DTD is cleaned and fitted.
type ChannelConfig struct {
	Name            string  `yaml:"name"`
	Transmitter     string  `yaml:"transmitter"`
	Degree          int     `yaml:"degree"`
	SmoothingFactor float64 `yaml:"smoothing_factor"`
	OutlierLim      float64 `yaml:"outlier_lim"`
	WindowSize      int     `yaml:"window_size"`
}

// MatchConfig controls detection matching.
type MatchConfig struct {
	TimeMargin time.Duration `yaml:"time_margin"`
	CheckFrom  string        `yaml:"check_from"` // optional RFC3339
	CheckTo    string        `yaml:"check_to"`
}

// SmoothingConfig controls the DTD smoother.
type SmoothingConfig struct {
	// Disabled copies raw DTD into the smoothed column, for logs whose DTD
	// is already smooth.
	Disabled bool `yaml:"disabled"`
}

// Config holds all parameters of a pairwise synchronization run.
// Values can be set via:
//  1. YAML file (Load)
//  2. Environment variables (DRIFTSYNC_*), optionally from a .env file
//  3. Code or command-line flags
//
// Precedence: Flags > Env Vars > Config File > Defaults
type Config struct {
	BaseReceiver string             `yaml:"base_receiver"`
	Receiver     string             `yaml:"receiver"`
	Channels     []ChannelConfig    `yaml:"channels"`
	Match        MatchConfig        `yaml:"match"`
	Smoothing    SmoothingConfig    `yaml:"smoothing"`
	Workers      int                `yaml:"workers"` // 0 = NumCPU
	Verify       bool               `yaml:"verify"`
	LogLevel     string             `yaml:"log_level"`
	Network      []registry.Station `yaml:"network"`
}

// DefaultConfig returns the parameters used for acoustic receiver arrays:
// a collocated sync tag per station, a spline of degree 5, and a tighter
// outlier limit on the base's own tag.
func DefaultConfig() Config {
	return Config{
		Channels: []ChannelConfig{
			{
				Name:            "sync_base",
				Degree:          5,
				SmoothingFactor: 5e-4,
				OutlierLim:      0.001,
				WindowSize:      6,
			},
			{
				Name:            "sync_rec",
				Degree:          5,
				SmoothingFactor: 5e-4,
				OutlierLim:      0.005,
				WindowSize:      6,
			},
		},
		Match: MatchConfig{
			TimeMargin: 100 * time.Second,
		},
		Workers:  0,
		Verify:   true,
		LogLevel: "INFO",
	}
}

// Load reads a YAML configuration file on top of the defaults.
// Channel fields left out of the file keep their default values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	defaults := c.Channels
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	for i := range c.Channels {
		if i >= len(defaults) {
			break
		}
		ch, def := &c.Channels[i], defaults[i]
		if ch.Name == "" {
			ch.Name = def.Name
		}
		if ch.Degree == 0 {
			ch.Degree = def.Degree
		}
		if ch.SmoothingFactor == 0 {
			ch.SmoothingFactor = def.SmoothingFactor
		}
		if ch.OutlierLim == 0 {
			ch.OutlierLim = def.OutlierLim
		}
		if ch.WindowSize == 0 {
			ch.WindowSize = def.WindowSize
		}
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Returns a Config with defaults, overridden by any DRIFTSYNC_* env vars found.
func LoadFromEnv() (Config, error) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv()
	return cfg, err
}

// LoadConfig builds a configuration from defaults, an optional YAML file and
// the environment, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DRIFTSYNC_* environment variables.
// Per-channel numeric parameters are not configurable from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DRIFTSYNC_BASE_RECEIVER"); v != "" {
		c.BaseReceiver = v
	}
	if v := os.Getenv("DRIFTSYNC_RECEIVER"); v != "" {
		c.Receiver = v
	}
	if v := os.Getenv("DRIFTSYNC_TIME_MARGIN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DRIFTSYNC_TIME_MARGIN: %w", err)
		}
		c.Match.TimeMargin = d
	}
	if v := os.Getenv("DRIFTSYNC_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DRIFTSYNC_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("DRIFTSYNC_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DRIFTSYNC_VERIFY: %w", err)
		}
		c.Verify = b
	}
	if v := os.Getenv("DRIFTSYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Resolve fills channel transmitters left empty from the network registry.
func (c *Config) Resolve() error {
	if len(c.Channels) != 2 {
		return fmt.Errorf("%w: need exactly 2 channels, got %d", ErrInvalidConfig, len(c.Channels))
	}
	if c.Channels[0].Transmitter != "" && c.Channels[1].Transmitter != "" {
		return nil
	}
	network, err := registry.NewNetwork(c.Network...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	pair, err := network.Pair(c.BaseReceiver, c.Receiver)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Channels[0].Transmitter == "" {
		c.Channels[0].Transmitter = pair.Base
	}
	if c.Channels[1].Transmitter == "" {
		c.Channels[1].Transmitter = pair.Receiver
	}
	return nil
}

// CheckPeriod returns the optional matching period. Zero values mean open.
func (c *Config) CheckPeriod() (from, to time.Time, err error) {
	if c.Match.CheckFrom != "" {
		if from, err = time.Parse(time.RFC3339Nano, c.Match.CheckFrom); err != nil {
			return from, to, fmt.Errorf("%w: check_from: %w", ErrInvalidConfig, err)
		}
	}
	if c.Match.CheckTo != "" {
		if to, err = time.Parse(time.RFC3339Nano, c.Match.CheckTo); err != nil {
			return from, to, fmt.Errorf("%w: check_to: %w", ErrInvalidConfig, err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("%w: check_from %s must be before check_to %s", ErrInvalidConfig, c.Match.CheckFrom, c.Match.CheckTo)
	}
	return from, to, nil
}

// Validate checks that configuration values are sensible.
func (c *Config) Validate() error {
	if c.BaseReceiver == "" || c.Receiver == "" {
		return fmt.Errorf("%w: base and receiver ids are required", ErrInvalidConfig)
	}
	if c.BaseReceiver == c.Receiver {
		return fmt.Errorf("%w: base and receiver must differ, both %s", ErrInvalidConfig, c.Receiver)
	}

	if c.Match.TimeMargin <= 0 {
		return fmt.Errorf("%w: time margin must be > 0, got %s", ErrInvalidConfig, c.Match.TimeMargin)
	}
	if _, _, err := c.CheckPeriod(); err != nil {
		return err
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}

	if len(c.Channels) != 2 {
		return fmt.Errorf("%w: need exactly 2 channels, got %d", ErrInvalidConfig, len(c.Channels))
	}
	for _, ch := range c.Channels {
		if ch.Transmitter == "" {
			return fmt.Errorf("%w: channel %s has no transmitter", ErrInvalidConfig, ch.Name)
		}
		if ch.Degree < 1 || ch.Degree > spline.MaxDegree {
			return fmt.Errorf("%w: channel %s degree must be 1..%d, got %d", ErrInvalidConfig, ch.Name, spline.MaxDegree, ch.Degree)
		}
		if ch.SmoothingFactor <= 0 {
			return fmt.Errorf("%w: channel %s smoothing factor must be > 0, got %g", ErrInvalidConfig, ch.Name, ch.SmoothingFactor)
		}
		if ch.OutlierLim <= 0 {
			return fmt.Errorf("%w: channel %s outlier limit must be > 0, got %g", ErrInvalidConfig, ch.Name, ch.OutlierLim)
		}
		if ch.WindowSize < 1 {
			return fmt.Errorf("%w: channel %s window size must be >= 1, got %d", ErrInvalidConfig, ch.Name, ch.WindowSize)
		}
	}
	if c.Channels[0].Transmitter == c.Channels[1].Transmitter {
		return fmt.Errorf("%w: channels share transmitter %s", ErrInvalidConfig, c.Channels[0].Transmitter)
	}

	return nil
}

// Echo returns the configuration as plain values for run artifacts.
func (c *Config) Echo() map[string]any {
	channels := make([]map[string]any, len(c.Channels))
	for i, ch := range c.Channels {
		channels[i] = map[string]any{
			"name":             ch.Name,
			"transmitter":      ch.Transmitter,
			"degree":           ch.Degree,
			"smoothing_factor": ch.SmoothingFactor,
			"outlier_lim":      ch.OutlierLim,
			"window_size":      ch.WindowSize,
		}
	}
	return map[string]any{
		"base_receiver":      c.BaseReceiver,
		"receiver":           c.Receiver,
		"channels":           channels,
		"time_margin":        c.Match.TimeMargin.String(),
		"check_from":         c.Match.CheckFrom,
		"check_to":           c.Match.CheckTo,
		"smoothing_disabled": c.Smoothing.Disabled,
		"workers":            c.Workers,
		"verify":             c.Verify,
	}
}

// String returns a human-readable summary of the configuration.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Drift Sync Configuration:\n")
	fmt.Fprintf(&sb, "  Base:     %s\n", c.BaseReceiver)
	fmt.Fprintf(&sb, "  Receiver: %s\n\n", c.Receiver)
	fmt.Fprintf(&sb, "  Matching:\n")
	fmt.Fprintf(&sb, "    Time Margin:  %s\n", c.Match.TimeMargin)
	fmt.Fprintf(&sb, "    Check Period: %s\n\n", formatPeriod(c.Match.CheckFrom, c.Match.CheckTo))
	for _, ch := range c.Channels {
		fmt.Fprintf(&sb, "  Channel %s (%s):\n", ch.Name, ch.Transmitter)
		fmt.Fprintf(&sb, "    Outlier Limit: %gs\n", ch.OutlierLim)
		fmt.Fprintf(&sb, "    Window:        %d\n", ch.WindowSize)
		fmt.Fprintf(&sb, "    Spline:        k=%d s=%g\n\n", ch.Degree, ch.SmoothingFactor)
	}
	smoothing := "enabled"
	if c.Smoothing.Disabled {
		smoothing = "disabled"
	}
	fmt.Fprintf(&sb, "  Smoothing: %s\n", smoothing)
	fmt.Fprintf(&sb, "  Workers:   %s\n", formatWorkers(c.Workers))
	fmt.Fprintf(&sb, "  Verify:    %t\n", c.Verify)
	return sb.String()
}

func formatPeriod(from, to string) string {
	if from == "" && to == "" {
		return "all"
	}
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = "end"
	}
	return from + " .. " + to
}

func formatWorkers(n int) string {
	if n == 0 {
		return "auto-detect"
	}
	return strconv.Itoa(n)
}
