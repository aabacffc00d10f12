package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/registry"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.Channels) != 2 {
		t.Fatalf("Expected 2 default channels, got %d", len(cfg.Channels))
	}
	if cfg.Match.TimeMargin != 100*time.Second {
		t.Errorf("Expected 100s margin, got %v", cfg.Match.TimeMargin)
	}
	// Receivers and transmitters must come from the user.
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected defaults alone to be incomplete, got %v", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "driftsync.yaml", `
base_receiver: "461059"
receiver: "461211"
channels:
  - transmitter: "62059"
    outlier_lim: 0.002
  - name: rec_tag
    transmitter: "62211"
    degree: 3
match:
  time_margin: 90s
  check_from: "2019-02-13T00:00:00Z"
workers: 4
verify: false
network:
  - receiver: "461059"
    sync_transmitter: "62059"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Match.TimeMargin != 90*time.Second {
		t.Errorf("Margin = %v", cfg.Match.TimeMargin)
	}
	a, b := cfg.Channels[0], cfg.Channels[1]
	if a.Name != "sync_base" || a.OutlierLim != 0.002 || a.Degree != 5 || a.WindowSize != 6 {
		t.Errorf("Channel A defaults not merged: %+v", a)
	}
	if b.Name != "rec_tag" || b.Degree != 3 || b.OutlierLim != 0.005 {
		t.Errorf("Channel B defaults not merged: %+v", b)
	}
	if cfg.Workers != 4 || cfg.Verify {
		t.Errorf("Workers=%d Verify=%t", cfg.Workers, cfg.Verify)
	}
	if len(cfg.Network) != 1 || cfg.Network[0].SyncTransmitter != "62059" {
		t.Errorf("Network = %+v", cfg.Network)
	}
	from, to, err := cfg.CheckPeriod()
	if err != nil || from.IsZero() || !to.IsZero() {
		t.Errorf("CheckPeriod = %v, %v, %v", from, to, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	path := writeFile(t, "bad.yaml", "match: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DRIFTSYNC_BASE_RECEIVER", "B1")
	t.Setenv("DRIFTSYNC_RECEIVER", "R1")
	t.Setenv("DRIFTSYNC_TIME_MARGIN", "30s")
	t.Setenv("DRIFTSYNC_WORKERS", "3")
	t.Setenv("DRIFTSYNC_VERIFY", "false")
	t.Setenv("DRIFTSYNC_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.BaseReceiver != "B1" || cfg.Receiver != "R1" {
		t.Errorf("Receivers = %s, %s", cfg.BaseReceiver, cfg.Receiver)
	}
	if cfg.Match.TimeMargin != 30*time.Second || cfg.Workers != 3 || cfg.Verify || cfg.LogLevel != "debug" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Setenv("DRIFTSYNC_TIME_MARGIN", "soon")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unparseable margin")
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "driftsync.yaml", "receiver: R-file\nworkers: 2\n")
	t.Setenv("DRIFTSYNC_RECEIVER", "R-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Receiver != "R-env" {
		t.Errorf("Expected env to win, got %s", cfg.Receiver)
	}
	if cfg.Workers != 2 {
		t.Errorf("Expected workers from file, got %d", cfg.Workers)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("DRIFTSYNC_WORKERS", "")
	os.Unsetenv("DRIFTSYNC_WORKERS")

	path := writeFile(t, ".env", "DRIFTSYNC_WORKERS=7\n")
	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 7 {
		t.Errorf("Expected workers from .env, got %d", cfg.Workers)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"same receiver", func(c *Config) { c.Receiver = c.BaseReceiver }},
		{"zero margin", func(c *Config) { c.Match.TimeMargin = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"one channel", func(c *Config) { c.Channels = c.Channels[:1] }},
		{"degree 0", func(c *Config) { c.Channels[0].Degree = 0 }},
		{"degree 6", func(c *Config) { c.Channels[1].Degree = 6 }},
		{"zero smoothing", func(c *Config) { c.Channels[0].SmoothingFactor = 0 }},
		{"zero outlier", func(c *Config) { c.Channels[1].OutlierLim = 0 }},
		{"zero window", func(c *Config) { c.Channels[0].WindowSize = 0 }},
		{"shared transmitter", func(c *Config) { c.Channels[1].Transmitter = c.Channels[0].Transmitter }},
		{"no transmitter", func(c *Config) { c.Channels[1].Transmitter = "" }},
		{"bad period", func(c *Config) { c.Match.CheckFrom = "yesterday" }},
		{"reversed period", func(c *Config) {
			c.Match.CheckFrom = "2020-01-02T00:00:00Z"
			c.Match.CheckTo = "2020-01-01T00:00:00Z"
		}},
	}

	if cfg := testConfig(); cfg.Validate() != nil {
		t.Fatalf("Base test config invalid: %v", cfg.Validate())
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfig_Resolve(t *testing.T) {
	cfg := testConfig()
	cfg.Channels[0].Transmitter = ""
	cfg.Channels[1].Transmitter = ""

	if err := cfg.Resolve(); !errors.Is(err, registry.ErrUnknownReceiver) {
		t.Errorf("Expected ErrUnknownReceiver without a network, got %v", err)
	}

	cfg.Network = []registry.Station{
		{Receiver: "base", SyncTransmitter: "TX-base"},
		{Receiver: "rec", SyncTransmitter: "TX-rec"},
	}
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Channels[0].Transmitter != "TX-base" || cfg.Channels[1].Transmitter != "TX-rec" {
		t.Errorf("Resolved %s, %s", cfg.Channels[0].Transmitter, cfg.Channels[1].Transmitter)
	}
}

func TestConfig_EchoAndString(t *testing.T) {
	cfg := testConfig()
	echo := cfg.Echo()
	if echo["time_margin"] != "5s" {
		t.Errorf("time_margin echo = %v", echo["time_margin"])
	}
	if chs, ok := echo["channels"].([]map[string]any); !ok || len(chs) != 2 || chs[0]["transmitter"] != "A" {
		t.Errorf("channels echo = %v", echo["channels"])
	}

	s := cfg.String()
	t.Log(s)
	for _, want := range []string{"Base:     base", "Channel sync_rec (B)", "Workers:   2"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q", want)
		}
	}
}
