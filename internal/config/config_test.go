package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.PollInterval != 5*time.Second {
		t.Errorf("Engine.PollInterval = %v, want 5s", cfg.Engine.PollInterval)
	}
	if cfg.Engine.PushReconcileDelay != 500*time.Millisecond {
		t.Errorf("Engine.PushReconcileDelay = %v, want 500ms", cfg.Engine.PushReconcileDelay)
	}
	if cfg.Engine.SendTimeout != 10*time.Second {
		t.Errorf("Engine.SendTimeout = %v, want 10s", cfg.Engine.SendTimeout)
	}
	if cfg.Engine.WatchBuffer != 256 {
		t.Errorf("Engine.WatchBuffer = %v, want 256", cfg.Engine.WatchBuffer)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "poll interval too small",
			mutate:  func(c *Config) { c.Engine.PollInterval = 50 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "negative reconcile delay",
			mutate:  func(c *Config) { c.Engine.PushReconcileDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "send timeout too small",
			mutate:  func(c *Config) { c.Engine.SendTimeout = 100 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "watch buffer zero",
			mutate:  func(c *Config) { c.Engine.WatchBuffer = 0 },
			wantErr: true,
		},
		{
			name:    "jpeg quality out of range",
			mutate:  func(c *Config) { c.Media.JPEGQuality = 101 },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "unknown theme",
			mutate:  func(c *Config) { c.TUI.Theme = "solarized" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_StorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/data/convo"

	if got := cfg.StorePath(); got != filepath.Join("/data/convo", "convo.db") {
		t.Errorf("StorePath() = %v, want data dir fallback", got)
	}

	cfg.Store.Path = "/tmp/custom.db"
	if got := cfg.StorePath(); got != "/tmp/custom.db" {
		t.Errorf("StorePath() = %v, want explicit path", got)
	}
}

func TestConfig_MediaDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/data/convo"

	if got := cfg.MediaDir(); got != filepath.Join("/data/convo", "media") {
		t.Errorf("MediaDir() = %v, want data dir fallback", got)
	}

	cfg.Media.Dir = "/tmp/media"
	if got := cfg.MediaDir(); got != "/tmp/media" {
		t.Errorf("MediaDir() = %v, want explicit dir", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := []byte(`
log:
  level: debug
engine:
  poll_interval: 2s
  watch_buffer: 64
tui:
  theme: high-contrast
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %v, want debug", cfg.Log.Level)
	}
	if cfg.Engine.PollInterval != 2*time.Second {
		t.Errorf("Engine.PollInterval = %v, want 2s", cfg.Engine.PollInterval)
	}
	if cfg.Engine.WatchBuffer != 64 {
		t.Errorf("Engine.WatchBuffer = %v, want 64", cfg.Engine.WatchBuffer)
	}
	if cfg.TUI.Theme != "high-contrast" {
		t.Errorf("TUI.Theme = %v, want high-contrast", cfg.TUI.Theme)
	}
	// Unset keys keep defaults.
	if cfg.Engine.SendTimeout != 10*time.Second {
		t.Errorf("Engine.SendTimeout = %v, want default 10s", cfg.Engine.SendTimeout)
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := []byte(`
engine:
  poll_interval: 10ms
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() should reject poll_interval below 100ms")
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFromFile() should error for explicit missing file")
	}
}
