// Package config handles convo configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for convo.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Logging settings
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Engine settings for the conversation synchronization loop
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Store settings for the local message platform
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Media settings for attachment handling
	Media MediaConfig `yaml:"media" mapstructure:"media"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global convo settings.
type GlobalConfig struct {
	// DataDir is where convo stores its data (default: ~/.local/share/convo).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/convo).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// EngineConfig contains tuning for the synchronization engine.
type EngineConfig struct {
	// PollInterval is how often the reconciliation poller refetches the
	// full message collection while a view is mounted.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// PushReconcileDelay is how long after a push notification the
	// corrective full reconciliation runs.
	PushReconcileDelay time.Duration `yaml:"push_reconcile_delay" mapstructure:"push_reconcile_delay"`

	// SendTimeout bounds one optimistic send's media upload plus durable
	// write.
	SendTimeout time.Duration `yaml:"send_timeout" mapstructure:"send_timeout"`

	// WatchBuffer is the event channel capacity handed to UI consumers.
	WatchBuffer int `yaml:"watch_buffer" mapstructure:"watch_buffer"`
}

// StoreConfig contains message platform settings.
type StoreConfig struct {
	// Path is the SQLite database file path. Empty means DataDir/convo.db.
	Path string `yaml:"path" mapstructure:"path"`
}

// MediaConfig contains attachment settings.
type MediaConfig struct {
	// Dir is where uploaded media lands. Empty means DataDir/media.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// JPEGQuality is the re-encode quality for photo attachments (1-100).
	JPEGQuality int `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
}

// TUIConfig contains inbox TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows message timestamps in the thread view.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "convo"),
			ConfigDir: filepath.Join(homeDir, ".config", "convo"),
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Engine: EngineConfig{
			PollInterval:       5 * time.Second,
			PushReconcileDelay: 500 * time.Millisecond,
			SendTimeout:        10 * time.Second,
			WatchBuffer:        256,
		},
		Store: StoreConfig{
			Path: "", // resolved to DataDir/convo.db
		},
		Media: MediaConfig{
			Dir:         "", // resolved to DataDir/media
			JPEGQuality: 80,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("engine.poll_interval must be at least 100ms")
	}
	if c.Engine.PushReconcileDelay < 0 {
		return fmt.Errorf("engine.push_reconcile_delay must not be negative")
	}
	if c.Engine.SendTimeout < time.Second {
		return fmt.Errorf("engine.send_timeout must be at least 1s")
	}
	if c.Engine.WatchBuffer < 1 {
		return fmt.Errorf("engine.watch_buffer must be at least 1")
	}
	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		return fmt.Errorf("media.jpeg_quality must be between 1 and 100")
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error, fatal")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console")
	}

	switch c.TUI.Theme {
	case "default", "high-contrast":
	default:
		return fmt.Errorf("tui.theme must be default or high-contrast")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
		c.MediaDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// StorePath returns the full SQLite database path.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.Global.DataDir, "convo.db")
}

// MediaDir returns the full media directory path.
func (c *Config) MediaDir() string {
	if c.Media.Dir != "" {
		return c.Media.Dir
	}
	return filepath.Join(c.Global.DataDir, "media")
}
