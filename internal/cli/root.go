// Package cli implements the convo command line: the inbox TUI, demo
// seeding, and a scriptable send for exercising reconciliation from a
// second process.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/placelet/convo/internal/config"
	"github.com/placelet/convo/internal/logging"
)

// Execute runs the convo CLI. Invoked with no arguments it opens the
// inbox.
func Execute(version string) error {
	cmd := newRootCmd(version)
	if len(os.Args) == 1 {
		cmd.SetArgs([]string{"inbox"})
	}
	return cmd.Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "convo",
		Short:         "Marketplace conversations in your terminal",
		Long:          "convo keeps a local conversation view synchronized against the message platform:\noptimistic sends, push merges, and periodic reconciliation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default ~/.config/convo/config.yaml)")
	cmd.PersistentFlags().String("as", "", "Act as this user id (persisted as the active viewer)")
	cmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "Override log format (console, json)")

	cmd.AddCommand(
		newInboxCmd(),
		newSeedCmd(),
		newSendCmd(),
		newVersionCmd(version),
	)

	return cmd
}

// loadConfig resolves the effective configuration for one command run:
// defaults, then the config file, then CONVO_* env, then flag overrides.
// It also initializes the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); strings.TrimSpace(path) != "" {
		loader.SetConfigFile(strings.TrimSpace(path))
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); strings.TrimSpace(level) != "" {
		cfg.Log.Level = strings.TrimSpace(level)
	}
	if format, _ := cmd.Flags().GetString("log-format"); strings.TrimSpace(format) != "" {
		cfg.Log.Format = strings.TrimSpace(format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := initLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging points the global logger at the configured sink. A
// configured file wins; otherwise logs go to stderr.
func initLogging(cfg *config.Config) error {
	out := os.Stderr
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	logging.Init(logging.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       out,
		EnableCaller: cfg.Log.EnableCaller,
	})
	return nil
}
