package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/placelet/convo/internal/engine"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/media"
	"github.com/placelet/convo/internal/tui"
)

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Open the conversation inbox",
		Long:  "Open the interactive inbox: conversations sorted by recency, unread badges,\nand a thread view with optimistic sends.",
		Args:  cobra.NoArgs,
		RunE:  runInbox,
	}
	cmd.Flags().Bool("simulate", false, "Demo mode: counterparts auto-reply to every send")
	cmd.Flags().String("theme", "", "Color theme (default, high-contrast)")
	return cmd
}

func runInbox(cmd *cobra.Command, _ []string) error {
	if !interactiveTerminal() {
		return fmt.Errorf("inbox needs an interactive terminal; use 'convo send' for scripting")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if theme, _ := cmd.Flags().GetString("theme"); strings.TrimSpace(theme) != "" {
		cfg.TUI.Theme = strings.TrimSpace(theme)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// Logs on stderr would bleed through the alternate screen; keep a
	// file sink while the program runs.
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.Global.DataDir, "convo.log")
		if err := initLogging(cfg); err != nil {
			return err
		}
	}

	viewerID, err := resolveViewer(cmd, cfg)
	if err != nil {
		return err
	}

	platform, err := openPlatform(cfg)
	if err != nil {
		return err
	}
	defer platform.Close()

	bundle := platform.backend()
	if simulate, _ := cmd.Flags().GetBool("simulate"); simulate {
		bundle.Messages = newAutoReplyStore(platform.messages, viewerID)
		logging.Info().Str("viewer_id", viewerID).Msg("simulate mode: counterparts will auto-reply")
	}

	eng, err := engine.New(engineConfig(cfg), bundle,
		engine.WithCompressor(media.NewCompressor(media.WithJPEGQuality(cfg.Media.JPEGQuality))),
	)
	if err != nil {
		return err
	}

	sess, err := eng.Mount(cmd.Context(), viewerID)
	if err != nil {
		return fmt.Errorf("mount session: %w", err)
	}
	defer func() {
		_ = sess.Unmount()
	}()

	return tui.Run(sess, tui.Options{
		Theme:          cfg.TUI.Theme,
		ShowTimestamps: cfg.TUI.ShowTimestamps,
	})
}

func interactiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
