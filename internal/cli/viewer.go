package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/placelet/convo/internal/config"
	"github.com/placelet/convo/internal/logging"
)

// resolveViewer decides which user this command acts as. An explicit
// --as wins and is persisted as the active viewer; otherwise the stored
// context supplies it.
func resolveViewer(cmd *cobra.Command, cfg *config.Config) (string, error) {
	store := contextStore(cfg)

	if as, _ := cmd.Flags().GetString("as"); strings.TrimSpace(as) != "" {
		viewerID := strings.TrimSpace(as)
		vctx, err := store.Load()
		if err != nil {
			vctx = &config.Context{}
		}
		if vctx.ViewerID != viewerID {
			vctx.SetViewer(viewerID, "")
			if err := store.Save(vctx); err != nil {
				logging.Warn().Err(err).Msg("could not persist viewer context")
			}
		}
		return viewerID, nil
	}

	vctx, err := store.Load()
	if err != nil {
		return "", fmt.Errorf("load viewer context: %w", err)
	}
	if vctx.IsEmpty() {
		return "", fmt.Errorf("no viewer selected; run 'convo seed' or pass --as <user-id> once")
	}
	return vctx.ViewerID, nil
}

func contextStore(cfg *config.Config) *config.ContextStore {
	return config.NewContextStore(filepath.Join(cfg.Global.ConfigDir, "context.yaml"))
}
