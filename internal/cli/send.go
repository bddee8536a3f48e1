package cli

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/placelet/convo/internal/media"
	"github.com/placelet/convo/internal/outbox"
	"github.com/placelet/convo/internal/state"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <recipient> [body]",
		Short: "Send a message without opening the inbox",
		Long:  "Send one message as the active viewer (or --as someone else). A second\nterminal running the inbox picks it up through push and reconciliation.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSend,
	}
	cmd.Flags().String("media", "", "Attach a file (photo, video, or document)")
	cmd.Flags().Bool("json", false, "Print the stored message as JSON")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	senderID, err := resolveViewer(cmd, cfg)
	if err != nil {
		return err
	}

	recipientID := strings.TrimSpace(args[0])
	body := ""
	if len(args) > 1 {
		body = args[1]
	}

	attachment, err := loadAttachment(cmd)
	if err != nil {
		return err
	}

	platform, err := openPlatform(cfg)
	if err != nil {
		return err
	}
	defer platform.Close()

	// A one-shot pipeline over a throwaway store runs the same optimistic
	// send the inbox uses: compress, upload, durable write.
	pipeline := outbox.NewPipeline(senderID, state.NewStore(senderID), platform.messages, platform.media,
		media.NewCompressor(media.WithJPEGQuality(cfg.Media.JPEGQuality)),
		outbox.WithSendTimeout(cfg.Engine.SendTimeout),
	)

	msg, err := pipeline.Send(cmd.Context(), outbox.Request{
		RecipientID: recipientID,
		Body:        body,
		Media:       attachment,
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		payload, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
	return nil
}

func loadAttachment(cmd *cobra.Command) (*outbox.Media, error) {
	path, _ := cmd.Flags().GetString("media")
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return &outbox.Media{
		Name: filepath.Base(path),
		MIME: detectMIME(path, data),
		Data: data,
	}, nil
}

// detectMIME prefers the filename extension and falls back to content
// sniffing for extensionless files.
func detectMIME(path string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return http.DetectContentType(data)
}
