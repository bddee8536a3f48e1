package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/config"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

const seedDefaultViewer = "demo-buyer"

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo profiles and conversations",
		Long:  "Seed the local platform with demo counterparts, a few conversations, and a\nsupport welcome. Safe to run repeatedly; seeded messages are idempotent.",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	}
	return cmd
}

// seedMessage is one scripted demo message. Offset is relative to the
// seeding moment; the deterministic client id makes re-runs no-ops.
type seedMessage struct {
	from, to string
	body     string
	media    *models.MediaRef
	offset   time.Duration
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	viewerID := seedViewer(cmd, cfg)

	platform, err := openPlatform(cfg)
	if err != nil {
		return err
	}
	defer platform.Close()

	ctx := cmd.Context()
	profiles := []backend.ProfileRecord{
		{UserID: viewerID, FirstName: "Astrid", LastName: "Berge"},
		{UserID: "demo-seller-maya", FirstName: "Maya", LastName: "Lindqvist", AvatarURL: "asset://seed/maya.png"},
		{UserID: "demo-seller-jonas", FirstName: "Jonas", LastName: "Moe", AvatarURL: "asset://seed/jonas.png"},
	}
	for _, rec := range profiles {
		if err := platform.profiles.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("seed profile %s: %w", rec.UserID, err)
		}
	}

	now := time.Now().UTC()
	script := []seedMessage{
		{from: models.SupportCounterpartID, to: viewerID, body: "Welcome to Placelet! Questions about a listing or a payout? Ask us here.", offset: -72 * time.Hour},

		{from: viewerID, to: "demo-seller-maya", body: "Hi! Is the Fjällräven backpack still available?", offset: -26 * time.Hour},
		{from: "demo-seller-maya", to: viewerID, body: "Hi Astrid! Yes it is, barely used.", offset: -25 * time.Hour},
		{from: "demo-seller-maya", to: viewerID, media: &models.MediaRef{URL: "asset://seed/backpack.jpg", MIME: "image/jpeg", Kind: models.MediaKindImage}, offset: -25*time.Hour + 5*time.Minute},
		{from: viewerID, to: "demo-seller-maya", body: "Looks great. Could you do 400?", offset: -24 * time.Hour},
		{from: "demo-seller-maya", to: viewerID, body: "Deal. Pickup at Majorstuen works for me.", offset: -23 * time.Hour},

		{from: viewerID, to: "demo-seller-jonas", body: "Are the ski boots size 43 true to size?", offset: -4 * time.Hour},
		{from: "demo-seller-jonas", to: viewerID, body: "They run a bit small, honestly.", offset: -time.Hour},
		{from: "demo-seller-jonas", to: viewerID, body: "I also have the 44s if you want to try both pairs.", offset: -50 * time.Minute},
	}

	inserted := 0
	for i, sm := range script {
		msg := models.Message{
			ClientID:    fmt.Sprintf("seed-%s-%02d", viewerID, i),
			SenderID:    sm.from,
			RecipientID: sm.to,
			CreatedAt:   now.Add(sm.offset),
		}
		if sm.media != nil {
			msg.Media = sm.media
		} else {
			msg.Body = sm.body
		}
		if _, err := platform.messages.Insert(ctx, msg); err != nil {
			return fmt.Errorf("seed message %d: %w", i, err)
		}
		inserted++
	}

	// The backpack thread ends resolved; the buyer has read it.
	if err := platform.messages.MarkRead(ctx, "demo-seller-maya", viewerID); err != nil {
		return fmt.Errorf("seed read marks: %w", err)
	}
	if err := platform.pending.MarkNotificationsRead(ctx, "demo-seller-maya", viewerID); err != nil {
		return fmt.Errorf("seed notification marks: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d profiles and %d messages for %s.\n", len(profiles), inserted, viewerID)
	fmt.Fprintf(cmd.OutOrStdout(), "Unread waiting from Jonas Moe and Placelet Support.\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Open the inbox: convo inbox --simulate\n")
	return nil
}

// seedViewer picks the identity the demo is built around: --as wins,
// then the stored context, then the stock demo buyer. The choice is
// persisted so the next plain 'convo' lands in the seeded inbox.
func seedViewer(cmd *cobra.Command, cfg *config.Config) string {
	store := contextStore(cfg)

	viewerID := seedDefaultViewer
	if as, _ := cmd.Flags().GetString("as"); strings.TrimSpace(as) != "" {
		viewerID = strings.TrimSpace(as)
	} else if vctx, err := store.Load(); err == nil && !vctx.IsEmpty() {
		return vctx.ViewerID
	}

	vctx := &config.Context{}
	vctx.SetViewer(viewerID, "Astrid Berge")
	if err := store.Save(vctx); err != nil {
		logging.Warn().Err(err).Msg("could not persist viewer context")
	}
	return viewerID
}
