package cli

import (
	"fmt"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/config"
	"github.com/placelet/convo/internal/db"
	"github.com/placelet/convo/internal/engine"
	"github.com/placelet/convo/internal/events"
	"github.com/placelet/convo/internal/media"
)

// platform bundles the reference backend the CLI runs against: SQLite for
// durability, the in-process channel for push, and a local directory for
// media. The message repository's notifier feeds the channel, so every
// durable insert reaches subscribed listeners the way the hosted
// platform's push transport would.
type platform struct {
	database *db.DB
	channel  *events.Channel
	messages *db.MessageRepository
	profiles *db.ProfileRepository
	pending  *db.NotificationRepository
	media    *media.DirStore
}

func openPlatform(cfg *config.Config) (*platform, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}

	mediaStore, err := media.NewDirStore(cfg.MediaDir())
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	channel := events.NewChannel()
	messages := db.NewMessageRepository(database, db.WithNotifier(func(n backend.Notification) {
		channel.Publish(backend.Topic(n.RecipientID), n)
	}))

	return &platform{
		database: database,
		channel:  channel,
		messages: messages,
		profiles: db.NewProfileRepository(database),
		pending:  db.NewNotificationRepository(database),
		media:    mediaStore,
	}, nil
}

func (p *platform) Close() error {
	return p.database.Close()
}

// backend exposes the platform as an engine backend bundle.
func (p *platform) backend() engine.Backend {
	return engine.Backend{
		Messages:      p.messages,
		Push:          p.channel,
		Profiles:      p.profiles,
		Media:         p.media,
		Notifications: p.pending,
	}
}

// engineConfig maps the file configuration onto engine tuning.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		PollInterval:       cfg.Engine.PollInterval,
		PushReconcileDelay: cfg.Engine.PushReconcileDelay,
		SendTimeout:        cfg.Engine.SendTimeout,
		WatchBuffer:        cfg.Engine.WatchBuffer,
	}
}
