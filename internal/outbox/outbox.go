// Package outbox implements the optimistic send pipeline. A send shows up
// in the conversation state before any network round trip: a provisional
// message is appended to the thread, media is compressed and uploaded,
// the durable write carries the client correlation key, and the
// provisional entry is replaced in place (or marked failed) once the
// write settles.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

// DefaultSendTimeout bounds the upload plus durable write of one send.
const DefaultSendTimeout = 10 * time.Second

// threadStore is the slice of the conversation store the pipeline drives.
type threadStore interface {
	AppendProvisional(models.Message)
	UpsertFromMessage(models.Message)
	ResolveProvisional(clientID string, durable models.Message) bool
	FailProvisional(counterpartID, clientID string) bool
}

// compressor shrinks an attachment payload before upload. Implementations
// return the original payload when shrinking does not help.
type compressor interface {
	Compress(backend.MediaUpload) backend.MediaUpload
}

// Media is a raw attachment picked by the user.
type Media struct {
	Name string
	MIME string
	Data []byte
}

// Request is one user-initiated send.
type Request struct {
	RecipientID string
	Body        string
	Media       *Media
}

// Validate checks the request for structural problems.
func (r Request) Validate(viewerID string) error {
	errs := &models.ValidationErrors{}
	if r.RecipientID == "" {
		errs.AddMessage("recipientId", "recipient is required")
	}
	if r.RecipientID != "" && r.RecipientID == viewerID {
		errs.AddMessage("recipientId", "cannot message yourself")
	}
	if r.Body == "" && r.Media == nil {
		errs.AddMessage("body", "message needs text or media")
	}
	if r.Media != nil && len(r.Media.Data) == 0 {
		errs.AddMessage("media", "attachment is empty")
	}
	return errs.Err()
}

// Pipeline sends messages optimistically. Concurrent sends are not
// serialized against each other; each carries its own correlation key and
// reconciles independently.
type Pipeline struct {
	viewerID string
	store    threadStore
	messages backend.MessageStore
	media    backend.MediaStore
	shrink   compressor
	logger   zerolog.Logger

	now        func() time.Time
	generateID func() string
	timeout    time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithIDGenerator overrides the correlation key generator, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		p.generateID = gen
	}
}

// WithSendTimeout bounds each send's network work. Zero keeps the default.
func WithSendTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPipeline creates a send pipeline for one viewer. media and shrink may
// be nil when the caller never sends attachments.
func NewPipeline(viewerID string, store threadStore, messages backend.MessageStore, media backend.MediaStore, shrink compressor, opts ...Option) *Pipeline {
	p := &Pipeline{
		viewerID:   viewerID,
		store:      store,
		messages:   messages,
		media:      media,
		shrink:     shrink,
		logger:     logging.Component("outbox").With().Str("viewer_id", viewerID).Logger(),
		now:        time.Now,
		generateID: func() string { return uuid.New().String() },
		timeout:    DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send runs one optimistic send to completion. The provisional message is
// visible in the store before Send does any network work. On failure the
// provisional entry stays in the thread marked failed and is returned
// alongside the error; there is no automatic retry.
func (p *Pipeline) Send(ctx context.Context, req Request) (models.Message, error) {
	if err := req.Validate(p.viewerID); err != nil {
		return models.Message{}, err
	}

	provisional := models.Message{
		ClientID:    p.generateID(),
		SenderID:    p.viewerID,
		RecipientID: req.RecipientID,
		Body:        req.Body,
		CreatedAt:   p.now().UTC(),
		State:       models.MessageStatePending,
	}
	if req.Media != nil {
		provisional.Media = &models.MediaRef{
			MIME: req.Media.MIME,
			Kind: models.KindFromMIME(req.Media.MIME),
		}
	}

	p.store.AppendProvisional(provisional)
	p.store.UpsertFromMessage(provisional)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	durable, err := p.deliver(ctx, req, provisional)
	if err != nil {
		p.store.FailProvisional(req.RecipientID, provisional.ClientID)
		p.logger.Warn().Err(err).
			Str("client_id", provisional.ClientID).
			Str("recipient_id", req.RecipientID).
			Msg("send failed")
		failed := provisional
		failed.State = models.MessageStateFailed
		return failed, err
	}

	durable.State = models.MessageStateSent
	if durable.ClientID == "" {
		durable.ClientID = provisional.ClientID
	}
	p.store.ResolveProvisional(provisional.ClientID, durable)
	p.store.UpsertFromMessage(durable)

	p.logger.Debug().
		Str("message_id", durable.ID).
		Str("client_id", durable.ClientID).
		Msg("send confirmed")
	return durable, nil
}

// deliver uploads the attachment when present and issues the durable
// write.
func (p *Pipeline) deliver(ctx context.Context, req Request, provisional models.Message) (models.Message, error) {
	outgoing := provisional
	if req.Media != nil {
		if p.media == nil {
			return models.Message{}, fmt.Errorf("upload media: no media store configured")
		}
		upload := backend.MediaUpload{
			Name: req.Media.Name,
			MIME: req.Media.MIME,
			Data: req.Media.Data,
		}
		if p.shrink != nil {
			upload = p.shrink.Compress(upload)
		}
		ref, err := p.media.Upload(ctx, upload)
		if err != nil {
			return models.Message{}, fmt.Errorf("upload media: %w", err)
		}
		outgoing.Media = &ref

		p.logger.Debug().
			Str("client_id", provisional.ClientID).
			Str("media_url", logging.RedactURL(ref.URL)).
			Str("media_mime", ref.MIME).
			Msg("media uploaded")
	}

	durable, err := p.messages.Insert(ctx, outgoing)
	if err != nil {
		return models.Message{}, fmt.Errorf("write message: %w", err)
	}
	return durable, nil
}
