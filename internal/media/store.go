package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

// DirStore persists uploads under a local directory and hands back
// file:// references. It stands in for the hosted media platform during
// development and in tests.
type DirStore struct {
	root   string
	logger zerolog.Logger
}

// NewDirStore creates the directory if needed and returns a store rooted
// there.
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("media store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure media root: %w", err)
	}
	return &DirStore{
		root:   root,
		logger: logging.Component("media-store"),
	}, nil
}

// Upload writes the payload to disk under a collision-free name and
// returns its reference. Zstd-packed payloads keep a .zst suffix so the
// encoding survives on disk.
func (s *DirStore) Upload(ctx context.Context, u backend.MediaUpload) (models.MediaRef, error) {
	if err := ctx.Err(); err != nil {
		return models.MediaRef{}, err
	}
	if len(u.Data) == 0 {
		return models.MediaRef{}, fmt.Errorf("upload is empty")
	}

	name := uuid.New().String() + "-" + sanitizeName(u.Name)
	if u.Encoding == EncodingZstd {
		name += ".zst"
	}
	path := filepath.Join(s.root, name)

	if err := os.WriteFile(path, u.Data, 0o644); err != nil {
		return models.MediaRef{}, fmt.Errorf("write upload: %w", err)
	}

	s.logger.Debug().Str("path", path).Int("bytes", len(u.Data)).Msg("media stored")
	return models.MediaRef{
		URL:  "file://" + path,
		MIME: u.MIME,
		Kind: models.KindFromMIME(u.MIME),
	}, nil
}

// sanitizeName strips any path components and squeezes the rest down to a
// filesystem-safe token.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "attachment"
	}
	return out
}
