// Package media shrinks attachment payloads before upload and provides a
// directory-backed media store for local development.
package media

import (
	"bytes"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
)

// DefaultJPEGQuality is the re-encode quality for photo attachments.
const DefaultJPEGQuality = 80

// EncodingZstd tags a payload whose bytes were zstd-compressed in
// transit. The media store persists the encoding so the serving side can
// undo it.
const EncodingZstd = "zstd"

// zstdEncoder is reused across calls; zstd.Encoder is safe for concurrent
// use.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("media: zstd encoder initialization failed: " + err.Error())
	}
}

// Compressor shrinks uploads by content type: photos are re-encoded at a
// lower quality, text-like payloads are zstd-compressed, and content that
// already carries its own compression passes through untouched. In every
// case the original wins when shrinking does not actually produce fewer
// bytes, and payloads that fail to decode pass through unchanged.
type Compressor struct {
	jpegQuality int
	logger      zerolog.Logger
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithJPEGQuality overrides the photo re-encode quality (1..100).
func WithJPEGQuality(q int) Option {
	return func(c *Compressor) {
		if q >= 1 && q <= 100 {
			c.jpegQuality = q
		}
	}
}

// NewCompressor creates a Compressor with default settings.
func NewCompressor(opts ...Option) *Compressor {
	c := &Compressor{
		jpegQuality: DefaultJPEGQuality,
		logger:      logging.Component("media"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compress shrinks one upload. It never fails: anything that cannot be
// made smaller, or cannot be decoded at all, is returned as-is.
func (c *Compressor) Compress(u backend.MediaUpload) backend.MediaUpload {
	switch {
	case u.MIME == "image/jpeg":
		return c.reencodeJPEG(u)
	case u.MIME == "image/png":
		return c.reencodePNG(u)
	case precompressed(u.MIME):
		return u
	default:
		return c.pack(u)
	}
}

func (c *Compressor) reencodeJPEG(u backend.MediaUpload) backend.MediaUpload {
	img, err := jpeg.Decode(bytes.NewReader(u.Data))
	if err != nil {
		c.logger.Debug().Err(err).Str("name", u.Name).Msg("jpeg decode failed, uploading original")
		return u
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
		c.logger.Debug().Err(err).Str("name", u.Name).Msg("jpeg encode failed, uploading original")
		return u
	}
	if buf.Len() >= len(u.Data) {
		return u
	}
	u.Data = buf.Bytes()
	return u
}

func (c *Compressor) reencodePNG(u backend.MediaUpload) backend.MediaUpload {
	img, err := png.Decode(bytes.NewReader(u.Data))
	if err != nil {
		c.logger.Debug().Err(err).Str("name", u.Name).Msg("png decode failed, uploading original")
		return u
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		c.logger.Debug().Err(err).Str("name", u.Name).Msg("png encode failed, uploading original")
		return u
	}
	if buf.Len() >= len(u.Data) {
		return u
	}
	u.Data = buf.Bytes()
	return u
}

// pack zstd-compresses payloads with no better option. The original wins
// when the compressed form is not smaller.
func (c *Compressor) pack(u backend.MediaUpload) backend.MediaUpload {
	if len(u.Data) == 0 {
		return u
	}
	compressed := zstdEncoder.EncodeAll(u.Data, nil)
	if len(compressed) >= len(u.Data) {
		return u
	}
	u.Data = compressed
	u.Encoding = EncodingZstd
	return u
}

// precompressed reports content types that already carry their own
// compression, where another pass adds CPU cost without saving bytes.
func precompressed(mime string) bool {
	if strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/") {
		return true
	}
	switch mime {
	case "image/gif", "image/webp", "image/avif", "image/heic",
		"application/zip", "application/gzip", "application/x-gzip",
		"application/zstd", "application/pdf",
		"application/x-7z-compressed", "application/x-rar-compressed":
		return true
	}
	return false
}
