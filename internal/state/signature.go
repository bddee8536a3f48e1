package state

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/placelet/convo/internal/models"
)

// Signature computes the content signature ReplaceIfChanged compares:
// the ordered concatenation of each conversation's counterpart ID,
// last-message timestamp, unread count, and preview text, hashed so the
// comparison is constant-size. Display identity is deliberately excluded;
// profile corrections flow through ApplyProfile, not wholesale
// replacement.
func Signature(convs []models.Conversation) [blake2b.Size256]byte {
	var b strings.Builder
	for _, c := range convs {
		b.WriteString(c.CounterpartID)
		b.WriteByte(0x1f)
		b.WriteString(c.LastMessageAt.UTC().Format(time.RFC3339Nano))
		b.WriteByte(0x1f)
		b.WriteString(strconv.Itoa(c.UnreadCount))
		b.WriteByte(0x1f)
		b.WriteString(c.PreviewText)
		b.WriteByte(0x1e)
	}
	return blake2b.Sum256([]byte(b.String()))
}
