// Package profile resolves counterpart display identities against the
// platform directory, with an explicit cache and a fixed pseudo-identity
// for the support counterpart.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

// applier is the slice of the conversation store the resolver needs to
// correct already-rendered conversations in place.
type applier interface {
	ApplyProfile(models.ProfileSummary)
}

// Resolver looks up counterpart identities. Misses resolve to the
// placeholder identity rather than an error; the support counterpart
// resolves to its fixed identity without any directory call.
type Resolver struct {
	cache  *Cache
	dir    backend.ProfileDirectory
	store  applier
	logger zerolog.Logger
}

// NewResolver creates a Resolver. cache may be nil for a fresh one;
// store may be nil when no conversation state needs correcting.
func NewResolver(cache *Cache, dir backend.ProfileDirectory, store applier) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{
		cache:  cache,
		dir:    dir,
		store:  store,
		logger: logging.Component("profile-resolver"),
	}
}

// Resolve returns the display identity for a counterpart.
//
// Cache hits return immediately. On a miss the cache is seeded with the
// placeholder first, so a concurrent resolve of the same counterpart
// returns the placeholder instead of issuing a duplicate lookup; the
// lookup then runs and a success overwrites the entry and corrects the
// store. A not-found miss keeps the placeholder and is not an error. A
// failed lookup keeps the placeholder and returns the error alongside it.
func (r *Resolver) Resolve(ctx context.Context, counterpartID string) (models.ProfileSummary, error) {
	if counterpartID == models.SupportCounterpartID {
		return models.SupportProfile(), nil
	}

	if cached, ok := r.cache.Get(counterpartID); ok {
		return cached, nil
	}

	seeded, claimed := r.cache.PutIfAbsent(models.PlaceholderProfile(counterpartID))
	if !claimed {
		return seeded, nil
	}

	rec, err := r.dir.Lookup(ctx, counterpartID)
	if err != nil {
		if errors.Is(err, backend.ErrProfileNotFound) {
			r.logger.Debug().Str("counterpart_id", counterpartID).Msg("no directory record, keeping placeholder")
			return seeded, nil
		}
		r.logger.Debug().Err(err).Str("counterpart_id", counterpartID).Msg("profile lookup failed")
		return seeded, err
	}

	summary := summarize(counterpartID, rec)
	r.cache.Put(summary)
	if r.store != nil {
		r.store.ApplyProfile(summary)
	}
	return summary, nil
}

// Refresh is the explicit re-resolution path: it drops the cached entry
// and resolves again.
func (r *Resolver) Refresh(ctx context.Context, counterpartID string) (models.ProfileSummary, error) {
	if counterpartID == models.SupportCounterpartID {
		return models.SupportProfile(), nil
	}
	r.cache.Invalidate(counterpartID)
	return r.Resolve(ctx, counterpartID)
}

// Summary returns the best known identity without blocking: the support
// identity, the cached entry, or the placeholder.
func (r *Resolver) Summary(counterpartID string) models.ProfileSummary {
	if counterpartID == models.SupportCounterpartID {
		return models.SupportProfile()
	}
	if cached, ok := r.cache.Get(counterpartID); ok {
		return cached
	}
	return models.PlaceholderProfile(counterpartID)
}

// Cached reports whether a counterpart needs no resolution.
func (r *Resolver) Cached(counterpartID string) bool {
	if counterpartID == models.SupportCounterpartID {
		return true
	}
	_, ok := r.cache.Get(counterpartID)
	return ok
}

// summarize composes the display identity from raw directory name parts.
func summarize(counterpartID string, rec backend.ProfileRecord) models.ProfileSummary {
	name := strings.TrimSpace(strings.TrimSpace(rec.FirstName) + " " + strings.TrimSpace(rec.LastName))
	if name == "" {
		name = models.PlaceholderDisplayName
	}
	return models.ProfileSummary{
		CounterpartID: counterpartID,
		DisplayName:   name,
		AvatarRef:     rec.AvatarURL,
	}
}
