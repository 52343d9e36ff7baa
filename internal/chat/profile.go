package chat

import (
	"context"
	"sync"
	"time"

	"pawchat/backend/internal/storage"

	"golang.org/x/sync/singleflight"
)

// PlaceholderName is shown for a counterpart whose profile cannot be resolved.
const PlaceholderName = "other user"

// ProfileLookup resolves a user's display name.
type ProfileLookup interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// StoreProfiles reads names from the users table of the document store.
type StoreProfiles struct {
	Storage storage.Storage
}

// DisplayName walks nickname -> display name -> "anonymous".
func (p StoreProfiles) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := p.Storage.GetUserByID(ctx, userID)
	if err != nil {
		return "", storeErr(err)
	}
	return user.ResolvedName(), nil
}

type cachedName struct {
	name     string
	storedAt time.Time
}

// ProfileCache remembers resolved names. With ttl 0 the first resolution
// is kept for the cache's whole lifetime.
type ProfileCache struct {
	lookup ProfileLookup
	ttl    time.Duration

	// Now is the cache clock, replaceable in tests.
	Now func() time.Time

	mu    sync.Mutex
	names map[string]cachedName
	group singleflight.Group
}

// NewProfileCache wraps lookup with a cache that expires entries after ttl (0 = never).
func NewProfileCache(lookup ProfileLookup, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		lookup: lookup,
		ttl:    ttl,
		Now:    time.Now,
		names:  make(map[string]cachedName),
	}
}

// Name returns the cached or freshly resolved name. Failures give
// PlaceholderName and are not cached, so a later call can still resolve.
func (c *ProfileCache) Name(ctx context.Context, userID string) string {
	c.mu.Lock()
	entry, ok := c.names[userID]
	if ok && (c.ttl == 0 || c.Now().Sub(entry.storedAt) < c.ttl) {
		c.mu.Unlock()
		return entry.name
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		name, err := c.lookup.DisplayName(ctx, userID)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.names[userID] = cachedName{name: name, storedAt: c.Now()}
		c.mu.Unlock()
		return name, nil
	})
	if err != nil {
		return PlaceholderName
	}
	return v.(string)
}
