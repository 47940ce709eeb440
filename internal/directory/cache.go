// Package directory caches known peers and their imported encryption keys.
package directory

import (
	"log/slog"
	"sync"

	"safechat/internal/domain"
	"safechat/internal/keycodec"
)

// Cache maps user ids to directory entries. It grows via the initial fetch
// after the transport opens and via live new-user events, and is cleared on
// logout. Lookups for peers not yet seeded simply report absence.
type Cache struct {
	log *slog.Logger

	mu      sync.Mutex
	order   []string
	entries map[string]domain.DirectoryEntry
}

// NewCache returns an empty cache. A nil logger falls back to slog.Default.
func NewCache(log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		log:     log,
		entries: make(map[string]domain.DirectoryEntry),
	}
}

// Load replaces the cache contents with the fetched identities, excluding
// selfID. Key import is per entry and all-or-nothing: an identity whose key
// material is empty or fails to import is dropped with a warning, never
// aborting the load.
func (c *Cache) Load(identities []domain.Identity, selfID string) {
	order := make([]string, 0, len(identities))
	entries := make(map[string]domain.DirectoryEntry, len(identities))
	for _, id := range identities {
		if id.ID == selfID || id.PublicKey == "" {
			continue
		}
		key, err := keycodec.Import(id.PublicKey)
		if err != nil {
			c.log.Warn("dropping directory entry with bad key",
				"user_id", id.ID, "username", id.Username, "error", err)
			continue
		}
		if _, dup := entries[id.ID]; dup {
			continue
		}
		order = append(order, id.ID)
		entries[id.ID] = domain.DirectoryEntry{Identity: id, Key: key}
	}

	c.mu.Lock()
	c.order = order
	c.entries = entries
	c.mu.Unlock()
}

// Upsert inserts the identity if absent by id, importing its key first, and
// reports whether the cache changed. Repeated upserts for the same id are
// no-ops after the first; an import failure leaves the cache untouched.
func (c *Cache) Upsert(id domain.Identity) bool {
	key, err := keycodec.Import(id.PublicKey)
	if err != nil {
		c.log.Warn("ignoring new user with bad key",
			"user_id", id.ID, "username", id.Username, "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[id.ID]; exists {
		return false
	}
	c.order = append(c.order, id.ID)
	c.entries[id.ID] = domain.DirectoryEntry{Identity: id, Key: key}
	return true
}

// Lookup returns the entry for id, if present.
func (c *Cache) Lookup(id string) (domain.DirectoryEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	return entry, ok
}

// Entries returns a snapshot in insertion order.
func (c *Cache) Entries() []domain.DirectoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.DirectoryEntry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear empties the cache. Called on logout; the directory is never
// persisted.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.entries = make(map[string]domain.DirectoryEntry)
}
