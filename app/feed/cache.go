package feed

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/database"
)

// aggregateKey is the reserved cache key for the "all categories" feed.
const aggregateKey = ""

type cacheEntry struct {
	docs        Documents
	generatedAt time.Time
}

// Cache holds the rendered feed documents per category, lazily rebuilt from
// the store on first request and discarded on any write to the category's
// partition. Documents are derived, disposable state: the store is always the
// source of truth.
type Cache struct {
	deals     database.DealRepository
	registry  *category.Registry
	generator *Generator
	pageSize  int

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

func NewCache(deals database.DealRepository, registry *category.Registry,
	generator *Generator, pageSize int) *Cache {
	return &Cache{
		deals:     deals,
		registry:  registry,
		generator: generator,
		pageSize:  pageSize,
		entries:   make(map[string]*cacheEntry),
	}
}

// Get returns the rendered document for a category and format, regenerating
// the entry from the store when absent. An empty category name selects the
// aggregate feed. Regeneration errors propagate; a stale document is never
// returned in their place.
func (c *Cache) Get(categoryName string, format Format) (string, error) {
	key := aggregateKey
	if categoryName != "" {
		key = category.CanonicalName(categoryName)
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry.docs.Get(format), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another reader may have rebuilt the entry while we waited for the lock
	if entry, ok := c.entries[key]; ok {
		return entry.docs.Get(format), nil
	}

	entry, err := c.rebuild(key)
	if err != nil {
		return "", err
	}
	c.entries[key] = entry

	return entry.docs.Get(format), nil
}

func (c *Cache) rebuild(key string) (*cacheEntry, error) {
	deals, err := c.deals.Query(key, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load deals for feed generation: %w", err)
	}

	slug := ""
	if key != aggregateKey {
		slug = c.registry.SlugOf(key)
	}

	docs, err := c.generator.Run(key, slug, deals)
	if err != nil {
		return nil, err
	}

	slog.Debug("Feed documents generated", "category", key, "items", len(deals))

	return &cacheEntry{docs: docs, generatedAt: time.Now()}, nil
}

// Invalidate discards the cached entry for a category together with the
// aggregate entry, which depends on every partition.
func (c *Cache) Invalidate(categoryName string) {
	key := category.CanonicalName(categoryName)

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	delete(c.entries, aggregateKey)
}

// GeneratedAt reports when the cached entry for a category was built.
func (c *Cache) GeneratedAt(categoryName string) (time.Time, bool) {
	key := aggregateKey
	if categoryName != "" {
		key = category.CanonicalName(categoryName)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return entry.generatedAt, true
}
