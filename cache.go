package argot

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/argot/tagquery"
)

// PostCache holds an in-memory snapshot of the post/tag relation and the
// tag registry with a TTL. Searches evaluate against the snapshot instead of
// issuing SQL per tag.
type PostCache struct {
	mu      sync.RWMutex
	index   *tagquery.MemoryIndex
	tags    []Tag
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewPostCache creates a PostCache backed by the given Store.
func NewPostCache(s *Store, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl}
}

func (c *PostCache) valid() bool {
	return c.index != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.index = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *PostCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	index, err := c.store.LoadIndex(ctx)
	if err != nil {
		return err
	}
	tags, err := c.store.ListTags(ctx)
	if err != nil {
		return err
	}
	c.index = index
	c.tags = tags
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns the cached snapshot after ensuring it is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PostCache) ensureLoaded(ctx context.Context) (*tagquery.MemoryIndex, []Tag, error) {
	c.mu.RLock()
	if c.valid() {
		index, tags := c.index, c.tags
		c.mu.RUnlock()
		return index, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.index, c.tags, nil
}

// Index returns the current post/tag snapshot. Callers must not modify it.
func (c *PostCache) Index(ctx context.Context) (tagquery.Index, error) {
	index, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return index, nil
}

// ListTags returns all registered tags.
func (c *PostCache) ListTags(ctx context.Context) ([]Tag, error) {
	_, tags, err := c.ensureLoaded(ctx)
	return tags, err
}
