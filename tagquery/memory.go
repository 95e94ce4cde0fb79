package tagquery

import (
	"context"
	"sync"
)

// MemoryIndex is an in-memory inverted index from tag name to post ids.
// It is safe for concurrent use.
type MemoryIndex struct {
	mu    sync.RWMutex
	posts PostSet
	tags  map[string]PostSet
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		posts: make(PostSet),
		tags:  make(map[string]PostSet),
	}
}

// AddPost records a post, tagged or not.
func (m *MemoryIndex) AddPost(id string) {
	m.mu.Lock()
	m.posts[id] = struct{}{}
	m.mu.Unlock()
}

// Attach records that post id carries tag. Attaching the same pair again has
// no effect.
func (m *MemoryIndex) Attach(id, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[id] = struct{}{}
	set, ok := m.tags[tag]
	if !ok {
		set = make(PostSet)
		m.tags[tag] = set
	}
	set[id] = struct{}{}
}

// Len returns the number of posts in the index.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.posts)
}

func (m *MemoryIndex) PostsTaggedWithAny(_ context.Context, names []string) (PostSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(PostSet)
	for _, name := range names {
		for id := range m.tags[name] {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *MemoryIndex) PostsTaggedWithAll(_ context.Context, names []string) (PostSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(names) == 0 {
		return PostSet{}, nil
	}
	// Count distinct matching tags per post, the same grouping the SQL
	// store does with HAVING COUNT(DISTINCT ...).
	want := make(map[string]struct{}, len(names))
	for _, name := range names {
		want[name] = struct{}{}
	}
	counts := make(map[string]int)
	for name := range want {
		for id := range m.tags[name] {
			counts[id]++
		}
	}
	out := make(PostSet)
	for id, n := range counts {
		if n == len(want) {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *MemoryIndex) AllPosts(_ context.Context) (PostSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(PostSet, len(m.posts))
	for id := range m.posts {
		out[id] = struct{}{}
	}
	return out, nil
}
