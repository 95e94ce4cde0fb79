package argot

import (
	"context"
	"testing"
	"time"

	"github.com/eringen/argot/tagquery"
)

func TestPostCacheSnapshot(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustTags(t, s, "go")
	c := NewPostCache(s, time.Hour)

	tags, err := c.ListTags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].Name != "go" {
		t.Fatalf("unexpected tags %v", tags)
	}

	p, err := s.CreatePost(ctx, Post{Title: "cached", Author: "alice", Tags: []string{"go"}})
	if err != nil {
		t.Fatal(err)
	}

	idx, err := c.Index(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := tagquery.Evaluate(ctx, tagquery.Query{Include: []string{"go"}}, idx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("snapshot should predate the post, got %v", ids)
	}

	c.Invalidate()
	idx, err = c.Index(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ids, err = tagquery.Evaluate(ctx, tagquery.Query{Include: []string{"go"}}, idx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != p.ID {
		t.Errorf("expected [%s] after invalidate, got %v", p.ID, ids)
	}
}

func TestPostCacheExpires(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := NewPostCache(s, time.Millisecond)

	if _, err := c.ListTags(ctx); err != nil {
		t.Fatal(err)
	}
	mustTags(t, s, "rust")
	time.Sleep(5 * time.Millisecond)

	tags, err := c.ListTags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 {
		t.Errorf("expired cache should reload, got %v", tags)
	}
}
