package tagquery

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// PostSet is a set of post ids.
type PostSet map[string]struct{}

// NewPostSet returns a set holding ids.
func NewPostSet(ids ...string) PostSet {
	s := make(PostSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s PostSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s PostSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Index resolves tag names to the posts carrying them. Implementations must
// treat unknown names as matching no posts rather than as errors.
type Index interface {
	// PostsTaggedWithAny returns posts carrying at least one of names.
	PostsTaggedWithAny(ctx context.Context, names []string) (PostSet, error)
	// PostsTaggedWithAll returns posts carrying every one of names. A name
	// that matches no tag therefore empties the result.
	PostsTaggedWithAll(ctx context.Context, names []string) (PostSet, error)
	// AllPosts returns every post id.
	AllPosts(ctx context.Context) (PostSet, error)
}

// Evaluate returns the ids of posts matching q, sorted and without
// duplicates. Errors come only from idx. A Query whose Mode is neither Union
// nor Intersection did not come from Parse, and Evaluate panics on it.
func Evaluate(ctx context.Context, q Query, idx Index) ([]string, error) {
	if q.ExclusionOnly() {
		return EvaluateExclusionOnly(ctx, q.Exclude, idx)
	}
	var resolve func(context.Context, []string) (PostSet, error)
	switch q.Mode {
	case Union:
		resolve = idx.PostsTaggedWithAny
	case Intersection:
		resolve = idx.PostsTaggedWithAll
	default:
		panic(fmt.Sprintf("tagquery: invalid mode %v", q.Mode))
	}
	return subtract(ctx, idx, q.Exclude, func(ctx context.Context) (PostSet, error) {
		if len(q.Include) == 0 {
			return PostSet{}, nil
		}
		return resolve(ctx, q.Include)
	})
}

// EvaluateExclusionOnly returns every post not tagged with any of exclude.
func EvaluateExclusionOnly(ctx context.Context, exclude []string, idx Index) ([]string, error) {
	return subtract(ctx, idx, exclude, idx.AllPosts)
}

// subtract resolves the candidate set and the excluded set concurrently,
// then removes the excluded posts from the candidates.
func subtract(ctx context.Context, idx Index, exclude []string, candidates func(context.Context) (PostSet, error)) ([]string, error) {
	var matched, excluded PostSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matched, err = candidates(gctx)
		return err
	})
	if len(exclude) > 0 {
		g.Go(func() error {
			var err error
			excluded, err = idx.PostsTaggedWithAny(gctx, exclude)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matched))
	for id := range matched {
		if !excluded.Has(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
