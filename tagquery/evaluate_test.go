package tagquery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioIndex builds P1={go,rust}, P2={rust}, P3={go,ts}.
func scenarioIndex() *MemoryIndex {
	idx := NewMemoryIndex()
	idx.Attach("P1", "go")
	idx.Attach("P1", "rust")
	idx.Attach("P2", "rust")
	idx.Attach("P3", "go")
	idx.Attach("P3", "ts")
	return idx
}

func run(t *testing.T, idx Index, raw string) []string {
	t.Helper()
	q, err := Parse(raw)
	require.NoError(t, err)
	ids, err := Evaluate(context.Background(), q, idx)
	require.NoError(t, err)
	return ids
}

func TestEvaluateScenario(t *testing.T) {
	idx := scenarioIndex()
	tests := []struct {
		query string
		want  []string
	}{
		{"go|rust", []string{"P1", "P2", "P3"}},
		{"go+rust", []string{"P1"}},
		{"go-rust", []string{"P3"}},
		{"-rust", []string{"P3"}},
		{"rust|go", []string{"P1", "P2", "P3"}},
		{"ts", []string{"P3"}},
		{"-c-d", []string{"P1", "P2", "P3"}},
		{"-go-ts", []string{"P2"}},
		{"go|rust-ts", []string{"P1", "P2"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, idx, tt.query))
		})
	}
}

func TestEvaluateUnknownTags(t *testing.T) {
	idx := scenarioIndex()

	assert.Equal(t, []string{"P3"}, run(t, idx, "ts|nope"))
	assert.Empty(t, run(t, idx, "go+nope"), "unknown tag can never satisfy an intersection")
	assert.Empty(t, run(t, idx, "go+"), "empty token is an unknown tag")
	assert.Equal(t, []string{"P1", "P3"}, run(t, idx, "go-nope"))
	assert.Empty(t, run(t, idx, "nope"))
}

func TestEvaluateExclusionOnlySubset(t *testing.T) {
	idx := scenarioIndex()
	idx.AddPost("P4")

	ids, err := EvaluateExclusionOnly(context.Background(), []string{"rust"}, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P3", "P4"}, ids)

	ids, err = EvaluateExclusionOnly(context.Background(), nil, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3", "P4"}, ids)
}

func TestEvaluateExclusionNeverAdds(t *testing.T) {
	idx := scenarioIndex()
	for _, base := range []string{"go|rust", "go+rust", "ts|rust", "go"} {
		all := NewPostSet(run(t, idx, base)...)
		for _, suffix := range []string{"-go", "-rust", "-ts", "-nope", "-go-rust"} {
			for _, id := range run(t, idx, base+suffix) {
				assert.True(t, all.Has(id), "%s%s returned %s", base, suffix, id)
			}
		}
	}
}

func TestEvaluateAttachIdempotent(t *testing.T) {
	idx := scenarioIndex()
	before := run(t, idx, "go+rust")
	idx.Attach("P1", "go")
	idx.Attach("P1", "rust")
	assert.Equal(t, before, run(t, idx, "go+rust"))
	assert.Equal(t, []string{"P1", "P2", "P3"}, run(t, idx, "go|rust"))
}

func TestEvaluateEmptyInclude(t *testing.T) {
	ids, err := Evaluate(context.Background(), Query{Mode: Intersection}, scenarioIndex())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEvaluateInvalidModePanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Evaluate(context.Background(), Query{Include: []string{"go"}, Mode: Mode(7)}, scenarioIndex())
	})
}

type failingIndex struct{ *MemoryIndex }

var errIndexDown = errors.New("index down")

func (failingIndex) PostsTaggedWithAny(context.Context, []string) (PostSet, error) {
	return nil, errIndexDown
}

func TestEvaluatePropagatesIndexErrors(t *testing.T) {
	idx := failingIndex{scenarioIndex()}
	q, err := Parse("go+rust-ts")
	require.NoError(t, err)
	_, err = Evaluate(context.Background(), q, idx)
	assert.ErrorIs(t, err, errIndexDown)
}
