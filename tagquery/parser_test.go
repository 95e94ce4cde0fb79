package tagquery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		include []string
		mode    Mode
		exclude []string
	}{
		{"a|b", []string{"a", "b"}, Union, nil},
		{"a+b", []string{"a", "b"}, Intersection, nil},
		{"a+b-c", []string{"a", "b"}, Intersection, []string{"c"}},
		{"go", []string{"go"}, Union, nil},
		{"go-rust", []string{"go"}, Union, []string{"rust"}},
		{"-c-d", []string{""}, Union, []string{"c", "d"}},
		{"-rust", []string{""}, Union, []string{"rust"}},
		{"a|b|a", []string{"a", "b"}, Union, nil},
		{"a+", []string{"a", ""}, Intersection, nil},
		{"Go+go", []string{"Go", "go"}, Intersection, nil},
		{" a|b ", []string{" a", "b "}, Union, nil},
		{"a-b|c+d", []string{"a"}, Union, []string{"b", "c", "d"}},
		{"-", []string{""}, Union, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.include, q.Include)
			assert.Equal(t, tt.mode, q.Mode)
			assert.Equal(t, tt.exclude, q.Exclude)
		})
	}
}

func TestParseMixedOperators(t *testing.T) {
	for _, input := range []string{"a|b+c", "a+b|c", "a+b|c-d"} {
		_, err := Parse(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrMixedOperators), input)

		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, input, pe.Query)
	}
}

func TestParseMixedOperatorsPosition(t *testing.T) {
	_, err := Parse("a|b+c")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Pos)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestExclusionOnly(t *testing.T) {
	q, err := Parse("-c-d")
	require.NoError(t, err)
	assert.True(t, q.ExclusionOnly())

	q, err = Parse("a-c")
	require.NoError(t, err)
	assert.False(t, q.ExclusionOnly())

	assert.False(t, Query{}.ExclusionOnly(), "empty include is not the sentinel")
}
