// Package tagquery parses and evaluates tag filter queries.
//
// A query names tags joined by one combinator, optionally followed by tags
// to exclude:
//
//	go|rust      posts tagged go or rust
//	go+rust      posts tagged both go and rust
//	go+rust-ts   as above, minus posts tagged ts
//	-ts-java     every post except those tagged ts or java
//
// Evaluation runs against an Index, which resolves tag names to post ids.
// Tag names that do not exist are never an error; they simply match nothing.
package tagquery

import (
	"errors"
	"fmt"
)

// Mode is how the include tags of a query combine.
type Mode int

const (
	// Union matches posts carrying at least one include tag.
	Union Mode = iota
	// Intersection matches posts carrying every include tag.
	Intersection
)

func (m Mode) String() string {
	switch m {
	case Union:
		return "union"
	case Intersection:
		return "intersection"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Query is a parsed tag query. Include and Exclude hold tag names in the
// order they first appeared, without duplicates.
type Query struct {
	Include []string
	Mode    Mode
	Exclude []string
}

// ExclusionOnly reports whether the query has no positive filter. The parser
// produces this shape for queries that start with '-': the token before the
// first '-' is empty, so Include is exactly [""].
func (q Query) ExclusionOnly() bool {
	return len(q.Include) == 1 && q.Include[0] == ""
}

var (
	// ErrMixedOperators is returned when '|' and '+' both appear before the
	// exclusion part of a query.
	ErrMixedOperators = errors.New("operators cannot be mixed")
	// ErrEmpty is returned for an empty query string.
	ErrEmpty = errors.New("empty query")
)

// ParseError describes a rejected query.
type ParseError struct {
	Query string
	Pos   int // byte offset of the offending character, -1 if none
	Err   error
}

func (e *ParseError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("tagquery: %q: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("tagquery: %q at %d: %v", e.Query, e.Pos, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
