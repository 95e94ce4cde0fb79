package tagquery

type parseState int

const (
	awaitMode      parseState = iota // include tokens, combinator not seen yet
	collectInclude                   // include tokens, mode fixed
	collectExclude                   // after the first '-'
)

// parser is a single pass state machine over the raw query. Each delimiter
// closes the pending token, files it under the current state, then moves
// to the next state.
type parser struct {
	state   parseState
	mode    Mode
	include orderedSet
	exclude orderedSet
}

// Parse turns a raw query string into a Query.
//
// Tokens are the substrings between '|', '+' and '-'. They are matched
// case-sensitively and are not trimmed. Empty tokens are kept, which is what
// makes "-a-b" parse to the exclusion-only sentinel Include == [""].
// Once the first '-' is seen every later token is excluded and any
// delimiter only separates tokens. A query without '|' or '+' is a Union.
func Parse(raw string) (Query, error) {
	if raw == "" {
		return Query{}, &ParseError{Query: raw, Pos: -1, Err: ErrEmpty}
	}
	p := &parser{state: awaitMode, mode: Union}
	start := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if !isDelimiter(c) {
			continue
		}
		if err := p.step(c, raw[start:i]); err != nil {
			return Query{}, &ParseError{Query: raw, Pos: i, Err: err}
		}
		start = i + 1
	}
	p.file(raw[start:])
	return Query{
		Include: p.include.items,
		Mode:    p.mode,
		Exclude: p.exclude.items,
	}, nil
}

func (p *parser) step(delim byte, token string) error {
	p.file(token)
	switch p.state {
	case awaitMode:
		switch delim {
		case '|':
			p.mode, p.state = Union, collectInclude
		case '+':
			p.mode, p.state = Intersection, collectInclude
		case '-':
			p.state = collectExclude
		}
	case collectInclude:
		switch delim {
		case '-':
			p.state = collectExclude
		default:
			if modeOf(delim) != p.mode {
				return ErrMixedOperators
			}
		}
	case collectExclude:
	}
	return nil
}

func (p *parser) file(token string) {
	if p.state == collectExclude {
		p.exclude.add(token)
		return
	}
	p.include.add(token)
}

func isDelimiter(c byte) bool {
	return c == '|' || c == '+' || c == '-'
}

func modeOf(combinator byte) Mode {
	if combinator == '+' {
		return Intersection
	}
	return Union
}

type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
