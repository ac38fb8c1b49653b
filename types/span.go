package types

import (
	"fmt"
)

type Position struct {
	Line     int
	Column   int
	Filename string
}

type Span struct {
	From Position
	To   Position
}

func (p Position) String() string {
	if p.Filename == "" {
		p.Filename = "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%d:%d", s.From, s.To.Line, s.To.Column)
}

// IsZero reports whether the span was never set, as for nodes built by hand.
func (s Span) IsZero() bool {
	return s == Span{}
}

func SingleCharSpan(p Position) Span {
	return Span{p, p}
}

// Join returns the span covering both a and b.
func Join(a, b Span) Span {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	return Span{From: a.From, To: b.To}
}
