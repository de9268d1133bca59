package ast

import (
	"github.com/funvibe/quill/internal/token"
)

// PatPath is a path pattern: either a zero-arity constructor or a binding
// identifier.
type PatPath struct {
	Path *Path
}

func (p *PatPath) patNode()                 {}
func (p *PatPath) Span() token.Span         { return p.Path.Span() }
func (p *PatPath) WriteTo(s *token.Stream)  { p.Path.WriteTo(s) }

// PatIgnore is the `_` pattern.
type PatIgnore struct {
	Token token.Token
}

func (p *PatIgnore) patNode()                {}
func (p *PatIgnore) Span() token.Span        { return p.Token.Span }
func (p *PatIgnore) WriteTo(s *token.Stream) { s.Push(p.Token) }

// PatUnit is the `()` pattern.
type PatUnit struct {
	Open  token.Token
	Close token.Token
}

func (p *PatUnit) patNode()        {}
func (p *PatUnit) Span() token.Span { return p.Open.Span.Join(p.Close.Span) }
func (p *PatUnit) WriteTo(s *token.Stream) {
	s.Push(p.Open)
	s.Push(p.Close)
}

// PatByte is a byte literal pattern.
type PatByte struct {
	Token token.Token
	Value byte
}

func (p *PatByte) patNode()                {}
func (p *PatByte) Span() token.Span        { return p.Token.Span }
func (p *PatByte) WriteTo(s *token.Stream) { s.Push(p.Token) }

// PatChar is a character literal pattern.
type PatChar struct {
	Token token.Token
	Value rune
}

func (p *PatChar) patNode()                {}
func (p *PatChar) Span() token.Span        { return p.Token.Span }
func (p *PatChar) WriteTo(s *token.Stream) { s.Push(p.Token) }

// PatNumber is a numeric literal pattern. Floats are rejected at compile
// time, not parse time, so the span can point at the offending literal.
type PatNumber struct {
	Minus   *token.Token
	Token   token.Token
	IsFloat bool
	Integer int64
}

func (p *PatNumber) patNode() {}

func (p *PatNumber) Span() token.Span {
	if p.Minus != nil {
		return p.Minus.Span.Join(p.Token.Span)
	}
	return p.Token.Span
}

func (p *PatNumber) WriteTo(s *token.Stream) {
	if p.Minus != nil {
		s.Push(*p.Minus)
	}
	s.Push(p.Token)
}

// PatString is a string literal pattern.
type PatString struct {
	Token token.Token
	Value string
}

func (p *PatString) patNode()                {}
func (p *PatString) Span() token.Span        { return p.Token.Span }
func (p *PatString) WriteTo(s *token.Stream) { s.Push(p.Token) }

// PatVec is a vector pattern `[a, b, ..]`. A DotDot marker makes it open.
type PatVec struct {
	Open   token.Token
	Items  []Pat
	DotDot *token.Token
	Close  token.Token
}

func (p *PatVec) patNode()        {}
func (p *PatVec) Span() token.Span { return p.Open.Span.Join(p.Close.Span) }
func (p *PatVec) WriteTo(s *token.Stream) {
	s.Push(p.Open)
	for i, item := range p.Items {
		if i > 0 {
			sep(s, token.COMMA)
		}
		item.WriteTo(s)
	}
	if p.DotDot != nil {
		if len(p.Items) > 0 {
			sep(s, token.COMMA)
		}
		s.Push(*p.DotDot)
	}
	s.Push(p.Close)
}

// IsOpen reports whether the pattern admits extra trailing elements.
func (p *PatVec) IsOpen() bool { return p.DotDot != nil }

// PatTuple is a tuple pattern `(a, b)` or a typed constructor pattern
// `Path(a, b)`.
type PatTuple struct {
	Path   *Path
	Open   token.Token
	Items  []Pat
	DotDot *token.Token
	Close  token.Token
}

func (p *PatTuple) patNode() {}

func (p *PatTuple) Span() token.Span {
	start := p.Open.Span
	if p.Path != nil {
		start = p.Path.Span()
	}
	return start.Join(p.Close.Span)
}

func (p *PatTuple) WriteTo(s *token.Stream) {
	if p.Path != nil {
		p.Path.WriteTo(s)
	}
	s.Push(p.Open)
	for i, item := range p.Items {
		if i > 0 {
			sep(s, token.COMMA)
		}
		item.WriteTo(s)
	}
	if p.DotDot != nil {
		if len(p.Items) > 0 {
			sep(s, token.COMMA)
		}
		s.Push(*p.DotDot)
	}
	s.Push(p.Close)
}

// IsOpen reports whether the pattern admits extra trailing elements.
func (p *PatTuple) IsOpen() bool { return p.DotDot != nil }

// PatObjectField is one `key: pat` entry in an object pattern. A nil Pat is
// the shorthand form that binds the field to a local of the same name.
type PatObjectField struct {
	Key   token.Token
	Colon *token.Token
	Pat   Pat
}

func (f *PatObjectField) Span() token.Span {
	if f.Pat != nil {
		return f.Key.Span.Join(f.Pat.Span())
	}
	return f.Key.Span
}

func (f *PatObjectField) WriteTo(s *token.Stream) {
	s.Push(f.Key)
	if f.Colon != nil {
		s.Push(*f.Colon)
	}
	if f.Pat != nil {
		f.Pat.WriteTo(s)
	}
}

// PatObject is an object pattern: anonymous `#{..}` or typed `Path {..}`.
type PatObject struct {
	Path   *Path
	Pound  *token.Token
	Open   token.Token
	Fields []*PatObjectField
	DotDot *token.Token
	Close  token.Token
}

func (p *PatObject) patNode() {}

func (p *PatObject) Span() token.Span {
	start := p.Open.Span
	if p.Path != nil {
		start = p.Path.Span()
	} else if p.Pound != nil {
		start = p.Pound.Span
	}
	return start.Join(p.Close.Span)
}

func (p *PatObject) WriteTo(s *token.Stream) {
	if p.Path != nil {
		p.Path.WriteTo(s)
	}
	if p.Pound != nil {
		s.Push(*p.Pound)
	} else {
		s.Push(p.Open)
	}
	for i, f := range p.Fields {
		if i > 0 {
			sep(s, token.COMMA)
		}
		f.WriteTo(s)
	}
	if p.DotDot != nil {
		if len(p.Fields) > 0 {
			sep(s, token.COMMA)
		}
		s.Push(*p.DotDot)
	}
	s.Push(p.Close)
}

// IsOpen reports whether the pattern admits extra fields.
func (p *PatObject) IsOpen() bool { return p.DotDot != nil }
