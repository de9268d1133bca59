package ast

import (
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/token"
)

// LitUnit is the unit literal `()`.
type LitUnit struct {
	Open  token.Token
	Close token.Token
}

func (l *LitUnit) exprNode()        {}
func (l *LitUnit) Span() token.Span { return l.Open.Span.Join(l.Close.Span) }
func (l *LitUnit) WriteTo(s *token.Stream) {
	s.Push(l.Open)
	s.Push(l.Close)
}

// LitBool is `true` or `false`.
type LitBool struct {
	Token token.Token
	Value bool
}

func (l *LitBool) exprNode()               {}
func (l *LitBool) Span() token.Span        { return l.Token.Span }
func (l *LitBool) WriteTo(s *token.Stream) { s.Push(l.Token) }

// LitInteger is an integer literal.
type LitInteger struct {
	Token token.Token
	Value int64
}

func (l *LitInteger) exprNode()               {}
func (l *LitInteger) Span() token.Span        { return l.Token.Span }
func (l *LitInteger) WriteTo(s *token.Stream) { s.Push(l.Token) }

// LitFloat is a floating point literal.
type LitFloat struct {
	Token token.Token
	Value float64
}

func (l *LitFloat) exprNode()               {}
func (l *LitFloat) Span() token.Span        { return l.Token.Span }
func (l *LitFloat) WriteTo(s *token.Stream) { s.Push(l.Token) }

// LitStr is a string literal with escapes already resolved.
type LitStr struct {
	Token token.Token
	Value string
}

func (l *LitStr) exprNode()               {}
func (l *LitStr) Span() token.Span        { return l.Token.Span }
func (l *LitStr) WriteTo(s *token.Stream) { s.Push(l.Token) }

// LitChar is a character literal.
type LitChar struct {
	Token token.Token
	Value rune
}

func (l *LitChar) exprNode()               {}
func (l *LitChar) Span() token.Span        { return l.Token.Span }
func (l *LitChar) WriteTo(s *token.Stream) { s.Push(l.Token) }

// LitByte is a byte literal `b'a'`.
type LitByte struct {
	Token token.Token
	Value byte
}

func (l *LitByte) exprNode()               {}
func (l *LitByte) Span() token.Span        { return l.Token.Span }
func (l *LitByte) WriteTo(s *token.Stream) { s.Push(l.Token) }

// LitVec is a vector literal `[a, b, c]`.
type LitVec struct {
	Open  token.Token
	Items []Expr
	Close token.Token
}

func (l *LitVec) exprNode()        {}
func (l *LitVec) Span() token.Span { return l.Open.Span.Join(l.Close.Span) }
func (l *LitVec) WriteTo(s *token.Stream) {
	s.Push(l.Open)
	for i, item := range l.Items {
		if i > 0 {
			sep(s, token.COMMA)
		}
		item.WriteTo(s)
	}
	s.Push(l.Close)
}

// LitTuple is a tuple literal `(a, b)`.
type LitTuple struct {
	Open  token.Token
	Items []Expr
	Close token.Token
}

func (l *LitTuple) exprNode()        {}
func (l *LitTuple) Span() token.Span { return l.Open.Span.Join(l.Close.Span) }
func (l *LitTuple) WriteTo(s *token.Stream) {
	s.Push(l.Open)
	for i, item := range l.Items {
		if i > 0 {
			sep(s, token.COMMA)
		}
		item.WriteTo(s)
	}
	// A trailing comma keeps one-element tuples distinct from groups.
	if len(l.Items) == 1 {
		sep(s, token.COMMA)
	}
	s.Push(l.Close)
}

// ObjectField is one `key: value` entry in an object literal. A nil Expr is
// the shorthand form binding the field from a local of the same name.
type ObjectField struct {
	Key   token.Token
	Colon *token.Token
	Expr  Expr
}

func (f *ObjectField) Span() token.Span {
	if f.Expr != nil {
		return f.Key.Span.Join(f.Expr.Span())
	}
	return f.Key.Span
}

func (f *ObjectField) WriteTo(s *token.Stream) {
	s.Push(f.Key)
	if f.Colon != nil {
		s.Push(*f.Colon)
	}
	if f.Expr != nil {
		f.Expr.WriteTo(s)
	}
}

// LitObject is an object literal: anonymous `#{k: v}` or named
// `Path { k: v }`.
type LitObject struct {
	Path   *Path
	Pound  *token.Token
	Open   token.Token
	Fields []*ObjectField
	Close  token.Token
}

func (l *LitObject) exprNode() {}

func (l *LitObject) Span() token.Span {
	start := l.Open.Span
	if l.Path != nil {
		start = l.Path.Span()
	} else if l.Pound != nil {
		start = l.Pound.Span
	}
	return start.Join(l.Close.Span)
}

func (l *LitObject) WriteTo(s *token.Stream) {
	if l.Path != nil {
		l.Path.WriteTo(s)
	}
	// Anonymous objects open with the single `#{` token; named objects with
	// a plain `{`.
	if l.Pound != nil {
		s.Push(*l.Pound)
	} else {
		s.Push(l.Open)
	}
	for i, f := range l.Fields {
		if i > 0 {
			sep(s, token.COMMA)
		}
		f.WriteTo(s)
	}
	s.Push(l.Close)
}

// ExprGroup is a parenthesised expression.
type ExprGroup struct {
	Open  token.Token
	Expr  Expr
	Close token.Token
}

func (e *ExprGroup) exprNode()        {}
func (e *ExprGroup) Span() token.Span { return e.Open.Span.Join(e.Close.Span) }
func (e *ExprGroup) WriteTo(s *token.Stream) {
	s.Push(e.Open)
	e.Expr.WriteTo(s)
	s.Push(e.Close)
}

// ExprBinary is a binary operation.
type ExprBinary struct {
	Lhs Expr
	Op  token.Token
	Rhs Expr
}

func (e *ExprBinary) exprNode()        {}
func (e *ExprBinary) Span() token.Span { return e.Lhs.Span().Join(e.Rhs.Span()) }
func (e *ExprBinary) WriteTo(s *token.Stream) {
	e.Lhs.WriteTo(s)
	s.Push(e.Op)
	e.Rhs.WriteTo(s)
}

// ExprUnary is a prefix operation.
type ExprUnary struct {
	Op   token.Token
	Expr Expr
}

func (e *ExprUnary) exprNode()        {}
func (e *ExprUnary) Span() token.Span { return e.Op.Span.Join(e.Expr.Span()) }
func (e *ExprUnary) WriteTo(s *token.Stream) {
	s.Push(e.Op)
	e.Expr.WriteTo(s)
}

// ExprAssign is an assignment to a local or field.
type ExprAssign struct {
	Lhs Expr
	Eq  token.Token
	Rhs Expr
}

func (e *ExprAssign) exprNode()        {}
func (e *ExprAssign) Span() token.Span { return e.Lhs.Span().Join(e.Rhs.Span()) }
func (e *ExprAssign) WriteTo(s *token.Stream) {
	e.Lhs.WriteTo(s)
	s.Push(e.Eq)
	e.Rhs.WriteTo(s)
}

// ExprLet is a `let pat = expr` binding.
type ExprLet struct {
	Let  token.Token
	Pat  Pat
	Eq   token.Token
	Expr Expr
}

func (e *ExprLet) exprNode()        {}
func (e *ExprLet) Span() token.Span { return e.Let.Span.Join(e.Expr.Span()) }
func (e *ExprLet) WriteTo(s *token.Stream) {
	s.Push(e.Let)
	e.Pat.WriteTo(s)
	s.Push(e.Eq)
	e.Expr.WriteTo(s)
}

// Condition is a branch condition: either a plain expression or a `let`
// pattern binding. Exactly one field is set.
type Condition struct {
	Expr Expr
	Let  *ExprLet
}

func (c *Condition) Span() token.Span {
	if c.Let != nil {
		return c.Let.Span()
	}
	return c.Expr.Span()
}

func (c *Condition) WriteTo(s *token.Stream) {
	if c.Let != nil {
		c.Let.WriteTo(s)
		return
	}
	c.Expr.WriteTo(s)
}

// ElseIf is one `else if` branch.
type ElseIf struct {
	Else      token.Token
	If        token.Token
	Condition *Condition
	Block     *Block
}

func (e *ElseIf) Span() token.Span { return e.Else.Span.Join(e.Block.Span()) }

func (e *ElseIf) WriteTo(s *token.Stream) {
	s.Push(e.Else)
	s.Push(e.If)
	e.Condition.WriteTo(s)
	e.Block.WriteTo(s)
}

// ExprIf is a conditional with optional else-if chain and else branch.
type ExprIf struct {
	If        token.Token
	Condition *Condition
	Then      *Block
	ElseIfs   []*ElseIf
	Else      *Block
	ElseTok   *token.Token
}

func (e *ExprIf) exprNode() {}

func (e *ExprIf) Span() token.Span {
	end := e.Then.Span()
	if len(e.ElseIfs) > 0 {
		end = e.ElseIfs[len(e.ElseIfs)-1].Span()
	}
	if e.Else != nil {
		end = e.Else.Span()
	}
	return e.If.Span.Join(end)
}

func (e *ExprIf) WriteTo(s *token.Stream) {
	s.Push(e.If)
	e.Condition.WriteTo(s)
	e.Then.WriteTo(s)
	for _, ei := range e.ElseIfs {
		ei.WriteTo(s)
	}
	if e.Else != nil {
		s.Push(*e.ElseTok)
		e.Else.WriteTo(s)
	}
}

// MatchArm is one `pat => expr` arm with an optional `if` guard.
type MatchArm struct {
	Pat   Pat
	IfTok *token.Token
	Guard Expr
	Arrow token.Token
	Body  Expr
}

func (a *MatchArm) Span() token.Span { return a.Pat.Span().Join(a.Body.Span()) }

func (a *MatchArm) WriteTo(s *token.Stream) {
	a.Pat.WriteTo(s)
	if a.IfTok != nil {
		s.Push(*a.IfTok)
		a.Guard.WriteTo(s)
	}
	s.Push(a.Arrow)
	a.Body.WriteTo(s)
}

// ExprMatch is a match expression.
type ExprMatch struct {
	Match token.Token
	Expr  Expr
	Open  token.Token
	Arms  []*MatchArm
	Close token.Token
}

func (e *ExprMatch) exprNode()        {}
func (e *ExprMatch) Span() token.Span { return e.Match.Span.Join(e.Close.Span) }
func (e *ExprMatch) WriteTo(s *token.Stream) {
	s.Push(e.Match)
	e.Expr.WriteTo(s)
	s.Push(e.Open)
	for i, arm := range e.Arms {
		if i > 0 {
			sep(s, token.COMMA)
		}
		arm.WriteTo(s)
	}
	s.Push(e.Close)
}

// ExprWhile is a while loop.
type ExprWhile struct {
	While     token.Token
	Condition *Condition
	Body      *Block
}

func (e *ExprWhile) exprNode()        {}
func (e *ExprWhile) Span() token.Span { return e.While.Span.Join(e.Body.Span()) }
func (e *ExprWhile) WriteTo(s *token.Stream) {
	s.Push(e.While)
	e.Condition.WriteTo(s)
	e.Body.WriteTo(s)
}

// ExprLoop is an unconditional loop.
type ExprLoop struct {
	Loop token.Token
	Body *Block
}

func (e *ExprLoop) exprNode()        {}
func (e *ExprLoop) Span() token.Span { return e.Loop.Span.Join(e.Body.Span()) }
func (e *ExprLoop) WriteTo(s *token.Stream) {
	s.Push(e.Loop)
	e.Body.WriteTo(s)
}

// ExprBreak exits the innermost loop, optionally with a value.
type ExprBreak struct {
	Break token.Token
	Expr  Expr
}

func (e *ExprBreak) exprNode() {}

func (e *ExprBreak) Span() token.Span {
	if e.Expr != nil {
		return e.Break.Span.Join(e.Expr.Span())
	}
	return e.Break.Span
}

func (e *ExprBreak) WriteTo(s *token.Stream) {
	s.Push(e.Break)
	if e.Expr != nil {
		e.Expr.WriteTo(s)
	}
}

// ExprReturn returns from the current function, optionally with a value.
type ExprReturn struct {
	Return token.Token
	Expr   Expr
}

func (e *ExprReturn) exprNode() {}

func (e *ExprReturn) Span() token.Span {
	if e.Expr != nil {
		return e.Return.Span.Join(e.Expr.Span())
	}
	return e.Return.Span
}

func (e *ExprReturn) WriteTo(s *token.Stream) {
	s.Push(e.Return)
	if e.Expr != nil {
		e.Expr.WriteTo(s)
	}
}

// ExprCall is a call expression. Calling a field access compiles to an
// instance call; calling a path resolves through the query system.
type ExprCall struct {
	Fn    Expr
	Open  token.Token
	Args  []Expr
	Close token.Token
}

func (e *ExprCall) exprNode()        {}
func (e *ExprCall) Span() token.Span { return e.Fn.Span().Join(e.Close.Span) }
func (e *ExprCall) WriteTo(s *token.Stream) {
	e.Fn.WriteTo(s)
	s.Push(e.Open)
	for i, a := range e.Args {
		if i > 0 {
			sep(s, token.COMMA)
		}
		a.WriteTo(s)
	}
	s.Push(e.Close)
}

// ExprFieldAccess is `expr.field` where field is an identifier or a tuple
// index.
type ExprFieldAccess struct {
	Expr  Expr
	Dot   token.Token
	Field token.Token
}

func (e *ExprFieldAccess) exprNode()        {}
func (e *ExprFieldAccess) Span() token.Span { return e.Expr.Span().Join(e.Field.Span) }
func (e *ExprFieldAccess) WriteTo(s *token.Stream) {
	e.Expr.WriteTo(s)
	s.Push(e.Dot)
	s.Push(e.Field)
}

// ExprClosure is a closure literal `|a, b| expr`. Id links the closure to
// its indexed metadata (item path and captures).
type ExprClosure struct {
	Id    items.Id
	Start token.Token
	Args  []*FnArg
	End   token.Token
	Body  Expr
}

func (e *ExprClosure) exprNode()        {}
func (e *ExprClosure) Span() token.Span { return e.Start.Span.Join(e.Body.Span()) }
func (e *ExprClosure) WriteTo(s *token.Stream) {
	s.Push(e.Start)
	// `||` lexes as a single token covering both delimiters.
	if e.Start.Type != token.OR {
		for i, a := range e.Args {
			if i > 0 {
				sep(s, token.COMMA)
			}
			a.WriteTo(s)
		}
		s.Push(e.End)
	}
	e.Body.WriteTo(s)
}

// ExprAsync is an `async { ... }` block. Id links to indexed metadata.
type ExprAsync struct {
	Id    items.Id
	Async token.Token
	Block *Block
}

func (e *ExprAsync) exprNode()        {}
func (e *ExprAsync) Span() token.Span { return e.Async.Span.Join(e.Block.Span()) }
func (e *ExprAsync) WriteTo(s *token.Stream) {
	s.Push(e.Async)
	e.Block.WriteTo(s)
}

// ExprBlock is a block used in expression position.
type ExprBlock struct {
	Block *Block
}

func (e *ExprBlock) exprNode()               {}
func (e *ExprBlock) Span() token.Span        { return e.Block.Span() }
func (e *ExprBlock) WriteTo(s *token.Stream) { e.Block.WriteTo(s) }
