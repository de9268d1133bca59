// Package ast defines the syntax tree produced by the parser. Every node
// knows its covering span and can render itself back into a token stream,
// which is what the parse round-trip tests and macro expansion rely on.
package ast

import (
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	// Span returns the byte range this node covers in its source.
	Span() token.Span
	// WriteTo renders the node back into a token stream.
	WriteTo(s *token.Stream)
}

// Item is a top-level declaration.
type Item interface {
	Node
	itemNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// Pat is a pattern.
type Pat interface {
	Node
	patNode()
}

// Stmt is a statement inside a block.
type Stmt interface {
	Node
	stmtNode()
}

// sep emits a synthetic delimiter token. Delimiters that the parser does not
// retain are reconstructed with empty positions; the round-trip property
// only compares retained tokens.
func sep(s *token.Stream, t token.TokenType) {
	s.Push(token.Token{Type: t, Lexeme: string(t)})
}

// Attribute is a `#[name]` item attribute.
type Attribute struct {
	Pound token.Token
	Open  token.Token
	Name  token.Token
	Close token.Token
}

func (a *Attribute) Span() token.Span {
	return a.Pound.Span.Join(a.Close.Span)
}

func (a *Attribute) WriteTo(s *token.Stream) {
	s.Push(a.Pound)
	s.Push(a.Open)
	s.Push(a.Name)
	s.Push(a.Close)
}

// Visibility is the `pub` marker on an item. A nil *Visibility is private.
type Visibility struct {
	Token token.Token
}

func (v *Visibility) Span() token.Span { return v.Token.Span }

func (v *Visibility) WriteTo(s *token.Stream) { s.Push(v.Token) }

// File is a parsed source file.
type File struct {
	Items []Item
}

func (f *File) Span() token.Span {
	if len(f.Items) == 0 {
		return token.Span{}
	}
	return f.Items[0].Span().Join(f.Items[len(f.Items)-1].Span())
}

func (f *File) WriteTo(s *token.Stream) {
	for _, item := range f.Items {
		item.WriteTo(s)
	}
}

// Path is a `::`-separated item path such as `a::b::c`. Segment tokens are
// identifiers or the `self`/`crate`/`Self` keywords.
type Path struct {
	Segments []token.Token
}

func (p *Path) Span() token.Span {
	if len(p.Segments) == 0 {
		return token.Span{}
	}
	return p.Segments[0].Span.Join(p.Segments[len(p.Segments)-1].Span)
}

func (p *Path) WriteTo(s *token.Stream) {
	for i, seg := range p.Segments {
		if i > 0 {
			sep(s, token.COLON_COLON)
		}
		s.Push(seg)
	}
}

func (p *Path) exprNode() {}

// First returns the first segment.
func (p *Path) First() token.Token { return p.Segments[0] }

// AsIdent unpacks a single-segment identifier path.
func (p *Path) AsIdent() (token.Token, bool) {
	if len(p.Segments) == 1 && p.Segments[0].Type == token.IDENT {
		return p.Segments[0], true
	}
	return token.Token{}, false
}

// FnArg is a single function or closure argument: an identifier, `self`, or
// the ignore marker `_`.
type FnArg struct {
	Token token.Token
}

func (a *FnArg) Span() token.Span          { return a.Token.Span }
func (a *FnArg) WriteTo(s *token.Stream)   { s.Push(a.Token) }
func (a *FnArg) Name() string              { return a.Token.Lexeme }
func (a *FnArg) IsSelf() bool              { return a.Token.Type == token.SELF }
func (a *FnArg) IsIgnore() bool            { return a.Token.Type == token.UNDER }

// BodyKind discriminates struct and variant bodies.
type BodyKind int

const (
	// UnitBody is a bare declaration: `struct S;`.
	UnitBody BodyKind = iota
	// TupleBody is a positional declaration: `struct S(a, b);`.
	TupleBody
	// RecordBody is a named-field declaration: `struct S { a, b }`.
	RecordBody
)

// StructBody is the body of a struct declaration or enum variant.
type StructBody struct {
	Kind   BodyKind
	Open   token.Token
	Fields []token.Token
	Close  token.Token
}

func (b *StructBody) Span() token.Span {
	if b.Kind == UnitBody {
		return token.Span{}
	}
	return b.Open.Span.Join(b.Close.Span)
}

func (b *StructBody) WriteTo(s *token.Stream) {
	if b.Kind == UnitBody {
		return
	}
	s.Push(b.Open)
	for i, f := range b.Fields {
		if i > 0 {
			sep(s, token.COMMA)
		}
		s.Push(f)
	}
	s.Push(b.Close)
}

// FieldNames returns the declared field names in order.
func (b *StructBody) FieldNames() []string {
	out := make([]string, len(b.Fields))
	for i, f := range b.Fields {
		out[i] = f.Lexeme
	}
	return out
}

// ItemFn is a function declaration.
type ItemFn struct {
	Attributes []*Attribute
	Visibility *Visibility
	Async      *token.Token
	Fn         token.Token
	Name       token.Token
	Open       token.Token
	Args       []*FnArg
	Close      token.Token
	Body       *Block
}

func (f *ItemFn) itemNode() {}

func (f *ItemFn) Span() token.Span {
	start := f.Fn.Span
	if len(f.Attributes) > 0 {
		start = f.Attributes[0].Span()
	} else if f.Visibility != nil {
		start = f.Visibility.Span()
	} else if f.Async != nil {
		start = f.Async.Span
	}
	return start.Join(f.Body.Span())
}

func (f *ItemFn) WriteTo(s *token.Stream) {
	for _, a := range f.Attributes {
		a.WriteTo(s)
	}
	if f.Visibility != nil {
		f.Visibility.WriteTo(s)
	}
	if f.Async != nil {
		s.Push(*f.Async)
	}
	s.Push(f.Fn)
	s.Push(f.Name)
	s.Push(f.Open)
	for i, a := range f.Args {
		if i > 0 {
			sep(s, token.COMMA)
		}
		a.WriteTo(s)
	}
	s.Push(f.Close)
	f.Body.WriteTo(s)
}

// ItemStruct is a struct declaration.
type ItemStruct struct {
	Attributes []*Attribute
	Visibility *Visibility
	Struct     token.Token
	Name       token.Token
	Body       *StructBody
	Semi       *token.Token
}

func (i *ItemStruct) itemNode() {}

func (i *ItemStruct) Span() token.Span {
	end := i.Name.Span
	if i.Body.Kind != UnitBody {
		end = i.Body.Span()
	}
	if i.Semi != nil {
		end = i.Semi.Span
	}
	return i.Struct.Span.Join(end)
}

func (i *ItemStruct) WriteTo(s *token.Stream) {
	for _, a := range i.Attributes {
		a.WriteTo(s)
	}
	if i.Visibility != nil {
		i.Visibility.WriteTo(s)
	}
	s.Push(i.Struct)
	s.Push(i.Name)
	i.Body.WriteTo(s)
	if i.Semi != nil {
		s.Push(*i.Semi)
	}
}

// Variant is one declaration inside an enum body.
type Variant struct {
	Name token.Token
	Body *StructBody
}

func (v *Variant) Span() token.Span {
	if v.Body.Kind == UnitBody {
		return v.Name.Span
	}
	return v.Name.Span.Join(v.Body.Span())
}

func (v *Variant) WriteTo(s *token.Stream) {
	s.Push(v.Name)
	v.Body.WriteTo(s)
}

// ItemEnum is an enum declaration.
type ItemEnum struct {
	Attributes []*Attribute
	Visibility *Visibility
	Enum       token.Token
	Name       token.Token
	Open       token.Token
	Variants   []*Variant
	Close      token.Token
}

func (i *ItemEnum) itemNode() {}

func (i *ItemEnum) Span() token.Span {
	return i.Enum.Span.Join(i.Close.Span)
}

func (i *ItemEnum) WriteTo(s *token.Stream) {
	for _, a := range i.Attributes {
		a.WriteTo(s)
	}
	if i.Visibility != nil {
		i.Visibility.WriteTo(s)
	}
	s.Push(i.Enum)
	s.Push(i.Name)
	s.Push(i.Open)
	for idx, v := range i.Variants {
		if idx > 0 {
			sep(s, token.COMMA)
		}
		v.WriteTo(s)
	}
	s.Push(i.Close)
}

// ItemImpl is an `impl Path { fn ... }` block of instance functions.
type ItemImpl struct {
	Attributes []*Attribute
	Impl       token.Token
	Path       *Path
	Open       token.Token
	Functions  []*ItemFn
	Close      token.Token
}

func (i *ItemImpl) itemNode() {}

func (i *ItemImpl) Span() token.Span {
	return i.Impl.Span.Join(i.Close.Span)
}

func (i *ItemImpl) WriteTo(s *token.Stream) {
	for _, a := range i.Attributes {
		a.WriteTo(s)
	}
	s.Push(i.Impl)
	i.Path.WriteTo(s)
	s.Push(i.Open)
	for _, f := range i.Functions {
		f.WriteTo(s)
	}
	s.Push(i.Close)
}

// ItemConst is a constant declaration.
type ItemConst struct {
	Attributes []*Attribute
	Visibility *Visibility
	Const      token.Token
	Name       token.Token
	Eq         token.Token
	Expr       Expr
	Semi       *token.Token
}

func (i *ItemConst) itemNode() {}

func (i *ItemConst) Span() token.Span {
	end := i.Expr.Span()
	if i.Semi != nil {
		end = i.Semi.Span
	}
	return i.Const.Span.Join(end)
}

func (i *ItemConst) WriteTo(s *token.Stream) {
	for _, a := range i.Attributes {
		a.WriteTo(s)
	}
	if i.Visibility != nil {
		i.Visibility.WriteTo(s)
	}
	s.Push(i.Const)
	s.Push(i.Name)
	s.Push(i.Eq)
	i.Expr.WriteTo(s)
	if i.Semi != nil {
		s.Push(*i.Semi)
	}
}

// UsePath is the path of a use declaration, with optional alias or wildcard.
type UsePath struct {
	Path     *Path
	Star     *token.Token
	AsTok    *token.Token
	Alias    *token.Token
}

func (u *UsePath) Span() token.Span {
	span := u.Path.Span()
	if u.Star != nil {
		span = span.Join(u.Star.Span)
	}
	if u.Alias != nil {
		span = span.Join(u.Alias.Span)
	}
	return span
}

func (u *UsePath) WriteTo(s *token.Stream) {
	u.Path.WriteTo(s)
	if u.Star != nil {
		sep(s, token.COLON_COLON)
		s.Push(*u.Star)
	}
	if u.AsTok != nil {
		s.Push(*u.AsTok)
		s.Push(*u.Alias)
	}
}

// ItemUse is a use declaration.
type ItemUse struct {
	Attributes []*Attribute
	Visibility *Visibility
	Use        token.Token
	Path       *UsePath
	Semi       *token.Token
}

func (i *ItemUse) itemNode() {}

func (i *ItemUse) Span() token.Span {
	end := i.Path.Span()
	if i.Semi != nil {
		end = i.Semi.Span
	}
	return i.Use.Span.Join(end)
}

func (i *ItemUse) WriteTo(s *token.Stream) {
	for _, a := range i.Attributes {
		a.WriteTo(s)
	}
	if i.Visibility != nil {
		i.Visibility.WriteTo(s)
	}
	s.Push(i.Use)
	i.Path.WriteTo(s)
	if i.Semi != nil {
		s.Push(*i.Semi)
	}
}

// ItemMod is a module declaration. A nil Body refers to a separate file.
type ItemMod struct {
	Attributes []*Attribute
	Visibility *Visibility
	Mod        token.Token
	Name       token.Token
	Open       *token.Token
	Body       *File
	Close      *token.Token
	Semi       *token.Token
}

func (i *ItemMod) itemNode() {}

func (i *ItemMod) Span() token.Span {
	end := i.Name.Span
	if i.Close != nil {
		end = i.Close.Span
	}
	if i.Semi != nil {
		end = i.Semi.Span
	}
	return i.Mod.Span.Join(end)
}

func (i *ItemMod) WriteTo(s *token.Stream) {
	for _, a := range i.Attributes {
		a.WriteTo(s)
	}
	if i.Visibility != nil {
		i.Visibility.WriteTo(s)
	}
	s.Push(i.Mod)
	s.Push(i.Name)
	if i.Open != nil {
		s.Push(*i.Open)
		i.Body.WriteTo(s)
		s.Push(*i.Close)
	}
	if i.Semi != nil {
		s.Push(*i.Semi)
	}
}

// MacroCall is a `path!( tokens )` invocation, usable as an item or an
// expression. Id links the call to its stored expansion; it is assigned by
// the worker and never serialised back to tokens.
type MacroCall struct {
	Id    items.Id
	Path  *Path
	Bang  token.Token
	Open  token.Token
	Args  *token.Stream
	Close token.Token
}

func (m *MacroCall) itemNode() {}
func (m *MacroCall) exprNode() {}

func (m *MacroCall) Span() token.Span {
	return m.Path.Span().Join(m.Close.Span)
}

func (m *MacroCall) WriteTo(s *token.Stream) {
	m.Path.WriteTo(s)
	s.Push(m.Bang)
	s.Push(m.Open)
	s.Append(m.Args)
	s.Push(m.Close)
}

// StmtExpr is an expression statement, optionally terminated by a semicolon.
type StmtExpr struct {
	Expr Expr
	Semi *token.Token
}

func (s *StmtExpr) stmtNode() {}

func (s *StmtExpr) Span() token.Span {
	span := s.Expr.Span()
	if s.Semi != nil {
		span = span.Join(s.Semi.Span)
	}
	return span
}

func (s *StmtExpr) WriteTo(out *token.Stream) {
	s.Expr.WriteTo(out)
	if s.Semi != nil {
		out.Push(*s.Semi)
	}
}

// StmtItem is an item declared inside a block.
type StmtItem struct {
	Item Item
}

func (s *StmtItem) stmtNode() {}

func (s *StmtItem) Span() token.Span { return s.Item.Span() }

func (s *StmtItem) WriteTo(out *token.Stream) { s.Item.WriteTo(out) }

// Block is a `{ ... }` sequence of statements. The value of a block is its
// trailing expression statement without a semicolon, if any.
type Block struct {
	Open  token.Token
	Stmts []Stmt
	Close token.Token
}

func (b *Block) Span() token.Span {
	return b.Open.Span.Join(b.Close.Span)
}

func (b *Block) WriteTo(s *token.Stream) {
	s.Push(b.Open)
	for _, stmt := range b.Stmts {
		stmt.WriteTo(s)
	}
	s.Push(b.Close)
}

// TrailingExpr returns the block's value-producing expression, if the last
// statement is an expression without a semicolon.
func (b *Block) TrailingExpr() (Expr, bool) {
	if len(b.Stmts) == 0 {
		return nil, false
	}
	if last, ok := b.Stmts[len(b.Stmts)-1].(*StmtExpr); ok && last.Semi == nil {
		return last.Expr, true
	}
	return nil, false
}
