// Package parser implements the recursive descent parser for Quill. A parser
// can run over raw source text or over a token stream, which is how macro
// expansions and the parse round-trip are re-parsed.
package parser

import (
	"strconv"
	"strings"

	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/lexer"
	"github.com/funvibe/quill/internal/token"
)

// Parser consumes a token slice and produces an AST.
type Parser struct {
	tokens []token.Token
	pos    int
	errors []*diagnostics.DiagnosticError

	// noStructLiteral suppresses `Path { .. }` object literals while parsing
	// a condition or match scrutinee, where `{` opens the following block.
	noStructLiteral bool
}

// New creates a parser over source text.
func New(input string) *Parser {
	l := lexer.New(input)
	return &Parser{tokens: l.Tokenize()}
}

// FromStream creates a parser over an existing token stream.
func FromStream(s *token.Stream) *Parser {
	tokens := append([]token.Token(nil), s.Tokens()...)
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens}
}

// Errors returns the diagnostics accumulated so far.
func (p *Parser) Errors() []*diagnostics.DiagnosticError {
	return p.errors
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) next() token.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) errorf(code diagnostics.ErrorCode, tok token.Token, args ...interface{}) {
	p.errors = append(p.errors, diagnostics.NewError(code, tok, args...))
}

// expect consumes the current token when it has the wanted type, otherwise
// records an unexpected-token diagnostic.
func (p *Parser) expect(t token.TokenType) (token.Token, bool) {
	tok := p.cur()
	if tok.Type != t {
		p.errorf(diagnostics.ErrP002, tok, tok.Lexeme, "`"+string(t)+"`")
		return tok, false
	}
	p.next()
	return tok, true
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// ParseFile parses a whole source file. Attributes and visibility are
// accumulated each iteration; either dangling at end of input is an error.
func (p *Parser) ParseFile() (*ast.File, []*diagnostics.DiagnosticError) {
	file := &ast.File{}

	for {
		attrs := p.parseAttributes()
		vis := p.parseVisibility()
		if p.failed() {
			return file, p.errors
		}

		if p.cur().Type == token.EOF {
			if len(attrs) > 0 {
				p.errorf(diagnostics.ErrP007, attrs[0].Pound)
			} else if vis != nil {
				p.errorf(diagnostics.ErrP008, vis.Token)
			}
			return file, p.errors
		}

		item := p.parseItem(attrs, vis)
		if item == nil || p.failed() {
			return file, p.errors
		}
		file.Items = append(file.Items, item)
	}
}

// ParseExpr parses a single expression followed by EOF; used for macro
// expansions in expression position.
func (p *Parser) ParseExpr() (ast.Expr, []*diagnostics.DiagnosticError) {
	expr := p.parseExpr()
	if expr == nil || p.failed() {
		return nil, p.errors
	}
	if p.cur().Type != token.EOF {
		p.errorf(diagnostics.ErrP002, p.cur(), p.cur().Lexeme, "end of input")
		return nil, p.errors
	}
	return expr, nil
}

func (p *Parser) parseAttributes() []*ast.Attribute {
	var attrs []*ast.Attribute
	for p.cur().Type == token.POUND && p.peek().Type == token.LBRACKET {
		pound := p.next()
		open := p.next()
		name, ok := p.expect(token.IDENT)
		if !ok {
			return attrs
		}
		closeTok, ok := p.expect(token.RBRACKET)
		if !ok {
			return attrs
		}
		attrs = append(attrs, &ast.Attribute{
			Pound: pound,
			Open:  open,
			Name:  name,
			Close: closeTok,
		})
	}
	return attrs
}

func (p *Parser) parseVisibility() *ast.Visibility {
	if p.cur().Type == token.PUB {
		return &ast.Visibility{Token: p.next()}
	}
	return nil
}

func (p *Parser) isItemStart() bool {
	switch p.cur().Type {
	case token.FN, token.STRUCT, token.ENUM, token.IMPL, token.CONST, token.USE, token.MOD:
		return true
	case token.ASYNC:
		return p.peek().Type == token.FN
	case token.POUND:
		return p.peek().Type == token.LBRACKET
	case token.PUB:
		return true
	}
	return false
}

func (p *Parser) parseItem(attrs []*ast.Attribute, vis *ast.Visibility) ast.Item {
	switch p.cur().Type {
	case token.FN, token.ASYNC:
		return p.parseItemFn(attrs, vis)
	case token.STRUCT:
		return p.parseItemStruct(attrs, vis)
	case token.ENUM:
		return p.parseItemEnum(attrs, vis)
	case token.IMPL:
		if vis != nil {
			p.errorf(diagnostics.ErrP001, vis.Token, "visibility is not supported on `impl` blocks")
			return nil
		}
		return p.parseItemImpl(attrs)
	case token.CONST:
		return p.parseItemConst(attrs, vis)
	case token.USE:
		return p.parseItemUse(attrs, vis)
	case token.MOD:
		return p.parseItemMod(attrs, vis)
	case token.IDENT:
		// An item-position macro call: `path!( ... )`.
		if len(attrs) > 0 {
			p.errorf(diagnostics.ErrP003, attrs[0].Pound)
			return nil
		}
		path := p.parsePath()
		if path == nil {
			return nil
		}
		call := p.parseMacroCall(path)
		if call == nil {
			return nil
		}
		if semi := p.cur(); semi.Type == token.SEMICOLON {
			p.next()
		}
		return call
	}

	p.errorf(diagnostics.ErrP002, p.cur(), p.cur().Lexeme, "an item")
	return nil
}

func (p *Parser) parseItemFn(attrs []*ast.Attribute, vis *ast.Visibility) *ast.ItemFn {
	var asyncTok *token.Token
	if p.cur().Type == token.ASYNC {
		t := p.next()
		asyncTok = &t
	}
	fnTok, ok := p.expect(token.FN)
	if !ok {
		return nil
	}
	name, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	open, ok := p.expect(token.LPAREN)
	if !ok {
		return nil
	}
	args, closeTok, ok := p.parseFnArgs()
	if !ok {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.ItemFn{
		Attributes: attrs,
		Visibility: vis,
		Async:      asyncTok,
		Fn:         fnTok,
		Name:       name,
		Open:       open,
		Args:       args,
		Close:      closeTok,
		Body:       body,
	}
}

func (p *Parser) parseFnArgs() ([]*ast.FnArg, token.Token, bool) {
	var args []*ast.FnArg
	for p.cur().Type != token.RPAREN {
		tok := p.cur()
		switch tok.Type {
		case token.IDENT, token.SELF, token.UNDER:
			args = append(args, &ast.FnArg{Token: p.next()})
		default:
			p.errorf(diagnostics.ErrP002, tok, tok.Lexeme, "an argument name")
			return nil, token.Token{}, false
		}
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}
	closeTok, ok := p.expect(token.RPAREN)
	return args, closeTok, ok
}

func (p *Parser) parseStructBody() *ast.StructBody {
	switch p.cur().Type {
	case token.LPAREN:
		open := p.next()
		var fields []token.Token
		for p.cur().Type == token.IDENT {
			fields = append(fields, p.next())
			if p.cur().Type == token.COMMA {
				p.next()
				continue
			}
			break
		}
		closeTok, ok := p.expect(token.RPAREN)
		if !ok {
			return nil
		}
		return &ast.StructBody{Kind: ast.TupleBody, Open: open, Fields: fields, Close: closeTok}
	case token.LBRACE:
		open := p.next()
		var fields []token.Token
		for p.cur().Type == token.IDENT {
			fields = append(fields, p.next())
			if p.cur().Type == token.COMMA {
				p.next()
				continue
			}
			break
		}
		closeTok, ok := p.expect(token.RBRACE)
		if !ok {
			return nil
		}
		return &ast.StructBody{Kind: ast.RecordBody, Open: open, Fields: fields, Close: closeTok}
	}
	return &ast.StructBody{Kind: ast.UnitBody}
}

func (p *Parser) parseItemStruct(attrs []*ast.Attribute, vis *ast.Visibility) *ast.ItemStruct {
	structTok := p.next()
	name, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	body := p.parseStructBody()
	if body == nil {
		return nil
	}
	item := &ast.ItemStruct{
		Attributes: attrs,
		Visibility: vis,
		Struct:     structTok,
		Name:       name,
		Body:       body,
	}
	// Unit and tuple bodies terminate with a semicolon.
	if body.Kind != ast.RecordBody {
		if semi := p.cur(); semi.Type == token.SEMICOLON {
			p.next()
			item.Semi = &semi
		}
	}
	return item
}

func (p *Parser) parseItemEnum(attrs []*ast.Attribute, vis *ast.Visibility) *ast.ItemEnum {
	enumTok := p.next()
	name, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	open, ok := p.expect(token.LBRACE)
	if !ok {
		return nil
	}
	var variants []*ast.Variant
	for p.cur().Type == token.IDENT {
		vname := p.next()
		body := p.parseStructBody()
		if body == nil {
			return nil
		}
		variants = append(variants, &ast.Variant{Name: vname, Body: body})
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}
	closeTok, ok := p.expect(token.RBRACE)
	if !ok {
		return nil
	}
	return &ast.ItemEnum{
		Attributes: attrs,
		Visibility: vis,
		Enum:       enumTok,
		Name:       name,
		Open:       open,
		Variants:   variants,
		Close:      closeTok,
	}
}

func (p *Parser) parseItemImpl(attrs []*ast.Attribute) *ast.ItemImpl {
	implTok := p.next()
	path := p.parsePath()
	if path == nil {
		return nil
	}
	open, ok := p.expect(token.LBRACE)
	if !ok {
		return nil
	}
	var fns []*ast.ItemFn
	for p.cur().Type != token.RBRACE && p.cur().Type != token.EOF {
		fnAttrs := p.parseAttributes()
		fnVis := p.parseVisibility()
		fn := p.parseItemFn(fnAttrs, fnVis)
		if fn == nil {
			return nil
		}
		fns = append(fns, fn)
	}
	closeTok, ok := p.expect(token.RBRACE)
	if !ok {
		return nil
	}
	return &ast.ItemImpl{
		Attributes: attrs,
		Impl:       implTok,
		Path:       path,
		Open:       open,
		Functions:  fns,
		Close:      closeTok,
	}
}

func (p *Parser) parseItemConst(attrs []*ast.Attribute, vis *ast.Visibility) *ast.ItemConst {
	constTok := p.next()
	name, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	eq, ok := p.expect(token.ASSIGN)
	if !ok {
		return nil
	}
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	item := &ast.ItemConst{
		Attributes: attrs,
		Visibility: vis,
		Const:      constTok,
		Name:       name,
		Eq:         eq,
		Expr:       expr,
	}
	if semi := p.cur(); semi.Type == token.SEMICOLON {
		p.next()
		item.Semi = &semi
	}
	return item
}

func (p *Parser) parseItemUse(attrs []*ast.Attribute, vis *ast.Visibility) *ast.ItemUse {
	useTok := p.next()
	path := p.parsePath()
	if path == nil {
		return nil
	}
	usePath := &ast.UsePath{Path: path}
	if p.cur().Type == token.COLON_COLON && p.peek().Type == token.ASTERISK {
		p.next()
		star := p.next()
		usePath.Star = &star
	} else if p.cur().Type == token.AS {
		asTok := p.next()
		alias, ok := p.expect(token.IDENT)
		if !ok {
			return nil
		}
		usePath.AsTok = &asTok
		usePath.Alias = &alias
	}
	item := &ast.ItemUse{
		Attributes: attrs,
		Visibility: vis,
		Use:        useTok,
		Path:       usePath,
	}
	if semi := p.cur(); semi.Type == token.SEMICOLON {
		p.next()
		item.Semi = &semi
	}
	return item
}

func (p *Parser) parseItemMod(attrs []*ast.Attribute, vis *ast.Visibility) *ast.ItemMod {
	modTok := p.next()
	name, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	item := &ast.ItemMod{
		Attributes: attrs,
		Visibility: vis,
		Mod:        modTok,
		Name:       name,
	}
	if p.cur().Type == token.LBRACE {
		open := p.next()
		item.Open = &open
		body := &ast.File{}
		for {
			bodyAttrs := p.parseAttributes()
			bodyVis := p.parseVisibility()
			if p.failed() {
				return nil
			}
			if p.cur().Type == token.RBRACE || p.cur().Type == token.EOF {
				if len(bodyAttrs) > 0 {
					p.errorf(diagnostics.ErrP007, bodyAttrs[0].Pound)
					return nil
				}
				if bodyVis != nil {
					p.errorf(diagnostics.ErrP008, bodyVis.Token)
					return nil
				}
				break
			}
			sub := p.parseItem(bodyAttrs, bodyVis)
			if sub == nil {
				return nil
			}
			body.Items = append(body.Items, sub)
		}
		closeTok, ok := p.expect(token.RBRACE)
		if !ok {
			return nil
		}
		item.Body = body
		item.Close = &closeTok
		return item
	}
	if semi := p.cur(); semi.Type == token.SEMICOLON {
		p.next()
		item.Semi = &semi
	}
	return item
}

func (p *Parser) parsePath() *ast.Path {
	tok := p.cur()
	switch tok.Type {
	case token.IDENT, token.SELF, token.CRATE, token.SELF_TY:
		p.next()
	default:
		p.errorf(diagnostics.ErrP002, tok, tok.Lexeme, "a path")
		return nil
	}
	segments := []token.Token{tok}
	for p.cur().Type == token.COLON_COLON && p.peek().Type == token.IDENT {
		p.next()
		segments = append(segments, p.next())
	}
	return &ast.Path{Segments: segments}
}

// parseMacroCall parses `!(...)`, `![...]`, or `!{...}` after a path,
// capturing the raw token stream between the delimiters.
func (p *Parser) parseMacroCall(path *ast.Path) *ast.MacroCall {
	bang, ok := p.expect(token.BANG)
	if !ok {
		return nil
	}

	open := p.cur()
	var closeType token.TokenType
	switch open.Type {
	case token.LPAREN:
		closeType = token.RPAREN
	case token.LBRACKET:
		closeType = token.RBRACKET
	case token.LBRACE:
		closeType = token.RBRACE
	default:
		p.errorf(diagnostics.ErrP002, open, open.Lexeme, "a macro delimiter `(`, `[`, or `{`")
		return nil
	}
	p.next()

	stream := token.NewStream(nil)
	level := 1
	var closeTok token.Token
	for {
		tok := p.cur()
		if tok.Type == token.EOF {
			p.errorf(diagnostics.ErrP004, tok, string(closeType), "end of input")
			return nil
		}
		p.next()
		switch tok.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE, token.POUND_BRACE:
			level++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			level--
			if level == 0 {
				if tok.Type != closeType {
					p.errorf(diagnostics.ErrP004, tok, string(closeType), tok.Lexeme)
					return nil
				}
				closeTok = tok
			}
		}
		if level == 0 {
			break
		}
		stream.Push(tok)
	}

	return &ast.MacroCall{
		Path:  path,
		Bang:  bang,
		Open:  open,
		Args:  stream,
		Close: closeTok,
	}
}

func (p *Parser) parseBlock() *ast.Block {
	open, ok := p.expect(token.LBRACE)
	if !ok {
		return nil
	}
	block := &ast.Block{Open: open}

	for p.cur().Type != token.RBRACE && p.cur().Type != token.EOF {
		if p.isItemStart() {
			attrs := p.parseAttributes()
			vis := p.parseVisibility()
			item := p.parseItem(attrs, vis)
			if item == nil {
				return nil
			}
			block.Stmts = append(block.Stmts, &ast.StmtItem{Item: item})
			continue
		}

		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		stmt := &ast.StmtExpr{Expr: expr}
		if semi := p.cur(); semi.Type == token.SEMICOLON {
			p.next()
			stmt.Semi = &semi
		} else if p.cur().Type != token.RBRACE && !isBlockLike(expr) {
			p.errorf(diagnostics.ErrP002, p.cur(), p.cur().Lexeme, "`;` or `}`")
			return nil
		}
		block.Stmts = append(block.Stmts, stmt)
	}

	closeTok, ok := p.expect(token.RBRACE)
	if !ok {
		return nil
	}
	block.Close = closeTok
	return block
}

func isBlockLike(expr ast.Expr) bool {
	switch expr.(type) {
	case *ast.ExprIf, *ast.ExprMatch, *ast.ExprWhile, *ast.ExprLoop, *ast.ExprBlock, *ast.ExprAsync:
		return true
	}
	return false
}

// parseInteger resolves an integer token's lexeme.
func (p *Parser) parseInteger(tok token.Token) (int64, bool) {
	lexeme := strings.ReplaceAll(tok.Lexeme, "_", "")
	var value int64
	var err error
	switch {
	case strings.HasPrefix(lexeme, "0x"):
		value, err = strconv.ParseInt(lexeme[2:], 16, 64)
	case strings.HasPrefix(lexeme, "0b"):
		value, err = strconv.ParseInt(lexeme[2:], 2, 64)
	default:
		value, err = strconv.ParseInt(lexeme, 10, 64)
	}
	if err != nil {
		p.errorf(diagnostics.ErrP006, tok, tok.Lexeme)
		return 0, false
	}
	return value, true
}

func (p *Parser) parseFloat(tok token.Token) (float64, bool) {
	lexeme := strings.ReplaceAll(tok.Lexeme, "_", "")
	value, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		p.errorf(diagnostics.ErrP006, tok, tok.Lexeme)
		return 0, false
	}
	return value, true
}
