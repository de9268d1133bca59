package parser

import (
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/lexer"
	"github.com/funvibe/quill/internal/token"
)

// parsePattern parses one pattern of the closed pattern set.
func (p *Parser) parsePattern() ast.Pat {
	tok := p.cur()

	switch tok.Type {
	case token.UNDER:
		p.next()
		return &ast.PatIgnore{Token: tok}

	case token.INT:
		p.next()
		value, ok := p.parseInteger(tok)
		if !ok {
			return nil
		}
		return &ast.PatNumber{Token: tok, Integer: value}

	case token.FLOAT:
		p.next()
		// Kept as a pattern so the compiler can reject it with the span of
		// the literal.
		return &ast.PatNumber{Token: tok, IsFloat: true}

	case token.MINUS:
		minus := p.next()
		numTok := p.cur()
		switch numTok.Type {
		case token.INT:
			p.next()
			value, ok := p.parseInteger(numTok)
			if !ok {
				return nil
			}
			return &ast.PatNumber{Minus: &minus, Token: numTok, Integer: -value}
		case token.FLOAT:
			p.next()
			return &ast.PatNumber{Minus: &minus, Token: numTok, IsFloat: true}
		}
		p.errorf(diagnostics.ErrP002, numTok, numTok.Lexeme, "a number")
		return nil

	case token.STRING:
		p.next()
		value, ok := lexer.Unquote(tok.Lexeme)
		if !ok {
			p.errorf(diagnostics.ErrR001, tok, tok.Lexeme)
			return nil
		}
		return &ast.PatString{Token: tok, Value: value}

	case token.CHAR:
		p.next()
		value, ok := lexer.UnquoteChar(tok.Lexeme)
		if !ok {
			p.errorf(diagnostics.ErrP005, tok, "character")
			return nil
		}
		return &ast.PatChar{Token: tok, Value: value}

	case token.BYTE:
		p.next()
		value, ok := lexer.UnquoteByte(tok.Lexeme)
		if !ok {
			p.errorf(diagnostics.ErrP005, tok, "byte")
			return nil
		}
		return &ast.PatByte{Token: tok, Value: value}

	case token.LPAREN:
		open := p.next()
		if p.cur().Type == token.RPAREN {
			closeTok := p.next()
			return &ast.PatUnit{Open: open, Close: closeTok}
		}
		return p.parsePatTupleBody(nil, open)

	case token.LBRACKET:
		open := p.next()
		pat := &ast.PatVec{Open: open}
		if !p.parsePatList(&pat.Items, &pat.DotDot, token.RBRACKET) {
			return nil
		}
		closeTok, ok := p.expect(token.RBRACKET)
		if !ok {
			return nil
		}
		pat.Close = closeTok
		return pat

	case token.POUND_BRACE:
		pound := p.next()
		return p.parsePatObjectBody(nil, &pound)

	case token.IDENT, token.SELF, token.CRATE, token.SELF_TY:
		path := p.parsePath()
		if path == nil {
			return nil
		}
		switch p.cur().Type {
		case token.LPAREN:
			open := p.next()
			return p.parsePatTupleBody(path, open)
		case token.LBRACE:
			return p.parsePatObjectBody(path, nil)
		}
		return &ast.PatPath{Path: path}
	}

	p.errorf(diagnostics.ErrP002, tok, tok.Lexeme, "a pattern")
	return nil
}

// parsePatList parses comma-separated sub-patterns up to the closing
// delimiter, capturing a trailing `..` open marker.
func (p *Parser) parsePatList(items *[]ast.Pat, dotdot **token.Token, closeType token.TokenType) bool {
	for p.cur().Type != closeType && p.cur().Type != token.EOF {
		if p.cur().Type == token.DOT_DOT {
			rest := p.next()
			*dotdot = &rest
			break
		}
		item := p.parsePattern()
		if item == nil {
			return false
		}
		*items = append(*items, item)
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}
	return true
}

func (p *Parser) parsePatTupleBody(path *ast.Path, open token.Token) ast.Pat {
	pat := &ast.PatTuple{Path: path, Open: open}
	if !p.parsePatList(&pat.Items, &pat.DotDot, token.RPAREN) {
		return nil
	}
	closeTok, ok := p.expect(token.RPAREN)
	if !ok {
		return nil
	}
	pat.Close = closeTok
	return pat
}

func (p *Parser) parsePatObjectBody(path *ast.Path, pound *token.Token) ast.Pat {
	var open token.Token
	if pound == nil {
		var ok bool
		open, ok = p.expect(token.LBRACE)
		if !ok {
			return nil
		}
	}
	pat := &ast.PatObject{Path: path, Pound: pound, Open: open}

	for p.cur().Type == token.IDENT || p.cur().Type == token.STRING {
		key := p.next()
		field := &ast.PatObjectField{Key: key}
		if p.cur().Type == token.COLON {
			colon := p.next()
			field.Colon = &colon
			sub := p.parsePattern()
			if sub == nil {
				return nil
			}
			field.Pat = sub
		}
		pat.Fields = append(pat.Fields, field)
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}

	if p.cur().Type == token.DOT_DOT {
		rest := p.next()
		pat.DotDot = &rest
	}

	closeTok, ok := p.expect(token.RBRACE)
	if !ok {
		return nil
	}
	pat.Close = closeTok
	return pat
}
