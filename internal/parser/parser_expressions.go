package parser

import (
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/lexer"
	"github.com/funvibe/quill/internal/token"
)

// Binding powers for the Pratt expression parser.
const (
	precLowest = iota
	precOr
	precAnd
	precEquality
	precComparison
	precSum
	precProduct
)

func binaryPrec(t token.TokenType) int {
	switch t {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NOT_EQ:
		return precEquality
	case token.LT, token.GT, token.LTE, token.GTE:
		return precComparison
	case token.PLUS, token.MINUS:
		return precSum
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return precProduct
	}
	return precLowest
}

// parseExpr parses a full expression including assignment.
func (p *Parser) parseExpr() ast.Expr {
	lhs := p.parseBinary(precLowest)
	if lhs == nil {
		return nil
	}
	if p.cur().Type == token.ASSIGN {
		eq := p.next()
		rhs := p.parseExpr()
		if rhs == nil {
			return nil
		}
		return &ast.ExprAssign{Lhs: lhs, Eq: eq, Rhs: rhs}
	}
	return lhs
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	lhs := p.parseUnary()
	if lhs == nil {
		return nil
	}

	for {
		prec := binaryPrec(p.cur().Type)
		if prec == precLowest || prec <= minPrec {
			return lhs
		}
		op := p.next()
		rhs := p.parseBinary(prec)
		if rhs == nil {
			return nil
		}
		lhs = &ast.ExprBinary{Lhs: lhs, Op: op, Rhs: rhs}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur().Type {
	case token.BANG, token.MINUS:
		op := p.next()
		expr := p.parseUnary()
		if expr == nil {
			return nil
		}
		return &ast.ExprUnary{Op: op, Expr: expr}
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any number of call
// and field-access suffixes.
func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	if expr == nil {
		return nil
	}

	for {
		switch p.cur().Type {
		case token.LPAREN:
			open := p.next()
			var args []ast.Expr
			for p.cur().Type != token.RPAREN && p.cur().Type != token.EOF {
				arg := p.withStructLiteral(func() ast.Expr { return p.parseExpr() })
				if arg == nil {
					return nil
				}
				args = append(args, arg)
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
			expr = &ast.ExprCall{Fn: expr, Open: open, Args: args, Close: closeTok}

		case token.DOT:
			dot := p.next()
			field := p.cur()
			if field.Type != token.IDENT && field.Type != token.INT {
				p.errorf(diagnostics.ErrP002, field, field.Lexeme, "a field name or tuple index")
				return nil
			}
			p.next()
			expr = &ast.ExprFieldAccess{Expr: expr, Dot: dot, Field: field}

		default:
			return expr
		}
	}
}

// withStructLiteral runs fn with struct literals re-enabled, restoring the
// surrounding restriction afterwards.
func (p *Parser) withStructLiteral(fn func() ast.Expr) ast.Expr {
	was := p.noStructLiteral
	p.noStructLiteral = false
	expr := fn()
	p.noStructLiteral = was
	return expr
}

// withoutStructLiteral runs fn with `Path { .. }` literals suppressed.
func (p *Parser) withoutStructLiteral(fn func() ast.Expr) ast.Expr {
	was := p.noStructLiteral
	p.noStructLiteral = true
	expr := fn()
	p.noStructLiteral = was
	return expr
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur()

	switch tok.Type {
	case token.INT:
		p.next()
		value, ok := p.parseInteger(tok)
		if !ok {
			return nil
		}
		return &ast.LitInteger{Token: tok, Value: value}

	case token.FLOAT:
		p.next()
		value, ok := p.parseFloat(tok)
		if !ok {
			return nil
		}
		return &ast.LitFloat{Token: tok, Value: value}

	case token.STRING:
		p.next()
		value, ok := lexer.Unquote(tok.Lexeme)
		if !ok {
			p.errorf(diagnostics.ErrR001, tok, tok.Lexeme)
			return nil
		}
		return &ast.LitStr{Token: tok, Value: value}

	case token.CHAR:
		p.next()
		value, ok := lexer.UnquoteChar(tok.Lexeme)
		if !ok {
			p.errorf(diagnostics.ErrP005, tok, "character")
			return nil
		}
		return &ast.LitChar{Token: tok, Value: value}

	case token.BYTE:
		p.next()
		value, ok := lexer.UnquoteByte(tok.Lexeme)
		if !ok {
			p.errorf(diagnostics.ErrP005, tok, "byte")
			return nil
		}
		return &ast.LitByte{Token: tok, Value: value}

	case token.TRUE:
		p.next()
		return &ast.LitBool{Token: tok, Value: true}

	case token.FALSE:
		p.next()
		return &ast.LitBool{Token: tok, Value: false}

	case token.IDENT, token.SELF, token.CRATE, token.SELF_TY:
		path := p.parsePath()
		if path == nil {
			return nil
		}
		switch {
		case p.cur().Type == token.BANG:
			return p.parseMacroCall(path)
		case p.cur().Type == token.LBRACE && !p.noStructLiteral:
			return p.parseObjectLiteral(path, nil)
		}
		return path

	case token.POUND_BRACE:
		pound := p.next()
		return p.parseObjectLiteral(nil, &pound)

	case token.LPAREN:
		return p.parseParen()

	case token.LBRACKET:
		open := p.next()
		var elems []ast.Expr
		for p.cur().Type != token.RBRACKET && p.cur().Type != token.EOF {
			elem := p.withStructLiteral(func() ast.Expr { return p.parseExpr() })
			if elem == nil {
				return nil
			}
			elems = append(elems, elem)
			if p.cur().Type == token.COMMA {
				p.next()
				continue
			}
			break
		}
		closeTok, ok := p.expect(token.RBRACKET)
		if !ok {
			return nil
		}
		return &ast.LitVec{Open: open, Items: elems, Close: closeTok}

	case token.IF:
		return p.parseIf()

	case token.MATCH:
		return p.parseMatch()

	case token.WHILE:
		whileTok := p.next()
		cond := p.parseCondition()
		if cond == nil {
			return nil
		}
		body := p.parseBlock()
		if body == nil {
			return nil
		}
		return &ast.ExprWhile{While: whileTok, Condition: cond, Body: body}

	case token.LOOP:
		loopTok := p.next()
		body := p.parseBlock()
		if body == nil {
			return nil
		}
		return &ast.ExprLoop{Loop: loopTok, Body: body}

	case token.BREAK:
		breakTok := p.next()
		expr := &ast.ExprBreak{Break: breakTok}
		if p.startsExpr() {
			value := p.parseExpr()
			if value == nil {
				return nil
			}
			expr.Expr = value
		}
		return expr

	case token.RETURN:
		returnTok := p.next()
		expr := &ast.ExprReturn{Return: returnTok}
		if p.startsExpr() {
			value := p.parseExpr()
			if value == nil {
				return nil
			}
			expr.Expr = value
		}
		return expr

	case token.LET:
		return p.parseLet()

	case token.LBRACE:
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		return &ast.ExprBlock{Block: block}

	case token.ASYNC:
		asyncTok := p.next()
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		return &ast.ExprAsync{Async: asyncTok, Block: block}

	case token.PIPE, token.OR:
		return p.parseClosure()
	}

	p.errorf(diagnostics.ErrP002, tok, tok.Lexeme, "an expression")
	return nil
}

// startsExpr reports whether the current token can begin an expression;
// used for the optional operands of `break` and `return`.
func (p *Parser) startsExpr() bool {
	switch p.cur().Type {
	case token.SEMICOLON, token.RBRACE, token.RPAREN, token.RBRACKET, token.COMMA, token.EOF:
		return false
	}
	return true
}

func (p *Parser) parseParen() ast.Expr {
	open := p.next()

	if p.cur().Type == token.RPAREN {
		closeTok := p.next()
		return &ast.LitUnit{Open: open, Close: closeTok}
	}

	first := p.withStructLiteral(func() ast.Expr { return p.parseExpr() })
	if first == nil {
		return nil
	}

	if p.cur().Type == token.COMMA {
		items := []ast.Expr{first}
		for p.cur().Type == token.COMMA {
			p.next()
			if p.cur().Type == token.RPAREN {
				break
			}
			item := p.withStructLiteral(func() ast.Expr { return p.parseExpr() })
			if item == nil {
				return nil
			}
			items = append(items, item)
		}
		closeTok, ok := p.expect(token.RPAREN)
		if !ok {
			return nil
		}
		return &ast.LitTuple{Open: open, Items: items, Close: closeTok}
	}

	closeTok, ok := p.expect(token.RPAREN)
	if !ok {
		return nil
	}
	return &ast.ExprGroup{Open: open, Expr: first, Close: closeTok}
}

func (p *Parser) parseObjectLiteral(path *ast.Path, pound *token.Token) ast.Expr {
	var open token.Token
	if pound == nil {
		var ok bool
		open, ok = p.expect(token.LBRACE)
		if !ok {
			return nil
		}
	}
	var fields []*ast.ObjectField
	for p.cur().Type == token.IDENT || p.cur().Type == token.STRING {
		key := p.next()
		field := &ast.ObjectField{Key: key}
		if p.cur().Type == token.COLON {
			colon := p.next()
			field.Colon = &colon
			value := p.withStructLiteral(func() ast.Expr { return p.parseExpr() })
			if value == nil {
				return nil
			}
			field.Expr = value
		}
		fields = append(fields, field)
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
	return &ast.LitObject{Path: path, Pound: pound, Open: open, Fields: fields, Close: closeTok}
}

func (p *Parser) parseCondition() *ast.Condition {
	if p.cur().Type == token.LET {
		let := p.parseLetCondition()
		if let == nil {
			return nil
		}
		return &ast.Condition{Let: let}
	}
	expr := p.withoutStructLiteral(func() ast.Expr { return p.parseExpr() })
	if expr == nil {
		return nil
	}
	return &ast.Condition{Expr: expr}
}

func (p *Parser) parseLet() ast.Expr {
	letTok := p.next()
	pat := p.parsePattern()
	if pat == nil {
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
	return &ast.ExprLet{Let: letTok, Pat: pat, Eq: eq, Expr: expr}
}

func (p *Parser) parseLetCondition() *ast.ExprLet {
	letTok := p.next()
	pat := p.parsePattern()
	if pat == nil {
		return nil
	}
	eq, ok := p.expect(token.ASSIGN)
	if !ok {
		return nil
	}
	expr := p.withoutStructLiteral(func() ast.Expr { return p.parseExpr() })
	if expr == nil {
		return nil
	}
	return &ast.ExprLet{Let: letTok, Pat: pat, Eq: eq, Expr: expr}
}

func (p *Parser) parseIf() ast.Expr {
	ifTok := p.next()
	cond := p.parseCondition()
	if cond == nil {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}
	expr := &ast.ExprIf{If: ifTok, Condition: cond, Then: then}

	for p.cur().Type == token.ELSE {
		elseTok := p.next()
		if p.cur().Type == token.IF {
			innerIf := p.next()
			innerCond := p.parseCondition()
			if innerCond == nil {
				return nil
			}
			innerBlock := p.parseBlock()
			if innerBlock == nil {
				return nil
			}
			expr.ElseIfs = append(expr.ElseIfs, &ast.ElseIf{
				Else:      elseTok,
				If:        innerIf,
				Condition: innerCond,
				Block:     innerBlock,
			})
			continue
		}
		elseBlock := p.parseBlock()
		if elseBlock == nil {
			return nil
		}
		expr.ElseTok = &elseTok
		expr.Else = elseBlock
		break
	}

	return expr
}

func (p *Parser) parseMatch() ast.Expr {
	matchTok := p.next()
	scrutinee := p.withoutStructLiteral(func() ast.Expr { return p.parseExpr() })
	if scrutinee == nil {
		return nil
	}
	open, ok := p.expect(token.LBRACE)
	if !ok {
		return nil
	}

	var arms []*ast.MatchArm
	for p.cur().Type != token.RBRACE && p.cur().Type != token.EOF {
		pat := p.parsePattern()
		if pat == nil {
			return nil
		}
		arm := &ast.MatchArm{Pat: pat}
		if p.cur().Type == token.IF {
			ifTok := p.next()
			guard := p.withoutStructLiteral(func() ast.Expr { return p.parseExpr() })
			if guard == nil {
				return nil
			}
			arm.IfTok = &ifTok
			arm.Guard = guard
		}
		arrow, ok := p.expect(token.ARROW)
		if !ok {
			return nil
		}
		arm.Arrow = arrow
		body := p.parseExpr()
		if body == nil {
			return nil
		}
		arm.Body = body
		arms = append(arms, arm)
		if p.cur().Type == token.COMMA {
			p.next()
		}
	}

	closeTok, ok := p.expect(token.RBRACE)
	if !ok {
		return nil
	}
	return &ast.ExprMatch{Match: matchTok, Expr: scrutinee, Open: open, Arms: arms, Close: closeTok}
}

func (p *Parser) parseClosure() ast.Expr {
	start := p.next()
	var args []*ast.FnArg

	if start.Type == token.PIPE {
		for p.cur().Type != token.PIPE && p.cur().Type != token.EOF {
			tok := p.cur()
			switch tok.Type {
			case token.IDENT, token.UNDER:
				args = append(args, &ast.FnArg{Token: p.next()})
			default:
				p.errorf(diagnostics.ErrP002, tok, tok.Lexeme, "a closure argument")
				return nil
			}
			if p.cur().Type == token.COMMA {
				p.next()
				continue
			}
			break
		}
		end, ok := p.expect(token.PIPE)
		if !ok {
			return nil
		}
		body := p.parseExpr()
		if body == nil {
			return nil
		}
		return &ast.ExprClosure{Start: start, Args: args, End: end, Body: body}
	}

	// `||` lexes as a single OR token: an empty argument list.
	body := p.parseExpr()
	if body == nil {
		return nil
	}
	return &ast.ExprClosure{Start: start, Args: nil, End: start, Body: body}
}
