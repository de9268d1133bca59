package compiler

import (
	"github.com/funvibe/quill/internal/asm"
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/query"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/token"
)

// compile emits one expression under a needs hint.
func (c *Compiler) compile(expr ast.Expr, needs Needs) *diagnostics.DiagnosticError {
	span := expr.Span()

	switch e := expr.(type) {
	case *ast.LitUnit:
		if !needs.Value() {
			c.warnNotUsed(span)
			return nil
		}
		c.asm.Push(inst.Unit{}, span)
		return nil

	case *ast.LitBool:
		if !needs.Value() {
			c.warnNotUsed(span)
			return nil
		}
		c.asm.Push(inst.Bool{Value: e.Value}, span)
		return nil

	case *ast.LitInteger:
		if !needs.Value() {
			c.warnNotUsed(span)
			return nil
		}
		c.asm.Push(inst.Integer{Value: e.Value}, span)
		return nil

	case *ast.LitFloat:
		if !needs.Value() {
			c.warnNotUsed(span)
			return nil
		}
		c.asm.Push(inst.Float{Value: e.Value}, span)
		return nil

	case *ast.LitChar:
		if !needs.Value() {
			c.warnNotUsed(span)
			return nil
		}
		c.asm.Push(inst.Char{Value: e.Value}, span)
		return nil

	case *ast.LitByte:
		if !needs.Value() {
			c.warnNotUsed(span)
			return nil
		}
		c.asm.Push(inst.Byte{Value: e.Value}, span)
		return nil

	case *ast.LitStr:
		if !needs.Value() {
			c.warnNotUsed(span)
			return nil
		}
		slot := c.unit.NewStaticString(e.Value)
		c.asm.Push(inst.String{Slot: slot}, span)
		return nil

	case *ast.LitVec:
		for _, item := range e.Items {
			if err := c.compile(item, NeedsValue); err != nil {
				return err
			}
			c.scopes.Top().DeclAnon(item.Span())
		}
		c.scopes.Top().UndeclAnon(len(e.Items))
		c.asm.Push(inst.Vec{Count: len(e.Items)}, span)
		if !needs.Value() {
			c.asm.Push(inst.Pop{}, span)
		}
		return nil

	case *ast.LitTuple:
		for _, item := range e.Items {
			if err := c.compile(item, NeedsValue); err != nil {
				return err
			}
			c.scopes.Top().DeclAnon(item.Span())
		}
		c.scopes.Top().UndeclAnon(len(e.Items))
		c.asm.Push(inst.Tuple{Count: len(e.Items)}, span)
		if !needs.Value() {
			c.asm.Push(inst.Pop{}, span)
		}
		return nil

	case *ast.LitObject:
		return c.compileLitObject(e, needs)

	case *ast.ExprGroup:
		return c.compile(e.Expr, needs)

	case *ast.Path:
		return c.compilePathExpr(e, needs)

	case *ast.ExprBinary:
		return c.compileBinary(e, needs)

	case *ast.ExprUnary:
		if err := c.compile(e.Expr, NeedsValue); err != nil {
			return err
		}
		switch e.Op.Type {
		case token.MINUS:
			c.asm.Push(inst.Neg{}, span)
		case token.BANG:
			c.asm.Push(inst.Not{}, span)
		}
		if !needs.Value() {
			c.asm.Push(inst.Pop{}, span)
		}
		return nil

	case *ast.ExprAssign:
		return c.compileAssign(e, needs)

	case *ast.ExprLet:
		return c.compileLet(e, needs)

	case *ast.ExprIf:
		return c.compileIf(e, needs)

	case *ast.ExprMatch:
		return c.compileMatch(e, needs)

	case *ast.ExprWhile:
		return c.compileWhile(e, needs)

	case *ast.ExprLoop:
		return c.compileLoop(e, needs)

	case *ast.ExprBreak:
		return c.compileBreak(e)

	case *ast.ExprReturn:
		if e.Expr != nil {
			if err := c.compile(e.Expr, NeedsValue); err != nil {
				return err
			}
			c.localsClean(c.scopes.TotalVarCount(), span)
			c.asm.Push(inst.Return{}, span)
			return nil
		}
		c.localsPop(c.scopes.TotalVarCount(), span)
		c.asm.Push(inst.ReturnUnit{}, span)
		return nil

	case *ast.ExprCall:
		return c.compileCall(e, needs)

	case *ast.ExprFieldAccess:
		return c.compileFieldAccess(e, needs)

	case *ast.ExprBlock:
		return c.compileBlock(e.Block, needs)

	case *ast.ExprClosure:
		return c.compileClosureUse(e, needs)

	case *ast.ExprAsync:
		return c.compileAsyncUse(e, needs)

	case *ast.MacroCall:
		expansion, ok := c.query.BuiltinMacroFor(e.Id)
		if !ok || expansion.Kind != query.ExpandExpr {
			return c.errSpan(diagnostics.ErrC014, span, "no stored expansion")
		}
		return c.compile(expansion.Expr, needs)
	}

	return c.errSpan(diagnostics.ErrC001, span, "expression")
}

func (c *Compiler) warnNotUsed(span token.Span) {
	c.warnings.Add(diagnostics.WarnW001, span, c.sourceID, nil)
}

// compileBlock compiles a block in its own child scope. The block's value
// is its trailing expression; with no trailing expression and a value
// needed, unit is produced.
func (c *Compiler) compileBlock(block *ast.Block, needs Needs) *diagnostics.DiagnosticError {
	span := block.Span()
	itemGuard := c.items.PushBlock()
	defer c.items.Pop(itemGuard)
	guard := c.scopes.PushChild(span)

	trailing, hasTrailing := block.TrailingExpr()

	for _, stmt := range block.Stmts {
		switch s := stmt.(type) {
		case *ast.StmtItem:
			// Items were indexed by the worker; nothing to emit here.
		case *ast.StmtExpr:
			if hasTrailing && s.Expr == trailing {
				if err := c.compile(s.Expr, needs); err != nil {
					return err
				}
				continue
			}
			if err := c.compile(s.Expr, NeedsNone); err != nil {
				return err
			}
		}
	}

	if !hasTrailing && needs.Value() {
		c.asm.Push(inst.Unit{}, span)
	}

	return c.cleanLastScope(span, guard, needs)
}

func (c *Compiler) compileLitObject(e *ast.LitObject, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	keys := make([]string, 0, len(e.Fields))
	dup := make(map[string]bool)
	for _, field := range e.Fields {
		key := field.Key.Lexeme
		if field.Key.Type == token.STRING {
			key = trimQuotes(field.Key.Lexeme)
		}
		if dup[key] {
			return c.errSpan(diagnostics.ErrC005, field.Key.Span, key)
		}
		dup[key] = true
		keys = append(keys, key)
	}

	var typedHash hash.Hash
	if e.Path != nil {
		item := c.convertPathToItem(e.Path)
		meta, err := c.lookupMeta(item, e.Path.Span())
		if err != nil {
			return err
		}
		if meta == nil {
			return c.errSpan(diagnostics.ErrQ002, e.Path.Span(), item.String())
		}
		switch meta.Kind {
		case runtime.MetaStruct, runtime.MetaStructVariant:
		default:
			return c.errSpan(diagnostics.ErrC001, e.Path.Span(), meta.Describe())
		}
		if meta.Object == nil || meta.Object.Fields == nil {
			return c.errSpan(diagnostics.ErrQ004, e.Path.Span(), meta.Describe())
		}
		for _, field := range e.Fields {
			if !meta.Object.HasField(field.Key.Lexeme) {
				return c.errSpan(diagnostics.ErrC006, field.Key.Span, field.Key.Lexeme, meta.Object.Item.String())
			}
		}
		typedHash, _ = meta.TypeOfHash()
	}

	// Field values are pushed in declaration order; the key set slot gives
	// the VM the matching names.
	for _, field := range e.Fields {
		if field.Expr != nil {
			if err := c.compile(field.Expr, NeedsValue); err != nil {
				return err
			}
			c.scopes.Top().DeclAnon(field.Span())
			continue
		}
		// Shorthand: bind the field from a local of the same name.
		offset, ok := c.scopes.TryGetVar(field.Key.Lexeme)
		if !ok {
			return c.errSpan(diagnostics.ErrC012, field.Key.Span, field.Key.Lexeme)
		}
		c.asm.Push(inst.Copy{Offset: offset}, field.Key.Span)
		c.scopes.Top().DeclAnon(field.Key.Span)
	}
	c.scopes.Top().UndeclAnon(len(e.Fields))

	slot := c.unit.NewStaticObjectKeys(keys)
	if e.Path != nil {
		c.asm.Push(inst.TypedObject{Hash: typedHash, Slot: slot}, span)
	} else {
		c.asm.Push(inst.Object{Slot: slot}, span)
	}
	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

func trimQuotes(lexeme string) string {
	if len(lexeme) >= 2 && lexeme[0] == '"' {
		return lexeme[1 : len(lexeme)-1]
	}
	return lexeme
}

func (c *Compiler) compilePathExpr(path *ast.Path, needs Needs) *diagnostics.DiagnosticError {
	span := path.Span()

	if ident, ok := path.AsIdent(); ok || path.Segments[0].Type == token.SELF {
		name := "self"
		if ok {
			name = ident.Lexeme
		}
		if len(path.Segments) == 1 {
			if offset, found := c.scopes.TryGetVar(name); found {
				if needs == NeedsType {
					return c.errSpan(diagnostics.ErrC002, span, name)
				}
				if !needs.Value() {
					c.warnNotUsed(span)
					return nil
				}
				c.asm.Push(inst.Copy{Offset: offset}, span)
				return nil
			}
		}
	}

	item := c.convertPathToItem(path)
	meta, err := c.lookupMeta(item, span)
	if err != nil {
		return err
	}
	if meta == nil {
		if name, ok := item.AsLocal(); ok {
			return c.errSpan(diagnostics.ErrC012, span, name)
		}
		return c.errSpan(diagnostics.ErrQ001, span, item.String())
	}
	if !needs.Value() && needs != NeedsType {
		c.warnNotUsed(span)
		return nil
	}
	return c.compileMeta(meta, span, needs)
}

func (c *Compiler) compileBinary(e *ast.ExprBinary, needs Needs) *diagnostics.DiagnosticError {
	span := e.Lhs.Span().Join(e.Rhs.Span())

	switch e.Op.Type {
	case token.AND, token.OR:
		return c.compileLogical(e, needs)
	}

	if err := c.compile(e.Lhs, NeedsValue); err != nil {
		return err
	}
	c.scopes.Top().DeclAnon(e.Lhs.Span())
	if err := c.compile(e.Rhs, NeedsValue); err != nil {
		return err
	}
	c.scopes.Top().DeclAnon(e.Rhs.Span())

	switch e.Op.Type {
	case token.PLUS:
		c.asm.Push(inst.Add{}, span)
	case token.MINUS:
		c.asm.Push(inst.Sub{}, span)
	case token.ASTERISK:
		c.asm.Push(inst.Mul{}, span)
	case token.SLASH:
		c.asm.Push(inst.Div{}, span)
	case token.PERCENT:
		c.asm.Push(inst.Rem{}, span)
	case token.EQ:
		c.asm.Push(inst.Eq{}, span)
	case token.NOT_EQ:
		c.asm.Push(inst.Neq{}, span)
	case token.LT:
		c.asm.Push(inst.Lt{}, span)
	case token.LTE:
		c.asm.Push(inst.Le{}, span)
	case token.GT:
		c.asm.Push(inst.Gt{}, span)
	case token.GTE:
		c.asm.Push(inst.Ge{}, span)
	default:
		return c.errSpan(diagnostics.ErrC001, e.Op.Span, e.Op.Lexeme)
	}
	c.scopes.Top().UndeclAnon(2)

	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

// compileLogical short-circuits && and || with conditional jumps.
func (c *Compiler) compileLogical(e *ast.ExprBinary, needs Needs) *diagnostics.DiagnosticError {
	span := e.Lhs.Span().Join(e.Rhs.Span())
	endLabel := c.asm.NewLabel("logical_end")
	shortLabel := c.asm.NewLabel("logical_short")

	if err := c.compile(e.Lhs, NeedsValue); err != nil {
		return err
	}
	if e.Op.Type == token.OR {
		c.asm.JumpIf(shortLabel, span)
	} else {
		c.asm.JumpIfNot(shortLabel, span)
	}

	if err := c.compile(e.Rhs, NeedsValue); err != nil {
		return err
	}
	c.asm.Jump(endLabel, span)

	if err := c.asm.Label(shortLabel); err != nil {
		return c.errSpan(diagnostics.ErrC015, span, err.Error())
	}
	c.asm.Push(inst.Bool{Value: e.Op.Type == token.OR}, span)

	if err := c.asm.Label(endLabel); err != nil {
		return c.errSpan(diagnostics.ErrC015, span, err.Error())
	}
	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

func (c *Compiler) compileAssign(e *ast.ExprAssign, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	path, ok := e.Lhs.(*ast.Path)
	if !ok {
		return c.errSpan(diagnostics.ErrC008, e.Lhs.Span())
	}
	ident, ok := path.AsIdent()
	if !ok {
		return c.errSpan(diagnostics.ErrC008, path.Span())
	}
	offset, found := c.scopes.TryGetVar(ident.Lexeme)
	if !found {
		return c.errSpan(diagnostics.ErrC012, path.Span(), ident.Lexeme)
	}

	if err := c.compile(e.Rhs, NeedsValue); err != nil {
		return err
	}
	c.asm.Push(inst.Replace{Offset: offset}, span)

	if needs.Value() {
		c.asm.Push(inst.Unit{}, span)
	}
	return nil
}

func (c *Compiler) compileLet(e *ast.ExprLet, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	if err := c.compile(e.Expr, NeedsValue); err != nil {
		return err
	}

	falseLabel := c.asm.NewLabel("let_panic")
	load := func(a *asm.Assembly) {}
	used, err := c.compilePat(c.scopes.Top(), e.Pat, falseLabel, load)
	if err != nil {
		return err
	}
	if used {
		// The pattern can fail; a mismatch on a `let` diverges.
		c.warnings.Add(diagnostics.WarnW002, e.Pat.Span(), c.sourceID, nil)
		okLabel := c.asm.NewLabel("let_ok")
		c.asm.Jump(okLabel, span)
		if lerr := c.asm.Label(falseLabel); lerr != nil {
			return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
		}
		c.asm.Push(inst.Panic{Msg: "pattern did not match"}, span)
		if lerr := c.asm.Label(okLabel); lerr != nil {
			return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
		}
	}

	if needs.Value() {
		c.asm.Push(inst.Unit{}, span)
	}
	return nil
}

func (c *Compiler) compileIf(e *ast.ExprIf, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()
	endLabel := c.asm.NewLabel("if_end")

	type branch struct {
		condition *ast.Condition
		block     *ast.Block
	}
	branches := []branch{{e.Condition, e.Then}}
	for _, ei := range e.ElseIfs {
		branches = append(branches, branch{ei.Condition, ei.Block})
	}

	for _, br := range branches {
		thenLabel := c.asm.NewLabel("if_then")
		nextLabel := c.asm.NewLabel("if_next")

		scope, err := c.compileCondition(br.condition, thenLabel)
		if err != nil {
			return err
		}
		c.asm.Jump(nextLabel, span)
		if lerr := c.asm.Label(thenLabel); lerr != nil {
			return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
		}

		guard := c.scopes.Push(scope)
		if err := c.compileBlock(br.block, needs); err != nil {
			return err
		}
		if err := c.cleanLastScope(span, guard, needs); err != nil {
			return err
		}
		c.asm.Jump(endLabel, span)

		if lerr := c.asm.Label(nextLabel); lerr != nil {
			return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
		}
	}

	if e.Else != nil {
		if err := c.compileBlock(e.Else, needs); err != nil {
			return err
		}
	} else if needs.Value() {
		c.asm.Push(inst.Unit{}, span)
	}

	if lerr := c.asm.Label(endLabel); lerr != nil {
		return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
	}
	return nil
}

func (c *Compiler) compileMatch(e *ast.ExprMatch, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	matchScope := c.scopes.Child(span)
	matchGuard := c.scopes.Push(matchScope)

	if err := c.compile(e.Expr, NeedsValue); err != nil {
		return err
	}
	offset := matchScope.DeclAnon(e.Expr.Span())

	endLabel := c.asm.NewLabel("match_end")

	type armBranch struct {
		label asm.Label
		scope *Scope
		body  ast.Expr
	}
	var branches []armBranch

	for _, arm := range e.Arms {
		armSpan := arm.Span()
		branchLabel := c.asm.NewLabel("match_branch")
		falseLabel := c.asm.NewLabel("match_false")

		scope := c.scopes.Child(armSpan)
		load := func(a *asm.Assembly) {
			a.Push(inst.Copy{Offset: offset}, armSpan)
		}

		used, err := c.compilePat(scope, arm.Pat, falseLabel, load)
		if err != nil {
			return err
		}

		if arm.Guard != nil {
			guard := c.scopes.Push(scope)
			gerr := c.compile(arm.Guard, NeedsValue)
			if _, perr := c.scopes.Pop(guard, armSpan); perr != nil {
				return c.errSpan(diagnostics.ErrC015, armSpan, perr.Error())
			}
			if gerr != nil {
				return gerr
			}
			c.asm.PopAndJumpIfNot(scope.LocalVarCount, falseLabel, armSpan)
			used = true
		}

		c.asm.Jump(branchLabel, armSpan)
		if used {
			if lerr := c.asm.Label(falseLabel); lerr != nil {
				return c.errSpan(diagnostics.ErrC015, armSpan, lerr.Error())
			}
		}

		branches = append(branches, armBranch{label: branchLabel, scope: scope, body: arm.Body})
	}

	// No arm matched: the scrutinee is still live; produce unit.
	if needs.Value() {
		c.asm.Push(inst.Unit{}, span)
	}
	c.asm.Jump(endLabel, span)

	for _, br := range branches {
		bodySpan := br.body.Span()
		if lerr := c.asm.Label(br.label); lerr != nil {
			return c.errSpan(diagnostics.ErrC015, bodySpan, lerr.Error())
		}
		guard := c.scopes.Push(br.scope)
		if err := c.compile(br.body, needs); err != nil {
			return err
		}
		if err := c.cleanLastScope(bodySpan, guard, needs); err != nil {
			return err
		}
		c.asm.Jump(endLabel, bodySpan)
	}

	if lerr := c.asm.Label(endLabel); lerr != nil {
		return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
	}
	return c.cleanLastScope(span, matchGuard, needs)
}

func (c *Compiler) compileWhile(e *ast.ExprWhile, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()
	startLabel := c.asm.NewLabel("while_start")
	endLabel := c.asm.NewLabel("while_end")
	exitLabel := c.asm.NewLabel("while_exit")
	thenLabel := c.asm.NewLabel("while_body")

	c.loops.Push(Loop{EndLabel: endLabel, TotalVarCount: c.scopes.TotalVarCount()})
	defer c.loops.Pop()

	if err := c.asm.Label(startLabel); err != nil {
		return c.errSpan(diagnostics.ErrC015, span, err.Error())
	}

	scope, err := c.compileCondition(e.Condition, thenLabel)
	if err != nil {
		return err
	}
	c.asm.Jump(exitLabel, span)

	if lerr := c.asm.Label(thenLabel); lerr != nil {
		return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
	}
	guard := c.scopes.Push(scope)
	if err := c.compileBlock(e.Body, NeedsNone); err != nil {
		return err
	}
	if err := c.cleanLastScope(span, guard, NeedsNone); err != nil {
		return err
	}
	c.asm.Jump(startLabel, span)

	if lerr := c.asm.Label(exitLabel); lerr != nil {
		return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
	}
	c.asm.Push(inst.Unit{}, span)

	if lerr := c.asm.Label(endLabel); lerr != nil {
		return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
	}
	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

func (c *Compiler) compileLoop(e *ast.ExprLoop, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()
	startLabel := c.asm.NewLabel("loop_start")
	endLabel := c.asm.NewLabel("loop_end")

	c.loops.Push(Loop{EndLabel: endLabel, TotalVarCount: c.scopes.TotalVarCount()})
	defer c.loops.Pop()

	if err := c.asm.Label(startLabel); err != nil {
		return c.errSpan(diagnostics.ErrC015, span, err.Error())
	}
	if err := c.compileBlock(e.Body, NeedsNone); err != nil {
		return err
	}
	c.asm.Jump(startLabel, span)

	if lerr := c.asm.Label(endLabel); lerr != nil {
		return c.errSpan(diagnostics.ErrC015, span, lerr.Error())
	}
	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

func (c *Compiler) compileBreak(e *ast.ExprBreak) *diagnostics.DiagnosticError {
	span := e.Span()

	loop, ok := c.loops.Last()
	if !ok {
		return c.errSpan(diagnostics.ErrC013, span)
	}
	diff := c.scopes.TotalVarCount() - loop.TotalVarCount

	if e.Expr != nil {
		if err := c.compile(e.Expr, NeedsValue); err != nil {
			return err
		}
		c.localsClean(diff, span)
	} else {
		c.localsPop(diff, span)
		c.asm.Push(inst.Unit{}, span)
	}
	c.asm.Jump(loop.EndLabel, span)
	return nil
}

func (c *Compiler) compileCall(e *ast.ExprCall, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	// Instance call: receiver.method(args).
	if access, ok := e.Fn.(*ast.ExprFieldAccess); ok {
		if access.Field.Type != token.IDENT {
			return c.errSpan(diagnostics.ErrC008, access.Field.Span)
		}
		if err := c.compile(access.Expr, NeedsValue); err != nil {
			return err
		}
		c.scopes.Top().DeclAnon(access.Expr.Span())
		for _, arg := range e.Args {
			if err := c.compile(arg, NeedsValue); err != nil {
				return err
			}
			c.scopes.Top().DeclAnon(arg.Span())
		}
		c.scopes.Top().UndeclAnon(len(e.Args) + 1)
		c.asm.PushWithComment(
			inst.CallInstance{Hash: hash.InstanceName(access.Field.Lexeme), Args: len(e.Args)},
			span,
			access.Field.Lexeme,
		)
		if !needs.Value() {
			c.asm.Push(inst.Pop{}, span)
		}
		return nil
	}

	if path, ok := e.Fn.(*ast.Path); ok {
		// A local holding a callable takes precedence over items.
		if ident, isIdent := path.AsIdent(); isIdent {
			if offset, found := c.scopes.TryGetVar(ident.Lexeme); found {
				for _, arg := range e.Args {
					if err := c.compile(arg, NeedsValue); err != nil {
						return err
					}
					c.scopes.Top().DeclAnon(arg.Span())
				}
				c.scopes.Top().UndeclAnon(len(e.Args))
				c.asm.Push(inst.Copy{Offset: offset}, path.Span())
				c.asm.Push(inst.CallFn{Args: len(e.Args)}, span)
				if !needs.Value() {
					c.asm.Push(inst.Pop{}, span)
				}
				return nil
			}
		}

		item := c.convertPathToItem(path)
		meta, err := c.lookupMeta(item, path.Span())
		if err != nil {
			return err
		}
		if meta == nil {
			return c.errSpan(diagnostics.ErrQ001, path.Span(), item.String())
		}

		switch meta.Kind {
		case runtime.MetaTuple, runtime.MetaTupleVariant:
			if meta.Tuple.Args != len(e.Args) {
				return c.errSpan(diagnostics.ErrC004, span, meta.Describe(), meta.Tuple.Args, len(e.Args))
			}
			for _, arg := range e.Args {
				if err := c.compile(arg, NeedsValue); err != nil {
					return err
				}
				c.scopes.Top().DeclAnon(arg.Span())
			}
			c.scopes.Top().UndeclAnon(len(e.Args))
			c.asm.PushWithComment(
				inst.Call{Hash: meta.Tuple.Hash, Args: len(e.Args)},
				span,
				meta.Describe(),
			)
		case runtime.MetaFunction:
			for _, arg := range e.Args {
				if err := c.compile(arg, NeedsValue); err != nil {
					return err
				}
				c.scopes.Top().DeclAnon(arg.Span())
			}
			c.scopes.Top().UndeclAnon(len(e.Args))
			c.asm.PushWithComment(
				inst.Call{Hash: hash.Type(meta.Item), Args: len(e.Args)},
				span,
				meta.Describe(),
			)
		default:
			return c.errSpan(diagnostics.ErrC001, path.Span(), meta.Describe())
		}

		if !needs.Value() {
			c.asm.Push(inst.Pop{}, span)
		}
		return nil
	}

	// A computed callee: args first, callee on top, then CallFn.
	for _, arg := range e.Args {
		if err := c.compile(arg, NeedsValue); err != nil {
			return err
		}
		c.scopes.Top().DeclAnon(arg.Span())
	}
	if err := c.compile(e.Fn, NeedsValue); err != nil {
		return err
	}
	c.scopes.Top().UndeclAnon(len(e.Args))
	c.asm.Push(inst.CallFn{Args: len(e.Args)}, span)
	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

func (c *Compiler) compileFieldAccess(e *ast.ExprFieldAccess, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	if err := c.compile(e.Expr, NeedsValue); err != nil {
		return err
	}

	switch e.Field.Type {
	case token.IDENT:
		slot := c.unit.NewStaticString(e.Field.Lexeme)
		c.asm.Push(inst.ObjectIndexGet{Slot: slot}, span)
	case token.INT:
		index := 0
		for _, ch := range e.Field.Lexeme {
			index = index*10 + int(ch-'0')
		}
		c.asm.Push(inst.TupleIndexGet{Index: index}, span)
	default:
		return c.errSpan(diagnostics.ErrC008, e.Field.Span)
	}

	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

// compileClosureUse emits the closure construction at its use site: the
// captured values in capture order, then the closure instruction.
func (c *Compiler) compileClosureUse(e *ast.ExprClosure, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	entry, ok := c.query.ById(e.Id)
	if !ok {
		return c.errSpan(diagnostics.ErrQ001, span, "closure")
	}
	// Resolving the meta pushes the closure's build entry.
	if _, err := c.query.QueryMeta(entry.Item, span); err != nil {
		return err
	}

	for _, capture := range entry.Captures {
		offset, found := c.scopes.TryGetVar(capture)
		if !found {
			return c.errSpan(diagnostics.ErrC012, span, capture)
		}
		c.asm.Push(inst.Copy{Offset: offset}, span)
	}
	c.asm.PushWithComment(
		inst.Closure{Hash: hash.Type(entry.Item), Count: len(entry.Captures)},
		span,
		entry.Item.String(),
	)
	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}

// compileAsyncUse invokes the compiled async block with its captures as
// arguments.
func (c *Compiler) compileAsyncUse(e *ast.ExprAsync, needs Needs) *diagnostics.DiagnosticError {
	span := e.Span()

	entry, ok := c.query.ById(e.Id)
	if !ok {
		return c.errSpan(diagnostics.ErrQ001, span, "async block")
	}
	if _, err := c.query.QueryMeta(entry.Item, span); err != nil {
		return err
	}

	for _, capture := range entry.Captures {
		offset, found := c.scopes.TryGetVar(capture)
		if !found {
			return c.errSpan(diagnostics.ErrC012, span, capture)
		}
		c.asm.Push(inst.Copy{Offset: offset}, span)
	}
	c.asm.PushWithComment(
		inst.Call{Hash: hash.Type(entry.Item), Args: len(entry.Captures)},
		span,
		entry.Item.String(),
	)
	if !needs.Value() {
		c.asm.Push(inst.Pop{}, span)
	}
	return nil
}
