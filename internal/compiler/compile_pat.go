package compiler

import (
	"github.com/funvibe/quill/internal/asm"
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/token"
)

// loadOp materialises the scrutinee on top of the stack. Specialised
// patterns bind the scrutinee once to an anonymous slot and hand
// sub-patterns a load that projects out of that slot, avoiding redundant
// copies.
type loadOp func(a *asm.Assembly)

// compilePat encodes a pattern. Patterns clean up their own locals and jump
// to falseLabel when they do not match; success falls through. Returns
// whether falseLabel was used.
func (c *Compiler) compilePat(scope *Scope, pat ast.Pat, falseLabel asm.Label, load loadOp) (bool, *diagnostics.DiagnosticError) {
	span := pat.Span()

	switch p := pat.(type) {
	case *ast.PatPath:
		item := c.convertPathToItem(p.Path)

		meta, err := c.lookupMeta(item, span)
		if err != nil {
			return false, err
		}
		if meta != nil {
			used, err := c.compilePatMetaBinding(scope, span, meta, falseLabel, load)
			if err != nil {
				return false, err
			}
			if used {
				return true, nil
			}
		}

		ident, ok := item.AsLocal()
		if !ok {
			return false, c.errSpan(diagnostics.ErrC008, span)
		}
		load(c.asm)
		scope.DeclVar(ident, span)
		return false, nil

	case *ast.PatIgnore:
		return false, nil

	case *ast.PatUnit:
		load(c.asm)
		c.asm.Push(inst.IsUnit{}, span)

	case *ast.PatByte:
		load(c.asm)
		c.asm.Push(inst.EqByte{Value: p.Value}, span)

	case *ast.PatChar:
		load(c.asm)
		c.asm.Push(inst.EqCharacter{Value: p.Value}, span)

	case *ast.PatNumber:
		if p.IsFloat {
			return false, c.errSpan(diagnostics.ErrC007, span)
		}
		load(c.asm)
		c.asm.Push(inst.EqInteger{Value: p.Integer}, span)

	case *ast.PatString:
		slot := c.unit.NewStaticString(p.Value)
		load(c.asm)
		c.asm.Push(inst.EqStaticString{Slot: slot}, span)

	case *ast.PatVec:
		if err := c.compilePatVec(scope, p, falseLabel, load); err != nil {
			return false, err
		}
		return true, nil

	case *ast.PatTuple:
		if err := c.compilePatTuple(scope, p, falseLabel, load); err != nil {
			return false, err
		}
		return true, nil

	case *ast.PatObject:
		if err := c.compilePatObject(scope, p, falseLabel, load); err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, c.errSpan(diagnostics.ErrC003, span)
	}

	c.asm.PopAndJumpIfNot(scope.LocalVarCount, falseLabel, span)
	return true, nil
}

// compilePatMetaBinding matches a path pattern against a known zero-arity
// tuple or variant meta. Returns true if the binding was used.
func (c *Compiler) compilePatMetaBinding(scope *Scope, span token.Span, meta *runtime.CompileMeta, falseLabel asm.Label, load loadOp) (bool, *diagnostics.DiagnosticError) {
	var tuple *runtime.MetaTupleInfo
	var typeCheck inst.TypeCheck

	switch meta.Kind {
	case runtime.MetaTuple:
		if meta.Tuple.Args != 0 {
			return false, nil
		}
		tuple = meta.Tuple
		typeCheck = inst.TypeCheckType(meta.TypeOf)
	case runtime.MetaTupleVariant:
		if meta.Tuple.Args != 0 {
			return false, nil
		}
		tuple = meta.Tuple
		typeCheck = inst.TypeCheckVariant(meta.TypeOf)
	default:
		return false, nil
	}

	if check, ok := c.context.TypeCheckFor(tuple.Item); ok {
		typeCheck = check
	}

	load(c.asm)
	c.asm.Push(inst.MatchSequence{
		TypeCheck: typeCheck,
		Len:       tuple.Args,
		Exact:     true,
	}, span)
	c.asm.PopAndJumpIfNot(scope.LocalVarCount, falseLabel, span)
	return true, nil
}

// compilePatVec encodes a vector pattern match.
func (c *Compiler) compilePatVec(scope *Scope, patVec *ast.PatVec, falseLabel asm.Label, load loadOp) *diagnostics.DiagnosticError {
	span := patVec.Span()

	// Assign the yet-to-be-verified vector to an anonymous slot, so the
	// sub-patterns can interact with it repeatedly.
	load(c.asm)
	offset := scope.DeclAnon(span)

	c.asm.Push(inst.Copy{Offset: offset}, span)
	c.asm.Push(inst.MatchSequence{
		TypeCheck: inst.TypeCheckVec,
		Len:       len(patVec.Items),
		Exact:     !patVec.IsOpen(),
	}, span)
	c.asm.PopAndJumpIfNot(scope.LocalVarCount, falseLabel, span)

	for index, sub := range patVec.Items {
		index := index
		subSpan := sub.Span()
		load := func(a *asm.Assembly) {
			a.Push(inst.TupleIndexGetAt{Offset: offset, Index: index}, subSpan)
		}
		if _, err := c.compilePat(scope, sub, falseLabel, load); err != nil {
			return err
		}
	}
	return nil
}

// compilePatTuple encodes a tuple pattern match, typed when a path prefix
// is present.
func (c *Compiler) compilePatTuple(scope *Scope, patTuple *ast.PatTuple, falseLabel asm.Label, load loadOp) *diagnostics.DiagnosticError {
	span := patTuple.Span()

	load(c.asm)
	offset := scope.DeclAnon(span)

	typeCheck := inst.TypeCheckTuple
	if patTuple.Path != nil {
		item := c.convertPathToItem(patTuple.Path)

		meta, err := c.lookupMeta(item, patTuple.Path.Span())
		if err != nil {
			return err
		}
		if meta == nil {
			return c.errSpan(diagnostics.ErrC003, span)
		}

		var tuple *runtime.MetaTupleInfo
		switch meta.Kind {
		case runtime.MetaTuple:
			tuple = meta.Tuple
			typeCheck = inst.TypeCheckType(meta.TypeOf)
		case runtime.MetaTupleVariant:
			tuple = meta.Tuple
			typeCheck = inst.TypeCheckVariant(meta.TypeOf)
		default:
			return c.errSpan(diagnostics.ErrQ004, span, meta.Describe())
		}

		count := len(patTuple.Items)
		isOpen := patTuple.IsOpen()
		if !(tuple.Args == count || (count < tuple.Args && isOpen)) {
			return c.errSpan(diagnostics.ErrC004, span, meta.Describe(), tuple.Args, count)
		}

		if check, ok := c.context.TypeCheckFor(tuple.Item); ok {
			typeCheck = check
		}
	}

	c.asm.Push(inst.Copy{Offset: offset}, span)
	c.asm.Push(inst.MatchSequence{
		TypeCheck: typeCheck,
		Len:       len(patTuple.Items),
		Exact:     !patTuple.IsOpen(),
	}, span)
	c.asm.PopAndJumpIfNot(scope.LocalVarCount, falseLabel, span)

	for index, sub := range patTuple.Items {
		index := index
		subSpan := sub.Span()
		load := func(a *asm.Assembly) {
			a.Push(inst.TupleIndexGetAt{Offset: offset, Index: index}, subSpan)
		}
		if _, err := c.compilePat(scope, sub, falseLabel, load); err != nil {
			return err
		}
	}
	return nil
}

// compilePatObject encodes an object pattern match. Duplicate keys and
// unknown fields on typed records are rejected after the value load and
// before the match is emitted; non-identifier shorthand bindings are
// rejected while the fields are bound, after the match.
func (c *Compiler) compilePatObject(scope *Scope, patObject *ast.PatObject, falseLabel asm.Label, load loadOp) *diagnostics.DiagnosticError {
	span := patObject.Span()

	// Bind the loaded value once to an anonymous slot; the per-field loads
	// project out of it.
	load(c.asm)
	offset := scope.DeclAnon(span)

	stringSlots := make([]int, 0, len(patObject.Fields))
	keys := make([]string, 0, len(patObject.Fields))
	keysDup := make(map[string]token.Span)

	for _, field := range patObject.Fields {
		key := field.Key.Lexeme
		if field.Key.Type == token.STRING {
			key = trimQuotes(field.Key.Lexeme)
		}
		stringSlots = append(stringSlots, c.unit.NewStaticString(key))
		keys = append(keys, key)

		if _, exists := keysDup[key]; exists {
			return c.errSpan(diagnostics.ErrC005, field.Key.Span, key)
		}
		keysDup[key] = field.Key.Span
	}

	keySlot := c.unit.NewStaticObjectKeys(keys)

	typeCheck := inst.TypeCheckObject
	if patObject.Path != nil {
		pathSpan := patObject.Path.Span()
		item := c.convertPathToItem(patObject.Path)

		meta, err := c.lookupMeta(item, pathSpan)
		if err != nil {
			return err
		}
		if meta == nil {
			return c.errSpan(diagnostics.ErrQ002, pathSpan, item.String())
		}

		var object *runtime.MetaObjectInfo
		switch meta.Kind {
		case runtime.MetaStruct:
			object = meta.Object
			typeCheck = inst.TypeCheckType(meta.TypeOf)
		case runtime.MetaStructVariant:
			object = meta.Object
			typeCheck = inst.TypeCheckVariant(meta.TypeOf)
		default:
			return c.errSpan(diagnostics.ErrQ004, pathSpan, meta.Describe())
		}

		if object.Fields == nil {
			// Field composition is unknown for external metas.
			return c.errSpan(diagnostics.ErrQ004, pathSpan, meta.Describe())
		}

		for _, field := range patObject.Fields {
			if !object.HasField(field.Key.Lexeme) {
				return c.errSpan(diagnostics.ErrC006, field.Key.Span, field.Key.Lexeme, object.Item.String())
			}
		}
	}

	c.asm.Push(inst.Copy{Offset: offset}, span)
	c.asm.Push(inst.MatchObject{
		TypeCheck: typeCheck,
		Slot:      keySlot,
		Exact:     !patObject.IsOpen(),
	}, span)
	c.asm.PopAndJumpIfNot(scope.LocalVarCount, falseLabel, span)

	for i, field := range patObject.Fields {
		slot := stringSlots[i]
		fieldSpan := field.Span()
		load := func(a *asm.Assembly) {
			a.Push(inst.ObjectSlotIndexGetAt{Offset: offset, Slot: slot}, fieldSpan)
		}

		if field.Pat != nil {
			if _, err := c.compilePat(scope, field.Pat, falseLabel, load); err != nil {
				return err
			}
			continue
		}

		// Only raw identifiers are supported as shorthand bindings.
		if field.Key.Type != token.IDENT {
			return c.errSpan(diagnostics.ErrC008, field.Key.Span)
		}
		load(c.asm)
		scope.DeclVar(field.Key.Lexeme, field.Key.Span)
	}

	return nil
}
