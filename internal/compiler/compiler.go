// Package compiler walks syntax trees and emits instructions. It drives the
// whole pipeline: the worker indexes and expands, the query system hands out
// build entries, and each entry is compiled into an assembly registered with
// the unit builder.
package compiler

import (
	"fmt"

	"github.com/funvibe/quill/internal/asm"
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/config"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/query"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/source"
	"github.com/funvibe/quill/internal/token"
	"github.com/funvibe/quill/internal/unit"
	"github.com/funvibe/quill/internal/worker"
)

// Needs is the hint propagated down each expression: what it must leave on
// the stack.
type Needs int

const (
	// NeedsValue requires a value on the stack.
	NeedsValue Needs = iota
	// NeedsType requires a type descriptor on the stack.
	NeedsType
	// NeedsNone requires nothing; the expression runs for effect.
	NeedsNone
)

// Value reports whether any sort of value is needed.
func (n Needs) Value() bool {
	return n == NeedsValue || n == NeedsType
}

// LoadSources compiles the preloaded source set against the context. The
// first source is the root file; further sources are pulled in through
// `mod` declarations. On success it returns the built unit plus accumulated
// warnings.
func LoadSources(ctx *runtime.Context, sources *source.Sources, options *config.Options) (*unit.Unit, *diagnostics.Warnings, *diagnostics.DiagnosticError) {
	if options == nil {
		options = config.DefaultOptions()
	}

	warnings := diagnostics.NewWarnings()
	builder := unit.WithDefaultPrelude()
	builder.SetDebug(options.DebugInfo)
	for id := 0; id < sources.Len(); id++ {
		builder.AddSource(sources.Name(id))
	}

	storage := query.NewStorage()
	q := query.New(storage, ctx, builder)

	w := worker.New(sources, ctx, q, builder, warnings)
	w.QueueLoad(worker.LoadRoot, 0, items.Item{})
	if err := w.Run(); err != nil {
		return nil, warnings, err
	}

	if options.LinkChecks {
		if err := verifyImports(ctx, builder); err != nil {
			return nil, warnings, err
		}
	}

	for {
		entry, ok := q.PopEntry()
		if !ok {
			break
		}
		if err := compileEntry(ctx, options, sources, q, builder, warnings, entry); err != nil {
			if err.File == "" {
				err.WithSource(sources.Name(entry.SourceID), entry.SourceID)
			}
			return nil, warnings, err
		}
	}

	built, err := builder.Build()
	if err != nil {
		return nil, warnings, diagnostics.NewErrorSpan(diagnostics.ErrC009, token.Span{}, err.Error())
	}
	return built, warnings, nil
}

// verifyImports checks that every import target is provided either by the
// context or by the unit itself. Runs only after import expansion reached
// its fixed point.
func verifyImports(ctx *runtime.Context, builder *unit.Builder) *diagnostics.DiagnosticError {
	for _, entry := range builder.IterImports() {
		if ctx.ContainsPrefix(entry.Target) || builder.ContainsPrefix(entry.Target) {
			continue
		}
		if entry.Span != nil {
			return diagnostics.NewErrorSpan(diagnostics.ErrC009, *entry.Span, entry.Target.String()).
				WithSource("", entry.SourceID)
		}
		return diagnostics.NewErrorSpan(diagnostics.ErrC010, token.Span{}, entry.Target.String())
	}
	return nil
}

// Compiler compiles one build entry into an assembly.
type Compiler struct {
	sourceID int
	source   *source.Source
	context  *runtime.Context
	query    *query.Query
	asm      *asm.Assembly
	items    *items.Items
	unit     *unit.Builder
	scopes   *Scopes
	loops    *Loops
	options  *config.Options
	warnings *diagnostics.Warnings

	// implItem is the resolved `Self` target while compiling an instance
	// function; empty otherwise.
	implItem items.Item

	// instanceMetaCache memoises impl-target resolution per item key when
	// Options.MemoizeInstanceFn is set.
	instanceMetaCache map[string]*runtime.CompileMeta
}

func compileEntry(ctx *runtime.Context, options *config.Options, sources *source.Sources, q *query.Query, builder *unit.Builder, warnings *diagnostics.Warnings, entry *query.BuildEntry) *diagnostics.DiagnosticError {
	a := builder.NewAssembly(entry.SourceID)

	c := &Compiler{
		sourceID:          entry.SourceID,
		source:            sources.Get(entry.SourceID),
		context:           ctx,
		query:             q,
		asm:               a,
		items:             items.NewItems(entry.Item),
		unit:              builder,
		scopes:            NewScopes(),
		loops:             NewLoops(),
		options:           options,
		warnings:          warnings,
		instanceMetaCache: make(map[string]*runtime.CompileMeta),
	}

	switch entry.Kind {
	case query.BuildFunction:
		return c.compileItemFn(entry, false)
	case query.BuildInstanceFunction:
		return c.compileItemFn(entry, true)
	case query.BuildClosure:
		return c.compileClosureEntry(entry)
	case query.BuildAsyncBlock:
		return c.compileAsyncEntry(entry)
	}
	return nil
}

func (c *Compiler) compileItemFn(entry *query.BuildEntry, instance bool) *diagnostics.DiagnosticError {
	fn := entry.Indexed.Fn
	span := fn.Span()

	argNames := make([]string, 0, len(fn.Args))
	scope := c.scopes.Top()
	for _, arg := range fn.Args {
		argNames = append(argNames, arg.Name())
		if arg.IsIgnore() {
			scope.DeclAnon(arg.Span())
		} else {
			scope.DeclVar(arg.Name(), arg.Span())
		}
	}

	if instance {
		c.implItem, _ = entry.Item.Pop()
	}

	if err := c.compileBlock(fn.Body, NeedsValue); err != nil {
		return err
	}
	c.localsClean(c.scopes.Top().LocalVarCount, span)
	c.asm.Push(inst.Return{}, span)

	fin, ferr := c.asm.Finalise()
	if ferr != nil {
		return diagnostics.NewErrorSpan(diagnostics.ErrC015, span, ferr.Error())
	}

	call := unit.CallImmediate
	if fn.Async != nil {
		call = unit.CallAsync
	}

	if instance {
		implMeta, err := c.lookupImplMeta(c.implItem, span)
		if err != nil {
			return err
		}
		if implMeta == nil {
			return c.errSpan(diagnostics.ErrQ002, span, c.implItem.String())
		}
		typeOf, ok := implMeta.TypeOfHash()
		if !ok {
			return c.errSpan(diagnostics.ErrC011, span, implMeta.Describe())
		}
		if uerr := c.unit.NewInstanceFunction(c.sourceID, entry.Item, typeOf, fn.Name.Lexeme, len(fn.Args), fin, call, argNames); uerr != nil {
			return c.errSpan(diagnostics.ErrC011, span, uerr.Error())
		}
		return nil
	}

	if uerr := c.unit.NewFunction(c.sourceID, entry.Item, len(fn.Args), fin, call, argNames); uerr != nil {
		return c.errSpan(diagnostics.ErrQ001, span, uerr.Error())
	}
	return nil
}

// compileClosureEntry compiles a closure body. The frame layout is the
// captured values first, then the declared arguments; the call site emits
// the environment in the same order.
func (c *Compiler) compileClosureEntry(entry *query.BuildEntry) *diagnostics.DiagnosticError {
	closure := entry.Indexed.Closure
	span := closure.Span()

	scope := c.scopes.Top()
	argNames := make([]string, 0, len(entry.Indexed.Captures)+len(closure.Args))
	for _, capture := range entry.Indexed.Captures {
		argNames = append(argNames, capture)
		scope.DeclVar(capture, span)
	}
	for _, arg := range closure.Args {
		argNames = append(argNames, arg.Name())
		if arg.IsIgnore() {
			scope.DeclAnon(arg.Span())
		} else {
			scope.DeclVar(arg.Name(), arg.Span())
		}
	}

	if err := c.compile(closure.Body, NeedsValue); err != nil {
		return err
	}
	c.localsClean(c.scopes.Top().LocalVarCount, span)
	c.asm.Push(inst.Return{}, span)

	fin, ferr := c.asm.Finalise()
	if ferr != nil {
		return diagnostics.NewErrorSpan(diagnostics.ErrC015, span, ferr.Error())
	}
	total := len(entry.Indexed.Captures) + len(closure.Args)
	if uerr := c.unit.NewFunction(c.sourceID, entry.Item, total, fin, unit.CallImmediate, argNames); uerr != nil {
		return c.errSpan(diagnostics.ErrQ001, span, uerr.Error())
	}
	return nil
}

func (c *Compiler) compileAsyncEntry(entry *query.BuildEntry) *diagnostics.DiagnosticError {
	async := entry.Indexed.Async
	span := async.Span()

	scope := c.scopes.Top()
	argNames := make([]string, 0, len(entry.Indexed.Captures))
	for _, capture := range entry.Indexed.Captures {
		argNames = append(argNames, capture)
		scope.DeclVar(capture, span)
	}

	if err := c.compileBlock(async.Block, NeedsValue); err != nil {
		return err
	}
	c.localsClean(c.scopes.Top().LocalVarCount, span)
	c.asm.Push(inst.Return{}, span)

	fin, ferr := c.asm.Finalise()
	if ferr != nil {
		return diagnostics.NewErrorSpan(diagnostics.ErrC015, span, ferr.Error())
	}
	if uerr := c.unit.NewFunction(c.sourceID, entry.Item, len(entry.Indexed.Captures), fin, unit.CallAsync, argNames); uerr != nil {
		return c.errSpan(diagnostics.ErrQ001, span, uerr.Error())
	}
	return nil
}

func (c *Compiler) errSpan(code diagnostics.ErrorCode, span token.Span, args ...interface{}) *diagnostics.DiagnosticError {
	err := diagnostics.NewErrorSpan(code, span, args...)
	name := ""
	if c.source != nil {
		name = c.source.Name
		line, col := c.source.Position(span.Start)
		err.Line = line
		err.Column = col
	}
	return err.WithSource(name, c.sourceID)
}

// lookupMeta resolves a name by walking from the current item outward,
// joining the name at each ancestor. The context wins over user code; the
// nearest enclosing scope wins among user items.
func (c *Compiler) lookupMeta(name items.Item, span token.Span) (*runtime.CompileMeta, *diagnostics.DiagnosticError) {
	if meta := c.context.LookupMeta(name); meta != nil {
		return meta, nil
	}

	base := c.items.Item()
	for {
		current := base.Join(name)
		meta, err := c.query.QueryMeta(current, span)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			return meta, nil
		}
		parent, ok := base.Pop()
		if !ok {
			break
		}
		base = parent
	}

	// Absolute context items (std::...) resolve without the outward walk.
	if meta, err := c.query.QueryMeta(name, span); meta != nil || err != nil {
		return meta, err
	}
	return nil, nil
}

// lookupImplMeta resolves an instance-function target by its exact item,
// memoised when the option is enabled.
func (c *Compiler) lookupImplMeta(name items.Item, span token.Span) (*runtime.CompileMeta, *diagnostics.DiagnosticError) {
	if c.options.MemoizeInstanceFn {
		if meta, ok := c.instanceMetaCache[name.Key()]; ok {
			return meta, nil
		}
	}
	meta := c.context.LookupMeta(name)
	if meta == nil {
		var err *diagnostics.DiagnosticError
		meta, err = c.query.QueryMeta(name, span)
		if err != nil {
			return nil, err
		}
	}
	if c.options.MemoizeInstanceFn {
		c.instanceMetaCache[name.Key()] = meta
	}
	return meta, nil
}

// convertPathToItem resolves a syntactic path against the current item,
// imports, and the impl target for `Self`.
func (c *Compiler) convertPathToItem(path *ast.Path) items.Item {
	if path.Segments[0].Type == token.SELF_TY && !c.implItem.IsEmpty() {
		rest := items.Item{}
		for _, seg := range path.Segments[1:] {
			rest = rest.Child(seg.Lexeme)
		}
		return c.implItem.Join(rest)
	}
	return c.unit.ConvertPath(c.items.Item(), path)
}

// localsPop discards the top count slots.
func (c *Compiler) localsPop(count int, span token.Span) {
	switch count {
	case 0:
	case 1:
		c.asm.Push(inst.Pop{}, span)
	default:
		c.asm.Push(inst.PopN{Count: count}, span)
	}
}

// localsClean preserves the value on top of the stack and discards the
// count slots under it.
func (c *Compiler) localsClean(count int, span token.Span) {
	if count == 0 {
		return
	}
	c.asm.Push(inst.Clean{Count: count}, span)
}

// cleanLastScope pops the scope matching the guard and synthesises the
// cleanup instructions for its slots.
func (c *Compiler) cleanLastScope(span token.Span, guard ScopeGuard, needs Needs) *diagnostics.DiagnosticError {
	scope, err := c.scopes.Pop(guard, span)
	if err != nil {
		return c.errSpan(diagnostics.ErrC015, span, err.Error())
	}
	if needs.Value() {
		c.localsClean(scope.LocalVarCount, span)
	} else {
		c.localsPop(scope.LocalVarCount, span)
	}
	return nil
}

// compileMeta emits the instructions that materialise a resolved meta.
func (c *Compiler) compileMeta(meta *runtime.CompileMeta, span token.Span, needs Needs) *diagnostics.DiagnosticError {
	if needs == NeedsValue {
		switch meta.Kind {
		case runtime.MetaTuple:
			if meta.Tuple.Args == 0 {
				c.asm.PushWithComment(inst.Call{Hash: meta.Tuple.Hash, Args: 0}, span,
					fmt.Sprintf("tuple `%s`", meta.Tuple.Item))
			} else {
				c.asm.PushWithComment(inst.Fn{Hash: meta.Tuple.Hash}, span,
					fmt.Sprintf("tuple `%s`", meta.Tuple.Item))
			}
		case runtime.MetaTupleVariant:
			if meta.Tuple.Args == 0 {
				c.asm.PushWithComment(inst.Call{Hash: meta.Tuple.Hash, Args: 0}, span,
					fmt.Sprintf("tuple variant `%s`", meta.Tuple.Item))
			} else {
				c.asm.PushWithComment(inst.Fn{Hash: meta.Tuple.Hash}, span,
					fmt.Sprintf("tuple variant `%s`", meta.Tuple.Item))
			}
		case runtime.MetaFunction:
			c.asm.PushWithComment(inst.Fn{Hash: hash.Type(meta.Item)}, span,
				fmt.Sprintf("fn `%s`", meta.Item))
		case runtime.MetaConst:
			return c.compileConstValue(meta.ConstValue, span)
		default:
			return c.errSpan(diagnostics.ErrC001, span, meta.Describe())
		}
		return nil
	}

	typeOf, ok := meta.TypeOfHash()
	if !ok {
		return c.errSpan(diagnostics.ErrC002, span, meta.Describe())
	}
	c.asm.Push(inst.Type{Hash: typeOf}, span)
	return nil
}

// compileConstValue emits a compile-time constant as instructions.
func (c *Compiler) compileConstValue(value runtime.Value, span token.Span) *diagnostics.DiagnosticError {
	switch v := value.(type) {
	case *runtime.Unit:
		c.asm.Push(inst.Unit{}, span)
	case *runtime.Bool:
		c.asm.Push(inst.Bool{Value: v.Value}, span)
	case *runtime.Integer:
		c.asm.Push(inst.Integer{Value: v.Value}, span)
	case *runtime.Float:
		c.asm.Push(inst.Float{Value: v.Value}, span)
	case *runtime.ByteValue:
		c.asm.Push(inst.Byte{Value: v.Value}, span)
	case *runtime.CharValue:
		c.asm.Push(inst.Char{Value: v.Value}, span)
	case *runtime.Str:
		slot := c.unit.NewStaticString(v.Value)
		c.asm.Push(inst.String{Slot: slot}, span)
	default:
		return c.errSpan(diagnostics.ErrC001, span, value.Inspect())
	}
	return nil
}

// compileCondition emits the test for a branch condition and returns the
// child scope holding any pattern bindings. The caller pushes the scope for
// the success arm and pops it on both arms. Fall-through means the
// condition failed.
func (c *Compiler) compileCondition(cond *ast.Condition, thenLabel asm.Label) (*Scope, *diagnostics.DiagnosticError) {
	span := cond.Span()

	if cond.Let == nil {
		if err := c.compile(cond.Expr, NeedsValue); err != nil {
			return nil, err
		}
		c.asm.JumpIf(thenLabel, span)
		return c.scopes.Child(span), nil
	}

	let := cond.Let
	falseLabel := c.asm.NewLabel("if_condition_false")

	scope := c.scopes.Child(span)
	if err := c.compile(let.Expr, NeedsValue); err != nil {
		return nil, err
	}

	load := func(a *asm.Assembly) {}
	used, err := c.compilePat(scope, let.Pat, falseLabel, load)
	if err != nil {
		return nil, err
	}
	c.asm.Jump(thenLabel, span)
	if used {
		if lerr := c.asm.Label(falseLabel); lerr != nil {
			return nil, c.errSpan(diagnostics.ErrC015, span, lerr.Error())
		}
	}
	return scope, nil
}
