package worker

import (
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/parser"
	"github.com/funvibe/quill/internal/query"
	"github.com/funvibe/quill/internal/token"
)

func parseSource(content string) (*ast.File, []*diagnostics.DiagnosticError) {
	p := parser.New(content)
	return p.ParseFile()
}

// indexLayer is one lexical layer of the indexing scope stack. Function and
// closure roots are boundaries: a name resolved across one is a capture.
type indexLayer struct {
	boundary bool
	names    map[string]bool
	// entry is the closure or async block whose captures this boundary
	// collects, nil for plain function roots.
	entry *query.Indexed
}

// indexer walks one parsed file, assigning item paths, collecting captures,
// and expanding macros exactly once per item path.
type indexer struct {
	worker   *Worker
	sourceID int
	fileName string
	items    *items.Items
	layers   []*indexLayer
}

func (x *indexer) pushLayer(boundary bool, entry *query.Indexed) {
	x.layers = append(x.layers, &indexLayer{
		boundary: boundary,
		names:    make(map[string]bool),
		entry:    entry,
	})
}

func (x *indexer) popLayer() {
	x.layers = x.layers[:len(x.layers)-1]
}

func (x *indexer) declare(name string) {
	if len(x.layers) == 0 {
		return
	}
	x.layers[len(x.layers)-1].names[name] = true
}

// use resolves a name against the scope stack. Crossing a closure boundary
// on the way to the defining layer records a capture on every closure
// crossed.
func (x *indexer) use(name string) {
	var crossed []*query.Indexed
	for i := len(x.layers) - 1; i >= 0; i-- {
		layer := x.layers[i]
		if layer.names[name] {
			for _, entry := range crossed {
				addCapture(entry, name)
			}
			return
		}
		if layer.boundary {
			if layer.entry != nil {
				crossed = append(crossed, layer.entry)
			} else {
				// A plain function boundary: names outside it are items,
				// not locals.
				return
			}
		}
	}
}

func addCapture(entry *query.Indexed, name string) {
	for _, c := range entry.Captures {
		if c == name {
			return
		}
	}
	entry.Captures = append(entry.Captures, name)
}

func (x *indexer) errorAt(code diagnostics.ErrorCode, tok token.Token, args ...interface{}) *diagnostics.DiagnosticError {
	return diagnostics.NewError(code, tok, args...).WithSource(x.fileName, x.sourceID)
}

// file indexes all items of a parsed file at the current item path. Impl
// blocks are held to a second pass so their targets resolve regardless of
// declaration order.
func (x *indexer) file(f *ast.File) *diagnostics.DiagnosticError {
	return x.fileItems(f.Items)
}

func (x *indexer) fileItems(list []ast.Item) *diagnostics.DiagnosticError {
	var impls []*ast.ItemImpl
	var fns []*ast.ItemFn

	for _, item := range list {
		switch it := item.(type) {
		case *ast.ItemImpl:
			impls = append(impls, it)
		case *ast.ItemFn:
			if err := x.indexFnDecl(it); err != nil {
				return err
			}
			fns = append(fns, it)
		default:
			if err := x.item(item); err != nil {
				return err
			}
		}
	}

	// Function bodies walk after every sibling name is known.
	for _, fn := range fns {
		if err := x.fnBody(fn); err != nil {
			return err
		}
	}
	for _, impl := range impls {
		if err := x.itemImpl(impl); err != nil {
			return err
		}
	}
	return nil
}

// indexFnDecl records a free function and forces its meta, which pushes the
// build entry.
func (x *indexer) indexFnDecl(fn *ast.ItemFn) *diagnostics.DiagnosticError {
	guard := x.items.PushName(fn.Name.Lexeme)
	item := x.items.Item()
	x.items.Pop(guard)

	entry := &query.Indexed{
		Kind:     query.IndexedFn,
		Item:     item,
		SourceID: x.sourceID,
		Fn:       fn,
	}
	x.worker.query.Index(entry)
	if _, err := x.worker.query.QueryMeta(item, fn.Name.Span); err != nil {
		return err.WithSource(x.fileName, x.sourceID)
	}
	return nil
}

func (x *indexer) fnBody(fn *ast.ItemFn) *diagnostics.DiagnosticError {
	guard := x.items.PushName(fn.Name.Lexeme)
	defer x.items.Pop(guard)

	x.pushLayer(true, nil)
	defer x.popLayer()
	for _, arg := range fn.Args {
		if !arg.IsIgnore() {
			x.declare(arg.Name())
		}
	}
	return x.block(fn.Body)
}

func (x *indexer) item(item ast.Item) *diagnostics.DiagnosticError {
	switch it := item.(type) {
	case *ast.ItemStruct:
		guard := x.items.PushName(it.Name.Lexeme)
		structItem := x.items.Item()
		x.items.Pop(guard)
		x.worker.query.Index(&query.Indexed{
			Kind:     query.IndexedStruct,
			Item:     structItem,
			SourceID: x.sourceID,
			Body:     it.Body,
		})
		return nil

	case *ast.ItemEnum:
		guard := x.items.PushName(it.Name.Lexeme)
		enumItem := x.items.Item()
		x.worker.query.Index(&query.Indexed{
			Kind:     query.IndexedEnum,
			Item:     enumItem,
			SourceID: x.sourceID,
		})
		for _, variant := range it.Variants {
			vguard := x.items.PushName(variant.Name.Lexeme)
			variantItem := x.items.Item()
			x.items.Pop(vguard)
			x.worker.query.Index(&query.Indexed{
				Kind:     query.IndexedVariant,
				Item:     variantItem,
				SourceID: x.sourceID,
				Body:     variant.Body,
				EnumItem: enumItem,
			})
		}
		x.items.Pop(guard)
		return nil

	case *ast.ItemConst:
		guard := x.items.PushName(it.Name.Lexeme)
		constItem := x.items.Item()
		x.items.Pop(guard)
		x.worker.query.Index(&query.Indexed{
			Kind:      query.IndexedConst,
			Item:      constItem,
			SourceID:  x.sourceID,
			ConstExpr: it.Expr,
		})
		return nil

	case *ast.ItemUse:
		at := x.items.Item()
		if it.Path.Star != nil {
			x.worker.queue = append(x.worker.queue, &Task{Wildcard: &WildcardImport{
				At:       at,
				Path:     it.Path.Path,
				Span:     it.Path.Span(),
				SourceID: x.sourceID,
			}})
			return nil
		}
		x.worker.queue = append(x.worker.queue, &Task{Import: &Import{
			At:       at,
			Path:     it.Path,
			SourceID: x.sourceID,
		}})
		return nil

	case *ast.ItemMod:
		if it.Body != nil {
			guard := x.items.PushName(it.Name.Lexeme)
			err := x.fileItems(it.Body.Items)
			x.items.Pop(guard)
			return err
		}
		modItem := x.items.Item().Child(it.Name.Lexeme)
		if x.worker.loaded[modItem.Key()] {
			return nil
		}
		x.worker.loaded[modItem.Key()] = true
		id, ok := x.worker.findModuleSource(x.fileName, it.Name.Lexeme)
		if !ok {
			return x.errorAt(diagnostics.ErrC009, it.Name, modItem.String())
		}
		x.worker.QueueLoad(LoadModule, id, modItem)
		return nil

	case *ast.MacroCall:
		return x.itemMacroCall(it)

	case *ast.ItemFn:
		// Nested function declared inside a block.
		if err := x.indexFnDecl(it); err != nil {
			return err
		}
		return x.fnBody(it)

	case *ast.ItemImpl:
		return x.itemImpl(it)
	}
	return nil
}

// resolveImplTarget resolves the path of an impl block to an indexed or
// context item, preferring the nearest enclosing scope.
func (x *indexer) resolveImplTarget(base items.Item, path *ast.Path) items.Item {
	name := x.worker.unit.ConvertPath(base, path)

	probe := base
	for {
		candidate := probe.Join(name)
		if x.worker.query.IsIndexed(candidate) || x.worker.context.LookupMeta(candidate) != nil {
			return candidate
		}
		parent, ok := probe.Pop()
		if !ok {
			break
		}
		probe = parent
	}
	return base.Join(name)
}

func (x *indexer) itemImpl(impl *ast.ItemImpl) *diagnostics.DiagnosticError {
	base := x.items.Item()
	target := x.resolveImplTarget(base, impl.Path)

	for _, fn := range impl.Functions {
		fnItem := target.Child(fn.Name.Lexeme)
		entry := &query.Indexed{
			Kind:     query.IndexedInstanceFn,
			Item:     fnItem,
			SourceID: x.sourceID,
			Fn:       fn,
			ImplPath: impl.Path,
			ImplBase: base,
		}
		x.worker.query.Index(entry)
		if _, err := x.worker.query.QueryMeta(fnItem, fn.Name.Span); err != nil {
			return err.WithSource(x.fileName, x.sourceID)
		}

		// Body walk under the impl target's path, so nested declarations
		// and closures number the same way the compiler will see them.
		var guards []items.Guard
		if target.HasPrefix(base) {
			for _, component := range target.Components()[base.Len():] {
				guards = append(guards, x.items.PushName(component.String()))
			}
		}
		guards = append(guards, x.items.PushName(fn.Name.Lexeme))

		x.pushLayer(true, nil)
		for _, arg := range fn.Args {
			if !arg.IsIgnore() {
				x.declare(arg.Name())
			}
		}
		err := x.block(fn.Body)
		x.popLayer()
		for i := len(guards) - 1; i >= 0; i-- {
			x.items.Pop(guards[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// itemMacroCall expands an item-position macro exactly once per item path
// and indexes the expanded items in place.
func (x *indexer) itemMacroCall(call *ast.MacroCall) *diagnostics.DiagnosticError {
	guard := x.items.PushMacro()
	expansionKey := x.items.Item().Key()
	x.items.Pop(guard)

	if id, ok := x.worker.expanded[expansionKey]; ok {
		call.Id = id
		return nil
	}

	macroItem := x.worker.unit.ConvertPath(x.items.Item(), call.Path)
	handler, ok := x.worker.context.LookupMacro(macroItem)
	if !ok {
		return x.errorAt(diagnostics.ErrC014, call.Path.First(), macroItem.String())
	}

	out, err := handler(call.Args)
	if err != nil {
		return x.errorAt(diagnostics.ErrC014, call.Path.First(), err.Error())
	}

	p := parser.FromStream(out)
	file, errs := p.ParseFile()
	if len(errs) > 0 {
		return errs[0].WithSource(x.fileName, x.sourceID)
	}

	id := x.worker.query.Storage().InsertExpansion(&query.Expansion{
		Kind: query.ExpandFile,
		File: file,
	})
	call.Id = id
	x.worker.expanded[expansionKey] = id

	return x.fileItems(file.Items)
}

// exprMacroCall expands an expression-position macro, stores the expansion
// under the node's id, and walks the result for captures.
func (x *indexer) exprMacroCall(call *ast.MacroCall) *diagnostics.DiagnosticError {
	macroItem := x.worker.unit.ConvertPath(x.items.Item(), call.Path)
	handler, ok := x.worker.context.LookupMacro(macroItem)
	if !ok {
		return x.errorAt(diagnostics.ErrC014, call.Path.First(), macroItem.String())
	}

	out, err := handler(call.Args)
	if err != nil {
		return x.errorAt(diagnostics.ErrC014, call.Path.First(), err.Error())
	}

	p := parser.FromStream(out)
	expr, errs := p.ParseExpr()
	if len(errs) > 0 {
		return errs[0].WithSource(x.fileName, x.sourceID)
	}

	call.Id = x.worker.query.Storage().InsertExpansion(&query.Expansion{
		Kind: query.ExpandExpr,
		Expr: expr,
	})
	return x.expr(expr)
}

func (x *indexer) block(b *ast.Block) *diagnostics.DiagnosticError {
	guard := x.items.PushBlock()
	defer x.items.Pop(guard)

	x.pushLayer(false, nil)
	defer x.popLayer()

	for _, stmt := range b.Stmts {
		switch s := stmt.(type) {
		case *ast.StmtItem:
			if err := x.item(s.Item); err != nil {
				return err
			}
		case *ast.StmtExpr:
			if err := x.expr(s.Expr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *indexer) condition(c *ast.Condition) *diagnostics.DiagnosticError {
	if c.Let != nil {
		if err := x.expr(c.Let.Expr); err != nil {
			return err
		}
		x.pat(c.Let.Pat)
		return nil
	}
	return x.expr(c.Expr)
}

func (x *indexer) expr(expr ast.Expr) *diagnostics.DiagnosticError {
	switch e := expr.(type) {
	case *ast.Path:
		if ident, ok := e.AsIdent(); ok {
			x.use(ident.Lexeme)
		}
		return nil

	case *ast.ExprGroup:
		return x.expr(e.Expr)

	case *ast.ExprUnary:
		return x.expr(e.Expr)

	case *ast.ExprBinary:
		if err := x.expr(e.Lhs); err != nil {
			return err
		}
		return x.expr(e.Rhs)

	case *ast.ExprAssign:
		if err := x.expr(e.Lhs); err != nil {
			return err
		}
		return x.expr(e.Rhs)

	case *ast.ExprLet:
		if err := x.expr(e.Expr); err != nil {
			return err
		}
		x.pat(e.Pat)
		return nil

	case *ast.LitVec:
		for _, item := range e.Items {
			if err := x.expr(item); err != nil {
				return err
			}
		}
		return nil

	case *ast.LitTuple:
		for _, item := range e.Items {
			if err := x.expr(item); err != nil {
				return err
			}
		}
		return nil

	case *ast.LitObject:
		for _, field := range e.Fields {
			if field.Expr != nil {
				if err := x.expr(field.Expr); err != nil {
					return err
				}
			} else {
				x.use(field.Key.Lexeme)
			}
		}
		return nil

	case *ast.ExprIf:
		if err := x.condition(e.Condition); err != nil {
			return err
		}
		if err := x.block(e.Then); err != nil {
			return err
		}
		for _, ei := range e.ElseIfs {
			if err := x.condition(ei.Condition); err != nil {
				return err
			}
			if err := x.block(ei.Block); err != nil {
				return err
			}
		}
		if e.Else != nil {
			return x.block(e.Else)
		}
		return nil

	case *ast.ExprMatch:
		if err := x.expr(e.Expr); err != nil {
			return err
		}
		for _, arm := range e.Arms {
			x.pushLayer(false, nil)
			x.pat(arm.Pat)
			if arm.Guard != nil {
				if err := x.expr(arm.Guard); err != nil {
					x.popLayer()
					return err
				}
			}
			err := x.expr(arm.Body)
			x.popLayer()
			if err != nil {
				return err
			}
		}
		return nil

	case *ast.ExprWhile:
		if err := x.condition(e.Condition); err != nil {
			return err
		}
		return x.block(e.Body)

	case *ast.ExprLoop:
		return x.block(e.Body)

	case *ast.ExprBreak:
		if e.Expr != nil {
			return x.expr(e.Expr)
		}
		return nil

	case *ast.ExprReturn:
		if e.Expr != nil {
			return x.expr(e.Expr)
		}
		return nil

	case *ast.ExprCall:
		if err := x.expr(e.Fn); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := x.expr(arg); err != nil {
				return err
			}
		}
		return nil

	case *ast.ExprFieldAccess:
		return x.expr(e.Expr)

	case *ast.ExprBlock:
		return x.block(e.Block)

	case *ast.ExprClosure:
		guard := x.items.PushClosure()
		entry := &query.Indexed{
			Kind:     query.IndexedClosure,
			Item:     x.items.Item(),
			SourceID: x.sourceID,
			Closure:  e,
		}
		e.Id = x.worker.query.Storage().NextId()
		x.worker.query.Index(entry)
		x.worker.query.IndexById(e.Id, entry)

		x.pushLayer(true, entry)
		for _, arg := range e.Args {
			if !arg.IsIgnore() {
				x.declare(arg.Name())
			}
		}
		err := x.expr(e.Body)
		x.popLayer()
		x.items.Pop(guard)
		return err

	case *ast.ExprAsync:
		guard := x.items.PushAsyncBlock()
		entry := &query.Indexed{
			Kind:     query.IndexedAsyncBlock,
			Item:     x.items.Item(),
			SourceID: x.sourceID,
			Async:    e,
		}
		e.Id = x.worker.query.Storage().NextId()
		x.worker.query.Index(entry)
		x.worker.query.IndexById(e.Id, entry)

		x.pushLayer(true, entry)
		err := x.block(e.Block)
		x.popLayer()
		x.items.Pop(guard)
		return err

	case *ast.MacroCall:
		return x.exprMacroCall(e)
	}

	return nil
}

// pat declares the names a pattern binds into the current layer.
func (x *indexer) pat(pat ast.Pat) {
	switch p := pat.(type) {
	case *ast.PatPath:
		if ident, ok := p.Path.AsIdent(); ok {
			x.declare(ident.Lexeme)
		}
	case *ast.PatVec:
		for _, item := range p.Items {
			x.pat(item)
		}
	case *ast.PatTuple:
		for _, item := range p.Items {
			x.pat(item)
		}
	case *ast.PatObject:
		for _, field := range p.Fields {
			if field.Pat != nil {
				x.pat(field.Pat)
			} else {
				x.declare(field.Key.Lexeme)
			}
		}
	}
}
