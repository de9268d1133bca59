// Package query implements on-demand resolution of item metadata. Names are
// indexed by the worker; metas are built lazily, memoised by item path, and
// items that need compiling are pushed onto the build-entry FIFO as a side
// effect of their first resolution.
package query

import (
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/token"
	"github.com/funvibe/quill/internal/unit"
)

// IndexedKind discriminates indexed items.
type IndexedKind int

const (
	// IndexedEnum is an enum declaration.
	IndexedEnum IndexedKind = iota
	// IndexedStruct is a struct declaration.
	IndexedStruct
	// IndexedVariant is one variant of an enum.
	IndexedVariant
	// IndexedFn is a free function.
	IndexedFn
	// IndexedInstanceFn is a function inside an impl block.
	IndexedInstanceFn
	// IndexedClosure is a closure inside a function.
	IndexedClosure
	// IndexedAsyncBlock is an async block inside a function.
	IndexedAsyncBlock
	// IndexedConst is a constant declaration.
	IndexedConst
)

// Indexed is one item recorded during indexing, carrying the syntax needed
// to build its meta and, for buildable items, its build entry.
type Indexed struct {
	Kind     IndexedKind
	Item     items.Item
	SourceID int

	// Body is the declared shape for structs and variants.
	Body *ast.StructBody
	// EnumItem is the enclosing enum for variants.
	EnumItem items.Item

	// Fn is the declaration for functions and instance functions.
	Fn *ast.ItemFn
	// ImplPath is the impl target path for instance functions, unresolved.
	ImplPath *ast.Path
	// ImplBase is the item the impl block appeared under.
	ImplBase items.Item

	// Closure and Async carry the syntax for deferred builds.
	Closure *ast.ExprClosure
	Async   *ast.ExprAsync
	// Captures lists the variables a closure or async block captures, in
	// order of first use in its body.
	Captures []string

	// ConstExpr is the initialiser for constants.
	ConstExpr ast.Expr

	queued bool
}

// BuildKind discriminates build entries.
type BuildKind int

const (
	// BuildFunction compiles a free function.
	BuildFunction BuildKind = iota
	// BuildInstanceFunction compiles an impl-block function.
	BuildInstanceFunction
	// BuildClosure compiles a closure.
	BuildClosure
	// BuildAsyncBlock compiles an async block.
	BuildAsyncBlock
)

// BuildEntry is one unit of compilation work, consumed exactly once.
type BuildEntry struct {
	Item     items.Item
	Kind     BuildKind
	SourceID int
	Indexed  *Indexed
}

type constState int

const (
	constUnresolved constState = iota
	constInProgress
	constResolved
)

type constEntry struct {
	state constState
	used  int
	value runtime.Value
}

// Query owns the memoisation maps and the build queue.
type Query struct {
	storage *Storage
	context *runtime.Context
	unit    *unit.Builder

	indexed map[string]*Indexed
	byId    map[items.Id]*Indexed
	memo    map[string]*runtime.CompileMeta
	consts  map[string]*constEntry

	queue []*BuildEntry
}

// New creates a query system over the given collaborators.
func New(storage *Storage, context *runtime.Context, builder *unit.Builder) *Query {
	return &Query{
		storage: storage,
		context: context,
		unit:    builder,
		indexed: make(map[string]*Indexed),
		byId:    make(map[items.Id]*Indexed),
		memo:    make(map[string]*runtime.CompileMeta),
		consts:  make(map[string]*constEntry),
	}
}

// Storage returns the shared storage arena.
func (q *Query) Storage() *Storage { return q.storage }

// Unit returns the unit builder the query registers constructors into.
func (q *Query) Unit() *unit.Builder { return q.unit }

// Context returns the host context.
func (q *Query) Context() *runtime.Context { return q.context }

// Index records an indexed item and inserts its name into the unit.
func (q *Query) Index(entry *Indexed) {
	q.indexed[entry.Item.Key()] = entry
	q.unit.InsertName(entry.Item)
}

// IndexById additionally keys an indexed item by opaque id, which is how
// closures and async blocks are found from their syntax nodes.
func (q *Query) IndexById(id items.Id, entry *Indexed) {
	q.byId[id] = entry
}

// ById returns the indexed entry for an opaque id.
func (q *Query) ById(id items.Id) (*Indexed, bool) {
	entry, ok := q.byId[id]
	return entry, ok
}

// IsIndexed reports whether the exact item was indexed.
func (q *Query) IsIndexed(it items.Item) bool {
	_, ok := q.indexed[it.Key()]
	return ok
}

// PopEntry removes and returns the next build entry, FIFO order.
func (q *Query) PopEntry() (*BuildEntry, bool) {
	if len(q.queue) == 0 {
		return nil, false
	}
	entry := q.queue[0]
	q.queue = q.queue[1:]
	return entry, true
}

// BuiltinMacroFor returns the stored expansion referenced by a syntax id.
func (q *Query) BuiltinMacroFor(id items.Id) (*Expansion, bool) {
	return q.storage.Expansion(id)
}

func (q *Query) enqueue(entry *Indexed, kind BuildKind) {
	if entry.queued {
		return
	}
	entry.queued = true
	q.queue = append(q.queue, &BuildEntry{
		Item:     entry.Item,
		Kind:     kind,
		SourceID: entry.SourceID,
		Indexed:  entry,
	})
}

// QueryMeta resolves the meta for an exact item path. It returns nil with no
// error when the item is unknown; callers walk outward and try again. An
// item already being queried returns its (incomplete) memoised descriptor so
// recursive references resolve.
func (q *Query) QueryMeta(it items.Item, span token.Span) (*runtime.CompileMeta, *diagnostics.DiagnosticError) {
	key := it.Key()
	if meta, ok := q.memo[key]; ok {
		return meta, nil
	}

	entry, ok := q.indexed[key]
	if !ok {
		return nil, nil
	}

	switch entry.Kind {
	case IndexedEnum:
		meta := &runtime.CompileMeta{
			Kind:   runtime.MetaEnum,
			Item:   entry.Item,
			TypeOf: hash.Type(entry.Item),
		}
		q.memo[key] = meta
		return meta, nil

	case IndexedStruct:
		meta, err := q.structMeta(entry, span)
		if err != nil {
			return nil, err
		}
		q.memo[key] = meta
		return meta, nil

	case IndexedVariant:
		meta, err := q.variantMeta(entry, span)
		if err != nil {
			return nil, err
		}
		q.memo[key] = meta
		return meta, nil

	case IndexedFn, IndexedInstanceFn:
		meta := &runtime.CompileMeta{
			Kind:   runtime.MetaFunction,
			Item:   entry.Item,
			TypeOf: hash.Type(entry.Item),
		}
		q.memo[key] = meta
		if entry.Kind == IndexedFn {
			q.enqueue(entry, BuildFunction)
		} else {
			q.enqueue(entry, BuildInstanceFunction)
		}
		return meta, nil

	case IndexedClosure:
		meta := &runtime.CompileMeta{
			Kind:     runtime.MetaClosure,
			Item:     entry.Item,
			TypeOf:   hash.Type(entry.Item),
			Captures: entry.Captures,
		}
		q.memo[key] = meta
		q.enqueue(entry, BuildClosure)
		return meta, nil

	case IndexedAsyncBlock:
		meta := &runtime.CompileMeta{
			Kind:     runtime.MetaAsyncBlock,
			Item:     entry.Item,
			TypeOf:   hash.Type(entry.Item),
			Captures: entry.Captures,
		}
		q.memo[key] = meta
		q.enqueue(entry, BuildAsyncBlock)
		return meta, nil

	case IndexedConst:
		value, err := q.evalConst(entry, span)
		if err != nil {
			return nil, err
		}
		meta := &runtime.CompileMeta{
			Kind:       runtime.MetaConst,
			Item:       entry.Item,
			ConstValue: value,
		}
		q.memo[key] = meta
		return meta, nil
	}

	return nil, nil
}

func (q *Query) structMeta(entry *Indexed, span token.Span) (*runtime.CompileMeta, *diagnostics.DiagnosticError) {
	item := entry.Item
	switch entry.Body.Kind {
	case ast.RecordBody:
		return &runtime.CompileMeta{
			Kind: runtime.MetaStruct,
			Item: item,
			Object: &runtime.MetaObjectInfo{
				Item:   item,
				Fields: entry.Body.FieldNames(),
			},
			TypeOf: hash.Type(item),
		}, nil
	default:
		args := len(entry.Body.Fields)
		if err := q.unit.NewTupleConstructor(item, args); err != nil {
			return nil, diagnostics.NewErrorSpan(diagnostics.ErrQ001, span, item.String())
		}
		return &runtime.CompileMeta{
			Kind: runtime.MetaTuple,
			Item: item,
			Tuple: &runtime.MetaTupleInfo{
				Item: item,
				Hash: hash.Type(item),
				Args: args,
			},
			TypeOf: hash.Type(item),
		}, nil
	}
}

func (q *Query) variantMeta(entry *Indexed, span token.Span) (*runtime.CompileMeta, *diagnostics.DiagnosticError) {
	item := entry.Item
	enumItem := entry.EnumItem
	switch entry.Body.Kind {
	case ast.RecordBody:
		return &runtime.CompileMeta{
			Kind:     runtime.MetaStructVariant,
			Item:     item,
			EnumItem: &enumItem,
			Object: &runtime.MetaObjectInfo{
				Item:   item,
				Fields: entry.Body.FieldNames(),
			},
			TypeOf: hash.Type(item),
		}, nil
	default:
		args := len(entry.Body.Fields)
		if err := q.unit.NewVariantConstructor(item, enumItem, args); err != nil {
			return nil, diagnostics.NewErrorSpan(diagnostics.ErrQ001, span, item.String())
		}
		return &runtime.CompileMeta{
			Kind:     runtime.MetaTupleVariant,
			Item:     item,
			EnumItem: &enumItem,
			Tuple: &runtime.MetaTupleInfo{
				Item: item,
				Hash: hash.Type(item),
				Args: args,
			},
			TypeOf: hash.Type(item),
		}, nil
	}
}
