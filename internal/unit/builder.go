package unit

import (
	"fmt"

	"github.com/funvibe/quill/internal/asm"
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/token"

	"github.com/google/uuid"
)

// ImportEntry is one resolved import: the alias item under which a name is
// visible, and the target it refers to. A nil span marks a prelude import.
type ImportEntry struct {
	Alias    items.Item
	Target   items.Item
	Span     *token.Span
	SourceID int
}

// Builder collects everything emitted during a compilation run and produces
// the final Unit. Only the active compile entry mutates it.
type Builder struct {
	functions map[hash.Hash]*Fn

	staticStrings []string
	stringSlots   map[string]int

	objectKeys [][]string
	keySlots   map[string]int

	imports map[string]*ImportEntry
	names   *items.Names

	sources []SourceInfo

	debug bool
}

// NewBuilder creates an empty unit builder.
func NewBuilder() *Builder {
	return &Builder{
		functions:   make(map[hash.Hash]*Fn),
		stringSlots: make(map[string]int),
		keySlots:    make(map[string]int),
		imports:     make(map[string]*ImportEntry),
		names:       items.NewNames(),
	}
}

// WithDefaultPrelude creates a builder preloaded with the standard prelude
// imports, so bare names such as `print` and `Some` resolve.
func WithDefaultPrelude() *Builder {
	b := NewBuilder()
	prelude := map[string]items.Item{
		"print":   items.NewItem("std", "print"),
		"println": items.NewItem("std", "println"),
		"panic":   items.NewItem("std", "panic"),
		"dbg":     items.NewItem("std", "dbg"),
		"unit":    items.NewItem("std", "unit"),
		"bool":    items.NewItem("std", "bool"),
		"int":     items.NewItem("std", "int"),
		"float":   items.NewItem("std", "float"),
		"byte":    items.NewItem("std", "byte"),
		"char":    items.NewItem("std", "char"),
		"String":  items.NewItem("std", "string"),
		"Vec":     items.NewItem("std", "vec"),
		"Option":  items.NewItem("std", "option", "Option"),
		"Some":    items.NewItem("std", "option", "Option", "Some"),
		"None":    items.NewItem("std", "option", "Option", "None"),
		"Result":  items.NewItem("std", "result", "Result"),
		"Ok":      items.NewItem("std", "result", "Result", "Ok"),
		"Err":     items.NewItem("std", "result", "Result", "Err"),
	}
	for name, target := range prelude {
		b.imports[items.NewItem(name).Key()] = &ImportEntry{
			Alias:  items.NewItem(name),
			Target: target,
		}
	}
	return b
}

// SetDebug controls whether built functions retain spans and comments.
func (b *Builder) SetDebug(debug bool) {
	b.debug = debug
}

// AddSource records one entry of the source-id side table. Sources must be
// added in id order.
func (b *Builder) AddSource(name string) {
	b.sources = append(b.sources, SourceInfo{Name: name})
}

// NewAssembly creates an assembly associated with a source.
func (b *Builder) NewAssembly(sourceID int) *asm.Assembly {
	return asm.New(sourceID)
}

// InsertName records an item path as known to the unit.
func (b *Builder) InsertName(it items.Item) {
	b.names.Insert(it)
}

// ContainsPrefix reports whether the unit knows any name starting with the
// item.
func (b *Builder) ContainsPrefix(it items.Item) bool {
	return b.names.ContainsPrefix(it)
}

// IterComponents enumerates known components directly under the item.
func (b *Builder) IterComponents(it items.Item) []items.Component {
	return b.names.IterComponents(it)
}

// NewStaticString interns a string and returns its pool slot.
func (b *Builder) NewStaticString(s string) int {
	if slot, ok := b.stringSlots[s]; ok {
		return slot
	}
	slot := len(b.staticStrings)
	b.staticStrings = append(b.staticStrings, s)
	b.stringSlots[s] = slot
	return slot
}

// NewStaticObjectKeys interns an ordered key set and returns its slot.
func (b *Builder) NewStaticObjectKeys(keys []string) int {
	joined := ""
	for _, k := range keys {
		joined += fmt.Sprintf("%d:%s", len(k), k)
	}
	if slot, ok := b.keySlots[joined]; ok {
		return slot
	}
	slot := len(b.objectKeys)
	b.objectKeys = append(b.objectKeys, append([]string(nil), keys...))
	b.keySlots[joined] = slot
	return slot
}

// NewImport records that Alias refers to Target.
func (b *Builder) NewImport(alias, target items.Item, span *token.Span, sourceID int) {
	b.imports[alias.Key()] = &ImportEntry{
		Alias:    alias,
		Target:   target,
		Span:     span,
		SourceID: sourceID,
	}
}

// LookupImport resolves an alias item to its target.
func (b *Builder) LookupImport(alias items.Item) (items.Item, bool) {
	entry, ok := b.imports[alias.Key()]
	if !ok {
		return items.Item{}, false
	}
	return entry.Target, true
}

// IterImports returns all recorded imports, prelude entries included.
func (b *Builder) IterImports() []*ImportEntry {
	out := make([]*ImportEntry, 0, len(b.imports))
	for _, entry := range b.imports {
		out = append(out, entry)
	}
	return out
}

// ConvertPath resolves a syntactic path against the base item and the
// import table. `crate` roots the path; `self` anchors it at the base; a
// plain leading identifier first consults imports visible from the base
// outward, and otherwise stays a relative name for the outward meta walk.
func (b *Builder) ConvertPath(base items.Item, path *ast.Path) items.Item {
	segments := path.Segments
	first := segments[0]

	rest := items.Item{}
	for _, seg := range segments[1:] {
		rest = rest.Child(seg.Lexeme)
	}

	switch first.Type {
	case token.CRATE:
		return rest
	case token.SELF:
		return base.Join(rest)
	}

	// Walk outward from the base looking for a visible import of the first
	// segment; the nearest enclosing module wins.
	probe := base
	for {
		alias := probe.Child(first.Lexeme)
		if target, ok := b.LookupImport(alias); ok {
			return target.Join(rest)
		}
		parent, ok := probe.Pop()
		if !ok {
			break
		}
		probe = parent
	}

	// The root-level prelude imports are keyed by bare name.
	if target, ok := b.LookupImport(items.NewItem(first.Lexeme)); ok {
		return target.Join(rest)
	}

	return items.NewItem(first.Lexeme).Join(rest)
}

// NewFunction registers a compiled function.
func (b *Builder) NewFunction(sourceID int, item items.Item, args int, fin *asm.Finalised, call CallConvention, argNames []string) error {
	h := hash.Type(item)
	if _, ok := b.functions[h]; ok {
		return fmt.Errorf("conflicting function `%s`", item)
	}
	fn := &Fn{
		Kind:     FnBlock,
		Hash:     h,
		Item:     item.String(),
		Args:     args,
		ArgNames: argNames,
		Call:     call,
		Insts:    fin.Insts,
		SourceID: sourceID,
	}
	if b.debug {
		fn.Spans = fin.Spans
		fn.Comments = fin.Comments
	}
	b.functions[h] = fn
	b.names.Insert(item)
	return nil
}

// NewInstanceFunction registers a compiled instance function both under its
// item path and under the (type, name) instance hash.
func (b *Builder) NewInstanceFunction(sourceID int, item items.Item, typeOf hash.Hash, name string, args int, fin *asm.Finalised, call CallConvention, argNames []string) error {
	h := hash.Instance(typeOf, name)
	if _, ok := b.functions[h]; ok {
		return fmt.Errorf("conflicting instance function `%s`", item)
	}
	fn := &Fn{
		Kind:     FnBlock,
		Hash:     h,
		Item:     item.String(),
		Args:     args,
		ArgNames: argNames,
		Call:     call,
		Insts:    fin.Insts,
		SourceID: sourceID,
	}
	if b.debug {
		fn.Spans = fin.Spans
		fn.Comments = fin.Comments
	}
	b.functions[h] = fn
	b.functions[hash.Type(item)] = fn
	b.names.Insert(item)
	return nil
}

// NewTupleConstructor registers the synthesised constructor for a tuple or
// unit struct.
func (b *Builder) NewTupleConstructor(item items.Item, args int) error {
	h := hash.Type(item)
	if _, ok := b.functions[h]; ok {
		return fmt.Errorf("conflicting constructor `%s`", item)
	}
	b.functions[h] = &Fn{
		Kind:   FnTuple,
		Hash:   h,
		Item:   item.String(),
		Args:   args,
		TypeOf: h,
	}
	return nil
}

// NewVariantConstructor registers the synthesised constructor for a tuple
// variant of an enum.
func (b *Builder) NewVariantConstructor(item, enumItem items.Item, args int) error {
	h := hash.Type(item)
	if _, ok := b.functions[h]; ok {
		return fmt.Errorf("conflicting constructor `%s`", item)
	}
	b.functions[h] = &Fn{
		Kind:     FnTupleVariant,
		Hash:     h,
		Item:     item.String(),
		Args:     args,
		TypeOf:   h,
		EnumHash: hash.Type(enumItem),
	}
	return nil
}

// Build produces the final unit, stamping a fresh build id.
func (b *Builder) Build() (*Unit, error) {
	imports := make(map[string]string, len(b.imports))
	for _, entry := range b.imports {
		imports[entry.Alias.Key()] = entry.Target.Key()
	}
	return &Unit{
		BuildID:          uuid.NewString(),
		Functions:        b.functions,
		StaticStrings:    b.staticStrings,
		StaticObjectKeys: b.objectKeys,
		Sources:          b.sources,
		Imports:          imports,
		DebugInfo:        b.debug,
	}, nil
}
