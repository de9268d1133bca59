package runtime

import (
	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/items"
)

type moduleFn struct {
	item    items.Item
	handler Handler
	meta    *CompileMeta
}

type moduleMacro struct {
	item    items.Item
	handler MacroHandler
}

type moduleType struct {
	meta        *CompileMeta
	check       *inst.TypeCheck
	constructor Handler
}

type moduleInstanceFn struct {
	hash    hash.Hash
	handler Handler
}

// Module is a builder for a named collection of native items installed into
// a Context.
type Module struct {
	item        items.Item
	functions   []moduleFn
	macros      []moduleMacro
	types       []moduleType
	instanceFns []moduleInstanceFn
}

// NewModule creates a module rooted at the given path.
func NewModule(names ...string) *Module {
	return &Module{item: items.NewItem(names...)}
}

// Item returns the module's root item.
func (m *Module) Item() items.Item { return m.item }

// Function registers a native function under the module.
func (m *Module) Function(name string, handler Handler) *Module {
	item := m.item.Child(name)
	m.functions = append(m.functions, moduleFn{
		item:    item,
		handler: handler,
		meta: &CompileMeta{
			Kind:   MetaFunction,
			Item:   item,
			TypeOf: hash.Type(item),
		},
	})
	return m
}

// Macro registers a builtin macro under the module.
func (m *Module) Macro(name string, handler MacroHandler) *Module {
	m.macros = append(m.macros, moduleMacro{item: m.item.Child(name), handler: handler})
	return m
}

// Type registers a primitive type under the module, so `std::int` and
// friends resolve and can be used with Needs::Type.
func (m *Module) Type(name string) *Module {
	item := m.item.Child(name)
	m.types = append(m.types, moduleType{
		meta: &CompileMeta{
			Kind:   MetaStruct,
			Item:   item,
			Object: &MetaObjectInfo{Item: item},
			TypeOf: hash.Type(item),
		},
	})
	return m
}

// EnumBuilder declares the variants of a context enum.
type EnumBuilder struct {
	module *Module
	item   items.Item
}

// Enum registers a sum type under the module and returns a builder for its
// variants.
func (m *Module) Enum(name string) *EnumBuilder {
	item := m.item.Child(name)
	m.types = append(m.types, moduleType{
		meta: &CompileMeta{
			Kind:   MetaEnum,
			Item:   item,
			TypeOf: hash.Type(item),
		},
	})
	return &EnumBuilder{module: m, item: item}
}

// TupleVariant registers a tuple variant with the given arity. Zero-arity
// variants are unit variants.
func (b *EnumBuilder) TupleVariant(name string, args int) *EnumBuilder {
	item := b.item.Child(name)
	variantHash := hash.Type(item)
	enumItem := b.item
	enumHash := hash.Type(enumItem)
	variantName := name

	check := inst.TypeCheckVariant(variantHash)
	b.module.types = append(b.module.types, moduleType{
		meta: &CompileMeta{
			Kind:     MetaTupleVariant,
			Item:     item,
			EnumItem: &enumItem,
			Tuple:    &MetaTupleInfo{Item: item, Hash: variantHash, Args: args},
			TypeOf:   variantHash,
		},
		check: &check,
		constructor: func(argv []Value) (Value, error) {
			return &VariantTuple{
				Hash:     variantHash,
				EnumHash: enumHash,
				Name:     variantName,
				Items:    argv,
			}, nil
		},
	})
	return b
}

// InstanceFunction registers a native instance function on a type hash.
func (m *Module) InstanceFunction(typeOf hash.Hash, name string, handler Handler) *Module {
	m.instanceFns = append(m.instanceFns, moduleInstanceFn{
		hash:    hash.Instance(typeOf, name),
		handler: handler,
	})
	return m
}
