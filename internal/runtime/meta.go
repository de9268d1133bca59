package runtime

import (
	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/items"
)

// MetaKind discriminates resolved item descriptions.
type MetaKind int

const (
	// MetaTuple is a free tuple constructor (tuple or unit struct).
	MetaTuple MetaKind = iota
	// MetaTupleVariant is a tuple variant of a sum type.
	MetaTupleVariant
	// MetaStruct is a record with an optional known field set.
	MetaStruct
	// MetaStructVariant is a record variant of a sum type.
	MetaStructVariant
	// MetaFunction is a callable function.
	MetaFunction
	// MetaClosure is a closure awaiting compilation.
	MetaClosure
	// MetaAsyncBlock is an async block awaiting compilation.
	MetaAsyncBlock
	// MetaConst is an evaluated constant.
	MetaConst
	// MetaEnum is the enum item itself.
	MetaEnum
)

// MetaTupleInfo describes a tuple constructor.
type MetaTupleInfo struct {
	Item items.Item
	Hash hash.Hash
	Args int
}

// MetaObjectInfo describes a record shape. A nil Fields slice means the
// field set is unknown (external meta).
type MetaObjectInfo struct {
	Item   items.Item
	Fields []string
}

// HasField reports whether the field set is known to contain name.
func (o *MetaObjectInfo) HasField(name string) bool {
	for _, f := range o.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// CompileMeta is the resolved description of an item, used at compile time
// to emit call sites, constructors, and pattern checks.
type CompileMeta struct {
	Kind MetaKind
	// Item is the meta's own fully qualified item.
	Item items.Item
	// EnumItem is the enclosing enum for variant metas.
	EnumItem *items.Item
	// Tuple is set for MetaTuple and MetaTupleVariant.
	Tuple *MetaTupleInfo
	// Object is set for MetaStruct and MetaStructVariant.
	Object *MetaObjectInfo
	// TypeOf identifies the meta's type. Present for any meta that can
	// appear in a match position; hash.Empty when absent.
	TypeOf hash.Hash
	// ConstValue is set for MetaConst.
	ConstValue Value
	// Captures lists captured variable names for closures and async blocks.
	Captures []string
}

// TypeOfHash returns the meta's type hash, if it has one.
func (m *CompileMeta) TypeOfHash() (hash.Hash, bool) {
	if m.TypeOf == hash.Empty {
		return hash.Empty, false
	}
	return m.TypeOf, true
}

// Describe renders a short human-readable description for diagnostics.
func (m *CompileMeta) Describe() string {
	return m.Item.String()
}
