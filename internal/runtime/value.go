// Package runtime defines the values the virtual machine operates on, the
// host-provided context (native functions, built-in type checks, metas), and
// the module builder used to populate it.
package runtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/items"
)

// Precomputed type hashes for primitive values.
var (
	UnitTypeHash    = hash.Type(items.NewItem("std", "unit"))
	BoolTypeHash    = hash.Type(items.NewItem("std", "bool"))
	IntTypeHash     = hash.Type(items.NewItem("std", "int"))
	FloatTypeHash   = hash.Type(items.NewItem("std", "float"))
	ByteTypeHash    = hash.Type(items.NewItem("std", "byte"))
	CharTypeHash    = hash.Type(items.NewItem("std", "char"))
	StringTypeHash  = hash.Type(items.NewItem("std", "string"))
	VecTypeHash     = hash.Type(items.NewItem("std", "vec"))
	TupleTypeHash   = hash.Type(items.NewItem("std", "tuple"))
	ObjectTypeHash  = hash.Type(items.NewItem("std", "object"))
	FnTypeHash      = hash.Type(items.NewItem("std", "fn"))
	TypeTypeHash    = hash.Type(items.NewItem("std", "type"))
)

// Value is a single runtime value.
type Value interface {
	// TypeHash identifies the value's type for instance dispatch and type
	// descriptors.
	TypeHash() hash.Hash
	// Inspect renders the value for debugging output.
	Inspect() string
}

// Unit is the unit value.
type Unit struct{}

func (*Unit) TypeHash() hash.Hash { return UnitTypeHash }
func (*Unit) Inspect() string     { return "()" }

// Bool is a boolean value.
type Bool struct{ Value bool }

func (*Bool) TypeHash() hash.Hash { return BoolTypeHash }
func (b *Bool) Inspect() string   { return fmt.Sprintf("%v", b.Value) }

// Integer is a 64-bit integer value.
type Integer struct{ Value int64 }

func (*Integer) TypeHash() hash.Hash { return IntTypeHash }
func (i *Integer) Inspect() string   { return fmt.Sprintf("%d", i.Value) }

// Float is a 64-bit floating point value.
type Float struct{ Value float64 }

func (*Float) TypeHash() hash.Hash { return FloatTypeHash }
func (f *Float) Inspect() string   { return fmt.Sprintf("%v", f.Value) }

// ByteValue is a single byte.
type ByteValue struct{ Value byte }

func (*ByteValue) TypeHash() hash.Hash { return ByteTypeHash }
func (b *ByteValue) Inspect() string   { return fmt.Sprintf("b'%c'", b.Value) }

// CharValue is a single character.
type CharValue struct{ Value rune }

func (*CharValue) TypeHash() hash.Hash { return CharTypeHash }
func (c *CharValue) Inspect() string   { return fmt.Sprintf("%q", c.Value) }

// Str is a string value.
type Str struct{ Value string }

func (*Str) TypeHash() hash.Hash { return StringTypeHash }
func (s *Str) Inspect() string   { return fmt.Sprintf("%q", s.Value) }

// VecValue is a vector of values.
type VecValue struct{ Items []Value }

func (*VecValue) TypeHash() hash.Hash { return VecTypeHash }
func (v *VecValue) Inspect() string {
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TupleValue is an anonymous tuple.
type TupleValue struct{ Items []Value }

func (*TupleValue) TypeHash() hash.Hash { return TupleTypeHash }
func (t *TupleValue) Inspect() string {
	parts := make([]string, len(t.Items))
	for i, item := range t.Items {
		parts[i] = item.Inspect()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ObjectValue is an anonymous object.
type ObjectValue struct{ Fields map[string]Value }

func (*ObjectValue) TypeHash() hash.Hash { return ObjectTypeHash }
func (o *ObjectValue) Inspect() string {
	keys := make([]string, 0, len(o.Fields))
	for k := range o.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, o.Fields[k].Inspect())
	}
	return "#{" + strings.Join(parts, ", ") + "}"
}

// TypedObject is a named record value. Hash identifies the declared type.
type TypedObject struct {
	Hash   hash.Hash
	Name   string
	Fields map[string]Value
}

func (t *TypedObject) TypeHash() hash.Hash { return t.Hash }
func (t *TypedObject) Inspect() string {
	inner := (&ObjectValue{Fields: t.Fields}).Inspect()
	return t.Name + " " + strings.TrimPrefix(inner, "#")
}

// TypedTuple is a named tuple value (tuple struct or unit struct).
type TypedTuple struct {
	Hash  hash.Hash
	Name  string
	Items []Value
}

func (t *TypedTuple) TypeHash() hash.Hash { return t.Hash }
func (t *TypedTuple) Inspect() string {
	if len(t.Items) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Items))
	for i, item := range t.Items {
		parts[i] = item.Inspect()
	}
	return t.Name + "(" + strings.Join(parts, ", ") + ")"
}

// VariantTuple is a tuple variant of a sum type. Hash identifies the
// variant itself; EnumHash identifies the enclosing enum.
type VariantTuple struct {
	Hash     hash.Hash
	EnumHash hash.Hash
	Name     string
	Items    []Value
}

func (v *VariantTuple) TypeHash() hash.Hash { return v.EnumHash }
func (v *VariantTuple) Inspect() string {
	if len(v.Items) == 0 {
		return v.Name
	}
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.Inspect()
	}
	return v.Name + "(" + strings.Join(parts, ", ") + ")"
}

// VariantObject is a record variant of a sum type.
type VariantObject struct {
	Hash     hash.Hash
	EnumHash hash.Hash
	Name     string
	Fields   map[string]Value
}

func (v *VariantObject) TypeHash() hash.Hash { return v.EnumHash }
func (v *VariantObject) Inspect() string {
	inner := (&ObjectValue{Fields: v.Fields}).Inspect()
	return v.Name + " " + strings.TrimPrefix(inner, "#")
}

// FunctionValue is a first-class function identified by hash.
type FunctionValue struct {
	Hash hash.Hash
	Name string
}

func (*FunctionValue) TypeHash() hash.Hash { return FnTypeHash }
func (f *FunctionValue) Inspect() string   { return fmt.Sprintf("fn(%s)", f.Name) }

// ClosureValue is a function plus its captured environment.
type ClosureValue struct {
	Hash        hash.Hash
	Name        string
	Environment []Value
}

func (*ClosureValue) TypeHash() hash.Hash { return FnTypeHash }
func (c *ClosureValue) Inspect() string   { return fmt.Sprintf("closure(%s)", c.Name) }

// TypeValue is a first-class type descriptor.
type TypeValue struct {
	Hash hash.Hash
	Name string
}

func (*TypeValue) TypeHash() hash.Hash { return TypeTypeHash }
func (t *TypeValue) Inspect() string   { return fmt.Sprintf("type(%s)", t.Name) }

// ValueEq is structural equality as used by the Eq family of instructions.
func ValueEq(a, b Value) bool {
	switch av := a.(type) {
	case *Unit:
		_, ok := b.(*Unit)
		return ok
	case *Bool:
		bv, ok := b.(*Bool)
		return ok && av.Value == bv.Value
	case *Integer:
		bv, ok := b.(*Integer)
		return ok && av.Value == bv.Value
	case *Float:
		bv, ok := b.(*Float)
		return ok && av.Value == bv.Value
	case *ByteValue:
		bv, ok := b.(*ByteValue)
		return ok && av.Value == bv.Value
	case *CharValue:
		bv, ok := b.(*CharValue)
		return ok && av.Value == bv.Value
	case *Str:
		bv, ok := b.(*Str)
		return ok && av.Value == bv.Value
	case *VecValue:
		bv, ok := b.(*VecValue)
		return ok && sliceEq(av.Items, bv.Items)
	case *TupleValue:
		bv, ok := b.(*TupleValue)
		return ok && sliceEq(av.Items, bv.Items)
	case *TypedTuple:
		bv, ok := b.(*TypedTuple)
		return ok && av.Hash == bv.Hash && sliceEq(av.Items, bv.Items)
	case *VariantTuple:
		bv, ok := b.(*VariantTuple)
		return ok && av.Hash == bv.Hash && sliceEq(av.Items, bv.Items)
	case *ObjectValue:
		bv, ok := b.(*ObjectValue)
		return ok && mapEq(av.Fields, bv.Fields)
	case *TypedObject:
		bv, ok := b.(*TypedObject)
		return ok && av.Hash == bv.Hash && mapEq(av.Fields, bv.Fields)
	case *VariantObject:
		bv, ok := b.(*VariantObject)
		return ok && av.Hash == bv.Hash && mapEq(av.Fields, bv.Fields)
	}
	return false
}

func sliceEq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValueEq(a[i], b[i]) {
			return false
		}
	}
	return true
}

func mapEq(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !ValueEq(v, ov) {
			return false
		}
	}
	return true
}

// Truthy reports whether a value is boolean true. Everything else is an
// error at the call site; the VM enforces that.
func Truthy(v Value) (bool, bool) {
	b, ok := v.(*Bool)
	if !ok {
		return false, false
	}
	return b.Value, true
}
