// Package inst defines the instruction vocabulary shared by the compiler and
// the virtual machine, plus the type checks used during pattern matching.
package inst

import (
	"fmt"

	"github.com/funvibe/quill/internal/hash"
)

// TypeCheckKind discriminates shape checks.
type TypeCheckKind int

const (
	// CheckUnit tests for the unit value.
	CheckUnit TypeCheckKind = iota
	// CheckVec tests for a vector.
	CheckVec
	// CheckTuple tests for an anonymous tuple.
	CheckTuple
	// CheckObject tests for an anonymous object.
	CheckObject
	// CheckType tests for a typed value with a specific hash.
	CheckType
	// CheckVariant tests for a variant value with a specific hash.
	CheckVariant
)

// TypeCheck is the discriminant used by the VM to test the shape of a value
// during pattern matching.
type TypeCheck struct {
	Kind TypeCheckKind
	Hash hash.Hash
}

// TypeCheckVec is the vector shape check.
var TypeCheckVec = TypeCheck{Kind: CheckVec}

// TypeCheckTuple is the anonymous tuple shape check.
var TypeCheckTuple = TypeCheck{Kind: CheckTuple}

// TypeCheckObject is the anonymous object shape check.
var TypeCheckObject = TypeCheck{Kind: CheckObject}

// TypeCheckType builds a typed shape check.
func TypeCheckType(h hash.Hash) TypeCheck {
	return TypeCheck{Kind: CheckType, Hash: h}
}

// TypeCheckVariant builds a variant shape check.
func TypeCheckVariant(h hash.Hash) TypeCheck {
	return TypeCheck{Kind: CheckVariant, Hash: h}
}

func (t TypeCheck) String() string {
	switch t.Kind {
	case CheckUnit:
		return "unit"
	case CheckVec:
		return "vec"
	case CheckTuple:
		return "tuple"
	case CheckObject:
		return "object"
	case CheckType:
		return fmt.Sprintf("type(%#x)", uint64(t.Hash))
	case CheckVariant:
		return fmt.Sprintf("variant(%#x)", uint64(t.Hash))
	}
	return "?"
}

// Inst is a single VM instruction. The set is closed; the VM dispatches on
// the concrete type.
type Inst interface {
	isInst()
	String() string
}

// Constant loads.

// Unit pushes the unit value.
type Unit struct{}

// Bool pushes a boolean.
type Bool struct{ Value bool }

// Integer pushes an integer.
type Integer struct{ Value int64 }

// Float pushes a float.
type Float struct{ Value float64 }

// Byte pushes a byte.
type Byte struct{ Value byte }

// Char pushes a character.
type Char struct{ Value rune }

// String pushes a string from the unit's static string pool.
type String struct{ Slot int }

// Constructors.

// Vec pops Count values and pushes a vector.
type Vec struct{ Count int }

// Tuple pops Count values and pushes an anonymous tuple.
type Tuple struct{ Count int }

// Object pops one value per key in the static key set at Slot and pushes an
// anonymous object.
type Object struct{ Slot int }

// TypedObject is Object for a named record type identified by Hash.
type TypedObject struct {
	Hash hash.Hash
	Slot int
}

// Stack manipulation.

// Copy pushes a copy of the value at frame offset Offset.
type Copy struct{ Offset int }

// Replace pops the top of the stack into frame offset Offset.
type Replace struct{ Offset int }

// Pop discards the top of the stack.
type Pop struct{}

// PopN discards the top Count values.
type PopN struct{ Count int }

// Clean preserves the top of the stack and discards the Count values under it.
type Clean struct{ Count int }

// Calls.

// Call invokes the function identified by Hash with Args arguments.
type Call struct {
	Hash hash.Hash
	Args int
}

// CallInstance invokes the instance function identified by Hash on the value
// under the arguments.
type CallInstance struct {
	Hash hash.Hash
	Args int
}

// CallFn pops a callable off the top of the stack (above the arguments) and
// invokes it.
type CallFn struct{ Args int }

// Fn pushes the function identified by Hash as a first-class value.
type Fn struct{ Hash hash.Hash }

// Closure pushes a closure over the function at Hash, popping Count captured
// values into its environment.
type Closure struct {
	Hash  hash.Hash
	Count int
}

// Type pushes the type descriptor identified by Hash.
type Type struct{ Hash hash.Hash }

// Control flow. Offsets are absolute instruction indices within the
// containing function, patched in at assembly finalisation.

// Jump transfers control unconditionally.
type Jump struct{ Offset int }

// JumpIf pops a boolean and jumps when it is true.
type JumpIf struct{ Offset int }

// JumpIfNot pops a boolean and jumps when it is false.
type JumpIfNot struct{ Offset int }

// PopAndJumpIfNot pops a boolean; when it is false, discards Count values
// and jumps. When true, falls through without touching the Count values.
type PopAndJumpIfNot struct {
	Count  int
	Offset int
}

// Return pops the return value, unwinds the frame, and resumes the caller.
type Return struct{}

// ReturnUnit unwinds the frame returning unit.
type ReturnUnit struct{}

// Panic aborts execution; emitted on refutable `let` mismatch paths.
type Panic struct{ Msg string }

// Operators.

// Not negates a boolean.
type Not struct{}

// Neg negates a number.
type Neg struct{}

// Add pops two values and pushes their sum.
type Add struct{}

// Sub pops two values and pushes their difference.
type Sub struct{}

// Mul pops two values and pushes their product.
type Mul struct{}

// Div pops two values and pushes their quotient.
type Div struct{}

// Rem pops two values and pushes their remainder.
type Rem struct{}

// Eq pops two values and pushes their equality.
type Eq struct{}

// Neq pops two values and pushes their inequality.
type Neq struct{}

// Lt pops two values and pushes a < b.
type Lt struct{}

// Le pops two values and pushes a <= b.
type Le struct{}

// Gt pops two values and pushes a > b.
type Gt struct{}

// Ge pops two values and pushes a >= b.
type Ge struct{}

// Pattern matching.

// IsUnit pops a value and pushes whether it is unit.
type IsUnit struct{}

// EqByte pops a value and pushes whether it equals the byte.
type EqByte struct{ Value byte }

// EqCharacter pops a value and pushes whether it equals the character.
type EqCharacter struct{ Value rune }

// EqInteger pops a value and pushes whether it equals the integer.
type EqInteger struct{ Value int64 }

// EqStaticString pops a value and pushes whether it equals the static string
// at Slot.
type EqStaticString struct{ Slot int }

// MatchSequence pops a value and pushes whether it passes the type check and
// has Len elements (exactly, or at least when not Exact).
type MatchSequence struct {
	TypeCheck TypeCheck
	Len       int
	Exact     bool
}

// MatchObject pops a value and pushes whether it passes the type check and
// contains every key in the static key set at Slot (exactly that set when
// Exact).
type MatchObject struct {
	TypeCheck TypeCheck
	Slot      int
	Exact     bool
}

// Projections used by specialised pattern loads and field access.

// TupleIndexGetAt pushes element Index of the sequence at frame offset
// Offset.
type TupleIndexGetAt struct {
	Offset int
	Index  int
}

// ObjectSlotIndexGetAt pushes the field named by static string Slot of the
// object at frame offset Offset.
type ObjectSlotIndexGetAt struct {
	Offset int
	Slot   int
}

// TupleIndexGet pops a sequence and pushes its element at Index.
type TupleIndexGet struct{ Index int }

// ObjectIndexGet pops an object and pushes the field named by static string
// Slot.
type ObjectIndexGet struct{ Slot int }

func (Unit) isInst()                 {}
func (Bool) isInst()                 {}
func (Integer) isInst()              {}
func (Float) isInst()                {}
func (Byte) isInst()                 {}
func (Char) isInst()                 {}
func (String) isInst()               {}
func (Vec) isInst()                  {}
func (Tuple) isInst()                {}
func (Object) isInst()               {}
func (TypedObject) isInst()          {}
func (Copy) isInst()                 {}
func (Replace) isInst()              {}
func (Pop) isInst()                  {}
func (PopN) isInst()                 {}
func (Clean) isInst()                {}
func (Call) isInst()                 {}
func (CallInstance) isInst()         {}
func (CallFn) isInst()               {}
func (Fn) isInst()                   {}
func (Closure) isInst()              {}
func (Type) isInst()                 {}
func (Jump) isInst()                 {}
func (JumpIf) isInst()               {}
func (JumpIfNot) isInst()            {}
func (PopAndJumpIfNot) isInst()      {}
func (Return) isInst()               {}
func (ReturnUnit) isInst()           {}
func (Panic) isInst()                {}
func (Not) isInst()                  {}
func (Neg) isInst()                  {}
func (Add) isInst()                  {}
func (Sub) isInst()                  {}
func (Mul) isInst()                  {}
func (Div) isInst()                  {}
func (Rem) isInst()                  {}
func (Eq) isInst()                   {}
func (Neq) isInst()                  {}
func (Lt) isInst()                   {}
func (Le) isInst()                   {}
func (Gt) isInst()                   {}
func (Ge) isInst()                   {}
func (IsUnit) isInst()               {}
func (EqByte) isInst()               {}
func (EqCharacter) isInst()          {}
func (EqInteger) isInst()            {}
func (EqStaticString) isInst()       {}
func (MatchSequence) isInst()        {}
func (MatchObject) isInst()          {}
func (TupleIndexGetAt) isInst()      {}
func (ObjectSlotIndexGetAt) isInst() {}
func (TupleIndexGet) isInst()        {}
func (ObjectIndexGet) isInst()       {}

func (Unit) String() string      { return "unit" }
func (i Bool) String() string    { return fmt.Sprintf("bool %v", i.Value) }
func (i Integer) String() string { return fmt.Sprintf("integer %d", i.Value) }
func (i Float) String() string   { return fmt.Sprintf("float %v", i.Value) }
func (i Byte) String() string    { return fmt.Sprintf("byte %d", i.Value) }
func (i Char) String() string    { return fmt.Sprintf("char %q", i.Value) }
func (i String) String() string  { return fmt.Sprintf("string slot=%d", i.Slot) }
func (i Vec) String() string     { return fmt.Sprintf("vec count=%d", i.Count) }
func (i Tuple) String() string   { return fmt.Sprintf("tuple count=%d", i.Count) }
func (i Object) String() string  { return fmt.Sprintf("object slot=%d", i.Slot) }
func (i TypedObject) String() string {
	return fmt.Sprintf("typed-object hash=%#x slot=%d", uint64(i.Hash), i.Slot)
}
func (i Copy) String() string    { return fmt.Sprintf("copy offset=%d", i.Offset) }
func (i Replace) String() string { return fmt.Sprintf("replace offset=%d", i.Offset) }
func (Pop) String() string       { return "pop" }
func (i PopN) String() string    { return fmt.Sprintf("popn count=%d", i.Count) }
func (i Clean) String() string   { return fmt.Sprintf("clean count=%d", i.Count) }
func (i Call) String() string {
	return fmt.Sprintf("call hash=%#x args=%d", uint64(i.Hash), i.Args)
}
func (i CallInstance) String() string {
	return fmt.Sprintf("call-instance hash=%#x args=%d", uint64(i.Hash), i.Args)
}
func (i CallFn) String() string { return fmt.Sprintf("call-fn args=%d", i.Args) }
func (i Fn) String() string     { return fmt.Sprintf("fn hash=%#x", uint64(i.Hash)) }
func (i Closure) String() string {
	return fmt.Sprintf("closure hash=%#x count=%d", uint64(i.Hash), i.Count)
}
func (i Type) String() string      { return fmt.Sprintf("type hash=%#x", uint64(i.Hash)) }
func (i Jump) String() string      { return fmt.Sprintf("jump %d", i.Offset) }
func (i JumpIf) String() string    { return fmt.Sprintf("jump-if %d", i.Offset) }
func (i JumpIfNot) String() string { return fmt.Sprintf("jump-if-not %d", i.Offset) }
func (i PopAndJumpIfNot) String() string {
	return fmt.Sprintf("pop-and-jump-if-not count=%d offset=%d", i.Count, i.Offset)
}
func (Return) String() string        { return "return" }
func (ReturnUnit) String() string    { return "return-unit" }
func (i Panic) String() string       { return fmt.Sprintf("panic %q", i.Msg) }
func (Not) String() string           { return "not" }
func (Neg) String() string           { return "neg" }
func (Add) String() string           { return "add" }
func (Sub) String() string           { return "sub" }
func (Mul) String() string           { return "mul" }
func (Div) String() string           { return "div" }
func (Rem) String() string           { return "rem" }
func (Eq) String() string            { return "eq" }
func (Neq) String() string           { return "neq" }
func (Lt) String() string            { return "lt" }
func (Le) String() string            { return "le" }
func (Gt) String() string            { return "gt" }
func (Ge) String() string            { return "ge" }
func (IsUnit) String() string        { return "is-unit" }
func (i EqByte) String() string      { return fmt.Sprintf("eq-byte %d", i.Value) }
func (i EqCharacter) String() string { return fmt.Sprintf("eq-character %q", i.Value) }
func (i EqInteger) String() string   { return fmt.Sprintf("eq-integer %d", i.Value) }
func (i EqStaticString) String() string {
	return fmt.Sprintf("eq-static-string slot=%d", i.Slot)
}
func (i MatchSequence) String() string {
	return fmt.Sprintf("match-sequence %s len=%d exact=%v", i.TypeCheck, i.Len, i.Exact)
}
func (i MatchObject) String() string {
	return fmt.Sprintf("match-object %s slot=%d exact=%v", i.TypeCheck, i.Slot, i.Exact)
}
func (i TupleIndexGetAt) String() string {
	return fmt.Sprintf("tuple-index-get-at offset=%d index=%d", i.Offset, i.Index)
}
func (i ObjectSlotIndexGetAt) String() string {
	return fmt.Sprintf("object-slot-index-get-at offset=%d slot=%d", i.Offset, i.Slot)
}
func (i TupleIndexGet) String() string  { return fmt.Sprintf("tuple-index-get index=%d", i.Index) }
func (i ObjectIndexGet) String() string { return fmt.Sprintf("object-index-get slot=%d", i.Slot) }
