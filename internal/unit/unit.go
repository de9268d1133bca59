// Package unit implements the unit builder (collecting functions, static
// strings, static key sets, and imports during compilation) and the final
// loadable Unit the virtual machine executes.
package unit

import (
	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/token"
)

// CallConvention describes how a function is invoked.
type CallConvention int

const (
	// CallImmediate runs on the caller's virtual machine.
	CallImmediate CallConvention = iota
	// CallGenerator constructs a generator when called.
	CallGenerator
	// CallStream constructs an async stream when called.
	CallStream
	// CallAsync constructs a future when called.
	CallAsync
)

func (c CallConvention) String() string {
	switch c {
	case CallImmediate:
		return "immediate"
	case CallGenerator:
		return "generator"
	case CallStream:
		return "stream"
	case CallAsync:
		return "async"
	}
	return "?"
}

// FnKind discriminates unit function entries.
type FnKind int

const (
	// FnBlock is a compiled instruction block.
	FnBlock FnKind = iota
	// FnTuple is a synthesised tuple constructor for a struct.
	FnTuple
	// FnTupleVariant is a synthesised tuple constructor for an enum variant.
	FnTupleVariant
)

// Fn is one function entry in a unit.
type Fn struct {
	Kind     FnKind
	Hash     hash.Hash
	Item     string
	Args     int
	ArgNames []string
	Call     CallConvention

	// Instruction block, present for FnBlock.
	Insts    []inst.Inst
	Spans    []token.Span
	Comments []string
	SourceID int

	// Constructor identity, present for FnTuple and FnTupleVariant.
	TypeOf   hash.Hash
	EnumHash hash.Hash
}

// SourceInfo is one entry of the source-id side table.
type SourceInfo struct {
	Name string
}

// Unit is the final compiled artifact: everything the VM needs to run.
type Unit struct {
	// BuildID uniquely identifies one build of the unit.
	BuildID string

	Functions        map[hash.Hash]*Fn
	StaticStrings    []string
	StaticObjectKeys [][]string
	Sources          []SourceInfo

	// Imports maps alias paths to the target items they resolved to.
	Imports map[string]string

	// DebugInfo indicates spans and comments were retained.
	DebugInfo bool
}

// Lookup returns the function registered at the hash.
func (u *Unit) Lookup(h hash.Hash) (*Fn, bool) {
	fn, ok := u.Functions[h]
	return fn, ok
}

// StaticString returns the string at a pool slot.
func (u *Unit) StaticString(slot int) (string, bool) {
	if slot < 0 || slot >= len(u.StaticStrings) {
		return "", false
	}
	return u.StaticStrings[slot], true
}

// ObjectKeys returns the static key set at a slot.
func (u *Unit) ObjectKeys(slot int) ([]string, bool) {
	if slot < 0 || slot >= len(u.StaticObjectKeys) {
		return nil, false
	}
	return u.StaticObjectKeys[slot], true
}
