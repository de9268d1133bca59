package unit

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/inst"
)

func init() {
	// Register instruction variants for gob serialization.
	gob.Register(inst.Unit{})
	gob.Register(inst.Bool{})
	gob.Register(inst.Integer{})
	gob.Register(inst.Float{})
	gob.Register(inst.Byte{})
	gob.Register(inst.Char{})
	gob.Register(inst.String{})
	gob.Register(inst.Vec{})
	gob.Register(inst.Tuple{})
	gob.Register(inst.Object{})
	gob.Register(inst.TypedObject{})
	gob.Register(inst.Copy{})
	gob.Register(inst.Replace{})
	gob.Register(inst.Pop{})
	gob.Register(inst.PopN{})
	gob.Register(inst.Clean{})
	gob.Register(inst.Call{})
	gob.Register(inst.CallInstance{})
	gob.Register(inst.CallFn{})
	gob.Register(inst.Fn{})
	gob.Register(inst.Closure{})
	gob.Register(inst.Type{})
	gob.Register(inst.Jump{})
	gob.Register(inst.JumpIf{})
	gob.Register(inst.JumpIfNot{})
	gob.Register(inst.PopAndJumpIfNot{})
	gob.Register(inst.Return{})
	gob.Register(inst.ReturnUnit{})
	gob.Register(inst.Panic{})
	gob.Register(inst.Not{})
	gob.Register(inst.Neg{})
	gob.Register(inst.Add{})
	gob.Register(inst.Sub{})
	gob.Register(inst.Mul{})
	gob.Register(inst.Div{})
	gob.Register(inst.Rem{})
	gob.Register(inst.Eq{})
	gob.Register(inst.Neq{})
	gob.Register(inst.Lt{})
	gob.Register(inst.Le{})
	gob.Register(inst.Gt{})
	gob.Register(inst.Ge{})
	gob.Register(inst.IsUnit{})
	gob.Register(inst.EqByte{})
	gob.Register(inst.EqCharacter{})
	gob.Register(inst.EqInteger{})
	gob.Register(inst.EqStaticString{})
	gob.Register(inst.MatchSequence{})
	gob.Register(inst.MatchObject{})
	gob.Register(inst.TupleIndexGetAt{})
	gob.Register(inst.ObjectSlotIndexGetAt{})
	gob.Register(inst.TupleIndexGet{})
	gob.Register(inst.ObjectIndexGet{})
}

// unitMagic marks serialized units.
var unitMagic = [4]byte{'Q', 'U', 'N', 'T'}

const unitVersionV1 byte = 0x01

// Serialize converts the unit to its binary format:
// magic "QUNT", one version byte, then the gob-encoded unit.
func (u *Unit) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(unitMagic[:])
	buf.WriteByte(unitVersionV1)

	enc := gob.NewEncoder(buf)
	if err := enc.Encode(u); err != nil {
		return nil, fmt.Errorf("unit gob encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize reads a serialized unit.
func Deserialize(data []byte) (*Unit, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("unit data too short")
	}
	if !bytes.Equal(data[:4], unitMagic[:]) {
		return nil, fmt.Errorf("invalid magic number, expected QUNT")
	}
	version := data[4]
	if version != unitVersionV1 {
		return nil, fmt.Errorf("unsupported unit version: %d", version)
	}

	dec := gob.NewDecoder(bytes.NewReader(data[5:]))
	var u Unit
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("unit gob decoding failed: %w", err)
	}
	if u.Functions == nil {
		u.Functions = make(map[hash.Hash]*Fn)
	}
	return &u, nil
}
