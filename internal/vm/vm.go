// Package vm implements the stack-based virtual machine that executes
// compiled units. It is single-threaded and cooperative: a call either
// completes or errors.
package vm

import (
	"fmt"

	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/unit"
)

// frame is one activation record: the function, its instruction pointer,
// and the stack index of its slot zero.
type frame struct {
	fn   *unit.Fn
	ip   int
	base int
}

// Vm executes functions of one unit against a context.
type Vm struct {
	unit    *unit.Unit
	context *runtime.Context
	stack   []runtime.Value
	frames  []frame
}

// New creates a machine over a unit and context.
func New(ctx *runtime.Context, u *unit.Unit) *Vm {
	return &Vm{unit: u, context: ctx}
}

// Call invokes a unit function by path with the given arguments.
func (vm *Vm) Call(name []string, args ...runtime.Value) (runtime.Value, error) {
	h := hash.Type(items.NewItem(name...))
	fn, ok := vm.unit.Lookup(h)
	if !ok {
		return nil, fmt.Errorf("missing function `%s`", items.NewItem(name...))
	}
	if fn.Args != len(args) {
		return nil, fmt.Errorf("wrong number of arguments for `%s`: expected %d, got %d",
			fn.Item, fn.Args, len(args))
	}

	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.stack = append(vm.stack, args...)
	vm.frames = append(vm.frames, frame{fn: fn, base: 0})

	if err := vm.run(); err != nil {
		return nil, err
	}
	if len(vm.stack) == 0 {
		return &runtime.Unit{}, nil
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *Vm) push(v runtime.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *Vm) pop() (runtime.Value, error) {
	if len(vm.stack) == 0 {
		return nil, fmt.Errorf("stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *Vm) popN(n int) ([]runtime.Value, error) {
	if len(vm.stack) < n {
		return nil, fmt.Errorf("stack underflow")
	}
	out := make([]runtime.Value, n)
	copy(out, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	return out, nil
}

func (vm *Vm) popBool() (bool, error) {
	v, err := vm.pop()
	if err != nil {
		return false, err
	}
	b, ok := runtime.Truthy(v)
	if !ok {
		return false, fmt.Errorf("expected a boolean, got %s", v.Inspect())
	}
	return b, nil
}

func (vm *Vm) top() *frame {
	return &vm.frames[len(vm.frames)-1]
}

// callHash dispatches a call to a unit function, a synthesised constructor,
// or a context native.
func (vm *Vm) callHash(h hash.Hash, args int) error {
	if fn, ok := vm.unit.Lookup(h); ok {
		switch fn.Kind {
		case unit.FnTuple:
			values, err := vm.popN(args)
			if err != nil {
				return err
			}
			vm.push(&runtime.TypedTuple{Hash: fn.TypeOf, Name: fn.Item, Items: values})
			return nil
		case unit.FnTupleVariant:
			values, err := vm.popN(args)
			if err != nil {
				return err
			}
			vm.push(&runtime.VariantTuple{
				Hash:     fn.TypeOf,
				EnumHash: fn.EnumHash,
				Name:     fn.Item,
				Items:    values,
			})
			return nil
		default:
			if fn.Args != args {
				return fmt.Errorf("wrong number of arguments for `%s`: expected %d, got %d",
					fn.Item, fn.Args, args)
			}
			vm.frames = append(vm.frames, frame{fn: fn, base: len(vm.stack) - args})
			return nil
		}
	}

	if handler, ok := vm.context.Lookup(h); ok {
		values, err := vm.popN(args)
		if err != nil {
			return err
		}
		out, err := handler(values)
		if err != nil {
			return err
		}
		if out == nil {
			out = &runtime.Unit{}
		}
		vm.push(out)
		return nil
	}

	return fmt.Errorf("missing function for hash %#x", uint64(h))
}

func (vm *Vm) run() error {
	for len(vm.frames) > 0 {
		f := vm.top()
		if f.ip >= len(f.fn.Insts) {
			// Fell off the end of the function: unwind returning unit.
			vm.stack = vm.stack[:f.base]
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.push(&runtime.Unit{})
			continue
		}

		in := f.fn.Insts[f.ip]
		f.ip++

		if err := vm.exec(in); err != nil {
			return fmt.Errorf("%s: %w", f.fn.Item, err)
		}
	}
	return nil
}

func (vm *Vm) exec(in inst.Inst) error {
	f := vm.top()

	switch i := in.(type) {
	case inst.Unit:
		vm.push(&runtime.Unit{})
	case inst.Bool:
		vm.push(&runtime.Bool{Value: i.Value})
	case inst.Integer:
		vm.push(&runtime.Integer{Value: i.Value})
	case inst.Float:
		vm.push(&runtime.Float{Value: i.Value})
	case inst.Byte:
		vm.push(&runtime.ByteValue{Value: i.Value})
	case inst.Char:
		vm.push(&runtime.CharValue{Value: i.Value})
	case inst.String:
		s, ok := vm.unit.StaticString(i.Slot)
		if !ok {
			return fmt.Errorf("missing static string slot %d", i.Slot)
		}
		vm.push(&runtime.Str{Value: s})

	case inst.Vec:
		values, err := vm.popN(i.Count)
		if err != nil {
			return err
		}
		vm.push(&runtime.VecValue{Items: values})
	case inst.Tuple:
		values, err := vm.popN(i.Count)
		if err != nil {
			return err
		}
		vm.push(&runtime.TupleValue{Items: values})
	case inst.Object:
		fields, err := vm.popObjectFields(i.Slot)
		if err != nil {
			return err
		}
		vm.push(&runtime.ObjectValue{Fields: fields})
	case inst.TypedObject:
		fields, err := vm.popObjectFields(i.Slot)
		if err != nil {
			return err
		}
		vm.push(&runtime.TypedObject{Hash: i.Hash, Fields: fields})

	case inst.Copy:
		index := f.base + i.Offset
		if index < 0 || index >= len(vm.stack) {
			return fmt.Errorf("copy out of range: offset %d", i.Offset)
		}
		vm.push(vm.stack[index])
	case inst.Replace:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		index := f.base + i.Offset
		if index < 0 || index >= len(vm.stack) {
			return fmt.Errorf("replace out of range: offset %d", i.Offset)
		}
		vm.stack[index] = v

	case inst.Pop:
		if _, err := vm.pop(); err != nil {
			return err
		}
	case inst.PopN:
		if _, err := vm.popN(i.Count); err != nil {
			return err
		}
	case inst.Clean:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if _, err := vm.popN(i.Count); err != nil {
			return err
		}
		vm.push(v)

	case inst.Call:
		return vm.callHash(i.Hash, i.Args)

	case inst.CallInstance:
		index := len(vm.stack) - i.Args - 1
		if index < 0 {
			return fmt.Errorf("stack underflow")
		}
		receiver := vm.stack[index]
		combined := hash.Combine(receiver.TypeHash(), i.Hash)
		if fn, ok := vm.unit.Lookup(combined); ok && fn.Kind == unit.FnBlock {
			vm.frames = append(vm.frames, frame{fn: fn, base: index})
			return nil
		}
		if handler, ok := vm.context.Lookup(combined); ok {
			values, err := vm.popN(i.Args + 1)
			if err != nil {
				return err
			}
			out, err := handler(values)
			if err != nil {
				return err
			}
			if out == nil {
				out = &runtime.Unit{}
			}
			vm.push(out)
			return nil
		}
		return fmt.Errorf("missing instance function on %s", receiver.Inspect())

	case inst.CallFn:
		callee, err := vm.pop()
		if err != nil {
			return err
		}
		switch fn := callee.(type) {
		case *runtime.FunctionValue:
			return vm.callHash(fn.Hash, i.Args)
		case *runtime.ClosureValue:
			// Frame layout is environment then arguments; splice the
			// environment in under the already-pushed arguments.
			at := len(vm.stack) - i.Args
			env := append([]runtime.Value(nil), fn.Environment...)
			vm.stack = append(vm.stack[:at], append(env, vm.stack[at:]...)...)
			return vm.callHash(fn.Hash, i.Args+len(env))
		default:
			return fmt.Errorf("cannot call %s", callee.Inspect())
		}

	case inst.Fn:
		name := ""
		if fn, ok := vm.unit.Lookup(i.Hash); ok {
			name = fn.Item
		}
		vm.push(&runtime.FunctionValue{Hash: i.Hash, Name: name})

	case inst.Closure:
		env, err := vm.popN(i.Count)
		if err != nil {
			return err
		}
		name := ""
		if fn, ok := vm.unit.Lookup(i.Hash); ok {
			name = fn.Item
		}
		vm.push(&runtime.ClosureValue{Hash: i.Hash, Name: name, Environment: env})

	case inst.Type:
		vm.push(&runtime.TypeValue{Hash: i.Hash})

	case inst.Jump:
		f.ip = i.Offset
	case inst.JumpIf:
		b, err := vm.popBool()
		if err != nil {
			return err
		}
		if b {
			f.ip = i.Offset
		}
	case inst.JumpIfNot:
		b, err := vm.popBool()
		if err != nil {
			return err
		}
		if !b {
			f.ip = i.Offset
		}
	case inst.PopAndJumpIfNot:
		b, err := vm.popBool()
		if err != nil {
			return err
		}
		if !b {
			if _, err := vm.popN(i.Count); err != nil {
				return err
			}
			f.ip = i.Offset
		}

	case inst.Return:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.stack = vm.stack[:f.base]
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.push(v)
	case inst.ReturnUnit:
		vm.stack = vm.stack[:f.base]
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.push(&runtime.Unit{})
	case inst.Panic:
		return fmt.Errorf("panic: %s", i.Msg)

	case inst.Not:
		b, err := vm.popBool()
		if err != nil {
			return err
		}
		vm.push(&runtime.Bool{Value: !b})
	case inst.Neg:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		switch n := v.(type) {
		case *runtime.Integer:
			vm.push(&runtime.Integer{Value: -n.Value})
		case *runtime.Float:
			vm.push(&runtime.Float{Value: -n.Value})
		default:
			return fmt.Errorf("cannot negate %s", v.Inspect())
		}

	case inst.Add, inst.Sub, inst.Mul, inst.Div, inst.Rem:
		return vm.arith(in)

	case inst.Eq:
		rhs, lhs, err := vm.popPair()
		if err != nil {
			return err
		}
		vm.push(&runtime.Bool{Value: runtime.ValueEq(lhs, rhs)})
	case inst.Neq:
		rhs, lhs, err := vm.popPair()
		if err != nil {
			return err
		}
		vm.push(&runtime.Bool{Value: !runtime.ValueEq(lhs, rhs)})
	case inst.Lt, inst.Le, inst.Gt, inst.Ge:
		return vm.compare(in)

	case inst.IsUnit:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		_, isUnit := v.(*runtime.Unit)
		vm.push(&runtime.Bool{Value: isUnit})
	case inst.EqByte:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		b, ok := v.(*runtime.ByteValue)
		vm.push(&runtime.Bool{Value: ok && b.Value == i.Value})
	case inst.EqCharacter:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		ch, ok := v.(*runtime.CharValue)
		vm.push(&runtime.Bool{Value: ok && ch.Value == i.Value})
	case inst.EqInteger:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		n, ok := v.(*runtime.Integer)
		vm.push(&runtime.Bool{Value: ok && n.Value == i.Value})
	case inst.EqStaticString:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		expected, ok := vm.unit.StaticString(i.Slot)
		if !ok {
			return fmt.Errorf("missing static string slot %d", i.Slot)
		}
		s, isStr := v.(*runtime.Str)
		vm.push(&runtime.Bool{Value: isStr && s.Value == expected})

	case inst.MatchSequence:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		seq, ok := sequenceFor(i.TypeCheck, v)
		matched := ok && (len(seq) == i.Len || (!i.Exact && len(seq) >= i.Len))
		vm.push(&runtime.Bool{Value: matched})

	case inst.MatchObject:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		keys, ok := vm.unit.ObjectKeys(i.Slot)
		if !ok {
			return fmt.Errorf("missing object key set %d", i.Slot)
		}
		fields, shapeOk := objectFor(i.TypeCheck, v)
		matched := shapeOk
		if matched {
			for _, key := range keys {
				if _, present := fields[key]; !present {
					matched = false
					break
				}
			}
			if matched && i.Exact && len(fields) != len(keys) {
				matched = false
			}
		}
		vm.push(&runtime.Bool{Value: matched})

	case inst.TupleIndexGetAt:
		index := f.base + i.Offset
		if index < 0 || index >= len(vm.stack) {
			return fmt.Errorf("sequence slot out of range: offset %d", i.Offset)
		}
		seq, ok := anySequence(vm.stack[index])
		if !ok || i.Index >= len(seq) {
			return fmt.Errorf("no element %d in %s", i.Index, vm.stack[index].Inspect())
		}
		vm.push(seq[i.Index])

	case inst.ObjectSlotIndexGetAt:
		index := f.base + i.Offset
		if index < 0 || index >= len(vm.stack) {
			return fmt.Errorf("object slot out of range: offset %d", i.Offset)
		}
		key, ok := vm.unit.StaticString(i.Slot)
		if !ok {
			return fmt.Errorf("missing static string slot %d", i.Slot)
		}
		fields, shapeOk := anyObject(vm.stack[index])
		if !shapeOk {
			return fmt.Errorf("%s is not an object", vm.stack[index].Inspect())
		}
		value, present := fields[key]
		if !present {
			return fmt.Errorf("missing field `%s`", key)
		}
		vm.push(value)

	case inst.TupleIndexGet:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		seq, ok := anySequence(v)
		if !ok || i.Index >= len(seq) {
			return fmt.Errorf("no element %d in %s", i.Index, v.Inspect())
		}
		vm.push(seq[i.Index])

	case inst.ObjectIndexGet:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		key, ok := vm.unit.StaticString(i.Slot)
		if !ok {
			return fmt.Errorf("missing static string slot %d", i.Slot)
		}
		fields, shapeOk := anyObject(v)
		if !shapeOk {
			return fmt.Errorf("%s is not an object", v.Inspect())
		}
		value, present := fields[key]
		if !present {
			return fmt.Errorf("missing field `%s`", key)
		}
		vm.push(value)

	default:
		return fmt.Errorf("unsupported instruction %s", in)
	}

	return nil
}

func (vm *Vm) popObjectFields(slot int) (map[string]runtime.Value, error) {
	keys, ok := vm.unit.ObjectKeys(slot)
	if !ok {
		return nil, fmt.Errorf("missing object key set %d", slot)
	}
	values, err := vm.popN(len(keys))
	if err != nil {
		return nil, err
	}
	fields := make(map[string]runtime.Value, len(keys))
	for i, key := range keys {
		fields[key] = values[i]
	}
	return fields, nil
}

func (vm *Vm) popPair() (rhs, lhs runtime.Value, err error) {
	rhs, err = vm.pop()
	if err != nil {
		return nil, nil, err
	}
	lhs, err = vm.pop()
	if err != nil {
		return nil, nil, err
	}
	return rhs, lhs, nil
}

func (vm *Vm) arith(in inst.Inst) error {
	rhs, lhs, err := vm.popPair()
	if err != nil {
		return err
	}

	if li, ok := lhs.(*runtime.Integer); ok {
		ri, ok := rhs.(*runtime.Integer)
		if !ok {
			return fmt.Errorf("cannot operate on %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		switch in.(type) {
		case inst.Add:
			vm.push(&runtime.Integer{Value: li.Value + ri.Value})
		case inst.Sub:
			vm.push(&runtime.Integer{Value: li.Value - ri.Value})
		case inst.Mul:
			vm.push(&runtime.Integer{Value: li.Value * ri.Value})
		case inst.Div:
			if ri.Value == 0 {
				return fmt.Errorf("division by zero")
			}
			vm.push(&runtime.Integer{Value: li.Value / ri.Value})
		case inst.Rem:
			if ri.Value == 0 {
				return fmt.Errorf("division by zero")
			}
			vm.push(&runtime.Integer{Value: li.Value % ri.Value})
		}
		return nil
	}

	if lf, ok := lhs.(*runtime.Float); ok {
		rf, ok := rhs.(*runtime.Float)
		if !ok {
			return fmt.Errorf("cannot operate on %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		switch in.(type) {
		case inst.Add:
			vm.push(&runtime.Float{Value: lf.Value + rf.Value})
		case inst.Sub:
			vm.push(&runtime.Float{Value: lf.Value - rf.Value})
		case inst.Mul:
			vm.push(&runtime.Float{Value: lf.Value * rf.Value})
		case inst.Div:
			vm.push(&runtime.Float{Value: lf.Value / rf.Value})
		default:
			return fmt.Errorf("unsupported float operation")
		}
		return nil
	}

	if ls, ok := lhs.(*runtime.Str); ok {
		rs, ok := rhs.(*runtime.Str)
		if !ok {
			return fmt.Errorf("cannot operate on %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		if _, isAdd := in.(inst.Add); isAdd {
			vm.push(&runtime.Str{Value: ls.Value + rs.Value})
			return nil
		}
		return fmt.Errorf("unsupported string operation")
	}

	return fmt.Errorf("cannot operate on %s and %s", lhs.Inspect(), rhs.Inspect())
}

func (vm *Vm) compare(in inst.Inst) error {
	rhs, lhs, err := vm.popPair()
	if err != nil {
		return err
	}

	var cmp int
	switch lv := lhs.(type) {
	case *runtime.Integer:
		rv, ok := rhs.(*runtime.Integer)
		if !ok {
			return fmt.Errorf("cannot compare %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		cmp = compareOrdered(lv.Value, rv.Value)
	case *runtime.Float:
		rv, ok := rhs.(*runtime.Float)
		if !ok {
			return fmt.Errorf("cannot compare %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		cmp = compareOrdered(lv.Value, rv.Value)
	case *runtime.Str:
		rv, ok := rhs.(*runtime.Str)
		if !ok {
			return fmt.Errorf("cannot compare %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		cmp = compareOrdered(lv.Value, rv.Value)
	case *runtime.ByteValue:
		rv, ok := rhs.(*runtime.ByteValue)
		if !ok {
			return fmt.Errorf("cannot compare %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		cmp = compareOrdered(lv.Value, rv.Value)
	case *runtime.CharValue:
		rv, ok := rhs.(*runtime.CharValue)
		if !ok {
			return fmt.Errorf("cannot compare %s and %s", lhs.Inspect(), rhs.Inspect())
		}
		cmp = compareOrdered(lv.Value, rv.Value)
	default:
		return fmt.Errorf("cannot compare %s and %s", lhs.Inspect(), rhs.Inspect())
	}

	var out bool
	switch in.(type) {
	case inst.Lt:
		out = cmp < 0
	case inst.Le:
		out = cmp <= 0
	case inst.Gt:
		out = cmp > 0
	case inst.Ge:
		out = cmp >= 0
	}
	vm.push(&runtime.Bool{Value: out})
	return nil
}

func compareOrdered[T int64 | float64 | string | byte | rune](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sequenceFor extracts the elements of a value when it passes the given
// shape check.
func sequenceFor(check inst.TypeCheck, v runtime.Value) ([]runtime.Value, bool) {
	switch check.Kind {
	case inst.CheckVec:
		if vec, ok := v.(*runtime.VecValue); ok {
			return vec.Items, true
		}
	case inst.CheckTuple:
		if tuple, ok := v.(*runtime.TupleValue); ok {
			return tuple.Items, true
		}
	case inst.CheckType:
		if typed, ok := v.(*runtime.TypedTuple); ok && typed.Hash == check.Hash {
			return typed.Items, true
		}
	case inst.CheckVariant:
		if variant, ok := v.(*runtime.VariantTuple); ok && variant.Hash == check.Hash {
			return variant.Items, true
		}
	case inst.CheckUnit:
		if _, ok := v.(*runtime.Unit); ok {
			return nil, true
		}
	}
	return nil, false
}

// objectFor extracts the fields of a value when it passes the given shape
// check.
func objectFor(check inst.TypeCheck, v runtime.Value) (map[string]runtime.Value, bool) {
	switch check.Kind {
	case inst.CheckObject:
		if obj, ok := v.(*runtime.ObjectValue); ok {
			return obj.Fields, true
		}
	case inst.CheckType:
		if typed, ok := v.(*runtime.TypedObject); ok && typed.Hash == check.Hash {
			return typed.Fields, true
		}
	case inst.CheckVariant:
		if variant, ok := v.(*runtime.VariantObject); ok && variant.Hash == check.Hash {
			return variant.Fields, true
		}
		if typed, ok := v.(*runtime.TypedObject); ok && typed.Hash == check.Hash {
			return typed.Fields, true
		}
	}
	return nil, false
}

func anySequence(v runtime.Value) ([]runtime.Value, bool) {
	switch s := v.(type) {
	case *runtime.VecValue:
		return s.Items, true
	case *runtime.TupleValue:
		return s.Items, true
	case *runtime.TypedTuple:
		return s.Items, true
	case *runtime.VariantTuple:
		return s.Items, true
	}
	return nil, false
}

func anyObject(v runtime.Value) (map[string]runtime.Value, bool) {
	switch o := v.(type) {
	case *runtime.ObjectValue:
		return o.Fields, true
	case *runtime.TypedObject:
		return o.Fields, true
	case *runtime.VariantObject:
		return o.Fields, true
	}
	return nil, false
}
