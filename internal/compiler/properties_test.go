package compiler_test

import (
	"fmt"
	"testing"

	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/unit"
)

// propertyPrograms exercises every major syntactic form; the structural
// properties below are checked across all of them.
var propertyPrograms = []string{
	`pub fn main() { true || false }`,
	`pub fn main() { let v = [1, 2, 3]; match v { [a, b, c] => a + b + c } }`,
	`pub fn main() { let o = #{x: 1, y: 2}; match o { #{x, y} => x * 10 + y } }`,
	`pub fn main() { let xs = [1, 2, 3]; match xs { [a, ..] => a } }`,
	`
fn fib(n) { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } }
pub fn main() { fib(10) }
`,
	`
pub fn main() {
	let n = 0;
	while n < 5 { n = n + 1; }
	loop { if n == 9 { break } n = n + 1; }
	n
}
`,
	`
struct Counter { count }
impl Counter { fn total(self) { self.count } }
pub fn main() { Counter { count: 3 }.total() }
`,
	`
pub fn main() {
	let base = 2;
	let f = |a| a + base;
	match Some(f(1)) { Some(n) if n > 1 => n, _ => 0 }
}
`,
	`
enum Sign { Up, Down }
pub fn main() {
	let x = Sign::Down;
	if let Sign::Up = x { 1 } else { async { 2 } }
}
`,
}

// Label closure: after compilation no function contains a jump outside its
// own instruction block.
func TestLabelClosure(t *testing.T) {
	for _, src := range propertyPrograms {
		u := compileSource(t, src)
		for _, fn := range u.Functions {
			for idx, in := range fn.Insts {
				offset, ok := jumpTarget(in)
				if !ok {
					continue
				}
				if offset < 0 || offset > len(fn.Insts) {
					t.Errorf("%s: instruction %d jumps to %d, out of range", fn.Item, idx, offset)
				}
			}
		}
	}
}

func jumpTarget(in inst.Inst) (int, bool) {
	switch i := in.(type) {
	case inst.Jump:
		return i.Offset, true
	case inst.JumpIf:
		return i.Offset, true
	case inst.JumpIfNot:
		return i.Offset, true
	case inst.PopAndJumpIfNot:
		return i.Offset, true
	}
	return 0, false
}

// Stack balance: on every control path the abstract stack depth is
// consistent at every join point, every Return sees exactly one value above
// the frame, and every ReturnUnit sees none.
func TestStackBalance(t *testing.T) {
	for _, src := range propertyPrograms {
		u := compileSource(t, src)
		seen := make(map[*unit.Fn]bool)
		for _, fn := range u.Functions {
			if fn.Kind != unit.FnBlock || seen[fn] {
				continue
			}
			seen[fn] = true
			if err := simulate(u, fn); err != nil {
				t.Errorf("%s: %s\nsource: %s", fn.Item, err, src)
			}
		}
	}
}

// simulate walks the instruction block breadth-first tracking abstract stack
// depth per offset.
func simulate(u *unit.Unit, fn *unit.Fn) error {
	depths := make(map[int]int)
	type state struct{ ip, depth int }
	queue := []state{{0, fn.Args}}

	push := func(ip, depth int, queueRef *[]state) error {
		if existing, ok := depths[ip]; ok {
			if existing != depth {
				return fmt.Errorf("offset %d reached with depths %d and %d", ip, existing, depth)
			}
			return nil
		}
		depths[ip] = depth
		*queueRef = append(*queueRef, state{ip, depth})
		return nil
	}

	depths[0] = fn.Args

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		if s.ip >= len(fn.Insts) {
			continue
		}

		in := fn.Insts[s.ip]
		depth := s.depth

		switch i := in.(type) {
		case inst.Return:
			if depth != 1 {
				return fmt.Errorf("offset %d: Return at depth %d, want 1", s.ip, depth)
			}
			continue
		case inst.ReturnUnit:
			if depth != 0 {
				return fmt.Errorf("offset %d: ReturnUnit at depth %d, want 0", s.ip, depth)
			}
			continue
		case inst.Panic:
			continue
		case inst.Jump:
			if err := push(i.Offset, depth, &queue); err != nil {
				return err
			}
			continue
		case inst.JumpIf:
			if err := push(i.Offset, depth-1, &queue); err != nil {
				return err
			}
			if err := push(s.ip+1, depth-1, &queue); err != nil {
				return err
			}
			continue
		case inst.JumpIfNot:
			if err := push(i.Offset, depth-1, &queue); err != nil {
				return err
			}
			if err := push(s.ip+1, depth-1, &queue); err != nil {
				return err
			}
			continue
		case inst.PopAndJumpIfNot:
			if err := push(i.Offset, depth-1-i.Count, &queue); err != nil {
				return err
			}
			if err := push(s.ip+1, depth-1, &queue); err != nil {
				return err
			}
			continue
		}

		delta, err := stackDelta(u, in)
		if err != nil {
			return fmt.Errorf("offset %d: %w", s.ip, err)
		}
		next := depth + delta
		if next < 0 {
			return fmt.Errorf("offset %d: depth underflow after %s", s.ip, in)
		}
		if err := push(s.ip+1, next, &queue); err != nil {
			return err
		}
	}

	return nil
}

func stackDelta(u *unit.Unit, in inst.Inst) (int, error) {
	switch i := in.(type) {
	case inst.Unit, inst.Bool, inst.Integer, inst.Float, inst.Byte, inst.Char,
		inst.String, inst.Copy, inst.Fn, inst.Type:
		return 1, nil
	case inst.Vec:
		return 1 - i.Count, nil
	case inst.Tuple:
		return 1 - i.Count, nil
	case inst.Object:
		keys, ok := u.ObjectKeys(i.Slot)
		if !ok {
			return 0, fmt.Errorf("missing key set %d", i.Slot)
		}
		return 1 - len(keys), nil
	case inst.TypedObject:
		keys, ok := u.ObjectKeys(i.Slot)
		if !ok {
			return 0, fmt.Errorf("missing key set %d", i.Slot)
		}
		return 1 - len(keys), nil
	case inst.Replace, inst.Pop:
		return -1, nil
	case inst.PopN:
		return -i.Count, nil
	case inst.Clean:
		return -i.Count, nil
	case inst.Call:
		return 1 - i.Args, nil
	case inst.CallInstance:
		return -i.Args, nil
	case inst.CallFn:
		return -i.Args, nil
	case inst.Closure:
		return 1 - i.Count, nil
	case inst.Not, inst.Neg, inst.IsUnit, inst.EqByte, inst.EqCharacter,
		inst.EqInteger, inst.EqStaticString, inst.MatchSequence, inst.MatchObject,
		inst.TupleIndexGet, inst.ObjectIndexGet:
		return 0, nil
	case inst.Add, inst.Sub, inst.Mul, inst.Div, inst.Rem,
		inst.Eq, inst.Neq, inst.Lt, inst.Le, inst.Gt, inst.Ge:
		return -1, nil
	case inst.TupleIndexGetAt, inst.ObjectSlotIndexGetAt:
		return 1, nil
	}
	return 0, fmt.Errorf("unknown instruction %s", in)
}
