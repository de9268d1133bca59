package compiler_test

import (
	"strings"
	"testing"

	"github.com/funvibe/quill/internal/compiler"
	"github.com/funvibe/quill/internal/config"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/runtime/modules"
	"github.com/funvibe/quill/internal/source"
	"github.com/funvibe/quill/internal/unit"
	"github.com/funvibe/quill/internal/vm"
)

// compileSource compiles a single-file program and fails the test on any
// diagnostic.
func compileSource(t *testing.T, src string) *unit.Unit {
	t.Helper()
	u, err := tryCompile(src)
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	return u
}

func tryCompile(src string, extra ...string) (*unit.Unit, *diagnostics.DiagnosticError) {
	ctx, cerr := modules.DefaultContext()
	if cerr != nil {
		panic(cerr)
	}
	sources := source.NewSources()
	sources.Insert(source.New("main.quill", src))
	for i, body := range extra {
		name := string(rune('a'+i)) + ".quill"
		sources.Insert(source.New(name, body))
	}
	u, _, err := compiler.LoadSources(ctx, sources, config.DefaultOptions())
	return u, err
}

// expectError compiles a program expecting it to fail with the given code.
func expectError(t *testing.T, src string, code diagnostics.ErrorCode) *diagnostics.DiagnosticError {
	t.Helper()
	_, err := tryCompile(src)
	if err == nil {
		t.Fatalf("expected error %s, compilation succeeded\ninput: %s", code, src)
	}
	if err.Code != code {
		t.Fatalf("expected error %s, got %s (%s)", code, err.Code, err.Message)
	}
	return err
}

// runMain compiles and runs `main`, returning its value.
func runMain(t *testing.T, src string) runtime.Value {
	t.Helper()
	ctx, cerr := modules.DefaultContext()
	if cerr != nil {
		t.Fatal(cerr)
	}
	sources := source.NewSources()
	sources.Insert(source.New("main.quill", src))
	u, _, err := compiler.LoadSources(ctx, sources, config.DefaultOptions())
	if err != nil {
		t.Fatalf("compilation failed: %s", err)
	}
	machine := vm.New(ctx, u)
	result, rerr := machine.Call([]string{"main"})
	if rerr != nil {
		t.Fatalf("vm error: %s", rerr)
	}
	return result
}

func expectInt(t *testing.T, src string, expected int64) {
	t.Helper()
	result := runMain(t, src)
	n, ok := result.(*runtime.Integer)
	if !ok {
		t.Fatalf("expected integer, got %s", result.Inspect())
	}
	if n.Value != expected {
		t.Fatalf("expected %d, got %d", expected, n.Value)
	}
}

func expectBool(t *testing.T, src string, expected bool) {
	t.Helper()
	result := runMain(t, src)
	b, ok := result.(*runtime.Bool)
	if !ok {
		t.Fatalf("expected boolean, got %s", result.Inspect())
	}
	if b.Value != expected {
		t.Fatalf("expected %v, got %v", expected, b.Value)
	}
}

// --- End-to-end scenarios ---

func TestLogicalOr(t *testing.T) {
	expectBool(t, `pub fn main() { true || false }`, true)
	expectBool(t, `pub fn main() { false || false }`, false)
	expectBool(t, `pub fn main() { false && true }`, false)
	expectBool(t, `pub fn main() { true && true }`, true)
}

func TestMatchVecPattern(t *testing.T) {
	expectInt(t, `pub fn main() { let v = [1, 2, 3]; match v { [a, b, c] => a + b + c } }`, 6)
}

func TestMatchObjectShorthand(t *testing.T) {
	expectInt(t, `pub fn main() { let o = #{x: 1, y: 2}; match o { #{x, y} => x * 10 + y } }`, 12)
}

func TestMatchFloatInPattern(t *testing.T) {
	expectError(t, `pub fn main() { match 1.0 { 1.0 => 1 } }`, diagnostics.ErrC007)
}

func TestLitObjectNotField(t *testing.T) {
	src := `pub fn main() { struct S { a, b } let s = S { a: 1, b: 2 }; match s { S { a, c } => () } }`
	expectError(t, src, diagnostics.ErrC006)
}

func TestOpenVecPattern(t *testing.T) {
	src := `pub fn main() { let xs = [1, 2, 3]; match xs { [a, ..] => a } }`
	expectInt(t, src, 1)

	// The emitted check is a non-exact sequence match of length one.
	u := compileSource(t, src)
	found := false
	for _, fn := range u.Functions {
		for _, in := range fn.Insts {
			if ms, ok := in.(inst.MatchSequence); ok {
				if ms.TypeCheck.Kind == inst.CheckVec && ms.Len == 1 && !ms.Exact {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected MatchSequence{vec, len: 1, exact: false}")
	}
}

func TestDuplicateObjectKey(t *testing.T) {
	err := expectError(t, `pub fn main() { match #{a: 1} { #{a: 1, a: 2} => () } }`, diagnostics.ErrC005)
	// The span points at the second `a`.
	if err.Span.Len() == 0 {
		t.Fatal("expected a span on the duplicate key")
	}
}

// Zero-arity variant patterns compile to length-zero sequence matches
// against the variant type checks.
func TestZeroArityVariantChecks(t *testing.T) {
	src := `
enum Sign { Up, Down }

pub fn main() {
	let x = Sign::Up;
	match x { Sign::Up => 1, Sign::Down => 2 }
}
`
	expectInt(t, src, 1)

	u := compileSource(t, src)
	var checks []inst.MatchSequence
	for _, fn := range u.Functions {
		if !strings.HasSuffix(fn.Item, "main") {
			continue
		}
		for _, in := range fn.Insts {
			if ms, ok := in.(inst.MatchSequence); ok && ms.Len == 0 {
				checks = append(checks, ms)
			}
		}
	}
	if len(checks) != 2 {
		t.Fatalf("expected exactly 2 MatchSequence{len: 0} checks, got %d", len(checks))
	}
	for _, ms := range checks {
		if ms.TypeCheck.Kind != inst.CheckVariant {
			t.Fatalf("expected variant type check, got %s", ms.TypeCheck)
		}
	}
}

func TestPreludeVariants(t *testing.T) {
	expectInt(t, `pub fn main() { match None { None => 2, _ => 1 } }`, 2)
	expectInt(t, `pub fn main() { match Some(3) { Some(n) => n, None => 0 } }`, 3)
	expectInt(t, `pub fn main() { match Err(9) { Ok(n) => n, Err(e) => e + 1 } }`, 10)
}

// --- Language coverage ---

func TestArithmetic(t *testing.T) {
	expectInt(t, `pub fn main() { 2 + 3 * 4 }`, 14)
	expectInt(t, `pub fn main() { (2 + 3) * 4 }`, 20)
	expectInt(t, `pub fn main() { 10 % 3 }`, 1)
	expectInt(t, `pub fn main() { -5 + 2 }`, -3)
}

func TestIfElse(t *testing.T) {
	expectInt(t, `pub fn main() { if 1 < 2 { 10 } else { 20 } }`, 10)
	expectInt(t, `pub fn main() { if 1 > 2 { 10 } else if 2 > 1 { 30 } else { 20 } }`, 30)
}

func TestIfLetCondition(t *testing.T) {
	expectInt(t, `pub fn main() { if let Some(n) = Some(4) { n * 2 } else { 0 } }`, 8)
	expectInt(t, `pub fn main() { if let Some(n) = None { n } else { 7 } }`, 7)
}

func TestWhileLoop(t *testing.T) {
	src := `
pub fn main() {
	let n = 0;
	while n < 5 { n = n + 1; }
	n
}
`
	expectInt(t, src, 5)
}

func TestLoopBreakValue(t *testing.T) {
	src := `
pub fn main() {
	let n = 0;
	loop {
		n = n + 1;
		if n == 4 { break n * 10 }
	}
}
`
	expectInt(t, src, 40)
}

func TestFunctionCalls(t *testing.T) {
	src := `
fn add(a, b) { a + b }
pub fn main() { add(3, add(1, 2)) }
`
	expectInt(t, src, 6)
}

func TestRecursion(t *testing.T) {
	src := `
fn fib(n) { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } }
pub fn main() { fib(10) }
`
	expectInt(t, src, 55)
}

func TestClosureCapture(t *testing.T) {
	src := `
pub fn main() {
	let n = 2;
	let f = |a| a + n;
	f(3)
}
`
	expectInt(t, src, 5)
}

func TestFirstClassFunctions(t *testing.T) {
	src := `
fn double(n) { n * 2 }
fn apply(f, v) { f(v) }
pub fn main() { apply(double, 21) }
`
	expectInt(t, src, 42)
}

func TestTupleStructs(t *testing.T) {
	src := `
struct Pair(a, b);
pub fn main() {
	let p = Pair(3, 4);
	match p { Pair(a, b) => a * b }
}
`
	expectInt(t, src, 12)
}

func TestInstanceFunctions(t *testing.T) {
	src := `
struct Counter { count }

impl Counter {
	fn total(self) { self.count }
	fn bumped(self, by) { self.count + by }
}

pub fn main() {
	let c = Counter { count: 7 };
	c.total() + c.bumped(2)
}
`
	expectInt(t, src, 16)
}

func TestFieldAccess(t *testing.T) {
	expectInt(t, `pub fn main() { let o = #{v: 9}; o.v }`, 9)
	expectInt(t, `pub fn main() { let t = (5, 6); t.1 }`, 6)
}

func TestConstants(t *testing.T) {
	src := `
const BASE = 2;
const SCALED = BASE * 10 + 1;
pub fn main() { SCALED }
`
	expectInt(t, src, 21)
}

func TestConstCycle(t *testing.T) {
	expectError(t, `
const A = B;
const B = A;
pub fn main() { A }
`, diagnostics.ErrQ003)
}

func TestMatchGuards(t *testing.T) {
	src := `
pub fn main() {
	match 5 {
		n if n > 10 => 1,
		n if n > 3 => 2,
		_ => 3,
	}
}
`
	expectInt(t, src, 2)
}

func TestMatchLiterals(t *testing.T) {
	expectInt(t, `pub fn main() { match "two" { "one" => 1, "two" => 2, _ => 0 } }`, 2)
	expectInt(t, `pub fn main() { match 'b' { 'a' => 1, 'b' => 2, _ => 0 } }`, 2)
	expectInt(t, `pub fn main() { match b'x' { b'x' => 1, _ => 0 } }`, 1)
	expectInt(t, `pub fn main() { match () { () => 4 } }`, 4)
}

func TestNoMatchYieldsUnit(t *testing.T) {
	result := runMain(t, `pub fn main() { match 9 { 1 => 2 } }`)
	if _, ok := result.(*runtime.Unit); !ok {
		t.Fatalf("expected unit, got %s", result.Inspect())
	}
}

func TestWildcardImport(t *testing.T) {
	src := `
mod signs {
	pub enum Sign { Up, Down }
}

use signs::Sign::*;

pub fn main() {
	match Up { Up => 1, Down => 2 }
}
`
	expectInt(t, src, 1)
}

func TestStringifyMacro(t *testing.T) {
	result := runMain(t, `pub fn main() { stringify!(1 + 2) }`)
	s, ok := result.(*runtime.Str)
	if !ok {
		t.Fatalf("expected string, got %s", result.Inspect())
	}
	if s.Value != "1 + 2" {
		t.Fatalf("expected %q, got %q", "1 + 2", s.Value)
	}
}

func TestConcatMacro(t *testing.T) {
	result := runMain(t, `pub fn main() { concat!("a", "b", 3) }`)
	s, ok := result.(*runtime.Str)
	if !ok {
		t.Fatalf("expected string, got %s", result.Inspect())
	}
	if s.Value != "ab3" {
		t.Fatalf("expected %q, got %q", "ab3", s.Value)
	}
}

func TestAsyncBlockRunsImmediate(t *testing.T) {
	expectInt(t, `pub fn main() { let n = 20; async { n + 1 } }`, 21)
}

func TestMissingFunction(t *testing.T) {
	expectError(t, `pub fn main() { missing(1) }`, diagnostics.ErrQ001)
}

func TestBreakOutsideLoop(t *testing.T) {
	expectError(t, `pub fn main() { break }`, diagnostics.ErrC013)
}

func TestArityMismatch(t *testing.T) {
	expectError(t, `
struct Pair(a, b);
pub fn main() { Pair(1) }
`, diagnostics.ErrC004)
}
