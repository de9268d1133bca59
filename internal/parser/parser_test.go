package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/token"
)

// parse is a test helper: parses input and fails on errors.
func parse(t *testing.T, input string) *ast.File {
	t.Helper()
	p := New(input)
	file, errs := p.ParseFile()
	if len(errs) > 0 {
		t.Fatalf("parse failed: %s\ninput: %s", errs[0], input)
	}
	return file
}

// expectParseError asserts parsing fails with the given code.
func expectParseError(t *testing.T, input string, code diagnostics.ErrorCode) {
	t.Helper()
	p := New(input)
	_, errs := p.ParseFile()
	if len(errs) == 0 {
		t.Fatalf("expected error %s, parse succeeded\ninput: %s", code, input)
	}
	if errs[0].Code != code {
		t.Fatalf("expected error %s, got %s (%s)", code, errs[0].Code, errs[0].Message)
	}
}

func TestParseFunction(t *testing.T) {
	file := parse(t, `pub fn add(a, b) { a + b }`)
	if len(file.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(file.Items))
	}
	fn, ok := file.Items[0].(*ast.ItemFn)
	if !ok {
		t.Fatalf("expected ItemFn, got %T", file.Items[0])
	}
	if fn.Name.Lexeme != "add" {
		t.Errorf("name = %q, want add", fn.Name.Lexeme)
	}
	if fn.Visibility == nil {
		t.Error("expected pub visibility")
	}
	if len(fn.Args) != 2 {
		t.Errorf("args = %d, want 2", len(fn.Args))
	}
}

func TestParseStructBodies(t *testing.T) {
	file := parse(t, `
struct Unit;
struct Tup(a, b);
struct Rec { x, y }
`)
	if len(file.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(file.Items))
	}
	kinds := []ast.BodyKind{ast.UnitBody, ast.TupleBody, ast.RecordBody}
	for i, want := range kinds {
		item := file.Items[i].(*ast.ItemStruct)
		if item.Body.Kind != want {
			t.Errorf("item %d: body kind = %d, want %d", i, item.Body.Kind, want)
		}
	}
}

func TestParseEnum(t *testing.T) {
	file := parse(t, `enum Shape { Dot, Line(a, b), Rect { w, h } }`)
	enum := file.Items[0].(*ast.ItemEnum)
	if len(enum.Variants) != 3 {
		t.Fatalf("variants = %d, want 3", len(enum.Variants))
	}
	if enum.Variants[1].Body.Kind != ast.TupleBody {
		t.Error("Line should have a tuple body")
	}
	if enum.Variants[2].Body.Kind != ast.RecordBody {
		t.Error("Rect should have a record body")
	}
}

func TestParseUseForms(t *testing.T) {
	file := parse(t, `
use std::db;
use std::option::Option::*;
use signs::Sign as S;
`)
	wildcard := file.Items[1].(*ast.ItemUse)
	if wildcard.Path.Star == nil {
		t.Error("expected wildcard import")
	}
	aliased := file.Items[2].(*ast.ItemUse)
	if aliased.Path.Alias == nil || aliased.Path.Alias.Lexeme != "S" {
		t.Error("expected alias S")
	}
}

func TestDanglingAttributes(t *testing.T) {
	expectParseError(t, "fn main() {}\n#[test]", diagnostics.ErrP007)
}

func TestDanglingVisibility(t *testing.T) {
	expectParseError(t, "fn main() {}\npub", diagnostics.ErrP008)
}

func TestDanglingInsideMod(t *testing.T) {
	expectParseError(t, "mod m { pub }", diagnostics.ErrP008)
	expectParseError(t, "mod m { #[x] }", diagnostics.ErrP007)
}

func TestMacroDelimiterMismatch(t *testing.T) {
	expectParseError(t, "fn main() { concat!(\"a\"] }", diagnostics.ErrP004)
}

func TestStatementsNeedSemicolons(t *testing.T) {
	expectParseError(t, "fn main() { 1 2 }", diagnostics.ErrP002)
}

func TestMatchScrutineeBraces(t *testing.T) {
	// `x` followed by `{` opens the match body, not a struct literal.
	file := parse(t, `fn f(x) { match x { _ => 1 } }`)
	fn := file.Items[0].(*ast.ItemFn)
	stmt := fn.Body.Stmts[0].(*ast.StmtExpr)
	if _, ok := stmt.Expr.(*ast.ExprMatch); !ok {
		t.Fatalf("expected match expression, got %T", stmt.Expr)
	}
}

// streamComparer lets cmp look through the retained macro token streams.
var streamComparer = cmp.Comparer(func(a, b *token.Stream) bool {
	at, bt := a.Tokens(), b.Tokens()
	if len(at) != len(bt) {
		return false
	}
	for i := range at {
		if at[i] != bt[i] {
			return false
		}
	}
	return true
})

// Round-trip: parsing, rendering back to tokens, and re-parsing yields a
// structurally equal tree.
func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		`pub fn main() { true || false }`,
		`fn add(a, b) { a + b }`,
		`async fn poll() { () }`,
		`struct Pair(a, b);`,
		`struct Point { x, y }`,
		`enum Shape { Dot, Line(a, b), Rect { w, h } }`,
		`const LIMIT = 10 * 2;`,
		`use std::db;`,
		`use std::option::Option::*;`,
		`use signs::Sign as S;`,
		`mod inner { fn hidden() { 1 } }`,
		`mod outer;`,
		`impl Counter { fn total(self) { self.count } }`,
		`fn f() { let v = [1, 2.5, "s", 'c', b'x']; v }`,
		`fn f() { let t = (1, 2); let one = (1,); t.0 }`,
		`fn f() { #{x: 1, y} }`,
		`fn f() { Point { x: 1, y: 2 } }`,
		`fn f(x) { match x { [a, b, ..] => a + b, (a,) => a, _ => 0 } }`,
		`fn f(x) { match x { Some(n) if n > 0 => n, None => 0, #{k: 1, ..} => 1 } }`,
		`fn f(x) { match x { S { a, c } => (), "lit" => (), 'c' => (), b'q' => (), -1 => () } }`,
		`fn f() { if let Some(n) = probe() { n } else if true { 1 } else { 2 } }`,
		`fn f() { while n < 5 { n = n + 1; } }`,
		`fn f() { loop { break 10 } }`,
		`fn f() { let g = |a, b| a + b; let h = || 1; g(h(), 2) }`,
		`fn f() { async { 1 } }`,
		`fn f() { stringify!(1 + 2) }`,
		`make_tests!{ fn a() { 1 } }`,
		`#[cold] pub fn rare() { () }`,
		`fn f() { return }`,
		`fn f(x) { return x * 2 }`,
		`fn f() { !true }`,
		`fn f() { crate::a::b(self::c) }`,
	}

	for _, input := range inputs {
		first, errs := New(input).ParseFile()
		if len(errs) > 0 {
			t.Fatalf("first parse failed: %s\ninput: %s", errs[0], input)
		}

		stream := token.NewStream(nil)
		first.WriteTo(stream)

		second, errs := FromStream(stream).ParseFile()
		if len(errs) > 0 {
			t.Fatalf("second parse failed: %s\ninput: %s", errs[0], input)
		}

		if diff := cmp.Diff(first, second, streamComparer); diff != "" {
			t.Errorf("round trip mismatch for %q:\n%s", input, diff)
		}
	}
}
