package modules_test

import (
	"bytes"
	"testing"

	"github.com/funvibe/quill/internal/compiler"
	"github.com/funvibe/quill/internal/config"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/runtime/modules"
	"github.com/funvibe/quill/internal/source"
	"github.com/funvibe/quill/internal/vm"
)

func runScript(t *testing.T, src string) runtime.Value {
	t.Helper()
	ctx, err := modules.DefaultContext()
	if err != nil {
		t.Fatal(err)
	}
	sources := source.NewSources()
	sources.Insert(source.New("main.quill", src))
	u, _, derr := compiler.LoadSources(ctx, sources, config.DefaultOptions())
	if derr != nil {
		t.Fatalf("compilation failed: %s", derr)
	}
	machine := vm.New(ctx, u)
	result, rerr := machine.Call([]string{"main"})
	if rerr != nil {
		t.Fatalf("vm error: %s", rerr)
	}
	return result
}

func TestDbRoundTrip(t *testing.T) {
	src := `
use std::db;

pub fn main() {
	let h = db::open(":memory:");
	db::exec(h, "create table t (n integer)");
	db::exec(h, "insert into t (n) values (?), (?)", 2, 3);
	let rows = db::query(h, "select sum(n) as total from t");
	let out = match rows { [row] => row.total, _ => 0 };
	db::close(h);
	out
}
`
	result := runScript(t, src)
	n, ok := result.(*runtime.Integer)
	if !ok || n.Value != 5 {
		t.Fatalf("expected 5, got %s", result.Inspect())
	}
}

func TestDbRowsAffected(t *testing.T) {
	src := `
use std::db;

pub fn main() {
	let h = db::open(":memory:");
	db::exec(h, "create table t (n integer)");
	let count = db::exec(h, "insert into t (n) values (1), (2), (3)");
	db::close(h);
	count
}
`
	result := runScript(t, src)
	n, ok := result.(*runtime.Integer)
	if !ok || n.Value != 3 {
		t.Fatalf("expected 3, got %s", result.Inspect())
	}
}

func TestDbUnknownHandle(t *testing.T) {
	src := `
use std::db;

pub fn main() { db::exec(99_000, "select 1") }
`
	ctx, err := modules.DefaultContext()
	if err != nil {
		t.Fatal(err)
	}
	sources := source.NewSources()
	sources.Insert(source.New("main.quill", src))
	u, _, derr := compiler.LoadSources(ctx, sources, config.DefaultOptions())
	if derr != nil {
		t.Fatalf("compilation failed: %s", derr)
	}
	machine := vm.New(ctx, u)
	if _, rerr := machine.Call([]string{"main"}); rerr == nil {
		t.Fatal("expected an unknown-handle error")
	}
}

func TestPrintWritesToStdout(t *testing.T) {
	var buf bytes.Buffer
	old := modules.Stdout
	modules.Stdout = &buf
	defer func() { modules.Stdout = old }()

	runScript(t, `pub fn main() { println("hi"); println(41 + 1) }`)
	if buf.String() != "hi\n42\n" {
		t.Fatalf("output = %q", buf.String())
	}
}
