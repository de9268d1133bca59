package compiler_test

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/funvibe/quill/internal/compiler"
	"github.com/funvibe/quill/internal/config"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/runtime/modules"
	"github.com/funvibe/quill/internal/source"
	"github.com/funvibe/quill/internal/unit"
	"github.com/funvibe/quill/internal/vm"
)

// loadFixture reads a txtar archive into a source set. The file named
// main.quill becomes source zero.
func loadFixture(t *testing.T, name string) *source.Sources {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	archive := txtar.Parse(data)

	sources := source.NewSources()
	for _, file := range archive.Files {
		if file.Name == "main.quill" {
			sources.Insert(source.New(file.Name, string(file.Data)))
		}
	}
	for _, file := range archive.Files {
		if file.Name != "main.quill" {
			sources.Insert(source.New(file.Name, string(file.Data)))
		}
	}
	if sources.Len() == 0 {
		t.Fatalf("fixture %s has no sources", name)
	}
	return sources
}

func compileFixture(t *testing.T, name string) (*unit.Unit, *runtime.Context, *diagnostics.DiagnosticError) {
	t.Helper()
	ctx, cerr := modules.DefaultContext()
	if cerr != nil {
		t.Fatal(cerr)
	}
	sources := loadFixture(t, name)
	u, _, err := compiler.LoadSources(ctx, sources, config.DefaultOptions())
	return u, ctx, err
}

func runFixture(t *testing.T, name string) runtime.Value {
	t.Helper()
	u, ctx, err := compileFixture(t, name)
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

func TestFileModules(t *testing.T) {
	result := runFixture(t, "modules.txtar")
	n, ok := result.(*runtime.Integer)
	if !ok || n.Value != 12 {
		t.Fatalf("expected 12, got %s", result.Inspect())
	}
}

// A wildcard import is re-queued until no wildcard can add a new name, so
// declaration order does not matter.
func TestWildcardImportFixedPoint(t *testing.T) {
	result := runFixture(t, "wildcard.txtar")
	n, ok := result.(*runtime.Integer)
	if !ok || n.Value != 3 {
		t.Fatalf("expected 3, got %s", result.Inspect())
	}
}

func TestMissingImportIsFatal(t *testing.T) {
	_, _, err := compileFixture(t, "missing_import.txtar")
	if err == nil {
		t.Fatal("expected a missing-module error")
	}
	if err.Code != diagnostics.ErrC009 {
		t.Fatalf("expected %s, got %s (%s)", diagnostics.ErrC009, err.Code, err.Message)
	}
}

func TestMissingModuleFile(t *testing.T) {
	_, err := tryCompile(`
mod nowhere;

pub fn main() { () }
`)
	if err == nil {
		t.Fatal("expected a missing-module error")
	}
	if err.Code != diagnostics.ErrC009 {
		t.Fatalf("expected %s, got %s", diagnostics.ErrC009, err.Code)
	}
}
