package unit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/token"
)

func TestStaticStringDedup(t *testing.T) {
	b := NewBuilder()

	a := b.NewStaticString("hello")
	if again := b.NewStaticString("hello"); again != a {
		t.Errorf("duplicate string got slot %d, want %d", again, a)
	}
	if other := b.NewStaticString("world"); other == a {
		t.Error("distinct strings share a slot")
	}
}

func TestObjectKeyDedup(t *testing.T) {
	b := NewBuilder()

	a := b.NewStaticObjectKeys([]string{"x", "y"})
	if again := b.NewStaticObjectKeys([]string{"x", "y"}); again != a {
		t.Error("identical key sets should share a slot")
	}
	if other := b.NewStaticObjectKeys([]string{"y", "x"}); other == a {
		t.Error("differently ordered key sets should not share a slot")
	}
	// Joined-text collisions must not conflate distinct sets.
	first := b.NewStaticObjectKeys([]string{"ab"})
	second := b.NewStaticObjectKeys([]string{"a", "b"})
	if first == second {
		t.Error("key sets [ab] and [a b] share a slot")
	}
}

func TestConvertPath(t *testing.T) {
	b := WithDefaultPrelude()
	b.NewImport(items.NewItem("m", "Sign"), items.NewItem("signs", "Sign"), nil, 0)

	path := func(types []token.TokenType, lexemes []string) *ast.Path {
		segments := make([]token.Token, len(types))
		for i := range types {
			segments[i] = token.Token{Type: types[i], Lexeme: lexemes[i]}
		}
		return &ast.Path{Segments: segments}
	}

	// Imported name, visible from inside the module.
	got := b.ConvertPath(items.NewItem("m", "f"), path(
		[]token.TokenType{token.IDENT, token.IDENT},
		[]string{"Sign", "Up"},
	))
	if !got.Equal(items.NewItem("signs", "Sign", "Up")) {
		t.Errorf("import resolution = %s", got)
	}

	// Prelude name.
	got = b.ConvertPath(items.NewItem("m", "f"), path(
		[]token.TokenType{token.IDENT},
		[]string{"Some"},
	))
	if !got.Equal(items.NewItem("std", "option", "Option", "Some")) {
		t.Errorf("prelude resolution = %s", got)
	}

	// `crate` roots the path.
	got = b.ConvertPath(items.NewItem("m", "f"), path(
		[]token.TokenType{token.CRATE, token.IDENT},
		[]string{"crate", "top"},
	))
	if !got.Equal(items.NewItem("top")) {
		t.Errorf("crate resolution = %s", got)
	}

	// Unknown names stay relative for the outward meta walk.
	got = b.ConvertPath(items.NewItem("m", "f"), path(
		[]token.TokenType{token.IDENT},
		[]string{"local"},
	))
	if !got.Equal(items.NewItem("local")) {
		t.Errorf("relative resolution = %s", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.AddSource("main.quill")
	slot := b.NewStaticString("greeting")

	a := b.NewAssembly(0)
	a.Push(inst.String{Slot: slot}, token.Span{Start: 1, End: 5})
	a.Push(inst.Return{}, token.Span{Start: 5, End: 6})
	fin, err := a.Finalise()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.NewFunction(0, items.NewItem("main"), 0, fin, CallImmediate, nil); err != nil {
		t.Fatal(err)
	}

	built, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if built.BuildID == "" {
		t.Fatal("expected a build id")
	}

	data, err := built.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(built, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch:\n%s", diff)
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	if _, err := Deserialize([]byte("nope")); err == nil {
		t.Error("short input accepted")
	}
	if _, err := Deserialize([]byte("XXXX\x01garbage")); err == nil {
		t.Error("bad magic accepted")
	}
	if _, err := Deserialize([]byte("QUNT\x7fgarbage")); err == nil {
		t.Error("bad version accepted")
	}
}
