package items

import "testing"

func TestItemBasics(t *testing.T) {
	it := NewItem("a", "b", "c")

	if it.String() != "a::b::c" {
		t.Errorf("String = %q", it.String())
	}
	if !it.Equal(NewItem("a", "b", "c")) {
		t.Error("structural equality failed")
	}
	if !it.HasPrefix(NewItem("a", "b")) {
		t.Error("prefix check failed")
	}
	if it.HasPrefix(NewItem("a", "x")) {
		t.Error("bad prefix accepted")
	}

	parent, ok := it.Pop()
	if !ok || !parent.Equal(NewItem("a", "b")) {
		t.Errorf("Pop = %s", parent)
	}

	if _, ok := it.AsLocal(); ok {
		t.Error("multi-component item should not be local")
	}
	if name, ok := NewItem("x").AsLocal(); !ok || name != "x" {
		t.Error("single-component item should be local")
	}
}

func TestItemsBuilder(t *testing.T) {
	b := NewItems(NewItem("root"))

	g1 := b.PushName("outer")
	if b.Item().String() != "root::outer" {
		t.Errorf("Item = %s", b.Item())
	}

	g2 := b.PushBlock()
	if b.Item().String() != "root::outer::$block0" {
		t.Errorf("Item = %s", b.Item())
	}
	b.Pop(g2)

	// Blocks and closures number independently.
	g3 := b.PushClosure()
	if b.Item().String() != "root::outer::$closure0" {
		t.Errorf("Item = %s", b.Item())
	}
	b.Pop(g3)

	g4 := b.PushBlock()
	if b.Item().String() != "root::outer::$block1" {
		t.Errorf("Item = %s", b.Item())
	}
	b.Pop(g4)

	if !b.Pop(g1) {
		t.Error("guarded pop failed")
	}
	if b.Pop(g1) {
		t.Error("double pop accepted")
	}
}

func TestNamesTrie(t *testing.T) {
	n := NewNames()

	if n.Contains(NewItem("test")) {
		t.Error("empty trie contains test")
	}
	if n.Insert(NewItem("test")) {
		t.Error("first insert reported existing")
	}
	if !n.Contains(NewItem("test")) {
		t.Error("inserted name missing")
	}
	if !n.Insert(NewItem("test")) {
		t.Error("second insert did not report existing")
	}

	n.Insert(NewItem("std", "option", "Option", "Some"))
	n.Insert(NewItem("std", "option", "Option", "None"))

	if !n.ContainsPrefix(NewItem("std", "option")) {
		t.Error("prefix missing")
	}
	if n.ContainsPrefix(NewItem("std", "result")) {
		t.Error("absent prefix found")
	}
	// The prefix node itself is not terminal.
	if n.Contains(NewItem("std", "option")) {
		t.Error("non-terminal node reported as contained")
	}

	children := n.IterComponents(NewItem("std", "option", "Option"))
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	seen := map[string]bool{}
	for _, c := range children {
		seen[c.Str] = true
	}
	if !seen["Some"] || !seen["None"] {
		t.Errorf("children = %v", children)
	}
}
