package items

// Items is an item-path builder. The worker and compiler push a component
// when entering a named or synthesised region and pop it on the way out; the
// current path is available at any point through Item().
type Items struct {
	components []Component
	// counters tracks how many synthesised components of each kind have
	// been allocated at each depth, so sibling blocks and closures number
	// independently and deterministically across passes.
	counters []map[ComponentKind]int
}

// NewItems creates a builder seeded with the given base path.
func NewItems(base Item) *Items {
	return &Items{
		components: append([]Component(nil), base.Components()...),
		counters:   []map[ComponentKind]int{{}},
	}
}

// Guard is returned on push and asserted on pop.
type Guard int

func (b *Items) push(c Component) Guard {
	b.components = append(b.components, c)
	b.counters = append(b.counters, map[ComponentKind]int{})
	return Guard(len(b.components))
}

// PushName enters a named component.
func (b *Items) PushName(name string) Guard {
	return b.push(Name(name))
}

// PushBlock enters a synthesised anonymous-block component.
func (b *Items) PushBlock() Guard {
	return b.push(b.next(ComponentBlock))
}

// PushClosure enters a synthesised closure component.
func (b *Items) PushClosure() Guard {
	return b.push(b.next(ComponentClosure))
}

// PushAsyncBlock enters a synthesised async-block component.
func (b *Items) PushAsyncBlock() Guard {
	return b.push(b.next(ComponentAsyncBlock))
}

// PushMacro enters a synthesised macro-expansion component.
func (b *Items) PushMacro() Guard {
	return b.push(b.next(ComponentMacro))
}

func (b *Items) next(kind ComponentKind) Component {
	depth := b.counters[len(b.counters)-1]
	c := Component{Kind: kind, Index: depth[kind]}
	depth[kind]++
	return c
}

// Pop leaves the most recently entered component. The guard must match the
// one returned by the corresponding push; a mismatch means pushes and pops
// are unbalanced, which is a bug in the caller.
func (b *Items) Pop(g Guard) bool {
	if int(g) != len(b.components) || len(b.components) == 0 {
		return false
	}
	b.components = b.components[:len(b.components)-1]
	b.counters = b.counters[:len(b.counters)-1]
	return true
}

// Item returns the current path as an item.
func (b *Items) Item() Item {
	return ItemOf(b.components...)
}
