package runtime

import (
	"fmt"

	"github.com/funvibe/quill/internal/hash"
	"github.com/funvibe/quill/internal/inst"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/token"
)

// Handler is a native function implementation.
type Handler func(args []Value) (Value, error)

// MacroHandler expands a macro invocation: it receives the raw argument
// token stream and produces the replacement stream.
type MacroHandler func(stream *token.Stream) (*token.Stream, error)

// Context is the host-provided, read-only collaborator consulted during
// compilation and execution: native function registry, built-in type checks,
// meta lookup, and builtin macros.
type Context struct {
	functions  map[hash.Hash]Handler
	macros     map[string]MacroHandler
	metas      map[string]*CompileMeta
	typeChecks map[string]inst.TypeCheck
	names      *items.Names
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{
		functions:  make(map[hash.Hash]Handler),
		macros:     make(map[string]MacroHandler),
		metas:      make(map[string]*CompileMeta),
		typeChecks: make(map[string]inst.TypeCheck),
		names:      items.NewNames(),
	}
}

// Install registers everything a module declares.
func (c *Context) Install(m *Module) error {
	for _, fn := range m.functions {
		h := hash.Type(fn.item)
		if _, ok := c.functions[h]; ok {
			return fmt.Errorf("conflicting function `%s`", fn.item)
		}
		c.functions[h] = fn.handler
		c.names.Insert(fn.item)
		if fn.meta != nil {
			c.metas[fn.item.Key()] = fn.meta
		}
	}
	for _, mc := range m.macros {
		key := mc.item.Key()
		if _, ok := c.macros[key]; ok {
			return fmt.Errorf("conflicting macro `%s`", mc.item)
		}
		c.macros[key] = mc.handler
		c.names.Insert(mc.item)
	}
	for _, t := range m.types {
		key := t.meta.Item.Key()
		if _, ok := c.metas[key]; ok {
			return fmt.Errorf("conflicting type `%s`", t.meta.Item)
		}
		c.metas[key] = t.meta
		c.names.Insert(t.meta.Item)
		if t.check != nil {
			c.typeChecks[key] = *t.check
		}
		if t.constructor != nil {
			c.functions[hash.Type(t.meta.Item)] = t.constructor
		}
	}
	for _, fn := range m.instanceFns {
		c.functions[fn.hash] = fn.handler
	}
	return nil
}

// LookupMeta returns the meta registered for the item, if any.
func (c *Context) LookupMeta(it items.Item) *CompileMeta {
	return c.metas[it.Key()]
}

// TypeCheckFor returns the host-substituted type check for the item, if one
// was registered.
func (c *Context) TypeCheckFor(it items.Item) (inst.TypeCheck, bool) {
	check, ok := c.typeChecks[it.Key()]
	return check, ok
}

// Lookup returns the native handler registered at the hash.
func (c *Context) Lookup(h hash.Hash) (Handler, bool) {
	handler, ok := c.functions[h]
	return handler, ok
}

// LookupMacro returns the macro handler for the item.
func (c *Context) LookupMacro(it items.Item) (MacroHandler, bool) {
	handler, ok := c.macros[it.Key()]
	return handler, ok
}

// ContainsPrefix reports whether any registered name starts with the item.
func (c *Context) ContainsPrefix(it items.Item) bool {
	return c.names.ContainsPrefix(it)
}

// IterComponents enumerates the known components directly under the item;
// used when expanding wildcard imports from context modules.
func (c *Context) IterComponents(it items.Item) []items.Component {
	return c.names.IterComponents(it)
}
