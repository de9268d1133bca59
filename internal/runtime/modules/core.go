// Package modules provides the standard native modules installed into the
// default context: the `std` core, options and results, the SQLite-backed
// `std::db` module, and the builtin macros.
package modules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/token"
)

// Stdout is where print and println write; tests swap it out.
var Stdout io.Writer = os.Stdout

// Core constructs the `std` module.
func Core() *runtime.Module {
	m := runtime.NewModule("std")

	m.Type("unit")
	m.Type("bool")
	m.Type("int")
	m.Type("float")
	m.Type("byte")
	m.Type("char")
	m.Type("string")
	m.Type("vec")
	m.Type("tuple")
	m.Type("object")

	m.Function("print", func(args []runtime.Value) (runtime.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("print expects 1 argument, got %d", len(args))
		}
		fmt.Fprint(Stdout, display(args[0]))
		return &runtime.Unit{}, nil
	})

	m.Function("println", func(args []runtime.Value) (runtime.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("println expects 1 argument, got %d", len(args))
		}
		fmt.Fprintln(Stdout, display(args[0]))
		return &runtime.Unit{}, nil
	})

	m.Function("panic", func(args []runtime.Value) (runtime.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("panic expects 1 argument, got %d", len(args))
		}
		return nil, fmt.Errorf("panic: %s", display(args[0]))
	})

	m.Function("dbg", func(args []runtime.Value) (runtime.Value, error) {
		for _, arg := range args {
			fmt.Fprintln(Stdout, arg.Inspect())
		}
		return &runtime.Unit{}, nil
	})

	m.Macro("stringify", macroStringify)
	m.Macro("concat", macroConcat)

	return m
}

// display renders a value for user-facing output: strings print bare,
// everything else uses its inspected form.
func display(v runtime.Value) string {
	if s, ok := v.(*runtime.Str); ok {
		return s.Value
	}
	return v.Inspect()
}

// macroStringify renders its argument tokens back into a string literal.
func macroStringify(stream *token.Stream) (*token.Stream, error) {
	var parts []string
	for _, tok := range stream.Tokens() {
		parts = append(parts, tok.Lexeme)
	}
	joined := strings.Join(parts, " ")

	out := token.NewStream(nil)
	out.Push(token.Token{
		Type:   token.STRING,
		Lexeme: fmt.Sprintf("%q", joined),
	})
	return out, nil
}

// macroConcat joins its comma-separated string literal arguments into one
// string literal.
func macroConcat(stream *token.Stream) (*token.Stream, error) {
	var b strings.Builder
	for _, tok := range stream.Tokens() {
		switch tok.Type {
		case token.STRING:
			body := tok.Lexeme
			if len(body) >= 2 {
				body = body[1 : len(body)-1]
			}
			b.WriteString(body)
		case token.INT:
			b.WriteString(tok.Lexeme)
		case token.COMMA:
			// separator
		default:
			return nil, fmt.Errorf("concat! expects string or integer literals, got `%s`", tok.Lexeme)
		}
	}

	out := token.NewStream(nil)
	out.Push(token.Token{
		Type:   token.STRING,
		Lexeme: fmt.Sprintf("%q", b.String()),
	})
	return out, nil
}

// Option constructs the `std::option` module.
func Option() *runtime.Module {
	m := runtime.NewModule("std", "option")
	m.Enum("Option").
		TupleVariant("Some", 1).
		TupleVariant("None", 0)
	return m
}

// Result constructs the `std::result` module.
func Result() *runtime.Module {
	m := runtime.NewModule("std", "result")
	m.Enum("Result").
		TupleVariant("Ok", 1).
		TupleVariant("Err", 1)
	return m
}

// DefaultContext builds a context with every standard module installed.
func DefaultContext() (*runtime.Context, error) {
	ctx := runtime.NewContext()
	for _, m := range []*runtime.Module{Core(), Option(), Result(), Db()} {
		if err := ctx.Install(m); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}
