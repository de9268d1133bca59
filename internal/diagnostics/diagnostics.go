// Package diagnostics defines the coded errors and warnings surfaced by the
// Quill compiler. Every diagnostic carries a stable code, a rendered message,
// and enough position information to point back into the source set.
package diagnostics

import (
	"fmt"

	"github.com/funvibe/quill/internal/token"
)

// ErrorCode is a stable diagnostic code. Codes are grouped by compiler stage:
// P = parse, R = resolve, Q = query, C = compile, W = warning.
type ErrorCode string

const (
	// Parse errors
	ErrP001 ErrorCode = "P001" // generic syntax error
	ErrP002 ErrorCode = "P002" // unexpected token
	ErrP003 ErrorCode = "P003" // unsupported attribute placement
	ErrP004 ErrorCode = "P004" // expected macro close delimiter
	ErrP005 ErrorCode = "P005" // unterminated literal
	ErrP006 ErrorCode = "P006" // invalid number literal
	ErrP007 ErrorCode = "P007" // item attributes without a following item
	ErrP008 ErrorCode = "P008" // item visibility without a following item

	// Resolve errors
	ErrR001 ErrorCode = "R001" // bad static string
	ErrR002 ErrorCode = "R002" // unresolved identifier

	// Query errors
	ErrQ001 ErrorCode = "Q001" // missing item
	ErrQ002 ErrorCode = "Q002" // missing type
	ErrQ003 ErrorCode = "Q003" // cyclic constant evaluation
	ErrQ004 ErrorCode = "Q004" // unsupported meta pattern
	ErrQ005 ErrorCode = "Q005" // unsupported constant expression

	// Compile errors
	ErrC001 ErrorCode = "C001" // unsupported value
	ErrC002 ErrorCode = "C002" // unsupported type
	ErrC003 ErrorCode = "C003" // unsupported pattern
	ErrC004 ErrorCode = "C004" // unsupported argument count
	ErrC005 ErrorCode = "C005" // duplicate object key
	ErrC006 ErrorCode = "C006" // literal key is not a field
	ErrC007 ErrorCode = "C007" // float literal in pattern
	ErrC008 ErrorCode = "C008" // unsupported binding
	ErrC009 ErrorCode = "C009" // missing module
	ErrC010 ErrorCode = "C010" // missing prelude module
	ErrC011 ErrorCode = "C011" // unsupported instance function
	ErrC012 ErrorCode = "C012" // missing local variable
	ErrC013 ErrorCode = "C013" // break outside a loop
	ErrC014 ErrorCode = "C014" // macro expansion failed
	ErrC015 ErrorCode = "C015" // internal compiler invariant broken

	// Warnings
	WarnW001 ErrorCode = "W001" // value not used
	WarnW002 ErrorCode = "W002" // let pattern might diverge
	WarnW003 ErrorCode = "W003" // unnecessary semicolon
)

// messages maps codes to their format templates.
var messages = map[ErrorCode]string{
	ErrP001: "syntax error: %s",
	ErrP002: "unexpected token `%s`, expected %s",
	ErrP003: "attributes are not supported in this position",
	ErrP004: "expected macro close delimiter `%s`, found `%s`",
	ErrP005: "unterminated %s literal",
	ErrP006: "invalid number literal `%s`",
	ErrP007: "item attributes without an item to apply them to",
	ErrP008: "item visibility without an item to apply it to",

	ErrR001: "unable to resolve static string: %s",
	ErrR002: "unable to resolve identifier `%s`",

	ErrQ001: "missing item `%s`",
	ErrQ002: "missing type for item `%s`",
	ErrQ003: "constant `%s` refers to itself while being evaluated",
	ErrQ004: "item `%s` cannot be used as a pattern",
	ErrQ005: "unsupported constant expression",

	ErrC001: "`%s` cannot be used as a value",
	ErrC002: "`%s` does not have a type",
	ErrC003: "unsupported pattern",
	ErrC004: "wrong number of arguments for `%s`: expected %d, got %d",
	ErrC005: "duplicate key `%s` in object pattern",
	ErrC006: "`%s` is not a field of `%s`",
	ErrC007: "floating point numbers cannot be used in patterns",
	ErrC008: "unsupported binding",
	ErrC009: "missing module `%s`",
	ErrC010: "missing prelude module `%s`",
	ErrC011: "cannot define an instance function on `%s`",
	ErrC012: "no local variable `%s` in scope",
	ErrC013: "`break` outside of a loop",
	ErrC014: "macro expansion failed: %s",
	ErrC015: "internal compiler error: %s",

	WarnW001: "value produced here is not used",
	WarnW002: "pattern might not match; binding diverges on mismatch",
	WarnW003: "unnecessary semicolon",
}

// DiagnosticError is a fatal compiler diagnostic.
type DiagnosticError struct {
	Code     ErrorCode
	Message  string
	File     string
	Line     int
	Column   int
	Span     token.Span
	SourceID int
}

// NewError builds a diagnostic from a code, the offending token, and the
// template arguments for the code's message.
func NewError(code ErrorCode, tok token.Token, args ...interface{}) *DiagnosticError {
	return &DiagnosticError{
		Code:    code,
		Message: fmt.Sprintf(messages[code], args...),
		Line:    tok.Line,
		Column:  tok.Column,
		Span:    tok.Span,
	}
}

// NewErrorSpan builds a diagnostic anchored to a span when no token is at hand.
func NewErrorSpan(code ErrorCode, span token.Span, args ...interface{}) *DiagnosticError {
	return &DiagnosticError{
		Code:    code,
		Message: fmt.Sprintf(messages[code], args...),
		Span:    span,
	}
}

// WithSource attaches the source file name and id. Returns the receiver so
// call sites can tack it on while returning.
func (e *DiagnosticError) WithSource(file string, sourceID int) *DiagnosticError {
	e.File = file
	e.SourceID = sourceID
	return e
}

func (e *DiagnosticError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: [%s] %s", e.File, e.Line, e.Column, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Warning is a non-fatal diagnostic. Warnings accumulate and are surfaced
// alongside a successful build.
type Warning struct {
	Code     ErrorCode
	Message  string
	Span     token.Span
	SourceID int
	// Context is the span of the surrounding construct, when known.
	Context *token.Span
}

func (w *Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}

// Warnings collects warnings for a whole run.
type Warnings struct {
	list []*Warning
}

// NewWarnings creates an empty warning collection.
func NewWarnings() *Warnings {
	return &Warnings{}
}

// Add records a warning.
func (w *Warnings) Add(code ErrorCode, span token.Span, sourceID int, context *token.Span) {
	w.list = append(w.list, &Warning{
		Code:     code,
		Message:  messages[code],
		Span:     span,
		SourceID: sourceID,
		Context:  context,
	})
}

// List returns the accumulated warnings in emission order.
func (w *Warnings) List() []*Warning {
	return w.list
}

// Empty reports whether any warnings were recorded.
func (w *Warnings) Empty() bool {
	return len(w.list) == 0
}
