package compiler

import (
	"fmt"

	"github.com/funvibe/quill/internal/token"
)

// Scope is one lexical region of locals. Named locals and anonymous slots
// share the same numbering; LocalVarCount always equals the number of slots
// the scope owns, which is what stack-cleanup instructions are synthesised
// from.
type Scope struct {
	locals map[string]int
	// LocalVarCount is the number of slots owned by this scope.
	LocalVarCount int
	// totalVarCount is the number of slots owned by this scope and every
	// scope under it; a declared slot's offset is the total at declaration
	// time.
	totalVarCount int
}

func newScope() *Scope {
	return &Scope{locals: make(map[string]int)}
}

// Child creates a scope that sees the parent's slot numbering but tracks
// its own declarations independently.
func (s *Scope) Child() *Scope {
	return &Scope{
		locals:        make(map[string]int),
		totalVarCount: s.totalVarCount,
	}
}

// DeclVar declares a named local on top of the stack and returns its slot.
// A duplicate name shadows; it does not fail.
func (s *Scope) DeclVar(name string, span token.Span) int {
	offset := s.totalVarCount
	s.locals[name] = offset
	s.totalVarCount++
	s.LocalVarCount++
	return offset
}

// DeclAnon declares an anonymous slot on top of the stack. The returned
// slot is stable for the scope's lifetime. Operand temporaries are declared
// the same way and undeclared once consumed, which keeps every later slot
// offset aligned with the real stack.
func (s *Scope) DeclAnon(span token.Span) int {
	offset := s.totalVarCount
	s.totalVarCount++
	s.LocalVarCount++
	return offset
}

// UndeclAnon removes the top n anonymous slots from the accounting after
// the instructions that consumed them.
func (s *Scope) UndeclAnon(n int) {
	s.totalVarCount -= n
	s.LocalVarCount -= n
}

// get returns the slot of a local declared in this scope.
func (s *Scope) get(name string) (int, bool) {
	offset, ok := s.locals[name]
	return offset, ok
}

// ScopeGuard is the token returned when a scope is pushed; popping asserts
// the expected guard.
type ScopeGuard int

// Scopes is the stack of lexical scopes for one function.
type Scopes struct {
	stack []*Scope
}

// NewScopes creates a scope stack with a fresh root scope.
func NewScopes() *Scopes {
	return &Scopes{stack: []*Scope{newScope()}}
}

// Top returns the innermost scope.
func (s *Scopes) Top() *Scope {
	return s.stack[len(s.stack)-1]
}

// Child creates a child of the innermost scope without pushing it.
func (s *Scopes) Child(span token.Span) *Scope {
	return s.Top().Child()
}

// Push makes the scope current and returns its guard.
func (s *Scopes) Push(scope *Scope) ScopeGuard {
	s.stack = append(s.stack, scope)
	return ScopeGuard(len(s.stack))
}

// PushChild creates, pushes, and returns a guard for a child scope.
func (s *Scopes) PushChild(span token.Span) ScopeGuard {
	return s.Push(s.Child(span))
}

// Pop asserts LIFO order against the guard and returns the popped scope.
func (s *Scopes) Pop(guard ScopeGuard, span token.Span) (*Scope, error) {
	if int(guard) != len(s.stack) || len(s.stack) <= 1 {
		return nil, fmt.Errorf("scope guard mismatch: expected %d, at %d", guard, len(s.stack))
	}
	scope := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return scope, nil
}

// TryGetVar resolves a named local against the whole scope stack, nearest
// scope first.
func (s *Scopes) TryGetVar(name string) (int, bool) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if offset, ok := s.stack[i].get(name); ok {
			return offset, true
		}
	}
	return 0, false
}

// TotalVarCount is the number of slots live in the frame right now.
func (s *Scopes) TotalVarCount() int {
	return s.Top().totalVarCount
}
