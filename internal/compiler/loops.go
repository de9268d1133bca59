package compiler

import (
	"github.com/funvibe/quill/internal/asm"
)

// Loop tracks one enclosing loop for `break` compilation.
type Loop struct {
	// EndLabel is where breaks land, with the loop's value on the stack.
	EndLabel asm.Label
	// TotalVarCount is the frame depth when the loop was entered; a break
	// discards everything declared since.
	TotalVarCount int
}

// Loops is the nesting of loops currently being compiled.
type Loops struct {
	stack []Loop
}

// NewLoops creates an empty loop stack.
func NewLoops() *Loops {
	return &Loops{}
}

// Push enters a loop.
func (l *Loops) Push(loop Loop) {
	l.stack = append(l.stack, loop)
}

// Pop leaves the innermost loop.
func (l *Loops) Pop() {
	l.stack = l.stack[:len(l.stack)-1]
}

// Last returns the innermost loop.
func (l *Loops) Last() (Loop, bool) {
	if len(l.stack) == 0 {
		return Loop{}, false
	}
	return l.stack[len(l.stack)-1], true
}
