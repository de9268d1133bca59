package query

import (
	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/items"
)

// ExpansionKind discriminates stored macro expansions.
type ExpansionKind int

const (
	// ExpandExpr is an expansion in expression position.
	ExpandExpr ExpansionKind = iota
	// ExpandFile is an expansion in item position.
	ExpandFile
)

// Expansion is one stored macro expansion, referenced from syntax through an
// opaque Id.
type Expansion struct {
	Kind ExpansionKind
	Expr ast.Expr
	File *ast.File
}

// Storage is the append-only arena of synthesised state: monotonic ids and
// the macro expansions they key. Syntax nodes carry the Id, never a direct
// pointer, which keeps the AST and the query system acyclic.
type Storage struct {
	nextId     items.Id
	expansions map[items.Id]*Expansion
}

// NewStorage creates an empty storage.
func NewStorage() *Storage {
	return &Storage{
		nextId:     1,
		expansions: make(map[items.Id]*Expansion),
	}
}

// NextId allocates a fresh opaque id.
func (s *Storage) NextId() items.Id {
	id := s.nextId
	s.nextId++
	return id
}

// InsertExpansion stores an expansion under a fresh id.
func (s *Storage) InsertExpansion(e *Expansion) items.Id {
	id := s.NextId()
	s.expansions[id] = e
	return id
}

// Expansion returns the expansion stored under the id.
func (s *Storage) Expansion(id items.Id) (*Expansion, bool) {
	e, ok := s.expansions[id]
	return e, ok
}
