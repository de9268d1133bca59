// Package source holds the preloaded source set for a compilation run.
// Sources are addressed by a dense integer id; nothing in the core performs
// I/O — the CLI (or embedding host) loads files up front.
package source

import (
	"strings"

	"github.com/funvibe/quill/internal/token"
)

// ID addresses a single source in a set.
type ID = int

// Source is a single named source text.
type Source struct {
	Name    string
	Content string
}

// New creates a source from a name and its content.
func New(name, content string) *Source {
	return &Source{Name: name, Content: content}
}

// Position resolves a byte offset to a 1-based line and column.
func (s *Source) Position(offset int) (line, column int) {
	if offset > len(s.Content) {
		offset = len(s.Content)
	}
	prefix := s.Content[:offset]
	line = strings.Count(prefix, "\n") + 1
	if idx := strings.LastIndexByte(prefix, '\n'); idx >= 0 {
		column = offset - idx
	} else {
		column = offset + 1
	}
	return line, column
}

// Slice returns the text covered by a span, clamped to the source bounds.
func (s *Source) Slice(span token.Span) string {
	start, end := span.Start, span.End
	if start < 0 {
		start = 0
	}
	if end > len(s.Content) {
		end = len(s.Content)
	}
	if start >= end {
		return ""
	}
	return s.Content[start:end]
}

// Sources is the set of sources for one run.
type Sources struct {
	sources []*Source
}

// NewSources creates an empty source set.
func NewSources() *Sources {
	return &Sources{}
}

// Insert adds a source and returns its id.
func (s *Sources) Insert(src *Source) ID {
	s.sources = append(s.sources, src)
	return len(s.sources) - 1
}

// Get returns the source for an id, or nil.
func (s *Sources) Get(id ID) *Source {
	if id < 0 || id >= len(s.sources) {
		return nil
	}
	return s.sources[id]
}

// Name returns the name of a source, or the empty string.
func (s *Sources) Name(id ID) string {
	if src := s.Get(id); src != nil {
		return src.Name
	}
	return ""
}

// FindByName returns the id of the source with the given name.
func (s *Sources) FindByName(name string) (ID, bool) {
	for id, src := range s.sources {
		if src.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Len returns the number of sources in the set.
func (s *Sources) Len() int {
	return len(s.sources)
}
