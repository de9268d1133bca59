// Package worker drives the front half of a compilation run: it indexes
// parsed files into items, expands imports (deferring wildcards until a
// fixed point) and macros, and fills the query system's build queue.
package worker

import (
	"strings"

	"github.com/funvibe/quill/internal/ast"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/items"
	"github.com/funvibe/quill/internal/query"
	"github.com/funvibe/quill/internal/runtime"
	"github.com/funvibe/quill/internal/source"
	"github.com/funvibe/quill/internal/token"
	"github.com/funvibe/quill/internal/unit"
)

// LoadFileKind distinguishes the root file from loaded modules.
type LoadFileKind int

const (
	// LoadRoot is the entry file of the run.
	LoadRoot LoadFileKind = iota
	// LoadModule is a file pulled in through a `mod name;` declaration.
	LoadModule
)

// Import is a single terminal or aliased import awaiting expansion.
type Import struct {
	At       items.Item
	Path     *ast.UsePath
	SourceID int
}

// WildcardImport is a deferred `use path::*` expansion. It is re-queued
// until no wildcard can contribute a new name.
type WildcardImport struct {
	At       items.Item
	Path     *ast.Path
	Span     token.Span
	SourceID int
}

// Task is a single unit of worker work.
type Task struct {
	// LoadFile
	FileKind LoadFileKind
	SourceID int
	ModItem  items.Item
	IsLoad   bool

	// ExpandImport
	Import *Import

	// ExpandWildcardImport
	Wildcard *WildcardImport
}

// Worker exclusively owns the task queue while running.
type Worker struct {
	queue    []*Task
	sources  *source.Sources
	context  *runtime.Context
	query    *query.Query
	unit     *unit.Builder
	warnings *diagnostics.Warnings

	// expanded tracks macro expansion item paths so each expands once.
	expanded map[string]items.Id
	// loaded tracks file modules so a `mod` seen twice loads once.
	loaded map[string]bool
}

// New creates a worker over the shared collaborators.
func New(sources *source.Sources, context *runtime.Context, q *query.Query, builder *unit.Builder, warnings *diagnostics.Warnings) *Worker {
	return &Worker{
		sources:  sources,
		context:  context,
		query:    q,
		unit:     builder,
		warnings: warnings,
		expanded: make(map[string]items.Id),
		loaded:   make(map[string]bool),
	}
}

// QueueLoad enqueues a file load.
func (w *Worker) QueueLoad(kind LoadFileKind, sourceID int, modItem items.Item) {
	w.queue = append(w.queue, &Task{
		IsLoad:   true,
		FileKind: kind,
		SourceID: sourceID,
		ModItem:  modItem,
	})
}

// Run drains the task queue in FIFO order. Wildcard imports are held back
// and expanded to a fixed point once everything else has drained.
func (w *Worker) Run() *diagnostics.DiagnosticError {
	var wildcards []*WildcardImport

	for len(w.queue) > 0 {
		task := w.queue[0]
		w.queue = w.queue[1:]

		switch {
		case task.IsLoad:
			if err := w.loadFile(task); err != nil {
				return err
			}
		case task.Import != nil:
			if err := w.expandImport(task.Import); err != nil {
				return err
			}
		case task.Wildcard != nil:
			wildcards = append(wildcards, task.Wildcard)
		}

		// Loading a file can enqueue more loads and imports; the wildcard
		// fixed point only starts once those have drained.
		if len(w.queue) == 0 && len(wildcards) > 0 {
			progress := true
			for progress {
				progress = false
				for _, wc := range wildcards {
					added, err := w.expandWildcard(wc)
					if err != nil {
						return err
					}
					if added {
						progress = true
					}
				}
			}
			wildcards = nil
		}
	}

	return nil
}

func (w *Worker) loadFile(task *Task) *diagnostics.DiagnosticError {
	src := w.sources.Get(task.SourceID)
	if src == nil {
		return diagnostics.NewErrorSpan(diagnostics.ErrC009, token.Span{}, task.ModItem.String())
	}

	file, errs := parseSource(src.Content)
	if len(errs) > 0 {
		return errs[0].WithSource(src.Name, task.SourceID)
	}

	idx := &indexer{
		worker:   w,
		sourceID: task.SourceID,
		fileName: src.Name,
		items:    items.NewItems(task.ModItem),
	}
	return idx.file(file)
}

// resolveUseTarget converts a use path into the absolute item it refers to.
func (w *Worker) resolveUseTarget(at items.Item, path *ast.Path) items.Item {
	rest := items.Item{}
	for _, seg := range path.Segments[1:] {
		rest = rest.Child(seg.Lexeme)
	}
	first := path.Segments[0]
	switch first.Type {
	case token.CRATE:
		return rest
	case token.SELF:
		return at.Join(rest)
	}
	return items.NewItem(first.Lexeme).Join(rest)
}

func (w *Worker) expandImport(imp *Import) *diagnostics.DiagnosticError {
	target := w.resolveUseTarget(imp.At, imp.Path.Path)

	alias := ""
	if imp.Path.Alias != nil {
		alias = imp.Path.Alias.Lexeme
	} else if last, ok := target.Last(); ok {
		alias = last.Str
	}

	span := imp.Path.Span()
	w.unit.NewImport(imp.At.Child(alias), target, &span, imp.SourceID)
	return nil
}

// expandWildcard adds an import for every name currently visible under the
// wildcard's source prefix. Reports whether any new alias was added.
func (w *Worker) expandWildcard(wc *WildcardImport) (bool, *diagnostics.DiagnosticError) {
	from := w.resolveUseTarget(wc.At, wc.Path)

	components := w.context.IterComponents(from)
	components = append(components, w.unit.IterComponents(from)...)

	added := false
	seen := make(map[string]bool)
	for _, c := range components {
		if c.Kind != items.ComponentString || seen[c.Str] {
			continue
		}
		seen[c.Str] = true
		alias := wc.At.Child(c.Str)
		if _, ok := w.unit.LookupImport(alias); ok {
			continue
		}
		span := wc.Span
		w.unit.NewImport(alias, from.Child(c.Str), &span, wc.SourceID)
		added = true
	}
	return added, nil
}

// findModuleSource locates the preloaded source backing `mod name;` declared
// in the file named by parent.
func (w *Worker) findModuleSource(parent, name string) (source.ID, bool) {
	dir := ""
	if idx := strings.LastIndexByte(parent, '/'); idx >= 0 {
		dir = parent[:idx+1]
	}
	candidates := []string{
		dir + name + ".quill",
		dir + name + ".ql",
		dir + name + "/mod.quill",
		name + ".quill",
		name + ".ql",
	}
	for _, candidate := range candidates {
		if id, ok := w.sources.FindByName(candidate); ok {
			return id, true
		}
	}
	return 0, false
}
