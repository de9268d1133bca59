// Package cli implements the quill command line: compiling, running, and
// disassembling Quill programs, with colored diagnostics on terminals.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/funvibe/quill/internal/compiler"
	"github.com/funvibe/quill/internal/config"
	"github.com/funvibe/quill/internal/diagnostics"
	"github.com/funvibe/quill/internal/runtime/modules"
	"github.com/funvibe/quill/internal/source"
	"github.com/funvibe/quill/internal/unit"
	"github.com/funvibe/quill/internal/vm"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: quill <command> [arguments]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  run <file>      compile and run a program")
	fmt.Fprintln(os.Stderr, "  build <file>    compile a program to a .qunit file")
	fmt.Fprintln(os.Stderr, "  disasm <file>   compile and disassemble a program")
	fmt.Fprintln(os.Stderr, "  version         print the version")
}

// Run executes the CLI and returns the process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch args[0] {
	case "version":
		fmt.Println("quill", config.Version)
		return 0
	case "run", "build", "disasm":
		if len(args) < 2 {
			usage()
			return 2
		}
		return compileCommand(args[0], args[1])
	}

	usage()
	return 2
}

func compileCommand(command, path string) int {
	if !config.HasSourceExt(path) {
		fmt.Fprintf(os.Stderr, "quill: %s is not a source file\n", path)
		return 2
	}

	sources, err := loadSources(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		return 1
	}

	options := config.DefaultOptions()
	if manifest := findManifest(path); manifest != nil {
		options = manifest.EffectiveOptions()
	}
	if command == "disasm" {
		options.DebugInfo = true
	}

	ctx, cerr := modules.DefaultContext()
	if cerr != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", cerr)
		return 1
	}

	built, warnings, derr := compiler.LoadSources(ctx, sources, options)
	renderWarnings(warnings, sources)
	if derr != nil {
		renderError(derr, sources)
		return 1
	}

	switch command {
	case "disasm":
		fmt.Print(built.Disassemble())
		return 0

	case "build":
		data, serr := built.Serialize()
		if serr != nil {
			fmt.Fprintf(os.Stderr, "quill: %v\n", serr)
			return 1
		}
		out := config.TrimSourceExt(path) + ".qunit"
		if werr := os.WriteFile(out, data, 0o644); werr != nil {
			fmt.Fprintf(os.Stderr, "quill: %v\n", werr)
			return 1
		}
		fmt.Printf("wrote %s (%s)\n", out, built.BuildID)
		return 0

	case "run":
		machine := vm.New(ctx, built)
		result, rerr := machine.Call([]string{"main"})
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "quill: %v\n", rerr)
			return 1
		}
		// The program's value is only printed when it is not unit.
		if result.Inspect() != "()" {
			fmt.Println(result.Inspect())
		}
		return 0
	}

	return 2
}

// loadSources preloads the root file plus every sibling source file, so
// `mod name;` declarations resolve without I/O inside the core.
func loadSources(path string) (*source.Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sources := source.NewSources()
	sources.Insert(source.New(filepath.Base(path), string(data)))

	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == filepath.Base(path) || !config.HasSourceExt(entry.Name()) {
			continue
		}
		body, rerr := os.ReadFile(filepath.Join(dir, entry.Name()))
		if rerr != nil {
			return nil, rerr
		}
		sources.Insert(source.New(entry.Name(), string(body)))
	}
	return sources, nil
}

// findManifest looks for quill.yaml next to the source file and upward one
// level.
func findManifest(path string) *config.Manifest {
	dir := filepath.Dir(path)
	for _, candidate := range []string{
		filepath.Join(dir, "quill.yaml"),
		filepath.Join(dir, "..", "quill.yaml"),
	} {
		if manifest, err := config.LoadManifest(candidate); err == nil {
			return manifest
		}
	}
	return nil
}

func useColor() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == ""
}

func renderError(err *diagnostics.DiagnosticError, sources *source.Sources) {
	prefix := fmt.Sprintf("error[%s]", err.Code)
	if useColor() {
		prefix = color.New(color.FgRed, color.Bold).Sprint(prefix)
	}

	location := err.File
	if src := sources.Get(err.SourceID); src != nil {
		line, col := src.Position(err.Span.Start)
		if location == "" {
			location = src.Name
		}
		location = fmt.Sprintf("%s:%d:%d", location, line, col)
	}

	if location != "" {
		fmt.Fprintf(os.Stderr, "%s: %s\n  --> %s\n", prefix, err.Message, location)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, err.Message)
	}

	if src := sources.Get(err.SourceID); src != nil && err.Span.Len() > 0 {
		snippet := src.Slice(err.Span)
		if idx := strings.IndexByte(snippet, '\n'); idx >= 0 {
			snippet = snippet[:idx]
		}
		fmt.Fprintf(os.Stderr, "   | %s\n", snippet)
	}
}

func renderWarnings(warnings *diagnostics.Warnings, sources *source.Sources) {
	if warnings == nil || warnings.Empty() {
		return
	}
	for _, w := range warnings.List() {
		prefix := fmt.Sprintf("warning[%s]", w.Code)
		if useColor() {
			prefix = color.New(color.FgYellow, color.Bold).Sprint(prefix)
		}
		location := ""
		if src := sources.Get(w.SourceID); src != nil {
			line, col := src.Position(w.Span.Start)
			location = fmt.Sprintf(" --> %s:%d:%d", src.Name, line, col)
		}
		fmt.Fprintf(os.Stderr, "%s: %s%s\n", prefix, w.Message, location)
	}
}

// LoadUnit reads a serialized unit from disk; exposed for embedding hosts.
func LoadUnit(path string) (*unit.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return unit.Deserialize(data)
}
