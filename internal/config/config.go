// Package config holds the version constant, source-extension helpers, and
// the quill.yaml project manifest.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the current Quill version.
// It can be overridden at build time via -ldflags.
var Version = "0.3.1"

const SourceFileExt = ".quill"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".quill", ".ql"}

// TrimSourceExt removes any recognized source extension from a filename.
// Returns the original string if no extension matches.
func TrimSourceExt(name string) string {
	for _, ext := range SourceFileExtensions {
		if len(name) >= len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// HasSourceExt returns true if the path ends with any recognized source
// extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// Options are the compiler switches. Each is honoured where referenced:
// MemoizeInstanceFn caches instance-function resolution, LinkChecks gates
// import verification, DebugInfo retains spans and comments in the unit.
type Options struct {
	MemoizeInstanceFn bool `yaml:"memoize_instance_fn"`
	LinkChecks        bool `yaml:"link_checks"`
	DebugInfo         bool `yaml:"debug_info"`
}

// DefaultOptions returns the options used when no manifest overrides them.
func DefaultOptions() *Options {
	return &Options{
		MemoizeInstanceFn: true,
		LinkChecks:        true,
		DebugInfo:         false,
	}
}

// Manifest is the parsed quill.yaml project configuration.
type Manifest struct {
	// Name is the project name, informational only.
	Name string `yaml:"name,omitempty"`

	// Options override the default compiler options.
	Options *Options `yaml:"options,omitempty"`

	// Modules lists additional source files of the project. It is parsed
	// but not read by the CLI, which preloads the sibling source files of
	// the entry file's directory instead.
	Modules []string `yaml:"modules,omitempty"`
}

// LoadManifest reads and parses a quill.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// EffectiveOptions merges the manifest's options over the defaults.
func (m *Manifest) EffectiveOptions() *Options {
	if m == nil || m.Options == nil {
		return DefaultOptions()
	}
	return m.Options
}
