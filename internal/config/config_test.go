package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSourceExtHelpers(t *testing.T) {
	if !HasSourceExt("x/main.quill") || !HasSourceExt("main.ql") {
		t.Error("recognized extensions rejected")
	}
	if HasSourceExt("main.go") {
		t.Error("unrecognized extension accepted")
	}
	if TrimSourceExt("main.quill") != "main" {
		t.Errorf("TrimSourceExt = %q", TrimSourceExt("main.quill"))
	}
	if TrimSourceExt("main.go") != "main.go" {
		t.Error("TrimSourceExt touched a foreign extension")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quill.yaml")
	body := `
name: demo
options:
  memoize_instance_fn: true
  link_checks: false
  debug_info: true
modules:
  - colors.quill
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "demo" {
		t.Errorf("name = %q", m.Name)
	}
	opts := m.EffectiveOptions()
	if !opts.MemoizeInstanceFn || opts.LinkChecks || !opts.DebugInfo {
		t.Errorf("options = %+v", opts)
	}
	if len(m.Modules) != 1 || m.Modules[0] != "colors.quill" {
		t.Errorf("modules = %v", m.Modules)
	}
}

func TestEffectiveOptionsDefaults(t *testing.T) {
	var m *Manifest
	opts := m.EffectiveOptions()
	if !opts.LinkChecks || !opts.MemoizeInstanceFn || opts.DebugInfo {
		t.Errorf("defaults = %+v", opts)
	}
}

func TestInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quill.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ]["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Error("invalid yaml accepted")
	}
}
