package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
compiler:
  fold_constants: false
vm:
  max_call_depth: 200
  trace: true
`), "clever.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "auto" {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if cfg.Compiler.FoldConstants || !cfg.Compiler.Warnings {
		t.Fatalf("unexpected compiler section %+v", cfg.Compiler)
	}
	if cfg.VM.MaxCallDepth != 200 || cfg.VM.MaxTemporaries != 65536 || !cfg.VM.Trace {
		t.Fatalf("unexpected vm section %+v", cfg.VM)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"zero depth", "vm:\n  max_call_depth: 0\n", "vm.max_call_depth"},
		{"negative temps", "vm:\n  max_temporaries: -1\n", "vm.max_temporaries"},
		{"not yaml", "log: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "clever.yaml")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvVar, "")

	cfg, err := Find(dir)
	if err != nil {
		t.Fatalf("find without file: %v", err)
	}
	if cfg.VM.MaxCallDepth != Default().VM.MaxCallDepth {
		t.Fatalf("expected defaults, got %+v", cfg)
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("vm:\n  max_call_depth: 7\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Find(dir)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if cfg.VM.MaxCallDepth != 7 {
		t.Fatalf("max_call_depth = %d, want 7", cfg.VM.MaxCallDepth)
	}

	other := filepath.Join(t.TempDir(), "other.yaml")
	if err := os.WriteFile(other, []byte("log:\n  level: error\n"), 0644); err != nil {
		t.Fatalf("write other config: %v", err)
	}
	t.Setenv(EnvVar, other)
	cfg, err = Find(dir)
	if err != nil {
		t.Fatalf("find via env: %v", err)
	}
	if cfg.Log.Level != "error" || cfg.VM.MaxCallDepth != 10000 {
		t.Fatalf("env override not applied: %+v", cfg)
	}

	t.Setenv(EnvVar, filepath.Join(dir, "missing.yaml"))
	if _, err := Find(dir); err == nil {
		t.Fatalf("expected error for missing config named by %s", EnvVar)
	}
}
