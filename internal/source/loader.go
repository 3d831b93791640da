// Package source locates and parses Clever compilation units.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clever/internal/ast"
	"clever/internal/diag"
	"clever/internal/lexer"
	"clever/internal/parser"
)

const (
	SourceExt   = ".clv"
	CompiledExt = ".cvc"
)

// Kind tells how a file given on the command line is loaded.
type Kind int

const (
	Source Kind = iota
	Compiled
)

// KindOf classifies path by its extension.
func KindOf(path string) (Kind, error) {
	switch filepath.Ext(path) {
	case SourceExt:
		return Source, nil
	case CompiledExt:
		return Compiled, nil
	}
	return 0, fmt.Errorf("unsupported file extension %q (expected %s or %s)", filepath.Ext(path), SourceExt, CompiledExt)
}

// Unit is one parsed source file.
type Unit struct {
	Name string // base name without extension
	Path string // as given; used in diagnostics
	Root string // absolute directory holding the file
	Prog *ast.Program
}

// Load reads and parses the file at path. Syntax errors come back as a
// diag.List located in path.
func Load(path string) (*Unit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %s: %w", path, err)
	}
	u, errs := Parse(path, string(content))
	if len(errs) > 0 {
		return nil, errs
	}
	u.Root = filepath.Dir(abs)
	return u, nil
}

// Parse parses src as the unit named file. Root is left empty.
func Parse(file, src string) (*Unit, diag.List) {
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, diag.FromStrings(file, errs)
	}
	return &Unit{
		Name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
		Path: file,
		Prog: prog,
	}, nil
}

// OutputPath is the default bytecode path for a source file.
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + CompiledExt
}
