// Package runtime assembles the native environment of a program: the type
// registry with every builtin module installed, and the host services.
package runtime

import (
	"clever/internal/runtime/builtins"
	// Import all builtin packages to trigger their init() functions for self-registration
	_ "clever/internal/runtime/builtins/crypto"
	_ "clever/internal/runtime/builtins/db"
	_ "clever/internal/runtime/builtins/fs"
	_ "clever/internal/runtime/builtins/http"
	_ "clever/internal/runtime/builtins/io"
	_ "clever/internal/runtime/builtins/json"
	_ "clever/internal/runtime/builtins/math"
	_ "clever/internal/runtime/builtins/meta"
	_ "clever/internal/runtime/builtins/net"
	_ "clever/internal/runtime/builtins/sys"
	_ "clever/internal/runtime/builtins/yaml"
	"clever/internal/value"
)

// NewRegistry returns a frozen registry holding the core types and every
// builtin module.
func NewRegistry() (*value.Registry, error) {
	reg := value.NewRegistry()
	if err := builtins.InstallAll(reg); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}

// MustRegistry is NewRegistry for callers that cannot recover, such as tests.
func MustRegistry() *value.Registry {
	reg, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return reg
}
