package builtins

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"clever/internal/value"
)

// Module is a set of native functions, constants and types installed into a
// value.Registry before it is frozen.
type Module struct {
	Name    string
	Install func(reg *value.Registry) error
}

// registry holds every module registered by an init function.
type registry struct {
	mu     sync.RWMutex
	byName map[string]*Module
}

var globalRegistry = &registry{
	byName: make(map[string]*Module),
}

// Register registers a module. This is called automatically by each module's
// init() function. Panics if the name is already taken.
func Register(m Module) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if m.Name == "" || m.Install == nil {
		panic("builtins: module without name or installer")
	}
	if _, exists := globalRegistry.byName[m.Name]; exists {
		panic(fmt.Sprintf("builtin module %q is already registered", m.Name))
	}
	globalRegistry.byName[m.Name] = &m
}

// Lookup finds a module by name. Returns nil if not found.
func Lookup(name string) *Module {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.byName[name]
}

// All returns the registered modules sorted by name.
func All() []*Module {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	out := make([]*Module, 0, len(globalRegistry.byName))
	for _, m := range globalRegistry.byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// InstallAll installs every registered module into reg, in name order.
func InstallAll(reg *value.Registry) error {
	for _, m := range All() {
		if err := m.Install(reg); err != nil {
			return fmt.Errorf("install module %s: %w", m.Name, err)
		}
	}
	return nil
}

// Path resolves p against the host's root directory.
func Path(c *value.Call, p string) string {
	if filepath.IsAbs(p) || c.Host == nil || c.Host.Root() == "" {
		return p
	}
	return filepath.Join(c.Host.Root(), p)
}
