package scope

import "clever/internal/value"

// Env is the runtime storage a scope materializes into: one cell per value
// slot. Environments are created per activation and released when the
// activation ends.
type Env struct {
	cells *value.Cells
}

// NewEnv allocates size cells, copying init into the leading ones.
func NewEnv(size int, init []value.Value) *Env {
	cells := value.NewCells(size)
	for i := range init {
		if i >= size {
			break
		}
		cells.At(i).Copy(&init[i])
	}
	return &Env{cells: cells}
}

func (e *Env) Len() int { return e.cells.Len() }

// Slot returns the cell at i, or nil when out of range.
func (e *Env) Slot(i int) *value.Value {
	return e.cells.At(i)
}

func (e *Env) Cells() *value.Cells { return e.cells }

// Copy duplicates the environment, copying each cell with refcounting.
func (e *Env) Copy() *Env {
	return &Env{cells: e.cells.Clone()}
}

// Release drops every cell. References into the environment become dangling.
func (e *Env) Release() {
	e.cells.Clear()
}
