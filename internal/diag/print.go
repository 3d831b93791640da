package diag

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorReset  = "\x1b[0m"
)

// Printer writes diagnostics, colouring them when the sink is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

func NewPrinter(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, color: color}
}

// Print writes err, expanding a List into one line per entry.
func (p *Printer) Print(err error) {
	var list List
	if errors.As(err, &list) {
		for _, e := range list {
			p.Print(e)
		}
		return
	}
	code := colorRed
	var ce *CompileError
	if errors.As(err, &ce) && ce.Warning {
		code = colorYellow
	}
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s\n", code, err.Error(), colorReset)
		return
	}
	fmt.Fprintln(p.w, err.Error())
}
