package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a listing of the program: constant pool, functions, thread
// blocks, then one line per instruction.
func (p *Program) Dump(w io.Writer) error {
	var b strings.Builder
	if p.File != "" {
		fmt.Fprintf(&b, "; %s\n", p.File)
	}
	fmt.Fprintf(&b, "; %d instructions, %d constants, %d scopes, %d temporaries\n",
		len(p.Code), len(p.Consts), len(p.Scopes), p.NumTemps)

	if len(p.Consts) > 0 {
		b.WriteString("\nconstants:\n")
		for i := range p.Consts {
			c := &p.Consts[i]
			fmt.Fprintf(&b, "  %3d  %-8s %s\n", i, c.TypeName(), c.String())
		}
	}
	if len(p.Funcs) > 0 {
		b.WriteString("\nfunctions:\n")
		for _, fn := range p.Funcs {
			fmt.Fprintf(&b, "  %-16s addr=%03d params=%d temps=%d scopes=%v\n",
				fn.Name, fn.Addr, fn.NumParams, fn.NumTemps, fn.Scopes)
		}
	}
	if len(p.Threads) > 0 {
		b.WriteString("\nthreads:\n")
		for id, th := range p.Threads {
			name := th.Name
			if name == "" {
				name = "<anonymous>"
			}
			fmt.Fprintf(&b, "  %3d  %-16s scopes=%v\n", id, name, th.Scopes)
		}
	}

	b.WriteString("\ncode:\n")
	for addr, inst := range p.Code {
		fmt.Fprintf(&b, "[%03d] %-12s | %-18s | %-18s | %s\n",
			addr, inst.Op, inst.Op1, inst.Op2, inst.Result)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
