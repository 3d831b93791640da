package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"clever/internal/diag"
	"clever/internal/runtime"
	"clever/internal/source"
	"clever/internal/vm"
)

const (
	historyFile = ".clever_history"
	promptMain  = "clever> "
	promptCont  = "   ...> "
)

// cmdRepl compiles and runs every complete entry as its own unit.
func cmdRepl(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	s, err := newSession(cwd)
	if err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	host := runtime.DefaultHost().WithContext(ctx)
	host.SetRoot(cwd)
	printer := diag.NewPrinter(os.Stderr)

	fmt.Printf("Clever %s. Ctrl+D to exit.\n", version)
	for n := 1; ; n++ {
		src, ok := readEntry(ln)
		if !ok {
			fmt.Println()
			break
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		u, errs := source.Parse(fmt.Sprintf("<repl:%d>", n), src)
		if len(errs) > 0 {
			printer.Print(errs)
			continue
		}
		prog, err := s.compile(u)
		if err != nil {
			printer.Print(err)
			continue
		}
		err = vm.NewVM(prog, s.reg, host, s.vmConfig()).Run(ctx)
		prog.Release()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			printer.Print(err)
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// readEntry reads lines until brackets balance. It reports false on EOF.
func readEntry(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending entry
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if openBrackets(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// openBrackets counts unclosed ( [ { outside string literals and comments.
func openBrackets(src string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '#':
			i = skipLine(src, i)
		case '/':
			if i+1 < len(src) && src[i+1] == '/' {
				i = skipLine(src, i)
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	return depth
}

func skipLine(src string, i int) int {
	if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(src)
}
