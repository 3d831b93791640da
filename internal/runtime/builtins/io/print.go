package io

import (
	"fmt"
	"strings"

	"clever/internal/runtime/builtins"
	"clever/internal/value"
)

func init() {
	builtins.Register(builtins.Module{Name: "io", Install: install})
}

func install(reg *value.Registry) error {
	if err := reg.DefNative("print", print, 0, -1); err != nil {
		return err
	}
	return reg.DefNative("input", input, 0, 1)
}

// print writes its arguments separated by spaces, then a newline.
func print(c *value.Call) error {
	if c.Host == nil {
		return fmt.Errorf("print: no host output")
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	_, err := fmt.Fprintln(c.Host.Stdout(), strings.Join(parts, " "))
	return err
}

// input reads one line from the host, after writing the optional prompt.
func input(c *value.Call) error {
	if c.Host == nil {
		return fmt.Errorf("input: no host input")
	}
	prompt, err := c.OptString(0, "")
	if err != nil {
		return err
	}
	if prompt != "" {
		fmt.Fprint(c.Host.Stdout(), prompt)
	}
	line, err := c.Host.ReadLine()
	if err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	c.Return(c.Reg.String(line))
	return nil
}
