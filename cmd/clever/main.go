package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"

	"clever/internal/ast"
	"clever/internal/config"
	"clever/internal/diag"
	"clever/internal/ir"
	"clever/internal/logging"
	"clever/internal/runtime"
	"clever/internal/source"
	"clever/internal/value"
	"clever/internal/vm"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd := os.Args[1]; cmd {
	case "run":
		err = cmdRun(ctx, os.Args[2:])
	case "build":
		err = cmdBuild(os.Args[2:])
	case "dump":
		err = cmdDump(os.Args[2:])
	case "repl":
		err = cmdRepl(ctx)
	case "help", "-h", "--help":
		usage()
	case "version", "-v", "--version":
		fmt.Println("clever", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		report(err)
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Clever language CLI

Usage:
  clever run [-trace] <file.clv|file.cvc> [args...]
  clever build <file.clv> [-o out.cvc]
  clever dump [-ast] <file.clv|file.cvc>
  clever repl

Commands:
  version  Clever version
  run      Compile+run .clv source or run .cvc bytecode
  build    Compile .clv source into a .cvc file
  dump     Print the instruction listing (or the syntax tree with -ast)
  repl     Read statements interactively

Configuration is read from clever.yaml next to the input file, or from the
file named by CLEVER_CONFIG.`)
}

// report prints err to stderr. Located diagnostics are printed as they are,
// anything else gets an "error:" prefix.
func report(err error) {
	var (
		list     diag.List
		compile  *diag.CompileError
		rt       *diag.RuntimeError
		fatal    *diag.FatalError
		uncaught *diag.UncaughtError
	)
	switch {
	case errors.As(err, &list), errors.As(err, &compile), errors.As(err, &rt),
		errors.As(err, &fatal), errors.As(err, &uncaught):
		diag.NewPrinter(os.Stderr).Print(err)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
	}
}

// session bundles what every command needs for one input file.
type session struct {
	cfg *config.Config
	log zerolog.Logger
	reg *value.Registry
}

func newSession(dir string) (*session, error) {
	cfg, err := config.Find(dir)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	reg, err := runtime.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to install builtins: %w", err)
	}
	return &session{cfg: cfg, log: log, reg: reg}, nil
}

func (s *session) compileOptions() ir.Options {
	return ir.Options{
		FoldConstants: s.cfg.Compiler.FoldConstants,
		Warnings:      s.cfg.Compiler.Warnings,
	}
}

func (s *session) vmConfig() vm.Config {
	return vm.Config{
		MaxCallDepth: s.cfg.VM.MaxCallDepth,
		MaxTemps:     s.cfg.VM.MaxTemporaries,
		Trace:        s.cfg.VM.Trace,
		Logger:       s.log,
	}
}

// compile lowers a parsed unit. Warnings are logged; errors are returned.
func (s *session) compile(u *source.Unit) (*ir.Program, error) {
	prog, diags := ir.Compile(u.Path, u.Prog, s.reg, s.compileOptions())
	if prog == nil {
		return nil, diags
	}
	for _, w := range diags {
		s.log.Warn().Msg(w.Error())
	}
	return prog, nil
}

// load produces a program from a source or bytecode file.
func (s *session) load(path string) (*ir.Program, error) {
	kind, err := source.KindOf(path)
	if err != nil {
		return nil, err
	}
	if kind == source.Compiled {
		prog, err := ir.ReadProgramFromFile(path, s.reg)
		if err != nil {
			return nil, fmt.Errorf("failed to read bytecode: %w", err)
		}
		return prog, nil
	}
	u, err := source.Load(path)
	if err != nil {
		return nil, err
	}
	return s.compile(u)
}

// -------------- RUN --------------

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	trace := fs.Bool("trace", false, "log every executed instruction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("run: missing input file")
	}
	input := fs.Arg(0)
	root, err := inputDir(input)
	if err != nil {
		return err
	}
	s, err := newSession(root)
	if err != nil {
		return err
	}
	if *trace {
		s.cfg.VM.Trace = true
		s.log = s.log.Level(zerolog.TraceLevel)
	}

	prog, err := s.load(input)
	if err != nil {
		return err
	}
	defer prog.Release()

	host := runtime.DefaultHost().WithContext(ctx)
	host.SetRoot(root)
	host.SetArgs(fs.Args()[1:])
	return vm.NewVM(prog, s.reg, host, s.vmConfig()).Run(ctx)
}

// -------------- BUILD --------------

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var out string
	fs.StringVar(&out, "o", "", "output file (default: <input>.cvc)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("build: missing input file")
	}
	input := fs.Arg(0)
	if kind, err := source.KindOf(input); err != nil || kind != source.Source {
		return fmt.Errorf("build: input must be a %s source file", source.SourceExt)
	}
	if out == "" {
		out = source.OutputPath(input)
	}

	root, err := inputDir(input)
	if err != nil {
		return err
	}
	s, err := newSession(root)
	if err != nil {
		return err
	}
	prog, err := s.load(input)
	if err != nil {
		return err
	}
	defer prog.Release()

	if err := ir.WriteProgramToFile(out, prog); err != nil {
		return fmt.Errorf("failed to write bytecode: %w", err)
	}
	s.log.Info().Str("out", out).Int("instructions", len(prog.Code)).Msg("build")
	return nil
}

// -------------- DUMP --------------

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	tree := fs.Bool("ast", false, "print the syntax tree instead of instructions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dump: missing input file")
	}
	input := fs.Arg(0)

	if *tree {
		u, err := source.Load(input)
		if err != nil {
			return err
		}
		fmt.Print(ast.Dump(u.Prog))
		return nil
	}

	root, err := inputDir(input)
	if err != nil {
		return err
	}
	s, err := newSession(root)
	if err != nil {
		return err
	}
	prog, err := s.load(input)
	if err != nil {
		return err
	}
	defer prog.Release()
	return prog.Dump(os.Stdout)
}

func inputDir(input string) (string, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("cannot resolve input path: %w", err)
	}
	return filepath.Dir(abs), nil
}
