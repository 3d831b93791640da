package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Host aggregates the services builtins reach through value.Host: standard
// streams, the cancellation context, the execution root and script arguments.
type Host struct {
	out  io.Writer
	in   *bufio.Reader
	inMu sync.Mutex
	ctx  context.Context
	root string
	args []string
}

// DefaultHost returns a Host bound to the process's stdin and stdout.
func DefaultHost() *Host {
	return NewHost(os.Stdout, os.Stdin)
}

// NewHost creates a Host with the given streams. A nil reader behaves as an
// empty input.
func NewHost(out io.Writer, in io.Reader) *Host {
	h := &Host{out: out, ctx: context.Background()}
	if in != nil {
		h.in = bufio.NewReader(in)
	}
	return h
}

func (h *Host) Stdout() io.Writer { return h.out }

// ReadLine reads one line with surrounding whitespace trimmed. End of input
// reads as an empty line.
func (h *Host) ReadLine() (string, error) {
	h.inMu.Lock()
	defer h.inMu.Unlock()
	if h.in == nil {
		return "", nil
	}
	line, err := h.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return strings.TrimSpace(line), nil
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (h *Host) Context() context.Context { return h.ctx }

// WithContext sets the context natives use for blocking operations.
func (h *Host) WithContext(ctx context.Context) *Host {
	h.ctx = ctx
	return h
}

func (h *Host) Root() string { return h.root }

// SetRoot sets the directory relative file paths are resolved against.
func (h *Host) SetRoot(root string) {
	h.root = root
}

func (h *Host) Args() []string { return h.args }

// SetArgs sets the arguments returned by Sys.argv.
func (h *Host) SetArgs(args []string) {
	h.args = append([]string(nil), args...)
}
