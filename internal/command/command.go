// Package command adapts an external program into a callable that the
// notification wrapper can wrap.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// DefaultTailLines is how many trailing stderr lines an ExitError keeps.
const DefaultTailLines = 50

// ExitError reports a program that ran but exited with a non-zero status.
// Its Traceback is the tail of the program's stderr.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the status the program exited with.
func (e *ExitError) ExitCode() int { return e.Code }

// Traceback returns the last stderr lines written by the program.
func (e *ExitError) Traceback() string { return e.Stderr }

// Command describes one program invocation. Output is forwarded to Stdout
// and Stderr (os.Stdout and os.Stderr when nil) while stderr is also kept
// in a bounded tail for the crash report.
type Command struct {
	Name      string
	Args      []string
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	TailLines int
	// WaitDelay bounds how long Run waits for the program to exit after
	// ctx is cancelled and it has been interrupted.
	WaitDelay time.Duration
}

// New returns a callable that runs name with args and reports its exit code.
func New(name string, args ...string) func(context.Context) (int, error) {
	c := &Command{Name: name, Args: args, Stdin: os.Stdin}
	return c.Run
}

// Run starts the program and waits for it. A zero exit returns (0, nil),
// also when the program exits cleanly after ctx is cancelled; a non-zero
// exit returns the code and an *ExitError. Failing to start the program
// returns -1 and the start error.
func (c *Command) Run(ctx context.Context) (int, error) {
	tailLines := c.TailLines
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}
	tail := newTailBuffer(tailLines)

	stdout, stderr := c.Stdout, c.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, tail)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = c.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 10 * time.Second
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	// After cancellation Wait reports ctx.Err() even when the program
	// handled the interrupt and exited on its own, so the outcome comes
	// from the process state whenever the program ran to an exit.
	err := cmd.Wait()
	state := cmd.ProcessState
	if state == nil {
		return -1, fmt.Errorf("waiting for %s: %w", c.Name, err)
	}
	if state.Success() {
		return 0, nil
	}
	if err == nil {
		err = errors.New(state.String())
	}
	code := exitCode(state)
	return code, &ExitError{Name: c.Name, Code: code, Stderr: tail.String(), Err: err}
}

// exitCode follows the shell convention of 128+signal for killed programs.
func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// tailBuffer keeps the last max complete lines written to it, plus any
// unterminated trailing line.
type tailBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial strings.Builder
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{max: n}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			b.partial.Write(rest)
			break
		}
		b.partial.Write(rest[:i])
		b.push(strings.TrimSuffix(b.partial.String(), "\r"))
		b.partial.Reset()
		rest = rest[i+1:]
	}
	return len(p), nil
}

func (b *tailBuffer) push(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := b.lines
	if b.partial.Len() > 0 {
		lines = append(lines[:len(lines):len(lines)], b.partial.String())
		if len(lines) > b.max {
			lines = lines[len(lines)-b.max:]
		}
	}
	return strings.Join(lines, "\n")
}
