package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ixugo/goddd/pkg/queue"
)

// stderrTailLines bounds how much ffmpeg chatter is kept for error reports.
const stderrTailLines = 40

// Runner executes a media tool. Implementations return *CommandError when
// the process exits non-zero.
type Runner func(ctx context.Context, binary string, args ...string) error

// CommandError reports a failed invocation with the tail of its stderr.
type CommandError struct {
	Binary string
	Err    error
	Tail   []string
}

func (e *CommandError) Error() string {
	tail := strings.TrimSpace(strings.Join(e.Tail, "\n"))
	if tail == "" {
		return fmt.Sprintf("%s: %v", e.Binary, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Binary, e.Err, tail)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs binary as a subprocess, streaming stderr into a ring
// buffer so long encodes do not accumulate unbounded output.
func ExecRunner(ctx context.Context, binary string, args ...string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%s: stderr pipe: %w", binary, err)
	}
	if err := cmd.Start(); err != nil {
		return &CommandError{Binary: binary, Err: err}
	}
	tail := queue.NewCirQueue[string](stderrTailLines)
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		tail.Push(scan.Text())
	}
	if err := cmd.Wait(); err != nil {
		return &CommandError{Binary: binary, Err: err, Tail: tail.Range()}
	}
	return nil
}

// Tool drives one ffmpeg binary.
type Tool struct {
	binary string
	run    Runner
}

// New returns a Tool for binary, defaulting to "ffmpeg" on PATH.
func New(binary string) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Tool{binary: binary, run: ExecRunner}
}

// WithRunner swaps the process runner (for testing).
func (t *Tool) WithRunner(run Runner) *Tool {
	if run != nil {
		t.run = run
	}
	return t
}

// Binary returns the configured executable.
func (t *Tool) Binary() string { return t.binary }

// Run invokes ffmpeg with the common quiet prefix prepended.
func (t *Tool) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}, args...)
	return t.run(ctx, t.binary, full...)
}
