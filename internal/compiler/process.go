package compiler

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"typstapi/internal/pkg/errors"
)

// killGrace bounds how long Wait lingers on pipes after the context killed
// the child.
const killGrace = 5 * time.Second

// Command describes the child process to start.
type Command struct {
	Binary string
	Args   []string
	// Env is appended to the parent environment.
	Env []string
}

// Output is what a finished child left behind.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Succeeded reports whether the child exited with status zero.
func (o Output) Succeeded() bool {
	return o.ExitCode == 0
}

// Run starts one child for c, feeds it stdin, and collects both output
// streams until it exits.
//
// All three pipes are serviced concurrently. A non-zero exit is not an
// error here; it is reported through Output.ExitCode. Errors returned are
// infrastructure failures, or timeout/cancel errors when ctx ended first.
func Run(ctx context.Context, c Command, stdin []byte) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = killGrace

	in, err := cmd.StdinPipe()
	if err != nil {
		return Output{}, errors.Infrastructure(err, "compiler.pipe", "failed to open stdin pipe")
	}
	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Output{}, errors.Infrastructure(err, "compiler.pipe", "failed to open stdout pipe")
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return Output{}, errors.Infrastructure(err, "compiler.pipe", "failed to open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{}, contextError(ctxErr)
		}
		return Output{}, errors.Infrastructure(err, "compiler.spawn", "failed to start compiler").
			WithField("binary", c.Binary)
	}

	// Tear the pipes down with the context so a hung child, or a grandchild
	// still holding them, cannot block the readers.
	stop := context.AfterFunc(ctx, func() {
		_ = in.Close()
		_ = outPipe.Close()
		_ = errPipe.Close()
	})
	defer stop()

	var stdout, stderr bytes.Buffer
	var g errgroup.Group

	g.Go(func() error {
		return writeInput(in, stdin)
	})
	g.Go(func() error {
		if _, err := io.Copy(&stdout, outPipe); err != nil && !isClosedPipe(err) {
			return errors.Infrastructure(err, "compiler.stdout", "failed to read compiler output")
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(&stderr, errPipe); err != nil && !isClosedPipe(err) {
			return errors.Infrastructure(err, "compiler.stderr", "failed to read compiler diagnostics")
		}
		return nil
	})

	ioErr := g.Wait()
	waitErr := cmd.Wait()

	if !stop() {
		// Output may be truncated; never report it.
		return Output{}, contextError(ctx.Err())
	}
	if ioErr != nil {
		return Output{}, ioErr
	}

	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Output{}, errors.Infrastructure(waitErr, "compiler.wait", "failed to wait for compiler")
		}
		// -1 when the child was killed by a signal.
		out.ExitCode = exitErr.ExitCode()
	}
	return out, nil
}

// writeInput writes body to the child's stdin and always closes it.
// A child that exits before reading everything is not an error.
func writeInput(w io.WriteCloser, body []byte) error {
	_, writeErr := w.Write(body)
	closeErr := w.Close()

	if writeErr != nil && !isBrokenPipe(writeErr) {
		return errors.Infrastructure(writeErr, "compiler.stdin", "failed to write template to compiler")
	}
	if closeErr != nil && !isBrokenPipe(closeErr) && !isClosedPipe(closeErr) {
		return errors.Infrastructure(closeErr, "compiler.stdin", "failed to close compiler input")
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}

func isClosedPipe(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout(err, "compiler.wait")
	}
	return errors.Canceled(err, "compiler.wait")
}
