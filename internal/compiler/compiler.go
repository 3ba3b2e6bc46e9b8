// Package compiler turns compile requests into PDF bytes by piping the
// template through an external typst process.
//
// One request spawns exactly one child. The template is written to the
// child's stdin, stdout is the document, and stderr holds diagnostics that
// are relayed when the child exits non-zero. The child never outlives the
// call: it is killed when the request context ends or the configured
// timeout expires.
package compiler

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"typstapi/internal/pkg/errors"
	"typstapi/internal/pkg/logger"
)

// Defaults applied by New.
const (
	DefaultBinary  = "typst"
	DefaultTimeout = 60 * time.Second
)

// Compiler renders a request into a PDF document.
type Compiler interface {
	Compile(ctx context.Context, req Request) ([]byte, error)
}

// Func adapts a function to a Compiler.
type Func func(ctx context.Context, req Request) ([]byte, error)

// Compile calls f.
func (f Func) Compile(ctx context.Context, req Request) ([]byte, error) {
	if f == nil {
		return nil, errors.Infrastructure(stderrors.New("compiler func is nil"), "compiler.compile", "compiler is not configured")
	}
	return f(ctx, req)
}

// Options configures a Typst compiler.
type Options struct {
	// Binary is the compiler executable, looked up in PATH when relative.
	Binary string
	// DiagnosticFormat is passed as --diagnostic-format when set.
	DiagnosticFormat string
	// Timeout bounds one compilation. Zero or negative disables it.
	Timeout time.Duration
	// Env is appended to the service environment for every child.
	Env []string
	// Logger for spawn and exit events.
	Logger *logger.Logger
}

// Typst runs the typst CLI in stdin/stdout pipe mode.
type Typst struct {
	binary           string
	diagnosticFormat string
	timeout          time.Duration
	env              []string
	log              *logger.Logger
}

// New creates a Typst compiler. Missing options fall back to defaults; an
// unresolvable binary is reported per request, not here.
func New(opts Options) *Typst {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault()
	}
	return &Typst{
		binary:           binary,
		diagnosticFormat: strings.TrimSpace(opts.DiagnosticFormat),
		timeout:          opts.Timeout,
		env:              opts.Env,
		log:              log.WithComponent("compiler"),
	}
}

// Binary returns the configured executable.
func (t *Typst) Binary() string {
	return t.binary
}

// Compile runs one child process for req.
func (t *Typst) Compile(ctx context.Context, req Request) ([]byte, error) {
	args := BuildInvocation(req, t.diagnosticFormat)
	ctx = logger.ContextWithCompile(ctx, t.binary, []string(args), t.timeout)
	log := t.log.FromContext(ctx)

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	log.Debug("spawning compiler", "template_bytes", len(req.Template))
	start := time.Now()

	out, err := Run(runCtx, Command{Binary: t.binary, Args: args, Env: t.env}, []byte(req.Template))
	duration := time.Since(start)
	if err != nil {
		log.Warn("compiler did not complete",
			"error", err.Error(),
			"code", string(errors.GetCode(err)),
			"duration_ms", duration.Milliseconds(),
		)
		return nil, err
	}

	pdf, err := Translate(out)
	if err != nil {
		log.Info("compiler rejected template",
			"exit_code", out.ExitCode,
			"stderr_bytes", len(out.Stderr),
			"duration_ms", duration.Milliseconds(),
		)
		return nil, err
	}

	log.Debug("compiler finished",
		"stdout_bytes", len(out.Stdout),
		"stderr_bytes", len(out.Stderr),
		"duration_ms", duration.Milliseconds(),
	)
	return pdf, nil
}

// Version runs `<binary> --version` and returns its trimmed output.
func (t *Typst) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, t.binary, "--version")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "compiler version probe failed"
		}
		return "", errors.Infrastructure(err, "compiler.version", msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// LookPath resolves the configured binary the way the child spawn will.
func (t *Typst) LookPath() (string, error) {
	return exec.LookPath(t.binary)
}
