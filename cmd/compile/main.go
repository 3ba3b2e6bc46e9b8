// Command compile renders a Typst template to PDF, either through a running
// compile API or with a local typst binary.
//
// Usage:
//
//	compile [flags] template.typ
//	compile --var name="John Doe" -o out.pdf - < template.typ
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"typstapi/internal/client"
	"typstapi/internal/compiler"
	"typstapi/internal/pkg/errors"
	"typstapi/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("compile", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: compile [flags] <template.typ|->")
		fs.PrintDefaults()
	}

	server := fs.String("server", envOr("TYPSTAPI_SERVER", "http://127.0.0.1:3030"), "compile API base URL")
	local := fs.Bool("local", false, "run the typst binary directly instead of calling the API")
	binary := fs.String("binary", compiler.DefaultBinary, "typst binary used with --local")
	output := fs.StringP("output", "o", "-", "output file, - for stdout")
	jobs := fs.IntP("jobs", "j", 0, "number of compiler threads, 0 leaves the compiler default")
	timeout := fs.Duration("timeout", compiler.DefaultTimeout, "overall deadline")
	verbose := fs.BoolP("verbose", "v", false, "debug logging on stderr")
	vars := fs.StringToString("var", nil, "template input name=value, repeatable")

	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	for name := range *vars {
		if name == "" {
			fmt.Fprintln(stderr, "--var: input name must not be empty")
			return 2
		}
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: stderr, ServiceName: "compile"})

	template, err := readTemplate(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "read template: %v\n", err)
		return 1
	}

	req := compiler.Request{Template: template, Variables: *vars}
	if *jobs > 0 {
		req.Jobs = jobs
	}

	var c compiler.Compiler
	if *local {
		c = compiler.New(compiler.Options{Binary: *binary, Timeout: *timeout, Logger: log})
	} else {
		log.Debug("using compile API", "server", *server)
		c = client.NewHTTPClient(*server, *timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pdf, err := c.Compile(ctx, req)
	if err != nil {
		if errors.IsTemplate(err) {
			fmt.Fprint(stderr, errors.GetPublicMessage(err))
		} else {
			fmt.Fprintf(stderr, "compile failed: %v\n", err)
		}
		return 1
	}

	if err := writeOutput(*output, stdout, pdf); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	log.Debug("document written", "bytes", len(pdf), "output", *output)
	return 0
}

func readTemplate(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func writeOutput(path string, stdout io.Writer, pdf []byte) error {
	if path == "-" {
		_, err := stdout.Write(pdf)
		return err
	}
	return os.WriteFile(path, pdf, 0o644)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

