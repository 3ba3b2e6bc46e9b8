package compiler

import (
	"sort"
	"strconv"
)

// Compiler command-line flags.
const (
	FlagJobs             = "--jobs"
	FlagInput            = "--input"
	FlagDiagnosticFormat = "--diagnostic-format"
)

// pipeArgs reads the document from stdin and writes the PDF to stdout.
var pipeArgs = []string{"compile", "-", "-"}

// Request is one compilation: the template source plus its inputs.
type Request struct {
	Template  string
	Variables map[string]string
	// Jobs is forwarded as-is; nil leaves parallelism to the compiler.
	Jobs *int
}

// Invocation is the argument vector handed to the compiler binary.
type Invocation []string

// BuildInvocation returns the arguments for req.
//
// Variables are emitted in lexicographic key order so that the same request
// always yields the same vector. The key and value are joined by the first
// '=' only; neither is escaped.
func BuildInvocation(req Request, diagnosticFormat string) Invocation {
	args := make([]string, 0, len(pipeArgs)+4+2*len(req.Variables))
	args = append(args, pipeArgs...)

	if diagnosticFormat != "" {
		args = append(args, FlagDiagnosticFormat, diagnosticFormat)
	}

	if req.Jobs != nil {
		args = append(args, FlagJobs, strconv.Itoa(*req.Jobs))
	}

	names := make([]string, 0, len(req.Variables))
	for name := range req.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, FlagInput, name+"="+req.Variables[name])
	}

	return args
}

// Inputs returns the name=value pairs carried by --input flags, in order.
func (inv Invocation) Inputs() []string {
	var out []string
	for i := 0; i < len(inv)-1; i++ {
		if inv[i] == FlagInput {
			out = append(out, inv[i+1])
			i++
		}
	}
	return out
}

// Jobs returns the value of the --jobs flag, if present.
func (inv Invocation) Jobs() (string, bool) {
	for i := 0; i < len(inv)-1; i++ {
		if inv[i] == FlagJobs {
			return inv[i+1], true
		}
	}
	return "", false
}
