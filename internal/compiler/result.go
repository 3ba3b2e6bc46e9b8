package compiler

import (
	"strings"

	"golang.org/x/text/encoding/unicode"

	"typstapi/internal/pkg/errors"
)

// ContentType is the media type of a successful compilation.
const ContentType = "application/pdf"

// Translate maps a finished child to the compiled document or a template
// error. Stdout is returned unmodified on success.
func Translate(out Output) ([]byte, error) {
	if out.Succeeded() {
		return out.Stdout, nil
	}
	return nil, errors.Template(DecodeDiagnostics(out.Stderr)).
		WithField("exit_code", out.ExitCode)
}

// DecodeDiagnostics decodes compiler stderr as UTF-8, replacing each
// ill-formed sequence with U+FFFD.
func DecodeDiagnostics(b []byte) string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(decoded)
}
