package compiler

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeCompiler writes an executable shell script standing in for typst.
func fakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	path := filepath.Join(t.TempDir(), "typst")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake compiler: %v", err)
	}
	return path
}

// Scripts used across tests.
const (
	// echoes the template back as the "PDF".
	scriptEcho = `exec cat`
	// consumes input, prints a diagnostic and fails.
	scriptReject = `cat >/dev/null
echo "error: unexpected token" >&2
exit 1`
	// prints its argument vector to stderr, one per line, and fails.
	scriptArgs = `cat >/dev/null
for a in "$@"; do echo "$a" >&2; done
exit 2`
	// exits without reading stdin.
	scriptEarlyExit = `exit 3`
	// copies the template to stderr and fails.
	scriptEchoStderr = `cat >&2
exit 1`
	// hangs until killed.
	scriptHang = `exec sleep 30`
	// emits invalid UTF-8 on stderr.
	scriptBadUTF8 = `cat >/dev/null
printf 'bad \377 byte' >&2
exit 1`
)

func largePayload(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}
