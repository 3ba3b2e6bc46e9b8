// Package client calls a running compile API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"typstapi/internal/compiler"
	"typstapi/internal/pkg/errors"
)

// CompilePath is the server route used by Compile.
const CompilePath = "/api/typst/compile"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("compile api http %d: %s", e.StatusCode, e.Message)
}

// HTTPClient implements compiler.Compiler against a remote server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for baseURL. A zero timeout means none.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type compileBody struct {
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables,omitempty"`
	Jobs      *int              `json:"jobs,omitempty"`
}

// Compile posts req and returns the PDF bytes.
// Template errors come back as *errors.Error with CodeTemplate; other
// failures as *StatusError or a transport error.
func (c *HTTPClient) Compile(ctx context.Context, req compiler.Request) ([]byte, error) {
	body, err := json.Marshal(compileBody{
		Template:  req.Template,
		Variables: req.Variables,
		Jobs:      req.Jobs,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+CompilePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", compiler.ContentType)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return io.ReadAll(res.Body)
	}

	msg := readErrorMessage(res.Body)
	if res.StatusCode == http.StatusBadRequest && !isRequestError(msg) {
		return nil, errors.Template(msg)
	}
	return nil, &StatusError{StatusCode: res.StatusCode, Message: msg}
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return err.Error()
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// requestFieldError matches the validation messages the server produces
// for a malformed body, e.g. "template is required".
var requestFieldError = regexp.MustCompile(`^[a-z_]+ is (required|invalid)$`)

// isRequestError reports whether a 400 message came from request decoding
// or validation. Every other 400 carries compiler diagnostics, whatever
// --diagnostic-format the server uses.
func isRequestError(msg string) bool {
	return strings.HasPrefix(msg, "invalid JSON body") ||
		msg == "invalid request" ||
		requestFieldError.MatchString(msg)
}

var _ compiler.Compiler = (*HTTPClient)(nil)
