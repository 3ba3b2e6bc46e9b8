// Package logger builds the service's slog logger and threads request and
// compilation attributes through context.Context.
//
// Middleware and the compiler add attributes to the context with With or
// one of the typed helpers. Every line written through Logger.FromContext
// carries them, so a compiler log line can be joined to the request that
// caused it.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultService is the service attribute used by NewDefault.
const DefaultService = "typstapi"

// Attribute keys shared across packages.
const (
	KeyService   = "service"
	KeyComponent = "component"
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"
	KeyBinary    = "binary"
	KeyArgs      = "args"
	KeyTimeout   = "timeout"
)

type attrsKey struct{}

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	// Output defaults to os.Stdout.
	Output      io.Writer
	AddSource   bool
	ServiceName string
}

// New creates a Logger from cfg. Unknown levels fall back to info and
// unknown formats to json.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: utcTime,
	}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	l := slog.New(h)
	if cfg.ServiceName != "" {
		l = l.With(KeyService, cfg.ServiceName)
	}
	return &Logger{Logger: l}
}

// NewDefault logs info and above as JSON to stdout.
func NewDefault() *Logger {
	return New(Config{Level: "info", Format: "json", ServiceName: DefaultService})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithComponent tags every line with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With(KeyComponent, name)}
}

// FromContext returns l with the attributes stored in ctx attached.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	attrs := Attrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return &Logger{Logger: l.Logger.With(args...)}
}

// Fatal logs msg at error level and exits with status 1.
func (l *Logger) Fatal(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.Error(msg, args...)
	os.Exit(1)
}

// With returns a copy of ctx carrying args, given as slog key/value pairs
// or slog.Attr values, on top of the attributes ctx already has. Adding a
// key that is already present replaces its value.
func With(ctx context.Context, args ...any) context.Context {
	added := slog.Group("", args...).Value.Group()
	if len(added) == 0 {
		return ctx
	}

	prev := Attrs(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(added))
	for _, a := range prev {
		if !hasKey(added, a.Key) {
			merged = append(merged, a)
		}
	}
	merged = append(merged, added...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// Attrs returns the attributes stored in ctx. The slice must not be modified.
func Attrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

// ContextWithRequestID stores the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return With(ctx, KeyRequestID, id)
}

// RequestID returns the stored request ID, or "".
func RequestID(ctx context.Context) string {
	return stringAttr(ctx, KeyRequestID)
}

// ContextWithClientIP stores the resolved client address.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return With(ctx, KeyClientIP, ip)
}

// ClientIP returns the stored client address, or "".
func ClientIP(ctx context.Context) string {
	return stringAttr(ctx, KeyClientIP)
}

// ContextWithCompile records the compiler invocation for the lines logged
// while it runs. A zero timeout is omitted.
func ContextWithCompile(ctx context.Context, binary string, args []string, timeout time.Duration) context.Context {
	attrs := []any{
		slog.String(KeyBinary, binary),
		slog.Any(KeyArgs, args),
	}
	if timeout > 0 {
		attrs = append(attrs, slog.String(KeyTimeout, timeout.String()))
	}
	return With(ctx, attrs...)
}

func stringAttr(ctx context.Context, key string) string {
	for _, a := range Attrs(ctx) {
		if a.Key == key {
			return a.Value.String()
		}
	}
	return ""
}

func hasKey(attrs []slog.Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// utcTime renders the record time as RFC 3339 in UTC.
func utcTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
	}
	return a
}

// parseLevel accepts slog level names case-insensitively, plus "warning".
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
