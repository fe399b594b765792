// Package logger builds the service's slog logger. Records carry the
// service name and, inside a sampled span, its trace and span IDs.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

type options struct {
	w     io.Writer
	text  bool
	attrs []any
}

type Option func(*options)

// WithWriter redirects output, mainly for tests.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.w = w }
}

// WithText switches from JSON to logfmt-style text output.
func WithText(text bool) Option {
	return func(o *options) { o.text = text }
}

// WithAttrs attaches key/value pairs to every record.
func WithAttrs(args ...any) Option {
	return func(o *options) { o.attrs = append(o.attrs, args...) }
}

// New returns a logger at level writing JSON to stdout unless overridden.
func New(level slog.Level, opts ...Option) *slog.Logger {
	o := options{w: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	ho := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewJSONHandler(o.w, ho)
	if o.text {
		h = slog.NewTextHandler(o.w, ho)
	}
	return slog.New(traceHandler{h}).With("service", "kycproxy").With(o.attrs...)
}

type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}
