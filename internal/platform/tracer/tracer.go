// Package tracer names the spans of the verification pipeline and wraps
// OpenTelemetry so a span can be ended with the operation's error.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	dErrors "kycproxy/pkg/domain-errors"
)

const instrumentationName = "kycproxy/verification"

const (
	SpanVerifyDocument   = "verification.document"
	SpanQuickscanCall    = "verification.quickscan.call"
	SpanPersistRecord    = "verification.persist"
	SpanLookup           = "verification.lookup"
	SpanSessionCreate    = "verification.session.create"
	SpanSessionDecision  = "verification.session.decision"
	SpanSessionsProvider = "verification.sessions.call"
)

const (
	AttrOutcome       = attribute.Key("outcome")
	AttrProvider      = attribute.Key("provider")
	AttrHasBackImage  = attribute.Key("document.has_back")
	AttrHandleAttempt = attribute.Key("handle.attempts")
	AttrRecordCount   = attribute.Key("records.count")
	AttrErrorCode     = attribute.Key("error.code")
)

const EventHandleCollision = "handle.collision"

// Tracer starts pipeline spans. The zero value is not usable; use New or Noop.
type Tracer struct {
	t trace.Tracer
}

// New traces through tp, or through the global provider when tp is nil.
func New(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{t: tp.Tracer(instrumentationName)}
}

// Noop discards every span.
func Noop() *Tracer {
	return New(noop.NewTracerProvider())
}

func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, span := t.t.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, Span{span: span}
}

// Span is one pipeline step. End must be called exactly once.
type Span struct {
	span trace.Span
}

func (s Span) Set(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s Span) Event(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span. A non-nil err marks it failed and, when err carries a
// domain code, records that code as error.code.
func (s Span) End(err error) {
	if err != nil {
		if code, ok := dErrors.CodeOf(err); ok {
			s.span.SetAttributes(AttrErrorCode.String(string(code)))
		}
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}
