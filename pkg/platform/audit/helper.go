package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"kycproxy/internal/platform/privacy"
	"kycproxy/pkg/requestcontext"
)

// Emitter is the interface for audit event emission.
// Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger writes an audit line to the structured log and forwards the event to
// the emitter. Emission failures are logged and never returned.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewLogger creates an audit logger. Either argument may be nil.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{
		textLogger: textLogger,
		emitter:    emitter,
	}
}

// Log fills the event ID and whatever request metadata ctx carries (request
// ID, arrival time, masked client IP), then logs and emits it.
func (l *Logger) Log(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ClientIPPrefix == "" {
		if ip := requestcontext.ClientIP(ctx); ip != "" {
			event.ClientIPPrefix = privacy.AnonymizeIP(ip)
		}
	}

	if l.textLogger != nil {
		l.textLogger.InfoContext(ctx, string(event.Action),
			"event_id", event.ID,
			"event", event.Action,
			"log_type", "audit",
			"subject", event.Subject,
			"outcome", event.Outcome,
			"reason", event.Reason,
			"request_id", event.RequestID,
		)
	}

	if l.emitter == nil {
		return
	}
	if err := l.emitter.Emit(ctx, event); err != nil && l.textLogger != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", event.Action,
		)
	}
}
