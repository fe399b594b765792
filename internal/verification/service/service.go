// Package service implements the document verification pipeline, record
// lookup, and the hosted-session pass-through.
package service

import (
	"context"
	"log/slog"
	"os"

	"kycproxy/internal/platform/tracer"
	"kycproxy/internal/verification/metrics"
	"kycproxy/internal/verification/models"
	"kycproxy/internal/verification/providers/quickscan"
	"kycproxy/internal/verification/providers/sessions"
	"kycproxy/pkg/domain"
	"kycproxy/pkg/platform/audit"
)

const (
	defaultMinAge            = 19
	defaultHandleMaxAttempts = 3
)

// Scanner extracts claims from document images.
type Scanner interface {
	Scan(ctx context.Context, req quickscan.ScanRequest) (*quickscan.ScanResult, error)
}

// SessionProvider manages hosted verification sessions.
type SessionProvider interface {
	CreateSession(ctx context.Context, req sessions.CreateRequest) (*sessions.Session, error)
	Decision(ctx context.Context, sessionID string) (*sessions.Decision, error)
}

// RecordStore persists verification records.
type RecordStore interface {
	Insert(ctx context.Context, record models.Record) (models.Record, error)
	FindByHandle(ctx context.Context, handle domain.Handle) ([]models.Record, error)
}

// AuditLogger records audit events. Failures never affect the caller.
type AuditLogger interface {
	Log(ctx context.Context, event audit.Event)
}

// Config holds the business settings of the pipeline.
type Config struct {
	MinAge             int
	ImageBaseURL       string
	HandleMaxAttempts  int
	DefaultCallbackURL string
}

// Service coordinates vendor calls, persistence, and upload cleanup.
type Service struct {
	scanner  Scanner
	sessions SessionProvider
	store    RecordStore
	cfg      Config

	logger  *slog.Logger
	tracer  *tracer.Tracer
	metrics *metrics.Metrics
	auditor AuditLogger

	newHandle  func() (domain.Handle, error)
	readFile   func(path string) ([]byte, error)
	removeFile func(path string) error
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer used for pipeline spans.
func WithTracer(t *tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditor sets the audit logger.
func WithAuditor(a AuditLogger) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// WithSessionProvider enables the hosted-session operations.
func WithSessionProvider(p SessionProvider) Option {
	return func(s *Service) {
		s.sessions = p
	}
}

// New creates the verification service.
func New(scanner Scanner, store RecordStore, cfg Config, opts ...Option) *Service {
	if cfg.MinAge <= 0 {
		cfg.MinAge = defaultMinAge
	}
	if cfg.HandleMaxAttempts <= 0 {
		cfg.HandleMaxAttempts = defaultHandleMaxAttempts
	}
	s := &Service{
		scanner:    scanner,
		store:      store,
		cfg:        cfg,
		logger:     slog.Default(),
		tracer:     tracer.Noop(),
		newHandle:  domain.NewHandle,
		readFile:   os.ReadFile,
		removeFile: os.Remove,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) audit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	s.auditor.Log(ctx, event)
}

func (s *Service) imageURL() string {
	return models.ImageURL(s.cfg.ImageBaseURL)
}
