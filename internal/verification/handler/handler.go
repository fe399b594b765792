package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycproxy/internal/verification/models"
	"kycproxy/pkg/platform/httputil"
	"kycproxy/pkg/requestcontext"
)

// Service defines the verification operations used by the handlers.
type Service interface {
	VerifyDocument(ctx context.Context, req models.VerifyRequest) (*models.Result, error)
	Lookup(ctx context.Context, handle string) (*models.LookupResult, error)
	CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error)
	SessionDecision(ctx context.Context, sessionID string) (*models.SessionDecision, error)
}

// Intake stores uploaded document images.
type Intake interface {
	Receive(r *http.Request) (models.VerifyRequest, error)
}

// Handler serves the verification and session endpoints.
type Handler struct {
	service Service
	intake  Intake
	logger  *slog.Logger

	verifyLimit  func(http.Handler) http.Handler
	sessionLimit func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimits guards the two routes that call a paid vendor.
func WithRateLimits(verify, sessions func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.verifyLimit = verify
		h.sessionLimit = sessions
	}
}

// New creates a verification handler.
func New(service Service, intake Intake, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		intake:  intake,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the handler routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.With(middlewares(h.verifyLimit)...).Post("/v1/verifications/document", h.HandleVerifyDocument)
	r.Get("/v1/verifications", h.HandleLookup)
	r.With(middlewares(h.sessionLimit)...).Post("/v1/sessions", h.HandleCreateSession)
	r.Get("/v1/sessions/{sessionID}/decision", h.HandleSessionDecision)
}

func middlewares(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}

// VerifiedResponse is returned when a document passes the age threshold.
type VerifiedResponse struct {
	Status       string `json:"status"`
	Age          int    `json:"age"`
	Handle       string `json:"handle"`
	UserImageURL string `json:"userImageUrl"`
}

// IneligibleResponse is returned when the subject is too young.
type IneligibleResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type recordResponse struct {
	ID        string `json:"id"`
	Age       int    `json:"age"`
	Handle    string `json:"handle"`
	CreatedAt string `json:"createdAt"`
}

// LookupResponse lists records for a handle.
type LookupResponse struct {
	Records      []recordResponse `json:"records"`
	UserImageURL string           `json:"userImageUrl"`
}

// SessionResponse describes a created hosted session.
type SessionResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// DecisionResponse is the session verdict with the adult gate applied.
type DecisionResponse struct {
	SessionID          string `json:"sessionId"`
	Status             string `json:"status"`
	VerificationStatus string `json:"verificationStatus,omitempty"`
	DateOfBirthValid   bool   `json:"dateOfBirthValid"`
	Adult              bool   `json:"adult"`
}

// HandleVerifyDocument handles POST /v1/verifications/document.
func (h *Handler) HandleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := h.intake.Receive(r)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected document upload", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.VerifyDocument(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "document verification failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	if result.Outcome == models.OutcomeIneligible {
		httputil.WriteJSON(w, http.StatusOK, IneligibleResponse{
			Status:  string(result.Outcome),
			Message: result.Message,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifiedResponse{
		Status:       string(result.Outcome),
		Age:          result.Age,
		Handle:       result.Handle.String(),
		UserImageURL: result.UserImageURL,
	})
}

// HandleLookup handles GET /v1/verifications?handle=<handle>.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Lookup(ctx, r.URL.Query().Get("handle"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records := make([]recordResponse, 0, len(result.Records))
	for _, rec := range result.Records {
		records = append(records, recordResponse{
			ID:        rec.ID.String(),
			Age:       rec.Age,
			Handle:    rec.Handle.String(),
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, LookupResponse{
		Records:      records,
		UserImageURL: result.UserImageURL,
	})
}

// HandleCreateSession handles POST /v1/sessions.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Bind[models.CreateSessionRequest](w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.service.CreateSession(ctx, *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, SessionResponse{
		ID:     session.ID.String(),
		URL:    session.URL,
		Status: session.Status,
	})
}

// HandleSessionDecision handles GET /v1/sessions/{sessionID}/decision.
func (h *Handler) HandleSessionDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	decision, err := h.service.SessionDecision(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DecisionResponse{
		SessionID:          decision.SessionID.String(),
		Status:             decision.Status,
		VerificationStatus: decision.VerificationStatus,
		DateOfBirthValid:   decision.DateOfBirthValid,
		Adult:              decision.Adult,
	})
}
