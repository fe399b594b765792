package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"kycproxy/internal/verification/providers"
)

// maxResponseBytes caps vendor response bodies read into memory.
const maxResponseBytes = 1 << 20

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPAdapter performs JSON calls against a vendor API and classifies failures
// into the provider error taxonomy.
type HTTPAdapter struct {
	id           string
	baseURL      string
	apiKey       string
	apiKeyHeader string
	client       HTTPDoer
	timeout      time.Duration
}

// HTTPAdapterConfig configures an HTTP adapter.
type HTTPAdapterConfig struct {
	ID           string
	BaseURL      string
	APIKey       string
	APIKeyHeader string // defaults to X-API-Key
	Timeout      time.Duration
	HTTPClient   HTTPDoer
}

// New creates an HTTP adapter. Timeout bounds every call, including calls
// made with an injected client.
func New(cfg HTTPAdapterConfig) *HTTPAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPAdapter{
		id:           cfg.ID,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		apiKeyHeader: cfg.APIKeyHeader,
		client:       client,
		timeout:      cfg.Timeout,
	}
}

// ID returns the provider identifier.
func (a *HTTPAdapter) ID() string {
	return a.id
}

// DoJSON sends body (if non-nil) as JSON to path and returns the raw 2xx
// response body. Any other outcome is a *providers.Error.
func (a *HTTPAdapter) DoJSON(ctx context.Context, method, path string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, providers.NewError(providers.CategoryInternal, a.id, "failed to marshal request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, providers.NewError(providers.CategoryInternal, a.id, "failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set(a.apiKeyHeader, a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, providers.NewError(providers.CategoryTimeout, a.id, "request timeout", err)
		}
		return nil, providers.NewError(providers.CategoryOutage, a.id, "failed to execute request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, providers.NewError(providers.CategoryBadData, a.id, "failed to read response", err)
	}

	if err := a.classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return respBody, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (a *HTTPAdapter) classifyStatus(status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return providers.StatusError(a.id, status)
}

// Decode unmarshals a response body, reporting failures as bad_data.
func (a *HTTPAdapter) Decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return providers.NewError(providers.CategoryBadData, a.id, "failed to parse response", err)
	}
	return nil
}
