// Package sessions is a pass-through client for the hosted verification-session provider.
package sessions

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"kycproxy/internal/verification/providers"
	"kycproxy/internal/verification/providers/adapters"
)

// ProviderID identifies the session vendor in errors, metrics and spans.
const ProviderID = "sessions"

const apiKeyHeader = "X-API-KEY"

// CreateRequest starts a hosted verification session.
type CreateRequest struct {
	CallbackURL string
	VendorData  string
}

// Session is the vendor's view of a newly created session.
type Session struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Decision is the vendor's final verdict on a session.
type Decision struct {
	Status             string
	VerificationStatus string
	DateOfBirth        string
}

type createBody struct {
	Verification struct {
		Callback   string `json:"callback,omitempty"`
		VendorData string `json:"vendorData,omitempty"`
	} `json:"verification"`
}

type createResponse struct {
	Verification *Session `json:"verification"`
}

type decisionResponse struct {
	Status       string `json:"status"`
	Verification *struct {
		Status string `json:"status"`
		Person *struct {
			DateOfBirth string `json:"dateOfBirth"`
		} `json:"person"`
	} `json:"verification"`
}

// Client calls the session provider.
type Client struct {
	adapter *adapters.HTTPAdapter
}

// New constructs a sessions client backed by the default HTTP client.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return NewWithClient(baseURL, apiKey, timeout, nil)
}

// NewWithClient constructs a sessions client with an optional HTTP client override.
func NewWithClient(baseURL, apiKey string, timeout time.Duration, client adapters.HTTPDoer) *Client {
	return &Client{
		adapter: adapters.New(adapters.HTTPAdapterConfig{
			ID:           ProviderID,
			BaseURL:      baseURL,
			APIKey:       apiKey,
			APIKeyHeader: apiKeyHeader,
			Timeout:      timeout,
			HTTPClient:   client,
		}),
	}
}

// CreateSession registers a session and returns the hosted flow URL.
func (c *Client) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	var body createBody
	body.Verification.Callback = req.CallbackURL
	body.Verification.VendorData = req.VendorData

	raw, err := c.adapter.DoJSON(ctx, http.MethodPost, "/v1/sessions", body)
	if err != nil {
		return nil, err
	}

	var resp createResponse
	if err := c.adapter.Decode(raw, &resp); err != nil {
		return nil, err
	}
	if resp.Verification == nil || resp.Verification.ID == "" || resp.Verification.URL == "" {
		return nil, providers.NewError(providers.CategoryBadData, ProviderID, "session response missing id or url", nil)
	}
	return resp.Verification, nil
}

// Decision fetches the verdict for sessionID. A session without a verification
// block yet is returned with only Status populated.
func (c *Client) Decision(ctx context.Context, sessionID string) (*Decision, error) {
	raw, err := c.adapter.DoJSON(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/decision", nil)
	if err != nil {
		return nil, err
	}

	var resp decisionResponse
	if err := c.adapter.Decode(raw, &resp); err != nil {
		return nil, err
	}

	decision := &Decision{Status: resp.Status}
	if v := resp.Verification; v != nil {
		decision.VerificationStatus = v.Status
		if v.Person != nil {
			decision.DateOfBirth = v.Person.DateOfBirth
		}
	}
	return decision, nil
}
