// Package quickscan is the client for the document OCR and claims provider.
package quickscan

import (
	"context"
	"net/http"
	"time"

	"kycproxy/internal/verification/providers"
	"kycproxy/internal/verification/providers/adapters"
)

// ProviderID identifies the quickscan vendor in errors, metrics and spans.
const ProviderID = "quickscan"

const (
	scanPath     = "/quickscan"
	apiKeyHeader = "X-API-KEY"
)

// ScanRequest carries base64-encoded document images.
type ScanRequest struct {
	Document     string `json:"document"`
	DocumentBack string `json:"documentBack,omitempty"`
}

// ScanResult holds the claims extracted from a scan.
type ScanResult struct {
	Age int
}

// scanResponse mirrors the subset of the vendor payload we depend on.
// Pointers distinguish absent fields from zero values.
type scanResponse struct {
	Data *struct {
		Age []struct {
			Value *int `json:"value"`
		} `json:"age"`
	} `json:"data"`
}

// Client calls the quickscan endpoint.
type Client struct {
	adapter *adapters.HTTPAdapter
}

// New constructs a quickscan client backed by the default HTTP client.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return NewWithClient(baseURL, apiKey, timeout, nil)
}

// NewWithClient constructs a quickscan client with an optional HTTP client override.
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

// Scan submits the document images and returns the first age claim.
// A response without data.age[0].value is a bad_data provider error.
func (c *Client) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if req.Document == "" {
		return nil, providers.NewError(providers.CategoryInternal, ProviderID, "document image is required", nil)
	}

	body, err := c.adapter.DoJSON(ctx, http.MethodPost, scanPath, req)
	if err != nil {
		return nil, err
	}

	var resp scanResponse
	if err := c.adapter.Decode(body, &resp); err != nil {
		return nil, err
	}
	return parseScanResponse(resp)
}

func parseScanResponse(resp scanResponse) (*ScanResult, error) {
	switch {
	case resp.Data == nil:
		return nil, providers.NewError(providers.CategoryBadData, ProviderID, "response has no data", nil)
	case len(resp.Data.Age) == 0:
		return nil, providers.NewError(providers.CategoryBadData, ProviderID, "response has no age claim", nil)
	case resp.Data.Age[0].Value == nil:
		return nil, providers.NewError(providers.CategoryBadData, ProviderID, "age claim has no value", nil)
	}
	return &ScanResult{Age: *resp.Data.Age[0].Value}, nil
}
