package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/houzhh15/smolcert/cert"
	"github.com/houzhh15/smolcert/transport"
)

// Client calls a remote validation API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// ClientConfig contains configuration for the validation client
type ClientConfig struct {
	BaseURL   string        // Validation API base URL
	TLSConfig *tls.Config   // TLS configuration for https endpoints
	Timeout   time.Duration // HTTP timeout (default: 10s)
}

// HealthResponse is the response from the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Anchors int    `json:"anchors"`
}

// NewClient creates a new validation API client
func NewClient(config *ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: config.TLSConfig,
			},
			Timeout: config.Timeout,
		},
		baseURL: config.BaseURL,
	}
}

// Validate submits a leaf-first chain.
// A rejected chain is not an error: inspect the returned response's Trusted and Kind.
func (c *Client) Validate(ctx context.Context, chain []*cert.Certificate) (*transport.ValidateResponse, error) {
	return c.validate(ctx, chain, false)
}

// ValidateBundle submits an unordered bundle
func (c *Client) ValidateBundle(ctx context.Context, bundle []*cert.Certificate) (*transport.ValidateResponse, error) {
	return c.validate(ctx, bundle, true)
}

func (c *Client) validate(ctx context.Context, certs []*cert.Certificate, bundle bool) (*transport.ValidateResponse, error) {
	reqBody := transport.ValidateRequest{
		Chain:  make([][]byte, len(certs)),
		Bundle: bundle,
	}
	for i, crt := range certs {
		b, err := crt.Bytes()
		if err != nil {
			return nil, fmt.Errorf("encode certificate %d: %w", i, err)
		}
		reqBody.Chain[i] = b
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/validate"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusServiceUnavailable:
	default:
		return nil, fmt.Errorf("validate failed (status %d): %s", resp.StatusCode, string(body))
	}

	var validateResp transport.ValidateResponse
	if err := json.Unmarshal(body, &validateResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &validateResp, nil
}

// Health fetches the service health
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	url := c.baseURL + "/healthz"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health failed (status %d): %s", resp.StatusCode, string(body))
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &health, nil
}
