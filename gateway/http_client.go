package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClientConfig represents configuration for the gateway HTTP client
type HTTPClientConfig struct {
	Timeout        time.Duration
	DefaultHeaders map[string]string
}

// HTTPRequest represents a standardized HTTP request to a provider endpoint
type HTTPRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	FormData map[string]string
}

// HTTPResponse represents a standardized HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RawBody    string
}

// HTTPClient provides standardized HTTP operations for gateway adapters.
// Requests carry a bounded timeout; nothing is retried.
type HTTPClient struct {
	config *HTTPClientConfig
	client *http.Client
}

// NewHTTPClient creates a new gateway HTTP client
func NewHTTPClient(config *HTTPClientConfig) *HTTPClient {
	if config == nil {
		config = &HTTPClientConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// SendForm sends a form-encoded request and returns the response.
// A non-2xx status is returned as an error alongside the response body.
func (c *HTTPClient) SendForm(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	formData := url.Values{}
	for key, value := range req.FormData {
		formData.Set(key, value)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		RawBody:    string(respBody),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return response, nil
}
