package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"pulse/internal/config"
)

// HTTPClient talks JSON over HTTP to a completion endpoint.
type HTTPClient struct {
	name   string
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewHTTPClient(cfg config.ProviderConfig) *HTTPClient {
	return &HTTPClient{
		name:   cfg.Name,
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *HTTPClient) Name() string {
	return c.name
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, fmt.Errorf("provider returned status: %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	out.Provider = c.name
	return out, nil
}
