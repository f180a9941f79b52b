// Package provider routes completion requests to an external provider with
// retry, circuit breaking and a single-shot fallback.
package provider

import "context"

// Client is one upstream completion provider.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a provider-agnostic completion request.
type Request struct {
	Prompt    string                 `json:"prompt"`
	Model     string                 `json:"model,omitempty"`
	MaxTokens int                    `json:"max_tokens,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Response carries the provider's answer plus which provider produced it.
type Response struct {
	Content  string                 `json:"content"`
	Provider string                 `json:"provider"`
	Usage    map[string]interface{} `json:"usage,omitempty"`
}
