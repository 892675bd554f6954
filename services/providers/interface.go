package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/contentpilot/engine/models"
)

// Client is the unified generation interface every provider adapter
// implements. Adapters are thin: they translate the unified request into
// the provider's wire format and classify failures; routing, failover and
// accounting live above them.
type Client interface {
	// Name returns the provider name (e.g. "openai", "stability")
	Name() string

	// Generate performs one generation attempt. The context carries the
	// attempt's deadline; adapters must respect cancellation.
	Generate(ctx context.Context, req *Request) (*Generation, error)
}

// Request is a unified generation request
type Request struct {
	// ContentType selects the generation endpoint
	ContentType models.ContentType `json:"content_type"`

	// Prompt is the generation instruction
	Prompt string `json:"prompt"`

	// Units is the requested output size in content units: tokens for
	// text, images for image, seconds for video. Zero means provider default.
	Units int `json:"units,omitempty"`

	// Model optionally overrides the adapter's default model
	Model string `json:"model,omitempty"`

	// Metadata for tracking and logging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Generation is a unified generation result
type Generation struct {
	// Provider that produced the result
	Provider string `json:"provider"`

	ContentType models.ContentType `json:"content_type"`

	// Output is the generated text, or an asset URL for image and video
	Output string `json:"output"`

	// Units actually consumed, as reported or estimated by the adapter
	Units int `json:"units"`

	// Model that served the request
	Model string `json:"model"`

	Latency time.Duration `json:"latency"`
	Created time.Time     `json:"created"`
}

// Config holds common configuration for provider adapters
type Config struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout is the adapter's HTTP client timeout. The per-attempt
	// deadline set by the caller's context is usually tighter.
	Timeout time.Duration

	// DefaultModel used when the request names none
	DefaultModel string

	// Additional headers
	Headers map[string]string
}

// newHTTPClient builds the adapter HTTP client
func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ClientError is a classified failure from a provider adapter
type ClientError struct {
	// Provider that generated the error
	Provider string

	// Code is the provider's error code or type
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// RateLimited marks an explicit rate-limit response
	RateLimited bool

	// Retryable indicates the request may succeed on another attempt
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// NewClientError creates a classified adapter error
func NewClientError(provider, code, message string, statusCode int, cause error) *ClientError {
	return &ClientError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		RateLimited: statusCode == http.StatusTooManyRequests,
		Retryable:   statusCode >= 500 || statusCode == http.StatusTooManyRequests,
		Cause:       cause,
	}
}

// IsRateLimited checks whether an error is an explicit rate-limit failure
func IsRateLimited(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.RateLimited
	}
	return false
}

// IsRetryable checks whether an error may succeed on another attempt
func IsRetryable(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Retryable
	}
	return false
}

// unsupportedContent is the adapter error for a content type the provider
// cannot generate
func unsupportedContent(provider string, ct models.ContentType) error {
	return NewClientError(provider, "UNSUPPORTED_CONTENT",
		"content type "+string(ct)+" not supported", 0, nil)
}
