package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/contentpilot/engine/models"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicDefaultModel   = "claude-sonnet-4-20250514"
	anthropicAPIVersion     = "2023-06-01"
	anthropicDefaultTokens  = 1024
)

// AnthropicClient implements the Client interface for Anthropic text
// generation
type AnthropicClient struct {
	config     Config
	httpClient *http.Client
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(config Config) *AnthropicClient {
	if config.BaseURL == "" {
		config.BaseURL = anthropicDefaultBaseURL
	}
	return &AnthropicClient{
		config:     config,
		httpClient: newHTTPClient(config),
	}
}

// Name returns the provider name
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Generate performs a text generation through the messages endpoint
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Generation, error) {
	if req.ContentType != models.ContentText {
		return nil, unsupportedContent(c.Name(), req.ContentType)
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.config.DefaultModel
	}
	if model == "" {
		model = anthropicDefaultModel
	}

	maxTokens := req.Units
	if maxTokens < 1 {
		maxTokens = anthropicDefaultTokens
	}

	body, err := json.Marshal(anthropicMessageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, NewClientError(c.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, NewClientError(c.Name(), "REQUEST_ERROR", "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewClientError(c.Name(), "HTTP_ERROR", "http request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewClientError(c.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var msgResp anthropicMessageResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, NewClientError(c.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", 0, err)
	}
	if len(msgResp.Content) == 0 {
		return nil, NewClientError(c.Name(), "EMPTY_RESPONSE", "response contained no content", 0, nil)
	}

	return &Generation{
		Provider:    c.Name(),
		ContentType: models.ContentText,
		Output:      msgResp.Content[0].Text,
		Units:       msgResp.Usage.OutputTokens,
		Model:       msgResp.Model,
		Latency:     time.Since(start),
		Created:     time.Now(),
	}, nil
}

// handleErrorResponse handles Anthropic error responses
func (c *AnthropicClient) handleErrorResponse(statusCode int, body []byte) error {
	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewClientError(c.Name(), "UNKNOWN_ERROR", string(body), statusCode, err)
	}
	return NewClientError(c.Name(), errResp.Error.Type, errResp.Error.Message, statusCode, nil)
}

// Anthropic-specific request/response types

type anthropicMessageRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessageResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
