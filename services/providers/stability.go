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
	stabilityDefaultBaseURL = "https://api.stability.ai/v1"
	stabilityDefaultEngine  = "stable-diffusion-xl-1024-v1-0"
)

// StabilityClient implements the Client interface for Stability AI image
// generation
type StabilityClient struct {
	config     Config
	httpClient *http.Client
}

// NewStabilityClient creates a new Stability AI client
func NewStabilityClient(config Config) *StabilityClient {
	if config.BaseURL == "" {
		config.BaseURL = stabilityDefaultBaseURL
	}
	return &StabilityClient{
		config:     config,
		httpClient: newHTTPClient(config),
	}
}

// Name returns the provider name
func (c *StabilityClient) Name() string {
	return "stability"
}

// Generate performs an image generation through the text-to-image endpoint
func (c *StabilityClient) Generate(ctx context.Context, req *Request) (*Generation, error) {
	if req.ContentType != models.ContentImage {
		return nil, unsupportedContent(c.Name(), req.ContentType)
	}

	start := time.Now()

	engine := req.Model
	if engine == "" {
		engine = c.config.DefaultModel
	}
	if engine == "" {
		engine = stabilityDefaultEngine
	}

	samples := req.Units
	if samples < 1 {
		samples = 1
	}

	body, err := json.Marshal(stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: req.Prompt}},
		Samples:     samples,
	})
	if err != nil {
		return nil, NewClientError(c.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, err)
	}

	url := c.config.BaseURL + "/generation/" + engine + "/text-to-image"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewClientError(c.Name(), "REQUEST_ERROR", "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
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

	var genResp stabilityResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, NewClientError(c.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", 0, err)
	}
	if len(genResp.Artifacts) == 0 {
		return nil, NewClientError(c.Name(), "EMPTY_RESPONSE", "response contained no artifacts", 0, nil)
	}

	return &Generation{
		Provider:    c.Name(),
		ContentType: models.ContentImage,
		Output:      genResp.Artifacts[0].Base64,
		Units:       len(genResp.Artifacts),
		Model:       engine,
		Latency:     time.Since(start),
		Created:     time.Now(),
	}, nil
}

// handleErrorResponse handles Stability error responses
func (c *StabilityClient) handleErrorResponse(statusCode int, body []byte) error {
	var errResp stabilityErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewClientError(c.Name(), "UNKNOWN_ERROR", string(body), statusCode, err)
	}
	return NewClientError(c.Name(), errResp.Name, errResp.Message, statusCode, nil)
}

// Stability-specific request/response types

type stabilityPrompt struct {
	Text string `json:"text"`
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	Samples     int               `json:"samples,omitempty"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
		Seed         int64  `json:"seed"`
	} `json:"artifacts"`
}

type stabilityErrorResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}
