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
	openaiDefaultBaseURL    = "https://api.openai.com/v1"
	openaiDefaultTextModel  = "gpt-4o-mini"
	openaiDefaultImageModel = "dall-e-3"
)

// OpenAIClient implements the Client interface for OpenAI text and image
// generation
type OpenAIClient struct {
	config     Config
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config Config) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = openaiDefaultBaseURL
	}
	return &OpenAIClient{
		config:     config,
		httpClient: newHTTPClient(config),
	}
}

// Name returns the provider name
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Generate dispatches to the chat completions or image endpoint
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Generation, error) {
	switch req.ContentType {
	case models.ContentText:
		return c.generateText(ctx, req)
	case models.ContentImage:
		return c.generateImage(ctx, req)
	default:
		return nil, unsupportedContent(c.Name(), req.ContentType)
	}
}

func (c *OpenAIClient) generateText(ctx context.Context, req *Request) (*Generation, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.config.DefaultModel
	}
	if model == "" {
		model = openaiDefaultTextModel
	}

	payload := openaiChatRequest{
		Model:    model,
		Messages: []openaiMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.Units > 0 {
		payload.MaxTokens = &req.Units
	}

	respBody, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	var chatResp openaiChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, NewClientError(c.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", 0, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, NewClientError(c.Name(), "EMPTY_RESPONSE", "response contained no choices", 0, nil)
	}

	return &Generation{
		Provider:    c.Name(),
		ContentType: models.ContentText,
		Output:      chatResp.Choices[0].Message.Content,
		Units:       chatResp.Usage.CompletionTokens,
		Model:       chatResp.Model,
		Latency:     time.Since(start),
		Created:     time.Unix(chatResp.Created, 0),
	}, nil
}

func (c *OpenAIClient) generateImage(ctx context.Context, req *Request) (*Generation, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = openaiDefaultImageModel
	}

	n := req.Units
	if n < 1 {
		n = 1
	}

	respBody, err := c.post(ctx, "/images/generations", openaiImageRequest{
		Model:  model,
		Prompt: req.Prompt,
		N:      n,
	})
	if err != nil {
		return nil, err
	}

	var imageResp openaiImageResponse
	if err := json.Unmarshal(respBody, &imageResp); err != nil {
		return nil, NewClientError(c.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", 0, err)
	}
	if len(imageResp.Data) == 0 {
		return nil, NewClientError(c.Name(), "EMPTY_RESPONSE", "response contained no images", 0, nil)
	}

	return &Generation{
		Provider:    c.Name(),
		ContentType: models.ContentImage,
		Output:      imageResp.Data[0].URL,
		Units:       len(imageResp.Data),
		Model:       model,
		Latency:     time.Since(start),
		Created:     time.Unix(imageResp.Created, 0),
	}, nil
}

// post executes one JSON request and returns the raw body on 200
func (c *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewClientError(c.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, NewClientError(c.Name(), "REQUEST_ERROR", "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
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
	return respBody, nil
}

// handleErrorResponse handles OpenAI error responses
func (c *OpenAIClient) handleErrorResponse(statusCode int, body []byte) error {
	var errResp openaiErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewClientError(c.Name(), "UNKNOWN_ERROR", string(body), statusCode, err)
	}
	return NewClientError(c.Name(), errResp.Error.Type, errResp.Error.Message, statusCode, nil)
}

// OpenAI-specific request/response types

type openaiChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens *int            `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openaiImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n,omitempty"`
}

type openaiImageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
