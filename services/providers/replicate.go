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
	replicateDefaultBaseURL = "https://api.replicate.com/v1"
	replicateDefaultModel   = "stability-ai/stable-video-diffusion"
	replicatePollInterval   = 2 * time.Second
)

// ReplicateClient implements the Client interface for Replicate video and
// image generation. Replicate predictions are asynchronous: Generate
// submits a prediction and polls until it settles or the context expires.
type ReplicateClient struct {
	config       Config
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewReplicateClient creates a new Replicate client
func NewReplicateClient(config Config) *ReplicateClient {
	if config.BaseURL == "" {
		config.BaseURL = replicateDefaultBaseURL
	}
	return &ReplicateClient{
		config:       config,
		httpClient:   newHTTPClient(config),
		pollInterval: replicatePollInterval,
	}
}

// Name returns the provider name
func (c *ReplicateClient) Name() string {
	return "replicate"
}

// Generate submits a prediction and polls it to completion
func (c *ReplicateClient) Generate(ctx context.Context, req *Request) (*Generation, error) {
	if req.ContentType != models.ContentVideo && req.ContentType != models.ContentImage {
		return nil, unsupportedContent(c.Name(), req.ContentType)
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.config.DefaultModel
	}
	if model == "" {
		model = replicateDefaultModel
	}

	pred, err := c.createPrediction(ctx, model, req.Prompt)
	if err != nil {
		return nil, err
	}

	for !pred.settled() {
		select {
		case <-ctx.Done():
			return nil, NewClientError(c.Name(), "CANCELLED", "prediction polling cancelled", 0, ctx.Err())
		case <-time.After(c.pollInterval):
		}
		pred, err = c.getPrediction(ctx, pred.ID)
		if err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, NewClientError(c.Name(), "PREDICTION_FAILED", pred.Error, 0, nil)
	}
	if len(pred.Output) == 0 {
		return nil, NewClientError(c.Name(), "EMPTY_RESPONSE", "prediction produced no output", 0, nil)
	}

	units := req.Units
	if units < 1 {
		units = 1
	}

	return &Generation{
		Provider:    c.Name(),
		ContentType: req.ContentType,
		Output:      pred.Output[0],
		Units:       units,
		Model:       model,
		Latency:     time.Since(start),
		Created:     time.Now(),
	}, nil
}

func (c *ReplicateClient) createPrediction(ctx context.Context, model, prompt string) (*replicatePrediction, error) {
	body, err := json.Marshal(replicatePredictionRequest{
		Version: model,
		Input:   replicateInput{Prompt: prompt},
	})
	if err != nil {
		return nil, NewClientError(c.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, err)
	}
	return c.do(ctx, http.MethodPost, "/predictions", bytes.NewReader(body))
}

func (c *ReplicateClient) getPrediction(ctx context.Context, id string) (*replicatePrediction, error) {
	return c.do(ctx, http.MethodGet, "/predictions/"+id, nil)
}

func (c *ReplicateClient) do(ctx context.Context, method, path string, body io.Reader) (*replicatePrediction, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, NewClientError(c.Name(), "REQUEST_ERROR", "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.config.APIKey)
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

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		var errResp replicateErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			return nil, NewClientError(c.Name(), "UNKNOWN_ERROR", string(respBody), httpResp.StatusCode, err)
		}
		return nil, NewClientError(c.Name(), "API_ERROR", errResp.Detail, httpResp.StatusCode, nil)
	}

	var pred replicatePrediction
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return nil, NewClientError(c.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", 0, err)
	}
	return &pred, nil
}

// Replicate-specific request/response types

type replicateInput struct {
	Prompt string `json:"prompt"`
}

type replicatePredictionRequest struct {
	Version string         `json:"version"`
	Input   replicateInput `json:"input"`
}

type replicatePrediction struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

func (p *replicatePrediction) settled() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

type replicateErrorResponse struct {
	Detail string `json:"detail"`
}
