package providers

import (
	"context"
	"sync"
	"time"
)

// MockClient is a configurable in-memory Client for tests
type MockClient struct {
	// ClientName is returned by Name
	ClientName string

	// GenerateFunc, when set, handles Generate calls
	GenerateFunc func(ctx context.Context, req *Request) (*Generation, error)

	// Err, when set and GenerateFunc is nil, fails every call
	Err error

	// Delay is slept (context-aware) before answering
	Delay time.Duration

	// Units reported on successful generations (defaults to the request's)
	Units int

	mu    sync.Mutex
	calls []*Request
}

// Name returns the mock's provider name
func (m *MockClient) Name() string {
	return m.ClientName
}

// Generate records the call and answers per the mock's configuration
func (m *MockClient) Generate(ctx context.Context, req *Request) (*Generation, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, NewClientError(m.ClientName, "CANCELLED", "generation cancelled", 0, ctx.Err())
		case <-time.After(m.Delay):
		}
	}

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	units := m.Units
	if units == 0 {
		units = req.Units
	}
	return &Generation{
		Provider:    m.ClientName,
		ContentType: req.ContentType,
		Output:      "mock output from " + m.ClientName,
		Units:       units,
		Model:       "mock-model",
		Created:     time.Now(),
	}, nil
}

// Calls returns the requests received so far
func (m *MockClient) Calls() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]*Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Generate calls received
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// NewMockClient creates a mock that succeeds for the given provider name
func NewMockClient(name string) *MockClient {
	return &MockClient{ClientName: name}
}

// NewFailingMockClient creates a mock that always fails with err
func NewFailingMockClient(name string, err error) *MockClient {
	return &MockClient{ClientName: name, Err: err}
}

// RateLimitError builds the classified error a provider returns when it is
// rate limiting
func RateLimitError(provider string) *ClientError {
	return NewClientError(provider, "RATE_LIMITED", "rate limit exceeded", 429, nil)
}

// assert interface compliance
var _ Client = (*MockClient)(nil)
