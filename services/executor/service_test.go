package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services"
	"github.com/contentpilot/engine/services/catalog"
	"github.com/contentpilot/engine/services/health"
	"github.com/contentpilot/engine/services/providers"
	"github.com/contentpilot/engine/services/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	mu      sync.Mutex
	records []*models.UsageRecord
}

func (s *captureSink) Record(record *models.UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *captureSink) all() []*models.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.UsageRecord, len(s.records))
	copy(out, s.records)
	return out
}

type harness struct {
	catalog     *catalog.Catalog
	registry    *providers.Registry
	breaker     *health.Breaker
	sink        *captureSink
	coordinator *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat := catalog.NewCatalog(zap.NewNop())
	reg := providers.NewRegistry(zap.NewNop())
	brk := health.NewBreaker(health.Config{
		FailureThreshold:  3,
		FailureCooldown:   time.Minute,
		RateLimitCooldown: time.Minute,
	}, zap.NewNop())
	sink := &captureSink{}
	cfg := Config{TextTimeout: 50 * time.Millisecond, ImageTimeout: 50 * time.Millisecond, VideoTimeout: 50 * time.Millisecond}
	return &harness{
		catalog:     cat,
		registry:    reg,
		breaker:     brk,
		sink:        sink,
		coordinator: NewCoordinator(reg, cat, brk, cfg, zap.NewNop(), sink),
	}
}

func (h *harness) addProvider(t *testing.T, name string, cost float64) {
	t.Helper()
	require.NoError(t, h.catalog.Register(models.ProviderConfig{
		Name:         name,
		Capabilities: []models.ContentType{models.ContentText},
		CostPerUnit:  cost,
		Quality:      80,
		Speed:        70,
		Tiers:        []models.ServiceTier{models.TierFree},
		Credential:   "sk-test",
	}))
}

func decisionFor(names ...string) *routing.Decision {
	candidates := make([]routing.Candidate, len(names))
	for i, n := range names {
		candidates[i] = routing.Candidate{Provider: n, Score: 50}
	}
	return &routing.Decision{
		ContentType: models.ContentText,
		Tier:        models.TierFree,
		Candidates:  candidates,
		Reason:      "test decision",
		CreatedAt:   time.Now(),
	}
}

func textRequest() *providers.Request {
	return &providers.Request{ContentType: models.ContentText, Prompt: "hello", Units: 100}
}

func TestCoordinator_PrimarySucceeds(t *testing.T) {
	h := newHarness(t)
	h.addProvider(t, "openai", 2.0)
	h.registry.Register(&providers.MockClient{ClientName: "openai", Units: 500})

	res, err := h.coordinator.Execute(context.Background(), decisionFor("openai"), textRequest())
	require.NoError(t, err)

	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, 1, res.AttemptNumber)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, "test decision", res.SelectionReason)
	assert.InDelta(t, 1.0, res.Cost, 0.0001) // 500 units at 2.0 per 1000

	records := h.sink.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.InDelta(t, 1.0, records[0].Cost, 0.0001)
	assert.Equal(t, health.StateAvailable, h.breaker.StateOf("openai").State)
}

func TestCoordinator_FailsOverInOrder(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"a", "b", "c"} {
		h.addProvider(t, name, 1.0)
	}
	first := providers.NewFailingMockClient("a", providers.NewClientError("a", "server_error", "boom", 500, nil))
	second := providers.NewFailingMockClient("b", providers.NewClientError("b", "server_error", "boom", 503, nil))
	third := &providers.MockClient{ClientName: "c"}
	h.registry.Register(first)
	h.registry.Register(second)
	h.registry.Register(third)

	res, err := h.coordinator.Execute(context.Background(), decisionFor("a", "b", "c"), textRequest())
	require.NoError(t, err)

	assert.Equal(t, "c", res.Provider)
	assert.Equal(t, 3, res.AttemptNumber)
	assert.True(t, res.FallbackUsed)

	// each candidate attempted exactly once
	assert.Equal(t, 1, first.CallCount())
	assert.Equal(t, 1, second.CallCount())
	assert.Equal(t, 1, third.CallCount())

	records := h.sink.all()
	require.Len(t, records, 3)
	assert.False(t, records[0].Success)
	assert.False(t, records[1].Success)
	assert.True(t, records[2].Success)
}

func TestCoordinator_AllProvidersFailed(t *testing.T) {
	h := newHarness(t)
	h.addProvider(t, "a", 1.0)
	h.addProvider(t, "b", 1.0)
	h.registry.Register(providers.NewFailingMockClient("a", providers.NewClientError("a", "x", "boom", 500, nil)))
	h.registry.Register(providers.NewFailingMockClient("b", providers.NewClientError("b", "x", "boom", 500, nil)))

	_, err := h.coordinator.Execute(context.Background(), decisionFor("a", "b"), textRequest())
	require.Error(t, err)
	assert.True(t, services.IsAllProvidersFailed(err))
	assert.Equal(t, []string{"a", "b"}, services.AttemptedProviders(err))
}

func TestCoordinator_RateLimitResponseDisqualifiesImmediately(t *testing.T) {
	h := newHarness(t)
	h.addProvider(t, "a", 1.0)
	h.addProvider(t, "b", 1.0)
	h.registry.Register(providers.NewFailingMockClient("a", providers.RateLimitError("a")))
	h.registry.Register(&providers.MockClient{ClientName: "b"})

	res, err := h.coordinator.Execute(context.Background(), decisionFor("a", "b"), textRequest())
	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)

	// one rate-limit failure is enough to disqualify
	assert.Equal(t, health.StateDisqualified, h.breaker.StateOf("a").State)
}

func TestCoordinator_TimeoutCountsAsTimeoutFailure(t *testing.T) {
	h := newHarness(t)
	h.addProvider(t, "slow", 1.0)
	h.addProvider(t, "fast", 1.0)
	h.registry.Register(&providers.MockClient{ClientName: "slow", Delay: 200 * time.Millisecond})
	h.registry.Register(&providers.MockClient{ClientName: "fast"})

	res, err := h.coordinator.Execute(context.Background(), decisionFor("slow", "fast"), textRequest())
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Provider)
	assert.True(t, res.FallbackUsed)

	records := h.sink.all()
	require.Len(t, records, 2)
	assert.False(t, records[0].Success)
	assert.Equal(t, health.StateDegraded, h.breaker.StateOf("slow").State)
}

func TestCoordinator_CallerCancellationWritesNoRecord(t *testing.T) {
	h := newHarness(t)
	h.addProvider(t, "slow", 1.0)
	h.registry.Register(&providers.MockClient{ClientName: "slow", Delay: 200 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.coordinator.Execute(ctx, decisionFor("slow"), textRequest())
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, h.sink.all())
	// cancellation is not a provider failure
	assert.Equal(t, health.StateAvailable, h.breaker.StateOf("slow").State)
}

func TestCoordinator_LocalLimiterExhaustionSkipsProvider(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.catalog.Register(models.ProviderConfig{
		Name:         "limited",
		Capabilities: []models.ContentType{models.ContentText},
		CostPerUnit:  1.0,
		Tiers:        []models.ServiceTier{models.TierFree},
		Credential:   "sk-test",
		RateLimit:    0.001,
		Burst:        1,
	}))
	h.addProvider(t, "backup", 1.0)
	limited := &providers.MockClient{ClientName: "limited"}
	h.registry.Register(limited)
	h.registry.Register(&providers.MockClient{ClientName: "backup"})

	// drain the single burst token
	require.True(t, h.catalog.Limiter("limited").Allow())

	res, err := h.coordinator.Execute(context.Background(), decisionFor("limited", "backup"), textRequest())
	require.NoError(t, err)
	assert.Equal(t, "backup", res.Provider)

	// the provider was never called and took a rate-limit penalty
	assert.Equal(t, 0, limited.CallCount())
	assert.Equal(t, health.StateDisqualified, h.breaker.StateOf("limited").State)
}

func TestCoordinator_MissingClientSkipsCandidate(t *testing.T) {
	h := newHarness(t)
	h.addProvider(t, "ghost", 1.0)
	h.addProvider(t, "real", 1.0)
	h.registry.Register(&providers.MockClient{ClientName: "real"})

	res, err := h.coordinator.Execute(context.Background(), decisionFor("ghost", "real"), textRequest())
	require.NoError(t, err)
	assert.Equal(t, "real", res.Provider)
	assert.Equal(t, 2, res.AttemptNumber)
}

func TestCoordinator_ClampsUnitsToProviderCap(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.catalog.Register(models.ProviderConfig{
		Name:         "capped",
		Capabilities: []models.ContentType{models.ContentText},
		CostPerUnit:  1.0,
		Tiers:        []models.ServiceTier{models.TierFree},
		Credential:   "sk-test",
		MaxUnits:     50,
	}))
	mock := &providers.MockClient{ClientName: "capped"}
	h.registry.Register(mock)

	_, err := h.coordinator.Execute(context.Background(), decisionFor("capped"), textRequest())
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 50, calls[0].Units)
}

func TestCoordinator_EmptyDecision(t *testing.T) {
	h := newHarness(t)

	_, err := h.coordinator.Execute(context.Background(), decisionFor(), textRequest())
	require.Error(t, err)
	assert.True(t, services.IsNoProviderAvailable(err))
}
