package engine

import (
	"context"
	"strings"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services"
	"github.com/contentpilot/engine/services/catalog"
	"github.com/contentpilot/engine/services/executor"
	"github.com/contentpilot/engine/services/health"
	"github.com/contentpilot/engine/services/ledger"
	"github.com/contentpilot/engine/services/perf"
	"github.com/contentpilot/engine/services/providers"
	"github.com/contentpilot/engine/services/routing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Unit estimation defaults for requests that do not state a size.
// Text tokens are roughly words times 1.3; image and video use one unit
// and five seconds respectively.
const (
	tokensPerWord     = 1.3
	defaultImageUnits = 1
	defaultVideoUnits = 5
)

// Options carries the engine's injected collaborators. The engine holds no
// global state: every instance is fully described by its options.
type Options struct {
	Catalog     *catalog.Catalog
	Registry    *providers.Registry
	Tracker     *perf.Tracker
	Breaker     *health.Breaker
	Selector    *routing.Selector
	Cache       *routing.DecisionCache
	Coordinator *executor.Coordinator
	Ledger      *ledger.Ledger
	DefaultTier models.ServiceTier
	Logger      *zap.Logger
}

// Engine is the façade over routing, execution, health and cost accounting.
// Callers route and execute through it; it keeps the decision cache coherent
// with provider health by subscribing to circuit breaker transitions.
type Engine struct {
	catalog     *catalog.Catalog
	registry    *providers.Registry
	tracker     *perf.Tracker
	breaker     *health.Breaker
	selector    *routing.Selector
	cache       *routing.DecisionCache
	coordinator *executor.Coordinator
	ledger      *ledger.Ledger
	defaultTier models.ServiceTier
	logger      *zap.Logger
}

// New creates an engine and wires cache invalidation to breaker transitions
func New(opts Options) *Engine {
	if opts.DefaultTier == "" {
		opts.DefaultTier = models.TierFree
	}
	e := &Engine{
		catalog:     opts.Catalog,
		registry:    opts.Registry,
		tracker:     opts.Tracker,
		breaker:     opts.Breaker,
		selector:    opts.Selector,
		cache:       opts.Cache,
		coordinator: opts.Coordinator,
		ledger:      opts.Ledger,
		defaultTier: opts.DefaultTier,
		logger:      opts.Logger,
	}

	// A health transition makes cached decisions stale in both directions:
	// a disqualified provider may sit in cached chains, and a recovered one
	// is absent from them. Invalidate every decision for the content types
	// the provider serves.
	e.breaker.Subscribe(func(tr health.Transition) {
		removed := 0
		if cfg, ok := e.catalog.Get(tr.Provider); ok {
			for _, ct := range cfg.Capabilities {
				removed += e.cache.InvalidateContentType(ct)
			}
		} else {
			removed = e.cache.InvalidateProvider(tr.Provider)
		}
		e.logger.Debug("decision cache invalidated on health transition",
			zap.String("provider", tr.Provider),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.Int("entries_removed", removed))
	})

	return e
}

// Route answers a routing request, serving from the decision cache when an
// identical request was answered inside the TTL
func (e *Engine) Route(req routing.Request) (*routing.Decision, bool, error) {
	if !req.ContentType.Valid() {
		return nil, false, services.NewDomainError(services.ErrorTypeValidation, "invalid input", nil).
			WithDetail("content_type", string(req.ContentType))
	}
	if req.Tier == "" {
		req.Tier = e.defaultTier
	}
	if !req.Tier.Valid() {
		return nil, false, services.NewDomainError(services.ErrorTypeValidation, "invalid input", nil).
			WithDetail("tier", string(req.Tier))
	}

	key := routing.KeyFor(req)
	if cached := e.cache.Get(key); cached != nil {
		return cached, true, nil
	}

	decision, err := e.selector.Route(req)
	if err != nil {
		return nil, false, err
	}
	e.cache.Set(key, decision)
	return decision, false, nil
}

// GenerateRequest is a caller-facing generation request
type GenerateRequest struct {
	ContentType models.ContentType `json:"content_type" validate:"required"`
	Prompt      string             `json:"prompt" validate:"required"`
	Tier        models.ServiceTier `json:"tier,omitempty"`
	Strength    string             `json:"strength,omitempty"`

	// Units optionally states the requested output size; zero means
	// estimated from the prompt
	Units int `json:"units,omitempty"`

	// Model optionally pins a provider-side model
	Model string `json:"model,omitempty"`
}

// Metadata describes how a generation was served
type Metadata struct {
	ProviderUsed    string        `json:"provider_used"`
	Model           string        `json:"model"`
	AttemptNumber   int           `json:"attempt_number"`
	FallbackUsed    bool          `json:"fallback_used"`
	SelectionReason string        `json:"selection_reason"`
	DecisionID      uuid.UUID     `json:"decision_id"`
	CacheHit        bool          `json:"cache_hit"`
	Cost            float64       `json:"cost"`
	Units           int           `json:"units"`
	ResponseTime    time.Duration `json:"response_time"`
}

// Response is a completed generation with its execution metadata
type Response struct {
	ContentType models.ContentType `json:"content_type"`
	Output      string             `json:"output"`
	Metadata    Metadata           `json:"metadata"`
}

// Generate routes and executes one generation end to end
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "prompt is required", nil).
			WithDetail("field", "prompt")
	}

	decision, cacheHit, err := e.Route(routing.Request{
		ContentType: req.ContentType,
		Tier:        req.Tier,
		Strength:    req.Strength,
	})
	if err != nil {
		return nil, err
	}

	units := req.Units
	if units <= 0 {
		units = EstimateUnits(req.ContentType, req.Prompt)
	}

	result, err := e.coordinator.Execute(ctx, decision, &providers.Request{
		ContentType: req.ContentType,
		Prompt:      req.Prompt,
		Units:       units,
		Model:       req.Model,
	})
	if err != nil {
		return nil, err
	}

	return &Response{
		ContentType: req.ContentType,
		Output:      result.Generation.Output,
		Metadata: Metadata{
			ProviderUsed:    result.Provider,
			Model:           result.Generation.Model,
			AttemptNumber:   result.AttemptNumber,
			FallbackUsed:    result.FallbackUsed,
			SelectionReason: result.SelectionReason,
			DecisionID:      decision.ID,
			CacheHit:        cacheHit,
			Cost:            result.Cost,
			Units:           result.Units,
			ResponseTime:    result.ResponseTime,
		},
	}, nil
}

// Execute runs an already-built decision through the coordinator
func (e *Engine) Execute(ctx context.Context, decision *routing.Decision, req *providers.Request) (*executor.Result, error) {
	return e.coordinator.Execute(ctx, decision, req)
}

// ProviderStatus is the operational view of one provider
type ProviderStatus struct {
	Name         string                            `json:"name"`
	Capabilities []models.ContentType              `json:"capabilities"`
	Tiers        []models.ServiceTier              `json:"tiers"`
	CostPerUnit  float64                           `json:"cost_per_unit"`
	Priority     int                               `json:"priority"`
	Strengths    []string                          `json:"strengths,omitempty"`
	Health       health.ProviderHealth             `json:"health"`
	Scores       map[models.ContentType]float64    `json:"scores"`
	Stats        map[models.ContentType]perf.Stats `json:"stats,omitempty"`
}

// ProviderStatuses reports the status of every registered provider
func (e *Engine) ProviderStatuses() []ProviderStatus {
	names := e.catalog.Names()
	statuses := make([]ProviderStatus, 0, len(names))

	for _, name := range names {
		cfg, ok := e.catalog.Get(name)
		if !ok {
			continue
		}
		status := ProviderStatus{
			Name:         cfg.Name,
			Capabilities: cfg.Capabilities,
			Tiers:        cfg.Tiers,
			CostPerUnit:  cfg.CostPerUnit,
			Priority:     cfg.Priority,
			Strengths:    cfg.Strengths,
			Health:       e.breaker.StateOf(name),
			Scores:       make(map[models.ContentType]float64, len(cfg.Capabilities)),
			Stats:        make(map[models.ContentType]perf.Stats),
		}
		for _, ct := range cfg.Capabilities {
			status.Scores[ct] = e.tracker.Score(name, ct)
			if stats, ok := e.tracker.StatsOf(name, ct); ok {
				status.Stats[ct] = stats
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// CostSnapshot reports cost totals, breakdowns and projections over a
// timeframe (zero covers all retained history)
func (e *Engine) CostSnapshot(timeframe time.Duration) ledger.Snapshot {
	return e.ledger.Snapshot(timeframe)
}

// InvalidateCache drops cached decisions. With a valid content type only
// that type's decisions are dropped; otherwise the whole cache is cleared.
// Returns the number of entries removed, or -1 for a full clear.
func (e *Engine) InvalidateCache(ct models.ContentType) int {
	if ct.Valid() {
		return e.cache.InvalidateContentType(ct)
	}
	e.cache.Clear()
	return -1
}

// CacheStats reports decision cache statistics
func (e *Engine) CacheStats() routing.CacheStats {
	return e.cache.Stats()
}

// EstimateUnits estimates the output size of a prompt in content units
func EstimateUnits(ct models.ContentType, prompt string) int {
	switch ct {
	case models.ContentImage:
		return defaultImageUnits
	case models.ContentVideo:
		return defaultVideoUnits
	default:
		words := len(strings.Fields(prompt))
		units := int(float64(words) * tokensPerWord)
		if units < 1 {
			units = 1
		}
		return units
	}
}
