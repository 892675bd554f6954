package executor

import (
	"context"
	"errors"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services"
	"github.com/contentpilot/engine/services/catalog"
	"github.com/contentpilot/engine/services/health"
	"github.com/contentpilot/engine/services/providers"
	"github.com/contentpilot/engine/services/routing"
	"go.uber.org/zap"
)

// Config holds per-content-type attempt timeouts
type Config struct {
	TextTimeout  time.Duration
	ImageTimeout time.Duration
	VideoTimeout time.Duration
}

// DefaultConfig returns the default attempt timeouts
func DefaultConfig() Config {
	return Config{
		TextTimeout:  30 * time.Second,
		ImageTimeout: 120 * time.Second,
		VideoTimeout: 600 * time.Second,
	}
}

// TimeoutFor returns the attempt timeout for a content type
func (c Config) TimeoutFor(ct models.ContentType) time.Duration {
	switch ct {
	case models.ContentImage:
		return c.ImageTimeout
	case models.ContentVideo:
		return c.VideoTimeout
	default:
		return c.TextTimeout
	}
}

// UsageSink receives the usage record of every provider attempt. Sinks must
// not block; slow consumers buffer internally.
type UsageSink interface {
	Record(record *models.UsageRecord)
}

// Result is a completed generation with its execution metadata
type Result struct {
	Generation *providers.Generation `json:"generation"`

	// Provider that ultimately served the request
	Provider string `json:"provider"`

	// AttemptNumber is 1-based: 1 means the primary candidate served it
	AttemptNumber int `json:"attempt_number"`

	// FallbackUsed is true when any candidate after the primary served it
	FallbackUsed bool `json:"fallback_used"`

	// SelectionReason is carried over from the routing decision
	SelectionReason string `json:"selection_reason"`

	// Cost in USD charged for the successful attempt
	Cost float64 `json:"cost"`

	// Units actually consumed
	Units int `json:"units"`

	ResponseTime time.Duration `json:"response_time"`
}

// Coordinator walks a routing decision's failover chain: it attempts each
// candidate in order under a bounded per-content-type timeout, reports every
// outcome to the circuit breaker and the usage sinks, and stops at the first
// success. A failed candidate is never re-attempted within one execution.
type Coordinator struct {
	registry *providers.Registry
	catalog  *catalog.Catalog
	breaker  *health.Breaker
	sinks    []UsageSink
	cfg      Config
	logger   *zap.Logger
}

// NewCoordinator creates an execution coordinator
func NewCoordinator(registry *providers.Registry, cat *catalog.Catalog, breaker *health.Breaker, cfg Config, logger *zap.Logger, sinks ...UsageSink) *Coordinator {
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = DefaultConfig().TextTimeout
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = DefaultConfig().ImageTimeout
	}
	if cfg.VideoTimeout <= 0 {
		cfg.VideoTimeout = DefaultConfig().VideoTimeout
	}
	return &Coordinator{
		registry: registry,
		catalog:  cat,
		breaker:  breaker,
		sinks:    sinks,
		cfg:      cfg,
		logger:   logger,
	}
}

// Execute runs the decision's failover chain for one generation request.
// Caller cancellation aborts immediately without a usage record for the
// in-flight attempt; when every candidate fails the terminal error carries
// the attempted provider list.
func (c *Coordinator) Execute(ctx context.Context, decision *routing.Decision, req *providers.Request) (*Result, error) {
	if len(decision.Candidates) == 0 {
		return nil, services.ErrNoProviderAvailable
	}

	attempted := make([]string, 0, len(decision.Candidates))
	var lastErr error

	for i, cand := range decision.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt := i + 1
		client, ok := c.registry.Get(cand.Provider)
		if !ok {
			c.logger.Warn("no client registered for candidate, skipping",
				zap.String("provider", cand.Provider))
			attempted = append(attempted, cand.Provider)
			lastErr = services.NewProviderExecutionError(cand.Provider, "no client registered", nil)
			continue
		}

		// Local limiter exhaustion counts as a rate-limit failure without
		// spending a call on the provider.
		if limiter := c.catalog.Limiter(cand.Provider); limiter != nil && !limiter.Allow() {
			c.logger.Warn("local rate limit exhausted, skipping provider",
				zap.String("provider", cand.Provider),
				zap.Int("attempt", attempt))
			c.breaker.OnFailure(cand.Provider, health.FailureRateLimit)
			c.record(models.NewUsageRecord(cand.Provider, decision.ContentType, 0, 0, false, 0))
			attempted = append(attempted, cand.Provider)
			lastErr = services.NewProviderExecutionError(cand.Provider, "local rate limit exhausted", nil)
			continue
		}

		attemptReq := c.boundRequest(cand.Provider, req)
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.TimeoutFor(decision.ContentType))
		start := time.Now()
		gen, err := client.Generate(attemptCtx, attemptReq)
		elapsed := time.Since(start)
		cancel()

		if err != nil {
			// Caller cancellation is not a provider failure: abort without
			// penalizing the provider or writing a usage record.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			kind := classifyFailure(err)
			c.logger.Warn("provider attempt failed",
				zap.String("provider", cand.Provider),
				zap.Int("attempt", attempt),
				zap.String("failure_kind", string(kind)),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))

			c.breaker.OnFailure(cand.Provider, kind)
			c.record(models.NewUsageRecord(cand.Provider, decision.ContentType, 0, 0, false, elapsed))
			attempted = append(attempted, cand.Provider)
			lastErr = err
			continue
		}

		cost := c.costOf(cand.Provider, gen.Units)
		c.breaker.OnSuccess(cand.Provider)
		c.record(models.NewUsageRecord(cand.Provider, decision.ContentType, cost, gen.Units, true, elapsed))

		c.logger.Info("generation served",
			zap.String("provider", cand.Provider),
			zap.String("content_type", string(decision.ContentType)),
			zap.Int("attempt", attempt),
			zap.Bool("fallback_used", i > 0),
			zap.Int("units", gen.Units),
			zap.Float64("cost", cost),
			zap.Duration("response_time", elapsed))

		return &Result{
			Generation:      gen,
			Provider:        cand.Provider,
			AttemptNumber:   attempt,
			FallbackUsed:    i > 0,
			SelectionReason: decision.Reason,
			Cost:            cost,
			Units:           gen.Units,
			ResponseTime:    elapsed,
		}, nil
	}

	c.logger.Error("all providers failed",
		zap.String("content_type", string(decision.ContentType)),
		zap.Strings("attempted", attempted),
		zap.Error(lastErr))
	return nil, services.NewAllProvidersFailedError(attempted, lastErr)
}

// boundRequest clamps the request's units to the provider's per-request cap
func (c *Coordinator) boundRequest(provider string, req *providers.Request) *providers.Request {
	cfg, ok := c.catalog.Get(provider)
	if !ok || cfg.MaxUnits == 0 || req.Units <= cfg.MaxUnits {
		return req
	}
	bounded := *req
	bounded.Units = cfg.MaxUnits
	return &bounded
}

// costOf computes the USD cost of a successful attempt
func (c *Coordinator) costOf(provider string, units int) float64 {
	cfg, ok := c.catalog.Get(provider)
	if !ok {
		return 0
	}
	return cfg.CostPerUnit * float64(units) / 1000
}

// record fans a usage record out to all sinks
func (c *Coordinator) record(usage *models.UsageRecord) {
	for _, sink := range c.sinks {
		sink.Record(usage)
	}
}

// classifyFailure maps an attempt error to a breaker failure kind
func classifyFailure(err error) health.FailureKind {
	if providers.IsRateLimited(err) {
		return health.FailureRateLimit
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return health.FailureTimeout
	}
	var clientErr *providers.ClientError
	if errors.As(err, &clientErr) && errors.Is(clientErr.Cause, context.DeadlineExceeded) {
		return health.FailureTimeout
	}
	return health.FailureError
}
