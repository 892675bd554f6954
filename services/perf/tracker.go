package perf

import (
	"context"
	"fmt"
	"time"

	"sync"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/repositories"
	"go.uber.org/zap"
)

// Scoring policy. The weights are a policy decision; they must sum to 1.
const (
	// WeightSuccessRate is the score weight of the rolling success rate
	WeightSuccessRate = 0.5

	// WeightLatency is the score weight of inverted normalized latency
	WeightLatency = 0.3

	// WeightCost is the score weight of inverted normalized cost
	WeightCost = 0.2

	// NeutralScore is assigned to providers with no recorded data so a new
	// provider can be trialed instead of being pinned to the bottom
	NeutralScore = 50.0

	// maxSamplesPerKey bounds in-memory samples per (provider, content type)
	maxSamplesPerKey = 10000
)

// Config holds performance tracker policy
type Config struct {
	// Window is the rolling window over which aggregates are kept
	Window time.Duration

	// LatencyCeiling normalizes response times for scoring; latencies at or
	// above the ceiling contribute zero on the latency component
	LatencyCeiling time.Duration

	// Baselines normalizes costs for scoring: a provider at or above the
	// baseline cost for a content type contributes zero on the cost component
	Baselines map[models.ContentType]float64
}

// DefaultConfig returns the default tracker policy
func DefaultConfig() Config {
	return Config{
		Window:         24 * time.Hour,
		LatencyCeiling: 30 * time.Second,
	}
}

// sample is one in-memory usage observation
type sample struct {
	at      time.Time
	success bool
	latency time.Duration
	cost    float64
}

// entry holds the aggregates for one (provider, content type) pair. Each
// entry owns its lock so recording for different providers never contends.
// base is the authoritative rollup from the durable log as of the last
// refresh; samples are live observations recorded since then.
type entry struct {
	mu      sync.Mutex
	base    repositories.UsageAggregate
	samples []sample
}

// Stats is a read-only aggregate for one (provider, content type) pair
type Stats struct {
	Requests        int64         `json:"requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	AvgCost         float64       `json:"avg_cost"`
}

// Tracker maintains rolling per-(provider, content type) performance
// aggregates and turns them into a selection score. When a durable usage
// log is configured, Refresh periodically rebuilds the aggregates from it
// and publishes them by swapping the entry map, so concurrent Score reads
// never observe a partially updated state. Without a durable log the
// tracker degrades to in-memory-only scoring.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry

	cfg    Config
	repo   repositories.UsageRepository
	logger *zap.Logger
}

// NewTracker creates a performance tracker. repo may be nil for
// in-memory-only operation.
func NewTracker(cfg Config, repo repositories.UsageRepository, logger *zap.Logger) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.LatencyCeiling <= 0 {
		cfg.LatencyCeiling = DefaultConfig().LatencyCeiling
	}
	return &Tracker{
		entries: make(map[string]*entry),
		cfg:     cfg,
		repo:    repo,
		logger:  logger,
	}
}

// Record folds one usage record into the rolling aggregates
func (t *Tracker) Record(usage *models.UsageRecord) {
	e := t.entryFor(usage.Provider, usage.ContentType)
	cutoff := time.Now().Add(-t.cfg.Window)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples = append(e.samples, sample{
		at:      usage.Timestamp,
		success: usage.Success,
		latency: usage.ResponseTime,
		cost:    usage.Cost,
	})
	e.samples = pruneSamples(e.samples, cutoff)
	if len(e.samples) > maxSamplesPerKey {
		e.samples = e.samples[len(e.samples)-maxSamplesPerKey:]
	}
}

// Score computes the selection score in [0,100] for a provider on a content
// type: success rate, inverted normalized latency and inverted normalized
// cost combined with the package weight constants. A pair with no data
// scores NeutralScore.
func (t *Tracker) Score(provider string, ct models.ContentType) float64 {
	stats, ok := t.StatsOf(provider, ct)
	if !ok || stats.Requests == 0 {
		return NeutralScore
	}

	successComponent := stats.SuccessRate * 100 * WeightSuccessRate

	latencyRatio := float64(stats.AvgResponseTime) / float64(t.cfg.LatencyCeiling)
	if latencyRatio > 1 {
		latencyRatio = 1
	}
	latencyComponent := (1 - latencyRatio) * 100 * WeightLatency

	costComponent := 0.5 * 100 * WeightCost // neutral when no baseline is configured
	if baseline := t.cfg.Baselines[ct]; baseline > 0 {
		costRatio := stats.AvgCost / baseline
		if costRatio > 1 {
			costRatio = 1
		}
		costComponent = (1 - costRatio) * 100 * WeightCost
	}

	return successComponent + latencyComponent + costComponent
}

// StatsOf returns the current rolling aggregate for a (provider, content
// type) pair, merging the durable-log rollup with live samples
func (t *Tracker) StatsOf(provider string, ct models.ContentType) (Stats, bool) {
	t.mu.RLock()
	e, ok := t.entries[key(provider, ct)]
	t.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}

	cutoff := time.Now().Add(-t.cfg.Window)

	e.mu.Lock()
	defer e.mu.Unlock()

	requests := e.base.Requests
	successes := e.base.Successes
	totalLatency := e.base.TotalResponseTime
	totalCost := e.base.TotalCost

	for _, s := range e.samples {
		if s.at.Before(cutoff) {
			continue
		}
		requests++
		if s.success {
			successes++
		}
		totalLatency += s.latency
		totalCost += s.cost
	}

	if requests == 0 {
		return Stats{}, false
	}

	return Stats{
		Requests:        requests,
		SuccessRate:     float64(successes) / float64(requests),
		AvgResponseTime: totalLatency / time.Duration(requests),
		AvgCost:         totalCost / float64(requests),
	}, true
}

// Refresh recomputes the aggregates from the durable usage log and
// publishes them by swapping the entry map. On log failure the previous
// aggregates are retained so callers keep scoring against the last good
// snapshot. Without a configured log Refresh only prunes expired samples.
func (t *Tracker) Refresh(ctx context.Context) error {
	cutoff := time.Now().Add(-t.cfg.Window)

	if t.repo == nil {
		t.pruneAll(cutoff)
		return nil
	}

	aggregates, err := t.repo.AggregatesSince(ctx, cutoff)
	if err != nil {
		t.logger.Warn("usage log unavailable, retaining previous aggregates", zap.Error(err))
		return fmt.Errorf("refresh aggregates: %w", err)
	}

	fresh := make(map[string]*entry, len(aggregates))
	for _, agg := range aggregates {
		fresh[key(agg.Provider, agg.ContentType)] = &entry{base: agg}
	}

	t.mu.Lock()
	t.entries = fresh
	t.mu.Unlock()

	t.logger.Debug("performance aggregates refreshed", zap.Int("pairs", len(aggregates)))
	return nil
}

// StartRefreshWorker periodically refreshes aggregates until the context is
// cancelled. Intended to run as a background goroutine.
func (t *Tracker) StartRefreshWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info("started performance refresh worker", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				t.logger.Error("performance refresh failed", zap.Error(err))
			}
		case <-ctx.Done():
			t.logger.Info("stopping performance refresh worker")
			return
		}
	}
}

// entryFor returns the entry for a pair, creating it on first use
func (t *Tracker) entryFor(provider string, ct models.ContentType) *entry {
	k := key(provider, ct)

	t.mu.RLock()
	e, ok := t.entries[k]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[k]; ok {
		return e
	}
	e = &entry{}
	t.entries[k] = e
	return e
}

// pruneAll drops expired samples from every entry
func (t *Tracker) pruneAll(cutoff time.Time) {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		e.samples = pruneSamples(e.samples, cutoff)
		e.mu.Unlock()
	}
}

func pruneSamples(samples []sample, cutoff time.Time) []sample {
	kept := samples[:0]
	for _, s := range samples {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
}

func key(provider string, ct models.ContentType) string {
	return provider + "|" + string(ct)
}
