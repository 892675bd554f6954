package ledger

import (
	"sync"
	"time"

	"github.com/contentpilot/engine/models"
	"go.uber.org/zap"
)

// DefaultRetention bounds how long per-request entries are kept for
// timeframe queries
const DefaultRetention = 30 * 24 * time.Hour

// Projection horizons for spend-rate extrapolation
const (
	dailyPeriod   = 24 * time.Hour
	monthlyPeriod = 30 * 24 * time.Hour
	annualPeriod  = 365 * 24 * time.Hour
)

// Config holds cost ledger policy
type Config struct {
	// Baselines is the reference cost per request by content type. Savings
	// are measured against it and may be negative when a generation costs
	// more than its baseline.
	Baselines map[models.ContentType]float64

	// Retention bounds how long individual entries are kept
	Retention time.Duration
}

// entry is one successful generation's cost line
type entry struct {
	at          time.Time
	contentType models.ContentType
	units       int
	cost        float64
	savings     float64
}

// shard holds the entries of one provider behind its own lock
type shard struct {
	mu      sync.Mutex
	entries []entry
}

// Totals is an aggregate cost view over a set of entries
type Totals struct {
	Requests int64   `json:"requests"`
	Units    int64   `json:"units"`
	Cost     float64 `json:"cost"`
	Savings  float64 `json:"savings"`
}

func (t *Totals) add(e entry) {
	t.Requests++
	t.Units += int64(e.units)
	t.Cost += e.cost
	t.Savings += e.savings
}

// Snapshot is a point-in-time cost report over a timeframe
type Snapshot struct {
	// Timeframe the snapshot covers; zero means all retained history
	Timeframe time.Duration `json:"timeframe"`

	Totals        Totals                        `json:"totals"`
	ByProvider    map[string]Totals             `json:"by_provider"`
	ByContentType map[models.ContentType]Totals `json:"by_content_type"`

	// Projections extrapolate the snapshot's observed spend rate linearly
	Projections Projections `json:"projections"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Projection is a linear extrapolation of cost and savings over one horizon
type Projection struct {
	Cost    float64 `json:"cost"`
	Savings float64 `json:"savings"`
}

// Projections carries the daily, monthly and annual extrapolations
type Projections struct {
	Daily   Projection `json:"daily"`
	Monthly Projection `json:"monthly"`
	Annual  Projection `json:"annual"`
}

// Ledger accumulates the cost of successful generations and measures signed
// savings against per-content-type baseline costs. Entries are sharded per
// provider so concurrent executions rarely contend.
type Ledger struct {
	mu     sync.RWMutex
	shards map[string]*shard

	cfg    Config
	logger *zap.Logger
}

// NewLedger creates a cost ledger
func NewLedger(cfg Config, logger *zap.Logger) *Ledger {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Ledger{
		shards: make(map[string]*shard),
		cfg:    cfg,
		logger: logger,
	}
}

// Record folds one usage record into the ledger. Failed attempts carry no
// charge and are ignored; only successful generations move the totals.
func (l *Ledger) Record(usage *models.UsageRecord) {
	if !usage.Success {
		return
	}

	s := l.shardFor(usage.Provider)
	cutoff := time.Now().Add(-l.cfg.Retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry{
		at:          usage.Timestamp,
		contentType: usage.ContentType,
		units:       usage.Units,
		cost:        usage.Cost,
		savings:     l.cfg.Baselines[usage.ContentType] - usage.Cost,
	})
	s.entries = pruneEntries(s.entries, cutoff)
}

// Snapshot reports totals, per-provider and per-content-type breakdowns and
// linear daily, monthly and annual projections over the given timeframe.
// A zero timeframe covers all retained history.
func (l *Ledger) Snapshot(timeframe time.Duration) Snapshot {
	now := time.Now()
	var cutoff time.Time
	if timeframe > 0 {
		cutoff = now.Add(-timeframe)
	}

	snap := Snapshot{
		Timeframe:     timeframe,
		ByProvider:    make(map[string]Totals),
		ByContentType: make(map[models.ContentType]Totals),
		GeneratedAt:   now,
	}

	var earliest time.Time
	for provider, s := range l.shardList() {
		s.mu.Lock()
		for _, e := range s.entries {
			if e.at.Before(cutoff) {
				continue
			}
			snap.Totals.add(e)

			byProv := snap.ByProvider[provider]
			byProv.add(e)
			snap.ByProvider[provider] = byProv

			byCT := snap.ByContentType[e.contentType]
			byCT.add(e)
			snap.ByContentType[e.contentType] = byCT

			if earliest.IsZero() || e.at.Before(earliest) {
				earliest = e.at
			}
		}
		s.mu.Unlock()
	}

	span := timeframe
	if span == 0 && !earliest.IsZero() {
		span = now.Sub(earliest)
	}
	if span > 0 && snap.Totals.Requests > 0 {
		snap.Projections = Projections{
			Daily:   project(snap.Totals, span, dailyPeriod),
			Monthly: project(snap.Totals, span, monthlyPeriod),
			Annual:  project(snap.Totals, span, annualPeriod),
		}
	}

	return snap
}

// TotalCost returns the all-time retained cost total
func (l *Ledger) TotalCost() float64 {
	return l.Snapshot(0).Totals.Cost
}

// shardFor returns the shard for a provider, creating it on first use
func (l *Ledger) shardFor(provider string) *shard {
	l.mu.RLock()
	s, ok := l.shards[provider]
	l.mu.RUnlock()
	if ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok = l.shards[provider]; ok {
		return s
	}
	s = &shard{}
	l.shards[provider] = s
	return s
}

// shardList snapshots the shard map for iteration without holding the
// ledger lock during per-shard work
func (l *Ledger) shardList() map[string]*shard {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]*shard, len(l.shards))
	for name, s := range l.shards {
		out[name] = s
	}
	return out
}

// project extrapolates totals observed over span to one horizon
func project(t Totals, span, horizon time.Duration) Projection {
	factor := float64(horizon) / float64(span)
	return Projection{
		Cost:    t.Cost * factor,
		Savings: t.Savings * factor,
	}
}

func pruneEntries(entries []entry, cutoff time.Time) []entry {
	kept := entries[:0]
	for _, e := range entries {
		if !e.at.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}
