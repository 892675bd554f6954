package repositories

import (
	"context"
	"time"

	"github.com/contentpilot/engine/models"
)

// UsageAggregate is a per-(provider, content type) rollup of usage records
// over a time window, as returned by the durable log
type UsageAggregate struct {
	Provider          string
	ContentType       models.ContentType
	Requests          int64
	Successes         int64
	TotalResponseTime time.Duration
	TotalCost         float64
}

// UsageRepository persists the append-only usage record log.
// The engine works without one: when no repository is configured the
// performance tracker falls back to in-memory scoring only.
type UsageRepository interface {
	// Insert appends one usage record to the log
	Insert(ctx context.Context, record *models.UsageRecord) error

	// AggregatesSince returns per-(provider, content type) rollups of all
	// records with timestamp >= since
	AggregatesSince(ctx context.Context, since time.Time) ([]UsageAggregate, error)
}
