package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/repositories"
	"go.uber.org/zap"
)

// Schema:
//
//	CREATE TABLE usage_records (
//	    id            UUID PRIMARY KEY,
//	    provider      TEXT NOT NULL,
//	    content_type  TEXT NOT NULL,
//	    response_time BIGINT NOT NULL,  -- milliseconds
//	    cost          DOUBLE PRECISION NOT NULL,
//	    success       BOOLEAN NOT NULL,
//	    units         INTEGER NOT NULL,
//	    timestamp     TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_usage_records_timestamp ON usage_records (timestamp);

// UsageRepository implements the repositories.UsageRepository interface
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage record repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a usage record to the log.
// Records are append-only and never updated.
func (r *UsageRepository) Insert(ctx context.Context, record *models.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			id, provider, content_type, response_time, cost, success, units, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Provider,
		string(record.ContentType),
		record.ResponseTime.Milliseconds(),
		record.Cost,
		record.Success,
		record.Units,
		record.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	r.logger.Debug("usage record inserted",
		zap.String("id", record.ID.String()),
		zap.String("provider", record.Provider),
		zap.Bool("success", record.Success))
	return nil
}

// AggregatesSince returns per-(provider, content type) rollups of all
// records with timestamp >= since
func (r *UsageRepository) AggregatesSince(ctx context.Context, since time.Time) ([]repositories.UsageAggregate, error) {
	query := `
		SELECT
			provider,
			content_type,
			COUNT(*) AS requests,
			COUNT(*) FILTER (WHERE success) AS successes,
			COALESCE(SUM(response_time), 0) AS total_response_time,
			COALESCE(SUM(cost), 0) AS total_cost
		FROM usage_records
		WHERE timestamp >= $1
		GROUP BY provider, content_type
		ORDER BY provider, content_type
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make([]repositories.UsageAggregate, 0)
	for rows.Next() {
		var agg repositories.UsageAggregate
		var contentType string
		var totalResponseMs int64
		if err := rows.Scan(&agg.Provider, &contentType, &agg.Requests, &agg.Successes, &totalResponseMs, &agg.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan usage aggregate: %w", err)
		}
		agg.ContentType = models.ContentType(contentType)
		agg.TotalResponseTime = time.Duration(totalResponseMs) * time.Millisecond
		aggregates = append(aggregates, agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return aggregates, nil
}
