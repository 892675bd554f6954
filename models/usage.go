package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord captures the outcome of a single provider attempt.
// Records are append-only and are the sole source of truth feeding the
// performance tracker and the cost ledger.
type UsageRecord struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	Provider     string        `json:"provider" db:"provider"`
	ContentType  ContentType   `json:"content_type" db:"content_type"`
	Cost         float64       `json:"cost" db:"cost"`
	Units        int           `json:"units" db:"units"`
	Success      bool          `json:"success" db:"success"`
	ResponseTime time.Duration `json:"response_time" db:"response_time"`
	Timestamp    time.Time     `json:"timestamp" db:"timestamp"`
}

// NewUsageRecord creates a usage record for one provider attempt
func NewUsageRecord(provider string, ct ContentType, cost float64, units int, success bool, responseTime time.Duration) *UsageRecord {
	return &UsageRecord{
		ID:           uuid.New(),
		Provider:     provider,
		ContentType:  ct,
		Cost:         cost,
		Units:        units,
		Success:      success,
		ResponseTime: responseTime,
		Timestamp:    time.Now(),
	}
}
