package routing

import (
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/google/uuid"
)

// Request describes one routing question: which providers should serve a
// generation of this content type for this tier
type Request struct {
	ContentType models.ContentType `json:"content_type"`
	Tier        models.ServiceTier `json:"tier"`

	// Strength optionally biases selection toward providers tagged with
	// this strength; untagged providers remain eligible as fallbacks
	Strength string `json:"strength,omitempty"`
}

// Candidate is one ranked provider in a routing decision
type Candidate struct {
	Provider      string  `json:"provider"`
	Score         float64 `json:"score"`
	CostPerUnit   float64 `json:"cost_per_unit"`
	StrengthMatch bool    `json:"strength_match,omitempty"`
}

// Decision is an ordered failover chain for one routing request. The first
// candidate is the primary; the rest are fallbacks in attempt order.
type Decision struct {
	ID          uuid.UUID          `json:"id"`
	ContentType models.ContentType `json:"content_type"`
	Tier        models.ServiceTier `json:"tier"`
	Strength    string             `json:"strength,omitempty"`
	Candidates  []Candidate        `json:"candidates"`
	Reason      string             `json:"reason"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Primary returns the first candidate in the chain
func (d *Decision) Primary() (Candidate, bool) {
	if len(d.Candidates) == 0 {
		return Candidate{}, false
	}
	return d.Candidates[0], true
}

// ProviderNames returns the candidate provider names in attempt order
func (d *Decision) ProviderNames() []string {
	names := make([]string, len(d.Candidates))
	for i, c := range d.Candidates {
		names[i] = c.Provider
	}
	return names
}
