package routing

import (
	"fmt"
	"sort"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services"
	"github.com/contentpilot/engine/services/catalog"
	"github.com/contentpilot/engine/services/health"
	"github.com/contentpilot/engine/services/perf"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultFallbackDepth bounds the failover chain length of a decision
const DefaultFallbackDepth = 3

// Selector builds routing decisions: it filters the catalog down to healthy,
// eligible providers, ranks them by performance score and emits an ordered
// failover chain capped at the fallback depth.
type Selector struct {
	catalog       *catalog.Catalog
	tracker       *perf.Tracker
	breaker       *health.Breaker
	fallbackDepth int
	logger        *zap.Logger
}

// NewSelector creates a routing selector
func NewSelector(cat *catalog.Catalog, tracker *perf.Tracker, breaker *health.Breaker, fallbackDepth int, logger *zap.Logger) *Selector {
	if fallbackDepth < 1 {
		fallbackDepth = DefaultFallbackDepth
	}
	return &Selector{
		catalog:       cat,
		tracker:       tracker,
		breaker:       breaker,
		fallbackDepth: fallbackDepth,
		logger:        logger,
	}
}

// Route builds a fresh decision for a request. Providers are filtered by
// tier eligibility, content capability and breaker availability, scored by
// the performance tracker, and ranked score-descending with cost and then
// name as deterministic tie-breaks. When the request names a strength,
// providers tagged with it rank ahead of untagged ones regardless of score,
// so untagged providers still back the chain when the specialists fail.
func (s *Selector) Route(req Request) (*Decision, error) {
	eligible := s.catalog.ListForTier(req.Tier, req.ContentType)
	if len(eligible) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeNoProvider, "no provider available", nil).
			WithDetail("content_type", string(req.ContentType)).
			WithDetail("tier", string(req.Tier))
	}

	healthy := make([]*models.ProviderConfig, 0, len(eligible))
	excluded := make([]string, 0)
	for _, cfg := range eligible {
		if s.breaker.IsAvailable(cfg.Name) {
			healthy = append(healthy, cfg)
		} else {
			excluded = append(excluded, cfg.Name)
		}
	}
	if len(healthy) == 0 {
		s.logger.Warn("no healthy provider for request",
			zap.String("content_type", string(req.ContentType)),
			zap.String("tier", string(req.Tier)),
			zap.Strings("disqualified", excluded))
		return nil, services.NewDomainError(services.ErrorTypeNoProvider, "no provider available", nil).
			WithDetail("content_type", string(req.ContentType)).
			WithDetail("tier", string(req.Tier)).
			WithDetail("disqualified_providers", excluded)
	}

	candidates := make([]Candidate, 0, len(healthy))
	for _, cfg := range healthy {
		candidates = append(candidates, Candidate{
			Provider:      cfg.Name,
			Score:         s.tracker.Score(cfg.Name, req.ContentType),
			CostPerUnit:   cfg.CostPerUnit,
			StrengthMatch: req.Strength != "" && cfg.HasStrength(req.Strength),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.StrengthMatch != b.StrengthMatch {
			return a.StrengthMatch
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CostPerUnit != b.CostPerUnit {
			return a.CostPerUnit < b.CostPerUnit
		}
		return a.Provider < b.Provider
	})

	if len(candidates) > s.fallbackDepth {
		candidates = candidates[:s.fallbackDepth]
	}

	decision := &Decision{
		ID:          uuid.New(),
		ContentType: req.ContentType,
		Tier:        req.Tier,
		Strength:    req.Strength,
		Candidates:  candidates,
		Reason:      buildReason(req, candidates, excluded),
		CreatedAt:   time.Now(),
	}

	s.logger.Debug("routing decision built",
		zap.String("decision_id", decision.ID.String()),
		zap.String("content_type", string(req.ContentType)),
		zap.String("tier", string(req.Tier)),
		zap.Strings("chain", decision.ProviderNames()))
	return decision, nil
}

// buildReason produces the human-readable selection reason attached to the
// decision and surfaced in response metadata
func buildReason(req Request, candidates []Candidate, excluded []string) string {
	primary := candidates[0]
	reason := fmt.Sprintf("selected %s (score %.1f) for %s/%s with %d fallback(s)",
		primary.Provider, primary.Score, req.ContentType, req.Tier, len(candidates)-1)
	if primary.StrengthMatch {
		reason += fmt.Sprintf(", strength %q matched", req.Strength)
	}
	if len(excluded) > 0 {
		reason += fmt.Sprintf(", %d provider(s) disqualified", len(excluded))
	}
	return reason
}
