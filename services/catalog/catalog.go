package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Catalog is the registry of configured providers. Providers are registered
// once at startup; after that the catalog is effectively read-only and every
// lookup returns the same immutable ProviderConfig values.
type Catalog struct {
	mu        sync.RWMutex
	providers map[string]*models.ProviderConfig
	limiters  map[string]*rate.Limiter
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewCatalog creates an empty provider catalog
func NewCatalog(logger *zap.Logger) *Catalog {
	return &Catalog{
		providers: make(map[string]*models.ProviderConfig),
		limiters:  make(map[string]*rate.Limiter),
		validate:  validator.New(),
		logger:    logger,
	}
}

// Register adds a provider to the catalog. A provider without a credential
// is excluded and the exclusion logged; this is a non-fatal configuration
// error so startup continues with the remaining providers. Registering a
// name twice overwrites the earlier config: last registration wins.
func (c *Catalog) Register(cfg models.ProviderConfig) error {
	if err := c.validate.Struct(cfg); err != nil {
		c.logger.Warn("provider excluded: invalid configuration",
			zap.String("provider", cfg.Name),
			zap.Error(err))
		return services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("invalid provider configuration for %q", cfg.Name), err)
	}

	if cfg.Credential == "" {
		c.logger.Warn("provider excluded: credential missing",
			zap.String("provider", cfg.Name))
		return services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("provider %q credential missing", cfg.Name), services.ErrMissingCredential)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.providers[cfg.Name]; exists {
		c.logger.Info("provider re-registered, last registration wins",
			zap.String("provider", cfg.Name))
	}

	stored := cfg
	c.providers[cfg.Name] = &stored

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiters[cfg.Name] = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	} else {
		delete(c.limiters, cfg.Name)
	}

	c.logger.Info("provider registered",
		zap.String("provider", cfg.Name),
		zap.Int("priority", cfg.Priority),
		zap.Float64("cost_per_unit", cfg.CostPerUnit))
	return nil
}

// Get retrieves a provider config by name
func (c *Catalog) Get(name string) (*models.ProviderConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, ok := c.providers[name]
	return cfg, ok
}

// ListForTier returns providers eligible for the tier that can generate the
// content type, sorted ascending by priority (lower is preferred) with name
// as the deterministic tie-break.
func (c *Catalog) ListForTier(tier models.ServiceTier, ct models.ContentType) []*models.ProviderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	eligible := make([]*models.ProviderConfig, 0, len(c.providers))
	for _, cfg := range c.providers {
		if cfg.EligibleForTier(tier) && cfg.SupportsContent(ct) {
			eligible = append(eligible, cfg)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority < eligible[j].Priority
		}
		return eligible[i].Name < eligible[j].Name
	})

	return eligible
}

// Names returns all registered provider names, sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Limiter returns the client-side rate limiter for a provider, or nil when
// the provider has no rate limit configured
func (c *Catalog) Limiter(name string) *rate.Limiter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.limiters[name]
}

// Count returns the number of registered providers
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.providers)
}
