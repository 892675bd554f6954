package app

import (
	"context"
	"fmt"
	"time"

	"github.com/contentpilot/engine/config"
	"github.com/contentpilot/engine/internal/observability"
	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/repositories"
	"github.com/contentpilot/engine/repositories/postgres"
	"github.com/contentpilot/engine/services/catalog"
	"github.com/contentpilot/engine/services/engine"
	"github.com/contentpilot/engine/services/executor"
	"github.com/contentpilot/engine/services/health"
	"github.com/contentpilot/engine/services/ledger"
	"github.com/contentpilot/engine/services/perf"
	"github.com/contentpilot/engine/services/providers"
	"github.com/contentpilot/engine/services/routing"
	"github.com/contentpilot/engine/services/usagelog"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Durable usage log (nil without a database)
	UsageRepo repositories.UsageRepository
	Writer    *usagelog.Writer

	// Engine components
	Catalog     *catalog.Catalog
	Registry    *providers.Registry
	Tracker     *perf.Tracker
	Breaker     *health.Breaker
	Cache       *routing.DecisionCache
	Selector    *routing.Selector
	Coordinator *executor.Coordinator
	Ledger      *ledger.Ledger
	Engine      *engine.Engine
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	// The database is optional. Without one the engine keeps scoring and
	// cost state in memory only, which resets on restart.
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.initEngine(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects the optional durable usage log
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Warn("no database configured, usage records are kept in memory only")
		return nil
	}

	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	d.DB = db
	d.UsageRepo = postgres.NewUsageRepository(db, d.Logger)
	d.Writer = usagelog.NewWriter(d.UsageRepo, d.Logger, usagelog.DefaultConfig())

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initProviders builds the catalog and registers adapter clients for every
// provider with a credential. Providers without one are excluded by the
// catalog; exclusion is logged and non-fatal.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	d.Catalog = catalog.NewCatalog(d.Logger)
	d.Registry = providers.NewRegistry(d.Logger)

	for _, def := range defaultProviders(cfg) {
		if err := d.Catalog.Register(def); err != nil {
			// Already logged by the catalog; keep going with the rest
			continue
		}
		d.Registry.Register(newClient(def.Name, providers.Config{
			APIKey:  def.Credential,
			BaseURL: def.BaseURL,
			Timeout: credentialsFor(cfg, def.Name).Timeout,
		}))
		d.Logger.Info("registered provider", zap.String("provider", def.Name))
	}

	if len(d.Registry.Names()) == 0 {
		d.Logger.Warn("no generation providers configured")
	}
	return nil
}

// initEngine wires the routing, health, execution and accounting components
func (d *Dependencies) initEngine(cfg *config.Config) {
	d.Breaker = health.NewBreaker(health.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		FailureCooldown:   cfg.Breaker.FailureCooldown,
		RateLimitCooldown: cfg.Breaker.RateLimitCooldown,
	}, d.Logger)

	d.Tracker = perf.NewTracker(perf.Config{
		Window:         cfg.Tracker.Window,
		LatencyCeiling: cfg.Tracker.LatencyCeiling,
		Baselines:      cfg.Baselines,
	}, d.UsageRepo, d.Logger)

	d.Cache = routing.NewDecisionCache(cfg.Routing.CacheMaxSize, cfg.Routing.CacheTTL)
	d.Selector = routing.NewSelector(d.Catalog, d.Tracker, d.Breaker, cfg.Routing.FallbackDepth, d.Logger)
	d.Ledger = ledger.NewLedger(ledger.Config{Baselines: cfg.Baselines}, d.Logger)

	sinks := []executor.UsageSink{d.Tracker, d.Ledger, d.Metrics}
	if d.Writer != nil {
		sinks = append(sinks, d.Writer)
	}
	d.Coordinator = executor.NewCoordinator(d.Registry, d.Catalog, d.Breaker, executor.Config{
		TextTimeout:  cfg.Execution.TextTimeout,
		ImageTimeout: cfg.Execution.ImageTimeout,
		VideoTimeout: cfg.Execution.VideoTimeout,
	}, d.Logger, sinks...)

	d.Breaker.Subscribe(d.Metrics.ObserveTransition)

	d.Engine = engine.New(engine.Options{
		Catalog:     d.Catalog,
		Registry:    d.Registry,
		Tracker:     d.Tracker,
		Breaker:     d.Breaker,
		Selector:    d.Selector,
		Cache:       d.Cache,
		Coordinator: d.Coordinator,
		Ledger:      d.Ledger,
		DefaultTier: cfg.Routing.DefaultTier,
		Logger:      d.Logger,
	})
}

// StartWorkers launches the background workers. They stop when ctx is
// cancelled; the usage log writer is stopped separately in Close so queued
// records drain during shutdown.
func (d *Dependencies) StartWorkers(ctx context.Context) error {
	if d.Writer != nil {
		if err := d.Writer.Start(); err != nil {
			return fmt.Errorf("failed to start usage log writer: %w", err)
		}
	}

	go d.Tracker.StartRefreshWorker(ctx, d.Config.Tracker.RefreshInterval)
	go d.Cache.StartCleanupWorker(ctx, d.Config.Routing.CacheTTL)

	d.Logger.Info("background workers started")
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Writer != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Writer.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop usage log writer: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// newClient builds the adapter client for a known provider name
func newClient(name string, cfg providers.Config) providers.Client {
	switch name {
	case "anthropic":
		return providers.NewAnthropicClient(cfg)
	case "stability":
		return providers.NewStabilityClient(cfg)
	case "replicate":
		return providers.NewReplicateClient(cfg)
	default:
		return providers.NewOpenAIClient(cfg)
	}
}

// credentialsFor returns the configured credentials for a provider name
func credentialsFor(cfg *config.Config, name string) config.ProviderCredentials {
	switch name {
	case "anthropic":
		return cfg.Providers.Anthropic
	case "stability":
		return cfg.Providers.Stability
	case "replicate":
		return cfg.Providers.Replicate
	default:
		return cfg.Providers.OpenAI
	}
}

// defaultProviders is the built-in provider catalog. Costs are USD per 1000
// units; quality and speed are declared ratings used for documentation, not
// scoring. Credentials come from the environment; a provider with an empty
// credential is excluded at registration.
func defaultProviders(cfg *config.Config) []models.ProviderConfig {
	allTiers := []models.ServiceTier{models.TierFree, models.TierStandard, models.TierPremium, models.TierEnterprise}
	paidTiers := []models.ServiceTier{models.TierStandard, models.TierPremium, models.TierEnterprise}

	return []models.ProviderConfig{
		{
			Name:         "openai",
			Capabilities: []models.ContentType{models.ContentText, models.ContentImage},
			CostPerUnit:  2.5,
			Quality:      88,
			Speed:        80,
			Tiers:        allTiers,
			Priority:     1,
			RateLimit:    10,
			Burst:        20,
			MaxUnits:     8192,
			Strengths:    []string{"code", "general"},
			Credential:   cfg.Providers.OpenAI.APIKey,
			BaseURL:      cfg.Providers.OpenAI.BaseURL,
		},
		{
			Name:         "anthropic",
			Capabilities: []models.ContentType{models.ContentText},
			CostPerUnit:  3.0,
			Quality:      92,
			Speed:        75,
			Tiers:        allTiers,
			Priority:     2,
			RateLimit:    10,
			Burst:        20,
			MaxUnits:     8192,
			Strengths:    []string{"long-form", "analysis"},
			Credential:   cfg.Providers.Anthropic.APIKey,
			BaseURL:      cfg.Providers.Anthropic.BaseURL,
		},
		{
			Name:         "stability",
			Capabilities: []models.ContentType{models.ContentImage},
			CostPerUnit:  35,
			Quality:      85,
			Speed:        70,
			Tiers:        paidTiers,
			Priority:     3,
			RateLimit:    2,
			Burst:        5,
			MaxUnits:     10,
			Strengths:    []string{"photorealistic"},
			Credential:   cfg.Providers.Stability.APIKey,
			BaseURL:      cfg.Providers.Stability.BaseURL,
		},
		{
			Name:         "replicate",
			Capabilities: []models.ContentType{models.ContentVideo, models.ContentImage},
			CostPerUnit:  120,
			Quality:      80,
			Speed:        40,
			Tiers:        paidTiers,
			Priority:     4,
			RateLimit:    1,
			Burst:        2,
			MaxUnits:     60,
			Strengths:    []string{"video", "animation"},
			Credential:   cfg.Providers.Replicate.APIKey,
			BaseURL:      cfg.Providers.Replicate.BaseURL,
		},
	}
}
