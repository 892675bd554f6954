package routing

import (
	"testing"
	"time"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services"
	"github.com/contentpilot/engine/services/catalog"
	"github.com/contentpilot/engine/services/health"
	"github.com/contentpilot/engine/services/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	catalog  *catalog.Catalog
	tracker  *perf.Tracker
	breaker  *health.Breaker
	selector *Selector
}

func newFixture(t *testing.T, depth int) *fixture {
	t.Helper()
	cat := catalog.NewCatalog(zap.NewNop())
	tracker := perf.NewTracker(perf.Config{Window: time.Hour, LatencyCeiling: 10 * time.Second}, nil, zap.NewNop())
	breaker := health.NewBreaker(health.Config{
		FailureThreshold:  3,
		FailureCooldown:   50 * time.Millisecond,
		RateLimitCooldown: 50 * time.Millisecond,
	}, zap.NewNop())
	return &fixture{
		catalog:  cat,
		tracker:  tracker,
		breaker:  breaker,
		selector: NewSelector(cat, tracker, breaker, depth, zap.NewNop()),
	}
}

func (f *fixture) register(t *testing.T, cfg models.ProviderConfig) {
	t.Helper()
	require.NoError(t, f.catalog.Register(cfg))
}

func textProvider(name string, cost float64) models.ProviderConfig {
	return models.ProviderConfig{
		Name:         name,
		Capabilities: []models.ContentType{models.ContentText},
		CostPerUnit:  cost,
		Quality:      80,
		Speed:        70,
		Tiers:        []models.ServiceTier{models.TierFree, models.TierStandard, models.TierPremium},
		Credential:   "sk-test",
	}
}

// seed drives a provider's score through the tracker: n records with the
// given success flag, zero latency and zero cost
func (f *fixture) seed(provider string, success bool, n int) {
	for i := 0; i < n; i++ {
		f.tracker.Record(models.NewUsageRecord(provider, models.ContentText, 0, 100, success, 0))
	}
}

func TestSelector_RanksByScoreDescending(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, textProvider("openai", 0.002))
	f.register(t, textProvider("anthropic", 0.003))
	f.register(t, textProvider("replicate", 0.001))

	f.seed("openai", true, 10)      // high score
	f.seed("anthropic", false, 10)  // low score
	// replicate has no data and scores neutral, between the two

	d, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "replicate", "anthropic"}, d.ProviderNames())

	primary, ok := d.Primary()
	require.True(t, ok)
	assert.Equal(t, "openai", primary.Provider)
	assert.Contains(t, d.Reason, "selected openai")
}

func TestSelector_TieBreaksOnCostThenName(t *testing.T) {
	f := newFixture(t, 3)
	// no usage data: all three score neutral
	f.register(t, textProvider("zeta", 0.001))
	f.register(t, textProvider("alpha", 0.002))
	f.register(t, textProvider("beta", 0.002))

	d, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "beta"}, d.ProviderNames())
}

func TestSelector_StrengthPartitionOutranksScore(t *testing.T) {
	f := newFixture(t, 3)

	specialist := textProvider("stability", 0.005)
	specialist.Strengths = []string{"photorealistic"}
	f.register(t, specialist)
	f.register(t, textProvider("openai", 0.002))

	f.seed("openai", true, 10)     // best score
	f.seed("stability", false, 5)  // poor score but tagged

	d, err := f.selector.Route(Request{
		ContentType: models.ContentText,
		Tier:        models.TierFree,
		Strength:    "photorealistic",
	})
	require.NoError(t, err)

	// the tagged provider leads, the stronger untagged one backs the chain
	assert.Equal(t, []string{"stability", "openai"}, d.ProviderNames())
	assert.True(t, d.Candidates[0].StrengthMatch)
	assert.False(t, d.Candidates[1].StrengthMatch)
}

func TestSelector_StrengthIgnoredWhenNotRequested(t *testing.T) {
	f := newFixture(t, 3)

	specialist := textProvider("stability", 0.005)
	specialist.Strengths = []string{"photorealistic"}
	f.register(t, specialist)
	f.register(t, textProvider("openai", 0.002))

	f.seed("openai", true, 10)

	d, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.NoError(t, err)
	assert.Equal(t, "openai", d.Candidates[0].Provider)
}

func TestSelector_FallbackDepthCapsChain(t *testing.T) {
	f := newFixture(t, 3)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		f.register(t, textProvider(name, 0.001))
	}

	d, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.NoError(t, err)
	assert.Len(t, d.Candidates, 3)
}

func TestSelector_FiltersByTier(t *testing.T) {
	f := newFixture(t, 3)

	premium := textProvider("anthropic", 0.004)
	premium.Tiers = []models.ServiceTier{models.TierPremium, models.TierEnterprise}
	f.register(t, premium)
	f.register(t, textProvider("openai", 0.002))

	d, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.NoError(t, err)
	assert.Equal(t, []string{"openai"}, d.ProviderNames())

	d, err = f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierPremium})
	require.NoError(t, err)
	assert.Len(t, d.Candidates, 2)
}

func TestSelector_FiltersByCapability(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, textProvider("openai", 0.002))

	_, err := f.selector.Route(Request{ContentType: models.ContentVideo, Tier: models.TierFree})
	require.Error(t, err)
	assert.True(t, services.IsNoProviderAvailable(err))
}

func TestSelector_ExcludesDisqualifiedProviders(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, textProvider("openai", 0.002))
	f.register(t, textProvider("anthropic", 0.003))

	f.breaker.OnFailure("openai", health.FailureRateLimit)

	d, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic"}, d.ProviderNames())
}

func TestSelector_AllDisqualified(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, textProvider("openai", 0.002))

	f.breaker.OnFailure("openai", health.FailureRateLimit)

	_, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.Error(t, err)
	assert.True(t, services.IsNoProviderAvailable(err))
}

func TestSelector_RecoveredProviderReturnsToRotation(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, textProvider("openai", 0.002))
	f.register(t, textProvider("anthropic", 0.003))

	f.breaker.OnFailure("openai", health.FailureRateLimit)
	time.Sleep(60 * time.Millisecond)

	d, err := f.selector.Route(Request{ContentType: models.ContentText, Tier: models.TierFree})
	require.NoError(t, err)
	assert.Contains(t, d.ProviderNames(), "openai")
}
