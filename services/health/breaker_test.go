package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		FailureThreshold:  3,
		FailureCooldown:   50 * time.Millisecond,
		RateLimitCooldown: 30 * time.Millisecond,
	}
}

func TestBreaker_StartsAvailable(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	assert.True(t, b.IsAvailable("openai"))
	assert.Equal(t, StateAvailable, b.StateOf("openai").State)
}

func TestBreaker_DegradedBelowThreshold(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	b.OnFailure("openai", FailureError)
	b.OnFailure("openai", FailureError)

	health := b.StateOf("openai")
	assert.Equal(t, StateDegraded, health.State)
	assert.Equal(t, 2, health.ConsecutiveFailures)
	assert.True(t, b.IsAvailable("openai"))
}

func TestBreaker_DisqualifiesAtThreshold(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	b.OnFailure("openai", FailureError)
	b.OnFailure("openai", FailureTimeout)
	b.OnFailure("openai", FailureError)

	health := b.StateOf("openai")
	assert.Equal(t, StateDisqualified, health.State)
	assert.Equal(t, 3, health.ConsecutiveFailures)
	assert.False(t, b.IsAvailable("openai"))
}

func TestBreaker_RateLimitDisqualifiesImmediately(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	b.OnFailure("openai", FailureRateLimit)

	assert.Equal(t, StateDisqualified, b.StateOf("openai").State)
	assert.False(t, b.IsAvailable("openai"))
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	b.OnFailure("openai", FailureError)
	b.OnFailure("openai", FailureError)
	b.OnSuccess("openai")

	health := b.StateOf("openai")
	assert.Equal(t, StateAvailable, health.State)
	assert.Equal(t, 0, health.ConsecutiveFailures)

	// a fresh streak is needed to disqualify again
	b.OnFailure("openai", FailureError)
	assert.Equal(t, StateDegraded, b.StateOf("openai").State)
}

func TestBreaker_OptimisticRecovery(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	b.OnFailure("openai", FailureError)
	b.OnFailure("openai", FailureError)
	b.OnFailure("openai", FailureError)
	require.False(t, b.IsAvailable("openai"))

	time.Sleep(60 * time.Millisecond)

	// re-admitted without a probe once the cooldown elapses
	assert.True(t, b.IsAvailable("openai"))
	assert.Equal(t, StateAvailable, b.StateOf("openai").State)

	// the streak was kept, so one more failure re-disqualifies immediately
	b.OnFailure("openai", FailureError)
	assert.False(t, b.IsAvailable("openai"))
}

func TestBreaker_TransitionEvents(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	var mu sync.Mutex
	var events []Transition
	b.Subscribe(func(tr Transition) {
		mu.Lock()
		events = append(events, tr)
		mu.Unlock()
	})

	b.OnFailure("openai", FailureError)     // available -> degraded
	b.OnFailure("openai", FailureError)     // no transition
	b.OnFailure("openai", FailureRateLimit) // degraded -> disqualified
	b.OnSuccess("openai")                   // disqualified -> available

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)

	assert.Equal(t, StateAvailable, events[0].From)
	assert.Equal(t, StateDegraded, events[0].To)

	assert.Equal(t, StateDegraded, events[1].From)
	assert.Equal(t, StateDisqualified, events[1].To)
	assert.Equal(t, string(FailureRateLimit), events[1].Reason)
	assert.False(t, events[1].CooldownUntil.IsZero())

	assert.Equal(t, StateDisqualified, events[2].From)
	assert.Equal(t, StateAvailable, events[2].To)
	assert.Equal(t, "success", events[2].Reason)
}

func TestBreaker_ProvidersAreIndependent(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	b.OnFailure("openai", FailureRateLimit)

	assert.False(t, b.IsAvailable("openai"))
	assert.True(t, b.IsAvailable("anthropic"))
}

func TestBreaker_Snapshot(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	b.OnSuccess("openai")
	b.OnFailure("stability", FailureRateLimit)

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, StateAvailable, snapshot["openai"].State)
	assert.Equal(t, StateDisqualified, snapshot["stability"].State)
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	b := NewBreaker(testConfig(), zap.NewNop())

	var wg sync.WaitGroup
	providers := []string{"openai", "anthropic", "stability", "replicate"}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := providers[i%len(providers)]
			if i%3 == 0 {
				b.OnFailure(name, FailureError)
			} else {
				b.OnSuccess(name)
			}
			b.IsAvailable(name)
		}(i)
	}
	wg.Wait()

	assert.Len(t, b.Snapshot(), len(providers))
}
