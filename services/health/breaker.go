package health

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents the availability state of one provider
type State string

const (
	// StateAvailable means the provider is eligible for routing
	StateAvailable State = "available"

	// StateDegraded means the provider has recent failures below the
	// disqualification threshold and remains eligible
	StateDegraded State = "degraded"

	// StateDisqualified means the provider is removed from routing until
	// its cooldown elapses
	StateDisqualified State = "disqualified"
)

// FailureKind classifies a provider failure for cooldown selection
type FailureKind string

const (
	// FailureError is a generic provider error or malformed response
	FailureError FailureKind = "error"

	// FailureTimeout is an attempt that exceeded its bounded timeout
	FailureTimeout FailureKind = "timeout"

	// FailureRateLimit is an explicit rate-limit response from the provider
	FailureRateLimit FailureKind = "rate_limit"
)

// Transition describes one state change of a provider
type Transition struct {
	Provider      string
	From          State
	To            State
	Reason        string
	At            time.Time
	CooldownUntil time.Time
}

// TransitionFunc receives breaker transition events. Subscribers must be
// fast and non-blocking; they run on the caller's goroutine.
type TransitionFunc func(Transition)

// Config holds circuit breaker policy
type Config struct {
	// FailureThreshold is the consecutive-failure count that disqualifies a provider
	FailureThreshold int

	// FailureCooldown applies after crossing the failure threshold
	FailureCooldown time.Duration

	// RateLimitCooldown applies after an explicit rate-limit failure
	RateLimitCooldown time.Duration
}

// DefaultConfig returns the default breaker policy
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  3,
		FailureCooldown:   600 * time.Second,
		RateLimitCooldown: 300 * time.Second,
	}
}

// providerState is the mutable runtime state of one provider. Each provider
// owns its lock so requests touching different providers never contend.
type providerState struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	disqualifiedUntil   time.Time
	lastUsed            time.Time
}

// ProviderHealth is a read-only snapshot of one provider's runtime state
type ProviderHealth struct {
	Provider            string    `json:"provider"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	DisqualifiedUntil   time.Time `json:"disqualified_until,omitempty"`
	LastUsed            time.Time `json:"last_used,omitempty"`
}

// Breaker tracks per-provider availability. Disqualification is temporary:
// once the cooldown elapses a provider is optimistically re-admitted without
// a confirmatory probe, and the next failure immediately re-disqualifies it
// because the consecutive-failure count only resets on success.
type Breaker struct {
	mu     sync.RWMutex
	states map[string]*providerState
	cfg    Config

	subMu sync.RWMutex
	subs  []TransitionFunc

	logger *zap.Logger
}

// NewBreaker creates a circuit breaker with the given policy
func NewBreaker(cfg Config, logger *zap.Logger) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	return &Breaker{
		states: make(map[string]*providerState),
		cfg:    cfg,
		logger: logger,
	}
}

// Subscribe registers a transition event subscriber
func (b *Breaker) Subscribe(fn TransitionFunc) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subs = append(b.subs, fn)
}

// OnSuccess records a successful attempt: the failure streak resets and the
// provider returns to AVAILABLE
func (b *Breaker) OnSuccess(provider string) {
	ps := b.stateFor(provider)

	ps.mu.Lock()
	from := ps.state
	ps.consecutiveFailures = 0
	ps.disqualifiedUntil = time.Time{}
	ps.state = StateAvailable
	ps.lastUsed = time.Now()
	ps.mu.Unlock()

	if from != StateAvailable {
		b.emit(Transition{
			Provider: provider,
			From:     from,
			To:       StateAvailable,
			Reason:   "success",
			At:       time.Now(),
		})
	}
}

// OnFailure records a failed attempt. An explicit rate-limit failure
// disqualifies immediately with the rate-limit cooldown; other failures
// disqualify once the consecutive count reaches the threshold.
func (b *Breaker) OnFailure(provider string, kind FailureKind) {
	ps := b.stateFor(provider)
	now := time.Now()

	ps.mu.Lock()
	from := ps.state
	ps.consecutiveFailures++
	ps.lastUsed = now

	var to State
	var until time.Time
	switch {
	case kind == FailureRateLimit:
		to = StateDisqualified
		until = now.Add(b.cfg.RateLimitCooldown)
	case ps.consecutiveFailures >= b.cfg.FailureThreshold:
		to = StateDisqualified
		until = now.Add(b.cfg.FailureCooldown)
	default:
		to = StateDegraded
	}
	ps.state = to
	ps.disqualifiedUntil = until
	failures := ps.consecutiveFailures
	ps.mu.Unlock()

	if from != to {
		b.logger.Warn("provider state transition",
			zap.String("provider", provider),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("failure_kind", string(kind)),
			zap.Int("consecutive_failures", failures),
			zap.Time("cooldown_until", until))
		b.emit(Transition{
			Provider:      provider,
			From:          from,
			To:            to,
			Reason:        string(kind),
			At:            now,
			CooldownUntil: until,
		})
	}
}

// IsAvailable reports whether a provider may be routed to right now.
// A disqualified provider whose cooldown has elapsed is re-admitted
// optimistically: the state flips back to AVAILABLE and an event is emitted.
func (b *Breaker) IsAvailable(provider string) bool {
	ps := b.stateFor(provider)
	now := time.Now()

	ps.mu.Lock()
	if ps.state != StateDisqualified {
		ps.mu.Unlock()
		return true
	}
	if now.Before(ps.disqualifiedUntil) {
		ps.mu.Unlock()
		return false
	}
	// Cooldown elapsed: optimistic re-admission. The failure streak is kept
	// so the next failure re-disqualifies immediately.
	from := ps.state
	ps.state = StateAvailable
	ps.disqualifiedUntil = time.Time{}
	ps.mu.Unlock()

	b.logger.Info("provider re-admitted after cooldown", zap.String("provider", provider))
	b.emit(Transition{
		Provider: provider,
		From:     from,
		To:       StateAvailable,
		Reason:   "cooldown_elapsed",
		At:       now,
	})
	return true
}

// StateOf returns a snapshot of one provider's runtime state
func (b *Breaker) StateOf(provider string) ProviderHealth {
	ps := b.stateFor(provider)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	return ProviderHealth{
		Provider:            provider,
		State:               ps.state,
		ConsecutiveFailures: ps.consecutiveFailures,
		DisqualifiedUntil:   ps.disqualifiedUntil,
		LastUsed:            ps.lastUsed,
	}
}

// Snapshot returns the runtime state of every tracked provider
func (b *Breaker) Snapshot() map[string]ProviderHealth {
	b.mu.RLock()
	names := make([]string, 0, len(b.states))
	for name := range b.states {
		names = append(names, name)
	}
	b.mu.RUnlock()

	snapshot := make(map[string]ProviderHealth, len(names))
	for _, name := range names {
		snapshot[name] = b.StateOf(name)
	}
	return snapshot
}

// stateFor returns the state entry for a provider, creating it on first use
func (b *Breaker) stateFor(provider string) *providerState {
	b.mu.RLock()
	ps, ok := b.states[provider]
	b.mu.RUnlock()
	if ok {
		return ps
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ps, ok = b.states[provider]; ok {
		return ps
	}
	ps = &providerState{state: StateAvailable}
	b.states[provider] = ps
	return ps
}

// emit delivers a transition to all subscribers
func (b *Breaker) emit(t Transition) {
	b.subMu.RLock()
	subs := b.subs
	b.subMu.RUnlock()

	for _, fn := range subs {
		fn(t)
	}
}
