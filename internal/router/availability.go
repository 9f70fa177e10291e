package router

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// breakerOpenWindow matches the spec's fixed 60s circuit-breaker open
// window before a half-open probe is allowed.
const breakerOpenWindow = 60 * time.Second

// TierAvailability captures the static configuration an AvailabilityChecker
// needs per tier: whether it's enabled, whether credentials are present,
// and its token-bucket rate limit.
type TierAvailability struct {
	Enabled           bool
	CredentialPresent bool
	RatePerSecond     float64
	Burst             int
}

// AvailabilityChecker consults config flags, credential presence, a
// token-bucket rate limiter, and a circuit breaker before a tier is
// considered usable for dispatch.
type AvailabilityChecker struct {
	mu       sync.Mutex
	static   map[core.TierKind]TierAvailability
	limiters map[core.TierKind]*rate.Limiter
	breakers map[core.TierKind]*gobreaker.CircuitBreaker
}

// NewAvailabilityChecker builds a checker from per-tier static config. Tiers
// absent from static are treated as disabled.
func NewAvailabilityChecker(static map[core.TierKind]TierAvailability) *AvailabilityChecker {
	ac := &AvailabilityChecker{
		static:   static,
		limiters: make(map[core.TierKind]*rate.Limiter),
		breakers: make(map[core.TierKind]*gobreaker.CircuitBreaker),
	}
	for kind, cfg := range static {
		if cfg.RatePerSecond > 0 {
			ac.limiters[kind] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
		}
		ac.breakers[kind] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    string(kind),
			Timeout: breakerOpenWindow,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	return ac
}

// Available reports whether kind is currently usable: enabled, credentialed,
// under its rate budget, and not tripped open.
func (ac *AvailabilityChecker) Available(kind core.TierKind) bool {
	ac.mu.Lock()
	cfg, ok := ac.static[kind]
	breaker := ac.breakers[kind]
	limiter := ac.limiters[kind]
	ac.mu.Unlock()

	if !ok || !cfg.Enabled || !cfg.CredentialPresent {
		return false
	}
	if breaker != nil && breaker.State() == gobreaker.StateOpen {
		return false
	}
	if limiter != nil && !limiter.Allow() {
		return false
	}
	return true
}

// RecordSuccess informs the circuit breaker of a successful provider call.
func (ac *AvailabilityChecker) RecordSuccess(kind core.TierKind) {
	ac.mu.Lock()
	breaker := ac.breakers[kind]
	ac.mu.Unlock()
	if breaker == nil {
		return
	}
	_, _ = breaker.Execute(func() (interface{}, error) { return nil, nil })
}

// RecordFailure informs the circuit breaker of a transient provider failure,
// counting toward the consecutive-failure trip threshold.
func (ac *AvailabilityChecker) RecordFailure(kind core.TierKind) {
	ac.mu.Lock()
	breaker := ac.breakers[kind]
	ac.mu.Unlock()
	if breaker == nil {
		return
	}
	_, _ = breaker.Execute(func() (interface{}, error) { return nil, assertFailure })
}

var assertFailure = core.NewError(core.KindProviderUnavailable, "recorded transient failure")
