// Package manager coordinates the registered TTS providers: per-operation
// circuit breaking, provider health tracking, selection policy and fallback
// conversion.
package manager

import (
	"sync"
	"time"

	"github.com/book-expert/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerRegistry lazily creates one circuit breaker per (provider, operation)
// pair. Breakers trip after a run of consecutive failures and short-circuit to
// false while open; a cooldown later one trial call decides whether to close
// again. Construct one registry per process and inject it, so tests get fresh
// breaker state.
type BreakerRegistry struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[bool]
	threshold uint32
	cooldown  time.Duration
	log       *logger.Logger
}

// NewBreakerRegistry creates a registry whose breakers open after threshold
// consecutive failures and allow a trial call after cooldown.
func NewBreakerRegistry(log *logger.Logger, threshold uint32, cooldown time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		mu:        sync.Mutex{},
		breakers:  make(map[string]*gobreaker.CircuitBreaker[bool]),
		threshold: threshold,
		cooldown:  cooldown,
		log:       log,
	}
}

// Execute runs call through the breaker for the given provider and operation.
// While the breaker is open it returns gobreaker.ErrOpenState without invoking
// call. Only non-nil errors from call count as failures; a (false, nil)
// validation outcome passes through untouched.
func (r *BreakerRegistry) Execute(
	provider, operation string,
	call func() (bool, error),
) (bool, error) {
	return r.get(provider + ":" + operation).Execute(call)
}

func (r *BreakerRegistry) get(key string) *gobreaker.CircuitBreaker[bool] {
	r.mu.Lock()
	defer r.mu.Unlock()

	breaker, ok := r.breakers[key]
	if ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     r.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn("Circuit breaker '%s' changed state: %s -> %s", name, from, to)
		},
		IsSuccessful: nil,
	}

	breaker = gobreaker.NewCircuitBreaker[bool](settings)
	r.breakers[key] = breaker

	return breaker
}
