package manager

import (
	"sync"
	"time"
)

// HealthChecker tracks per-provider failure history, independently of the
// per-call circuit breakers. A provider is healthy while its failure count is
// under the threshold; once the threshold is reached, the provider is skipped
// until the recovery window has elapsed, after which its counter resets and it
// is retried.
type HealthChecker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	entries   map[string]*healthEntry
}

type healthEntry struct {
	failures    int
	lastFailure time.Time
}

// NewHealthChecker creates a checker with the given failure threshold and
// recovery window.
func NewHealthChecker(threshold int, recovery time.Duration) *HealthChecker {
	return &HealthChecker{
		mu:        sync.Mutex{},
		threshold: threshold,
		recovery:  recovery,
		entries:   make(map[string]*healthEntry),
	}
}

// RecordFailure increments the provider's failure count.
func (h *HealthChecker) RecordFailure(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.entries[provider]
	if !ok {
		entry = &healthEntry{failures: 0, lastFailure: time.Time{}}
		h.entries[provider] = entry
	}

	entry.failures++
	entry.lastFailure = time.Now()
}

// RecordSuccess resets the provider's failure count.
func (h *HealthChecker) RecordSuccess(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.entries, provider)
}

// IsHealthy reports whether the provider should be attempted. Reaching the
// recovery window resets the counter so the provider gets retried.
func (h *HealthChecker) IsHealthy(provider string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.entries[provider]
	if !ok {
		return true
	}

	if entry.failures < h.threshold {
		return true
	}

	if time.Since(entry.lastFailure) >= h.recovery {
		delete(h.entries, provider)

		return true
	}

	return false
}

// FailureCount returns the provider's current failure count.
func (h *HealthChecker) FailureCount(provider string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.entries[provider]
	if !ok {
		return 0
	}

	return entry.failures
}
