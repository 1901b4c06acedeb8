package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/book-expert/tts-engine/internal/core"
)

// Manager owns the registered providers and runs conversions with fallback:
// the first provider to return true wins, every other outcome records a
// health failure and advances to the next candidate.
//
// Breaker and health state are process-wide; concurrent chunk conversions
// share them through this single manager instance.
type Manager struct {
	log       *logger.Logger
	strategy  SelectionStrategy
	health    *HealthChecker
	breakers  *BreakerRegistry
	providers []core.Provider
	byName    map[string]core.Provider
}

// New creates a manager with the given selection policy and injected breaker
// and health state.
func New(
	log *logger.Logger,
	strategy SelectionStrategy,
	health *HealthChecker,
	breakers *BreakerRegistry,
) *Manager {
	return &Manager{
		log:       log,
		strategy:  strategy,
		health:    health,
		breakers:  breakers,
		providers: nil,
		byName:    make(map[string]core.Provider),
	}
}

// Register adds a provider. Registration happens at startup, before any
// conversion runs.
func (m *Manager) Register(provider core.Provider) {
	m.providers = append(m.providers, provider)
	m.byName[provider.Name()] = provider

	m.log.Info("Registered TTS provider '%s' (%s, available=%v)",
		provider.Name(), provider.Type(), provider.Available())
}

// Provider looks up a registered provider by name.
func (m *Manager) Provider(name string) (core.Provider, bool) {
	provider, ok := m.byName[name]

	return provider, ok
}

// Providers returns the registered providers in registration order.
func (m *Manager) Providers() []core.Provider {
	out := make([]core.Provider, len(m.providers))
	copy(out, m.providers)

	return out
}

// Healthy reports whether the named provider is currently considered healthy.
func (m *Manager) Healthy(name string) bool {
	return m.health.IsHealthy(name)
}

// Convert runs one conversion with provider fallback. The request is
// validated strictly before any provider-facing call, so malformed input
// never feeds breaker or health counters. preferred may be empty.
func (m *Manager) Convert(
	ctx context.Context,
	preferred, text, voiceID, outputPath string,
	rate, pitch, volume float64,
) (bool, error) {
	err := validateConversionInput(preferred, text, outputPath, rate, pitch, volume, m.byName)
	if err != nil {
		return false, err
	}

	candidates := m.candidates(preferred)
	if len(candidates) == 0 {
		return false, fmt.Errorf("%w: no healthy candidates", core.ErrNoProviderAvailable)
	}

	for _, candidate := range candidates {
		success, convertErr := m.breakers.Execute(candidate.Name(), "convert", func() (bool, error) {
			return candidate.Convert(ctx, text, voiceID, outputPath, rate, pitch, volume)
		})

		switch {
		case errors.Is(convertErr, gobreaker.ErrOpenState):
			m.log.Warn("Provider '%s' skipped: circuit breaker open", candidate.Name())
			m.health.RecordFailure(candidate.Name())
		case convertErr != nil:
			m.log.Warn("Provider '%s' failed: %v", candidate.Name(), convertErr)
			m.health.RecordFailure(candidate.Name())
		case !success:
			m.log.Warn("Provider '%s' rejected the request", candidate.Name())
			m.health.RecordFailure(candidate.Name())
		default:
			m.health.RecordSuccess(candidate.Name())

			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %d candidates exhausted", core.ErrNoProviderAvailable, len(candidates))
}

// Voices aggregates voice listings across all registered providers. Providers
// that fail to list are logged and skipped; an error is returned only when no
// provider produced any voices.
func (m *Manager) Voices(ctx context.Context, locale string) ([]core.Voice, error) {
	var (
		all      []core.Voice
		firstErr error
	)

	for _, provider := range m.providers {
		voices, err := provider.Voices(ctx, locale)
		if err != nil {
			m.log.Warn("Provider '%s' voice listing failed: %v", provider.Name(), err)

			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		all = append(all, voices...)
	}

	if len(all) == 0 && firstErr != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrNoProviderAvailable, firstErr)
	}

	return all, nil
}

// candidates builds the ordered attempt list: the healthy preferred provider
// first, then strategy-ordered healthy providers.
func (m *Manager) candidates(preferred string) []core.Provider {
	ordered := make([]core.Provider, 0, len(m.providers))

	if preferred != "" {
		provider := m.byName[preferred]
		if m.health.IsHealthy(preferred) {
			ordered = append(ordered, provider)
		}
	}

	for _, provider := range m.strategy.Order(m.providers) {
		if provider.Name() == preferred {
			continue
		}

		if m.health.IsHealthy(provider.Name()) {
			ordered = append(ordered, provider)
		}
	}

	return ordered
}

func validateConversionInput(
	preferred, text, outputPath string,
	rate, pitch, volume float64,
	known map[string]core.Provider,
) error {
	if strings.TrimSpace(text) == "" {
		return core.ErrTextEmpty
	}

	if outputPath == "" {
		return core.ErrOutputPathEmpty
	}

	for _, delta := range []float64{rate, pitch, volume} {
		if delta < core.MinProsodyDelta || delta > core.MaxProsodyDelta {
			return fmt.Errorf("%w: %.1f not in %.0f..%.0f",
				core.ErrProsodyOutOfRange, delta, core.MinProsodyDelta, core.MaxProsodyDelta)
		}
	}

	if preferred != "" {
		_, ok := known[preferred]
		if !ok {
			return fmt.Errorf("%w: '%s'", core.ErrUnknownProvider, preferred)
		}
	}

	return nil
}
