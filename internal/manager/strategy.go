package manager

import "github.com/book-expert/tts-engine/internal/core"

// SelectionStrategy orders candidate providers for fallback conversion.
// Implementations must not mutate the input slice.
type SelectionStrategy interface {
	Name() string
	Order(providers []core.Provider) []core.Provider
}

// FallbackStrategy prefers cloud providers over offline ones, keeping
// registration order within each group.
type FallbackStrategy struct{}

// NewFallbackStrategy creates the default cloud-first ordering policy.
func NewFallbackStrategy() *FallbackStrategy { return &FallbackStrategy{} }

// Name returns the strategy identifier used in logs and metadata.
func (s *FallbackStrategy) Name() string { return "fallback" }

// Order returns cloud providers first, then offline providers.
func (s *FallbackStrategy) Order(providers []core.Provider) []core.Provider {
	return orderCloudFirst(providers, false)
}

// QualityFirstStrategy applies the same cloud-first preference but drops
// providers that are not currently available.
type QualityFirstStrategy struct{}

// NewQualityFirstStrategy creates the availability-restricted ordering policy.
func NewQualityFirstStrategy() *QualityFirstStrategy { return &QualityFirstStrategy{} }

// Name returns the strategy identifier used in logs and metadata.
func (s *QualityFirstStrategy) Name() string { return "quality-first" }

// Order returns available cloud providers first, then available offline ones.
func (s *QualityFirstStrategy) Order(providers []core.Provider) []core.Provider {
	return orderCloudFirst(providers, true)
}

func orderCloudFirst(providers []core.Provider, availableOnly bool) []core.Provider {
	ordered := make([]core.Provider, 0, len(providers))

	for _, provider := range providers {
		if provider.Type() == core.ProviderTypeCloud && (!availableOnly || provider.Available()) {
			ordered = append(ordered, provider)
		}
	}

	for _, provider := range providers {
		if provider.Type() != core.ProviderTypeCloud && (!availableOnly || provider.Available()) {
			ordered = append(ordered, provider)
		}
	}

	return ordered
}
