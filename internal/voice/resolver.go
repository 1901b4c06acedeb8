// Package voice resolves loosely specified voice names to a concrete provider
// and voice id.
package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-engine/internal/core"
)

const maxAliasDepth = 4

// ProviderSource is the view of the provider manager the resolver needs.
type ProviderSource interface {
	Providers() []core.Provider
	Provider(name string) (core.Provider, bool)
	Healthy(name string) bool
}

// voiceAliases maps OS-native voice labels, as upstream callers commonly pass
// them, to canonical voice ids. Alias targets are re-resolved like any other
// name.
var voiceAliases = map[string]string{
	"Microsoft Ana":           "en-US-AnaNeural",
	"Microsoft Aria":          "en-US-AriaNeural",
	"Microsoft Zira":          "en-US-ZiraNeural",
	"Microsoft Zira Desktop":  "en-US-ZiraNeural",
	"Microsoft David":         "en-US-GuyNeural",
	"Microsoft David Desktop": "en-US-GuyNeural",
	"Microsoft Hazel":         "en-GB-LibbyNeural",
	"Microsoft Hazel Desktop": "en-GB-LibbyNeural",
}

// Resolver binds requested voice names to healthy providers. Matching is
// deliberately tolerant: callers may pass canonical ids, display names,
// legacy OS labels or fragments of either.
type Resolver struct {
	source       ProviderSource
	defaultVoice string
	log          *logger.Logger
}

// NewResolver creates a resolver over the given provider source. defaultVoice
// is used when a request names no voice.
func NewResolver(source ProviderSource, defaultVoice string, log *logger.Logger) *Resolver {
	return &Resolver{source: source, defaultVoice: defaultVoice, log: log}
}

// candidate pairs a provider with its voice listing for one resolution pass.
type candidate struct {
	provider core.Provider
	voices   []core.Voice
}

// Resolve maps name to a provider and voice id. Resolution order: exact match
// within the preferred provider, exact match anywhere, alias expansion, then
// case-insensitive prefix/substring matching flagged as a fallback. An empty
// name resolves the configured default voice.
func (r *Resolver) Resolve(
	ctx context.Context,
	name, preferredProvider string,
) (*core.VoiceResolution, error) {
	if name == "" {
		name = r.defaultVoice
	}

	candidates := r.snapshot(ctx, preferredProvider)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: '%s'", core.ErrNoProviderAvailable, name)
	}

	return r.resolve(candidates, name, 0)
}

func (r *Resolver) resolve(candidates []candidate, name string, depth int) (*core.VoiceResolution, error) {
	resolution := matchExact(candidates, name)
	if resolution != nil {
		return resolution, nil
	}

	alias, ok := voiceAliases[name]
	if ok && depth < maxAliasDepth {
		r.log.Info("Voice '%s' resolved through alias '%s'", name, alias)

		return r.resolve(candidates, alias, depth+1)
	}

	resolution = matchFuzzy(candidates, name)
	if resolution != nil {
		r.log.Warn("Voice '%s' resolved by fuzzy match to '%s'", name, resolution.VoiceID)

		return resolution, nil
	}

	return nil, fmt.Errorf("%w: '%s'", core.ErrVoiceNotFound, name)
}

// snapshot lists the voices of every healthy, available provider, with the
// preferred provider first so earlier resolution steps see it first.
func (r *Resolver) snapshot(ctx context.Context, preferredProvider string) []candidate {
	ordered := make([]core.Provider, 0, len(r.source.Providers())+1)

	if preferredProvider != "" {
		provider, ok := r.source.Provider(preferredProvider)
		if ok {
			ordered = append(ordered, provider)
		}
	}

	for _, provider := range r.source.Providers() {
		if provider.Name() != preferredProvider {
			ordered = append(ordered, provider)
		}
	}

	candidates := make([]candidate, 0, len(ordered))

	for _, provider := range ordered {
		if !provider.Available() || !r.source.Healthy(provider.Name()) {
			continue
		}

		voices, err := provider.Voices(ctx, "")
		if err != nil {
			r.log.Warn("Skipping provider '%s' during voice resolution: %v", provider.Name(), err)

			continue
		}

		candidates = append(candidates, candidate{provider: provider, voices: voices})
	}

	return candidates
}

func matchExact(candidates []candidate, name string) *core.VoiceResolution {
	for _, cand := range candidates {
		for _, voice := range cand.voices {
			if voice.ID == name || voice.Name == name {
				return &core.VoiceResolution{
					VoiceID:      voice.ID,
					Provider:     cand.provider,
					Voice:        voice,
					FallbackUsed: false,
				}
			}
		}
	}

	return nil
}

func matchFuzzy(candidates []candidate, name string) *core.VoiceResolution {
	query := strings.ToLower(name)

	for _, cand := range candidates {
		for _, voice := range cand.voices {
			id := strings.ToLower(voice.ID)
			display := strings.ToLower(voice.Name)

			if strings.Contains(id, query) || strings.Contains(display, query) {
				return &core.VoiceResolution{
					VoiceID:      voice.ID,
					Provider:     cand.provider,
					Voice:        voice,
					FallbackUsed: true,
				}
			}
		}
	}

	return nil
}
