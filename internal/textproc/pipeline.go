package textproc

import (
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-engine/internal/core"
)

// Pipeline applies an ordered sequence of cleaners and validates the result.
type Pipeline struct {
	cleaners []Cleaner
	log      *logger.Logger
}

// NewPipeline creates a pipeline with the default cleaner sequence:
// normalization first, artifact stripping second.
func NewPipeline(log *logger.Logger) *Pipeline {
	return &Pipeline{
		cleaners: []Cleaner{NewNormalizeCleaner(), NewFormattingCleaner()},
		log:      log,
	}
}

// NewPipelineWithCleaners creates a pipeline with a custom cleaner sequence.
func NewPipelineWithCleaners(log *logger.Logger, cleaners ...Cleaner) *Pipeline {
	return &Pipeline{
		cleaners: cleaners,
		log:      log,
	}
}

// AddCleaner appends a cleaner to the sequence.
func (p *Pipeline) AddCleaner(cleaner Cleaner) {
	p.cleaners = append(p.cleaners, cleaner)
}

// Process runs text through the cleaning sequence. It returns nil when the
// result is blank, which callers must treat as a hard stop, never as a retry
// trigger. Enhanced currently equals Cleaned; the field is reserved for
// semantic augmentation.
func (p *Pipeline) Process(text string) *core.ProcessedText {
	cleaned := text
	for _, cleaner := range p.cleaners {
		cleaned = cleaner.Clean(cleaned)
	}

	if strings.TrimSpace(cleaned) == "" {
		p.log.Error("Text is empty after cleaning - cannot convert to speech")

		return nil
	}

	p.log.Info("Text length after cleaning: %d characters (%d bytes)", len([]rune(cleaned)), len(cleaned))

	return &core.ProcessedText{
		Original:      text,
		Cleaned:       cleaned,
		Enhanced:      cleaned,
		SSMLSupported: true,
	}
}

// BuildPayload constructs the final synthesis payload for a provider:
// SSML-wrapped only when the provider supports SSML and at least one prosody
// delta is non-zero. The second return value reports whether SSML is in play.
func BuildPayload(processed *core.ProcessedText, provider core.Provider, rate, pitch, volume float64) (string, bool) {
	if !provider.SupportsSSML() {
		return processed.Enhanced, false
	}

	ssml := BuildSSML(processed.Enhanced, rate, pitch, volume)
	if ssml == processed.Enhanced {
		return processed.Enhanced, false
	}

	return ssml, true
}
