// Package core defines the data model and the provider contract shared by the
// TTS conversion engine.
package core

import "context"

// ProviderType distinguishes network-backed providers from host-resident ones.
type ProviderType string

const (
	// ProviderTypeCloud marks providers that call an external network service.
	ProviderTypeCloud ProviderType = "cloud"
	// ProviderTypeOffline marks providers backed by a local synthesis engine.
	ProviderTypeOffline ProviderType = "offline"
)

// Prosody delta bounds shared by request validation and provider mapping.
const (
	MinProsodyDelta = -50.0
	MaxProsodyDelta = 100.0
)

// Voice is an immutable snapshot of a provider-reported voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
	Quality  string `json:"quality"`
	Provider string `json:"provider"`
}

// ConversionRequest describes a single text-to-audio conversion. Voice and
// Provider are optional; empty values fall back to configured defaults.
// Rate, Pitch and Volume are signed percentage deltas in the nominal range
// MinProsodyDelta..MaxProsodyDelta.
type ConversionRequest struct {
	Text       string
	OutputPath string
	Voice      string
	Provider   string
	Rate       float64
	Pitch      float64
	Volume     float64
}

// ConversionResult is the coordinator's only output. Metadata carries the
// resolved voice id, provider name, strategy used and final file size.
type ConversionResult struct {
	Success      bool
	OutputPath   string
	ErrorMessage string
	Metadata     map[string]any
}

// ProcessedText is the output of the text processing pipeline. Enhanced is
// currently equal to Cleaned and is reserved for semantic augmentation.
type ProcessedText struct {
	Original      string
	Cleaned       string
	Enhanced      string
	SSMLSupported bool
}

// Chunk is a byte-bounded slice of input text. ByteLen is the UTF-8 encoded
// length of Text.
type Chunk struct {
	Index   int
	Text    string
	ByteLen int
}

// Provider is the capability contract every TTS backend implements.
//
// Convert returns (false, nil) for validation failures (unknown voice,
// malformed parameters) so they never feed fault-isolation counters; transport
// and service failures surface as non-nil errors. Providers are shared across
// concurrently running chunk conversions and must not mutate shared instance
// state during a call.
type Provider interface {
	Name() string
	Type() ProviderType

	// Available reports whether the backend can serve conversions. For cloud
	// providers this is resolved once at startup via a catalog probe.
	Available() bool

	// Voices lists the provider's voices, optionally filtered by language tag.
	Voices(ctx context.Context, locale string) ([]Voice, error)

	// Convert synthesizes text into an audio file at outputPath.
	Convert(ctx context.Context, text, voiceID, outputPath string, rate, pitch, volume float64) (bool, error)

	SupportsRate() bool
	SupportsPitch() bool
	SupportsVolume() bool
	SupportsSSML() bool
	SupportsChunking() bool

	// MaxTextBytes returns the per-call UTF-8 payload limit, or 0 when the
	// provider has no limit.
	MaxTextBytes() int
}

// ObjectStore is the blob-store collaborator the worker reads source text from
// and writes finished audio to.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// VoiceResolution binds a requested voice name to a concrete provider and
// voice id. Provider is never nil and was healthy at resolution time.
// FallbackUsed is set when the match was fuzzy rather than exact.
type VoiceResolution struct {
	VoiceID      string
	Provider     Provider
	Voice        Voice
	FallbackUsed bool
}
