package core

import "errors"

// Error taxonomy for the conversion engine. Validation errors are surfaced
// immediately and never retried; transient provider failures are retried across
// providers and chunk attempts; merge failures keep chunk files on disk for
// manual recovery.
var (
	// ErrInvalidRequest indicates a malformed conversion request.
	ErrInvalidRequest = errors.New("invalid conversion request")
	// ErrTextEmpty indicates the request text is empty or blank after cleaning.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrOutputPathEmpty indicates the request has no output path.
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
	// ErrProsodyOutOfRange indicates a rate/pitch/volume delta outside the
	// nominal range.
	ErrProsodyOutOfRange = errors.New("prosody delta out of range")
	// ErrUnknownProvider indicates a provider preference naming no registered
	// provider.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrVoiceNotFound indicates exhaustive voice resolution failed.
	ErrVoiceNotFound = errors.New("voice not found in any provider")
	// ErrNoProviderAvailable indicates every candidate provider was exhausted.
	ErrNoProviderAvailable = errors.New("no TTS provider available")
	// ErrMergeFailed indicates no reassembly tier succeeded.
	ErrMergeFailed = errors.New("audio merge failed")
	// ErrEmptyOutput indicates a conversion left a zero-byte artifact.
	ErrEmptyOutput = errors.New("conversion produced an empty output file")
)
