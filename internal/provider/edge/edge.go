// Package edge implements the cloud TTS provider backed by the Microsoft Edge
// read-aloud service.
package edge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"
	edgetts "github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/book-expert/tts-engine/internal/core"
)

const (
	// maxPayloadBytes is the service's per-request UTF-8 payload ceiling.
	maxPayloadBytes = 3000

	outputFilePermissions = 0o600
	probeTimeout          = 30 * time.Second
)

// ErrNoAudioReceived indicates a synthesis stream that ended without audio.
var ErrNoAudioReceived = errors.New("edge stream returned no audio data")

// Synthesizer is the Edge read-aloud backed core.Provider. Prosody deltas are
// validated here but applied upstream, where the request payload is rendered
// as SSML.
type Synthesizer struct {
	catalog   *catalog
	available bool
	log       *logger.Logger
}

// New creates a synthesizer and probes the voice catalog once to decide
// availability. A failed probe disables the provider instead of failing
// construction.
func New(ctx context.Context, log *logger.Logger) *Synthesizer {
	return NewWithCatalogURL(ctx, log, voiceListURL)
}

// NewWithCatalogURL creates a synthesizer against a custom catalog endpoint,
// primarily for tests.
func NewWithCatalogURL(ctx context.Context, log *logger.Logger, listURL string) *Synthesizer {
	cat := newCatalog(log, listURL, defaultCatalogTTL)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := cat.Refresh(probeCtx)
	if err != nil {
		log.Warn("Edge catalog probe failed, cloud provider disabled: %v", err)

		return &Synthesizer{catalog: cat, available: false, log: log}
	}

	return &Synthesizer{catalog: cat, available: true, log: log}
}

// Name returns the provider identifier used in requests and metadata.
func (s *Synthesizer) Name() string { return "edge" }

// Type reports edge as a network-backed provider.
func (s *Synthesizer) Type() core.ProviderType { return core.ProviderTypeCloud }

// Available reports whether the startup catalog probe succeeded.
func (s *Synthesizer) Available() bool { return s.available }

// SupportsRate reports rate control, honored through SSML payloads.
func (s *Synthesizer) SupportsRate() bool { return true }

// SupportsPitch reports pitch control, honored through SSML payloads.
func (s *Synthesizer) SupportsPitch() bool { return true }

// SupportsVolume reports volume control, honored through SSML payloads.
func (s *Synthesizer) SupportsVolume() bool { return true }

// SupportsSSML reports that payloads may be SSML documents.
func (s *Synthesizer) SupportsSSML() bool { return true }

// SupportsChunking reports that long input must be split before conversion.
func (s *Synthesizer) SupportsChunking() bool { return true }

// MaxTextBytes returns the service's per-call payload limit.
func (s *Synthesizer) MaxTextBytes() int { return maxPayloadBytes }

// Voices lists the catalog voices, optionally filtered to a language tag
// prefix.
func (s *Synthesizer) Voices(ctx context.Context, locale string) ([]core.Voice, error) {
	voices, err := s.catalog.Voices(ctx)
	if err != nil {
		return nil, err
	}

	if locale == "" {
		return voices, nil
	}

	filtered := make([]core.Voice, 0, len(voices))

	for _, voice := range voices {
		if strings.HasPrefix(strings.ToLower(voice.Language), strings.ToLower(locale)) {
			filtered = append(filtered, voice)
		}
	}

	return filtered, nil
}

// RefreshVoices discards the cached catalog and fetches it again.
func (s *Synthesizer) RefreshVoices(ctx context.Context) error {
	return s.catalog.Refresh(ctx)
}

// Convert synthesizes text into an MP3 file by streaming from the read-aloud
// service. Validation failures return (false, nil); network and service
// failures return an error.
func (s *Synthesizer) Convert(
	ctx context.Context,
	text, voiceID, outputPath string,
	rate, pitch, volume float64,
) (bool, error) {
	if strings.TrimSpace(text) == "" || voiceID == "" || outputPath == "" {
		return false, nil
	}

	if !prosodyInRange(rate) || !prosodyInRange(pitch) || !prosodyInRange(volume) {
		return false, nil
	}

	if len(text) > maxPayloadBytes {
		return false, nil
	}

	audio, err := s.stream(ctx, text, voiceID)
	if err != nil {
		return false, err
	}

	err = os.WriteFile(outputPath, audio, outputFilePermissions)
	if err != nil {
		return false, fmt.Errorf("failed to write audio to '%s': %w", outputPath, err)
	}

	s.log.Info("Edge synthesized %d bytes to %s", len(audio), outputPath)

	return true, nil
}

// stream drains one synthesis session and returns the concatenated MP3 frames.
func (s *Synthesizer) stream(ctx context.Context, text, voiceID string) ([]byte, error) {
	comm, err := edgetts.NewCommunicate(text, edgetts.WithVoice(voiceID))
	if err != nil {
		return nil, fmt.Errorf("failed to create edge session: %w", err)
	}

	messages, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("failed to start edge stream: %w", err)
	}

	var audio bytes.Buffer

	for msg := range messages {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("edge stream cancelled: %w", ctx.Err())
		default:
		}

		msgType, ok := msg["type"].(string)
		if !ok || msgType != "audio" {
			continue
		}

		data, ok := msg["data"].([]byte)
		if ok {
			audio.Write(data)
		}
	}

	if audio.Len() == 0 {
		return nil, ErrNoAudioReceived
	}

	return audio.Bytes(), nil
}

func prosodyInRange(delta float64) bool {
	return delta >= core.MinProsodyDelta && delta <= core.MaxProsodyDelta
}
