// Package espeak implements the offline TTS provider backed by the espeak-ng
// command line synthesizer.
package espeak

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-engine/internal/core"
)

const (
	defaultBinary = "espeak-ng"

	// The synthesizer is operated as a single-locale fallback even though the
	// binary ships voices for many languages.
	defaultVoiceLocale = "en-US"

	// espeak-ng native parameter ranges. Signed percentage deltas are mapped
	// onto these around the tool's defaults.
	baseRateWPM = 175.0
	minRateWPM  = 80.0
	maxRateWPM  = 450.0

	basePitch = 50.0
	minPitch  = 0.0
	maxPitch  = 99.0

	baseAmplitude = 100.0
	minAmplitude  = 0.0
	maxAmplitude  = 200.0

	voiceListColumns = 5
)

// ErrBinaryNotFound indicates the synthesizer binary is not on PATH.
var ErrBinaryNotFound = errors.New("espeak-ng binary not found")

// Synthesizer is the espeak-ng backed core.Provider. It holds no mutable
// state; concurrent Convert calls each run their own process.
type Synthesizer struct {
	binaryPath string
	available  bool
	log        *logger.Logger
}

// New creates a synthesizer bound to the espeak-ng binary found on PATH.
// A missing binary is not an error; the provider reports itself unavailable.
func New(log *logger.Logger) *Synthesizer {
	return NewWithBinary(log, defaultBinary)
}

// NewWithBinary creates a synthesizer bound to a specific binary path,
// primarily for tests.
func NewWithBinary(log *logger.Logger, binary string) *Synthesizer {
	path, err := exec.LookPath(binary)
	if err != nil {
		log.Warn("espeak-ng not found on PATH, offline provider disabled: %v", err)

		return &Synthesizer{binaryPath: binary, available: false, log: log}
	}

	return &Synthesizer{binaryPath: path, available: true, log: log}
}

// Name returns the provider identifier used in requests and metadata.
func (s *Synthesizer) Name() string { return "espeak" }

// Type reports espeak as a host-resident provider.
func (s *Synthesizer) Type() core.ProviderType { return core.ProviderTypeOffline }

// Available reports whether the binary was found on PATH.
func (s *Synthesizer) Available() bool { return s.available }

// SupportsRate reports native speaking-rate control.
func (s *Synthesizer) SupportsRate() bool { return true }

// SupportsPitch reports native pitch control.
func (s *Synthesizer) SupportsPitch() bool { return true }

// SupportsVolume reports native amplitude control.
func (s *Synthesizer) SupportsVolume() bool { return true }

// SupportsSSML reports that espeak input is treated as plain text.
func (s *Synthesizer) SupportsSSML() bool { return false }

// SupportsChunking reports that espeak takes arbitrarily long input directly.
func (s *Synthesizer) SupportsChunking() bool { return false }

// MaxTextBytes reports no per-call payload limit.
func (s *Synthesizer) MaxTextBytes() int { return 0 }

// Voices lists the voices espeak-ng reports for a language tag prefix. An
// empty filter selects the en-US variants, not the full installed list.
func (s *Synthesizer) Voices(ctx context.Context, locale string) ([]core.Voice, error) {
	if !s.available {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, s.binaryPath)
	}

	if locale == "" {
		locale = defaultVoiceLocale
	}

	cmd := exec.CommandContext(ctx, s.binaryPath, "--voices")

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list espeak voices: %w", err)
	}

	return parseVoiceList(string(output), locale), nil
}

// parseVoiceList parses the columnar output of `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File
//	 2  en-gb          --/M      english             gmw/en
func parseVoiceList(output, locale string) []core.Voice {
	lines := strings.Split(output, "\n")

	voices := make([]core.Voice, 0, len(lines))

	for i, line := range lines {
		if i == 0 {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < voiceListColumns {
			continue
		}

		language := fields[1]
		if locale != "" && !strings.HasPrefix(strings.ToLower(language), strings.ToLower(locale)) {
			continue
		}

		voices = append(voices, core.Voice{
			ID:       language,
			Name:     fields[3],
			Language: language,
			Gender:   parseGender(fields[2]),
			Quality:  "standard",
			Provider: "espeak",
		})
	}

	return voices
}

func parseGender(ageGender string) string {
	_, gender, found := strings.Cut(ageGender, "/")
	if !found {
		return ""
	}

	switch gender {
	case "M":
		return "Male"
	case "F":
		return "Female"
	default:
		return ""
	}
}

// Convert synthesizes text to a WAV file via one espeak-ng invocation.
// Validation failures return (false, nil); process and filesystem failures
// return an error.
func (s *Synthesizer) Convert(
	ctx context.Context,
	text, voiceID, outputPath string,
	rate, pitch, volume float64,
) (bool, error) {
	if !s.available {
		return false, fmt.Errorf("%w: %s", ErrBinaryNotFound, s.binaryPath)
	}

	if strings.TrimSpace(text) == "" || voiceID == "" || outputPath == "" {
		return false, nil
	}

	if !prosodyInRange(rate) || !prosodyInRange(pitch) || !prosodyInRange(volume) {
		return false, nil
	}

	args := []string{
		"-v", voiceID,
		"-s", strconv.Itoa(mapDelta(baseRateWPM, minRateWPM, maxRateWPM, rate)),
		"-p", strconv.Itoa(mapDelta(basePitch, minPitch, maxPitch, pitch)),
		"-a", strconv.Itoa(mapDelta(baseAmplitude, minAmplitude, maxAmplitude, volume)),
		"-w", outputPath,
		"--", text,
	}

	// #nosec G204 -- the binary path comes from construction, not the request
	cmd := exec.CommandContext(ctx, s.binaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("espeak-ng failed: %w - output: %s", err, string(output))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return false, fmt.Errorf("espeak-ng left no output at '%s': %w", outputPath, err)
	}

	if info.Size() == 0 {
		return false, fmt.Errorf("%w: '%s'", core.ErrEmptyOutput, outputPath)
	}

	s.log.Info("espeak-ng synthesized %d bytes to %s", info.Size(), outputPath)

	return true, nil
}

func prosodyInRange(delta float64) bool {
	return delta >= core.MinProsodyDelta && delta <= core.MaxProsodyDelta
}

// mapDelta maps a signed percentage delta onto a native parameter range
// centered on the tool's default value.
func mapDelta(base, minimum, maximum, delta float64) int {
	value := base * (1 + delta/100)

	return int(math.Round(math.Min(maximum, math.Max(minimum, value))))
}
