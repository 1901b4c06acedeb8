// Package audio reassembles per-chunk audio files into a single artifact.
//
// Merging is tiered: an in-process concatenation is preferred, an external
// ffmpeg invocation is the fallback, and copying the first chunk is the last
// resort, flagged as degraded. Every tier leaves a non-empty file at the
// output path on declared success.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/book-expert/tts-engine/internal/core"
)

const (
	outputFilePermissions = 0o600
	defaultMergeTool      = "ffmpeg"
)

// ErrNoChunks indicates a merge call without any input files.
var ErrNoChunks = errors.New("no chunk files to merge")

// Tier identifies which reassembly tier produced the output.
type Tier string

const (
	// TierInProcess is the in-process concatenation tier.
	TierInProcess Tier = "in-process"
	// TierExternal is the external transcoding tool tier.
	TierExternal Tier = "external"
	// TierDegraded is the first-chunk copy tier; its output is incomplete.
	TierDegraded Tier = "degraded"
)

// Result reports how a merge was performed. Degraded means only the first
// chunk made it into the output.
type Result struct {
	Tier     Tier
	Degraded bool
}

// Merger concatenates ordered chunk files into one output file.
type Merger struct {
	mergeTool string
	log       *logger.Logger
}

// NewMerger creates a merger using the default external tool (ffmpeg) for the
// fallback tier.
func NewMerger(log *logger.Logger) *Merger {
	return &Merger{mergeTool: defaultMergeTool, log: log}
}

// NewMergerWithTool creates a merger with a custom external tool path,
// primarily for tests.
func NewMergerWithTool(log *logger.Logger, tool string) *Merger {
	return &Merger{mergeTool: tool, log: log}
}

// Merge concatenates chunkPaths, in the given order, into outputPath. The
// order must be the original chunk index order; completion order of the
// conversions that produced the files is irrelevant here.
func (m *Merger) Merge(ctx context.Context, chunkPaths []string, outputPath string) (Result, error) {
	if len(chunkPaths) == 0 {
		return Result{}, ErrNoChunks
	}

	inProcessErr := m.mergeInProcess(chunkPaths, outputPath)
	if inProcessErr == nil {
		m.log.Info("Merged %d audio chunks in-process", len(chunkPaths))

		return Result{Tier: TierInProcess, Degraded: false}, nil
	}

	m.log.Warn("In-process merge failed, falling back to %s: %v", m.mergeTool, inProcessErr)

	externalErr := m.mergeWithTool(ctx, chunkPaths, outputPath)
	if externalErr == nil {
		m.log.Info("Merged %d audio chunks with %s", len(chunkPaths), m.mergeTool)

		return Result{Tier: TierExternal, Degraded: false}, nil
	}

	m.log.Warn("External merge failed, copying first chunk only: %v", externalErr)

	copyErr := m.copyFirstChunk(chunkPaths[0], outputPath)
	if copyErr != nil {
		return Result{}, fmt.Errorf("%w: in-process: %v; external: %v; copy: %v",
			core.ErrMergeFailed, inProcessErr, externalErr, copyErr)
	}

	m.log.Warn("Output contains only the first of %d chunks", len(chunkPaths))

	return Result{Tier: TierDegraded, Degraded: true}, nil
}

// mergeInProcess concatenates chunks without external tooling. WAV chunks are
// recombined at the RIFF level; MP3 chunks are decode-validated and then
// joined as frame streams, which players treat as one continuous stream when
// the encoding parameters match.
func (m *Merger) mergeInProcess(chunkPaths []string, outputPath string) error {
	switch strings.ToLower(filepath.Ext(chunkPaths[0])) {
	case ".wav":
		return m.concatWAVFiles(chunkPaths, outputPath)
	case ".mp3":
		return m.concatMP3Files(chunkPaths, outputPath)
	default:
		return fmt.Errorf("no in-process concatenation for %q files", filepath.Ext(chunkPaths[0]))
	}
}

func (m *Merger) concatWAVFiles(chunkPaths []string, outputPath string) error {
	parts := make([]*wavFile, 0, len(chunkPaths))

	for _, path := range chunkPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read chunk '%s': %w", path, err)
		}

		parsed, err := parseWAV(data)
		if err != nil {
			return fmt.Errorf("failed to parse chunk '%s': %w", path, err)
		}

		parts = append(parts, parsed)
	}

	merged, err := concatWAV(parts)
	if err != nil {
		return err
	}

	err = os.WriteFile(outputPath, merged, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write merged output '%s': %w", outputPath, err)
	}

	return nil
}

func (m *Merger) concatMP3Files(chunkPaths []string, outputPath string) error {
	var combined bytes.Buffer

	sampleRate := 0

	for _, path := range chunkPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read chunk '%s': %w", path, err)
		}

		decoder, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("chunk '%s' is not decodable MP3: %w", path, err)
		}

		_, err = io.Copy(io.Discard, decoder)
		if err != nil {
			return fmt.Errorf("chunk '%s' failed decode validation: %w", path, err)
		}

		if sampleRate == 0 {
			sampleRate = decoder.SampleRate()
		} else if decoder.SampleRate() != sampleRate {
			return fmt.Errorf("chunk '%s' sample rate %d differs from %d",
				path, decoder.SampleRate(), sampleRate)
		}

		combined.Write(data)
	}

	err := os.WriteFile(outputPath, combined.Bytes(), outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write merged output '%s': %w", outputPath, err)
	}

	return nil
}

// mergeWithTool drives the external transcoding tool through a generated
// concat manifest. A non-zero exit status is a failure.
func (m *Merger) mergeWithTool(ctx context.Context, chunkPaths []string, outputPath string) error {
	manifest, err := m.writeManifest(chunkPaths, outputPath)
	if err != nil {
		return err
	}

	defer func() {
		removeErr := os.Remove(manifest)
		if removeErr != nil {
			m.log.Warn("Failed to remove merge manifest '%s': %v", manifest, removeErr)
		}
	}()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		outputPath,
	}

	// #nosec G204 -- the tool path is configured, not caller-supplied
	cmd := exec.CommandContext(ctx, m.mergeTool, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s concat failed: %w - output: %s", m.mergeTool, err, string(output))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%s reported success but left no output at '%s'", m.mergeTool, outputPath)
	}

	return nil
}

func (m *Merger) writeManifest(chunkPaths []string, outputPath string) (string, error) {
	var builder strings.Builder

	for _, path := range chunkPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve chunk path '%s': %w", path, err)
		}

		fmt.Fprintf(&builder, "file '%s'\n", absPath)
	}

	manifest := outputPath + ".concat.txt"

	err := os.WriteFile(manifest, []byte(builder.String()), outputFilePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to write merge manifest '%s': %w", manifest, err)
	}

	return manifest, nil
}

func (m *Merger) copyFirstChunk(firstChunk, outputPath string) error {
	data, err := os.ReadFile(firstChunk)
	if err != nil {
		return fmt.Errorf("failed to read first chunk '%s': %w", firstChunk, err)
	}

	if len(data) == 0 {
		return fmt.Errorf("first chunk '%s' is empty", firstChunk)
	}

	err = os.WriteFile(outputPath, data, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to copy first chunk to '%s': %w", outputPath, err)
	}

	return nil
}
