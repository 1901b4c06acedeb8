// Package engine ties the pipeline, resolver, provider manager and merger
// together into the conversion coordinator and its execution strategies.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	backoff "github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/tts-engine/internal/audio"
	"github.com/book-expert/tts-engine/internal/core"
	"github.com/book-expert/tts-engine/internal/resource"
	"github.com/book-expert/tts-engine/internal/textproc"
)

const (
	chunkFilePattern = "chunk_%04d%s"
	defaultChunkExt  = ".mp3"
)

var (
	// ErrConversionRejected indicates every provider declined the request
	// without a transport failure, so retrying cannot help.
	ErrConversionRejected = errors.New("conversion rejected by providers")
	// ErrConversionHalted indicates the stop flag tripped while chunks were
	// being dispatched. Chunks dispatched before the stop ran to completion.
	ErrConversionHalted = errors.New("conversion halted")
)

// Converter is the provider-manager surface the strategies call into.
type Converter interface {
	Convert(
		ctx context.Context,
		preferred, text, voiceID, outputPath string,
		rate, pitch, volume float64,
	) (bool, error)
}

// RetryPolicy bounds the per-chunk retry loop.
type RetryPolicy struct {
	Attempts    int
	Initial     time.Duration
	Multiplier  float64
	MaxInterval time.Duration
}

// job carries one resolved conversion through a strategy.
type job struct {
	processed  *core.ProcessedText
	resolution *core.VoiceResolution
	outputPath string
	rate       float64
	pitch      float64
	volume     float64
}

// strategy executes one resolved conversion end to end.
type strategy interface {
	Name() string
	Run(ctx context.Context, conversion *job) error
}

// directStrategy converts the whole payload in a single provider call.
type directStrategy struct {
	converter Converter
	log       *logger.Logger
}

func (s *directStrategy) Name() string { return "direct" }

func (s *directStrategy) Run(ctx context.Context, conversion *job) error {
	payload, ssml := textproc.BuildPayload(
		conversion.processed,
		conversion.resolution.Provider,
		conversion.rate, conversion.pitch, conversion.volume,
	)

	s.log.Info("Direct conversion: %d payload bytes, ssml=%v, voice=%s",
		len(payload), ssml, conversion.resolution.VoiceID)

	success, err := s.converter.Convert(
		ctx,
		conversion.resolution.Provider.Name(),
		payload,
		conversion.resolution.VoiceID,
		conversion.outputPath,
		conversion.rate, conversion.pitch, conversion.volume,
	)
	if err != nil {
		return fmt.Errorf("direct conversion failed: %w", err)
	}

	if !success {
		return ErrConversionRejected
	}

	return verifyOutput(conversion.outputPath)
}

// chunkedStrategy splits the payload, converts chunks concurrently with
// per-chunk retry, and reassembles the results in index order. Chunk files
// are deleted after a successful merge and kept on disk when merging fails.
type chunkedStrategy struct {
	converter Converter
	merger    *audio.Merger
	resources *resource.Manager
	retry     RetryPolicy
	maxBytes  int
	workers   int
	direct    *directStrategy
	halted    func() bool
	log       *logger.Logger
}

func (s *chunkedStrategy) Name() string { return "chunked" }

func (s *chunkedStrategy) Run(ctx context.Context, conversion *job) error {
	budget := s.chunkBudget(conversion)

	chunks, err := textproc.ChunkText(conversion.processed.Enhanced, budget)
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}

	limit := conversion.resolution.Provider.MaxTextBytes()
	if limit > 0 && s.ssmlEnvelope(conversion) > 0 {
		chunks, err = s.fitWrappedChunks(chunks, limit, conversion)
		if err != nil {
			return fmt.Errorf("re-splitting chunks for ssml failed: %w", err)
		}
	}

	// A single chunk needs no merge pass.
	if len(chunks) == 1 {
		return s.direct.Run(ctx, conversion)
	}

	s.log.Info("Chunked conversion: %d chunks, budget %d bytes", len(chunks), budget)

	tempDir, err := s.resources.CreateTempDir("tts-chunks")
	if err != nil {
		return fmt.Errorf("failed to create chunk directory: %w", err)
	}

	chunkPaths, err := s.convertChunks(ctx, conversion, chunks, tempDir)
	if err != nil {
		if errors.Is(err, ErrConversionHalted) {
			// Dispatched chunks already finished; their files stay for the
			// resource manager's cleanup pass.
			s.log.Warn("Conversion halted, chunk files left in '%s'", tempDir)

			return err
		}

		s.cleanupChunkDir(tempDir)

		return err
	}

	_, err = s.merger.Merge(ctx, chunkPaths, conversion.outputPath)
	if err != nil {
		// Chunk files stay on disk for manual recovery.
		s.log.Error("Merge failed, chunk files kept in '%s': %v", tempDir, err)

		return fmt.Errorf("merge of %d chunks failed: %w", len(chunkPaths), err)
	}

	s.cleanupChunkDir(tempDir)

	return verifyOutput(conversion.outputPath)
}

// chunkBudget shrinks the configured chunk limit to leave room for the SSML
// envelope when the provider takes SSML payloads.
func (s *chunkedStrategy) chunkBudget(conversion *job) int {
	budget := s.maxBytes

	limit := conversion.resolution.Provider.MaxTextBytes()
	if limit > 0 && limit < budget {
		budget = limit
	}

	envelope := s.ssmlEnvelope(conversion)
	if envelope > 0 && envelope < budget {
		budget -= envelope
	}

	return budget
}

// ssmlEnvelope measures the wrapper BuildSSML adds around a chunk, or zero
// when the provider takes plain text or all deltas are zero.
func (s *chunkedStrategy) ssmlEnvelope(conversion *job) int {
	if !conversion.resolution.Provider.SupportsSSML() {
		return 0
	}

	return len(textproc.BuildSSML("", conversion.rate, conversion.pitch, conversion.volume))
}

// fitWrappedChunks re-splits any chunk whose SSML payload would exceed the
// provider limit. Escaping expands characters like '&' and '<', so a chunk
// that fits the raw byte budget can still wrap into an oversized payload.
func (s *chunkedStrategy) fitWrappedChunks(
	chunks []string,
	limit int,
	conversion *job,
) ([]string, error) {
	fitted := make([]string, 0, len(chunks))

	pending := chunks
	for len(pending) > 0 {
		chunk := pending[0]
		pending = pending[1:]

		wrapped := textproc.BuildSSML(chunk, conversion.rate, conversion.pitch, conversion.volume)
		if len(wrapped) <= limit {
			fitted = append(fitted, chunk)

			continue
		}

		budget := len(chunk) / 2
		if budget < textproc.MinChunkBytes {
			budget = textproc.MinChunkBytes
		}

		if budget >= len(chunk) {
			return nil, fmt.Errorf(
				"%w: escaped payload exceeds %d bytes", textproc.ErrChunkBudgetTooSmall, limit)
		}

		resplit, err := textproc.ChunkText(chunk, budget)
		if err != nil {
			return nil, fmt.Errorf("re-splitting oversized chunk failed: %w", err)
		}

		pending = append(resplit, pending...)
	}

	return fitted, nil
}

func (s *chunkedStrategy) convertChunks(
	ctx context.Context,
	conversion *job,
	chunks []string,
	tempDir string,
) ([]string, error) {
	extension := filepath.Ext(conversion.outputPath)
	if extension == "" {
		extension = defaultChunkExt
	}

	chunkPaths := make([]string, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	if s.workers > 0 {
		group.SetLimit(s.workers)
	}

	// The stop flag is polled between dispatches only: chunks already handed
	// to the group always run to completion before this function returns.
	halted := false

	for index, chunkText := range chunks {
		if s.halted != nil && s.halted() {
			halted = true

			break
		}

		path := filepath.Join(tempDir, fmt.Sprintf(chunkFilePattern, index, extension))
		chunkPaths[index] = path

		group.Go(func() error {
			convertErr := s.convertChunkWithRetry(groupCtx, conversion, chunkText, path)
			if convertErr != nil {
				return fmt.Errorf("chunk %d: %w", index, convertErr)
			}

			return nil
		})
	}

	waitErr := group.Wait()

	if halted {
		return nil, ErrConversionHalted
	}

	if waitErr != nil {
		return nil, waitErr
	}

	return chunkPaths, nil
}

// convertChunkWithRetry retries transient failures with exponential backoff.
// Validation failures are permanent and abort immediately.
func (s *chunkedStrategy) convertChunkWithRetry(
	ctx context.Context,
	conversion *job,
	chunkText, path string,
) error {
	chunkProcessed := &core.ProcessedText{
		Original:      chunkText,
		Cleaned:       chunkText,
		Enhanced:      chunkText,
		SSMLSupported: conversion.processed.SSMLSupported,
	}

	payload, _ := textproc.BuildPayload(
		chunkProcessed,
		conversion.resolution.Provider,
		conversion.rate, conversion.pitch, conversion.volume,
	)

	operation := func() (bool, error) {
		success, err := s.converter.Convert(
			ctx,
			conversion.resolution.Provider.Name(),
			payload,
			conversion.resolution.VoiceID,
			path,
			conversion.rate, conversion.pitch, conversion.volume,
		)
		if err != nil {
			if isValidationError(err) {
				return false, backoff.Permanent(err)
			}

			return false, err
		}

		if !success {
			return false, backoff.Permanent(ErrConversionRejected)
		}

		return true, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retry.Initial
	policy.Multiplier = s.retry.Multiplier
	policy.MaxInterval = s.retry.MaxInterval

	_, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.retry.Attempts)),
	)
	if err != nil {
		return fmt.Errorf("exhausted %d attempts: %w", s.retry.Attempts, err)
	}

	return nil
}

func (s *chunkedStrategy) cleanupChunkDir(tempDir string) {
	err := os.RemoveAll(tempDir)
	if err != nil {
		s.log.Warn("Failed to remove chunk directory '%s': %v", tempDir, err)

		return
	}

	s.resources.Unregister(tempDir)
}

// chunkingNeeded applies the strategy selection rule: direct unless the
// provider both supports chunking and reports a byte limit the payload
// exceeds.
func chunkingNeeded(provider core.Provider, payloadBytes int) bool {
	if !provider.SupportsChunking() {
		return false
	}

	limit := provider.MaxTextBytes()
	if limit <= 0 {
		return false
	}

	return payloadBytes > limit
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrTextEmpty) ||
		errors.Is(err, core.ErrOutputPathEmpty) ||
		errors.Is(err, core.ErrProsodyOutOfRange) ||
		errors.Is(err, core.ErrUnknownProvider)
}

func verifyOutput(outputPath string) error {
	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("output verification failed for '%s': %w", outputPath, err)
	}

	if info.Size() == 0 {
		return fmt.Errorf("%w: '%s'", core.ErrEmptyOutput, outputPath)
	}

	return nil
}
