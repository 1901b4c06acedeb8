package engine

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-engine/internal/audio"
	"github.com/book-expert/tts-engine/internal/config"
	"github.com/book-expert/tts-engine/internal/core"
	"github.com/book-expert/tts-engine/internal/resource"
	"github.com/book-expert/tts-engine/internal/textproc"
)

// VoiceResolver is the voice-resolution surface the coordinator depends on.
type VoiceResolver interface {
	Resolve(ctx context.Context, name, preferredProvider string) (*core.VoiceResolution, error)
}

// Engine is the conversion coordinator. Convert never returns an error: every
// outcome, including panics in collaborators, is folded into a
// ConversionResult.
type Engine struct {
	cfg       config.EngineConfig
	pipeline  *textproc.Pipeline
	resolver  VoiceResolver
	converter Converter
	direct    *directStrategy
	chunked   *chunkedStrategy
	log       *logger.Logger
	stopped   atomic.Bool
}

// New wires a coordinator from its collaborators. cfg must already have its
// defaults applied.
func New(
	cfg config.EngineConfig,
	pipeline *textproc.Pipeline,
	resolver VoiceResolver,
	converter Converter,
	merger *audio.Merger,
	resources *resource.Manager,
	log *logger.Logger,
) *Engine {
	eng := &Engine{
		cfg:       cfg,
		pipeline:  pipeline,
		resolver:  resolver,
		converter: converter,
		direct:    nil,
		chunked:   nil,
		log:       log,
		stopped:   atomic.Bool{},
	}

	eng.direct = &directStrategy{converter: converter, log: log}
	eng.chunked = &chunkedStrategy{
		converter: converter,
		merger:    merger,
		resources: resources,
		retry: RetryPolicy{
			Attempts:    cfg.ChunkRetryAttempts,
			Initial:     time.Duration(cfg.ChunkRetryInitialSeconds) * time.Second,
			Multiplier:  cfg.ChunkRetryMultiplier,
			MaxInterval: time.Duration(cfg.ChunkRetryMaxSeconds) * time.Second,
		},
		maxBytes: cfg.ChunkMaxBytes,
		workers:  cfg.ChunkWorkers,
		direct:   eng.direct,
		halted:   eng.stopped.Load,
		log:      log,
	}

	return eng
}

// Stop makes all subsequent conversions fail fast and halts chunk dispatching
// in conversions already in flight.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.log.System("Conversion engine stopped")
}

// Convert runs one conversion request end to end. The returned result is
// never nil; Success true guarantees a non-empty file at OutputPath.
func (e *Engine) Convert(ctx context.Context, req *core.ConversionRequest) (result *core.ConversionResult) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			e.log.Error("Panic during conversion: %v", recovered)

			result = failureResult("", fmt.Sprintf("panic during conversion: %v", recovered))
		}
	}()

	if e.stopped.Load() {
		return failureResult("", "engine is stopped")
	}

	if req == nil {
		return failureResult("", core.ErrInvalidRequest.Error())
	}

	rate, pitch, volume := e.effectiveProsody(req)

	err := validateRequest(req, rate, pitch, volume)
	if err != nil {
		return failureResult(req.OutputPath, err.Error())
	}

	processed := e.pipeline.Process(req.Text)
	if processed == nil {
		return failureResult(req.OutputPath, core.ErrTextEmpty.Error())
	}

	preferred := req.Provider
	if preferred == "" {
		preferred = e.cfg.Provider
	}

	resolution, err := e.resolver.Resolve(ctx, req.Voice, preferred)
	if err != nil {
		return failureResult(req.OutputPath, err.Error())
	}

	return e.runStrategy(ctx, &job{
		processed:  processed,
		resolution: resolution,
		outputPath: req.OutputPath,
		rate:       rate,
		pitch:      pitch,
		volume:     volume,
	})
}

func (e *Engine) runStrategy(ctx context.Context, conversion *job) *core.ConversionResult {
	payload, _ := textproc.BuildPayload(
		conversion.processed,
		conversion.resolution.Provider,
		conversion.rate, conversion.pitch, conversion.volume,
	)

	selected := strategy(e.direct)
	if chunkingNeeded(conversion.resolution.Provider, len(payload)) {
		selected = e.chunked
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	err := selected.Run(runCtx, conversion)
	if err != nil {
		e.removeEmptyArtifact(conversion.outputPath)

		return failureResult(conversion.outputPath, err.Error())
	}

	info, err := os.Stat(conversion.outputPath)
	if err != nil || info.Size() == 0 {
		e.removeEmptyArtifact(conversion.outputPath)

		return failureResult(conversion.outputPath, core.ErrEmptyOutput.Error())
	}

	e.log.Info("Conversion succeeded: %s (%d bytes, %s strategy, voice %s)",
		conversion.outputPath, info.Size(), selected.Name(), conversion.resolution.VoiceID)

	return &core.ConversionResult{
		Success:      true,
		OutputPath:   conversion.outputPath,
		ErrorMessage: "",
		Metadata: map[string]any{
			"voice":     conversion.resolution.VoiceID,
			"provider":  conversion.resolution.Provider.Name(),
			"strategy":  selected.Name(),
			"file_size": info.Size(),
		},
	}
}

// effectiveProsody fills zero-valued request deltas from configured defaults.
func (e *Engine) effectiveProsody(req *core.ConversionRequest) (rate, pitch, volume float64) {
	rate, pitch, volume = req.Rate, req.Pitch, req.Volume

	if rate == 0 {
		rate = e.cfg.Rate
	}

	if pitch == 0 {
		pitch = e.cfg.Pitch
	}

	if volume == 0 {
		volume = e.cfg.Volume
	}

	return rate, pitch, volume
}

// removeEmptyArtifact deletes a zero-byte output file so failures never leave
// a truncated artifact behind.
func (e *Engine) removeEmptyArtifact(outputPath string) {
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() != 0 {
		return
	}

	removeErr := os.Remove(outputPath)
	if removeErr != nil {
		e.log.Warn("Failed to remove empty artifact '%s': %v", outputPath, removeErr)
	}
}

func validateRequest(req *core.ConversionRequest, rate, pitch, volume float64) error {
	if req.OutputPath == "" {
		return core.ErrOutputPathEmpty
	}

	for _, delta := range []float64{rate, pitch, volume} {
		if delta < core.MinProsodyDelta || delta > core.MaxProsodyDelta {
			return fmt.Errorf("%w: %.1f", core.ErrProsodyOutOfRange, delta)
		}
	}

	return nil
}

func failureResult(outputPath, message string) *core.ConversionResult {
	return &core.ConversionResult{
		Success:      false,
		OutputPath:   outputPath,
		ErrorMessage: message,
		Metadata:     map[string]any{},
	}
}
