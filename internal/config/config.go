// Package config provides the configuration structure for the TTS engine.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied to zero-valued fields after load.
const (
	DefaultVoice                = "en-US-AndrewNeural"
	DefaultChunkMaxBytes        = 3000
	DefaultChunkWorkers         = 4
	DefaultBreakerThreshold     = 5
	DefaultBreakerCooldownSec   = 60
	DefaultHealthThreshold      = 3
	DefaultHealthCooldownSec    = 300
	DefaultChunkRetryAttempts   = 5
	DefaultChunkRetryInitialSec = 5
	DefaultChunkRetryMultiplier = 1.5
	DefaultChunkRetryMaxSec     = 60
	DefaultConvertTimeoutSec    = 300
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	TTStreamName             string `toml:"tts_stream_name"`
	TTSConsumerName          string `toml:"tts_consumer_name"`
	TextProcessedSubject     string `toml:"text_processed_subject"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// EngineConfig holds the conversion engine tunables. Every value has a working
// default; the engine only reads them.
type EngineConfig struct {
	Voice          string  `toml:"voice"`
	Rate           float64 `toml:"rate"`
	Pitch          float64 `toml:"pitch"`
	Volume         float64 `toml:"volume"`
	Provider       string  `toml:"provider"`
	ChunkMaxBytes  int     `toml:"chunk_max_bytes"`
	ChunkWorkers   int     `toml:"chunk_workers"`
	TimeoutSeconds int     `toml:"timeout_seconds"`

	BreakerThreshold       uint32 `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`

	HealthThreshold       int `toml:"health_threshold"`
	HealthCooldownSeconds int `toml:"health_cooldown_seconds"`

	ChunkRetryAttempts       int     `toml:"chunk_retry_attempts"`
	ChunkRetryInitialSeconds int     `toml:"chunk_retry_initial_seconds"`
	ChunkRetryMultiplier     float64 `toml:"chunk_retry_multiplier"`
	ChunkRetryMaxSeconds     int     `toml:"chunk_retry_max_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS   NATSConfig   `toml:"nats"`
	Engine EngineConfig `toml:"tts_engine"`
	Paths  PathsConfig  `toml:"paths"`
}

// Load loads the configuration through the central configurator and applies
// defaults for any engine tunables the document leaves unset.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.Engine.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills zero-valued engine fields with the documented defaults.
func (e *EngineConfig) ApplyDefaults() {
	if e.Voice == "" {
		e.Voice = DefaultVoice
	}

	if e.ChunkMaxBytes <= 0 {
		e.ChunkMaxBytes = DefaultChunkMaxBytes
	}

	if e.ChunkWorkers <= 0 {
		e.ChunkWorkers = DefaultChunkWorkers
	}

	if e.TimeoutSeconds <= 0 {
		e.TimeoutSeconds = DefaultConvertTimeoutSec
	}

	if e.BreakerThreshold == 0 {
		e.BreakerThreshold = DefaultBreakerThreshold
	}

	if e.BreakerCooldownSeconds <= 0 {
		e.BreakerCooldownSeconds = DefaultBreakerCooldownSec
	}

	if e.HealthThreshold <= 0 {
		e.HealthThreshold = DefaultHealthThreshold
	}

	if e.HealthCooldownSeconds <= 0 {
		e.HealthCooldownSeconds = DefaultHealthCooldownSec
	}

	if e.ChunkRetryAttempts <= 0 {
		e.ChunkRetryAttempts = DefaultChunkRetryAttempts
	}

	if e.ChunkRetryInitialSeconds <= 0 {
		e.ChunkRetryInitialSeconds = DefaultChunkRetryInitialSec
	}

	if e.ChunkRetryMultiplier <= 1.0 {
		e.ChunkRetryMultiplier = DefaultChunkRetryMultiplier
	}

	if e.ChunkRetryMaxSeconds <= 0 {
		e.ChunkRetryMaxSeconds = DefaultChunkRetryMaxSec
	}
}
