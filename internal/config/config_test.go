// Package config_test tests the configuration loading for the TTS engine.
package config_test

import (
	"testing"

	"github.com/book-expert/tts-engine/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[nats]
url = "nats://127.0.0.1:4222"
tts_stream_name = "TTS_JOBS"
tts_consumer_name = "tts-workers"
text_processed_subject = "text.processed"
audio_chunk_created_subject = "audio.chunk.created"
audio_object_store_bucket = "AUDIO_FILES"

[tts_engine]
voice = "en-US-AriaNeural"
rate = 10.0
chunk_max_bytes = 2000
breaker_threshold = 7
health_threshold = 4
timeout_seconds = 120
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "TTS_JOBS", cfg.NATS.TTStreamName)
	assert.Equal(t, "text.processed", cfg.NATS.TextProcessedSubject)
	assert.Equal(t, "audio.chunk.created", cfg.NATS.AudioChunkCreatedSubject)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "en-US-AriaNeural", cfg.Engine.Voice)
	assert.InEpsilon(t, 10.0, cfg.Engine.Rate, 0.001)
	assert.Equal(t, 2000, cfg.Engine.ChunkMaxBytes)
	assert.Equal(t, uint32(7), cfg.Engine.BreakerThreshold)
	assert.Equal(t, 4, cfg.Engine.HealthThreshold)
	assert.Equal(t, 120, cfg.Engine.TimeoutSeconds)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var engine config.EngineConfig

	engine.ApplyDefaults()

	assert.Equal(t, config.DefaultVoice, engine.Voice)
	assert.Equal(t, config.DefaultChunkMaxBytes, engine.ChunkMaxBytes)
	assert.Equal(t, config.DefaultChunkWorkers, engine.ChunkWorkers)
	assert.Equal(t, uint32(config.DefaultBreakerThreshold), engine.BreakerThreshold)
	assert.Equal(t, config.DefaultBreakerCooldownSec, engine.BreakerCooldownSeconds)
	assert.Equal(t, config.DefaultHealthThreshold, engine.HealthThreshold)
	assert.Equal(t, config.DefaultHealthCooldownSec, engine.HealthCooldownSeconds)
	assert.Equal(t, config.DefaultChunkRetryAttempts, engine.ChunkRetryAttempts)
	assert.InEpsilon(t, config.DefaultChunkRetryMultiplier, engine.ChunkRetryMultiplier, 0.001)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	engine := config.EngineConfig{
		Voice:            "en-US-GuyNeural",
		ChunkMaxBytes:    512,
		BreakerThreshold: 2,
	}

	engine.ApplyDefaults()

	assert.Equal(t, "en-US-GuyNeural", engine.Voice)
	assert.Equal(t, 512, engine.ChunkMaxBytes)
	assert.Equal(t, uint32(2), engine.BreakerThreshold)
}
