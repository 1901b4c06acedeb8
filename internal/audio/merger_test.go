package audio_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-engine/internal/audio"
	"github.com/book-expert/tts-engine/internal/core"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "audio-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

// buildWAV assembles a minimal PCM WAVE file with the given sample rate and
// raw sample bytes.
func buildWAV(sampleRate uint32, samples []byte) []byte {
	format := make([]byte, 16)
	binary.LittleEndian.PutUint16(format[0:2], 1)  // PCM
	binary.LittleEndian.PutUint16(format[2:4], 1)  // mono
	binary.LittleEndian.PutUint32(format[4:8], sampleRate)
	binary.LittleEndian.PutUint32(format[8:12], sampleRate*2)
	binary.LittleEndian.PutUint16(format[12:14], 2)
	binary.LittleEndian.PutUint16(format[14:16], 16)

	riffLen := 4 + 8 + len(format) + 8 + len(samples)

	out := make([]byte, 0, 12+riffLen)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(riffLen))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(format)))
	out = append(out, format...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(samples)))
	out = append(out, samples...)

	return out
}

func writeChunk(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestMergeNoChunks(t *testing.T) {
	t.Parallel()

	merger := audio.NewMerger(newTestLogger(t))

	_, err := merger.Merge(context.Background(), nil, "out.wav")
	require.ErrorIs(t, err, audio.ErrNoChunks)
}

func TestMergeWAVInProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeChunk(t, dir, "chunk_0000.wav", buildWAV(22050, []byte{1, 2, 3, 4}))
	second := writeChunk(t, dir, "chunk_0001.wav", buildWAV(22050, []byte{5, 6, 7, 8}))
	outputPath := filepath.Join(dir, "merged.wav")

	merger := audio.NewMerger(newTestLogger(t))

	result, err := merger.Merge(context.Background(), []string{first, second}, outputPath)
	require.NoError(t, err)
	assert.Equal(t, audio.TierInProcess, result.Tier)
	assert.False(t, result.Degraded)

	merged, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, buildWAV(22050, []byte{1, 2, 3, 4, 5, 6, 7, 8}), merged)
}

func TestMergePreservesChunkOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Paths are supplied in index order even though the files were written
	// in a different order.
	third := writeChunk(t, dir, "chunk_0002.wav", buildWAV(22050, []byte{9, 9}))
	first := writeChunk(t, dir, "chunk_0000.wav", buildWAV(22050, []byte{1, 1}))
	second := writeChunk(t, dir, "chunk_0001.wav", buildWAV(22050, []byte{5, 5}))
	outputPath := filepath.Join(dir, "merged.wav")

	merger := audio.NewMerger(newTestLogger(t))

	_, err := merger.Merge(context.Background(), []string{first, second, third}, outputPath)
	require.NoError(t, err)

	merged, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, buildWAV(22050, []byte{1, 1, 5, 5, 9, 9}), merged)
}

func TestMergeDegradedFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Mismatched sample formats defeat the in-process tier, and a
	// nonexistent tool defeats the external tier.
	first := writeChunk(t, dir, "chunk_0000.wav", buildWAV(22050, []byte{1, 2}))
	second := writeChunk(t, dir, "chunk_0001.wav", buildWAV(44100, []byte{3, 4}))
	outputPath := filepath.Join(dir, "merged.wav")

	merger := audio.NewMergerWithTool(newTestLogger(t), filepath.Join(dir, "no-such-tool"))

	result, err := merger.Merge(context.Background(), []string{first, second}, outputPath)
	require.NoError(t, err)
	assert.Equal(t, audio.TierDegraded, result.Tier)
	assert.True(t, result.Degraded)

	merged, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, buildWAV(22050, []byte{1, 2}), merged)
}

func TestMergeAllTiersFail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "chunk_0000.wav")
	outputPath := filepath.Join(dir, "merged.wav")

	merger := audio.NewMergerWithTool(newTestLogger(t), filepath.Join(dir, "no-such-tool"))

	_, err := merger.Merge(context.Background(), []string{missing}, outputPath)
	require.ErrorIs(t, err, core.ErrMergeFailed)
}

func TestMergeRejectsCorruptChunk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeChunk(t, dir, "chunk_0000.wav", buildWAV(22050, []byte{1, 2}))
	second := writeChunk(t, dir, "chunk_0001.wav", []byte("not a wave file"))
	outputPath := filepath.Join(dir, "merged.wav")

	merger := audio.NewMergerWithTool(newTestLogger(t), filepath.Join(dir, "no-such-tool"))

	// The corrupt chunk defeats the first two tiers; the degraded tier
	// still salvages the valid first chunk.
	result, err := merger.Merge(context.Background(), []string{first, second}, outputPath)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
}
