package edge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-engine/internal/core"
	"github.com/book-expert/tts-engine/internal/provider/edge"
)

const voiceListResponse = `[
  {"Name":"Microsoft Server Speech Text to Speech Voice (en-US, AndrewNeural)",
   "ShortName":"en-US-AndrewNeural","Gender":"Male","Locale":"en-US","VoiceType":"Neural"},
  {"Name":"Microsoft Server Speech Text to Speech Voice (en-GB, SoniaNeural)",
   "ShortName":"en-GB-SoniaNeural","Gender":"Female","Locale":"en-GB","VoiceType":"Neural"},
  {"Name":"Microsoft Server Speech Text to Speech Voice (de-DE, KatjaNeural)",
   "ShortName":"de-DE-KatjaNeural","Gender":"Female","Locale":"de-DE","VoiceType":"Neural"}
]`

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "edge-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

func newCatalogServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(voiceListResponse))
	}))

	t.Cleanup(server.Close)

	return server
}

func TestAvailableAfterCatalogProbe(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCatalogServer(t, &hits)

	synth := edge.NewWithCatalogURL(context.Background(), newTestLogger(t), server.URL)

	assert.True(t, synth.Available())
	assert.EqualValues(t, 1, hits.Load())
}

func TestUnavailableWhenProbeFails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	synth := edge.NewWithCatalogURL(context.Background(), newTestLogger(t), server.URL)

	assert.False(t, synth.Available())
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCatalogServer(t, &hits)
	synth := edge.NewWithCatalogURL(context.Background(), newTestLogger(t), server.URL)

	assert.Equal(t, "edge", synth.Name())
	assert.Equal(t, core.ProviderTypeCloud, synth.Type())
	assert.True(t, synth.SupportsRate())
	assert.True(t, synth.SupportsPitch())
	assert.True(t, synth.SupportsVolume())
	assert.True(t, synth.SupportsSSML())
	assert.True(t, synth.SupportsChunking())
	assert.Equal(t, 3000, synth.MaxTextBytes())
}

func TestVoicesServedFromCache(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCatalogServer(t, &hits)
	synth := edge.NewWithCatalogURL(context.Background(), newTestLogger(t), server.URL)

	voices, err := synth.Voices(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, voices, 3)
	assert.Equal(t, "en-US-AndrewNeural", voices[0].ID)
	assert.Equal(t, "edge", voices[0].Provider)
	assert.Equal(t, "Neural", voices[0].Quality)

	// The probe fetched once; the listing above must hit the cache.
	assert.EqualValues(t, 1, hits.Load())

	require.NoError(t, synth.RefreshVoices(context.Background()))
	assert.EqualValues(t, 2, hits.Load())
}

func TestVoicesFiltersByLocale(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCatalogServer(t, &hits)
	synth := edge.NewWithCatalogURL(context.Background(), newTestLogger(t), server.URL)

	voices, err := synth.Voices(context.Background(), "en")
	require.NoError(t, err)
	require.Len(t, voices, 2)

	voices, err = synth.Voices(context.Background(), "de-DE")
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "de-DE-KatjaNeural", voices[0].ID)
}

func TestConvertRejectsInvalidInputWithoutError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCatalogServer(t, &hits)
	synth := edge.NewWithCatalogURL(context.Background(), newTestLogger(t), server.URL)
	outputPath := filepath.Join(t.TempDir(), "out.mp3")

	tests := []struct {
		name                string
		text, voice, output string
		rate                float64
	}{
		{"blank text", "  ", "en-US-AndrewNeural", outputPath, 0},
		{"empty voice", "hello", "", outputPath, 0},
		{"empty output path", "hello", "en-US-AndrewNeural", "", 0},
		{"rate out of range", "hello", "en-US-AndrewNeural", outputPath, 200},
		{"payload over limit", strings.Repeat("a", 3001), "en-US-AndrewNeural", outputPath, 0},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			success, err := synth.Convert(
				context.Background(),
				testCase.text, testCase.voice, testCase.output,
				testCase.rate, 0, 0,
			)
			require.NoError(t, err)
			assert.False(t, success)
		})
	}
}
