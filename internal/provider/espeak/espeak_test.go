package espeak_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-engine/internal/core"
	"github.com/book-expert/tts-engine/internal/provider/espeak"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "espeak-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

// fakeBinary writes a shell script that records its arguments, answers
// --voices with a canned table, and writes a non-empty file after -w.
func fakeBinary(t *testing.T) (binPath, argsPath string) {
	t.Helper()

	dir := t.TempDir()
	binPath = filepath.Join(dir, "espeak-ng")
	argsPath = filepath.Join(dir, "args.txt")

	script := `#!/bin/sh
if [ "$1" = "--voices" ]; then
  printf 'Pty Language       Age/Gender VoiceName          File                 Other Languages\n'
  printf ' 2  en-gb          --/M      english             gmw/en\n'
  printf ' 5  en-us          --/M      english-us          gmw/en-US\n'
  printf ' 5  de             --/F      german              gmw/de\n'
  exit 0
fi
printf '%s\n' "$@" > '` + argsPath + `'
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-w" ]; then out="$a"; fi
  prev="$a"
done
[ -n "$out" ] && printf 'RIFF' > "$out"
exit 0
`

	require.NoError(t, os.WriteFile(binPath, []byte(script), 0o700))

	return binPath, argsPath
}

func TestUnavailableWithoutBinary(t *testing.T) {
	t.Parallel()

	synth := espeak.NewWithBinary(newTestLogger(t), filepath.Join(t.TempDir(), "missing"))

	assert.False(t, synth.Available())

	_, err := synth.Voices(context.Background(), "")
	require.ErrorIs(t, err, espeak.ErrBinaryNotFound)

	_, err = synth.Convert(context.Background(), "hello", "en-us", "out.wav", 0, 0, 0)
	require.ErrorIs(t, err, espeak.ErrBinaryNotFound)
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	binPath, _ := fakeBinary(t)
	synth := espeak.NewWithBinary(newTestLogger(t), binPath)

	assert.Equal(t, "espeak", synth.Name())
	assert.Equal(t, core.ProviderTypeOffline, synth.Type())
	assert.True(t, synth.Available())
	assert.True(t, synth.SupportsRate())
	assert.True(t, synth.SupportsPitch())
	assert.True(t, synth.SupportsVolume())
	assert.False(t, synth.SupportsSSML())
	assert.False(t, synth.SupportsChunking())
	assert.Equal(t, 0, synth.MaxTextBytes())
}

func TestVoicesFiltersByLocale(t *testing.T) {
	t.Parallel()

	binPath, _ := fakeBinary(t)
	synth := espeak.NewWithBinary(newTestLogger(t), binPath)

	voices, err := synth.Voices(context.Background(), "en")
	require.NoError(t, err)
	require.Len(t, voices, 2)

	assert.Equal(t, "en-gb", voices[0].ID)
	assert.Equal(t, "english", voices[0].Name)
	assert.Equal(t, "Male", voices[0].Gender)
	assert.Equal(t, "espeak", voices[0].Provider)
}

func TestVoicesDefaultsToSingleLocale(t *testing.T) {
	t.Parallel()

	binPath, _ := fakeBinary(t)
	synth := espeak.NewWithBinary(newTestLogger(t), binPath)

	voices, err := synth.Voices(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, voices, 1)

	assert.Equal(t, "en-us", voices[0].ID)
	assert.Equal(t, "english-us", voices[0].Name)
}

func TestConvertMapsProsodyDeltas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                        string
		rate, pitch, volume         float64
		wantWPM, wantPitch, wantAmp string
	}{
		{"defaults", 0, 0, 0, "175", "50", "100"},
		{"faster and louder", 100, 0, 100, "350", "50", "200"},
		{"slower", -50, 0, 0, "88", "50", "50"},
		{"pitch clamped to native max", 0, 100, 0, "175", "99", "100"},
		{"all deltas halved", -50, -50, -50, "88", "25", "50"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			binPath, argsPath := fakeBinary(t)
			synth := espeak.NewWithBinary(newTestLogger(t), binPath)
			outputPath := filepath.Join(t.TempDir(), "out.wav")

			success, err := synth.Convert(
				context.Background(),
				"hello world", "en-us", outputPath,
				testCase.rate, testCase.pitch, testCase.volume,
			)
			require.NoError(t, err)
			require.True(t, success)

			recorded, err := os.ReadFile(argsPath)
			require.NoError(t, err)

			args := strings.Split(strings.TrimSpace(string(recorded)), "\n")
			require.Equal(t,
				[]string{
					"-v", "en-us",
					"-s", testCase.wantWPM,
					"-p", testCase.wantPitch,
					"-a", testCase.wantAmp,
					"-w", outputPath,
					"--", "hello world",
				},
				args,
			)
		})
	}
}

func TestConvertRejectsInvalidInputWithoutError(t *testing.T) {
	t.Parallel()

	binPath, argsPath := fakeBinary(t)
	synth := espeak.NewWithBinary(newTestLogger(t), binPath)
	outputPath := filepath.Join(t.TempDir(), "out.wav")

	tests := []struct {
		name                string
		text, voice         string
		rate, pitch, volume float64
	}{
		{"blank text", "   ", "en-us", 0, 0, 0},
		{"empty voice", "hello", "", 0, 0, 0},
		{"rate above range", "hello", "en-us", 150, 0, 0},
		{"pitch below range", "hello", "en-us", 0, -80, 0},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			success, err := synth.Convert(
				context.Background(),
				testCase.text, testCase.voice, outputPath,
				testCase.rate, testCase.pitch, testCase.volume,
			)
			require.NoError(t, err)
			assert.False(t, success)

			// The binary must never have run.
			_, statErr := os.Stat(argsPath)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}
