package textproc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/tts-engine/internal/textproc"
)

func TestBuildSSMLZeroDeltasReturnsPlainText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", textproc.BuildSSML("hello", 0, 0, 0))
}

func TestBuildSSMLProsodyAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     float64
		pitch    float64
		volume   float64
		expected string
	}{
		{
			name:     "rate only",
			rate:     25,
			expected: `<speak><prosody rate="+25%">hello</prosody></speak>`,
		},
		{
			name:     "negative pitch",
			pitch:    -10,
			expected: `<speak><prosody pitch="-10%">hello</prosody></speak>`,
		},
		{
			name:     "all three",
			rate:     50,
			pitch:    -10,
			volume:   20,
			expected: `<speak><prosody rate="+50%" pitch="-10%" volume="+20%">hello</prosody></speak>`,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := textproc.BuildSSML("hello", testCase.rate, testCase.pitch, testCase.volume)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestBuildSSMLEscapesMarkup(t *testing.T) {
	t.Parallel()

	result := textproc.BuildSSML("a < b & c", 10, 0, 0)
	assert.Contains(t, result, "a &lt; b &amp; c")
	assert.NotContains(t, result, "a < b")
}
