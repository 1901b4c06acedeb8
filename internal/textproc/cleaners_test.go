package textproc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/tts-engine/internal/textproc"
)

func TestNormalizeCleanerAbbreviations(t *testing.T) {
	t.Parallel()

	cleaner := textproc.NewNormalizeCleaner()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"title expansion", "Mr. Smith met Dr. Jones", "Mister Smith met Doctor Jones"},
		{"company expansion", "Acme Inc. and Widgets Ltd.", "Acme Incorporated and Widgets Limited"},
		{"no abbreviations", "plain text stays put", "plain text stays put"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, cleaner.Clean(testCase.input))
		})
	}
}

func TestNormalizeCleanerNumbers(t *testing.T) {
	t.Parallel()

	cleaner := textproc.NewNormalizeCleaner()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"small number", "chapter 7", "chapter seven"},
		{"teens", "page 14", "page fourteen"},
		{"hundreds", "room 101", "room one hundred one"},
		{"thousands", "year 1999", "year one thousand nine hundred ninety nine"},
		{"zero", "0 items", "zero items"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, cleaner.Clean(testCase.input))
		})
	}
}

func TestFormattingCleanerArtifacts(t *testing.T) {
	t.Parallel()

	cleaner := textproc.NewFormattingCleaner()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"reference markers removed", "The result [1] was clear.", "The result was clear."},
		{"whitespace collapsed", "too    many\n\nspaces\there", "too many spaces here."},
		{"smart quotes normalized", "“quoted” text", `"quoted" text.`},
		{"em dash normalized", "a—b", "a-b."},
		{"repeated punctuation collapsed", "wait!!! what", "wait! what."},
		{"sentence ending added", "no terminal punctuation", "no terminal punctuation."},
		{"existing ending kept", "already done.", "already done."},
		{"empty input", "", ""},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, cleaner.Clean(testCase.input))
		})
	}
}

func TestFormattingCleanerPreservesURLs(t *testing.T) {
	t.Parallel()

	cleaner := textproc.NewFormattingCleaner()

	result := cleaner.Clean("read   https://example.com/page?a=1 for details")
	assert.Contains(t, result, "https://example.com/page?a=1")
}
