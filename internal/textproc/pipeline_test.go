package textproc_test

import (
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-engine/internal/textproc"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "textproc-test.log")
	require.NoError(t, err)

	return log
}

func TestPipelineProcess(t *testing.T) {
	t.Parallel()

	pipeline := textproc.NewPipeline(newTestLogger(t))

	processed := pipeline.Process("Dr. Smith wrote   chapter 3")
	require.NotNil(t, processed)

	assert.Equal(t, "Dr. Smith wrote   chapter 3", processed.Original)
	assert.Equal(t, "Doctor Smith wrote chapter three.", processed.Cleaned)
	assert.Equal(t, processed.Cleaned, processed.Enhanced)
	assert.True(t, processed.SSMLSupported)
}

func TestPipelineProcessBlankInputIsHardStop(t *testing.T) {
	t.Parallel()

	pipeline := textproc.NewPipeline(newTestLogger(t))

	assert.Nil(t, pipeline.Process(""))
	assert.Nil(t, pipeline.Process("   \n\t  "))
}

func TestPipelineCustomCleanerSequence(t *testing.T) {
	t.Parallel()

	pipeline := textproc.NewPipelineWithCleaners(newTestLogger(t), textproc.NewFormattingCleaner())

	processed := pipeline.Process("keep 42 as digits")
	require.NotNil(t, processed)
	assert.Equal(t, "keep 42 as digits.", processed.Cleaned)
}
