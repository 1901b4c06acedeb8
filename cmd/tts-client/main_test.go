package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInputTextFromFlag(t *testing.T) {
	t.Parallel()

	text, err := resolveInputText(&appFlags{text: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestResolveInputTextFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("file contents"), 0o600))

	text, err := resolveInputText(&appFlags{file: path})
	require.NoError(t, err)
	assert.Equal(t, "file contents", text)
}

func TestResolveInputTextRequiresOneSource(t *testing.T) {
	t.Parallel()

	_, err := resolveInputText(&appFlags{})
	require.ErrorIs(t, err, errNoInput)

	_, err = resolveInputText(&appFlags{text: "a", file: "b"})
	require.ErrorIs(t, err, errBothInput)
}

func TestResolveInputTextMissingFile(t *testing.T) {
	t.Parallel()

	_, err := resolveInputText(&appFlags{file: filepath.Join(t.TempDir(), "absent.txt")})
	require.Error(t, err)
}
