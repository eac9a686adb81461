package upload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilenameRejectsUnsupportedExtension(t *testing.T) {
	_, err := SanitizeFilename("payload.exe")
	require.Error(t, err)
	var extErr ErrUnsupportedExtension
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, ".exe", extErr.Ext)
}

func TestSanitizeFilenameStripsUnsafeCharactersAndPrefixesRandomly(t *testing.T) {
	name, err := SanitizeFilename("My Video (final) v2.mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".mp4"))
	assert.NotContains(t, name, " ")
	assert.NotContains(t, name, "(")

	other, err := SanitizeFilename("My Video (final) v2.mp4")
	require.NoError(t, err)
	assert.NotEqual(t, name, other, "two uploads of the same original name must not collide")
}

func TestSanitizeFilenameFallsBackWhenNameIsAllUnsafeCharacters(t *testing.T) {
	name, err := SanitizeFilename("???.wav")
	require.NoError(t, err)
	assert.Contains(t, name, "upload")
}

func TestSaveEnforcesSizeCapMidStream(t *testing.T) {
	dir := t.TempDir()
	src := bytes.NewReader(make([]byte, 10*readChunkBytes))

	_, err := Save(src, dir, "clip.mp4", 3*readChunkBytes)
	require.Error(t, err)
	var tooLarge ErrTooLarge
	require.ErrorAs(t, err, &tooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial upload must be cleaned up after exceeding the cap")
}

func TestSaveWritesFileWithinLimit(t *testing.T) {
	dir := t.TempDir()
	content := []byte("small clip contents")
	src := bytes.NewReader(content)

	path, err := Save(src, dir, "clip.mp4", int64(len(content)+1))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSaveRefusesPathEscapingUploadDir(t *testing.T) {
	dir := t.TempDir()
	src := bytes.NewReader([]byte("x"))

	_, err := Save(src, dir, filepath.Join("..", "escaped.mp4"), 1024)
	require.Error(t, err)
}
