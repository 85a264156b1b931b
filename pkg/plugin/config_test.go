package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	raw := `
agents:
  wordstats:
    version: ">= 1.0.0"
    config:
      top_words: 5
  legacy:
    enabled: false
    description: Old heuristics
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	ws := m.Lookup("wordstats")
	assert.True(t, ws.IsEnabled())
	assert.Equal(t, ">= 1.0.0", ws.Version)
	assert.Equal(t, 5, ws.Config["top_words"])

	legacy := m.Lookup("legacy")
	assert.False(t, legacy.IsEnabled())
	assert.Equal(t, "Old heuristics", legacy.Description)

	assert.True(t, m.Lookup("absent").IsEnabled())
}

func TestLoadManifestMissingFileIsEmpty(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, m.Agents)
}

func TestLoadManifestErrors(t *testing.T) {
	_, err := LoadManifest("")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents: [1, 2"), 0o644))
	_, err = LoadManifest(path)
	require.Error(t, err)
}

func TestZeroManifestLookup(t *testing.T) {
	var m Manifest
	assert.True(t, m.Lookup("any").IsEnabled())
}
