package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchMarksRegistryStale(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reg.Watch(ctx, dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_skip.so"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, reg.Stale(), "non-agent files must not mark the registry stale")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.so"), []byte("x"), 0o644))
	assert.Eventually(t, reg.Stale, 2*time.Second, 20*time.Millisecond)
}

func TestWatchMissingDirectory(t *testing.T) {
	reg := NewRegistry(WithLogger(quietLogger()))
	err := reg.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
