package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/config"
	"github.com/stretchr/testify/require"
)

func TestCleanWorkDir(t *testing.T) {
	dir := t.TempDir()
	p := New(Options{WorkDir: dir}, config.NewLimits(50), Deps{})

	old := time.Now().Add(-2 * time.Hour)
	staleDir := filepath.Join(dir, "dl-stale")
	require.NoError(t, os.MkdirAll(staleDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(staleDir, "x.mp4"), []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(staleDir, old, old))

	staleFile := filepath.Join(dir, "orphan.mp4")
	require.NoError(t, os.WriteFile(staleFile, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(staleFile, old, old))

	fresh := filepath.Join(dir, "dl-fresh")
	require.NoError(t, os.MkdirAll(fresh, 0o700))

	removed, err := p.CleanWorkDir(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "dl-fresh", entries[0].Name())
}

func TestCleanWorkDirMissing(t *testing.T) {
	p := New(Options{WorkDir: filepath.Join(t.TempDir(), "absent")}, config.NewLimits(50), Deps{})
	removed, err := p.CleanWorkDir(time.Now())
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestRunCleanerStops(t *testing.T) {
	dir := t.TempDir()
	p := New(Options{
		WorkDir:         dir,
		CleanupInterval: 5 * time.Millisecond,
		CleanupMaxAge:   time.Minute,
	}, config.NewLimits(50), Deps{})

	old := time.Now().Add(-time.Hour)
	stale := filepath.Join(dir, "dl-old")
	require.NoError(t, os.MkdirAll(stale, 0o700))
	require.NoError(t, os.Chtimes(stale, old, old))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.RunCleaner(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
