package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
)

// RunCleaner periodically removes leftovers in the work dir, such as files
// from a previous process that was killed mid-delivery.
func (p *Pipeline) RunCleaner(ctx context.Context) {
	t := time.NewTicker(p.opts.CleanupInterval)
	defer t.Stop()

	logger := logging.Component("pipeline_cleaner")

	for {
		select {
		case <-t.C:
			removed, err := p.CleanWorkDir(p.now().Add(-p.opts.CleanupMaxAge))
			if err != nil {
				logger.Errorf("failed to clean work dir: %v", err)
				continue
			}
			if removed == 0 {
				logger.Debug("no stale files to clean")
				break
			}
			logger.Infof("removed %d stale entries from %s", removed, p.opts.WorkDir)

		case <-ctx.Done():
			return
		}
	}
}

// CleanWorkDir removes top-level work dir entries last modified before
// olderThan. Active deliveries are much younger than the cleanup age.
func (p *Pipeline) CleanWorkDir(olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(p.opts.WorkDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading work dir: %w", err)
	}

	removed := 0
	var finalErr error
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.opts.WorkDir, entry.Name())); err != nil {
			finalErr = errors.Join(finalErr, fmt.Errorf("removing %s: %w", entry.Name(), err))
			continue
		}
		removed++
	}
	return removed, finalErr
}
