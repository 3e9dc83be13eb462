package pipeline

import (
	"context"
	"fmt"
	"time"
)

type DownloadHistory interface {
	HasDownloadSince(ctx context.Context, link string, telegramID int64, since time.Time) (bool, error)
}

// Suppressor detects links delivered to the same user within a trailing
// window. Check-then-record is not atomic: two identical submissions racing
// each other may both pass.
type Suppressor struct {
	history DownloadHistory
	window  time.Duration
	now     func() time.Time
}

func NewSuppressor(history DownloadHistory, window time.Duration) *Suppressor {
	return &Suppressor{
		history: history,
		window:  window,
		now:     time.Now,
	}
}

func (s *Suppressor) ShouldSuppress(ctx context.Context, link string, telegramID int64) (bool, error) {
	found, err := s.history.HasDownloadSince(ctx, link, telegramID, s.now().Add(-s.window))
	if err != nil {
		return false, fmt.Errorf("checking history: %w", err)
	}
	return found, nil
}
