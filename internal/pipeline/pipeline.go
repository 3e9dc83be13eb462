package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
	"github.com/C4T-BuT-S4D/reelbridge/internal/config"
	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"github.com/C4T-BuT-S4D/reelbridge/internal/media"
	"github.com/C4T-BuT-S4D/reelbridge/internal/models"
	"github.com/C4T-BuT-S4D/reelbridge/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const reportTimeout = 30 * time.Second

type Store interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	AddDownload(ctx context.Context, d *models.Download) error
}

type Fetcher interface {
	Fetch(ctx context.Context, ref media.Ref, dir string) (string, error)
}

type Transcoder interface {
	Compress(ctx context.Context, src string, maxBytes int64) (string, error)
}

// Messenger delivers results to the chat surface.
type Messenger interface {
	SendVideo(ctx context.Context, req Request, path string) error
	Report(ctx context.Context, req Request, text string) error
}

type Options struct {
	WorkDir          string
	FetchTimeout     time.Duration
	TranscodeTimeout time.Duration
	DeliveryTimeout  time.Duration
	MaxConcurrent    int64

	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration
}

type Deps struct {
	Store      Store
	Fetcher    Fetcher
	Transcoder Transcoder
	Messenger  Messenger
}

type Pipeline struct {
	opts   Options
	limits *config.Limits
	deps   Deps

	sem *semaphore.Weighted
	wg  sync.WaitGroup
	now func() time.Time
	log *logrus.Entry
}

func New(opts Options, limits *config.Limits, deps Deps) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Pipeline{
		opts:   opts,
		limits: limits,
		deps:   deps,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		now:    time.Now,
		log:    logging.Component("pipeline"),
	}
}

// Go runs Deliver in the background, bounded by MaxConcurrent. Each run is
// limited by DeliveryTimeout once it gets a slot.
func (p *Pipeline) Go(ctx context.Context, req Request) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.log.Warnf("dropping %v: %v", req, err)
			return
		}
		defer p.sem.Release(1)

		ctx, cancel := withTimeout(ctx, p.opts.DeliveryTimeout)
		defer cancel()

		if _, err := p.Deliver(ctx, req); err != nil {
			p.log.Warnf("delivery of %v failed: %v", req, err)
		}
	}()
}

// Wait blocks until all deliveries started with Go finish.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Deliver resolves, fetches, size-gates and sends the media behind
// req.Link, then records the download. On failure the user gets exactly one
// error message and nothing is recorded. Temporary files never outlive the
// call.
func (p *Pipeline) Deliver(ctx context.Context, req Request) (*models.Download, error) {
	log := p.log.WithFields(logrus.Fields{
		"telegram_id": req.TelegramID,
		"origin":      req.Origin,
		"link":        req.Link,
	})

	record, sent, err := p.deliver(ctx, req, log)
	if err != nil {
		if !sent {
			// The delivery context may be the one that just expired.
			reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
			defer cancel()
			if reportErr := p.deps.Messenger.Report(reportCtx, req, apperr.UserMessage(err)); reportErr != nil {
				log.Errorf("failed to report error to user: %v", reportErr)
			}
		}
		return nil, err
	}

	log.Infof("delivered %d bytes", record.FileSize)
	return record, nil
}

func (p *Pipeline) deliver(ctx context.Context, req Request, log *logrus.Entry) (*models.Download, bool, error) {
	if err := p.authorize(ctx, req.TelegramID); err != nil {
		return nil, false, err
	}

	ref, err := media.Resolve(req.Link)
	if err != nil {
		return nil, false, err
	}

	dir := filepath.Join(p.opts.WorkDir, "dl-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, false, fmt.Errorf("creating work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Errorf("failed to remove work dir %s: %v", dir, err)
		}
	}()

	path, size, err := p.fetch(ctx, ref, dir)
	if err != nil {
		return nil, false, err
	}
	log.Debugf("fetched %v: %d bytes", ref, size)

	if maxSize := p.limits.MaxFileSize(); size > maxSize {
		log.Infof("%d bytes exceeds ceiling %d, compressing", size, maxSize)
		path, size, err = p.compress(ctx, path, maxSize)
		if err != nil {
			return nil, false, err
		}
	}

	if err := p.deps.Messenger.SendVideo(ctx, req, path); err != nil {
		return nil, false, fmt.Errorf("sending video: %w", err)
	}

	record := &models.Download{
		Link:         req.Link,
		TelegramID:   req.TelegramID,
		DownloadedAt: p.now(),
		FileSize:     size,
	}
	if err := p.deps.Store.AddDownload(ctx, record); err != nil {
		return nil, true, fmt.Errorf("recording delivered download: %w", err)
	}
	return record, true, nil
}

func (p *Pipeline) authorize(ctx context.Context, telegramID int64) error {
	user, err := p.deps.Store.GetUser(ctx, telegramID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.ErrNotActivated
	case err != nil:
		return fmt.Errorf("getting user: %w", err)
	case user.Banned:
		return apperr.ErrBanned
	case !user.IsActivated():
		return apperr.ErrNotActivated
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, ref media.Ref, dir string) (string, int64, error) {
	ctx, cancel := withTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	path, err := p.deps.Fetcher.Fetch(ctx, ref, dir)
	if err != nil {
		return "", 0, apperr.FetchFailed(err)
	}
	size, err := fileSize(path)
	if err != nil {
		return "", 0, apperr.FetchFailed(err)
	}
	return path, size, nil
}

func (p *Pipeline) compress(ctx context.Context, src string, maxSize int64) (string, int64, error) {
	ctx, cancel := withTimeout(ctx, p.opts.TranscodeTimeout)
	defer cancel()

	path, err := p.deps.Transcoder.Compress(ctx, src, maxSize)
	if err != nil {
		return "", 0, apperr.CompressionFailed(err)
	}
	size, err := fileSize(path)
	if err != nil {
		return "", 0, apperr.CompressionFailed(err)
	}
	if size > maxSize {
		return "", 0, apperr.CompressionFailed(fmt.Errorf("compressed size %d still exceeds %d", size, maxSize))
	}
	return path, size, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	return info.Size(), nil
}
