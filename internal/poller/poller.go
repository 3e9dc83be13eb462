package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/activation"
	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
	"github.com/C4T-BuT-S4D/reelbridge/internal/instagram"
	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"github.com/C4T-BuT-S4D/reelbridge/internal/media"
	"github.com/C4T-BuT-S4D/reelbridge/internal/models"
	"github.com/C4T-BuT-S4D/reelbridge/internal/pipeline"
	"github.com/sirupsen/logrus"
)

const suppressedMessage = "⏳ This video was already sent to you within the last hour, skipping it."

type Inbox interface {
	Login(ctx context.Context) error
	Inbox(ctx context.Context, threadLimit int) ([]instagram.Thread, error)
	SelfPK() int64
}

type Activator interface {
	ObserveInbound(ctx context.Context, sender, text string) (int64, error)
}

type Users interface {
	FindUsersByLinkedIdentity(ctx context.Context, identity string) ([]*models.User, error)
}

type Suppressor interface {
	ShouldSuppress(ctx context.Context, link string, telegramID int64) (bool, error)
}

type Downloader interface {
	Go(ctx context.Context, req pipeline.Request)
}

type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) error
}

type Options struct {
	Interval       time.Duration
	ErrorBackoff   time.Duration
	ThreadLimit    int
	SeenMessageTTL time.Duration
}

type Deps struct {
	Inbox      Inbox
	Activator  Activator
	Users      Users
	Suppressor Suppressor
	Downloader Downloader
	Notifier   Notifier
}

// Poller scans the Instagram inbox for activation codes and media links.
type Poller struct {
	opts  Options
	deps  Deps
	state atomic.Int32
	seen  *seenSet
	now   func() time.Time
	log   *logrus.Entry
}

func New(opts Options, deps Deps) *Poller {
	return &Poller{
		opts: opts,
		deps: deps,
		seen: newSeenSet(opts.SeenMessageTTL),
		now:  time.Now,
		log:  logging.Component("inbox_poller"),
	}
}

func (p *Poller) State() AuthState {
	return AuthState(p.state.Load())
}

func (p *Poller) setState(s AuthState) {
	if old := AuthState(p.state.Swap(int32(s))); old != s {
		p.log.Infof("auth state %s -> %s", old, s)
	}
}

// Run polls until ctx is done. Failures never stop the loop.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(p.cycle(ctx))
		}
	}
}

// cycle runs one scan and returns the delay before the next one.
func (p *Poller) cycle(ctx context.Context) (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("recovered from panic in scan: %v", r)
			delay = p.opts.ErrorBackoff
		}
	}()

	if p.State() == StateUnauthenticated {
		if err := p.login(ctx); err != nil {
			return p.opts.ErrorBackoff
		}
	}

	err := p.scan(ctx)
	switch {
	case err == nil:
		return p.opts.Interval
	case ctx.Err() != nil:
		return p.opts.Interval
	case errors.Is(err, apperr.ErrAuthExpired):
		p.log.Warnf("session expired: %v", err)
		p.setState(StateUnauthenticated)
		if err := p.login(ctx); err != nil {
			return p.opts.ErrorBackoff
		}
		return p.opts.Interval
	default:
		p.log.Errorf("scan failed: %v", err)
		return p.opts.ErrorBackoff
	}
}

func (p *Poller) login(ctx context.Context) error {
	if err := p.deps.Inbox.Login(ctx); err != nil {
		p.log.Errorf("instagram login failed: %v", err)
		return err
	}
	p.setState(StateAuthenticated)
	return nil
}

func (p *Poller) scan(ctx context.Context) error {
	threads, err := p.deps.Inbox.Inbox(ctx, p.opts.ThreadLimit)
	if err != nil {
		return fmt.Errorf("fetching threads: %w", err)
	}

	now := p.now()
	if evicted := p.seen.Evict(now); evicted > 0 {
		p.log.Debugf("evicted %d seen messages", evicted)
	}

	self := p.deps.Inbox.SelfPK()
	for i := range threads {
		thread := &threads[i]
		// Items arrive newest first.
		for j := len(thread.Items) - 1; j >= 0; j-- {
			item := thread.Items[j]
			if item.SenderPK == self || p.seen.Has(item.ID) {
				continue
			}
			if !item.SentAt.IsZero() && now.Sub(item.SentAt) > p.opts.SeenMessageTTL {
				continue
			}

			sender, ok := thread.Username(item.SenderPK)
			if !ok {
				p.seen.Add(item.ID, now)
				continue
			}

			log := p.log.WithFields(logrus.Fields{
				"thread_id": thread.ID,
				"item_id":   item.ID,
				"sender":    sender,
			})
			if err := p.handle(ctx, sender, item.Text, log); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if !apperr.IsKind(err, apperr.KindCodeCollision) {
					log.Errorf("failed to handle message, will retry: %v", err)
					continue
				}
				log.Errorf("failed to handle message: %v", err)
			}
			p.seen.Add(item.ID, now)
		}
	}
	return nil
}

func (p *Poller) handle(ctx context.Context, sender, text string, log *logrus.Entry) error {
	if activation.IsCode(text) {
		if _, err := p.deps.Activator.ObserveInbound(ctx, sender, text); err != nil {
			return fmt.Errorf("observing code: %w", err)
		}
		return nil
	}

	link, ok := media.FindLink(text)
	if !ok {
		return nil
	}

	users, err := p.deps.Users.FindUsersByLinkedIdentity(ctx, sender)
	if err != nil {
		return fmt.Errorf("finding linked users: %w", err)
	}
	if len(users) == 0 {
		log.Debugf("ignoring link from unlinked sender")
		return nil
	}

	for _, user := range users {
		// Banned users go straight to the pipeline, which reports the ban.
		if !user.Banned {
			suppressed, err := p.deps.Suppressor.ShouldSuppress(ctx, link, user.TelegramID)
			if err != nil {
				return fmt.Errorf("checking duplicates: %w", err)
			}
			if suppressed {
				log.Infof("suppressing duplicate %s for user %d", link, user.TelegramID)
				if err := p.deps.Notifier.Notify(ctx, user.TelegramID, suppressedMessage); err != nil {
					log.Warnf("failed to notify user %d: %v", user.TelegramID, err)
				}
				continue
			}
		}

		p.deps.Downloader.Go(ctx, pipeline.Request{
			Link:       link,
			TelegramID: user.TelegramID,
			Origin:     pipeline.OriginInbox,
		})
	}
	return nil
}
