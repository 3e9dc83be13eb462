package bot

import (
	"context"
	"fmt"

	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v4"
)

type Recipients interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Broadcaster sends a message to every known user, throttled to stay within
// Telegram's bulk sending limits. Per-recipient failures are counted, not
// returned.
type Broadcaster struct {
	bot        telebot.API
	recipients Recipients
	limiter    *rate.Limiter
}

func NewBroadcaster(bot telebot.API, recipients Recipients, perSecond float64) *Broadcaster {
	return &Broadcaster{
		bot:        bot,
		recipients: recipients,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (b *Broadcaster) Broadcast(ctx context.Context, text string) (sent, failed int, err error) {
	ids, err := b.recipients.ListUserIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing recipients: %w", err)
	}

	log := logging.Component("broadcast")
	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			return sent, failed, fmt.Errorf("waiting for limiter: %w", err)
		}
		if _, err := b.bot.Send(telebot.ChatID(id), text); err != nil {
			log.Debugf("failed to send to %d: %v", id, err)
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}
