package bot

import (
	"context"
	"path/filepath"

	"github.com/C4T-BuT-S4D/reelbridge/internal/pipeline"
	"gopkg.in/telebot.v4"
)

// Messenger sends proactive messages and pipeline results through the bot.
type Messenger struct {
	bot telebot.API
}

func NewMessenger(bot telebot.API) *Messenger {
	return &Messenger{bot: bot}
}

func (m *Messenger) Notify(ctx context.Context, telegramID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.bot.Send(telebot.ChatID(telegramID), text)
	return err
}

func (m *Messenger) SendVideo(ctx context.Context, req pipeline.Request, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	video := &telebot.Video{
		File:     telebot.FromDisk(path),
		FileName: filepath.Base(path),
		Caption:  "🎬 " + req.Link,
	}
	_, err := m.bot.Send(telebot.ChatID(req.TelegramID), video, replyOptions(req))
	return err
}

// Report answers command requests in reply to the triggering message and
// sends a standalone message for everything else.
func (m *Messenger) Report(ctx context.Context, req pipeline.Request, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.bot.Send(telebot.ChatID(req.TelegramID), text, replyOptions(req))
	return err
}

func replyOptions(req pipeline.Request) *telebot.SendOptions {
	opts := &telebot.SendOptions{}
	if req.Origin == pipeline.OriginCommand && req.ReplyTo != 0 {
		opts.ReplyTo = &telebot.Message{
			ID:   req.ReplyTo,
			Chat: &telebot.Chat{ID: req.TelegramID},
		}
		opts.AllowWithoutReply = true
	}
	return opts
}
