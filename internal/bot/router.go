package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
	"github.com/C4T-BuT-S4D/reelbridge/internal/config"
	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"github.com/C4T-BuT-S4D/reelbridge/internal/media"
	"github.com/C4T-BuT-S4D/reelbridge/internal/models"
	"github.com/C4T-BuT-S4D/reelbridge/internal/pipeline"
	"github.com/C4T-BuT-S4D/reelbridge/internal/storage"
	"gopkg.in/telebot.v4"
)

const (
	bannedMessage = "🚫 You are banned from using this bot."
	textHint      = "Send me an Instagram reel, post or video link, or use /help."
)

type Store interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	GetOrCreateUser(ctx context.Context, telegramID int64) (*models.User, error)
	UpsertLinkedUser(ctx context.Context, telegramID int64, identity string) error
	DeleteUser(ctx context.Context, telegramID int64) (bool, error)
	SetBanned(ctx context.Context, telegramID int64, banned bool) (bool, error)
	Stats(ctx context.Context) (users int64, downloads int64, err error)
	UpdateLastUpdate(ctx context.Context, updateID int) error
}

type Activator interface {
	RequestActivation(ctx context.Context, telegramID int64) (string, error)
}

type Downloader interface {
	Go(ctx context.Context, req pipeline.Request)
}

type Deps struct {
	Store       Store
	Activator   Activator
	Downloader  Downloader
	Broadcaster *Broadcaster
}

type handlerFunc func(uc *UpdateContext, user *models.User) error

// Router dispatches chat commands. Every handler rejects banned users first;
// admin handlers then ignore everyone but the configured administrator.
type Router struct {
	config *config.Config
	limits *config.Limits
	deps   Deps
}

func NewRouter(cfg *config.Config, limits *config.Limits, deps Deps) *Router {
	return &Router{
		config: cfg,
		limits: limits,
		deps:   deps,
	}
}

// Register installs all handlers on the bot.
func (r *Router) Register(b *telebot.Bot) {
	b.Use(r.TrackUpdates)

	for cmd, h := range r.userCommands() {
		b.Handle(cmd, r.wrap(h, false))
	}
	for cmd, h := range r.adminCommands() {
		b.Handle(cmd, r.wrap(h, true))
	}
	b.Handle(telebot.OnText, r.wrap(r.HandleText, false))
	b.Handle(telebot.OnCallback, r.wrap(r.HandleCallback, false))
}

func (r *Router) userCommands() map[string]handlerFunc {
	return map[string]handlerFunc{
		"/start":     r.HandleStart,
		"/help":      r.HandleStart,
		"/myaccount": r.HandleMyAccount,
		"/download":  r.HandleDownload,
	}
}

func (r *Router) adminCommands() map[string]handlerFunc {
	return map[string]handlerFunc{
		"/adduser":    r.HandleAddUser,
		"/removeuser": r.HandleRemoveUser,
		"/ban":        r.HandleBan,
		"/unban":      r.HandleUnban,
		"/stats":      r.HandleStats,
		"/broadcast":  r.HandleBroadcast,
		"/set_limit":  r.HandleSetLimit,
	}
}

// TrackUpdates persists the last seen update id so the long poller resumes
// after it on restart.
func (r *Router) TrackUpdates(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.BotHandleTimeout)
		defer cancel()

		if err := r.deps.Store.UpdateLastUpdate(ctx, c.Update().ID); err != nil {
			logging.Component("router").Errorf("failed to update last update: %v", err)
		}
		return next(c)
	}
}

func (r *Router) wrap(h handlerFunc, adminOnly bool) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.BotHandleTimeout)
		defer cancel()

		uc := NewUpdateContext(ctx, c)
		if c.Sender() == nil {
			uc.L().Debugf("ignoring update without sender")
			return nil
		}

		user, err := r.deps.Store.GetUser(uc, c.Sender().ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			user = nil
		case err != nil:
			uc.L().Errorf("failed to get user: %v", err)
			return r.replyError(uc, err)
		}

		if user != nil && user.Banned {
			uc.L().Infof("denying banned user %d", c.Sender().ID)
			if c.Callback() != nil {
				_ = c.Respond()
			}
			return uc.Reply(bannedMessage)
		}

		if adminOnly && c.Sender().ID != r.config.AdminID {
			uc.L().Warnf("ignoring admin command from non-admin %d", c.Sender().ID)
			return nil
		}

		if err := h(uc, user); err != nil {
			uc.L().Errorf("handler failed: %v", err)
			return r.replyError(uc, err)
		}
		return nil
	}
}

func (r *Router) replyError(uc *UpdateContext, err error) error {
	if sendErr := uc.Reply(apperr.UserMessage(err)); sendErr != nil {
		uc.L().Errorf("failed to send error message: %v", sendErr)
	}
	return nil
}

func (r *Router) HandleStart(uc *UpdateContext, user *models.User) error {
	if user == nil {
		var err error
		user, err = r.deps.Store.GetOrCreateUser(uc, uc.Sender().ID)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		uc.L().Infof("new user %d", user.TelegramID)
	}

	if user.IsActivated() {
		return uc.Reply(fmt.Sprintf(
			"👋 Welcome back! Your account is linked to Instagram @%s.\n\n"+
				"Send a reel link here, or share a reel with us in Instagram direct messages, and we'll send you the video.",
			*user.LinkedIdentity,
		))
	}

	target := "our Instagram account"
	if r.config.InstagramBotUsername != "" {
		target = "@" + r.config.InstagramBotUsername + " on Instagram"
	}
	text := fmt.Sprintf(
		"👋 Welcome! This bot downloads Instagram reels for you.\n\n"+
			"1. Press \"Activate\" below to get your activation code.\n"+
			"2. Send the code as a direct message to %s.\n"+
			"3. Once linked, send reel links here or share reels with %s in direct messages.\n\n"+
			"Videos larger than %d MB are compressed before sending.",
		target,
		target,
		r.limits.MaxFileSizeMB(),
	)

	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🔑 Activate", CallbackActionActivate.String())))
	return uc.Reply(text, markup)
}

func (r *Router) HandleCallback(uc *UpdateContext, _ *models.User) error {
	cb := uc.TC().Callback()
	if cb == nil {
		return nil
	}
	if err := uc.TC().Respond(); err != nil {
		uc.L().Warnf("failed to answer callback: %v", err)
	}

	switch {
	case CallbackActionActivate.DataMatches(cb.Data):
		return r.activate(uc)
	default:
		uc.L().Debugf("ignoring unknown callback %q", cb.Data)
		return nil
	}
}

func (r *Router) activate(uc *UpdateContext) error {
	code, err := r.deps.Activator.RequestActivation(uc, uc.Sender().ID)
	if err != nil {
		return err
	}

	target := "our Instagram account"
	if r.config.InstagramBotUsername != "" {
		target = "@" + r.config.InstagramBotUsername
	}
	return uc.Reply(fmt.Sprintf(
		"🔑 Your activation code:\n\n%s\n\nSend it as a direct message to %s from the Instagram account you want to link.",
		code,
		target,
	))
}

func (r *Router) HandleMyAccount(uc *UpdateContext, user *models.User) error {
	if user == nil || !user.IsActivated() {
		return uc.Reply("❌ Your account is not activated. Use /start to link your Instagram account.")
	}
	return uc.Reply(fmt.Sprintf("👤 Linked Instagram account: @%s", *user.LinkedIdentity))
}

func (r *Router) HandleDownload(uc *UpdateContext, _ *models.User) error {
	link := strings.TrimSpace(uc.Message().Payload)
	if link == "" {
		return uc.Reply("Usage: /download <link>")
	}
	r.startDownload(uc, link)
	return nil
}

func (r *Router) HandleText(uc *UpdateContext, _ *models.User) error {
	msg := uc.Message()
	if msg == nil {
		return nil
	}
	link, ok := media.FindLink(msg.Text)
	if !ok {
		if msg.Private() {
			return uc.Reply(textHint)
		}
		return nil
	}
	r.startDownload(uc, link)
	return nil
}

// startDownload hands the request to the pipeline without waiting: the
// delivery outlives the update handler and is bounded by the pipeline itself.
func (r *Router) startDownload(uc *UpdateContext, link string) {
	req := pipeline.Request{
		Link:       link,
		TelegramID: uc.Sender().ID,
		Origin:     pipeline.OriginCommand,
		ReplyTo:    uc.Message().ID,
	}
	uc.L().Infof("starting %v", req)
	r.deps.Downloader.Go(context.Background(), req)
}

func (r *Router) HandleAddUser(uc *UpdateContext, _ *models.User) error {
	args := uc.Args()
	if len(args) != 2 {
		return uc.Reply("Usage: /adduser <chat_id> <instagram_username>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return uc.Reply("❌ Invalid chat id.")
	}
	username := strings.TrimPrefix(args[1], "@")
	if username == "" {
		return uc.Reply("❌ Invalid Instagram username.")
	}

	if err := r.deps.Store.UpsertLinkedUser(uc, id, username); err != nil {
		return fmt.Errorf("adding user: %w", err)
	}
	uc.L().Infof("admin linked user %d to %s", id, username)
	return uc.Reply(fmt.Sprintf("✅ User %d added and linked to @%s.", id, username))
}

func (r *Router) HandleRemoveUser(uc *UpdateContext, _ *models.User) error {
	id, ok, err := r.parseTarget(uc, "/removeuser")
	if !ok || err != nil {
		return err
	}
	removed, err := r.deps.Store.DeleteUser(uc, id)
	if err != nil {
		return fmt.Errorf("removing user: %w", err)
	}
	if !removed {
		return uc.Reply(fmt.Sprintf("❌ User %d not found.", id))
	}
	uc.L().Infof("admin removed user %d", id)
	return uc.Reply(fmt.Sprintf("✅ User %d removed.", id))
}

func (r *Router) HandleBan(uc *UpdateContext, _ *models.User) error {
	return r.setBanned(uc, "/ban", true)
}

func (r *Router) HandleUnban(uc *UpdateContext, _ *models.User) error {
	return r.setBanned(uc, "/unban", false)
}

func (r *Router) setBanned(uc *UpdateContext, command string, banned bool) error {
	id, ok, err := r.parseTarget(uc, command)
	if !ok || err != nil {
		return err
	}
	found, err := r.deps.Store.SetBanned(uc, id, banned)
	if err != nil {
		return fmt.Errorf("updating ban: %w", err)
	}
	if !found {
		return uc.Reply(fmt.Sprintf("❌ User %d not found.", id))
	}

	uc.L().Infof("admin set banned=%v for user %d", banned, id)
	if banned {
		return uc.Reply(fmt.Sprintf("🚫 User %d banned.", id))
	}
	return uc.Reply(fmt.Sprintf("✅ User %d unbanned.", id))
}

// parseTarget reads a single chat id argument, replying with usage on error.
func (r *Router) parseTarget(uc *UpdateContext, command string) (int64, bool, error) {
	args := uc.Args()
	if len(args) != 1 {
		return 0, false, uc.Reply(fmt.Sprintf("Usage: %s <chat_id>", command))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false, uc.Reply("❌ Invalid chat id.")
	}
	return id, true, nil
}

func (r *Router) HandleStats(uc *UpdateContext, _ *models.User) error {
	users, downloads, err := r.deps.Store.Stats(uc)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	return uc.Reply(fmt.Sprintf(
		"📊 Stats\n\n👥 Users: %d\n📥 Downloads: %d\n📦 Size limit: %d MB",
		users,
		downloads,
		r.limits.MaxFileSizeMB(),
	))
}

func (r *Router) HandleBroadcast(uc *UpdateContext, _ *models.User) error {
	text := strings.TrimSpace(uc.Message().Payload)
	if text == "" {
		return uc.Reply("Usage: /broadcast <message>")
	}

	log := uc.L()
	reply := uc.Reply
	// Broadcasting may take longer than a handler is allowed to run.
	go func() {
		sent, failed, err := r.deps.Broadcaster.Broadcast(context.Background(), text)
		if err != nil {
			log.Errorf("broadcast aborted: %v", err)
		}
		log.Infof("broadcast finished: sent=%d failed=%d", sent, failed)
		if err := reply(fmt.Sprintf("📢 Broadcast sent to %d users (%d failed).", sent, failed)); err != nil {
			log.Errorf("failed to report broadcast result: %v", err)
		}
	}()
	return nil
}

func (r *Router) HandleSetLimit(uc *UpdateContext, _ *models.User) error {
	args := uc.Args()
	if len(args) == 0 {
		return uc.Reply(fmt.Sprintf("📦 Current size limit: %d MB. Usage: /set_limit <size_MB>", r.limits.MaxFileSizeMB()))
	}
	mb, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return uc.Reply("❌ Invalid size.")
	}
	if err := r.limits.SetMaxFileSizeMB(mb); err != nil {
		return uc.Reply("❌ Size limit must be a positive number of megabytes.")
	}
	uc.L().Infof("admin set size limit to %d MB", mb)
	return uc.Reply(fmt.Sprintf("✅ Size limit set to %d MB.", mb))
}
