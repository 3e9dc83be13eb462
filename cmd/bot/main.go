package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/activation"
	"github.com/C4T-BuT-S4D/reelbridge/internal/api"
	"github.com/C4T-BuT-S4D/reelbridge/internal/bot"
	"github.com/C4T-BuT-S4D/reelbridge/internal/config"
	"github.com/C4T-BuT-S4D/reelbridge/internal/instagram"
	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"github.com/C4T-BuT-S4D/reelbridge/internal/pipeline"
	"github.com/C4T-BuT-S4D/reelbridge/internal/poller"
	"github.com/C4T-BuT-S4D/reelbridge/internal/storage"
	"github.com/C4T-BuT-S4D/reelbridge/internal/transcode"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	logging.BindFlags(pflag.CommandLine)
	pflag.Parse()

	config.SetupCommon()
	logging.Init()

	cfg := config.New()
	logrus.Debugf("config: admin=%d instagram=%s work_dir=%s", cfg.AdminID, cfg.InstagramUsername, cfg.WorkDir)

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	store := storage.New(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	defer initCancel()

	if err := store.Migrate(initCtx); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	globalState, err := store.GetOrCreateGlobalState(initCtx)
	if err != nil {
		logrus.Fatalf("Failed to get or create global state: %v", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		logrus.Fatalf("Failed to create work dir: %v", err)
	}

	tgBot, err := telebot.NewBot(telebot.Settings{
		Token: cfg.TelegramToken,
		Poller: &telebot.LongPoller{
			Timeout:        10 * time.Second,
			LastUpdateID:   globalState.LastUpdateID,
			AllowedUpdates: []string{"message", "callback_query"},
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}

	limits := config.NewLimits(cfg.MaxFileSizeMB)
	messenger := bot.NewMessenger(tgBot)
	activator := activation.New(store, messenger)

	igClient := instagram.New(instagram.Options{
		BaseURL:   "https://" + cfg.InstagramAPIHost,
		Username:  cfg.InstagramUsername,
		Password:  cfg.InstagramPassword,
		SessionID: cfg.InstagramSessionID,
	})

	pipe := pipeline.New(pipeline.Options{
		WorkDir:          cfg.WorkDir,
		FetchTimeout:     cfg.FetchTimeout,
		TranscodeTimeout: cfg.TranscodeTimeout,
		DeliveryTimeout:  cfg.DeliveryTimeout(),
		MaxConcurrent:    cfg.MaxConcurrentDownloads,
		CleanupInterval:  cfg.CleanupInterval,
		CleanupMaxAge:    cfg.CleanupMaxAge,
	}, limits, pipeline.Deps{
		Store:      store,
		Fetcher:    igClient,
		Transcoder: transcode.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath),
		Messenger:  messenger,
	})

	inbox := poller.New(poller.Options{
		Interval:       cfg.PollInterval,
		ErrorBackoff:   cfg.PollErrorBackoff,
		ThreadLimit:    cfg.PollThreadLimit,
		SeenMessageTTL: cfg.SeenMessageTTL,
	}, poller.Deps{
		Inbox:      igClient,
		Activator:  activator,
		Users:      store,
		Suppressor: pipeline.NewSuppressor(store, cfg.DuplicateWindow),
		Downloader: pipe,
		Notifier:   messenger,
	})

	router := bot.NewRouter(cfg, limits, bot.Deps{
		Store:       store,
		Activator:   activator,
		Downloader:  pipe,
		Broadcaster: bot.NewBroadcaster(tgBot, store, cfg.BroadcastRate),
	})
	router.Register(tgBot)

	health := api.NewService(inbox, store)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tgBot.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		tgBot.Stop()
		return nil
	})
	g.Go(func() error {
		inbox.Run(gctx)
		return nil
	})
	g.Go(func() error {
		pipe.RunCleaner(gctx)
		return nil
	})
	g.Go(func() error {
		return health.Run(gctx, cfg.HTTPListenAddr)
	})

	logrus.Infof("started, admin %d, inbox @%s", cfg.AdminID, cfg.InstagramUsername)

	if err := g.Wait(); err != nil {
		logrus.Errorf("service failed: %v", err)
	}

	logrus.Info("waiting for deliveries to finish")
	pipe.Wait()
}
