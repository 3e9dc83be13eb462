package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken    string        `mapstructure:"telegram_token"`
	AdminID          int64         `mapstructure:"admin_id"`
	BotHandleTimeout time.Duration `mapstructure:"bot_handle_timeout"`

	InstagramUsername    string `mapstructure:"instagram_username"`
	InstagramPassword    string `mapstructure:"instagram_password"`
	InstagramSessionID   string `mapstructure:"instagram_session_id"`
	InstagramAPIHost     string `mapstructure:"instagram_api_host"`
	InstagramBotUsername string `mapstructure:"instagram_bot_username"`

	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PollErrorBackoff time.Duration `mapstructure:"poll_error_backoff"`
	PollThreadLimit  int           `mapstructure:"poll_thread_limit"`
	SeenMessageTTL   time.Duration `mapstructure:"seen_message_ttl"`

	MaxFileSizeMB          int64         `mapstructure:"max_file_size_mb"`
	DuplicateWindow        time.Duration `mapstructure:"duplicate_window"`
	FetchTimeout           time.Duration `mapstructure:"fetch_timeout"`
	TranscodeTimeout       time.Duration `mapstructure:"transcode_timeout"`
	MaxConcurrentDownloads int64         `mapstructure:"max_concurrent_downloads"`
	FFmpegPath             string        `mapstructure:"ffmpeg_path"`
	FFprobePath            string        `mapstructure:"ffprobe_path"`

	WorkDir         string        `mapstructure:"work_dir"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	CleanupMaxAge   time.Duration `mapstructure:"cleanup_max_age"`

	BroadcastRate  float64 `mapstructure:"broadcast_rate"`
	HTTPListenAddr string  `mapstructure:"http_listen_addr"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
}

func New() *Config {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		logrus.Fatalf("unmarshalling config: %v", err)
	}
	return cfg
}

// DeliveryTimeout bounds a whole pipeline run: fetch, transcode and upload.
func (c *Config) DeliveryTimeout() time.Duration {
	return c.FetchTimeout + c.TranscodeTimeout + c.BotHandleTimeout
}

func SetupCommon() {
	viper.SetDefault("bot_handle_timeout", "10s")
	viper.SetDefault("instagram_api_host", "i.instagram.com")
	viper.SetDefault("poll_interval", "30s")
	viper.SetDefault("poll_error_backoff", "60s")
	viper.SetDefault("poll_thread_limit", 20)
	viper.SetDefault("seen_message_ttl", "1h")
	viper.SetDefault("max_file_size_mb", 50)
	viper.SetDefault("duplicate_window", "1h")
	viper.SetDefault("fetch_timeout", "2m")
	viper.SetDefault("transcode_timeout", "10m")
	viper.SetDefault("max_concurrent_downloads", 4)
	viper.SetDefault("ffmpeg_path", "ffmpeg")
	viper.SetDefault("ffprobe_path", "ffprobe")
	viper.SetDefault("work_dir", filepath.Join(os.TempDir(), "reelbridge"))
	viper.SetDefault("cleanup_interval", "10m")
	viper.SetDefault("cleanup_max_age", "1h")
	viper.SetDefault("broadcast_rate", 20)
	viper.SetDefault("http_listen_addr", ":8080")
	viper.SetEnvPrefix("REELBRIDGE")

	viper.MustBindEnv("telegram_token")
	viper.MustBindEnv("admin_id")
	viper.MustBindEnv("postgres_dsn")
	viper.MustBindEnv("instagram_username")
	viper.MustBindEnv("instagram_password")
	viper.MustBindEnv("instagram_session_id")
	viper.AutomaticEnv()
}
