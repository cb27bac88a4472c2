package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"montecarloBot/internal/finance"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	Log         LogConfig        `mapstructure:"log"`
	Telegram    TelegramConfig   `mapstructure:"telegram"`
	OpenAI      OpenAIConfig     `mapstructure:"openai"`
	Server      ServerConfig     `mapstructure:"server"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Yahoo       YahooConfig      `mapstructure:"yahoo"`
	Simulation  SimulationConfig `mapstructure:"simulation"`
	Charts      ChartsConfig     `mapstructure:"charts"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type TelegramConfig struct {
	Token            string `mapstructure:"token"`
	WebhookPublicURL string `mapstructure:"webhook_public_url"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type YahooConfig struct {
	Hosts             []string      `mapstructure:"hosts"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	SeriesCacheTTL    time.Duration `mapstructure:"series_cache_ttl"`
}

type SimulationConfig struct {
	DefaultSimulations int    `mapstructure:"default_simulations"`
	DefaultDays        int    `mapstructure:"default_days"`
	MaxCells           int    `mapstructure:"max_cells"`
	Workers            int    `mapstructure:"workers"`
	DefaultWindow      string `mapstructure:"default_window"`
}

type ChartsConfig struct {
	MaxPaths int `mapstructure:"max_paths"`
	Width    int `mapstructure:"width"`
	Height   int `mapstructure:"height"`
}

// Load reads defaults, then config.yaml from the given directories (the
// working directory and ./configs when none are given), then .env and the
// environment. Env keys are SECTION_KEY, e.g. SIMULATION_DEFAULT_DAYS.
func Load(dirs ...string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{".", "./configs"}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.webhook_public_url", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")

	v.SetDefault("server.port", "9095")
	v.SetDefault("storage.db_path", "/app/data/runs.db")

	v.SetDefault("yahoo.hosts", []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"})
	v.SetDefault("yahoo.timeout", 15*time.Second)
	v.SetDefault("yahoo.max_retries", 3)
	v.SetDefault("yahoo.requests_per_second", 4.0)
	v.SetDefault("yahoo.series_cache_ttl", 10*time.Minute)

	v.SetDefault("simulation.default_simulations", 150)
	v.SetDefault("simulation.default_days", 100)
	v.SetDefault("simulation.max_cells", 5_000_000)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.default_window", finance.DefaultWindow)

	v.SetDefault("charts.max_paths", 50)
	v.SetDefault("charts.width", 900)
	v.SetDefault("charts.height", 500)
}

// bindLegacyEnv keeps the variable names the bot has always been deployed with.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.webhook_public_url", "TELEGRAM_WEBHOOK_PUBLIC_URL", "WEBHOOK_PUBLIC_URL")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("storage.db_path", "STORAGE_DB_PATH", "DB_PATH")
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	switch c.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	s := c.Simulation
	if s.DefaultSimulations < 1 || s.DefaultDays < 1 {
		return fmt.Errorf("simulation defaults must be positive: simulations=%d days=%d",
			s.DefaultSimulations, s.DefaultDays)
	}
	if s.MaxCells < s.DefaultSimulations*s.DefaultDays {
		return fmt.Errorf("simulation.max_cells %d is below the default run size %d",
			s.MaxCells, s.DefaultSimulations*s.DefaultDays)
	}
	if s.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative")
	}
	if _, _, err := finance.ParseWindow(s.DefaultWindow, time.Now()); err != nil {
		return fmt.Errorf("simulation.default_window: %w", err)
	}
	if len(c.Yahoo.Hosts) == 0 {
		return errors.New("yahoo.hosts is empty")
	}
	if c.Yahoo.Timeout <= 0 || c.Yahoo.MaxRetries < 0 || c.Yahoo.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid yahoo settings: timeout=%s max_retries=%d requests_per_second=%g",
			c.Yahoo.Timeout, c.Yahoo.MaxRetries, c.Yahoo.RequestsPerSecond)
	}
	if c.Charts.Width < 100 || c.Charts.Height < 100 || c.Charts.MaxPaths < 1 {
		return fmt.Errorf("invalid chart settings: %dx%d, max_paths=%d", c.Charts.Width, c.Charts.Height, c.Charts.MaxPaths)
	}
	return nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return errors.New("missing telegram token (TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.WebhookPublicURL == "" {
		return errors.New("missing webhook public url (WEBHOOK_PUBLIC_URL)")
	}
	if c.Server.Port == "" {
		return errors.New("missing server port")
	}
	return nil
}

// YahooClientConfig converts the settings for finance.NewYahooClient. Retries
// back off exponentially from 200ms.
func (c Config) YahooClientConfig() finance.YahooConfig {
	backoffs := make([]time.Duration, c.Yahoo.MaxRetries)
	for i := range backoffs {
		backoffs[i] = 200 * time.Millisecond << i
	}
	return finance.YahooConfig{
		BaseURLs:          c.Yahoo.Hosts,
		Timeout:           c.Yahoo.Timeout,
		Backoffs:          backoffs,
		RequestsPerSecond: c.Yahoo.RequestsPerSecond,
		CacheTTL:          c.Yahoo.SeriesCacheTTL,
	}
}

// ChartOptions converts the chart settings for the finance renderers.
func (c Config) ChartOptions() finance.ChartOptions {
	return finance.ChartOptions{Width: c.Charts.Width, Height: c.Charts.Height, MaxPaths: c.Charts.MaxPaths}
}
