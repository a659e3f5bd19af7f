package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "FILINGWATCH_CONFIG"
	stateFileEnv     = "FILINGWATCH_STATE_FILE"
	databaseDSNEnv   = "DATABASE_DSN"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Source        SourceConfig       `yaml:"source"`
	Storage       StorageConfig      `yaml:"storage"`
	Detector      DetectorConfig     `yaml:"detector"`
	Cycle         CycleConfig        `yaml:"cycle"`
	Watchlist     WatchlistConfig    `yaml:"watchlist"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

// LoggingConfig controls the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig selects the active exchange adapter and its settings.
type SourceConfig struct {
	Adapter string    `yaml:"adapter"`
	NSE     NSEConfig `yaml:"nse"`
	BSE     BSEConfig `yaml:"bse"`
}

// NSEConfig describes the NSE corporate-announcements endpoint.
type NSEConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	ListKey        string `yaml:"listKey"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	MaxAttempts    int    `yaml:"maxAttempts"`
}

// BSEConfig describes the BSE announcements page.
type BSEConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// StorageConfig selects the state backend.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // "file" or "postgres"
	File     FileConfig     `yaml:"file"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// FileConfig locates the JSON state file.
type FileConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig describes the database connection.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// DetectorConfig controls first-contact behavior for a (user, symbol)
// pair: "seed" suppresses pre-existing filings, "latest" delivers the
// single most recent one as a welcome notification.
type DetectorConfig struct {
	FirstContact string `yaml:"firstContact"`
}

// CycleConfig bounds per-cycle concurrency and latency.
type CycleConfig struct {
	Concurrency        int `yaml:"concurrency"`
	UnitTimeoutSeconds int `yaml:"unitTimeoutSeconds"`
	CacheTTLSeconds    int `yaml:"cacheTtlSeconds"`
}

// WatchlistConfig seeds newly created watchlists.
type WatchlistConfig struct {
	DefaultSymbols []string `yaml:"defaultSymbols"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires the bot credentials; recipients are per-user chat
// ids carried in the watchlist store.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
}

// SchedulerConfig defines the polling interval for watch mode.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
}

// UnitTimeout returns the per-(user, symbol) deadline.
func (c CycleConfig) UnitTimeout() time.Duration {
	return time.Duration(c.UnitTimeoutSeconds) * time.Second
}

// CacheTTL returns the per-cycle fetch cache lifetime.
func (c CycleConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Interval returns the watch-mode polling period.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(stateFileEnv); v != "" {
		c.Storage.File.Path = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.Postgres.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Source.Adapter != "" {
		base.Source.Adapter = override.Source.Adapter
	}
	if override.Source.NSE.BaseURL != "" {
		base.Source.NSE.BaseURL = override.Source.NSE.BaseURL
	}
	if override.Source.NSE.ListKey != "" {
		base.Source.NSE.ListKey = override.Source.NSE.ListKey
	}
	if override.Source.NSE.TimeoutSeconds > 0 {
		base.Source.NSE.TimeoutSeconds = override.Source.NSE.TimeoutSeconds
	}
	if override.Source.NSE.MaxAttempts > 0 {
		base.Source.NSE.MaxAttempts = override.Source.NSE.MaxAttempts
	}
	if override.Source.BSE.URL != "" {
		base.Source.BSE.URL = override.Source.BSE.URL
	}
	if override.Source.BSE.TimeoutSeconds > 0 {
		base.Source.BSE.TimeoutSeconds = override.Source.BSE.TimeoutSeconds
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.File.Path != "" {
		base.Storage.File.Path = override.Storage.File.Path
	}
	if override.Storage.Postgres.DSN != "" {
		base.Storage.Postgres.DSN = override.Storage.Postgres.DSN
	}

	if override.Detector.FirstContact != "" {
		base.Detector.FirstContact = override.Detector.FirstContact
	}

	if override.Cycle.Concurrency > 0 {
		base.Cycle.Concurrency = override.Cycle.Concurrency
	}
	if override.Cycle.UnitTimeoutSeconds > 0 {
		base.Cycle.UnitTimeoutSeconds = override.Cycle.UnitTimeoutSeconds
	}
	if override.Cycle.CacheTTLSeconds > 0 {
		base.Cycle.CacheTTLSeconds = override.Cycle.CacheTTLSeconds
	}

	if len(override.Watchlist.DefaultSymbols) > 0 {
		base.Watchlist.DefaultSymbols = override.Watchlist.DefaultSymbols
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}

	if override.Scheduler.IntervalMinutes > 0 {
		base.Scheduler.IntervalMinutes = override.Scheduler.IntervalMinutes
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Source: SourceConfig{
			Adapter: "nse",
			NSE: NSEConfig{
				BaseURL:        "https://www.nseindia.com",
				ListKey:        "rows",
				TimeoutSeconds: 15,
				MaxAttempts:    3,
			},
			BSE: BSEConfig{
				URL:            "https://www.bseindia.com/corporates/ann.html",
				TimeoutSeconds: 15,
			},
		},
		Storage: StorageConfig{
			Driver: "file",
			File:   FileConfig{Path: "filingwatch_state.json"},
		},
		Detector:  DetectorConfig{FirstContact: "seed"},
		Cycle:     CycleConfig{Concurrency: 4, UnitTimeoutSeconds: 20, CacheTTLSeconds: 60},
		Scheduler: SchedulerConfig{IntervalMinutes: 15},
	}
}
