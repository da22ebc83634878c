package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the homework statuses endpoint of the Practicum API.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// Config holds all application configuration.
type Config struct {
	Practicum struct {
		Token    string        `yaml:"token"`
		Endpoint string        `yaml:"endpoint"`
		Timeout  time.Duration `yaml:"timeout"`
		// FromDate overrides the initial cursor. Nil means "now".
		FromDate *int64 `yaml:"from_date"`
	} `yaml:"practicum"`
	Telegram struct {
		BotToken    string        `yaml:"bot_token"`
		ChatID      string        `yaml:"chat_id"`
		APIEndpoint string        `yaml:"api_endpoint"`
		RetryDelay  time.Duration `yaml:"retry_delay"`
	} `yaml:"telegram"`
	Schedule struct {
		PollSpec string `yaml:"poll_spec"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Logging struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
	Debug bool   `yaml:"debug"`
}

// Load reads config from a YAML file and an optional .env file, then applies
// environment variable overrides. Both files may be absent.
func Load(path, envFile string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PRACTICUM_TOKEN"); v != "" {
		cfg.Practicum.Token = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("PRACTICUM_ENDPOINT"); v != "" {
		cfg.Practicum.Endpoint = v
	}
	if v := os.Getenv("POLL_SPEC"); v != "" {
		cfg.Schedule.PollSpec = v
	}
	if v := os.Getenv("FROM_DATE"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse FROM_DATE: %w", err)
		}
		cfg.Practicum.FromDate = &ts
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	// Defaults
	if cfg.Practicum.Endpoint == "" {
		cfg.Practicum.Endpoint = DefaultEndpoint
	}
	if cfg.Practicum.Timeout == 0 {
		cfg.Practicum.Timeout = 30 * time.Second
	}
	if cfg.Telegram.RetryDelay == 0 {
		cfg.Telegram.RetryDelay = 2 * time.Second
	}
	if cfg.Schedule.PollSpec == "" {
		cfg.Schedule.PollSpec = "@every 10m"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/homework_sentinel.db"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "logs/bot.log"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 28
	}

	return cfg, nil
}

// CheckTokens reports whether all three credentials are present.
func (c *Config) CheckTokens() bool {
	tokens := []string{c.Practicum.Token, c.Telegram.BotToken, c.Telegram.ChatID}
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" {
			return false
		}
	}
	return true
}

// MissingTokens lists the environment variables whose values are absent.
func (c *Config) MissingTokens() []string {
	var missing []string
	if strings.TrimSpace(c.Practicum.Token) == "" {
		missing = append(missing, "PRACTICUM_TOKEN")
	}
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if strings.TrimSpace(c.Telegram.ChatID) == "" {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	return missing
}

// Validate checks the non-credential settings.
func (c *Config) Validate() error {
	if c.Practicum.Timeout < 0 {
		return fmt.Errorf("practicum.timeout must not be negative")
	}
	if c.Telegram.RetryDelay < 0 {
		return fmt.Errorf("telegram.retry_delay must not be negative")
	}
	if c.Practicum.FromDate != nil && *c.Practicum.FromDate < 0 {
		return fmt.Errorf("practicum.from_date must not be negative")
	}
	return nil
}

// InitialCursor returns the from_date of the first request.
func (c *Config) InitialCursor(now time.Time) int64 {
	if c.Practicum.FromDate != nil {
		return *c.Practicum.FromDate
	}
	return now.Unix()
}
