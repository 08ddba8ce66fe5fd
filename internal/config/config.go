// Package config loads the acsbot TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/rfdyn/acsbot/internal/slack"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "acsbot.toml"

// Environment variables that override secrets from the file.
const (
	EnvTelegramToken  = "ACSBOT_TELEGRAM_TOKEN"
	EnvPortalPassword = "ACSBOT_PORTAL_PASSWORD"
	EnvAccessPassword = "ACSBOT_ACCESS_PASSWORD"
	EnvSlackWebhook   = "ACSBOT_SLACK_WEBHOOK"
)

// ErrInvalidConfig indicates a configuration value is missing or unusable.
var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration written as a string ("90s", "2m") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `toml:"telegram"`
	Portal    PortalConfig    `toml:"portal"`
	Store     StoreConfig     `toml:"store"`
	Access    AccessConfig    `toml:"access"`
	Presence  PresenceConfig  `toml:"presence"`
	Chai      ChaiConfig      `toml:"chai"`
	Slack     slack.Config    `toml:"slack"`
	Log       logging.Config  `toml:"log"`
	Templates TemplatesConfig `toml:"templates"`
}

// TelegramConfig holds chat transport settings.
type TelegramConfig struct {
	// Token is the bot API token.
	Token string `toml:"token"`

	// PollTimeout is the long-poll timeout for getUpdates.
	PollTimeout Duration `toml:"poll_timeout"`

	// Debug enables request logging in the API client.
	Debug bool `toml:"debug"`
}

// PortalConfig holds the ACS portal endpoints and credentials.
type PortalConfig struct {
	// HistoryURL is the badge-history text endpoint.
	HistoryURL string `toml:"history_url"`

	// PresenceURL is the "now in office" text endpoint.
	PresenceURL string `toml:"presence_url"`

	// Login and Password are sent as HTTP basic auth.
	Login    string `toml:"login"`
	Password string `toml:"password"`

	// Timeout bounds each portal request.
	Timeout Duration `toml:"timeout"`
}

// StoreConfig locates the user document.
type StoreConfig struct {
	Path string `toml:"path"`
}

// AccessConfig controls who may use the bot.
type AccessConfig struct {
	// Password is the shared secret users enter on /start.
	Password string `toml:"password"`

	// AdminIDs receive new-user notices and may use /dump.
	AdminIDs []string `toml:"admin_ids"`

	// RegistrationLink is shown when asking for the badge id.
	RegistrationLink string `toml:"registration_link"`
}

// PresenceConfig controls the arrival/departure poller.
type PresenceConfig struct {
	// PollInterval is how often the presence list is diffed. Zero disables polling.
	PollInterval Duration `toml:"poll_interval"`
}

// ChaiConfig lists tea-break subscribers.
type ChaiConfig struct {
	Subscribers []string `toml:"subscribers"`
}

// TemplatesConfig overrides the html/template used for portal replies.
type TemplatesConfig struct {
	History string `toml:"history"`
	State   string `toml:"state"`
	Help    string `toml:"help"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: Duration{60 * time.Second},
		},
		Portal: PortalConfig{
			HistoryURL:  "https://corp.rfdyn.ru/index.php/acs-tabel-intermediadate/index-text",
			PresenceURL: "https://corp.rfdyn.ru/index.php/site/now-in-office-text",
			Timeout:     Duration{15 * time.Second},
		},
		Store: StoreConfig{
			Path: "data/users.json",
		},
		Access: AccessConfig{
			RegistrationLink: "https://corp.rfdyn.ru/index.php/acs-tabel-intermediadate/",
		},
		Presence: PresenceConfig{
			PollInterval: Duration{2 * time.Minute},
		},
		Slack: *slack.DefaultConfig(),
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path, then applies environment overrides.
// A missing file yields the defaults (secrets may still come from env).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTelegramToken); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv(EnvPortalPassword); v != "" {
		c.Portal.Password = v
	}
	if v := os.Getenv(EnvAccessPassword); v != "" {
		c.Access.Password = v
	}
	if v := os.Getenv(EnvSlackWebhook); v != "" {
		c.Slack.WebhookURL = v
		c.Slack.Enabled = true
	}
}

// Validate checks the values every transport needs. requireToken is false
// for the console transport.
func (c *Config) Validate(requireToken bool) error {
	var problems []string
	if requireToken && c.Telegram.Token == "" {
		problems = append(problems, "telegram.token is required (or "+EnvTelegramToken+")")
	}
	if c.Portal.HistoryURL == "" {
		problems = append(problems, "portal.history_url is required")
	}
	if c.Portal.PresenceURL == "" {
		problems = append(problems, "portal.presence_url is required")
	}
	if c.Store.Path == "" {
		problems = append(problems, "store.path is required")
	}
	if c.Access.Password == "" {
		problems = append(problems, "access.password is empty; nobody will be able to register")
	}
	if c.Presence.PollInterval.Duration < 0 {
		problems = append(problems, "presence.poll_interval must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

// IsAdmin reports whether the chat user id is listed in access.admin_ids.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.Access.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Telegram.Token = mask(c.Telegram.Token)
	cp.Portal.Password = mask(c.Portal.Password)
	cp.Access.Password = mask(c.Access.Password)
	cp.Slack.WebhookURL = mask(c.Slack.WebhookURL)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
