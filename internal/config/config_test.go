package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{EnvTelegramToken, EnvPortalPassword, EnvAccessPassword, EnvSlackWebhook} {
		t.Setenv(env, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acsbot.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoad_MissingFileUsesDefaults verifies a missing file is not an error.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Presence.PollInterval.Duration != 2*time.Minute {
		t.Errorf("PollInterval = %v, want 2m", cfg.Presence.PollInterval)
	}
	if cfg.Store.Path != "data/users.json" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if !cfg.Slack.NotifyOn.PortalUnavailable || cfg.Slack.NotifyOn.AuthFailed {
		t.Errorf("unexpected slack defaults: %+v", cfg.Slack.NotifyOn)
	}
}

// TestLoad_FileOverridesDefaults verifies values from the file win and
// unset sections keep their defaults.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
[telegram]
token = "123:abc"

[access]
password = "letmein"
admin_ids = ["1", "2"]

[presence]
poll_interval = "90s"

[chai]
subscribers = ["7"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Token = %q", cfg.Telegram.Token)
	}
	if cfg.Presence.PollInterval.Duration != 90*time.Second {
		t.Errorf("PollInterval = %v, want 90s", cfg.Presence.PollInterval)
	}
	if len(cfg.Chai.Subscribers) != 1 || cfg.Chai.Subscribers[0] != "7" {
		t.Errorf("Subscribers = %v", cfg.Chai.Subscribers)
	}
	if cfg.Portal.Timeout.Duration != 15*time.Second {
		t.Errorf("Portal.Timeout = %v, want default 15s", cfg.Portal.Timeout)
	}
}

// TestLoad_EnvOverridesFile verifies secrets from the environment win.
func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "[access]\npassword = \"from-file\"\n")

	t.Setenv(EnvAccessPassword, "from-env")
	t.Setenv(EnvTelegramToken, "env-token")
	t.Setenv(EnvSlackWebhook, "https://hooks.slack.test/x")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Access.Password != "from-env" {
		t.Errorf("Access.Password = %q", cfg.Access.Password)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Telegram.Token = %q", cfg.Telegram.Token)
	}
	if !cfg.Slack.Enabled || cfg.Slack.WebhookURL != "https://hooks.slack.test/x" {
		t.Errorf("slack not enabled by env: %+v", cfg.Slack)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "[presence]\npoll_interval = \"soon\"\n")

	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unparsable duration")
	}
}

func TestLoad_BadSyntax(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "[access\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Access.Password = "letmein"

	err := cfg.Validate(true)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "telegram.token") {
		t.Errorf("missing token not reported: %v", err)
	}
	if err := cfg.Validate(false); err != nil {
		t.Errorf("console validation: %v", err)
	}

	cfg.Access.Password = ""
	cfg.Presence.PollInterval = Duration{-time.Second}
	err = cfg.Validate(false)
	for _, want := range []string{"access.password", "poll_interval"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Access.AdminIDs = []string{"100", "200"}

	if !cfg.IsAdmin("200") {
		t.Error("200 should be an admin")
	}
	if cfg.IsAdmin("300") || cfg.IsAdmin("") {
		t.Error("unexpected admin")
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.Token = "123:abc"
	cfg.Access.Password = "letmein"
	cfg.Slack.WebhookURL = "https://hooks.slack.test/x"

	r := cfg.Redacted()
	if r.Telegram.Token != "********" || r.Access.Password != "********" || r.Slack.WebhookURL != "********" {
		t.Errorf("secrets not masked: %+v", r)
	}
	if r.Portal.Password != "" {
		t.Errorf("empty secret should stay empty, got %q", r.Portal.Password)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Error("Redacted modified the original")
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2m30s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 150*time.Second {
		t.Errorf("Duration = %v", d.Duration)
	}
	text, _ := d.MarshalText()
	if string(text) != "2m30s" {
		t.Errorf("MarshalText = %q", text)
	}
}
