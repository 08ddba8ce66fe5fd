// Package slack posts acsbot operational events to a Slack incoming webhook.
package slack

// Config holds Slack notification configuration.
type Config struct {
	// Enabled controls whether Slack notifications are active.
	Enabled bool `toml:"enabled"`

	// WebhookURL is the Slack incoming webhook URL.
	WebhookURL string `toml:"webhook_url"`

	// Channel is the default channel (can be overridden by webhook config).
	Channel string `toml:"channel,omitempty"`

	// NotifyOn controls which events trigger notifications.
	NotifyOn NotifySettings `toml:"notify_on"`
}

// NotifySettings controls which events trigger Slack notifications.
type NotifySettings struct {
	// UserRegistered notifies when someone completes registration.
	UserRegistered bool `toml:"user_registered"`

	// AuthFailed notifies on wrong access passwords (can be noisy).
	AuthFailed bool `toml:"auth_failed"`

	// PortalUnavailable notifies when the ACS portal cannot be reached.
	PortalUnavailable bool `toml:"portal_unavailable"`

	// StoreError notifies when the user document cannot be written.
	StoreError bool `toml:"store_error"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    false,
		WebhookURL: "",
		Channel:    "",
		NotifyOn: NotifySettings{
			UserRegistered:    true,
			AuthFailed:        false, // Too noisy by default
			PortalUnavailable: true,
			StoreError:        true,
		},
	}
}
