package config

// SlackConfig holds the minimal settings needed for the plain-text
// executive-summary webhook poster (pkg/hooks/slack.go). Slack's own rich
// block-kit formatting is out of scope (see DESIGN.md).
type SlackConfig struct {
	Enabled        bool   `yaml:"enabled"`
	WebhookURLEnv  string `yaml:"webhook_url_env,omitempty"` // env var holding the incoming-webhook URL
	Channel        string `yaml:"channel,omitempty"`
}
