package notify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"icabatch/internal/apperrors"
)

// Config holds notification destinations, loaded from a YAML file.
type Config struct {
	EmailTo       string `yaml:"email_to"`
	SMTPHost      string `yaml:"smtp_host"`
	SMTPPort      int    `yaml:"smtp_port"`
	SMTPUser      string `yaml:"smtp_user"`
	SMTPPass      string `yaml:"smtp_pass"`
	SlackWebhook  string `yaml:"slack_webhook"`
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// LoadConfig reads a notification config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IO("notify.config.read", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.Validation("notify_config", fmt.Sprintf("malformed notification config: %v", err))
	}

	if cfg.EmailTo != "" && cfg.SMTPHost == "" {
		return nil, apperrors.Validation("smtp_host", "email_to set but smtp_host missing")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 25
	}
	return &cfg, nil
}

// Targets builds the configured delivery targets. An empty config yields none.
func (c *Config) Targets() []Target {
	var targets []Target
	if c.SlackWebhook != "" {
		targets = append(targets, Target{Name: "slack", Notifier: NewSlack(c.SlackWebhook)})
	}
	if c.EmailTo != "" {
		targets = append(targets, Target{
			Name:     "email",
			Notifier: NewEmail(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPass, c.EmailTo),
		})
	}
	if c.WebhookURL != "" {
		targets = append(targets, Target{Name: "webhook", Notifier: NewWebhook(c.WebhookURL, c.WebhookSecret)})
	}
	return targets
}
