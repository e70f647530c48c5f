package channel

import (
	"encoding/json"
	"time"
)

// NotificationChannel represents a configured notification sink for a project
type NotificationChannel struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Kind      string          `json:"kind"`
	Config    json.RawMessage `json:"config"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// Channel kinds
const (
	KindEmail   = "email"
	KindSlack   = "slack"
	KindWebhook = "webhook"
)

// IsValidKind reports whether kind names a supported channel type
func IsValidKind(kind string) bool {
	switch kind {
	case KindEmail, KindSlack, KindWebhook:
		return true
	}
	return false
}

// EmailConfig is the config payload for email channels
type EmailConfig struct {
	Email string `json:"email"`
}

// SlackConfig is the config payload for Slack channels
type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// WebhookConfig is the config payload for generic webhook channels
type WebhookConfig struct {
	URL string `json:"url"`
}
