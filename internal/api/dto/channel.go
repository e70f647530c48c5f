package dto

import (
	"encoding/json"
	"time"
)

// ChannelDTO represents a notification channel in API responses
type ChannelDTO struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId"`
	Kind      string          `json:"kind"`
	Config    json.RawMessage `json:"config"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CreateChannelRequest represents a channel creation request
type CreateChannelRequest struct {
	Kind   string          `json:"kind" validate:"required,oneof=email slack webhook"`
	Config json.RawMessage `json:"config" validate:"required"`
}

// UpdateChannelRequest represents a channel update request
type UpdateChannelRequest struct {
	Config json.RawMessage `json:"config,omitempty"`
	Active *bool           `json:"active,omitempty"`
}
