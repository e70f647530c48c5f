package delivery

import "time"

// Outcome records one per-channel delivery attempt for an anomaly
type Outcome struct {
	ID          string    `json:"id"`
	AnomalyID   string    `json:"anomaly_id"`
	ChannelID   string    `json:"channel_id"`
	ChannelKind string    `json:"channel_kind"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// Delivery statuses
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)
