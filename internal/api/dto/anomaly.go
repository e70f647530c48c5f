package dto

import "time"

// AnomalyDTO represents a detected anomaly in API responses
type AnomalyDTO struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"projectId"`
	Kind           string     `json:"kind"`
	EndpointMethod string     `json:"endpointMethod,omitempty"`
	EndpointPath   string     `json:"endpointPath,omitempty"`
	ClientIP       string     `json:"clientIp,omitempty"`
	Message        string     `json:"message"`
	Severity       string     `json:"severity"`
	CreatedAt      time.Time  `json:"createdAt"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	Processed      bool       `json:"processed"`
}

// DeliveryOutcomeDTO represents one channel delivery attempt for an anomaly
type DeliveryOutcomeDTO struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channelId"`
	ChannelKind string    `json:"channelKind"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attemptedAt"`
}
