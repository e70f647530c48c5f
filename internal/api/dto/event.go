package dto

import "time"

// IngestEvent represents one captured API request in an ingest batch
type IngestEvent struct {
	Method      string     `json:"method" validate:"required"`
	Path        string     `json:"path" validate:"required"`
	StatusCode  int        `json:"statusCode" validate:"required,min=100,max=599"`
	LatencyMS   int        `json:"latencyMs,omitempty"`
	ClientIP    string     `json:"clientIp,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
	CountryCode string     `json:"countryCode,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// IngestRequest represents a batch of captured API requests
type IngestRequest struct {
	Events []IngestEvent `json:"events" validate:"required,min=1,max=1000,dive"`
}
