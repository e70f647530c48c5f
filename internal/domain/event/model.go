package event

import "time"

// RequestEvent represents a single captured API request. Events are
// immutable once written; detection relies only on CreatedAt ordering.
type RequestEvent struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	StatusCode  int       `json:"status_code"`
	LatencyMS   int       `json:"latency_ms"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Window is a bounded, backward-looking time range scoping one scanner query
type Window struct {
	From time.Time
	To   time.Time
}

// Endpoint identifies a (method, path) pair
type Endpoint struct {
	Method string
	Path   string
}

// ErrorStats aggregates request counts for one endpoint
type ErrorStats struct {
	Endpoint   Endpoint
	TotalCount int64
	ErrorCount int64 // responses with status >= 500
}
