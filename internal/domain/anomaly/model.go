package anomaly

import "time"

// Anomaly represents a security-relevant finding raised by the detection engine
type Anomaly struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Kind           string     `json:"kind"`
	EndpointMethod string     `json:"endpoint_method,omitempty"`
	EndpointPath   string     `json:"endpoint_path,omitempty"`
	ClientIP       string     `json:"client_ip,omitempty"`
	Message        string     `json:"message"`
	Severity       string     `json:"severity"`
	CreatedAt      time.Time  `json:"created_at"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Processed      bool       `json:"processed"`
}

// Anomaly kinds
const (
	KindNewEndpoint        = "new_endpoint"
	KindRateLimit          = "rate_limit"
	KindErrorSpike         = "error_spike"
	KindSuspiciousLocation = "suspicious_location"
)

// Severity levels, ordered by escalation
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Filter contains anomaly listing options
type Filter struct {
	ProjectID string
	Kind      string
	Severity  string
	Resolved  *bool
}
