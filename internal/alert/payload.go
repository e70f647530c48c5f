package alert

import (
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/project"
)

// Payload is the immutable alert snapshot rendered once per dispatch and
// reused by every channel renderer.
type Payload struct {
	ProjectName string `json:"project_name"`
	AnomalyKind string `json:"anomaly_kind"`
	Timestamp   string `json:"timestamp"`
	Endpoint    string `json:"endpoint,omitempty"`
	ClientIP    string `json:"ip,omitempty"`
	Message     string `json:"message"`
	Severity    string `json:"severity"`
}

// NewPayload builds the alert payload for an anomaly
func NewPayload(p *project.Project, a *anomaly.Anomaly) Payload {
	return Payload{
		ProjectName: p.Name,
		AnomalyKind: a.Kind,
		Timestamp:   a.CreatedAt.UTC().Format(time.RFC3339),
		Endpoint:    a.EndpointPath,
		ClientIP:    a.ClientIP,
		Message:     a.Message,
		Severity:    a.Severity,
	}
}

// orNA substitutes "N/A" for absent optional fields in rendered templates
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
