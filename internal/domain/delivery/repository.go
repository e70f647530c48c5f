package delivery

import "context"

// Repository defines the interface for delivery outcome access
type Repository interface {
	// Create records a per-channel delivery attempt
	Create(ctx context.Context, o *Outcome) error

	// ListByAnomaly retrieves delivery outcomes for an anomaly
	ListByAnomaly(ctx context.Context, anomalyID string) ([]*Outcome, error)
}
