package event

import (
	"context"
	"time"
)

// Store defines the interface for request event access
type Store interface {
	// Insert appends captured request events
	Insert(ctx context.Context, events []*RequestEvent) error

	// Query retrieves events for a project within a window, oldest first
	Query(ctx context.Context, projectID string, window Window) ([]*RequestEvent, error)

	// DistinctEndpoints returns the set of (method, path) pairs seen
	// strictly before the given timestamp
	DistinctEndpoints(ctx context.Context, projectID string, before time.Time) (map[Endpoint]struct{}, error)

	// CountByIP returns per-client-IP request counts within a window
	CountByIP(ctx context.Context, projectID string, window Window) (map[string]int64, error)

	// EndpointErrorStats returns per-endpoint total and 5xx counts within a window
	EndpointErrorStats(ctx context.Context, projectID string, window Window) ([]ErrorStats, error)

	// QueryByCountries retrieves events within a window whose country code
	// is in the given list, oldest first
	QueryByCountries(ctx context.Context, projectID string, window Window, countries []string) ([]*RequestEvent, error)
}
