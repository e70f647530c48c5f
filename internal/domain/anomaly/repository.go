package anomaly

import (
	"context"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/event"
)

// Repository defines the interface for anomaly data access
type Repository interface {
	// CreateMany persists newly detected anomalies
	CreateMany(ctx context.Context, anomalies []*Anomaly) error

	// FlaggedEndpoints returns the (method, path) pairs already covered
	// by a persisted new_endpoint anomaly for the project
	FlaggedEndpoints(ctx context.Context, projectID string) (map[event.Endpoint]struct{}, error)

	// GetByID retrieves an anomaly by ID
	GetByID(ctx context.Context, id string) (*Anomaly, error)

	// FindUnprocessed retrieves unprocessed anomalies created at or after since
	FindUnprocessed(ctx context.Context, since time.Time) ([]*Anomaly, error)

	// ClaimProcessed atomically flips processed false->true. It returns
	// false if the anomaly was already claimed or does not exist; under
	// concurrent callers exactly one claim succeeds.
	ClaimProcessed(ctx context.Context, id string) (bool, error)

	// Resolve marks an anomaly resolved at the given time
	Resolve(ctx context.Context, id string, at time.Time) error

	// ListWithPagination retrieves anomalies with filters and pagination
	ListWithPagination(ctx context.Context, filter Filter, limit, offset int) ([]*Anomaly, int64, error)

	// CountBySeverity counts anomalies by severity for a project
	CountBySeverity(ctx context.Context, projectID string) (map[string]int, error)
}
