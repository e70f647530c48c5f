package project

import "context"

// Repository defines the interface for project data access
type Repository interface {
	// Create creates a new project
	Create(ctx context.Context, p *Project) error

	// GetByID retrieves a project by ID
	GetByID(ctx context.Context, id string) (*Project, error)

	// GetByAPIKey retrieves a project by its ingest API key
	GetByAPIKey(ctx context.Context, apiKey string) (*Project, error)

	// List retrieves all projects
	List(ctx context.Context) ([]*Project, error)

	// IncrementRequestCount adds n to the project's request counter
	IncrementRequestCount(ctx context.Context, id string, n int64) error
}
