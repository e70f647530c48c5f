package channel

import "context"

// Repository defines the interface for notification channel access
type Repository interface {
	// Create creates a new channel
	Create(ctx context.Context, c *NotificationChannel) error

	// GetByID retrieves a channel by ID
	GetByID(ctx context.Context, id string) (*NotificationChannel, error)

	// ActiveForProject retrieves all active channels for a project
	ActiveForProject(ctx context.Context, projectID string) ([]*NotificationChannel, error)

	// ListForProject retrieves all channels for a project
	ListForProject(ctx context.Context, projectID string) ([]*NotificationChannel, error)

	// Update updates a channel
	Update(ctx context.Context, c *NotificationChannel) error

	// Delete deletes a channel
	Delete(ctx context.Context, id string) error
}
