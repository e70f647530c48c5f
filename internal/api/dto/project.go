package dto

import "time"

// ProjectDTO represents a monitored project in API responses
type ProjectDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	RequestCount int64     `json:"requestCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateProjectRequest represents a project creation request
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// CreateProjectResponse includes the ingest API key, returned only on creation
type CreateProjectResponse struct {
	ProjectDTO
	APIKey string `json:"apiKey"`
}
