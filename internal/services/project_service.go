package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
)

// ProjectService manages monitored projects and event ingest
type ProjectService struct {
	repo   project.Repository
	events event.Store
	logger *logger.Logger
}

// NewProjectService creates a new project service
func NewProjectService(repo project.Repository, events event.Store, log *logger.Logger) *ProjectService {
	return &ProjectService{
		repo:   repo,
		events: events,
		logger: log,
	}
}

// Create creates a new project with a generated ingest API key
func (s *ProjectService) Create(ctx context.Context, name, description string) (*project.Project, error) {
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	p := &project.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		APIKey:      apiKey,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.ErrorWithErr(err, "Failed to create project")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"project_id": p.ID,
		"name":       p.Name,
	}).Info("Project created")

	return p, nil
}

// GetByID retrieves a project by ID
func (s *ProjectService) GetByID(ctx context.Context, id string) (*project.Project, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByAPIKey retrieves a project by its ingest API key
func (s *ProjectService) GetByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	return s.repo.GetByAPIKey(ctx, apiKey)
}

// List retrieves all projects
func (s *ProjectService) List(ctx context.Context) ([]*project.Project, error) {
	return s.repo.List(ctx)
}

// Ingest appends captured request events for a project and bumps its
// request counter
func (s *ProjectService) Ingest(ctx context.Context, projectID string, events []*event.RequestEvent) error {
	for _, e := range events {
		e.ProjectID = projectID
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
	}

	if err := s.events.Insert(ctx, events); err != nil {
		s.logger.ErrorWithErr(err, "Failed to ingest request events")
		return err
	}

	if err := s.repo.IncrementRequestCount(ctx, projectID, int64(len(events))); err != nil {
		s.logger.ErrorWithErr(err, "Failed to increment request count")
	}

	s.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"events":     len(events),
	}).Debug("Request events ingested")

	return nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "as_" + hex.EncodeToString(buf), nil
}
