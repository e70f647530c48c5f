package services

import (
	"context"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/delivery"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
)

// AnomalyService exposes anomaly reads and the external resolution action
type AnomalyService struct {
	repo       anomaly.Repository
	deliveries delivery.Repository
	logger     *logger.Logger
}

// NewAnomalyService creates a new anomaly service
func NewAnomalyService(repo anomaly.Repository, deliveries delivery.Repository, log *logger.Logger) *AnomalyService {
	return &AnomalyService{
		repo:       repo,
		deliveries: deliveries,
		logger:     log,
	}
}

// GetByID retrieves an anomaly by ID
func (s *AnomalyService) GetByID(ctx context.Context, id string) (*anomaly.Anomaly, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves anomalies with filters and pagination
func (s *AnomalyService) List(ctx context.Context, filter anomaly.Filter, limit, offset int) ([]*anomaly.Anomaly, int64, error) {
	return s.repo.ListWithPagination(ctx, filter, limit, offset)
}

// Resolve marks an anomaly resolved now
func (s *AnomalyService) Resolve(ctx context.Context, id string) error {
	if err := s.repo.Resolve(ctx, id, time.Now().UTC()); err != nil {
		s.logger.ErrorWithErr(err, "Failed to resolve anomaly")
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"anomaly_id": id,
	}).Info("Anomaly resolved")

	return nil
}

// GetSummary gets anomaly counts by severity for a project
func (s *AnomalyService) GetSummary(ctx context.Context, projectID string) (map[string]int, error) {
	return s.repo.CountBySeverity(ctx, projectID)
}

// ListDeliveries retrieves the delivery outcomes recorded for an anomaly
func (s *AnomalyService) ListDeliveries(ctx context.Context, anomalyID string) ([]*delivery.Outcome, error) {
	if _, err := s.repo.GetByID(ctx, anomalyID); err != nil {
		return nil, err
	}
	return s.deliveries.ListByAnomaly(ctx, anomalyID)
}
