package services

import (
	"context"
	"testing"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/delivery"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/testutil"
)

func newAnomalyService(t *testing.T) (*AnomalyService, *testutil.MockAnomalyRepository, *testutil.MockDeliveryRepository) {
	t.Helper()
	mockRepo := testutil.NewMockAnomalyRepository()
	mockDeliveries := testutil.NewMockDeliveryRepository()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return NewAnomalyService(mockRepo, mockDeliveries, log), mockRepo, mockDeliveries
}

func seedTestAnomaly(repo *testutil.MockAnomalyRepository, id, projectID, severity string) {
	repo.Anomalies[id] = &anomaly.Anomaly{
		ID:        id,
		ProjectID: projectID,
		Kind:      anomaly.KindRateLimit,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	}
}

func TestAnomalyService_Resolve(t *testing.T) {
	service, mockRepo, _ := newAnomalyService(t)
	seedTestAnomaly(mockRepo, "a1", "p1", anomaly.SeverityMedium)

	if err := service.Resolve(context.Background(), "a1"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	a := mockRepo.Anomalies["a1"]
	if !a.Resolved || a.ResolvedAt == nil {
		t.Errorf("Resolve() left anomaly = %+v", a)
	}

	if err := service.Resolve(context.Background(), "missing"); err == nil {
		t.Error("Resolve(missing) error = nil, want error")
	}
}

func TestAnomalyService_GetSummary(t *testing.T) {
	service, mockRepo, _ := newAnomalyService(t)
	seedTestAnomaly(mockRepo, "a1", "p1", anomaly.SeverityMedium)
	seedTestAnomaly(mockRepo, "a2", "p1", anomaly.SeverityMedium)
	seedTestAnomaly(mockRepo, "a3", "p1", anomaly.SeverityHigh)
	seedTestAnomaly(mockRepo, "a4", "p2", anomaly.SeverityLow)

	summary, err := service.GetSummary(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}

	if summary[anomaly.SeverityMedium] != 2 || summary[anomaly.SeverityHigh] != 1 {
		t.Errorf("GetSummary() = %v", summary)
	}
	if summary[anomaly.SeverityLow] != 0 {
		t.Errorf("GetSummary() leaked other project's anomalies: %v", summary)
	}
}

func TestAnomalyService_ListDeliveries(t *testing.T) {
	service, mockRepo, mockDeliveries := newAnomalyService(t)
	seedTestAnomaly(mockRepo, "a1", "p1", anomaly.SeverityMedium)

	mockDeliveries.Outcomes = append(mockDeliveries.Outcomes,
		&delivery.Outcome{ID: "o1", AnomalyID: "a1", ChannelKind: "slack", Status: delivery.StatusDelivered},
		&delivery.Outcome{ID: "o2", AnomalyID: "other", ChannelKind: "email", Status: delivery.StatusFailed},
	)

	outcomes, err := service.ListDeliveries(context.Background(), "a1")
	if err != nil {
		t.Fatalf("ListDeliveries() error = %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].ID != "o1" {
		t.Errorf("ListDeliveries() = %+v", outcomes)
	}

	// Unknown anomaly is an error, not an empty list
	if _, err := service.ListDeliveries(context.Background(), "missing"); err == nil {
		t.Error("ListDeliveries(missing) error = nil, want error")
	}
}
