package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/testutil"
)

func newProjectService(t *testing.T) (*ProjectService, *testutil.MockProjectRepository, *testutil.MockEventStore) {
	t.Helper()
	mockRepo := testutil.NewMockProjectRepository()
	mockEvents := testutil.NewMockEventStore()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return NewProjectService(mockRepo, mockEvents, log), mockRepo, mockEvents
}

func TestProjectService_Create(t *testing.T) {
	service, _, _ := newProjectService(t)

	p, err := service.Create(context.Background(), "Checkout API", "payment traffic")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if p.ID == "" {
		t.Error("Create() did not set project ID")
	}
	if !strings.HasPrefix(p.APIKey, "as_") {
		t.Errorf("Create() API key = %q, want as_ prefix", p.APIKey)
	}

	// Keys are unique per project
	p2, err := service.Create(context.Background(), "Other API", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p2.APIKey == p.APIKey {
		t.Error("Create() produced duplicate API keys")
	}
}

func TestProjectService_GetByAPIKey(t *testing.T) {
	service, _, _ := newProjectService(t)

	ctx := context.Background()
	p, err := service.Create(ctx, "Checkout API", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := service.GetByAPIKey(ctx, p.APIKey)
	if err != nil {
		t.Fatalf("GetByAPIKey() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("GetByAPIKey() = %s, want %s", got.ID, p.ID)
	}

	if _, err := service.GetByAPIKey(ctx, "as_bogus"); err == nil {
		t.Error("GetByAPIKey(bogus) error = nil, want error")
	}
}

func TestProjectService_Ingest(t *testing.T) {
	service, mockRepo, mockEvents := newProjectService(t)

	ctx := context.Background()
	p, err := service.Create(ctx, "Checkout API", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	events := []*event.RequestEvent{
		{Method: "GET", Path: "/a", StatusCode: 200, CreatedAt: time.Now().UTC()},
		{Method: "POST", Path: "/b", StatusCode: 201, CreatedAt: time.Now().UTC()},
	}
	if err := service.Ingest(ctx, p.ID, events); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(mockEvents.Events) != 2 {
		t.Fatalf("stored %d events, want 2", len(mockEvents.Events))
	}
	for _, e := range mockEvents.Events {
		if e.ProjectID != p.ID {
			t.Errorf("event project = %q, want %q", e.ProjectID, p.ID)
		}
		if e.ID == "" {
			t.Error("event ID not assigned")
		}
	}

	if mockRepo.Projects[p.ID].RequestCount != 2 {
		t.Errorf("request count = %d, want 2", mockRepo.Projects[p.ID].RequestCount)
	}
}
