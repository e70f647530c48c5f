package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apisentinel/apisentinel/internal/api/middleware"
	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/validator"
	"github.com/apisentinel/apisentinel/internal/services"
	"github.com/apisentinel/apisentinel/internal/testutil"
)

func TestIngestHandler_Ingest(t *testing.T) {
	mockRepo := testutil.NewMockProjectRepository()
	mockEvents := testutil.NewMockEventStore()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	service := services.NewProjectService(mockRepo, mockEvents, log)
	val := validator.New()
	handler := NewIngestHandler(service, log, val)

	p := &project.Project{ID: "p1", Name: "Checkout API", APIKey: "as_test"}
	mockRepo.Projects["p1"] = p

	tests := []struct {
		name           string
		body           string
		authenticated  bool
		expectedStatus int
		expectedEvents int
	}{
		{
			name:           "valid batch",
			body:           `{"events":[{"method":"GET","path":"/a","statusCode":200},{"method":"POST","path":"/b","statusCode":502,"clientIp":"1.1.1.1"}]}`,
			authenticated:  true,
			expectedStatus: http.StatusAccepted,
			expectedEvents: 2,
		},
		{
			name:           "missing project context",
			body:           `{"events":[{"method":"GET","path":"/a","statusCode":200}]}`,
			authenticated:  false,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed body",
			body:           `not json`,
			authenticated:  true,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty batch rejected",
			body:           `{"events":[]}`,
			authenticated:  true,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "event without method rejected",
			body:           `{"events":[{"path":"/a","statusCode":200}]}`,
			authenticated:  true,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockEvents.Events = nil

			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewBufferString(tt.body))
			if tt.authenticated {
				req = req.WithContext(context.WithValue(req.Context(), middleware.ProjectKey, p))
			}
			rr := httptest.NewRecorder()

			handler.Ingest(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", status, tt.expectedStatus)
			}
			if len(mockEvents.Events) != tt.expectedEvents {
				t.Errorf("stored %d events, want %d", len(mockEvents.Events), tt.expectedEvents)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	mockRepo := testutil.NewMockProjectRepository()
	mockRepo.Projects["p1"] = &project.Project{ID: "p1", Name: "Checkout API", APIKey: "as_test"}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetProject(r); !ok {
			t.Error("project missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})
	wrapped := middleware.APIKeyAuth(mockRepo)(next)

	tests := []struct {
		name           string
		header         string
		value          string
		expectedStatus int
	}{
		{
			name:           "valid X-API-Key",
			header:         "X-API-Key",
			value:          "as_test",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid bearer token",
			header:         "Authorization",
			value:          "Bearer as_test",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown key",
			header:         "X-API-Key",
			value:          "as_wrong",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()

			wrapped.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("got status %v, want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}
