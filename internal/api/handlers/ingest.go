package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/apisentinel/apisentinel/internal/api/dto"
	"github.com/apisentinel/apisentinel/internal/api/middleware"
	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/utils"
	"github.com/apisentinel/apisentinel/internal/pkg/validator"
	"github.com/apisentinel/apisentinel/internal/services"
)

// IngestHandler accepts batches of captured API requests
type IngestHandler struct {
	service   *services.ProjectService
	logger    *logger.Logger
	validator *validator.Validator
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service *services.ProjectService, log *logger.Logger, val *validator.Validator) *IngestHandler {
	return &IngestHandler{service: service, logger: log, validator: val}
}

// Ingest stores a batch of request events for the authenticated project
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetProject(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Missing API key"))
		return
	}

	var req dto.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	now := time.Now().UTC()
	events := make([]*event.RequestEvent, len(req.Events))
	for i, e := range req.Events {
		createdAt := now
		if e.Timestamp != nil {
			createdAt = e.Timestamp.UTC()
		}
		events[i] = &event.RequestEvent{
			Method:      e.Method,
			Path:        e.Path,
			StatusCode:  e.StatusCode,
			LatencyMS:   e.LatencyMS,
			ClientIP:    e.ClientIP,
			UserAgent:   e.UserAgent,
			CountryCode: e.CountryCode,
			CreatedAt:   createdAt,
		}
	}

	if err := h.service.Ingest(r.Context(), p.ID, events); err != nil {
		utils.WriteAppError(w, err, "Failed to ingest events")
		return
	}

	utils.WriteSuccess(w, http.StatusAccepted, map[string]int{"accepted": len(events)})
}
