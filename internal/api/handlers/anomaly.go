package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/apisentinel/apisentinel/internal/api/dto"
	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/utils"
	"github.com/apisentinel/apisentinel/internal/services"
)

type AnomalyHandler struct {
	service *services.AnomalyService
	logger  *logger.Logger
}

func NewAnomalyHandler(service *services.AnomalyService, log *logger.Logger) *AnomalyHandler {
	return &AnomalyHandler{service: service, logger: log}
}

// List returns anomalies with pagination and filtering
func (h *AnomalyHandler) List(w http.ResponseWriter, r *http.Request) {
	params := utils.ParsePaginationParams(r)

	filter := anomaly.Filter{
		ProjectID: r.URL.Query().Get("project_id"),
		Kind:      r.URL.Query().Get("kind"),
		Severity:  r.URL.Query().Get("severity"),
	}
	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err == nil {
			filter.Resolved = &resolved
		}
	}

	anomalies, total, err := h.service.List(r.Context(), filter, params.PageSize, params.Offset)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to list anomalies")
		return
	}

	dtos := make([]dto.AnomalyDTO, len(anomalies))
	for i, a := range anomalies {
		dtos[i] = toAnomalyDTO(a)
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(dtos, params.Page, params.PageSize, total))
}

// Get returns a single anomaly by ID
func (h *AnomalyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to get anomaly")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, toAnomalyDTO(a))
}

// Resolve marks an anomaly as resolved
func (h *AnomalyHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Resolve(r.Context(), id); err != nil {
		utils.WriteAppError(w, err, "Failed to resolve anomaly")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Anomaly resolved", nil)
}

// ListDeliveries returns the channel delivery attempts for an anomaly
func (h *AnomalyHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcomes, err := h.service.ListDeliveries(r.Context(), id)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to list deliveries")
		return
	}

	dtos := make([]dto.DeliveryOutcomeDTO, len(outcomes))
	for i, o := range outcomes {
		dtos[i] = dto.DeliveryOutcomeDTO{
			ID:          o.ID,
			ChannelID:   o.ChannelID,
			ChannelKind: o.ChannelKind,
			Status:      o.Status,
			Error:       o.Error,
			AttemptedAt: o.AttemptedAt,
		}
	}

	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// GetSummary returns per-severity anomaly counts for a project
func (h *AnomalyHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")

	summary, err := h.service.GetSummary(r.Context(), projectID)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to get summary")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, summary)
}

func toAnomalyDTO(a *anomaly.Anomaly) dto.AnomalyDTO {
	return dto.AnomalyDTO{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		Kind:           a.Kind,
		EndpointMethod: a.EndpointMethod,
		EndpointPath:   a.EndpointPath,
		ClientIP:       a.ClientIP,
		Message:        a.Message,
		Severity:       a.Severity,
		CreatedAt:      a.CreatedAt,
		Resolved:       a.Resolved,
		ResolvedAt:     a.ResolvedAt,
		Processed:      a.Processed,
	}
}
