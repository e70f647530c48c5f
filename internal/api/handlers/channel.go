package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apisentinel/apisentinel/internal/api/dto"
	"github.com/apisentinel/apisentinel/internal/domain/channel"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/utils"
	"github.com/apisentinel/apisentinel/internal/pkg/validator"
	"github.com/apisentinel/apisentinel/internal/services"
)

type ChannelHandler struct {
	service   *services.ChannelService
	logger    *logger.Logger
	validator *validator.Validator
}

func NewChannelHandler(service *services.ChannelService, log *logger.Logger, val *validator.Validator) *ChannelHandler {
	return &ChannelHandler{service: service, logger: log, validator: val}
}

// Create registers a notification channel for a project
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req dto.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	c, err := h.service.Create(r.Context(), projectID, req.Kind, req.Config)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to create channel")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, toChannelDTO(c))
}

// List returns all channels configured for a project
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	channels, err := h.service.ListForProject(r.Context(), projectID)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to list channels")
		return
	}

	dtos := make([]dto.ChannelDTO, len(channels))
	for i, c := range channels {
		dtos[i] = toChannelDTO(c)
	}

	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Get returns a single channel by ID
func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to get channel")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, toChannelDTO(c))
}

// Update replaces a channel's config or toggles it
func (h *ChannelHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.UpdateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	c, err := h.service.Update(r.Context(), id, req.Config, req.Active)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to update channel")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, toChannelDTO(c))
}

// Delete removes a channel
func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		utils.WriteAppError(w, err, "Failed to delete channel")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Channel deleted", nil)
}

func toChannelDTO(c *channel.NotificationChannel) dto.ChannelDTO {
	return dto.ChannelDTO{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Kind:      c.Kind,
		Config:    c.Config,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
	}
}
