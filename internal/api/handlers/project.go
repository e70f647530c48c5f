package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apisentinel/apisentinel/internal/api/dto"
	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/utils"
	"github.com/apisentinel/apisentinel/internal/pkg/validator"
	"github.com/apisentinel/apisentinel/internal/services"
)

type ProjectHandler struct {
	service   *services.ProjectService
	logger    *logger.Logger
	validator *validator.Validator
}

func NewProjectHandler(service *services.ProjectService, log *logger.Logger, val *validator.Validator) *ProjectHandler {
	return &ProjectHandler{service: service, logger: log, validator: val}
}

// Create creates a new monitored project
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}

	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	p, err := h.service.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to create project")
		return
	}

	// The API key is returned once, on creation only
	utils.WriteSuccess(w, http.StatusCreated, dto.CreateProjectResponse{
		ProjectDTO: toProjectDTO(p),
		APIKey:     p.APIKey,
	})
}

// List returns all projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		utils.WriteAppError(w, err, "Failed to list projects")
		return
	}

	dtos := make([]dto.ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}

	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Get returns a single project by ID
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		utils.WriteAppError(w, err, "Failed to get project")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, toProjectDTO(p))
}

func toProjectDTO(p *project.Project) dto.ProjectDTO {
	return dto.ProjectDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		RequestCount: p.RequestCount,
		CreatedAt:    p.CreatedAt,
	}
}
