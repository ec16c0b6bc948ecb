package handler

import (
	"encoding/json"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	logger         *zap.Logger
}

func NewProjectHandler(projectService *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	status := domain.ProjectStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid project status")
		return
	}

	result, err := h.projectService.List(r.Context(), page, pageSize, status, queryUUID(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list projects")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	project, err := h.projectService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create project")
		return
	}

	w.Header().Set("Location", "/api/v1/projects/"+project.ID.String())
	respondJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.UpdateProjectStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	project, err := h.projectService.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update project status")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// AddTask appends a task; every task weight is rebalanced to an equal share.
func (h *ProjectHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	project, err := h.projectService.AddTask(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "add task")
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := parseIDParam(w, r, "taskID")
	if !ok {
		return
	}

	project, err := h.projectService.RemoveTask(r.Context(), projectID, taskID)
	if err != nil {
		respondServiceError(w, h.logger, err, "remove task")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := parseIDParam(w, r, "taskID")
	if !ok {
		return
	}

	var req domain.UpdateTaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	project, err := h.projectService.UpdateTaskStatus(r.Context(), projectID, taskID, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update task status")
		return
	}
	respondJSON(w, http.StatusOK, project)
}
