package handler

import (
	"net/http"

	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// ListByTarget returns the newest-first activity trail of one entity.
func (h *ActivityHandler) ListByTarget(w http.ResponseWriter, r *http.Request) {
	kind, targetID, ok := parseOwnerParams(w, r)
	if !ok {
		return
	}

	entries, err := h.activityService.ListByTarget(r.Context(), kind, targetID, queryInt(r, "limit", 50))
	if err != nil {
		respondServiceError(w, h.logger, err, "list activity")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// ListRecent returns the newest activity across the whole workspace.
func (h *ActivityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activityService.ListRecent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		respondServiceError(w, h.logger, err, "list recent activity")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
