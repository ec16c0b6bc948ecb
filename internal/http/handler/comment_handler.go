package handler

import (
	"encoding/json"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

// CommentHandler serves the polymorphic comment threads hanging off quotes,
// invoices, projects, tickets and the other owner kinds.
type CommentHandler struct {
	commentService *service.CommentService
	logger         *zap.Logger
}

func NewCommentHandler(commentService *service.CommentService, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		logger:         logger,
	}
}

func (h *CommentHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	kind, ownerID, ok := parseOwnerParams(w, r)
	if !ok {
		return
	}

	comments, err := h.commentService.ListByOwner(r.Context(), kind, ownerID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list comments")
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind, ownerID, ok := parseOwnerParams(w, r)
	if !ok {
		return
	}

	var req domain.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	comment, err := h.commentService.Create(r.Context(), kind, ownerID, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create comment")
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// Delete removes a comment. Authors may delete their own; staff anyone's.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.commentService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
