package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

// FileHandler serves uploads attached to any owning entity, including the
// signature images that drive the quote lifecycle.
type FileHandler struct {
	fileService *service.FileService
	maxSizeMB   int64
	logger      *zap.Logger
}

func NewFileHandler(fileService *service.FileService, maxSizeMB int64, logger *zap.Logger) *FileHandler {
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	return &FileHandler{
		fileService: fileService,
		maxSizeMB:   maxSizeMB,
		logger:      logger,
	}
}

func (h *FileHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	kind, ownerID, ok := parseOwnerParams(w, r)
	if !ok {
		return
	}

	files, err := h.fileService.ListByOwner(r.Context(), kind, ownerID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list files")
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// Upload accepts a multipart form with a "file" part. The optional "kind"
// field marks signature uploads on quotes.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerKind, ownerID, ok := parseOwnerParams(w, r)
	if !ok {
		return
	}

	maxBytes := h.maxSizeMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Upload exceeds the %d MB limit", h.maxSizeMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing 'file' form field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	kind := domain.FileKind(r.FormValue("kind"))

	dto, err := h.fileService.Upload(r.Context(), ownerKind, ownerID, kind, header.Filename, contentType, file)
	if err != nil {
		respondServiceError(w, h.logger, err, "upload file")
		return
	}
	respondJSON(w, http.StatusCreated, dto)
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	reader, filename, contentType, err := h.fileService.Download(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "download file")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed to stream file", zap.String("file_id", id.String()), zap.Error(err))
	}
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.fileService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
