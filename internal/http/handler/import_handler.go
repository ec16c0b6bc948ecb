package handler

import (
	"io"
	"net/http"

	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

// ImportHandler accepts CSV uploads for bulk data loading. The CSV may come
// either as a multipart "file" part or as a raw text/csv body.
type ImportHandler struct {
	importService *service.ImportService
	logger        *zap.Logger
}

func NewImportHandler(importService *service.ImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		logger:        logger,
	}
}

func (h *ImportHandler) ImportClients(w http.ResponseWriter, r *http.Request) {
	data, cleanup, ok := h.csvBody(w, r)
	if !ok {
		return
	}
	defer cleanup()

	result, err := h.importService.ImportClients(r.Context(), data)
	if err != nil {
		respondServiceError(w, h.logger, err, "import clients")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) ImportInvoices(w http.ResponseWriter, r *http.Request) {
	data, cleanup, ok := h.csvBody(w, r)
	if !ok {
		return
	}
	defer cleanup()

	result, err := h.importService.ImportInvoices(r.Context(), data)
	if err != nil {
		respondServiceError(w, h.logger, err, "import invoices")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) csvBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), bool) {
	const maxBytes = 32 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Missing 'file' form field")
			return nil, nil, false
		}
		return file, func() { _ = file.Close() }, true
	}

	// Not multipart; take the body as-is
	return r.Body, func() {}, true
}
