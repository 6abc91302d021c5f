package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/mapper"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentHandler serves order document upload and download
type DocumentHandler struct {
	documentService *service.DocumentService
	maxUploadBytes  int64
	logger          *zap.Logger
}

func NewDocumentHandler(documentService *service.DocumentService, maxUploadSizeMB int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		maxUploadBytes:  maxUploadSizeMB * 1024 * 1024,
		logger:          logger,
	}
}

// Upload godoc
// @Summary Upload a document to an order
// @Description Stores a scanned or photographed source document against the order. Multipart form with a "file" part.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param file formData file true "Document file"
// @Success 201 {object} domain.OrderDocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 413 {object} domain.APIError "File too large"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/documents [post]
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the maximum upload size of %d bytes", h.maxUploadBytes))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "A 'file' form field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadedBy := ""
	if userCtx, ok := auth.FromContext(r.Context()); ok {
		uploadedBy = userCtx.DisplayName
	}

	doc, err := h.documentService.Upload(r.Context(), orderID, header.Filename, contentType, file, uploadedBy)
	if err != nil {
		h.logger.Error("failed to upload document", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, mapper.ToOrderDocumentDTO(doc))
}

// ListByOrder godoc
// @Summary List documents on an order
// @Tags Documents
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {array} domain.OrderDocumentDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/documents [get]
func (h *DocumentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	docs, err := h.documentService.ListByOrder(r.Context(), orderID)
	if err != nil {
		h.logger.Error("failed to list documents", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDocumentDTOs(docs))
}

// Download godoc
// @Summary Download a document
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {file} binary
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid document ID format")
		return
	}

	doc, reader, err := h.documentService.Download(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", doc.Size))

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed streaming document to client",
			zap.String("document_id", id.String()),
			zap.Error(err))
	}
}
