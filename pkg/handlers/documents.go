package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
)

const (
	// multipartOverheadBytes covers form fields and part headers around the file.
	multipartOverheadBytes = 1 << 20
	multipartMemoryBytes   = 8 << 20
)

// DocumentsHandler handles document upload, download and removal.
type DocumentsHandler struct {
	documentService services.DocumentService
	maxUploadBytes  int64
	logger          *zap.Logger
}

// NewDocumentsHandler creates a new documents handler.
// maxUploadBytes <= 0 selects services.DefaultMaxUploadBytes.
func NewDocumentsHandler(documentService services.DocumentService, maxUploadBytes int64, logger *zap.Logger) *DocumentsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.DefaultMaxUploadBytes
	}
	return &DocumentsHandler{
		documentService: documentService,
		maxUploadBytes:  maxUploadBytes,
		logger:          logger,
	}
}

// RegisterRoutes registers the document routes on the given mux.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects/{id}/documents", authMiddleware.RequireAuth(h.Upload))
	mux.HandleFunc("GET /api/projects/{id}/documents", authMiddleware.RequireAuth(h.ListByProject))
	mux.HandleFunc("GET /api/documents/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("GET /api/documents/{id}/download", authMiddleware.RequireAuth(h.Download))
	mux.HandleFunc("DELETE /api/documents/{id}", authMiddleware.RequireAuth(h.Delete))
}

// Upload handles POST /api/projects/{id}/documents
// Expects multipart/form-data with a "file" part and an optional "title" field.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverheadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
				"File exceeds the upload limit of "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form upload")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("Failed to remove multipart temp files", zap.Error(err))
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing_file", "The \"file\" part is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
			"File exceeds the upload limit of "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
		return
	}

	doc, err := h.documentService.Upload(r.Context(), projectID, services.UploadInput{
		Title:       r.FormValue("title"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err, "upload document")
		return
	}

	respond(w, h.logger, http.StatusCreated, doc)
}

// ListByProject handles GET /api/projects/{id}/documents
func (h *DocumentsHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	docs, err := h.documentService.ListByProject(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "list documents")
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}

	respond(w, h.logger, http.StatusOK, docs)
}

// Get handles GET /api/documents/{id}
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	docID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	doc, err := h.documentService.GetByID(r.Context(), docID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get document")
		return
	}

	respond(w, h.logger, http.StatusOK, doc)
}

// Download handles GET /api/documents/{id}/download
// Streams the stored content as an attachment.
func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	docID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	doc, body, err := h.documentService.Open(r.Context(), docID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "download document")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("Document download interrupted",
			zap.String("document_id", docID.String()),
			zap.Error(err))
	}
}

// Delete handles DELETE /api/documents/{id}
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.documentService.Delete(r.Context(), docID); err != nil {
		WriteServiceError(w, h.logger, err, "delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
