package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"collabdocs/internal/document/model"
	"collabdocs/internal/document/service"
	"collabdocs/internal/shared"
	"collabdocs/middleware"
	"collabdocs/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// statusFor maps the shared error taxonomy to HTTP statuses. Errors stay
// untouched between the store and here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func identity(r *http.Request) model.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.CreateDocument(r.Context(), identity(r), req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.GetDocument(r.Context(), identity(r), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	var req model.UpdateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.UpdateDocument(r.Context(), identity(r), docID, req.Patch, req.ExpectedVersion)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to update doc %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

// expectedVersion reads the optimistic-concurrency guard from the query
// string for the bodyless mutations (delete, restore).
func expectedVersion(r *http.Request) (int, bool) {
	v, err := strconv.Atoi(r.URL.Query().Get("version"))
	return v, err == nil
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	version, ok := expectedVersion(r)
	if docID == "" || !ok {
		http.Error(w, "Missing docId or version parameter", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.DeleteDocument(r.Context(), identity(r), docID, version)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete document %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) RestoreDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	version, ok := expectedVersion(r)
	if docID == "" || !ok {
		http.Error(w, "Missing docId or version parameter", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.RestoreDocument(r.Context(), identity(r), docID, version)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to restore document %s: %v", docID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) PurgeDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	if err := h.Service.PurgeDocument(r.Context(), identity(r), docID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to purge document %s: %v", docID, err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document purged"))
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docs, err := h.Service.ListDocuments(r.Context(), identity(r))
	if err != nil {
		logger.Sugar.Errorf("Error fetching documents: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, docs)
}

func (h *DocumentHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	share, err := h.Service.CreateShare(r.Context(), identity(r), req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create share: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, share)
}

func (h *DocumentHandler) UpdateShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shareID := r.URL.Query().Get("shareId")
	if shareID == "" {
		http.Error(w, "Missing shareId parameter", http.StatusBadRequest)
		return
	}

	var req model.UpdateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	share, err := h.Service.UpdateShare(r.Context(), identity(r), shareID, req.Permission)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to update share %s: %v", shareID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, share)
}

func (h *DocumentHandler) DeleteShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shareID := r.URL.Query().Get("shareId")
	if shareID == "" {
		http.Error(w, "Missing shareId parameter", http.StatusBadRequest)
		return
	}

	if err := h.Service.DeleteShare(r.Context(), identity(r), shareID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete share %s: %v", shareID, err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Share revoked"))
}

func (h *DocumentHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	shares, err := h.Service.ListShares(r.Context(), identity(r), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if shares == nil {
		shares = []*model.Share{}
	}
	writeJSON(w, shares)
}

func (h *DocumentHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tpl, err := h.Service.CreateTemplate(r.Context(), identity(r), req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create template: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, tpl)
}

func (h *DocumentHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	templates, err := h.Service.ListTemplates(r.Context(), identity(r))
	if err != nil {
		logger.Sugar.Errorf("Error fetching templates: %v", err)
		writeError(w, err)
		return
	}
	if templates == nil {
		templates = []*model.Template{}
	}
	writeJSON(w, templates)
}

func (h *DocumentHandler) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.FromTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TemplateID == "" {
		http.Error(w, "Missing template_id", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.CreateDocumentFromTemplate(r.Context(), identity(r), req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document from template: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, doc)
}

func (h *DocumentHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profile, err := h.Service.Profile(r.Context(), identity(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, profile)
}
