package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/storage"
	"github.com/douglas-germano/advantage-crm-backend/internal/tasks"
)

// maxUploadSize caps document uploads at 25 MB.
const maxUploadSize = 25 << 20

type DocumentHandler struct {
	db          *gorm.DB
	local       storage.Store
	remote      storage.Store
	migrator    *storage.Migrator
	asynqClient *asynq.Client
	baseURL     string
}

func NewDocumentHandler(db *gorm.DB, local, remote storage.Store, migrator *storage.Migrator, asynqClient *asynq.Client, baseURL string) *DocumentHandler {
	return &DocumentHandler{
		db:          db,
		local:       local,
		remote:      remote,
		migrator:    migrator,
		asynqClient: asynqClient,
		baseURL:     baseURL,
	}
}

// UpdateDocumentRequest represents the request to update document metadata
type UpdateDocumentRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// MigrateRequest represents the request to move local documents to S3
type MigrateRequest struct {
	DeleteLocal bool `json:"delete_local"`
	Async       bool `json:"async"`
}

// List handles GET /api/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.Model(&models.Document{})

	if entityType := r.URL.Query().Get("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
		if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
			query = query.Where("entity_id = ?", entityID)
		}
	}
	if commID := r.URL.Query().Get("communication_id"); commID != "" {
		query = query.Where("communication_id = ?", commID)
	}
	if backend := r.URL.Query().Get("storage_backend"); backend != "" {
		query = query.Where("storage_backend = ?", backend)
	}
	if isPublic := r.URL.Query().Get("is_public"); isPublic != "" {
		query = query.Where("is_public = ?", isPublic == "true")
	}
	if uploadedBy := r.URL.Query().Get("uploaded_by"); uploadedBy != "" {
		query = query.Where("uploaded_by = ?", uploadedBy)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("title LIKE ? OR filename LIKE ? OR description LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count documents"})
		return
	}

	var docs []models.Document
	if err := query.
		Preload("Uploader").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&docs).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list documents"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginated(docs, total, pagination))
}

// Upload handles POST /api/documents (multipart/form-data)
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid multipart request"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"file": "File is required"},
		})
		return
	}
	defer file.Close()

	original := filepath.Base(header.Filename)
	title := r.FormValue("title")
	if title == "" {
		title = original
	}

	doc := models.Document{
		Title:            title,
		Filename:         original,
		OriginalFilename: original,
		ContentType:      header.Header.Get("Content-Type"),
		Size:             header.Size,
		Description:      r.FormValue("description"),
		StorageBackend:   models.StorageBackendLocal,
		IsPublic:         r.FormValue("is_public") == "true",
		UploadedBy:       middleware.GetUserID(r.Context()),
	}

	store := h.local
	if r.FormValue("storage_backend") == models.StorageBackendS3 {
		if h.remote == nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Remote storage is not configured"})
			return
		}
		store = h.remote
		doc.StorageBackend = models.StorageBackendS3
	}

	if entityType := r.FormValue("entity_type"); entityType != "" {
		entityID, err := uuid.Parse(r.FormValue("entity_id"))
		if err != nil || !models.EntityType(entityType).Valid() {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid entity reference"})
			return
		}
		doc.EntityRef = models.EntityRef{
			EntityType: models.EntityType(entityType),
			EntityID:   entityID,
		}
		if err := doc.EntityRef.Resolve(h.db); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Referenced entity not found"})
			return
		}
	}

	if commIDStr := r.FormValue("communication_id"); commIDStr != "" {
		commID, err := uuid.Parse(commIDStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid communication ID"})
			return
		}
		var comm models.Communication
		if err := h.db.First(&comm, "id = ?", commID).Error; err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Communication not found"})
			return
		}
		doc.CommunicationID = &commID
	}

	doc.StorageKey = uuid.New().String() + filepath.Ext(doc.Filename)

	if err := store.Put(r.Context(), doc.StorageKey, doc.ContentType, file); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store file"})
		return
	}

	if err := h.db.Create(&doc).Error; err != nil {
		_ = store.Delete(r.Context(), doc.StorageKey)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create document"})
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// Get handles GET /api/documents/:id. Anonymous callers only see public
// documents or ones they hold the access code for.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Download handles GET /api/documents/:id/download
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	store := h.storeFor(doc)
	if store == nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Storage backend unavailable"})
		return
	}

	if r.URL.Query().Get("redirect") == "true" {
		if signer, ok := store.(storage.URLSigner); ok {
			url, err := signer.PresignGet(r.Context(), doc.StorageKey, 15*time.Minute)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to sign download URL"})
				return
			}
			http.Redirect(w, r, url, http.StatusFound)
			return
		}
		// Local objects have no direct URL; fall through and proxy.
	}

	body, err := store.Get(r.Context(), doc.StorageKey)
	if err != nil {
		if err == storage.ErrNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Stored file is missing"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to read file"})
		return
	}
	defer body.Close()

	if doc.ContentType != "" {
		w.Header().Set("Content-Type", doc.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	disposition := "attachment"
	if doc.IsImage() {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, doc.Filename))

	_, _ = io.Copy(w, body)
}

// Update handles PUT /api/documents/:id
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid document ID"})
		return
	}

	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var doc models.Document
	if err := h.db.First(&doc, "id = ?", docID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Document not found"})
		return
	}

	if !principal(r).CanManage(doc.UploadedBy) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if req.Title != nil && *req.Title != "" {
		doc.Title = *req.Title
	}
	if req.Description != nil {
		doc.Description = *req.Description
	}
	if req.IsPublic != nil {
		doc.IsPublic = *req.IsPublic
	}

	if err := h.db.Save(&doc).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update document"})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/documents/:id
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid document ID"})
		return
	}

	var doc models.Document
	if err := h.db.First(&doc, "id = ?", docID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Document not found"})
		return
	}

	if !principal(r).CanManage(doc.UploadedBy) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	// Object first: if it cannot be removed the row survives and the delete
	// can be retried.
	if err := deleteDocumentObject(r.Context(), &doc, h.local, h.remote); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete stored file"})
		return
	}

	if err := h.db.Delete(&doc).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete document"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Document deleted"})
}

// Share handles POST /api/documents/:id/share. It mints an access code that
// gates unauthenticated reads of a private document.
func (h *DocumentHandler) Share(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid document ID"})
		return
	}

	var doc models.Document
	if err := h.db.First(&doc, "id = ?", docID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Document not found"})
		return
	}

	if !principal(r).CanManage(doc.UploadedBy) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	code, err := generateAccessCode()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to share document"})
		return
	}

	if err := h.db.Model(&doc).Update("access_code", code).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to share document"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_code": code,
		"url":         fmt.Sprintf("%s/api/documents/%s/download?access_code=%s", h.baseURL, doc.ID, code),
	})
}

// Migrate handles POST /api/documents/migrate. Synchronous runs return the
// full report; async requests are queued and acknowledged with 202.
func (h *DocumentHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Remote storage is not configured"})
		return
	}

	var req MigrateRequest
	if r.Body != nil {
		// An empty body means defaults
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if r.URL.Query().Get("async") == "true" {
		req.Async = true
	}

	if req.Async {
		if h.asynqClient == nil {
			writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Background queue unavailable"})
			return
		}
		task, err := tasks.NewDocumentMigrateTask(tasks.DocumentMigratePayload{
			RequestedBy: middleware.GetUserID(r.Context()),
			DeleteLocal: req.DeleteLocal,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to queue migration"})
			return
		}
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to queue migration"})
			return
		}
		writeJSON(w, http.StatusAccepted, dto.SuccessResponse{Message: "Migration queued"})
		return
	}

	report, err := h.migrator.MigrateAll(r.Context(), req.DeleteLocal)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Migration failed"})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// loadAccessible fetches the document and enforces the public/access-code
// gate for anonymous callers.
func (h *DocumentHandler) loadAccessible(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid document ID"})
		return nil, false
	}

	var doc models.Document
	if err := h.db.First(&doc, "id = ?", docID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Document not found"})
		return nil, false
	}

	if middleware.GetUserID(r.Context()) == uuid.Nil {
		if !doc.Accessible(r.URL.Query().Get("access_code")) {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Authentication required"})
			return nil, false
		}
	}

	return &doc, true
}

func (h *DocumentHandler) storeFor(doc *models.Document) storage.Store {
	if doc.StorageBackend == models.StorageBackendS3 {
		return h.remote
	}
	return h.local
}

// deleteDocumentObject removes a document's payload from whichever backend
// holds it.
func deleteDocumentObject(ctx context.Context, doc *models.Document, local, remote storage.Store) error {
	store := local
	if doc.StorageBackend == models.StorageBackendS3 {
		store = remote
	}
	if store == nil {
		return nil
	}
	return store.Delete(ctx, doc.StorageKey)
}

const accessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateAccessCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = accessCodeAlphabet[int(b)%len(accessCodeAlphabet)]
	}
	return string(buf), nil
}
