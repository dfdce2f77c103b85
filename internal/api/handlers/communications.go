package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/storage"
)

type CommunicationHandler struct {
	db     *gorm.DB
	local  storage.Store
	remote storage.Store
}

func NewCommunicationHandler(db *gorm.DB, local, remote storage.Store) *CommunicationHandler {
	return &CommunicationHandler{db: db, local: local, remote: remote}
}

// CreateCommunicationRequest represents the request to log a communication
type CreateCommunicationRequest struct {
	Type            string     `json:"type"`
	Direction       string     `json:"direction,omitempty"`
	Subject         string     `json:"subject,omitempty"`
	Content         string     `json:"content,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
	EntityType      string     `json:"entity_type"`
	EntityID        string     `json:"entity_id"`
}

func (r CreateCommunicationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if !models.ValidCommType(r.Type) {
		errors["type"] = "Invalid communication type"
	}
	if !models.ValidCommDirection(r.Direction) {
		errors["direction"] = "Invalid direction"
	}
	if r.EntityType == "" || !models.EntityType(r.EntityType).Valid() {
		errors["entity_type"] = "Invalid entity type"
	}
	if r.EntityID == "" {
		errors["entity_id"] = "Entity ID is required"
	} else if _, err := uuid.Parse(r.EntityID); err != nil {
		errors["entity_id"] = "Invalid entity ID format"
	}
	return errors
}

// UpdateCommunicationRequest represents the request to update a communication
type UpdateCommunicationRequest struct {
	Subject         *string    `json:"subject,omitempty"`
	Content         *string    `json:"content,omitempty"`
	Outcome         *string    `json:"outcome,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Direction       *string    `json:"direction,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
}

// List handles GET /api/communications
func (h *CommunicationHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.Model(&models.Communication{})

	if commType := r.URL.Query().Get("type"); commType != "" {
		query = query.Where("type = ?", commType)
	}
	if entityType := r.URL.Query().Get("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
		if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
			query = query.Where("entity_id = ?", entityID)
		}
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if outcome := r.URL.Query().Get("outcome"); outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("subject LIKE ? OR content LIKE ?", like, like)
	}
	// Malformed dates are ignored rather than failing the whole listing.
	if start := r.URL.Query().Get("start_date"); start != "" {
		if day, err := time.Parse("2006-01-02", start); err == nil {
			query = query.Where("occurred_at >= ?", day)
		}
	}
	if end := r.URL.Query().Get("end_date"); end != "" {
		if day, err := time.Parse("2006-01-02", end); err == nil {
			query = query.Where("occurred_at < ?", day.AddDate(0, 0, 1))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count communications"})
		return
	}

	var comms []models.Communication
	if err := query.
		Preload("User").
		Order("occurred_at DESC, created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&comms).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list communications"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginated(comms, total, pagination))
}

// Create handles POST /api/communications
func (h *CommunicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	entityID, _ := uuid.Parse(req.EntityID)
	ref := models.EntityRef{
		EntityType: models.EntityType(req.EntityType),
		EntityID:   entityID,
	}
	if err := ref.Resolve(h.db); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Referenced entity not found"})
		return
	}

	occurredAt := req.OccurredAt
	if occurredAt == nil {
		now := time.Now()
		occurredAt = &now
	}

	comm := models.Communication{
		Type:            req.Type,
		Direction:       req.Direction,
		Subject:         req.Subject,
		Content:         req.Content,
		Outcome:         req.Outcome,
		DurationMinutes: req.DurationMinutes,
		OccurredAt:      occurredAt,
		EntityRef:       ref,
		UserID:          middleware.GetUserID(r.Context()),
	}

	if err := h.db.Create(&comm).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create communication"})
		return
	}

	writeJSON(w, http.StatusCreated, comm)
}

// Get handles GET /api/communications/:id
func (h *CommunicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	commID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid communication ID"})
		return
	}

	var comm models.Communication
	if err := h.db.
		Preload("User").
		Preload("Attachments").
		First(&comm, "id = ?", commID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Communication not found"})
		return
	}

	writeJSON(w, http.StatusOK, comm)
}

// Update handles PUT /api/communications/:id
func (h *CommunicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	commID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid communication ID"})
		return
	}

	var req UpdateCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var comm models.Communication
	if err := h.db.First(&comm, "id = ?", commID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Communication not found"})
		return
	}

	if !principal(r).CanManage(comm.UserID) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if req.Subject != nil {
		comm.Subject = *req.Subject
	}
	if req.Content != nil {
		comm.Content = *req.Content
	}
	if req.Outcome != nil {
		comm.Outcome = *req.Outcome
	}
	if req.DurationMinutes != nil {
		comm.DurationMinutes = req.DurationMinutes
	}
	if req.Direction != nil {
		if !models.ValidCommDirection(*req.Direction) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"direction": "Invalid direction"},
			})
			return
		}
		comm.Direction = *req.Direction
	}
	if req.OccurredAt != nil {
		comm.OccurredAt = req.OccurredAt
	}

	if err := h.db.Save(&comm).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update communication"})
		return
	}

	writeJSON(w, http.StatusOK, comm)
}

// Delete handles DELETE /api/communications/:id. Attached documents are
// removed together with their stored payloads.
func (h *CommunicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	commID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid communication ID"})
		return
	}

	var comm models.Communication
	if err := h.db.Preload("Attachments").First(&comm, "id = ?", commID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Communication not found"})
		return
	}

	if !principal(r).CanManage(comm.UserID) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	// Stored payloads go before the rows so a failure cannot orphan an
	// object behind a deleted record. The rows stay and the delete can be
	// retried.
	for i := range comm.Attachments {
		if err := deleteDocumentObject(r.Context(), &comm.Attachments[i], h.local, h.remote); err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete attachment file"})
			return
		}
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if len(comm.Attachments) > 0 {
			if err := tx.Delete(&models.Document{}, "communication_id = ?", commID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&comm).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete communication"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Communication deleted"})
}
