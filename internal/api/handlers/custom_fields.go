package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
)

type CustomFieldHandler struct {
	db *gorm.DB
}

func NewCustomFieldHandler(db *gorm.DB) *CustomFieldHandler {
	return &CustomFieldHandler{db: db}
}

// CreateCustomFieldRequest represents the request to create a custom field
type CreateCustomFieldRequest struct {
	Name      string   `json:"name"`
	FieldType string   `json:"field_type"`
	Required  bool     `json:"required"`
	Options   []string `json:"options,omitempty"`
}

func (r CreateCustomFieldRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if !models.ValidFieldType(r.FieldType) {
		errors["field_type"] = "Invalid field type"
	}
	if r.FieldType == models.FieldTypeSelect && len(r.Options) == 0 {
		errors["options"] = "Select fields require options"
	}
	return errors
}

// UpdateCustomFieldRequest represents the request to update a custom field
type UpdateCustomFieldRequest struct {
	Name     *string  `json:"name,omitempty"`
	Required *bool    `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

// List handles GET /api/custom-fields
func (h *CustomFieldHandler) List(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.CustomField{})

	// Inactive definitions are hidden unless explicitly requested.
	// show_all is the older spelling some clients still send.
	q := r.URL.Query()
	if q.Get("include_inactive") != "true" && q.Get("show_all") != "true" {
		query = query.Where("active = ?", true)
	}

	var fields []models.CustomField
	if err := query.Order("created_at ASC").Find(&fields).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list custom fields"})
		return
	}

	writeJSON(w, http.StatusOK, fields)
}

// Create handles POST /api/custom-fields
func (h *CustomFieldHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	var existing models.CustomField
	if err := h.db.First(&existing, "name = ?", req.Name).Error; err == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Custom field already exists"})
		return
	}

	field := models.CustomField{
		Name:      req.Name,
		FieldType: req.FieldType,
		Required:  req.Required,
		Options:   req.Options,
		Active:    true,
	}

	if err := h.db.Create(&field).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create custom field"})
		return
	}

	writeJSON(w, http.StatusCreated, field)
}

// Get handles GET /api/custom-fields/:id
func (h *CustomFieldHandler) Get(w http.ResponseWriter, r *http.Request) {
	fieldID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid custom field ID"})
		return
	}

	var field models.CustomField
	if err := h.db.First(&field, "id = ?", fieldID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Custom field not found"})
		return
	}

	writeJSON(w, http.StatusOK, field)
}

// Update handles PUT /api/custom-fields/:id
func (h *CustomFieldHandler) Update(w http.ResponseWriter, r *http.Request) {
	fieldID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid custom field ID"})
		return
	}

	var req UpdateCustomFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var field models.CustomField
	if err := h.db.First(&field, "id = ?", fieldID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Custom field not found"})
		return
	}

	if req.Name != nil && *req.Name != "" {
		field.Name = *req.Name
	}
	if req.Required != nil {
		field.Required = *req.Required
	}
	if req.Options != nil {
		field.Options = req.Options
	}
	if req.Active != nil {
		field.Active = *req.Active
	}

	if err := h.db.Save(&field).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update custom field"})
		return
	}

	writeJSON(w, http.StatusOK, field)
}

// Delete handles DELETE /api/custom-fields/:id. A definition with stored
// values is deactivated instead of removed so those values keep resolving.
func (h *CustomFieldHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fieldID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid custom field ID"})
		return
	}

	var field models.CustomField
	if err := h.db.First(&field, "id = ?", fieldID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Custom field not found"})
		return
	}

	var valueCount int64
	if err := h.db.Model(&models.CustomFieldValue{}).
		Where("custom_field_id = ?", fieldID).
		Count(&valueCount).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete custom field"})
		return
	}

	if valueCount > 0 {
		if err := h.db.Model(&field).Update("active", false).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete custom field"})
			return
		}
		writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Custom field deactivated"})
		return
	}

	if err := h.db.Delete(&field).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete custom field"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Custom field deleted"})
}

// validateFieldValue checks a raw value against the field's declared type.
func validateFieldValue(field *models.CustomField, raw string) string {
	if raw == "" {
		if field.Required {
			return "Value is required"
		}
		return ""
	}

	switch field.FieldType {
	case models.FieldTypeNumber:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return "Value must be a number"
		}
	case models.FieldTypeDate:
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return "Value must be a date (YYYY-MM-DD)"
		}
	case models.FieldTypeCheckbox:
		if raw != "true" && raw != "false" {
			return "Value must be true or false"
		}
	case models.FieldTypeSelect:
		for _, opt := range field.Options {
			if opt == raw {
				return ""
			}
		}
		return "Value is not one of the field options"
	}

	return ""
}
