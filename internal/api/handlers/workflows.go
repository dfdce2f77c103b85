package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
)

type WorkflowHandler struct {
	db *gorm.DB
}

func NewWorkflowHandler(db *gorm.DB) *WorkflowHandler {
	return &WorkflowHandler{db: db}
}

// WorkflowActionRequest represents one action in a workflow definition
type WorkflowActionRequest struct {
	ActionType string                 `json:"action_type"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// CreateWorkflowRequest represents the request to create a workflow
type CreateWorkflowRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	TriggerType string                  `json:"trigger_type"`
	Conditions  map[string]interface{}  `json:"conditions,omitempty"`
	Actions     []WorkflowActionRequest `json:"actions"`
}

func (r CreateWorkflowRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if !models.ValidTriggerType(r.TriggerType) {
		errors["trigger_type"] = "Invalid trigger type"
	}
	if len(r.Actions) == 0 {
		errors["actions"] = "At least one action is required"
	}
	for i, a := range r.Actions {
		if !models.ValidActionType(a.ActionType) {
			errors["actions"] = "Invalid action type at index " + strconv.Itoa(i)
			break
		}
	}
	return errors
}

// UpdateWorkflowRequest represents the request to update a workflow. When
// Actions is present the existing action list is replaced wholesale.
type UpdateWorkflowRequest struct {
	Name        *string                 `json:"name,omitempty"`
	Description *string                 `json:"description,omitempty"`
	TriggerType *string                 `json:"trigger_type,omitempty"`
	Conditions  map[string]interface{}  `json:"conditions,omitempty"`
	Actions     []WorkflowActionRequest `json:"actions,omitempty"`
}

// List handles GET /api/workflows
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.Model(&models.Workflow{})

	if trigger := r.URL.Query().Get("trigger_type"); trigger != "" {
		query = query.Where("trigger_type = ?", trigger)
	}
	if active := r.URL.Query().Get("active"); active != "" {
		query = query.Where("active = ?", active == "true")
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count workflows"})
		return
	}

	var workflows []models.Workflow
	if err := query.
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("action_order ASC")
		}).
		Order("active DESC, name ASC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&workflows).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list workflows"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginated(workflows, total, pagination))
}

// Create handles POST /api/workflows
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	workflow := models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		TriggerType: req.TriggerType,
		Conditions:  req.Conditions,
		Active:      true,
		CreatedBy:   middleware.GetUserID(r.Context()),
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workflow).Error; err != nil {
			return err
		}
		return createActions(tx, workflow.ID, req.Actions)
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create workflow"})
		return
	}

	h.db.Preload("Actions", func(db *gorm.DB) *gorm.DB {
		return db.Order("action_order ASC")
	}).First(&workflow, "id = ?", workflow.ID)

	writeJSON(w, http.StatusCreated, workflow)
}

// Get handles GET /api/workflows/:id
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid workflow ID"})
		return
	}

	var workflow models.Workflow
	if err := h.db.
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("action_order ASC")
		}).
		Preload("Creator").
		First(&workflow, "id = ?", workflowID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Workflow not found"})
		return
	}

	writeJSON(w, http.StatusOK, workflow)
}

// Update handles PUT /api/workflows/:id. Supplying actions replaces the
// whole list atomically.
func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid workflow ID"})
		return
	}

	var req UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var workflow models.Workflow
	if err := h.db.First(&workflow, "id = ?", workflowID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Workflow not found"})
		return
	}

	if !principal(r).CanManage(workflow.CreatedBy) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if req.TriggerType != nil && !models.ValidTriggerType(*req.TriggerType) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"trigger_type": "Invalid trigger type"},
		})
		return
	}
	for i, a := range req.Actions {
		if !models.ValidActionType(a.ActionType) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"actions": "Invalid action type at index " + strconv.Itoa(i)},
			})
			return
		}
	}

	if req.Name != nil && *req.Name != "" {
		workflow.Name = *req.Name
	}
	if req.Description != nil {
		workflow.Description = *req.Description
	}
	if req.TriggerType != nil {
		workflow.TriggerType = *req.TriggerType
	}
	if req.Conditions != nil {
		workflow.Conditions = req.Conditions
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&workflow).Error; err != nil {
			return err
		}
		if req.Actions == nil {
			return nil
		}
		if err := tx.Delete(&models.WorkflowAction{}, "workflow_id = ?", workflow.ID).Error; err != nil {
			return err
		}
		return createActions(tx, workflow.ID, req.Actions)
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update workflow"})
		return
	}

	h.db.Preload("Actions", func(db *gorm.DB) *gorm.DB {
		return db.Order("action_order ASC")
	}).First(&workflow, "id = ?", workflow.ID)

	writeJSON(w, http.StatusOK, workflow)
}

// Delete handles DELETE /api/workflows/:id
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid workflow ID"})
		return
	}

	var workflow models.Workflow
	if err := h.db.First(&workflow, "id = ?", workflowID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Workflow not found"})
		return
	}

	if !principal(r).CanManage(workflow.CreatedBy) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.WorkflowAction{}, "workflow_id = ?", workflowID).Error; err != nil {
			return err
		}
		return tx.Delete(&workflow).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete workflow"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Workflow deleted"})
}

// Toggle handles POST /api/workflows/:id/toggle
func (h *WorkflowHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid workflow ID"})
		return
	}

	var workflow models.Workflow
	if err := h.db.First(&workflow, "id = ?", workflowID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Workflow not found"})
		return
	}

	if !principal(r).CanManage(workflow.CreatedBy) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	// Update writes the flipped value back into the struct as well.
	if err := h.db.Model(&workflow).Update("active", !workflow.Active).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to toggle workflow"})
		return
	}

	writeJSON(w, http.StatusOK, workflow)
}

func createActions(tx *gorm.DB, workflowID uuid.UUID, actions []WorkflowActionRequest) error {
	for i, a := range actions {
		action := models.WorkflowAction{
			WorkflowID: workflowID,
			ActionType: a.ActionType,
			Order:      i + 1,
			Params:     a.Params,
		}
		if err := tx.Create(&action).Error; err != nil {
			return err
		}
	}
	return nil
}
