package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/tasks"
)

type DealHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
}

func NewDealHandler(db *gorm.DB, asynqClient *asynq.Client) *DealHandler {
	return &DealHandler{db: db, asynqClient: asynqClient}
}

// CreateDealRequest represents the request to create a deal. The stage is
// mandatory and determines the pipeline; lead and customer links are optional.
type CreateDealRequest struct {
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Value             float64    `json:"value,omitempty"`
	Probability       int        `json:"probability,omitempty"`
	PipelineStageID   string     `json:"pipeline_stage_id"`
	LeadID            string     `json:"lead_id,omitempty"`
	CustomerID        string     `json:"customer_id,omitempty"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
}

func (r CreateDealRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Title == "" {
		errors["title"] = "Title is required"
	}
	if r.Value < 0 {
		errors["value"] = "Value cannot be negative"
	}
	if r.Probability < 0 || r.Probability > 100 {
		errors["probability"] = "Probability must be between 0 and 100"
	}
	if r.PipelineStageID == "" {
		errors["pipeline_stage_id"] = "Pipeline stage ID is required"
	} else if _, err := uuid.Parse(r.PipelineStageID); err != nil {
		errors["pipeline_stage_id"] = "Invalid stage ID format"
	}
	if r.LeadID != "" {
		if _, err := uuid.Parse(r.LeadID); err != nil {
			errors["lead_id"] = "Invalid lead ID format"
		}
	}
	if r.CustomerID != "" {
		if _, err := uuid.Parse(r.CustomerID); err != nil {
			errors["customer_id"] = "Invalid customer ID format"
		}
	}
	return errors
}

// UpdateDealRequest represents the request to update a deal
type UpdateDealRequest struct {
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Value             *float64   `json:"value,omitempty"`
	Probability       *int       `json:"probability,omitempty"`
	Status            *string    `json:"status,omitempty"`
	PipelineStageID   *string    `json:"pipeline_stage_id,omitempty"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
}

// MoveDealRequest represents the request to move a deal to another stage.
// Clients have sent three spellings for the target over the years; all
// decode into it.
type MoveDealRequest struct {
	StageID         string `json:"stageId,omitempty"`
	StageIDSnake    string `json:"stage_id,omitempty"`
	PipelineStageID string `json:"pipeline_stage_id,omitempty"`
}

func (r MoveDealRequest) stage() string {
	if r.StageID != "" {
		return r.StageID
	}
	if r.StageIDSnake != "" {
		return r.StageIDSnake
	}
	return r.PipelineStageID
}

// List handles GET /api/deals
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.Model(&models.Deal{})

	if pipelineID := r.URL.Query().Get("pipeline_id"); pipelineID != "" {
		query = query.Where("pipeline_id = ?", pipelineID)
	}
	if stageID := r.URL.Query().Get("pipeline_stage_id"); stageID != "" {
		query = query.Where("pipeline_stage_id = ?", stageID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if title := r.URL.Query().Get("title"); title != "" {
		query = query.Where("title LIKE ?", "%"+title+"%")
	}
	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if leadID := r.URL.Query().Get("lead_id"); leadID != "" {
		query = query.Where("lead_id = ?", leadID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count deals"})
		return
	}

	var deals []models.Deal
	if err := query.
		Preload("Customer").
		Preload("PipelineStage").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&deals).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list deals"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginated(deals, total, pagination))
}

// Create handles POST /api/deals. The target stage must exist and it decides
// which pipeline the deal lives on.
func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	stageID, _ := uuid.Parse(req.PipelineStageID)
	var stage models.PipelineStage
	if err := h.db.First(&stage, "id = ?", stageID).Error; err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"pipeline_stage_id": "Pipeline stage not found"},
		})
		return
	}

	var leadID *uuid.UUID
	if req.LeadID != "" {
		id, _ := uuid.Parse(req.LeadID)
		var lead models.Lead
		if err := h.db.First(&lead, "id = ?", id).Error; err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"lead_id": "Lead not found"},
			})
			return
		}
		leadID = &id
	}

	var customerID *uuid.UUID
	if req.CustomerID != "" {
		id, _ := uuid.Parse(req.CustomerID)
		var customer models.Customer
		if err := h.db.First(&customer, "id = ?", id).Error; err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"customer_id": "Customer not found"},
			})
			return
		}
		customerID = &id
	}

	userID := middleware.GetUserID(r.Context())
	deal := models.Deal{
		Title:             req.Title,
		Description:       req.Description,
		Value:             req.Value,
		Probability:       req.Probability,
		Status:            models.DealStatusOpen,
		ExpectedCloseDate: req.ExpectedCloseDate,
		LeadID:            leadID,
		CustomerID:        customerID,
		PipelineID:        stage.PipelineID,
		PipelineStageID:   stage.ID,
		AssignedTo:        &userID,
	}

	if err := h.db.Create(&deal).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create deal"})
		return
	}

	writeJSON(w, http.StatusCreated, deal)
}

// Get handles GET /api/deals/:id
func (h *DealHandler) Get(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid deal ID"})
		return
	}

	var deal models.Deal
	if err := h.db.
		Preload("Customer").
		Preload("Pipeline").
		Preload("PipelineStage").
		Preload("AssignedUser").
		First(&deal, "id = ?", dealID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Deal not found"})
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// Update handles PUT /api/deals/:id
func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid deal ID"})
		return
	}

	var req UpdateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var deal models.Deal
	if err := h.db.First(&deal, "id = ?", dealID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Deal not found"})
		return
	}

	if !principal(r).CanManagePtr(deal.AssignedTo) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if req.Title != nil && *req.Title != "" {
		deal.Title = *req.Title
	}
	if req.Description != nil {
		deal.Description = *req.Description
	}
	if req.Value != nil {
		if *req.Value < 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"value": "Value cannot be negative"},
			})
			return
		}
		deal.Value = *req.Value
	}
	if req.Probability != nil {
		if *req.Probability < 0 || *req.Probability > 100 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"probability": "Probability must be between 0 and 100"},
			})
			return
		}
		deal.Probability = *req.Probability
	}
	if req.ExpectedCloseDate != nil {
		deal.ExpectedCloseDate = req.ExpectedCloseDate
	}
	if req.PipelineStageID != nil {
		stageID, err := uuid.Parse(*req.PipelineStageID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"pipeline_stage_id": "Invalid stage ID format"},
			})
			return
		}
		var stage models.PipelineStage
		if err := h.db.First(&stage, "id = ?", stageID).Error; err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"pipeline_stage_id": "Pipeline stage not found"},
			})
			return
		}
		deal.PipelineID = stage.PipelineID
		deal.PipelineStageID = stage.ID
	}

	var trigger string
	if req.Status != nil && *req.Status != deal.Status {
		if !models.ValidDealStatus(*req.Status) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"status": "Invalid status"},
			})
			return
		}
		deal.Status = *req.Status
		switch deal.Status {
		case models.DealStatusWon:
			now := time.Now()
			deal.ClosedAt = &now
			trigger = models.TriggerDealWon
		case models.DealStatusLost:
			now := time.Now()
			deal.ClosedAt = &now
			trigger = models.TriggerDealLost
		default:
			deal.ClosedAt = nil
		}
	}

	if err := h.db.Save(&deal).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update deal"})
		return
	}

	if trigger != "" {
		h.emitEvent(r, trigger, deal.ID)
	}

	writeJSON(w, http.StatusOK, deal)
}

// Delete handles DELETE /api/deals/:id
func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid deal ID"})
		return
	}

	var deal models.Deal
	if err := h.db.First(&deal, "id = ?", dealID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Deal not found"})
		return
	}

	if !principal(r).CanManagePtr(deal.AssignedTo) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if err := h.db.Delete(&deal).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete deal"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Deal deleted"})
}

// Move handles POST /api/deals/:id/move and PUT /api/deals/:id/stage. The
// target stage must belong to the deal's pipeline.
func (h *DealHandler) Move(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid deal ID"})
		return
	}

	var req MoveDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	stageID, err := uuid.Parse(req.stage())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"stage": "A valid stage ID is required"},
		})
		return
	}

	var deal models.Deal
	if err := h.db.First(&deal, "id = ?", dealID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Deal not found"})
		return
	}

	if !principal(r).CanManagePtr(deal.AssignedTo) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	var stage models.PipelineStage
	if err := h.db.First(&stage, "id = ? AND pipeline_id = ?", stageID, deal.PipelineID).Error; err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Stage not found in deal's pipeline"})
		return
	}

	if err := h.db.Model(&deal).Update("pipeline_stage_id", stage.ID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to move deal"})
		return
	}
	deal.PipelineStageID = stage.ID

	h.emitEvent(r, models.TriggerDealStageChange, deal.ID)

	writeJSON(w, http.StatusOK, deal)
}

func (h *DealHandler) emitEvent(r *http.Request, trigger string, dealID uuid.UUID) {
	if h.asynqClient == nil {
		return
	}
	task, err := tasks.NewWorkflowEventTask(tasks.WorkflowEventPayload{
		TriggerType: trigger,
		EntityType:  string(models.EntityTypeDeal),
		EntityID:    dealID,
		ActorID:     middleware.GetUserID(r.Context()),
	})
	if err != nil {
		return
	}
	_, _ = h.asynqClient.Enqueue(task)
}
