package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
)

type PipelineHandler struct {
	db *gorm.DB
}

func NewPipelineHandler(db *gorm.DB) *PipelineHandler {
	return &PipelineHandler{db: db}
}

// CreatePipelineRequest represents the request to create a pipeline
type CreatePipelineRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"is_default"`
}

func (r CreatePipelineRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

// UpdatePipelineRequest represents the request to update a pipeline
type UpdatePipelineRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsDefault   *bool   `json:"is_default,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// StageRequest represents the request to create or update a pipeline stage
type StageRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Order       int    `json:"order"`
}

func (r StageRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Order < 0 {
		errors["order"] = "Order cannot be negative"
	}
	return errors
}

// List handles GET /api/pipelines
func (h *PipelineHandler) List(w http.ResponseWriter, r *http.Request) {
	var pipelines []models.Pipeline
	if err := h.db.
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		Order("created_at ASC").
		Find(&pipelines).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list pipelines"})
		return
	}

	writeJSON(w, http.StatusOK, pipelines)
}

// Create handles POST /api/pipelines. New pipelines are seeded with the
// standard stage set in the same transaction.
func (h *PipelineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	var existing models.Pipeline
	if err := h.db.First(&existing, "name = ?", req.Name).Error; err == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Pipeline already exists"})
		return
	}

	pipeline := models.Pipeline{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Active:      true,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if pipeline.IsDefault {
			if err := tx.Model(&models.Pipeline{}).
				Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&pipeline).Error; err != nil {
			return err
		}
		stages := models.DefaultStages(pipeline.ID)
		return tx.Create(&stages).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create pipeline"})
		return
	}

	h.db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("stage_order ASC")
	}).First(&pipeline, "id = ?", pipeline.ID)

	writeJSON(w, http.StatusCreated, pipeline)
}

// Default handles GET /api/pipelines/default
func (h *PipelineHandler) Default(w http.ResponseWriter, r *http.Request) {
	var pipeline models.Pipeline
	err := h.db.
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		Where("is_default = ?", true).
		First(&pipeline).Error
	if err == gorm.ErrRecordNotFound {
		// Fall back to the oldest pipeline
		err = h.db.
			Preload("Stages", func(db *gorm.DB) *gorm.DB {
				return db.Order("stage_order ASC")
			}).
			Order("created_at ASC").
			First(&pipeline).Error
	}
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No pipeline configured"})
		return
	}

	writeJSON(w, http.StatusOK, pipeline)
}

// Get handles GET /api/pipelines/:id
func (h *PipelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid pipeline ID"})
		return
	}

	var pipeline models.Pipeline
	if err := h.db.
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_order ASC")
		}).
		First(&pipeline, "id = ?", pipelineID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Pipeline not found"})
		return
	}

	writeJSON(w, http.StatusOK, pipeline)
}

// Stages handles GET /api/pipelines/:id/stages
func (h *PipelineHandler) Stages(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid pipeline ID"})
		return
	}

	var pipeline models.Pipeline
	if err := h.db.First(&pipeline, "id = ?", pipelineID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Pipeline not found"})
		return
	}

	var stages []models.PipelineStage
	if err := h.db.
		Where("pipeline_id = ?", pipelineID).
		Order("stage_order ASC").
		Find(&stages).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list stages"})
		return
	}

	writeJSON(w, http.StatusOK, stages)
}

// Update handles PUT /api/pipelines/:id
func (h *PipelineHandler) Update(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid pipeline ID"})
		return
	}

	var req UpdatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var pipeline models.Pipeline
	if err := h.db.First(&pipeline, "id = ?", pipelineID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Pipeline not found"})
		return
	}

	if req.Name != nil && *req.Name != "" && *req.Name != pipeline.Name {
		var existing models.Pipeline
		if err := h.db.First(&existing, "name = ? AND id != ?", *req.Name, pipelineID).Error; err == nil {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Pipeline already exists"})
			return
		}
		pipeline.Name = *req.Name
	}
	if req.Description != nil {
		pipeline.Description = *req.Description
	}
	if req.Active != nil {
		pipeline.Active = *req.Active
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault != nil && *req.IsDefault && !pipeline.IsDefault {
			if err := tx.Model(&models.Pipeline{}).
				Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
			pipeline.IsDefault = true
		}
		return tx.Save(&pipeline).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update pipeline"})
		return
	}

	writeJSON(w, http.StatusOK, pipeline)
}

// Delete handles DELETE /api/pipelines/:id. Pipelines with deals cannot be
// removed.
func (h *PipelineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid pipeline ID"})
		return
	}

	var dealCount int64
	if err := h.db.Model(&models.Deal{}).
		Where("pipeline_id = ?", pipelineID).
		Count(&dealCount).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete pipeline"})
		return
	}
	if dealCount > 0 {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Pipeline has deals and cannot be deleted"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.PipelineStage{}, "pipeline_id = ?", pipelineID).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Pipeline{}, "id = ?", pipelineID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Pipeline not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete pipeline"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Pipeline deleted"})
}

// AddStage handles POST /api/pipelines/:id/stages
func (h *PipelineHandler) AddStage(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid pipeline ID"})
		return
	}

	var req StageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	var pipeline models.Pipeline
	if err := h.db.First(&pipeline, "id = ?", pipelineID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Pipeline not found"})
		return
	}

	order := req.Order
	if order == 0 {
		var maxOrder int
		h.db.Model(&models.PipelineStage{}).
			Where("pipeline_id = ?", pipelineID).
			Select("COALESCE(MAX(stage_order), 0)").
			Scan(&maxOrder)
		order = maxOrder + 1
	}

	stage := models.PipelineStage{
		PipelineID:  pipelineID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Order:       order,
	}

	if err := h.db.Create(&stage).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create stage"})
		return
	}

	writeJSON(w, http.StatusCreated, stage)
}

// UpdateStage handles PUT /api/pipelines/:id/stages/:stageID
func (h *PipelineHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid pipeline ID"})
		return
	}
	stageID, err := uuid.Parse(chi.URLParam(r, "stageID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid stage ID"})
		return
	}

	var req StageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var stage models.PipelineStage
	if err := h.db.First(&stage, "id = ? AND pipeline_id = ?", stageID, pipelineID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Stage not found"})
		return
	}

	if req.Name != "" {
		stage.Name = req.Name
	}
	if req.Description != "" {
		stage.Description = req.Description
	}
	if req.Color != "" {
		stage.Color = req.Color
	}
	if req.Order > 0 {
		stage.Order = req.Order
	}

	if err := h.db.Save(&stage).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update stage"})
		return
	}

	writeJSON(w, http.StatusOK, stage)
}

// DeleteStage handles DELETE /api/pipelines/:id/stages/:stageID. System
// stages and stages holding deals cannot be removed.
func (h *PipelineHandler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid pipeline ID"})
		return
	}
	stageID, err := uuid.Parse(chi.URLParam(r, "stageID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid stage ID"})
		return
	}

	var stage models.PipelineStage
	if err := h.db.First(&stage, "id = ? AND pipeline_id = ?", stageID, pipelineID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Stage not found"})
		return
	}

	if stage.IsSystem {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "System stages cannot be deleted"})
		return
	}

	var dealCount int64
	if err := h.db.Model(&models.Deal{}).
		Where("pipeline_stage_id = ?", stageID).
		Count(&dealCount).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete stage"})
		return
	}
	if dealCount > 0 {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Stage has deals and cannot be deleted"})
		return
	}

	if err := h.db.Delete(&stage).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete stage"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Stage deleted"})
}
