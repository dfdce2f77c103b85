package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/tasks"
)

type LeadHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
}

func NewLeadHandler(db *gorm.DB, asynqClient *asynq.Client) *LeadHandler {
	return &LeadHandler{db: db, asynqClient: asynqClient}
}

// CreateLeadRequest represents the request to create a lead
type CreateLeadRequest struct {
	Nome        string `json:"nome"`
	Email       string `json:"email"`
	Telefone    string `json:"telefone,omitempty"`
	Empresa     string `json:"empresa,omitempty"`
	Cargo       string `json:"cargo,omitempty"`
	Interesse   string `json:"interesse,omitempty"`
	Origem      string `json:"origem,omitempty"`
	Status      string `json:"status,omitempty"`
	Observacoes string `json:"observacoes,omitempty"`
}

func (r CreateLeadRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Nome == "" {
		errors["nome"] = "Nome is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if !models.ValidLeadOrigin(r.Origem) {
		errors["origem"] = "Invalid origem"
	}
	if r.Status != "" && !models.ValidLeadStatus(r.Status) {
		errors["status"] = "Invalid status"
	}
	return errors
}

// UpdateLeadRequest represents the request to update a lead
type UpdateLeadRequest struct {
	Nome        *string `json:"nome,omitempty"`
	Email       *string `json:"email,omitempty"`
	Telefone    *string `json:"telefone,omitempty"`
	Empresa     *string `json:"empresa,omitempty"`
	Cargo       *string `json:"cargo,omitempty"`
	Interesse   *string `json:"interesse,omitempty"`
	Origem      *string `json:"origem,omitempty"`
	Status      *string `json:"status,omitempty"`
	Observacoes *string `json:"observacoes,omitempty"`
}

func (r UpdateLeadRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Nome != nil && *r.Nome == "" {
		errors["nome"] = "Nome cannot be empty"
	}
	if r.Email != nil && *r.Email == "" {
		errors["email"] = "Email cannot be empty"
	}
	if r.Origem != nil && !models.ValidLeadOrigin(*r.Origem) {
		errors["origem"] = "Invalid origem"
	}
	if r.Status != nil && !models.ValidLeadStatus(*r.Status) {
		errors["status"] = "Invalid status"
	}
	return errors
}

// List handles GET /api/leads
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.Model(&models.Lead{})

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if origem := r.URL.Query().Get("origem"); origem != "" {
		query = query.Where("origem = ?", origem)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("nome LIKE ? OR email LIKE ? OR empresa LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count leads"})
		return
	}

	var leads []models.Lead
	if err := query.
		Preload("Usuario").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&leads).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list leads"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginated(leads, total, pagination))
}

// Create handles POST /api/leads
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	status := req.Status
	if status == "" {
		status = models.LeadStatusNovo
	}

	lead := models.Lead{
		Nome:        req.Nome,
		Email:       req.Email,
		Telefone:    req.Telefone,
		Empresa:     req.Empresa,
		Cargo:       req.Cargo,
		Interesse:   req.Interesse,
		Origem:      req.Origem,
		Status:      status,
		Observacoes: req.Observacoes,
		UsuarioID:   middleware.GetUserID(r.Context()),
	}

	if err := h.db.Create(&lead).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create lead"})
		return
	}

	h.emitEvent(r, models.TriggerLeadCreated, lead.ID)

	writeJSON(w, http.StatusCreated, lead)
}

// Get handles GET /api/leads/:id
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	var lead models.Lead
	if err := h.db.Preload("Usuario").First(&lead, "id = ?", leadID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Lead not found"})
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// Update handles PUT /api/leads/:id
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	var req UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	var lead models.Lead
	if err := h.db.First(&lead, "id = ?", leadID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Lead not found"})
		return
	}

	statusChanged := false
	if req.Nome != nil {
		lead.Nome = *req.Nome
	}
	if req.Email != nil {
		lead.Email = *req.Email
	}
	if req.Telefone != nil {
		lead.Telefone = *req.Telefone
	}
	if req.Empresa != nil {
		lead.Empresa = *req.Empresa
	}
	if req.Cargo != nil {
		lead.Cargo = *req.Cargo
	}
	if req.Interesse != nil {
		lead.Interesse = *req.Interesse
	}
	if req.Origem != nil {
		lead.Origem = *req.Origem
	}
	if req.Status != nil && *req.Status != lead.Status {
		lead.Status = *req.Status
		statusChanged = true
	}
	if req.Observacoes != nil {
		lead.Observacoes = *req.Observacoes
	}

	if err := h.db.Save(&lead).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update lead"})
		return
	}

	if statusChanged {
		h.emitEvent(r, models.TriggerLeadStatusChange, lead.ID)
	}

	writeJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/leads/:id
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	// Leads have a free lifecycle: any authenticated user may edit or
	// remove one regardless of who owns it.
	var lead models.Lead
	if err := h.db.First(&lead, "id = ?", leadID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Lead not found"})
		return
	}

	if err := h.db.Delete(&lead).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete lead"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Lead deleted"})
}

func (h *LeadHandler) emitEvent(r *http.Request, trigger string, leadID uuid.UUID) {
	if h.asynqClient == nil {
		return
	}
	task, err := tasks.NewWorkflowEventTask(tasks.WorkflowEventPayload{
		TriggerType: trigger,
		EntityType:  string(models.EntityTypeLead),
		EntityID:    leadID,
		ActorID:     middleware.GetUserID(r.Context()),
	})
	if err != nil {
		return
	}
	_, _ = h.asynqClient.Enqueue(task)
}
