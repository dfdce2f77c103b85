package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
)

type CustomerHandler struct {
	db *gorm.DB
}

func NewCustomerHandler(db *gorm.DB) *CustomerHandler {
	return &CustomerHandler{db: db}
}

// CreateCustomerRequest represents the request to create a customer
type CreateCustomerRequest struct {
	Name         string            `json:"name"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Company      string            `json:"company,omitempty"`
	Address      string            `json:"address,omitempty"`
	Status       string            `json:"status,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

func (r CreateCustomerRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Status != "" && !models.ValidCustomerStatus(r.Status) {
		errors["status"] = "Invalid status"
	}
	return errors
}

// UpdateCustomerRequest represents the request to update a customer
type UpdateCustomerRequest struct {
	Name         *string           `json:"name,omitempty"`
	Email        *string           `json:"email,omitempty"`
	Phone        *string           `json:"phone,omitempty"`
	Company      *string           `json:"company,omitempty"`
	Address      *string           `json:"address,omitempty"`
	Status       *string           `json:"status,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

func (r UpdateCustomerRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.Status != nil && !models.ValidCustomerStatus(*r.Status) {
		errors["status"] = "Invalid status"
	}
	return errors
}

// List handles GET /api/customers
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.Model(&models.Customer{})

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR company LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count customers"})
		return
	}

	var customers []models.Customer
	if err := query.
		Preload("AssignedUser").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&customers).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list customers"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginated(customers, total, pagination))
}

// Create handles POST /api/customers
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
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
		status = models.CustomerStatusLead
	}

	customer := models.Customer{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Company:    req.Company,
		Address:    req.Address,
		Status:     status,
		AssignedTo: middleware.GetUserID(r.Context()),
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&customer).Error; err != nil {
			return err
		}
		return applyCustomFieldValues(tx, customer.ID, req.CustomFields)
	})
	if err != nil {
		if fieldErr, ok := err.(*customFieldError); ok {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: fieldErr.details})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create customer"})
		return
	}

	h.db.Preload("CustomFields.CustomField").First(&customer, "id = ?", customer.ID)

	writeJSON(w, http.StatusCreated, customer)
}

// Get handles GET /api/customers/:id
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid customer ID"})
		return
	}

	var customer models.Customer
	if err := h.db.
		Preload("AssignedUser").
		Preload("CustomFields.CustomField").
		First(&customer, "id = ?", customerID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Customer not found"})
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

// Update handles PUT /api/customers/:id
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid customer ID"})
		return
	}

	var req UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	var customer models.Customer
	if err := h.db.First(&customer, "id = ?", customerID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Customer not found"})
		return
	}

	if !principal(r).CanManage(customer.AssignedTo) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Email != nil {
		customer.Email = *req.Email
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.Company != nil {
		customer.Company = *req.Company
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.Status != nil {
		customer.Status = *req.Status
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&customer).Error; err != nil {
			return err
		}
		return applyCustomFieldValues(tx, customer.ID, req.CustomFields)
	})
	if err != nil {
		if fieldErr, ok := err.(*customFieldError); ok {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: fieldErr.details})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update customer"})
		return
	}

	h.db.Preload("CustomFields.CustomField").First(&customer, "id = ?", customer.ID)

	writeJSON(w, http.StatusOK, customer)
}

// Delete handles DELETE /api/customers/:id
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid customer ID"})
		return
	}

	var customer models.Customer
	if err := h.db.First(&customer, "id = ?", customerID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Customer not found"})
		return
	}

	if !principal(r).CanManage(customer.AssignedTo) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.CustomFieldValue{}, "customer_id = ?", customerID).Error; err != nil {
			return err
		}
		return tx.Delete(&customer).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete customer"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Customer deleted"})
}

// customFieldError carries per-field validation messages out of a transaction.
type customFieldError struct {
	details map[string]string
}

func (e *customFieldError) Error() string {
	return "invalid custom field values"
}

// applyCustomFieldValues upserts values keyed by field id. Unknown or
// inactive field ids and type mismatches reject the whole write.
func applyCustomFieldValues(tx *gorm.DB, customerID uuid.UUID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	details := make(map[string]string)
	for key, raw := range values {
		fieldID, err := uuid.Parse(key)
		if err != nil {
			details[key] = "Invalid custom field ID"
			continue
		}

		var field models.CustomField
		if err := tx.First(&field, "id = ? AND active = ?", fieldID, true).Error; err != nil {
			details[key] = "Custom field not found"
			continue
		}

		if msg := validateFieldValue(&field, raw); msg != "" {
			details[key] = msg
			continue
		}

		var existing models.CustomFieldValue
		err = tx.First(&existing, "customer_id = ? AND custom_field_id = ?", customerID, fieldID).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Update("value", raw).Error; err != nil {
				return err
			}
		case err == gorm.ErrRecordNotFound:
			value := models.CustomFieldValue{
				CustomerID:    customerID,
				CustomFieldID: fieldID,
				Value:         raw,
			}
			if err := tx.Create(&value).Error; err != nil {
				return err
			}
		default:
			return err
		}
	}

	if len(details) > 0 {
		return &customFieldError{details: details}
	}
	return nil
}
