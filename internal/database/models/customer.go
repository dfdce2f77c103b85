package models

import "github.com/google/uuid"

type Customer struct {
	Base
	Name       string    `gorm:"size:100;not null" json:"name"`
	Email      string    `gorm:"size:100" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Company    string    `gorm:"size:100" json:"company"`
	Address    string    `gorm:"type:text" json:"address"`
	Status     string    `gorm:"size:20;default:'lead'" json:"status"` // lead, oportunidade, cliente, inativo
	AssignedTo uuid.UUID `gorm:"type:uuid;index" json:"assigned_to"`

	AssignedUser *User              `gorm:"foreignKey:AssignedTo" json:"assigned_user,omitempty"`
	CustomFields []CustomFieldValue `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"custom_fields,omitempty"`
}

func (Customer) TableName() string {
	return "customers"
}

// Customer lifecycle statuses stored in Status.
const (
	CustomerStatusLead         = "lead"
	CustomerStatusOportunidade = "oportunidade"
	CustomerStatusCliente      = "cliente"
	CustomerStatusInativo      = "inativo"
)

func ValidCustomerStatus(status string) bool {
	switch status {
	case CustomerStatusLead, CustomerStatusOportunidade, CustomerStatusCliente, CustomerStatusInativo:
		return true
	}
	return false
}
