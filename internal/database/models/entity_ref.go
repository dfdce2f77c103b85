package models

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityType enumerates the record kinds a task, communication or document
// can be attached to.
type EntityType string

const (
	EntityTypeLead     EntityType = "lead"
	EntityTypeCustomer EntityType = "customer"
	EntityTypeDeal     EntityType = "deal"
	EntityTypeTask     EntityType = "task"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeLead, EntityTypeCustomer, EntityTypeDeal, EntityTypeTask:
		return true
	}
	return false
}

var ErrUnknownEntityType = errors.New("unknown entity type")

// EntityRef is a typed reference to another CRM record. Tasks,
// communications and documents embed it instead of carrying an untyped
// type/id string pair; the type is validated against the enum and the id is
// resolved against the referenced table before a row is written.
type EntityRef struct {
	EntityType EntityType `gorm:"size:20;index" json:"entity_type,omitempty"`
	EntityID   uuid.UUID  `gorm:"type:uuid;index" json:"entity_id,omitempty"`
}

func (r EntityRef) IsZero() bool {
	return r.EntityType == "" && r.EntityID == uuid.Nil
}

// Resolve verifies that the referenced record exists. A zero ref is valid;
// an unknown type or a dangling id is not.
func (r EntityRef) Resolve(db *gorm.DB) error {
	if r.IsZero() {
		return nil
	}
	if !r.EntityType.Valid() {
		return ErrUnknownEntityType
	}

	var target interface{}
	switch r.EntityType {
	case EntityTypeLead:
		target = &Lead{}
	case EntityTypeCustomer:
		target = &Customer{}
	case EntityTypeDeal:
		target = &Deal{}
	case EntityTypeTask:
		target = &Task{}
	}

	return db.Select("id").First(target, "id = ?", r.EntityID).Error
}
