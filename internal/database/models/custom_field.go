package models

import "github.com/google/uuid"

// Custom field types. Select fields carry an options list; the rest are
// validated only by shape.
const (
	FieldTypeText     = "text"
	FieldTypeNumber   = "number"
	FieldTypeDate     = "date"
	FieldTypeSelect   = "select"
	FieldTypeCheckbox = "checkbox"
)

func ValidFieldType(t string) bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeSelect, FieldTypeCheckbox:
		return true
	}
	return false
}

// CustomField defines a user-configurable attribute attachable to customers.
// Definitions referenced by stored values are never hard-deleted; they are
// deactivated instead so historical values keep resolving.
type CustomField struct {
	Base
	Name      string     `gorm:"size:100;uniqueIndex;not null" json:"name"`
	FieldType string     `gorm:"size:20;not null" json:"field_type"`
	Required  bool       `gorm:"default:false" json:"required"`
	Options   StringList `gorm:"type:text" json:"options,omitempty"`
	Active    bool       `gorm:"default:true" json:"active"`
}

func (CustomField) TableName() string {
	return "custom_fields"
}

type CustomFieldValue struct {
	Base
	CustomerID    uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`
	CustomFieldID uuid.UUID `gorm:"type:uuid;not null;index" json:"custom_field_id"`
	Value         string    `gorm:"type:text" json:"value"`

	CustomField *CustomField `gorm:"foreignKey:CustomFieldID" json:"custom_field,omitempty"`
}

func (CustomFieldValue) TableName() string {
	return "custom_field_values"
}
