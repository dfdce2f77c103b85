package models

import (
	"time"

	"github.com/google/uuid"
)

// Communication types and directions.
const (
	CommTypeEmail   = "email"
	CommTypeCall    = "call"
	CommTypeMeeting = "meeting"
	CommTypeNote    = "note"

	CommDirectionInbound  = "inbound"
	CommDirectionOutbound = "outbound"
)

func ValidCommType(t string) bool {
	switch t {
	case CommTypeEmail, CommTypeCall, CommTypeMeeting, CommTypeNote:
		return true
	}
	return false
}

func ValidCommDirection(d string) bool {
	switch d {
	case "", CommDirectionInbound, CommDirectionOutbound:
		return true
	}
	return false
}

// Communication logs a touchpoint with a lead, customer or deal. Attachments
// are stored as documents linked back to the communication.
type Communication struct {
	Base
	Type            string     `gorm:"size:20;not null" json:"type"`
	Direction       string     `gorm:"size:20" json:"direction,omitempty"`
	Subject         string     `gorm:"size:200" json:"subject"`
	Content         string     `gorm:"type:text" json:"content"`
	Outcome         string     `gorm:"size:100" json:"outcome,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`

	EntityRef

	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Attachments []Document `gorm:"foreignKey:CommunicationID" json:"attachments,omitempty"`
}

func (Communication) TableName() string {
	return "communications"
}
