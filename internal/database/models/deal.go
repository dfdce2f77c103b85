package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal statuses.
const (
	DealStatusOpen = "open"
	DealStatusWon  = "won"
	DealStatusLost = "lost"
)

func ValidDealStatus(s string) bool {
	switch s {
	case DealStatusOpen, DealStatusWon, DealStatusLost:
		return true
	}
	return false
}

// Deal is a sales opportunity positioned on a pipeline stage, optionally
// linked to the lead or customer it came from.
type Deal struct {
	Base
	Title             string     `gorm:"size:200;not null" json:"title"`
	Description       string     `gorm:"type:text" json:"description"`
	Value             float64    `gorm:"default:0" json:"value"`
	Probability       int        `gorm:"default:0" json:"probability"`
	Status            string     `gorm:"size:20;default:'open'" json:"status"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`

	LeadID          *uuid.UUID `gorm:"type:uuid;index" json:"lead_id,omitempty"`
	CustomerID      *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	PipelineID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"pipeline_id"`
	PipelineStageID uuid.UUID  `gorm:"type:uuid;not null;index" json:"pipeline_stage_id"`
	AssignedTo      *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to,omitempty"`

	Lead          *Lead          `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	Customer      *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Pipeline      *Pipeline      `gorm:"foreignKey:PipelineID" json:"pipeline,omitempty"`
	PipelineStage *PipelineStage `gorm:"foreignKey:PipelineStageID" json:"pipeline_stage,omitempty"`
	AssignedUser  *User          `gorm:"foreignKey:AssignedTo" json:"assigned_user,omitempty"`
}

func (Deal) TableName() string {
	return "deals"
}
