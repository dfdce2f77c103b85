package models

import "github.com/google/uuid"

// Pipeline groups ordered stages that deals move through.
type Pipeline struct {
	Base
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	IsDefault   bool   `gorm:"default:false" json:"is_default"`
	Active      bool   `gorm:"default:true" json:"active"`

	Stages []PipelineStage `gorm:"foreignKey:PipelineID;constraint:OnDelete:CASCADE" json:"stages,omitempty"`
}

func (Pipeline) TableName() string {
	return "pipelines"
}

type PipelineStage struct {
	Base
	PipelineID  uuid.UUID `gorm:"type:uuid;not null;index" json:"pipeline_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Color       string    `gorm:"size:20" json:"color"`
	Order       int       `gorm:"column:stage_order;not null" json:"order"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"`
}

func (PipelineStage) TableName() string {
	return "pipeline_stages"
}

// DefaultStages returns the stage set seeded into every new pipeline.
func DefaultStages(pipelineID uuid.UUID) []PipelineStage {
	defs := []struct {
		name  string
		color string
	}{
		{"Prospect", "#9E9E9E"},
		{"Qualification", "#2196F3"},
		{"Proposal", "#FF9800"},
		{"Negotiation", "#F44336"},
		{"Closed Won", "#4CAF50"},
		{"Closed Lost", "#795548"},
	}

	stages := make([]PipelineStage, 0, len(defs))
	for i, d := range defs {
		stages = append(stages, PipelineStage{
			PipelineID: pipelineID,
			Name:       d.name,
			Color:      d.color,
			Order:      i + 1,
			IsSystem:   true,
		})
	}
	return stages
}
