package models

import "github.com/google/uuid"

// Workflow trigger types.
const (
	TriggerLeadCreated      = "lead_created"
	TriggerLeadStatusChange = "lead_status_changed"
	TriggerDealStageChange  = "deal_stage_changed"
	TriggerDealWon          = "deal_won"
	TriggerDealLost         = "deal_lost"
	TriggerTaskCompleted    = "task_completed"
)

func ValidTriggerType(t string) bool {
	switch t {
	case TriggerLeadCreated, TriggerLeadStatusChange, TriggerDealStageChange,
		TriggerDealWon, TriggerDealLost, TriggerTaskCompleted:
		return true
	}
	return false
}

// Workflow action types.
const (
	ActionCreateTask       = "create_task"
	ActionSendNotification = "send_notification"
	ActionUpdateField      = "update_field"
)

func ValidActionType(t string) bool {
	switch t {
	case ActionCreateTask, ActionSendNotification, ActionUpdateField:
		return true
	}
	return false
}

// Workflow is an automation rule: when the trigger fires and the conditions
// match, its actions run in order.
type Workflow struct {
	Base
	Name        string  `gorm:"size:100;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	TriggerType string  `gorm:"size:50;not null" json:"trigger_type"`
	Conditions  JSONMap `gorm:"type:text" json:"conditions,omitempty"`
	Active      bool    `gorm:"default:true" json:"active"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator   *User     `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	Actions []WorkflowAction `gorm:"foreignKey:WorkflowID;constraint:OnDelete:CASCADE" json:"actions,omitempty"`
}

func (Workflow) TableName() string {
	return "workflows"
}

type WorkflowAction struct {
	Base
	WorkflowID uuid.UUID `gorm:"type:uuid;not null;index" json:"workflow_id"`
	ActionType string    `gorm:"size:50;not null" json:"action_type"`
	Order      int       `gorm:"column:action_order;not null" json:"order"`
	Params     JSONMap   `gorm:"type:text" json:"params,omitempty"`
}

func (WorkflowAction) TableName() string {
	return "workflow_actions"
}
