package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeDocumentMigrate = "document:migrate"
	TypeWorkflowEvent   = "workflow:event"
)

// DocumentMigratePayload contains the data for a storage migration run
type DocumentMigratePayload struct {
	RequestedBy uuid.UUID `json:"requested_by"`
	DeleteLocal bool      `json:"delete_local"`
}

func NewDocumentMigrateTask(payload DocumentMigratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDocumentMigrate, data), nil
}

// WorkflowEventPayload describes a domain event that may trigger workflows
type WorkflowEventPayload struct {
	TriggerType string    `json:"trigger_type"`
	EntityType  string    `json:"entity_type"`
	EntityID    uuid.UUID `json:"entity_id"`
	ActorID     uuid.UUID `json:"actor_id"`
}

func NewWorkflowEventTask(payload WorkflowEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWorkflowEvent, data), nil
}
