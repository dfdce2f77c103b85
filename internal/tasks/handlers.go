package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/storage"
)

type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	migrator *storage.Migrator
}

func NewHandler(db *gorm.DB, logger *slog.Logger, migrator *storage.Migrator) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		migrator: migrator,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDocumentMigrate, h.HandleDocumentMigrate)
	mux.HandleFunc(TypeWorkflowEvent, h.HandleWorkflowEvent)
}

func (h *Handler) HandleDocumentMigrate(ctx context.Context, t *asynq.Task) error {
	var payload DocumentMigratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("starting document migration",
		"requested_by", payload.RequestedBy,
		"delete_local", payload.DeleteLocal,
	)

	report, err := h.migrator.MigrateAll(ctx, payload.DeleteLocal)
	if err != nil {
		h.logger.Error("document migration failed", "error", err)
		return err
	}

	h.logger.Info("completed document migration",
		"migrated", report.Migrated,
		"failed", report.Failed,
	)

	return nil
}

func (h *Handler) HandleWorkflowEvent(ctx context.Context, t *asynq.Task) error {
	var payload WorkflowEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var workflows []models.Workflow
	if err := h.db.WithContext(ctx).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("action_order ASC")
		}).
		Where("trigger_type = ? AND active = ?", payload.TriggerType, true).
		Find(&workflows).Error; err != nil {
		return fmt.Errorf("loading workflows: %w", err)
	}

	for i := range workflows {
		wf := &workflows[i]
		if !h.conditionsMatch(ctx, wf, payload) {
			continue
		}

		h.logger.Info("running workflow",
			"workflow_id", wf.ID,
			"trigger", payload.TriggerType,
			"entity_type", payload.EntityType,
			"entity_id", payload.EntityID,
		)

		for j := range wf.Actions {
			if err := h.runAction(ctx, wf, &wf.Actions[j], payload); err != nil {
				h.logger.Error("workflow action failed",
					"workflow_id", wf.ID,
					"action_id", wf.Actions[j].ID,
					"action_type", wf.Actions[j].ActionType,
					"error", err,
				)
			}
		}
	}

	return nil
}

// conditionsMatch evaluates the workflow's stored conditions against the
// triggering entity. Each condition key is a column; the entity matches when
// every stored value equals the current column value.
func (h *Handler) conditionsMatch(ctx context.Context, wf *models.Workflow, payload WorkflowEventPayload) bool {
	if len(wf.Conditions) == 0 {
		return true
	}

	entityType := models.EntityType(payload.EntityType)
	if !entityType.Valid() {
		return false
	}

	row := map[string]interface{}{}
	if err := h.db.WithContext(ctx).
		Table(entityTable(entityType)).
		Where("id = ?", payload.EntityID).
		Take(&row).Error; err != nil {
		return false
	}

	for key, want := range wf.Conditions {
		got, ok := row[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (h *Handler) runAction(ctx context.Context, wf *models.Workflow, action *models.WorkflowAction, payload WorkflowEventPayload) error {
	switch action.ActionType {
	case models.ActionCreateTask:
		return h.actionCreateTask(ctx, wf, action, payload)
	case models.ActionSendNotification:
		// Notification delivery is out of band; record the intent
		h.logger.Info("workflow notification",
			"workflow_id", wf.ID,
			"entity_type", payload.EntityType,
			"entity_id", payload.EntityID,
			"params", map[string]interface{}(action.Params),
		)
		return nil
	case models.ActionUpdateField:
		return h.actionUpdateField(ctx, action, payload)
	default:
		return fmt.Errorf("unknown action type %q", action.ActionType)
	}
}

func (h *Handler) actionCreateTask(ctx context.Context, wf *models.Workflow, action *models.WorkflowAction, payload WorkflowEventPayload) error {
	title, _ := action.Params["title"].(string)
	if title == "" {
		title = wf.Name
	}
	description, _ := action.Params["description"].(string)
	priority, _ := action.Params["priority"].(string)
	if !models.ValidTaskPriority(priority) {
		priority = models.TaskPriorityMedium
	}

	task := models.Task{
		Title:       title,
		Description: description,
		Status:      models.TaskStatusPending,
		Priority:    priority,
		CreatedBy:   wf.CreatedBy,
	}
	if entityType := models.EntityType(payload.EntityType); entityType.Valid() {
		task.EntityRef = models.EntityRef{
			EntityType: entityType,
			EntityID:   payload.EntityID,
		}
	}

	return h.db.WithContext(ctx).Create(&task).Error
}

func (h *Handler) actionUpdateField(ctx context.Context, action *models.WorkflowAction, payload WorkflowEventPayload) error {
	field, _ := action.Params["field"].(string)
	value, ok := action.Params["value"]
	if field == "" || !ok {
		return fmt.Errorf("update_field action needs field and value params")
	}
	entityType := models.EntityType(payload.EntityType)
	if !entityType.Valid() {
		return fmt.Errorf("cannot update fields on entity type %q", payload.EntityType)
	}

	return h.db.WithContext(ctx).
		Table(entityTable(entityType)).
		Where("id = ?", payload.EntityID).
		Update(field, value).Error
}

func entityTable(t models.EntityType) string {
	return string(t) + "s"
}
