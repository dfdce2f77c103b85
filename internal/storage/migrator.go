package storage

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
)

// Migrator copies locally stored documents into the remote backend and
// updates their records.
type Migrator struct {
	db     *gorm.DB
	local  Store
	remote Store
	logger *slog.Logger
}

func NewMigrator(db *gorm.DB, local, remote Store, logger *slog.Logger) *Migrator {
	return &Migrator{db: db, local: local, remote: remote, logger: logger}
}

type MigrationDetail struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type MigrationReport struct {
	Migrated int               `json:"migrated"`
	Failed   int               `json:"failed"`
	Details  []MigrationDetail `json:"details"`
}

// MigrateAll moves every local document to the remote backend. Failures are
// recorded in the report and do not stop the run. When deleteLocal is set,
// the local copy is removed after a successful upload.
func (m *Migrator) MigrateAll(ctx context.Context, deleteLocal bool) (*MigrationReport, error) {
	if m.remote == nil {
		return nil, fmt.Errorf("remote storage is not configured")
	}

	var docs []models.Document
	if err := m.db.WithContext(ctx).
		Where("storage_backend = ?", models.StorageBackendLocal).
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("listing local documents: %w", err)
	}

	report := &MigrationReport{Details: make([]MigrationDetail, 0, len(docs))}

	for i := range docs {
		doc := &docs[i]
		detail := MigrationDetail{
			DocumentID: doc.ID.String(),
			Filename:   doc.Filename,
		}

		if err := m.migrateOne(ctx, doc, deleteLocal); err != nil {
			m.logger.Warn("document migration failed",
				"document_id", doc.ID,
				"filename", doc.Filename,
				"error", err,
			)
			detail.Status = "failed"
			detail.Error = err.Error()
			report.Failed++
		} else {
			detail.Status = "migrated"
			report.Migrated++
		}

		report.Details = append(report.Details, detail)
	}

	m.logger.Info("storage migration complete",
		"migrated", report.Migrated,
		"failed", report.Failed,
	)

	return report, nil
}

func (m *Migrator) migrateOne(ctx context.Context, doc *models.Document, deleteLocal bool) error {
	body, err := m.local.Get(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("reading local object: %w", err)
	}
	defer body.Close()

	if err := m.remote.Put(ctx, doc.StorageKey, doc.ContentType, body); err != nil {
		return fmt.Errorf("uploading: %w", err)
	}

	if err := m.db.WithContext(ctx).Model(doc).
		Update("storage_backend", models.StorageBackendS3).Error; err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	doc.StorageBackend = models.StorageBackendS3

	if deleteLocal {
		if err := m.local.Delete(ctx, doc.StorageKey); err != nil {
			m.logger.Warn("could not remove local copy",
				"document_id", doc.ID,
				"key", doc.StorageKey,
				"error", err,
			)
		}
	}

	return nil
}
