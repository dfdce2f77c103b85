package storage_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/storage"
	"github.com/douglas-germano/advantage-crm-backend/internal/testutil"
)

func setupMigratorTest(t *testing.T) (*storage.Migrator, *gorm.DB, *storage.LocalStore, *storage.LocalStore) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	remote, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return storage.NewMigrator(db, local, remote, logger), db, local, remote
}

func createLocalDocument(t *testing.T, db *gorm.DB, local *storage.LocalStore, key, content string) *models.Document {
	t.Helper()

	user := testutil.CreateTestUser(t, db, models.RoleVendedor)

	require.NoError(t, local.Put(context.Background(), key, "text/plain", strings.NewReader(content)))

	doc := &models.Document{
		Filename:       key,
		ContentType:    "text/plain",
		Size:           int64(len(content)),
		StorageBackend: models.StorageBackendLocal,
		StorageKey:     key,
		UploadedBy:     user.ID,
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}

func TestMigrator_MigrateAll(t *testing.T) {
	t.Run("moves local documents to remote", func(t *testing.T) {
		migrator, db, local, remote := setupMigratorTest(t)
		ctx := context.Background()

		createLocalDocument(t, db, local, "a.txt", "alpha")
		createLocalDocument(t, db, local, "b.txt", "bravo")

		report, err := migrator.MigrateAll(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Migrated)
		assert.Equal(t, 0, report.Failed)
		assert.Len(t, report.Details, 2)

		body, err := remote.Get(ctx, "a.txt")
		require.NoError(t, err)
		data, err := io.ReadAll(body)
		body.Close()
		require.NoError(t, err)
		assert.Equal(t, "alpha", string(data))

		var count int64
		db.Model(&models.Document{}).Where("storage_backend = ?", models.StorageBackendS3).Count(&count)
		assert.Equal(t, int64(2), count)

		// Local copies stay when deleteLocal is false.
		_, err = local.Get(ctx, "a.txt")
		assert.NoError(t, err)
	})

	t.Run("removes local copy when requested", func(t *testing.T) {
		migrator, db, local, _ := setupMigratorTest(t)
		ctx := context.Background()

		createLocalDocument(t, db, local, "ephemeral.txt", "bytes")

		report, err := migrator.MigrateAll(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Migrated)

		_, err = local.Get(ctx, "ephemeral.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("records failures without stopping", func(t *testing.T) {
		migrator, db, local, _ := setupMigratorTest(t)
		ctx := context.Background()

		good := createLocalDocument(t, db, local, "good.txt", "ok")
		bad := createLocalDocument(t, db, local, "bad.txt", "ok")
		require.NoError(t, local.Delete(ctx, bad.StorageKey))

		report, err := migrator.MigrateAll(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Migrated)
		assert.Equal(t, 1, report.Failed)

		var migrated models.Document
		require.NoError(t, db.First(&migrated, "id = ?", good.ID).Error)
		assert.Equal(t, models.StorageBackendS3, migrated.StorageBackend)

		var stuck models.Document
		require.NoError(t, db.First(&stuck, "id = ?", bad.ID).Error)
		assert.Equal(t, models.StorageBackendLocal, stuck.StorageBackend)
	})

	t.Run("fails when remote is not configured", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		local, err := storage.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		migrator := storage.NewMigrator(db, local, nil, logger)
		_, err = migrator.MigrateAll(context.Background(), false)
		assert.Error(t, err)
	})

	t.Run("skips documents already on remote", func(t *testing.T) {
		migrator, db, local, _ := setupMigratorTest(t)

		doc := createLocalDocument(t, db, local, "already.txt", "bytes")
		require.NoError(t, db.Model(doc).Update("storage_backend", models.StorageBackendS3).Error)

		report, err := migrator.MigrateAll(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Migrated)
		assert.Equal(t, 0, report.Failed)
	})
}
