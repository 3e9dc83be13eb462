// Package storagetest opens a migrated Storage on a throwaway SQLite file.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/C4T-BuT-S4D/reelbridge/internal/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func New(t *testing.T) *storage.Storage {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "reelbridge.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := storage.New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}
