// Package testdb opens throwaway in-memory databases for package tests,
// migrated and seeded the same way production boot is.
package testdb

import (
	"production-service/internal/model"
	"production-service/pkg/database"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated in-memory database seeded with the default
// pipeline and a small defect catalogue
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	defects := []model.MasterDefect{
		{Name: "Wire Miscut", Category: "cutting", Reworkable: false, Machine: "CUT-01"},
		{Name: "Loose Crimp", Category: "crimping", Reworkable: true, Machine: "CRIMP-02"},
		{Name: "Tape Wrinkle", Category: "taping", Reworkable: true},
	}
	require.NoError(t, db.Create(&defects).Error)

	return db
}

// Defect looks up a seeded master defect by name
func Defect(t *testing.T, db *gorm.DB, name string) model.MasterDefect {
	t.Helper()
	var md model.MasterDefect
	require.NoError(t, db.Where("name = ?", name).First(&md).Error)
	return md
}
