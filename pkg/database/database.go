package database

import (
	"fmt"
	"production-service/internal/model"
	"production-service/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDB initializes the database connection with configuration and runs migrations
func InitDB(config *config.Config) error {
	var err error

	// Configure GORM logger
	logLevel := logger.Error
	if config.Server.Env == "development" {
		logLevel = logger.Info
	}

	// Create DSN string
	dsn := config.DB.GetDSN()

	// Configure Postgres options
	pgConfig := postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	// Open connection
	db, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get generic database object SQL
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database object: %w", err)
	}

	// Set connection pool settings from config
	sqlDB.SetMaxIdleConns(config.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.DB.ConnMaxLifetime)

	// Run migrations
	if err := Migrate(db); err != nil {
		return err
	}

	return nil
}

// Migrate runs schema migrations and seeds the pipeline template when empty
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.PipelineStep{},
		&model.ProductionOrder{},
		&model.Operation{},
		&model.MasterDefect{},
		&model.DefectEntry{},
		&model.AuditRecord{},
	); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Seed the pipeline template on first boot
	var count int64
	if err := db.Model(&model.PipelineStep{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		steps := model.DefaultPipeline()
		if err := db.Create(&steps).Error; err != nil {
			return fmt.Errorf("failed to seed pipeline steps: %w", err)
		}
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}
