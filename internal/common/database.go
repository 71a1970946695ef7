package common

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lgulliver/vaultmvn/pkg/config"
	"github.com/lgulliver/vaultmvn/pkg/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM database connection
type Database struct {
	*gorm.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	dsn := cfg.DatabaseURL()
	
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Migrate runs database migrations for the rows the service persists:
// accounts (written by the auth service), per-operation audit log entries
// (written by the artifact façade), and per-repository write grants.
func (db *Database) Migrate() error {
	return db.AutoMigrate(
		&types.User{},
		&types.OperationLog{},
		&types.RepositoryGrant{},
	)
}

// LogOperation records one store/delete/copy attempt to the audit trail.
// Failures to write the audit row are logged by the caller, not returned,
// so a database hiccup never blocks an otherwise successful artifact
// operation.
func (db *Database) LogOperation(ctx context.Context, entry types.OperationLog) error {
	entry.CreatedAt = time.Now()
	return db.WithContext(ctx).Create(&entry).Error
}

// HasGrant reports whether user holds exactly role on a repository; a
// different role, even "admin", does not count.
func (db *Database) HasGrant(ctx context.Context, storageID, repoID string, userID uuid.UUID, role string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&types.RepositoryGrant{}).
		Where("storage_id = ? AND repo_id = ? AND user_id = ? AND role = ?", storageID, repoID, userID, role).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check repository grant: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
