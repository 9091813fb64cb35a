package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/chansync/pkg/db/migrations"
	"github.com/mwantia/chansync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements MetadataStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed metadata store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs all pending versioned migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Record operations

// SaveRecord inserts the record or replaces the row with the same channel message id.
func (s *SQLiteStore) SaveRecord(ctx context.Context, record *models.FileRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"storage_file_id", "name", "state", "absence_count", "size", "mime_type", "updated_at"}),
		}).
		Create(record).Error
}

func (s *SQLiteStore) GetRecord(ctx context.Context, channelMessageID int64) (*models.FileRecord, error) {
	var record models.FileRecord
	err := s.db.WithContext(ctx).Where("channel_message_id = ?", channelMessageID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecords returns all records ordered by message id, filtered by state when set.
func (s *SQLiteStore) ListRecords(ctx context.Context, state string) ([]models.FileRecord, error) {
	var records []models.FileRecord
	query := s.db.WithContext(ctx).Order("channel_message_id ASC")

	if state != "" {
		query = query.Where("state = ?", state)
	}

	err := query.Find(&records).Error
	return records, err
}

func (s *SQLiteStore) DeleteRecord(ctx context.Context, channelMessageID int64) error {
	return s.db.WithContext(ctx).Delete(&models.FileRecord{}, "channel_message_id = ?", channelMessageID).Error
}
