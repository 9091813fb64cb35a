package store

import (
	"context"

	"github.com/mwantia/chansync/pkg/db/models"
)

// MetadataStore defines the interface for database operations
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Record operations
	SaveRecord(ctx context.Context, record *models.FileRecord) error
	GetRecord(ctx context.Context, channelMessageID int64) (*models.FileRecord, error)
	ListRecords(ctx context.Context, state string) ([]models.FileRecord, error)
	DeleteRecord(ctx context.Context, channelMessageID int64) error
}
