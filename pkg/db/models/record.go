package models

import "time"

// FileRecord persists the mapping between a channel message and the
// storage file registered for it.
type FileRecord struct {
	ChannelMessageID int64  `gorm:"primaryKey;autoIncrement:false"`
	StorageFileID    string `gorm:"type:text;index:idx_storage_file"`
	Name             string `gorm:"type:text;not null;index:idx_record_name"`
	State            string `gorm:"type:text;not null;index:idx_record_state"`
	AbsenceCount     int    `gorm:"not null;default:0"`

	// Attachment metadata, kept so pending records can be registered later
	Size     int64  `gorm:"not null;default:0"`
	MimeType string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
