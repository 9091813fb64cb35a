// Package mapping owns the table that ties channel messages to storage files.
//
// All access goes through Store, which serializes every operation behind a
// single mutex. Multi-step sequences use Store.Update so that the whole
// read-decide-write runs without interleaving.
package mapping

import (
	"errors"
	"time"

	"github.com/mwantia/chansync/pkg/db/models"
)

type State string

const (
	// StatePending is a message seen in the channel but not registered in storage.
	StatePending State = "pending"
	// StateRegistered is present in both channel and storage.
	StateRegistered State = "registered"
	// StateAbsent is registered but missing from the last AbsenceCount listings.
	StateAbsent State = "absent"
	// StateDeleted marks a record whose channel message is being removed.
	StateDeleted State = "deleted"
)

var (
	ErrInvalidRecord    = errors.New("invalid file record")
	ErrNameTaken        = errors.New("file name already mapped")
	ErrStorageFileTaken = errors.New("storage file already mapped")
	ErrUnknownState     = errors.New("unknown record state")
)

func ParseState(s string) (State, error) {
	switch State(s) {
	case StatePending, StateRegistered, StateAbsent, StateDeleted:
		return State(s), nil
	}
	return "", ErrUnknownState
}

type Record struct {
	ChannelMessageID int64     `json:"channelMessageId"`
	StorageFileID    string    `json:"storageFileId,omitempty"`
	Name             string    `json:"name"`
	State            State     `json:"state"`
	AbsenceCount     int       `json:"absenceCount"`
	Size             int64     `json:"size"`
	MimeType         string    `json:"mimeType,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`

	// mappedAt is the store revision that last assigned StorageFileID.
	// Records loaded from persistence start at 0.
	mappedAt uint64
}

// Active reports whether the record takes part in duplicate detection and
// absence tracking.
func (r Record) Active() bool {
	return r.State == StateRegistered || r.State == StateAbsent
}

// MappedSince reports whether the storage file id was assigned by a
// transaction that started after rev.
func (r Record) MappedSince(rev uint64) bool {
	return r.mappedAt > rev
}

func (r Record) validate() error {
	switch {
	case r.ChannelMessageID == 0:
		return errors.Join(ErrInvalidRecord, errors.New("channel message id is required"))
	case r.Name == "":
		return errors.Join(ErrInvalidRecord, errors.New("name is required"))
	case r.AbsenceCount < 0:
		return errors.Join(ErrInvalidRecord, errors.New("absence count is negative"))
	}

	if _, err := ParseState(string(r.State)); err != nil {
		return errors.Join(ErrInvalidRecord, err)
	}
	if r.State == StatePending && r.StorageFileID != "" {
		return errors.Join(ErrInvalidRecord, errors.New("pending record carries a storage file id"))
	}
	if r.State != StatePending && r.StorageFileID == "" {
		return errors.Join(ErrInvalidRecord, errors.New("storage file id is required once registered"))
	}
	return nil
}

func toModel(r Record) *models.FileRecord {
	return &models.FileRecord{
		ChannelMessageID: r.ChannelMessageID,
		StorageFileID:    r.StorageFileID,
		Name:             r.Name,
		State:            string(r.State),
		AbsenceCount:     r.AbsenceCount,
		Size:             r.Size,
		MimeType:         r.MimeType,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromModel(m models.FileRecord) (Record, error) {
	state, err := ParseState(m.State)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ChannelMessageID: m.ChannelMessageID,
		StorageFileID:    m.StorageFileID,
		Name:             m.Name,
		State:            state,
		AbsenceCount:     m.AbsenceCount,
		Size:             m.Size,
		MimeType:         m.MimeType,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}
