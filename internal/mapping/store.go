package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwantia/chansync/pkg/db/models"
	"github.com/mwantia/chansync/pkg/log"
)

const persistTimeout = 5 * time.Second

// Persister is the durable backing of the table. store.MetadataStore satisfies it.
type Persister interface {
	SaveRecord(ctx context.Context, record *models.FileRecord) error
	DeleteRecord(ctx context.Context, channelMessageID int64) error
	ListRecords(ctx context.Context, state string) ([]models.FileRecord, error)
}

type Option func(*Store)

// WithPersister writes every committed change through to p.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persist = p
	}
}

func WithLogger(l log.LoggerService) Option {
	return func(s *Store) {
		s.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type Store struct {
	mutex    sync.Mutex
	records  map[int64]*Record
	warm     atomic.Bool
	revision uint64

	persist Persister
	log     log.LoggerService
	now     func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[int64]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory table with the persisted records.
// Records that fail validation are skipped and reported in the returned error.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}

	rows, err := s.persist.ListRecords(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list persisted records: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var errs []error
	s.records = make(map[int64]*Record, len(rows))
	for _, row := range rows {
		record, err := fromModel(row)
		if err == nil {
			err = record.validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", row.ChannelMessageID, err))
			continue
		}
		s.records[record.ChannelMessageID] = &record
	}

	return errors.Join(errs...)
}

// Warm reports whether the table has been seeded from the channel history.
func (s *Store) Warm() bool {
	return s.warm.Load()
}

func (s *Store) MarkWarm() {
	s.warm.Store(true)
}

// Update runs fn with exclusive access to the table. Changes made through tx
// are discarded when fn returns an error and persisted otherwise.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.revision++
	tx := &Tx{
		store:    s,
		original: make(map[int64]*Record),
		revision: s.revision,
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}

	tx.flush()
	return nil
}

// Revision returns the number of the last started transaction. Records whose
// storage file was assigned later report MappedSince(rev) as true.
func (s *Store) Revision() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.revision
}

func (s *Store) view(fn func(tx *Tx)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	fn(&Tx{store: s})
}

func (s *Store) Upsert(record Record) error {
	return s.Update(func(tx *Tx) error {
		return tx.Upsert(record)
	})
}

func (s *Store) FindByName(name string) (record Record, ok bool) {
	s.view(func(tx *Tx) {
		record, ok = tx.FindByName(name)
	})
	return
}

func (s *Store) FindByChannelMessage(id int64) (record Record, ok bool) {
	s.view(func(tx *Tx) {
		record, ok = tx.FindByChannelMessage(id)
	})
	return
}

func (s *Store) All() (records []Record) {
	s.view(func(tx *Tx) {
		records = tx.All()
	})
	return
}

func (s *Store) Delete(id int64) {
	s.Update(func(tx *Tx) error {
		tx.Delete(id)
		return nil
	})
}

// Counts returns the number of records per state.
func (s *Store) Counts() map[State]int {
	counts := make(map[State]int)
	s.view(func(tx *Tx) {
		for _, r := range tx.store.records {
			counts[r.State]++
		}
	})
	return counts
}

// Tx is the view of the table handed to Store.Update. It must not be used
// after the callback returns.
type Tx struct {
	store *Store
	// original holds the pre-transaction copy of every touched record;
	// a nil value means the record did not exist.
	original map[int64]*Record
	revision uint64
}

func (tx *Tx) touch(id int64) {
	if tx.original == nil {
		panic("mapping: write through a read-only transaction")
	}
	if _, ok := tx.original[id]; ok {
		return
	}
	if existing, ok := tx.store.records[id]; ok {
		clone := *existing
		tx.original[id] = &clone
		return
	}
	tx.original[id] = nil
}

// Upsert inserts record or overwrites the record with the same channel
// message id. Registered and pending records always carry an absence count of 0.
func (tx *Tx) Upsert(record Record) error {
	if record.State == StateRegistered || record.State == StatePending {
		record.AbsenceCount = 0
	}
	if err := record.validate(); err != nil {
		return err
	}

	if record.Active() {
		for id, other := range tx.store.records {
			if id == record.ChannelMessageID || !other.Active() {
				continue
			}
			if other.Name == record.Name {
				return fmt.Errorf("%w: '%s' belongs to message %d", ErrNameTaken, record.Name, id)
			}
			if other.StorageFileID == record.StorageFileID {
				return fmt.Errorf("%w: '%s' belongs to message %d", ErrStorageFileTaken, record.StorageFileID, id)
			}
		}
	}

	record.mappedAt = tx.revision
	if existing, ok := tx.store.records[record.ChannelMessageID]; ok && existing.StorageFileID == record.StorageFileID {
		record.mappedAt = existing.mappedAt
	}

	tx.touch(record.ChannelMessageID)
	record.UpdatedAt = tx.store.now().UTC()
	tx.store.records[record.ChannelMessageID] = &record
	return nil
}

// FindByName returns the active record using name, falling back to the
// oldest non-active record with that name.
func (tx *Tx) FindByName(name string) (Record, bool) {
	var fallback *Record
	for _, r := range tx.store.records {
		if r.Name != name {
			continue
		}
		if r.Active() {
			return *r, true
		}
		if fallback == nil || r.ChannelMessageID < fallback.ChannelMessageID {
			fallback = r
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Record{}, false
}

func (tx *Tx) FindByChannelMessage(id int64) (Record, bool) {
	if r, ok := tx.store.records[id]; ok {
		return *r, true
	}
	return Record{}, false
}

// All returns copies of every record ordered by channel message id.
func (tx *Tx) All() []Record {
	records := make([]Record, 0, len(tx.store.records))
	for _, r := range tx.store.records {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ChannelMessageID < records[j].ChannelMessageID
	})
	return records
}

func (tx *Tx) Delete(id int64) {
	if _, ok := tx.store.records[id]; !ok {
		return
	}
	tx.touch(id)
	delete(tx.store.records, id)
}

func (tx *Tx) rollback() {
	for id, original := range tx.original {
		if original == nil {
			delete(tx.store.records, id)
		} else {
			tx.store.records[id] = original
		}
	}
}

func (tx *Tx) flush() {
	if tx.store.persist == nil || len(tx.original) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	for id := range tx.original {
		var err error
		if r, ok := tx.store.records[id]; ok {
			err = tx.store.persist.SaveRecord(ctx, toModel(*r))
		} else {
			err = tx.store.persist.DeleteRecord(ctx, id)
		}
		if err != nil && tx.store.log != nil {
			tx.store.log.Error("Failed to persist record %d: %v", id, err)
		}
	}
}
