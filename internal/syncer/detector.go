package syncer

import (
	"context"
	"fmt"

	"github.com/mwantia/chansync/internal/mapping"
)

// Verdict is the outcome of a duplicate check.
type Verdict struct {
	Duplicate bool
	// Owner is the record already using the name, if the mapping store knew it.
	Owner *mapping.Record
	// AdoptID is an unmapped storage file with the same name that the
	// candidate may be mapped onto instead of registering a new file.
	AdoptID string
}

// Detector decides whether a file name is already in use.
type Detector struct {
	store   *mapping.Store
	storage Storage
	adopt   bool
}

func NewDetector(store *mapping.Store, storage Storage, adopt bool) *Detector {
	return &Detector{
		store:   store,
		storage: storage,
		adopt:   adopt,
	}
}

// IsDuplicate reports whether another active record already uses name.
// The record of message exclude is never compared against itself.
func (d *Detector) IsDuplicate(ctx context.Context, name string, exclude int64) (bool, error) {
	verdict, err := d.Check(ctx, name, exclude)
	return verdict.Duplicate, err
}

// Check consults the mapping store first. The storage listing is queried
// only while the store is cold, or when adopting existing files is enabled.
// Against a cold store a listed name counts as a duplicate; against a warm
// store it becomes an adoption candidate.
func (d *Detector) Check(ctx context.Context, name string, exclude int64) (Verdict, error) {
	var verdict Verdict

	d.store.Update(func(tx *mapping.Tx) error {
		if owner, ok := activeOwner(tx, name, exclude); ok {
			verdict = Verdict{Duplicate: true, Owner: &owner}
		}
		return nil
	})
	if verdict.Duplicate {
		return verdict, nil
	}

	warm := d.store.Warm()
	if warm && !d.adopt {
		return verdict, nil
	}

	entries, err := d.storage.List(ctx)
	if err != nil {
		return verdict, fmt.Errorf("%w: %v", ErrListing, err)
	}

	mapped := mappedStorageIDs(d.store.All())
	for _, entry := range entries {
		if entry.Name != name {
			continue
		}
		if !warm {
			verdict.Duplicate = true
			return verdict, nil
		}
		if !mapped[entry.ID] {
			verdict.AdoptID = entry.ID
			return verdict, nil
		}
	}

	return verdict, nil
}

// activeOwner returns the registered or absent record using name, other than exclude.
func activeOwner(tx *mapping.Tx, name string, exclude int64) (mapping.Record, bool) {
	for _, r := range tx.All() {
		if r.ChannelMessageID != exclude && r.Active() && r.Name == name {
			return r, true
		}
	}
	return mapping.Record{}, false
}

func mappedStorageIDs(records []mapping.Record) map[string]bool {
	ids := make(map[string]bool, len(records))
	for _, r := range records {
		if r.StorageFileID != "" {
			ids[r.StorageFileID] = true
		}
	}
	return ids
}
