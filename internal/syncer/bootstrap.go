package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/pkg/channel"
	"github.com/mwantia/chansync/pkg/storage"
)

// DuplicateFinding is an older history message repeating a name that is
// already mapped. Bootstrap reports it but never deletes it.
type DuplicateFinding struct {
	MessageID int64  `json:"messageId"`
	Name      string `json:"name"`
	OwnerID   int64  `json:"ownerId"`
}

type BootstrapReport struct {
	Scanned    int                `json:"scanned"`
	Files      int                `json:"files"`
	Invalid    int                `json:"invalid"`
	Known      int                `json:"known"`
	Registered int                `json:"registered"`
	Pending    int                `json:"pending"`
	Duplicates []DuplicateFinding `json:"duplicates,omitempty"`
	// Unmatched counts storage files no scanned message could be mapped to.
	Unmatched int `json:"unmatched"`
}

// Bootstrap seeds the mapping store from the most recent channel history.
// Messages whose name is listed in storage become registered, other file
// messages are seeded as pending. The channel is never modified. Any failure
// to fetch the listing or the history aborts the scan.
func (e *Engine) Bootstrap(ctx context.Context) (BootstrapReport, error) {
	var report BootstrapReport
	e.log.Info("Building file mapping from the last %d channel messages...", e.opts.MaxScanMessages)

	entries, err := e.storage.List(ctx)
	if err != nil {
		return report, fmt.Errorf("bootstrap: %w: %v", ErrListing, err)
	}

	history, err := e.channel.History(ctx, e.opts.MaxScanMessages)
	if err != nil {
		return report, fmt.Errorf("bootstrap: %w: %v", ErrHistory, err)
	}
	history = mostRecent(history, e.opts.MaxScanMessages)
	report.Scanned = len(history)

	byName := make(map[string][]storage.Entry)
	for _, entry := range entries {
		byName[entry.Name] = append(byName[entry.Name], entry)
	}

	err = e.store.Update(func(tx *mapping.Tx) error {
		records := tx.All()
		mapped := mappedStorageIDs(records)

		// owners tracks which message holds each name, including records
		// loaded from persistence before the scan.
		owners := make(map[string]int64)
		for _, r := range records {
			if r.Active() || r.State == mapping.StatePending {
				if _, ok := owners[r.Name]; !ok || r.Active() {
					owners[r.Name] = r.ChannelMessageID
				}
			}
		}

		for _, msg := range history {
			att, err := Extract(msg)
			if errors.Is(err, ErrNoAttachment) {
				continue
			}
			if err != nil {
				report.Invalid++
				e.log.Debug("Skipping history message %d: %v", msg.ID, err)
				continue
			}
			report.Files++

			if _, ok := tx.FindByChannelMessage(msg.ID); ok {
				report.Known++
				continue
			}

			if owner, ok := owners[att.Name]; ok {
				report.Duplicates = append(report.Duplicates, DuplicateFinding{
					MessageID: msg.ID,
					Name:      att.Name,
					OwnerID:   owner,
				})
				continue
			}
			owners[att.Name] = msg.ID

			record := pendingRecord(att)
			if entry, ok := unmappedByName(byName[att.Name], mapped); ok {
				mapped[entry.ID] = true
				record.State = mapping.StateRegistered
				record.StorageFileID = entry.ID
				report.Registered++
			} else {
				report.Pending++
			}

			if err := tx.Upsert(record); err != nil {
				return fmt.Errorf("failed to seed message %d: %w", msg.ID, err)
			}
		}

		for _, entry := range entries {
			if !mapped[entry.ID] {
				report.Unmatched++
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("bootstrap: %w", err)
	}

	e.store.MarkWarm()
	updateRecordGauges(e.store)

	e.log.Info("Mapping built: %d messages scanned, %d files, %d registered, %d pending, %d already known, %d duplicates",
		report.Scanned, report.Files, report.Registered, report.Pending, report.Known, len(report.Duplicates))
	for _, dup := range report.Duplicates {
		e.log.Warn("History message %d repeats '%s' (mapped to message %d), left untouched", dup.MessageID, dup.Name, dup.OwnerID)
	}
	if report.Unmatched > 0 {
		e.log.Warn("%d storage file(s) have no matching channel message", report.Unmatched)
	}

	return report, nil
}

// mostRecent orders messages newest first and keeps at most limit of them.
func mostRecent(messages []channel.Message, limit int) []channel.Message {
	sorted := make([]channel.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
