package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/pkg/log"
	"github.com/mwantia/chansync/pkg/storage"
)

// CycleReport summarizes one reconciliation cycle.
type CycleReport struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Skipped     bool          `json:"skipped"`
	Error       string        `json:"error,omitempty"`
	Listed      int           `json:"listed"`
	Checked     int           `json:"checked"`
	Fresh       int           `json:"fresh"`
	Present     int           `json:"present"`
	Absent      int           `json:"absent"`
	Moved       int           `json:"moved"`
	Deleted     int           `json:"deleted"`
	DeleteFails int           `json:"deleteFailures"`
}

// LastCycle returns the report of the most recent cycle, if any.
func (e *Engine) LastCycle() (CycleReport, bool) {
	e.cycleMutex.Lock()
	defer e.cycleMutex.Unlock()

	if e.lastCycle == nil {
		return CycleReport{}, false
	}
	return *e.lastCycle, true
}

// RunOnce performs a single reconciliation cycle. A cycle that cannot fetch
// the storage listing is skipped without touching any record. Overlapping
// calls return ErrCycleInProcess; with deletion sync disabled every call
// returns ErrSyncDisabled.
func (e *Engine) RunOnce(ctx context.Context) (CycleReport, error) {
	if !e.opts.Enabled {
		return CycleReport{}, ErrSyncDisabled
	}

	e.cycleMutex.Lock()
	if e.inProcess {
		e.cycleMutex.Unlock()
		reconcileRunsTotal.WithLabelValues("overlapped").Inc()
		e.log.Warn("Reconciliation already running, skipping tick")
		return CycleReport{}, ErrCycleInProcess
	}
	e.inProcess = true
	e.cycleMutex.Unlock()

	report := e.reconcile(ctx)

	e.cycleMutex.Lock()
	e.inProcess = false
	e.lastCycle = &report
	e.cycleMutex.Unlock()

	updateRecordGauges(e.store)

	if report.Skipped {
		return report, fmt.Errorf("%w: %s", ErrListing, report.Error)
	}
	return report, nil
}

func (e *Engine) reconcile(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:        uuid.NewString()[:8],
		StartedAt: time.Now().UTC(),
	}
	logger := e.log.Named(report.ID)

	// Records mapped after this point may be missing from the listing.
	since := e.store.Revision()

	entries, err := e.storage.List(ctx)
	if err != nil {
		report.Skipped = true
		report.Error = err.Error()
		report.Duration = time.Since(report.StartedAt)
		reconcileRunsTotal.WithLabelValues("skipped").Inc()
		logger.Warn("Storage listing failed, cycle skipped without changes: %v", err)
		return report
	}
	report.Listed = len(entries)

	due, err := e.trackAbsence(entries, since, &report, logger)
	if err != nil {
		report.Skipped = true
		report.Error = err.Error()
		report.Duration = time.Since(report.StartedAt)
		reconcileRunsTotal.WithLabelValues("skipped").Inc()
		logger.Error("Failed to apply absence tracking, cycle discarded: %v", err)
		return report
	}

	for _, record := range due {
		if e.deleteAbsent(ctx, record, logger) {
			report.Deleted++
		} else {
			report.DeleteFails++
		}
	}

	report.Duration = time.Since(report.StartedAt)
	reconcileRunsTotal.WithLabelValues("completed").Inc()
	reconcileDurationSeconds.Observe(report.Duration.Seconds())

	logger.Info("Reconciliation finished: %d listed, %d checked, %d fresh, %d present, %d absent, %d moved, %d deleted, %d delete failures",
		report.Listed, report.Checked, report.Fresh, report.Present, report.Absent, report.Moved, report.Deleted, report.DeleteFails)
	return report
}

// trackAbsence updates the absence counters of all active records in one
// transaction and returns the records whose deletion is now confirmed.
// Records mapped after revision since are left alone for this cycle.
// Confirmed records are moved to StateDeleted, which removes them from
// duplicate detection while their channel message is deleted.
func (e *Engine) trackAbsence(entries []storage.Entry, since uint64, report *CycleReport, logger log.LoggerService) ([]mapping.Record, error) {
	present := make(map[string]bool, len(entries))
	byName := make(map[string][]storage.Entry)
	for _, entry := range entries {
		present[entry.ID] = true
		byName[entry.Name] = append(byName[entry.Name], entry)
	}

	var due []mapping.Record
	err := e.store.Update(func(tx *mapping.Tx) error {
		records := tx.All()
		mapped := mappedStorageIDs(records)

		for _, record := range records {
			if !record.Active() {
				continue
			}
			report.Checked++

			if record.MappedSince(since) && !present[record.StorageFileID] {
				report.Fresh++
				logger.Debug("File '%s' was mapped during the listing, checking next cycle", record.Name)
				continue
			}

			if present[record.StorageFileID] {
				report.Present++
				if record.State == mapping.StateRegistered {
					continue
				}
				logger.Info("File '%s' is back after %d absent cycle(s)", record.Name, record.AbsenceCount)
				record.State = mapping.StateRegistered
				record.AbsenceCount = 0
				if err := tx.Upsert(record); err != nil {
					return err
				}
				continue
			}

			if e.opts.FollowMoves {
				if moved, ok := unmappedByName(byName[record.Name], mapped); ok {
					report.Moved++
					logger.Info("File '%s' moved from %s to %s, mapping migrated", record.Name, record.StorageFileID, moved.ID)
					mapped[moved.ID] = true
					record.StorageFileID = moved.ID
					record.State = mapping.StateRegistered
					record.AbsenceCount = 0
					if err := tx.Upsert(record); err != nil {
						return err
					}
					continue
				}
			}

			report.Absent++
			record.AbsenceCount = min(record.AbsenceCount+1, e.opts.ConfirmCycles)
			if record.AbsenceCount >= e.opts.ConfirmCycles {
				record.State = mapping.StateDeleted
				due = append(due, record)
				logger.Info("File '%s' absent for %d cycles, deleting message %d", record.Name, record.AbsenceCount, record.ChannelMessageID)
			} else {
				record.State = mapping.StateAbsent
				logger.Info("File '%s' absent, waiting for confirmation (%d/%d)", record.Name, record.AbsenceCount, e.opts.ConfirmCycles)
			}
			if err := tx.Upsert(record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// deleteAbsent deletes the channel message of a confirmed-absent record and
// removes the record. A failed deletion puts the record back to absent at
// the confirmation threshold, so the next cycle that still misses the file
// retries the deletion.
func (e *Engine) deleteAbsent(ctx context.Context, record mapping.Record, logger log.LoggerService) bool {
	if err := e.channel.DeleteMessage(ctx, record.ChannelMessageID); err != nil {
		channelDeletionsTotal.WithLabelValues("absent", "failure").Inc()
		logger.Error("Failed to delete message %d for '%s': %v", record.ChannelMessageID, record.Name, err)

		e.store.Update(func(tx *mapping.Tx) error {
			current, ok := tx.FindByChannelMessage(record.ChannelMessageID)
			if !ok || current.State != mapping.StateDeleted {
				return nil
			}
			current.State = mapping.StateAbsent
			current.AbsenceCount = e.opts.ConfirmCycles
			if err := tx.Upsert(current); err != nil {
				// The name was claimed by a newer message in the meantime.
				logger.Error("Dropping record of message %d: %v", record.ChannelMessageID, err)
				tx.Delete(record.ChannelMessageID)
			}
			return nil
		})
		return false
	}

	channelDeletionsTotal.WithLabelValues("absent", "success").Inc()
	e.store.Update(func(tx *mapping.Tx) error {
		if current, ok := tx.FindByChannelMessage(record.ChannelMessageID); ok && current.State == mapping.StateDeleted {
			tx.Delete(record.ChannelMessageID)
		}
		return nil
	})
	logger.Info("Deleted message %d for removed file '%s'", record.ChannelMessageID, record.Name)
	return true
}

func unmappedByName(candidates []storage.Entry, mapped map[string]bool) (storage.Entry, bool) {
	for _, entry := range candidates {
		if !mapped[entry.ID] {
			return entry, true
		}
	}
	return storage.Entry{}, false
}
