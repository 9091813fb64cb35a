package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/pkg/channel"
	"github.com/mwantia/chansync/pkg/storage"
)

// HandleMessage processes a single new channel message. Every failure is
// logged and counted here; the returned error is informational and never
// stops the listener.
func (e *Engine) HandleMessage(ctx context.Context, msg channel.Message) error {
	e.ingestMutex.Lock()
	defer e.ingestMutex.Unlock()
	defer updateRecordGauges(e.store)

	att, err := Extract(msg)
	if errors.Is(err, ErrNoAttachment) {
		ingestEventsTotal.WithLabelValues("ignored").Inc()
		e.log.Debug("Message %d carries no file, ignoring", msg.ID)
		return nil
	}
	if err != nil {
		ingestEventsTotal.WithLabelValues("invalid").Inc()
		e.log.Warn("Dropping message %d: %v", msg.ID, err)
		return err
	}

	if existing, ok := e.store.FindByChannelMessage(msg.ID); ok && existing.State != mapping.StatePending {
		ingestEventsTotal.WithLabelValues("known").Inc()
		e.log.Debug("Message %d is already mapped as '%s' (%s)", msg.ID, existing.Name, existing.State)
		return nil
	}

	e.log.Info("New file '%s' (%d bytes) in message %d", att.Name, att.Size, msg.ID)

	verdict, err := e.detector.Check(ctx, att.Name, msg.ID)
	if err != nil {
		// Without a listing the name cannot be cleared; keep the message
		// as pending instead of risking a second storage entry.
		e.log.Error("Unable to check '%s' for duplicates: %v", att.Name, err)
		if claimErr := e.store.Upsert(pendingRecord(att)); claimErr != nil {
			e.log.Error("Failed to record pending message %d: %v", msg.ID, claimErr)
		}
		ingestEventsTotal.WithLabelValues("pending").Inc()
		return err
	}
	if verdict.Duplicate {
		return e.discardDuplicate(ctx, att, verdict.Owner)
	}

	var owner *mapping.Record
	var adoptLost bool
	err = e.store.Update(func(tx *mapping.Tx) error {
		if r, ok := activeOwner(tx, att.Name, msg.ID); ok {
			owner = &r
			return nil
		}
		if verdict.AdoptID != "" {
			record := pendingRecord(att)
			record.State = mapping.StateRegistered
			record.StorageFileID = verdict.AdoptID
			err := tx.Upsert(record)
			if !errors.Is(err, mapping.ErrStorageFileTaken) {
				return err
			}
			adoptLost = true
		}
		return tx.Upsert(pendingRecord(att))
	})
	if err != nil {
		ingestEventsTotal.WithLabelValues("pending").Inc()
		e.log.Error("Failed to claim '%s' for message %d: %v", att.Name, msg.ID, err)
		return err
	}
	if owner != nil {
		return e.discardDuplicate(ctx, att, owner)
	}

	if adoptLost {
		// Registering now would create a second storage file with this name.
		ingestEventsTotal.WithLabelValues("pending").Inc()
		e.log.Warn("Storage file %s for '%s' was mapped to another message meanwhile, message %d left pending",
			verdict.AdoptID, att.Name, msg.ID)
		return nil
	}

	if verdict.AdoptID != "" {
		ingestEventsTotal.WithLabelValues("adopted").Inc()
		e.log.Info("File '%s' already exists in storage as %s, mapped without registering", att.Name, verdict.AdoptID)
		return nil
	}

	if err := e.register(ctx, att); err != nil {
		ingestEventsTotal.WithLabelValues("pending").Inc()
		return err
	}

	ingestEventsTotal.WithLabelValues("registered").Inc()
	return nil
}

// discardDuplicate deletes the channel message of a duplicate file. The
// deletion is attempted once; a failure is logged and left for the operator.
func (e *Engine) discardDuplicate(ctx context.Context, att Attachment, owner *mapping.Record) error {
	ingestEventsTotal.WithLabelValues("duplicate").Inc()
	if owner != nil {
		e.log.Warn("File '%s' in message %d duplicates message %d, deleting", att.Name, att.MessageID, owner.ChannelMessageID)
	} else {
		e.log.Warn("File '%s' in message %d already exists in storage, deleting", att.Name, att.MessageID)
	}

	e.store.Update(func(tx *mapping.Tx) error {
		if r, ok := tx.FindByChannelMessage(att.MessageID); ok && r.State == mapping.StatePending {
			tx.Delete(att.MessageID)
		}
		return nil
	})

	if err := e.channel.DeleteMessage(ctx, att.MessageID); err != nil {
		channelDeletionsTotal.WithLabelValues("duplicate", "failure").Inc()
		e.log.Error("Failed to delete duplicate message %d: %v", att.MessageID, err)
		return fmt.Errorf("%w: message %d: %v", ErrChannelDelete, att.MessageID, err)
	}

	channelDeletionsTotal.WithLabelValues("duplicate", "success").Inc()
	e.log.Info("Deleted duplicate message %d", att.MessageID)
	return nil
}

// register creates the storage entry for a claimed pending record and marks
// the record registered. On failure the record stays pending.
func (e *Engine) register(ctx context.Context, att Attachment) error {
	id, err := e.storage.Register(ctx, storage.File{
		Name:      att.Name,
		MimeType:  att.MimeType,
		Size:      att.Size,
		MessageID: att.MessageID,
	})
	if err == nil && id == "" {
		err = errors.New("storage returned an empty file id")
	}
	if err != nil {
		registrationsTotal.WithLabelValues("failure").Inc()
		e.log.Error("Failed to register '%s' (message %d), left pending: %v", att.Name, att.MessageID, err)
		return fmt.Errorf("%w: %s: %v", ErrRegistration, att.Name, err)
	}

	err = e.store.Update(func(tx *mapping.Tx) error {
		record, ok := tx.FindByChannelMessage(att.MessageID)
		if !ok {
			record = pendingRecord(att)
		}
		record.State = mapping.StateRegistered
		record.StorageFileID = id
		record.AbsenceCount = 0
		return tx.Upsert(record)
	})
	if err != nil {
		registrationsTotal.WithLabelValues("failure").Inc()
		e.log.Error("Registered '%s' as %s but failed to map it: %v", att.Name, id, err)
		return fmt.Errorf("%w: %s: %v", ErrRegistration, att.Name, err)
	}

	registrationsTotal.WithLabelValues("success").Inc()
	e.log.Info("Registered '%s' in storage as %s", att.Name, id)
	return nil
}

// RetryReport summarizes a RetryPending pass.
type RetryReport struct {
	Attempted  int `json:"attempted"`
	Registered int `json:"registered"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// RetryPending attempts registration of every pending record once. Pending
// records whose name is now owned by another record are reported but left
// untouched; only live ingestion deletes duplicate messages.
func (e *Engine) RetryPending(ctx context.Context) RetryReport {
	e.ingestMutex.Lock()
	defer e.ingestMutex.Unlock()
	defer updateRecordGauges(e.store)

	var report RetryReport
	for _, record := range e.store.All() {
		if record.State != mapping.StatePending {
			continue
		}
		report.Attempted++

		duplicate, err := e.detector.IsDuplicate(ctx, record.Name, record.ChannelMessageID)
		if err != nil {
			report.Failed++
			e.log.Error("Unable to check pending '%s' for duplicates: %v", record.Name, err)
			continue
		}
		if duplicate {
			report.Duplicates++
			e.log.Warn("Pending '%s' (message %d) duplicates a mapped file, skipping", record.Name, record.ChannelMessageID)
			continue
		}

		if err := e.register(ctx, attachmentOf(record)); err != nil {
			report.Failed++
			continue
		}
		report.Registered++
	}

	e.log.Info("Pending retry finished: %d attempted, %d registered, %d failed, %d duplicates",
		report.Attempted, report.Registered, report.Failed, report.Duplicates)
	return report
}

func pendingRecord(att Attachment) mapping.Record {
	return mapping.Record{
		ChannelMessageID: att.MessageID,
		Name:             att.Name,
		State:            mapping.StatePending,
		Size:             att.Size,
		MimeType:         att.MimeType,
	}
}

func attachmentOf(r mapping.Record) Attachment {
	return Attachment{
		MessageID: r.ChannelMessageID,
		Name:      r.Name,
		MimeType:  r.MimeType,
		Size:      r.Size,
	}
}
