package syncer

import (
	"context"
	"fmt"
	"testing"

	"github.com/mwantia/chansync/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessage_DistinctNamesRegisterOnce(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(i, fmt.Sprintf("file-%d.txt", i))))
	}

	assert.Empty(t, env.channel.Deleted())
	assert.Len(t, env.storage.Registered(), 5)

	records := env.store.All()
	require.Len(t, records, 5)
	for _, r := range records {
		assert.Equal(t, mapping.StateRegistered, r.State)
		assert.NotEmpty(t, r.StorageFileID)
		assert.Equal(t, 0, r.AbsenceCount)
	}
}

func TestHandleMessage_SecondSameNameIsDeleted(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()

	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(1, "a.txt")))
	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(2, "a.txt")))

	assert.Equal(t, []int64{2}, env.channel.Deleted())
	assert.Len(t, env.storage.Registered(), 1)

	first, ok := env.store.FindByChannelMessage(1)
	require.True(t, ok)
	assert.Equal(t, mapping.StateRegistered, first.State)

	_, ok = env.store.FindByChannelMessage(2)
	assert.False(t, ok, "duplicate must never get a record")
}

func TestHandleMessage_DuplicateOfRegisteredLeavesStoreUnchanged(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()

	require.NoError(t, env.store.Upsert(mapping.Record{
		ChannelMessageID: 10,
		StorageFileID:    "existing",
		Name:             "a.txt",
		State:            mapping.StateRegistered,
	}))
	before := env.store.All()

	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(11, "a.txt")))

	assert.Equal(t, []int64{11}, env.channel.Deleted())
	assert.Empty(t, env.storage.Registered())
	assert.Equal(t, before, env.store.All())
}

func TestHandleMessage_DuplicateOfAbsentRecord(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()

	require.NoError(t, env.store.Upsert(mapping.Record{
		ChannelMessageID: 10,
		StorageFileID:    "existing",
		Name:             "a.txt",
		State:            mapping.StateAbsent,
		AbsenceCount:     1,
	}))

	duplicate, err := env.engine.detector.IsDuplicate(context.Background(), "a.txt", 11)
	require.NoError(t, err)
	assert.True(t, duplicate)

	duplicate, err = env.engine.detector.IsDuplicate(context.Background(), "a.txt", 10)
	require.NoError(t, err)
	assert.False(t, duplicate, "a record is never its own duplicate")
}

func TestHandleMessage_NameOfDeletingRecordIsFree(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()

	require.NoError(t, env.store.Upsert(mapping.Record{
		ChannelMessageID: 10,
		StorageFileID:    "gone",
		Name:             "a.txt",
		State:            mapping.StateDeleted,
		AbsenceCount:     3,
	}))

	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(11, "a.txt")))

	assert.Empty(t, env.channel.Deleted())
	r, ok := env.store.FindByChannelMessage(11)
	require.True(t, ok)
	assert.Equal(t, mapping.StateRegistered, r.State)
}

func TestHandleMessage_IgnoresNonFiles(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()

	require.NoError(t, env.engine.HandleMessage(context.Background(), textMessage(1)))
	assert.Empty(t, env.store.All())
	assert.Empty(t, env.channel.Deleted())
}

func TestHandleMessage_ExtractionErrorDropsEvent(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()

	msg := fileMessage(1, "a.txt")
	msg.Media.Kind = "poll"

	err := env.engine.HandleMessage(context.Background(), msg)
	require.ErrorIs(t, err, ErrExtraction)
	assert.Empty(t, env.store.All())
	assert.Empty(t, env.channel.Deleted())
}

func TestHandleMessage_RegistrationFailureStaysPending(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()
	env.storage.setRegisterErr(errUnavailable)

	err := env.engine.HandleMessage(ctx, fileMessage(1, "a.txt"))
	require.ErrorIs(t, err, ErrRegistration)

	r, ok := env.store.FindByChannelMessage(1)
	require.True(t, ok)
	assert.Equal(t, mapping.StatePending, r.State)
	assert.Empty(t, r.StorageFileID)
	assert.Empty(t, env.channel.Deleted(), "failed registration must not delete the message")

	env.storage.setRegisterErr(nil)
	report := env.engine.RetryPending(ctx)
	assert.Equal(t, RetryReport{Attempted: 1, Registered: 1}, report)

	r, ok = env.store.FindByChannelMessage(1)
	require.True(t, ok)
	assert.Equal(t, mapping.StateRegistered, r.State)
	assert.Equal(t, "file-1", r.StorageFileID)
}

func TestHandleMessage_ReobservedPendingIsRetried(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()

	env.storage.setRegisterErr(errUnavailable)
	require.Error(t, env.engine.HandleMessage(ctx, fileMessage(1, "a.txt")))

	env.storage.setRegisterErr(nil)
	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(1, "a.txt")))

	r, _ := env.store.FindByChannelMessage(1)
	assert.Equal(t, mapping.StateRegistered, r.State)

	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(1, "a.txt")))
	assert.Len(t, env.storage.Registered(), 1, "registered messages are not registered again")
}

func TestHandleMessage_DuplicateDeleteFailureIsNotRetried(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()

	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(1, "a.txt")))
	env.channel.setDeleteErr(2, errUnavailable)

	err := env.engine.HandleMessage(ctx, fileMessage(2, "a.txt"))
	require.ErrorIs(t, err, ErrChannelDelete)

	assert.Empty(t, env.channel.Deleted())
	assert.Len(t, env.storage.Registered(), 1)
	_, ok := env.store.FindByChannelMessage(2)
	assert.False(t, ok)
}

func TestHandleMessage_ColdStoreChecksStorage(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.storage.add("remote-1", "a.txt")

	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(1, "a.txt")))
	assert.Equal(t, []int64{1}, env.channel.Deleted())
	assert.Empty(t, env.storage.Registered())

	require.NoError(t, env.engine.HandleMessage(ctx, fileMessage(2, "b.txt")))
	assert.Len(t, env.storage.Registered(), 1)
}

func TestHandleMessage_ColdStoreListingFailureKeepsPending(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.storage.setListErr(errUnavailable)

	err := env.engine.HandleMessage(context.Background(), fileMessage(1, "a.txt"))
	require.ErrorIs(t, err, ErrListing)

	r, ok := env.store.FindByChannelMessage(1)
	require.True(t, ok)
	assert.Equal(t, mapping.StatePending, r.State)
	assert.Empty(t, env.storage.Registered())
	assert.Empty(t, env.channel.Deleted())
}

func TestHandleMessage_WarmStoreSkipsListing(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	env.storage.add("remote-1", "a.txt")

	require.NoError(t, env.engine.HandleMessage(context.Background(), fileMessage(1, "b.txt")))
	assert.Equal(t, 0, env.storage.listCalls)
}

func TestHandleMessage_AdoptExisting(t *testing.T) {
	opts := testOptions()
	opts.AdoptExisting = true
	env := newTestEnv(t, opts).warm()
	env.storage.add("remote-1", "a.txt")

	require.NoError(t, env.engine.HandleMessage(context.Background(), fileMessage(1, "a.txt")))

	assert.Empty(t, env.storage.Registered())
	assert.Empty(t, env.channel.Deleted())
	r, ok := env.store.FindByChannelMessage(1)
	require.True(t, ok)
	assert.Equal(t, mapping.StateRegistered, r.State)
	assert.Equal(t, "remote-1", r.StorageFileID)
}

func TestHandleMessage_AdoptTargetTakenLeavesPending(t *testing.T) {
	opts := testOptions()
	opts.AdoptExisting = true
	env := newTestEnv(t, opts).warm()
	env.storage.add("remote-1", "a.txt")

	// Another message claims the storage file between the check and the claim.
	env.storage.onNextList(func() {
		require.NoError(t, env.store.Upsert(mapping.Record{
			ChannelMessageID: 1,
			StorageFileID:    "remote-1",
			Name:             "renamed.txt",
			State:            mapping.StateRegistered,
		}))
	})

	require.NoError(t, env.engine.HandleMessage(context.Background(), fileMessage(2, "a.txt")))

	r, ok := env.store.FindByChannelMessage(2)
	require.True(t, ok, "message keeps a record")
	assert.Equal(t, mapping.StatePending, r.State)
	assert.Empty(t, r.StorageFileID)
	assert.Empty(t, env.storage.Registered())
	assert.Empty(t, env.channel.Deleted())

	owner, ok := env.store.FindByChannelMessage(1)
	require.True(t, ok)
	assert.Equal(t, "remote-1", owner.StorageFileID)
}

func TestRetryPending_SkipsDuplicates(t *testing.T) {
	env := newTestEnv(t, testOptions()).warm()
	ctx := context.Background()

	require.NoError(t, env.store.Upsert(mapping.Record{ChannelMessageID: 1, StorageFileID: "f", Name: "a.txt", State: mapping.StateRegistered}))
	require.NoError(t, env.store.Upsert(mapping.Record{ChannelMessageID: 2, Name: "a.txt", State: mapping.StatePending}))

	report := env.engine.RetryPending(ctx)
	assert.Equal(t, RetryReport{Attempted: 1, Duplicates: 1}, report)
	assert.Empty(t, env.channel.Deleted())
	assert.Empty(t, env.storage.Registered())
}
