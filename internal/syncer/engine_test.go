package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/pkg/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_ValidatesOptions(t *testing.T) {
	store := mapping.NewStore()

	opts := testOptions()
	opts.ConfirmCycles = 0
	_, err := NewEngine(opts, newFakeChannel(), newFakeStorage(), store, testLogger())
	require.Error(t, err)

	opts = testOptions()
	opts.Interval = 0
	_, err = NewEngine(opts, newFakeChannel(), newFakeStorage(), store, testLogger())
	require.Error(t, err)

	opts.Enabled = false
	_, err = NewEngine(opts, newFakeChannel(), newFakeStorage(), store, testLogger())
	require.NoError(t, err, "interval is irrelevant while sync is disabled")

	_, err = NewEngine(testOptions(), nil, newFakeStorage(), store, testLogger())
	require.Error(t, err)
}

func TestRun_BootstrapsThenProcessesEvents(t *testing.T) {
	opts := testOptions()
	opts.Interval = 20 * time.Millisecond
	env := newTestEnv(t, opts)

	env.channel.history = []channel.Message{fileMessage(1, "old.txt")}
	env.storage.add("remote-old", "old.txt")

	// Posted before Run; must be handled after the bootstrap scan.
	env.channel.events <- fileMessage(2, "old.txt")
	env.channel.events <- fileMessage(3, "new.txt")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.engine.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		r, ok := env.store.FindByChannelMessage(3)
		return ok && r.State == mapping.StateRegistered
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []int64{2}, env.channel.Deleted())

	require.Eventually(t, func() bool {
		_, ok := env.engine.LastCycle()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_StreamClosed(t *testing.T) {
	opts := testOptions()
	opts.Enabled = false
	env := newTestEnv(t, opts)
	close(env.channel.events)

	err := env.engine.Run(context.Background())
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestRun_BootstrapFailureAbortsStartup(t *testing.T) {
	env := newTestEnv(t, testOptions())
	env.channel.historyErr = errUnavailable

	err := env.engine.Run(context.Background())
	require.ErrorIs(t, err, ErrHistory)
}
