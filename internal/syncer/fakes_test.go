package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	config "github.com/mwantia/chansync/internal/config/server"
	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/pkg/channel"
	"github.com/mwantia/chansync/pkg/log"
	"github.com/mwantia/chansync/pkg/storage"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("service unavailable")

type fakeChannel struct {
	mutex      sync.Mutex
	history    []channel.Message
	historyErr error
	events     chan channel.Message
	subscribed bool
	deleted    []int64
	deleteErr  map[int64]error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		events:    make(chan channel.Message, 16),
		deleteErr: make(map[int64]error),
	}
}

func (f *fakeChannel) Subscribe(ctx context.Context) (<-chan channel.Message, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.subscribed {
		return nil, errors.New("already subscribed")
	}
	f.subscribed = true
	return f.events, nil
}

func (f *fakeChannel) History(ctx context.Context, limit int) ([]channel.Message, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	sorted := make([]channel.Message, len(f.history))
	copy(sorted, f.history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (f *fakeChannel) DeleteMessage(ctx context.Context, id int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeChannel) setDeleteErr(id int64, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err == nil {
		delete(f.deleteErr, id)
		return
	}
	f.deleteErr[id] = err
}

func (f *fakeChannel) Deleted() []int64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]int64(nil), f.deleted...)
}

type fakeStorage struct {
	mutex       sync.Mutex
	entries     map[string]storage.Entry
	nextID      int
	listErr     error
	registerErr error
	registered  []storage.File
	listCalls   int
	// afterList runs once, after the next listing snapshot was taken.
	afterList func()
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{entries: make(map[string]storage.Entry)}
}

func (f *fakeStorage) Register(ctx context.Context, file storage.File) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.registerErr != nil {
		return "", f.registerErr
	}
	f.nextID++
	id := fmt.Sprintf("file-%d", f.nextID)
	f.entries[id] = storage.Entry{ID: id, Name: file.Name, Path: "/" + file.Name}
	f.registered = append(f.registered, file)
	return id, nil
}

func (f *fakeStorage) List(ctx context.Context) ([]storage.Entry, error) {
	entries, err := f.snapshot()

	f.mutex.Lock()
	hook := f.afterList
	f.afterList = nil
	f.mutex.Unlock()
	if hook != nil {
		hook()
	}

	return entries, err
}

func (f *fakeStorage) snapshot() ([]storage.Entry, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	entries := make([]storage.Entry, 0, len(f.entries))
	for _, entry := range f.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (f *fakeStorage) onNextList(fn func()) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.afterList = fn
}

func (f *fakeStorage) add(id, name string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.entries[id] = storage.Entry{ID: id, Name: name, Path: "/" + name}
}

func (f *fakeStorage) remove(id string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.entries, id)
}

func (f *fakeStorage) setListErr(err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.listErr = err
}

func (f *fakeStorage) setRegisterErr(err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.registerErr = err
}

func (f *fakeStorage) Registered() []storage.File {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]storage.File(nil), f.registered...)
}

func testLogger() log.LoggerService {
	return log.NewWriterLoggerService("test", config.LogServerConfig{
		Level:      "DEBUG",
		TimeFormat: time.RFC3339,
	}, io.Discard)
}

func testOptions() Options {
	return Options{
		Enabled:         true,
		Interval:        10 * time.Second,
		ConfirmCycles:   3,
		MaxScanMessages: 100,
		FollowMoves:     true,
	}
}

type testEnv struct {
	engine  *Engine
	channel *fakeChannel
	storage *fakeStorage
	store   *mapping.Store
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	ch := newFakeChannel()
	st := newFakeStorage()
	store := mapping.NewStore()

	engine, err := NewEngine(opts, ch, st, store, testLogger())
	require.NoError(t, err)

	return &testEnv{engine: engine, channel: ch, storage: st, store: store}
}

// warm marks the store as seeded, as Bootstrap does before live processing.
func (env *testEnv) warm() *testEnv {
	env.store.MarkWarm()
	return env
}

func fileMessage(id int64, name string) channel.Message {
	return channel.Message{
		ID:   id,
		Date: time.Unix(1700000000+id, 0).UTC(),
		Media: &channel.Media{
			Kind:     channel.MediaDocument,
			FileName: name,
			MimeType: "text/plain",
			Size:     100 + id,
		},
	}
}

func textMessage(id int64) channel.Message {
	return channel.Message{ID: id, Date: time.Unix(1700000000+id, 0).UTC()}
}
