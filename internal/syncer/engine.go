// Package syncer keeps the files announced in a channel consistent with the
// file index of a storage service.
//
// The channel is authoritative for creation: new file messages are registered
// in storage unless their name is already mapped, in which case the message is
// deleted. Storage is authoritative for deletion: a mapped file that stays
// missing from the storage listing for ConfirmCycles consecutive
// reconciliation cycles has its channel message deleted.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	config "github.com/mwantia/chansync/internal/config/server"
	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/pkg/channel"
	"github.com/mwantia/chansync/pkg/log"
	"github.com/mwantia/chansync/pkg/storage"
)

// Channel is the messaging side of the synchronization.
type Channel interface {
	// Subscribe starts the live event stream. It may be called only once.
	Subscribe(ctx context.Context) (<-chan channel.Message, error)
	// History returns up to limit of the most recent messages, newest first.
	History(ctx context.Context, limit int) ([]channel.Message, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// Storage is the file index the channel is mirrored into.
type Storage interface {
	Register(ctx context.Context, file storage.File) (string, error)
	List(ctx context.Context) ([]storage.Entry, error)
}

type Options struct {
	Enabled         bool
	Interval        time.Duration
	ConfirmCycles   int
	MaxScanMessages int
	AdoptExisting   bool
	FollowMoves     bool
}

func OptionsFromConfig(cfg config.SyncServerConfig) Options {
	return Options{
		Enabled:         cfg.Enabled,
		Interval:        cfg.IntervalDuration(),
		ConfirmCycles:   cfg.ConfirmCycles,
		MaxScanMessages: cfg.MaxScanMessages,
		AdoptExisting:   cfg.AdoptExisting,
		FollowMoves:     cfg.FollowMoves,
	}
}

func (o Options) validate() error {
	if o.Enabled && o.Interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}
	if o.ConfirmCycles < 1 {
		return fmt.Errorf("confirm cycles must be at least 1")
	}
	if o.MaxScanMessages <= 0 {
		return fmt.Errorf("max scan messages must be positive")
	}
	return nil
}

type Engine struct {
	opts     Options
	channel  Channel
	storage  Storage
	store    *mapping.Store
	detector *Detector
	log      log.LoggerService

	// ingestMutex serializes live event handling with RetryPending so a
	// pending record is never registered twice.
	ingestMutex sync.Mutex

	cycleMutex sync.Mutex
	inProcess  bool
	lastCycle  *CycleReport
}

func NewEngine(opts Options, ch Channel, st Storage, store *mapping.Store, logger log.LoggerService) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid sync options: %w", err)
	}
	if ch == nil || st == nil || store == nil {
		return nil, errors.New("channel, storage and mapping store are required")
	}

	return &Engine{
		opts:     opts,
		channel:  ch,
		storage:  st,
		store:    store,
		detector: NewDetector(store, st, opts.AdoptExisting),
		log:      logger,
	}, nil
}

func (e *Engine) Store() *mapping.Store {
	return e.store
}

// Run seeds the mapping store and then processes live events and
// reconciliation cycles until ctx is cancelled or the event stream ends.
// Bootstrap failures are returned before any live processing starts.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe first so events posted during the bootstrap scan are buffered.
	events, err := e.channel.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to channel events: %w", err)
	}

	if _, err := e.Bootstrap(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	var listenErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		listenErr = e.listen(ctx, events)
		cancel()
	}()

	if e.opts.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.reconcileLoop(ctx)
		}()
	} else {
		e.log.Info("Deletion sync disabled")
	}

	wg.Wait()
	return listenErr
}

func (e *Engine) listen(ctx context.Context, events <-chan channel.Message) error {
	e.log.Info("Listening for channel messages")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				e.log.Error("Channel event stream closed")
				return ErrStreamClosed
			}
			// An event that has started is finished even during shutdown.
			e.HandleMessage(context.WithoutCancel(ctx), msg)
		}
	}
}

func (e *Engine) reconcileLoop(ctx context.Context) {
	e.log.Info("Deletion sync started (every %s, %d confirm cycles)", e.opts.Interval, e.opts.ConfirmCycles)

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunOnce(context.WithoutCancel(ctx))
		}
	}
}
