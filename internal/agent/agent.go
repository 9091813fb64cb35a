package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/mwantia/chansync/internal/api"
	config "github.com/mwantia/chansync/internal/config/server"
	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/internal/syncer"
	"github.com/mwantia/chansync/pkg/channel/relay"
	"github.com/mwantia/chansync/pkg/db/store"
	"github.com/mwantia/chansync/pkg/log"
	"github.com/mwantia/chansync/pkg/storage/teldrive"
	"github.com/mwantia/fabric/pkg/container"
)

type ChanSyncAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService

	metadata store.MetadataStore
	engine   *syncer.Engine
	server   *api.Server
}

func NewAgent(cfg *config.BaseServerConfig) *ChanSyncAgent {
	return &ChanSyncAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("chansync", cfg.Log),
	}
}

func (csa *ChanSyncAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	csa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](csa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(csa.log)))

	var opts []mapping.Option
	opts = append(opts, mapping.WithLogger(csa.log.Named("mapping")))

	if csa.cfg.Metadata.Type == "sqlite" {
		metadata, err := csa.openMetadata(ctx)
		if err != nil {
			return err
		}
		csa.metadata = metadata
		opts = append(opts, mapping.WithPersister(metadata))

		csa.log.Debug("Registering 'MetadataStore'...")
		errs.Add(container.Register[store.SQLiteStore](csa.sc,
			container.With[store.MetadataStore](),
			container.WithInstance(metadata)))
	}

	records := mapping.NewStore(opts...)
	if err := records.Load(ctx); err != nil {
		// Invalid rows are skipped; the bootstrap scan re-seeds what is missing.
		csa.log.Warn("Some persisted records could not be loaded: %v", err)
	}

	channelClient, err := relay.NewClient(relay.Config{
		URL:       csa.cfg.Channel.URL,
		EventsURL: csa.cfg.Channel.EventsURL,
		Token:     csa.cfg.Channel.Token,
		ChannelID: csa.cfg.Channel.ChannelID,
		Buffer:    csa.cfg.Channel.Buffer,
		Timeout:   parseDuration(csa.cfg.Channel.Timeout, 15*time.Second),
	}, csa.log)
	if err != nil {
		return fmt.Errorf("failed to create channel client: %w", err)
	}

	storageChannel := csa.cfg.Storage.ChannelID
	if storageChannel == 0 {
		storageChannel = csa.cfg.Channel.ChannelID
	}
	storageClient, err := teldrive.NewClient(teldrive.Config{
		URL:         csa.cfg.Storage.URL,
		BearerToken: csa.cfg.Storage.BearerToken,
		ChannelID:   storageChannel,
		RootPath:    csa.cfg.Storage.RootPath,
		PageSize:    csa.cfg.Storage.PageSize,
		Timeout:     parseDuration(csa.cfg.Storage.Timeout, 30*time.Second),
	}, csa.log)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	csa.log.Debug("Registering 'Channel'...")
	errs.Add(container.Register[relay.Client](csa.sc,
		container.With[syncer.Channel](),
		container.WithInstance(channelClient)))

	csa.log.Debug("Registering 'Storage'...")
	errs.Add(container.Register[teldrive.Client](csa.sc,
		container.With[syncer.Storage](),
		container.WithInstance(storageClient)))

	engine, err := syncer.NewEngine(syncer.OptionsFromConfig(csa.cfg.Sync),
		channelClient, storageClient, records, csa.log.Named("sync"))
	if err != nil {
		return err
	}
	csa.engine = engine

	csa.log.Debug("Registering 'Engine'...")
	errs.Add(container.Register[syncer.Engine](csa.sc,
		container.With[api.Engine](),
		container.WithInstance(engine)))

	if err := errs.Errors(); err != nil {
		return err
	}

	if csa.cfg.HTTP.Enabled {
		server, err := csa.newServer(ctx)
		if err != nil {
			return err
		}
		csa.server = server
	}

	return nil
}

// newServer builds the operator API from the services registered in the container.
func (csa *ChanSyncAgent) newServer(ctx context.Context) (*api.Server, error) {
	engine, err := resolve[api.Engine](ctx, csa.sc)
	if err != nil {
		return nil, err
	}
	logger, err := resolve[log.LoggerService](ctx, csa.sc)
	if err != nil {
		return nil, err
	}
	return api.NewServer(csa.cfg.HTTP.Address, engine, logger), nil
}

func resolve[T any](ctx context.Context, sc *container.ServiceContainer) (T, error) {
	var zero T
	typ := reflect.TypeOf((*T)(nil)).Elem()

	ok, resolved := sc.ResolveByType(ctx, typ)
	if !ok {
		return zero, fmt.Errorf("no service registered for '%s'", typ)
	}
	service, ok := resolved.(T)
	if !ok {
		return zero, fmt.Errorf("resolved service is not a '%s'", typ)
	}
	return service, nil
}

func (csa *ChanSyncAgent) openMetadata(ctx context.Context) (*store.SQLiteStore, error) {
	metadata, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path: csa.cfg.Metadata.SQLite.Path,
	})
	if err != nil {
		return nil, err
	}
	if err := metadata.Connect(ctx); err != nil {
		return nil, err
	}
	if err := metadata.Migrate(ctx); err != nil {
		metadata.Close()
		return nil, err
	}

	csa.log.Info("Using sqlite metadata store at '%s'", csa.cfg.Metadata.SQLite.Path)
	return metadata, nil
}

// Serve runs the engine and the operator API until an interrupt is received
// or the engine stops on its own.
func (csa *ChanSyncAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	csa.mutex.Lock()

	if err := csa.setupServices(ctx); err != nil {
		csa.mutex.Unlock()
		csa.closeMetadata()
		return err
	}

	errCh := make(chan error, 2)

	csa.wait.Add(1)
	go func() {
		defer csa.wait.Done()
		if err := csa.engine.Run(ctx); err != nil {
			errCh <- fmt.Errorf("sync engine stopped: %w", err)
		}
		cancel()
	}()

	if csa.server != nil {
		csa.wait.Add(1)
		go func() {
			defer csa.wait.Done()
			if err := csa.server.Serve(ctx); err != nil {
				errCh <- fmt.Errorf("http server stopped: %w", err)
				cancel()
			}
		}()
	}

	csa.mutex.Unlock()
	<-ctx.Done()

	timeout, err := time.ParseDuration(csa.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		timeout = 60 * time.Second
	}

	shutdown, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	csa.log.Info("Shutting down...")

	var errs []error
	if csa.server != nil {
		if err := csa.server.Shutdown(shutdown); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		csa.wait.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdown.Done():
		errs = append(errs, errors.New("timed out waiting for in-flight work"))
	}

	if err := csa.sc.Cleanup(shutdown); err != nil {
		errs = append(errs, fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	csa.closeMetadata()

	for {
		select {
		case err := <-errCh:
			errs = append(errs, err)
		default:
			return errors.Join(errs...)
		}
	}
}

func (csa *ChanSyncAgent) closeMetadata() {
	if csa.metadata == nil {
		return
	}
	if err := csa.metadata.Close(); err != nil {
		csa.log.Warn("Failed to close metadata store: %v", err)
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
