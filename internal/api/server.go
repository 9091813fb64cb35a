// Package api serves the operator HTTP surface of the agent: health, metrics
// and inspection of the mapping table.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/internal/syncer"
	"github.com/mwantia/chansync/pkg/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the synchronization engine the API operates on.
type Engine interface {
	Store() *mapping.Store
	RetryPending(ctx context.Context) syncer.RetryReport
	RunOnce(ctx context.Context) (syncer.CycleReport, error)
	LastCycle() (syncer.CycleReport, bool)
}

type Server struct {
	engine     Engine
	log        log.LoggerService
	httpServer *http.Server
}

func NewServer(address string, engine Engine, logger log.LoggerService) *Server {
	s := &Server{
		engine: engine,
		log:    logger.Named("api"),
	}

	s.httpServer = &http.Server{
		Addr:         address,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(requestLogger(s.log))
	router.Use(metricsMiddleware)

	router.Get("/healthz", s.health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", s.listRecords)
		r.Get("/records/{id}", s.getRecord)
		r.Post("/records/retry", s.retryPending)
		r.Get("/reconcile", s.lastCycle)
		r.Post("/reconcile", s.runCycle)
	})

	return router
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on '%s': %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
