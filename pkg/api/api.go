// Package api serves analysis results over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/datas/pkg/analysis"
	"github.com/ethpandaops/datas/pkg/api/reloader"
	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/dataset"
	"github.com/ethpandaops/datas/pkg/source"
	"github.com/ethpandaops/datas/pkg/store"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	analyzer   analysis.Analyzer
	reloader   reloader.Reloader
	loader     *dataset.Loader
	store      store.Store
	validate   *validator.Validate
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
) Server {
	return &server{
		log:      log.WithField("component", "api"),
		cfg:      cfg,
		analyzer: analysis.NewAnalyzer(log),
		validate: newValidator(),
	}
}

// Start opens the run store, loads the datasets and starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	if s.cfg.Database.Enabled {
		s.store = store.NewStore(s.log, &s.cfg.Database)
		if err := s.store.Start(ctx); err != nil {
			return fmt.Errorf("starting store: %w", err)
		}
	}

	src, err := source.New(s.log, &s.cfg.Data)
	if err != nil {
		return fmt.Errorf("creating data source: %w", err)
	}

	interval, err := s.cfg.API.ParsedReloadInterval()
	if err != nil {
		return err
	}

	s.loader = dataset.NewLoader(s.log, src)
	s.reloader = reloader.NewReloader(
		s.log, s.loader, s.cfg.Data.Sessions, s.cfg.Data.Students, interval,
	)

	if err := s.reloader.Start(ctx); err != nil {
		return fmt.Errorf("starting reloader: %w", err)
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.API.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.API.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.API.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.API.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server, the reloader and the store.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.reloader != nil {
		if err := s.reloader.Stop(); err != nil {
			s.log.WithError(err).Warn("Reloader stop error")
		}
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
