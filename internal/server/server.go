// Package server exposes the management API consumed by the web
// console and the import tool.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/auth"
	"github.com/reelsync/reelsync/internal/config"
	"github.com/reelsync/reelsync/internal/database"
	"github.com/reelsync/reelsync/internal/importer"
	"github.com/reelsync/reelsync/internal/locks"
	"github.com/reelsync/reelsync/internal/resolver"
	"github.com/reelsync/reelsync/internal/runner"
	"github.com/reelsync/reelsync/internal/scheduler"
	"github.com/reelsync/reelsync/internal/status"
	"github.com/reelsync/reelsync/internal/store"
)

// Server ties the stores, scheduler, and HTTP surface together.
type Server struct {
	cfg *config.Config
	db  *database.DB

	tasks    *store.Tasks
	entities *store.Entities
	locks    *locks.Manager
	status   *status.Store
	sched    *scheduler.Scheduler
	resolver *resolver.Resolver
	auth     *auth.Service

	version    string
	router     *Router
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version string reported by the health endpoint.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New builds the full service on top of an open database.
func New(cfg *config.Config, db *database.DB, opts ...Option) *Server {
	tasks := store.NewTasks(db)
	entities := store.NewEntities(db)
	kv := store.NewConfigValues(db)

	lockMgr := locks.NewManager(kv)
	statusStore := status.NewStore(tasks)

	importClient := importer.NewClient(&cfg.Importer)
	run := runner.New(importClient, cfg.Scheduler.ExecutionTimeout)

	sched := scheduler.New(tasks, entities, lockMgr, run, statusStore, &scheduler.Config{
		LockTTL:           cfg.Scheduler.LockTTL,
		LockSweepInterval: cfg.Scheduler.LockSweepInterval,
	})

	srv := &Server{
		cfg:      cfg,
		db:       db,
		tasks:    tasks,
		entities: entities,
		locks:    lockMgr,
		status:   statusStore,
		sched:    sched,
		resolver: resolver.New(tasks, entities),
		auth:     auth.NewService(&cfg.Auth),
		version:  "dev",
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv
}

// Start arms the scheduler and serves HTTP until Shutdown or a listener
// failure. It blocks.
func (s *Server) Start(ctx context.Context) error {
	if err := s.sched.Start(ctx); err != nil {
		return err
	}
	log.Info().Msg("Scheduler started")

	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Bool("auth", s.auth.Enabled()).
		Msg("Starting server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, then stops the scheduler so that
// in-flight executions finish and their locks are released.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")

	err := s.httpServer.Shutdown(ctx)

	s.sched.Stop()
	log.Info().Msg("Scheduler stopped")

	return err
}

// Scheduler exposes the scheduler for command wiring and tests.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Tasks exposes the task store.
func (s *Server) Tasks() *store.Tasks {
	return s.tasks
}

// Entities exposes the entity store.
func (s *Server) Entities() *store.Entities {
	return s.entities
}
