// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ctlplane exposes the shared tables over an HTTP JSON API: endpoint
// registry mutation, blacklist mutation and counter reads. It mutates the
// same tables the packet pipeline consumes; reads stay consistent with
// concurrent packet processing.
package ctlplane

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/bastion/internal/engine"
	"grimm.is/bastion/internal/engine/state"
	"grimm.is/bastion/internal/errors"
	"grimm.is/bastion/internal/logging"
)

// Mirror receives every registry and blacklist mutation, letting an optional
// kernel-map offload stay in sync. Implementations must tolerate being called
// concurrently.
type Mirror interface {
	PutEndpoint(state.EndpointKey, state.EndpointPolicy) error
	DeleteEndpoint(state.EndpointKey) error
	PutBlacklist(addr uint32, until uint64) error
	DeleteBlacklist(addr uint32) error
}

// Server is the control-plane API server.
type Server struct {
	engine *engine.Engine
	mirror Mirror
	logger *logging.Logger
	router *mux.Router

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates the control plane over an engine. mirror may be nil.
func NewServer(eng *engine.Engine, mirror Mirror, logger *logging.Logger) *Server {
	s := &Server{
		engine: eng,
		mirror: mirror,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the API handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving the API on addr.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New(errors.KindConflict, "control plane already started")
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.logger.Info("control plane listening", "addr", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("control plane server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the API server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.logger.Info("control plane stopped")
	return err
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	api.HandleFunc("/endpoints", s.handleListEndpoints).Methods("GET")
	api.HandleFunc("/endpoints", s.handleAddEndpoint).Methods("POST")
	api.HandleFunc("/endpoints", s.handleRemoveEndpoint).Methods("DELETE")

	api.HandleFunc("/blacklist", s.handleListBlacklist).Methods("GET")
	api.HandleFunc("/blacklist", s.handleAddBlacklist).Methods("POST")
	api.HandleFunc("/blacklist/{address}", s.handleRemoveBlacklist).Methods("DELETE")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"tables": map[string]int{
			"endpoints":  s.engine.Registry().Len(),
			"blacklist":  s.engine.Blacklist().Len(),
			"flows":      s.engine.Flows().Len(),
			"challenges": s.engine.Gate().Len(),
			"sources":    s.engine.Limiter().Len(),
		},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.engine.Counters().Snapshot())
}
