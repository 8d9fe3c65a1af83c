// Package server exposes the connection registry over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/config"
	"github.com/ajitpratap0/tether/pkg/docindex"
	"github.com/ajitpratap0/tether/pkg/registry"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server wires the registry and documentation index into an HTTP API.
type Server struct {
	settings *config.Settings
	registry *registry.Registry
	docs     *docindex.Index
	logger   *zap.Logger
	httpSrv  *http.Server
}

// New builds a Server. docs may be nil when documentation search is
// disabled.
func New(settings *config.Settings, reg *registry.Registry, docs *docindex.Index, logger *zap.Logger) *Server {
	s := &Server{
		settings: settings,
		registry: reg,
		docs:     docs,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}
	return s
}

// Router builds the route table. Exposed separately so tests can drive the
// handlers through httptest without binding a socket.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.contextMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)

	// Unauthenticated probes
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)
	api.HandleFunc("/status/{id}", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/sample/{id}", s.handleSample).Methods(http.MethodGet)
	api.HandleFunc("/send/{id}", s.handleSend).Methods(http.MethodPost)
	api.HandleFunc("/disconnect", s.handleDisconnect).Methods(http.MethodDelete)
	api.HandleFunc("/connections", s.handleConnections).Methods(http.MethodGet)
	api.HandleFunc("/docs/search", s.handleDocsSearch).Methods(http.MethodGet)

	return r
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
