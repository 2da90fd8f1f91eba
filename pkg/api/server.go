package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cbodonnell/duelsync/pkg/api/handlers"
	"github.com/cbodonnell/duelsync/pkg/api/middleware"
	"github.com/cbodonnell/duelsync/pkg/log"
)

// APIServer serves read-only diagnostics of a running session, an event
// stream and an action submission endpoint.
type APIServer struct {
	server *http.Server
	tls    *TLSConfig
	logger *log.Logger
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port    int
	TLS     *TLSConfig
	Token   string
	Session handlers.Session
	Logger  *log.Logger
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().With("api")
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Session, opts.Token, logger),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
		logger: logger,
	}
}

// NewRouter builds the API routes for session.
func NewRouter(session handlers.Session, token string, logger *log.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.NewAuthMiddleware(token, logger))

	r.HandleFunc("/status", handlers.HandleStatus(session)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/state", handlers.HandleState(session)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/devices", handlers.HandleDevices(session)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/actions", handlers.HandleSubmitAction(session)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/events", handlers.HandleEvents(session)).Methods(http.MethodGet)

	matchLog := r.PathPrefix("/matchlog").Subrouter()
	matchLog.HandleFunc("/actions", handlers.HandleListActions(session)).Methods(http.MethodGet, http.MethodOptions)
	matchLog.HandleFunc("/snapshot", handlers.HandleLatestSnapshot(session)).Methods(http.MethodGet, http.MethodOptions)

	return r
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		s.logger.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		s.logger.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.Info("API server closed")
			return
		}
		s.logger.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
