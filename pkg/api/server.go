package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/emberlink/pkg/api/handlers"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/state"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
}

type NewAPIServerOptions struct {
	Port         int
	StateManager state.StateManager
}

// NewAPIServer creates a new http.Server for serving read-only status to
// overlays and trackers running on the same machine.
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	router := mux.NewRouter()
	router.HandleFunc("/snapshot", handlers.HandleGetSnapshot(opts.StateManager)).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	log.Info("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
