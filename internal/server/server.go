package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/tokenauth/internal/config"
	"github.com/hongminglow/tokenauth/internal/http/handlers"
	"github.com/hongminglow/tokenauth/internal/middleware"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// NewRouter wires middleware and routes.
func NewRouter(cfg config.Config, users handlers.UserService, gatherer prometheus.Gatherer, log logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(log), middleware.CORS(cfg.CORSOrigins))

	handlers.NewHealthHandler(time.Now(), log).Register(r)
	handlers.NewAuthHandler(users, log).Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	// Preflight requests need a matching route for the middleware chain to run.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// New returns a ready server.
func New(cfg config.Config, users handlers.UserService, gatherer prometheus.Gatherer, log logrus.FieldLogger) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, users, gatherer, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
