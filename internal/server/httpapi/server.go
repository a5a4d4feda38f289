// Package httpapi exposes the auth and member services over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/kitchensink/internal/logging"
	"github.com/dmitrijs2005/kitchensink/internal/server/auth"
	"github.com/dmitrijs2005/kitchensink/internal/server/metrics"
	"github.com/dmitrijs2005/kitchensink/internal/server/ratelimit"
	"github.com/dmitrijs2005/kitchensink/internal/server/services"
	"github.com/gorilla/mux"
)

// HealthFunc reports whether the server's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

// Options carries everything NewHTTPServer wires together.
type Options struct {
	Address         string
	CORSOrigin      string
	ShutdownTimeout time.Duration

	Auth    *services.AuthService
	Members *services.MemberService
	Policy  auth.Policy
	Limiter ratelimit.Limiter
	Metrics *metrics.Metrics
	Health  HealthFunc
	Logger  logging.Logger
}

type HTTPServer struct {
	address         string
	corsOrigin      string
	shutdownTimeout time.Duration

	auth    *services.AuthService
	members *services.MemberService
	policy  auth.Policy
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	health  HealthFunc
	logger  logging.Logger

	handler http.Handler
}

func NewHTTPServer(o Options) *HTTPServer {
	s := &HTTPServer{
		address:         o.Address,
		corsOrigin:      o.CORSOrigin,
		shutdownTimeout: o.ShutdownTimeout,
		auth:            o.Auth,
		members:         o.Members,
		policy:          o.Policy,
		limiter:         o.Limiter,
		metrics:         o.Metrics,
		health:          o.Health,
		logger:          o.Logger.With("module", "http_server"),
	}
	if s.policy == nil {
		s.policy = auth.DefaultPolicy()
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 10 * time.Second
	}
	s.handler = s.corsMiddleware(s.routes())
	return s
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.accessLogMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Unauthenticated: the gate is not applied to these routes.
	a := api.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	a.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	a.HandleFunc("/refresh-token", s.handleRefreshToken).Methods(http.MethodPost)
	a.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	a.Handle("/me", s.protect(auth.OpAuthMe, s.handleMe)).Methods(http.MethodGet)

	m := api.PathPrefix("/members").Subrouter()
	m.Handle("", s.protect(auth.OpMembersList, s.handleListMembers)).Methods(http.MethodGet)
	m.Handle("", s.protect(auth.OpMembersCreate, s.handleCreateMember)).Methods(http.MethodPost)
	m.Handle("/{id}", s.protect(auth.OpMembersGet, s.handleGetMember)).Methods(http.MethodGet)
	m.Handle("/{id}", s.protect(auth.OpMembersUpdate, s.handleUpdateMember)).Methods(http.MethodPut)
	m.Handle("/{id}", s.protect(auth.OpMembersDelete, s.handleDeleteMember)).Methods(http.MethodDelete)

	return r
}

// Handler is the fully wired HTTP handler, CORS included.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "graceful shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-done
	return nil
}
