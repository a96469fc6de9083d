// Package apiserver exposes the agency over a REST API.
package apiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/effective-security/devagency/agency"
	"github.com/effective-security/devagency/store"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/xlog"
	"github.com/gorilla/mux"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "apiserver")

// TenantHeader selects the tenant of the request.
const TenantHeader = "X-Tenant-ID"

// Agency is the subset of agency.Agency served by the API.
type Agency interface {
	Entry() string
	Agents() []agency.AgentInfo
	Flows() []agency.Flow
	AskAgent(ctx context.Context, name, message string) (string, error)
}

// Server is the REST API server.
type Server struct {
	router   *mux.Router
	agency   Agency
	registry *tools.Registry
	store    store.MessageStore
	server   *http.Server
}

// NewServer returns the server listening on addr.
func NewServer(addr string, a Agency, registry *tools.Registry, st store.MessageStore) *Server {
	srv := &Server{
		router:   mux.NewRouter(),
		agency:   a,
		registry: registry,
		store:    st,
	}
	srv.server = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// agency runs take minutes
		WriteTimeout: 10 * time.Minute,
	}
	srv.registerRoutes()
	return srv
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	logger.KV(xlog.INFO, "status", "starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown drains the requests in flight and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
