// Package httpapi implements the Request Layer: a minimal HTTP surface
// mapping URL-style paths and query parameters to Operation Façade
// calls. Grounded on original_source/backend/src/http_server/http_server.rs
// and handle_conn.rs for the route table and JSON envelope, and on the
// teacher's internal/api.Server for the Go shape (net/http.ServeMux,
// slog request logging, graceful shutdown).
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tychobrouwer/mailsyncd/internal/buildinfo"
	"github.com/tychobrouwer/mailsyncd/internal/facade"
)

// Server is the mailsyncd HTTP Request Layer.
type Server struct {
	address string
	port    int
	facade  *facade.Facade
	logger  *slog.Logger
	server  *http.Server
}

// NewServer builds a Server over fac, bound to address:port once Start
// runs.
func NewServer(address string, port int, fac *facade.Facade, logger *slog.Logger) *Server {
	return &Server{address: address, port: port, facade: fac, logger: logger}
}

// Start registers every route in spec §6 and serves until the process
// is asked to shut down.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /mailboxes", s.handleMailboxes)
	mux.HandleFunc("GET /update_mailboxes", s.handleUpdateMailboxes)
	mux.HandleFunc("GET /messages_with_uids", s.handleMessagesWithUIDs)
	mux.HandleFunc("GET /messages_sorted", s.handleMessagesSorted)
	mux.HandleFunc("GET /messages_with_flag", s.handleMessagesWithFlag)
	mux.HandleFunc("GET /update_mailbox", s.handleUpdateMailbox)
	mux.HandleFunc("GET /modify_flags", s.handleModifyFlags)
	mux.HandleFunc("GET /move_message", s.handleMoveMessage)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.address, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server, letting in-flight requests
// finish within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "mailsyncd", Data: map[string]string{"version": buildinfo.Version}}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "healthy"}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "version", Data: buildinfo.RuntimeInfo()}, s.logger)
}

// envelope is the response shape from spec §6:
// {"success": bool, "message": "<human>", "data": <payload>?}.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}
