package health

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
)

// Tester sends a test notification through every active provider.
type Tester interface {
	Test(ctx context.Context) ([]domain.DeliveryResult, error)
}

// OptionsResponse is the body of the options endpoints.
type OptionsResponse struct {
	Version uint64            `json:"version"`
	Values  map[string]string `json:"values"`
}

// SetOptionRequest is the body of POST /options/{name}.
type SetOptionRequest struct {
	Value string `json:"value"`
}

// DeliveryResponse is one provider result of POST /notifications/test.
type DeliveryResponse struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server provides HTTP endpoints for health monitoring and live option
// updates.
type Server struct {
	monitor *Monitor
	store   *config.Store
	tester  Tester
	token   string
	server  *http.Server
}

// NewServer creates a new health server bound to cfg.Host:cfg.Port. When
// cfg.AdminToken is set the write endpoints require it as a bearer token.
func NewServer(monitor *Monitor, store *config.Store, tester Tester, cfg config.ServerConfig) *Server {
	s := &Server{
		monitor: monitor,
		store:   store,
		tester:  tester,
		token:   cfg.AdminToken,
	}
	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes returns the admin router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/options", s.handleGetOptions)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/options/{name}", s.handleSetOption)
		r.Post("/notifications/test", s.handleTestNotifications)
	})
	return r
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("Admin server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Report()

	status := http.StatusOK
	if report.SystemStatus == StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Report())
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, OptionsResponse{Version: snap.Version, Values: snap.Values()})
}

func (s *Server) handleSetOption(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetOptionRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid body: " + err.Error()})
		return
	}

	next, err := s.store.Set(name, req.Value)
	if err != nil {
		var verr *config.ConfigValidationError
		if errors.As(err, &verr) {
			code := http.StatusBadRequest
			if errors.Is(err, config.ErrUnknownOption) {
				code = http.StatusNotFound
			}
			slog.Warn("Rejected option update", "option", strings.TrimSpace(name), "error", err)
			writeJSON(w, code, ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, OptionsResponse{Version: next.Version, Values: next.Values()})
}

func (s *Server) handleTestNotifications(w http.ResponseWriter, r *http.Request) {
	if s.tester == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "notifications are not wired"})
		return
	}
	results, err := s.tester.Test(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]DeliveryResponse, 0, len(results))
	for _, res := range results {
		d := DeliveryResponse{Provider: res.Provider, OK: res.Err == nil}
		if res.Err != nil {
			d.Error = res.Err.Error()
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
