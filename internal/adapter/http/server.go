package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/census-forecast/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ForecastSource returns the most recent successful forecast.
type ForecastSource interface {
	Latest() (domain.Forecast, bool)
}

// Server exposes health, readiness, metrics, and forecast query endpoints.
type Server struct {
	httpServer *http.Server
	forecasts  ForecastSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /observations routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, forecasts ForecastSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		forecasts: forecasts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /observations", s.handleObservations)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type observationsResponse struct {
	RunID        string               `json:"run_id"`
	GeneratedAt  time.Time            `json:"generated_at"`
	LastYear     int                  `json:"last_year"`
	Observations []domain.Observation `json:"observations"`
}

// handleObservations serves the latest forecast table filtered to an
// inclusive (year, month) range. start_year and end_year are required.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	f, ok := s.forecasts.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, errors.New("no forecast available yet"))
		return
	}

	rows, err := f.Table.Range(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, observationsResponse{
		RunID:        f.RunID,
		GeneratedAt:  f.GeneratedAt,
		LastYear:     f.LastYear,
		Observations: rows,
	})
}

func parseRange(r *http.Request) (domain.RangeQuery, error) {
	var q domain.RangeQuery
	fields := []struct {
		name     string
		dst      *int
		required bool
	}{
		{"start_year", &q.StartYear, true},
		{"start_month", &q.StartMonth, false},
		{"end_year", &q.EndYear, true},
		{"end_month", &q.EndMonth, false},
	}
	values := r.URL.Query()
	for _, f := range fields {
		s := values.Get(f.name)
		if s == "" {
			if f.required {
				return q, fmt.Errorf("%s is required", f.name)
			}
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("invalid %s %q", f.name, s)
		}
		*f.dst = n
	}
	return q, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
