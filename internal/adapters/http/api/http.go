// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/scout/internal/domain/model"
)

const (
	defaultMaxLimit     = 100
	defaultLimit        = 20
	defaultMaxBodyBytes = 4 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	// Rank scores a batch synchronously.
	Rank(ctx context.Context, postings []model.Posting) ([]model.RankedResult, error)
	IsDuplicate(ctx context.Context, p model.Posting) (bool, error)

	// EnqueueBatch pushes a batch for async ranking. Returns false on backpressure.
	EnqueueBatch(ctx context.Context, b model.Batch) bool

	// Recommendations returns the best pending inbox entries.
	Recommendations(ctx context.Context, n int) ([]model.RankedResult, error)

	RecordDecision(ctx context.Context, fp model.Fingerprint, verdict model.Verdict) (model.Decision, error)
	History(ctx context.Context, fp model.Fingerprint) ([]model.Decision, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by GET /recommendations.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps         Dependencies
	maxLimit     int
	maxBodyBytes int64

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		maxLimit:      defaultMaxLimit,
		maxBodyBytes:  defaultMaxBodyBytes,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/postings", MetricsMiddleware(s.HandleRank, "postings"))
	mux.HandleFunc("/postings/duplicate", MetricsMiddleware(s.HandleDuplicate, "postings_duplicate"))
	mux.HandleFunc("/batches", MetricsMiddleware(s.HandleEnqueue, "batches"))
	mux.HandleFunc("/recommendations", MetricsMiddleware(s.HandleRecommendations, "recommendations"))
	mux.HandleFunc("/decisions", MetricsMiddleware(s.HandleDecisions, "decisions"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps engine sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "posting_cleared", err)
	case errors.Is(err, model.ErrInvalidVerdict), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	return dec.Decode(v)
}
