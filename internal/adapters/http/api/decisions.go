package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/scout/internal/domain/model"
)

var (
	errEmptyBatch         = errors.New("batch has no postings")
	errMissingFingerprint = errors.New("missing fingerprint")
)

type decisionRequest struct {
	Fingerprint string `json:"fingerprint"`
	Verdict     string `json:"verdict"`
}

// HandleDecisions handles POST /decisions (record a verdict) and
// GET /decisions?fingerprint= (audit trail).
func (s *Server) HandleDecisions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.recordDecision(w, r)
	case http.MethodGet:
		s.history(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) recordDecision(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_decision"
	var req decisionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	fp := strings.TrimSpace(req.Fingerprint)
	if fp == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingFingerprint))
		return
	}
	verdict, err := model.ParseVerdict(req.Verdict)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	d, err := s.deps.RecordDecision(r.Context(), model.Fingerprint(fp), verdict)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	const op = "api.history"
	fp := strings.TrimSpace(r.URL.Query().Get("fingerprint"))
	if fp == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingFingerprint))
		return
	}
	ds, err := s.deps.History(r.Context(), model.Fingerprint(fp))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ds == nil {
		ds = []model.Decision{}
	}
	writeJSON(w, http.StatusOK, ds)
}

// HandleRecommendations handles GET /recommendations?limit=N.
func (s *Server) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommendations"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := min(defaultLimit, s.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > s.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrLimitExceeded))
		return
	}
	results, err := s.deps.Recommendations(r.Context(), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Results: results})
}
