package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/scout/internal/domain/model"
)

// batchRequest is the body of POST /postings and POST /batches.
type batchRequest struct {
	Source   string          `json:"source"`
	Postings []model.Posting `json:"postings"`
}

type rankResponse struct {
	Results []model.RankedResult `json:"results"`
}

type enqueueResponse struct {
	Status  string `json:"status"`
	BatchID string `json:"batch_id"`
}

type duplicateResponse struct {
	Duplicate bool `json:"duplicate"`
}

// HandleRank handles POST /postings: the batch is ranked synchronously.
func (s *Server) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req batchRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	stampSource(&req)

	results, err := s.deps.Rank(r.Context(), req.Postings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Results: results})
}

// HandleEnqueue handles POST /batches: the batch is queued for the workers
// and lands in the recommendation inbox once ranked.
func (s *Server) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	const op = "api.enqueue"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req batchRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Postings) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errEmptyBatch))
		return
	}
	stampSource(&req)

	b := model.Batch{
		ID:         uuid.NewString(),
		Source:     req.Source,
		Postings:   req.Postings,
		ReceivedAt: time.Now().UTC(),
	}
	if !s.deps.EnqueueBatch(r.Context(), b) {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{Status: "accepted", BatchID: b.ID})
}

// HandleDuplicate handles POST /postings/duplicate.
func (s *Server) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	const op = "api.duplicate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var p model.Posting
	if err := s.decode(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	dup, err := s.deps.IsDuplicate(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, duplicateResponse{Duplicate: dup})
}

// stampSource fills missing posting sources and discovery times.
func stampSource(req *batchRequest) {
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		req.Source = "api"
	}
	now := time.Now().UTC()
	for i := range req.Postings {
		if req.Postings[i].Source == "" {
			req.Postings[i].Source = req.Source
		}
		if req.Postings[i].DiscoveredAt.IsZero() {
			req.Postings[i].DiscoveredAt = now
		}
	}
}
