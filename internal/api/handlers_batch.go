package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/richconv/internal/pipeline"
	"github.com/dgallion1/richconv/internal/store"
)

const maxBatchItems = 500

type batchRequest struct {
	UserID string          `json:"user_id"`
	Store  bool            `json:"store"`
	Items  []pipeline.Item `json:"items"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := store.ValidateID("user_id", req.UserID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		jsonError(w, "at least one item is required", http.StatusBadRequest)
		return
	}
	if len(req.Items) > maxBatchItems {
		jsonError(w, fmt.Sprintf("too many items (max %d)", maxBatchItems), http.StatusBadRequest)
		return
	}
	seen := make(map[string]bool, len(req.Items))
	for i, it := range req.Items {
		if err := store.ValidateID("doc_id", it.DocID); err != nil {
			jsonError(w, fmt.Sprintf("items[%d]: %s", i, err), http.StatusBadRequest)
			return
		}
		if seen[it.DocID] {
			jsonError(w, fmt.Sprintf("items[%d]: duplicate doc_id %q", i, it.DocID), http.StatusBadRequest)
			return
		}
		seen[it.DocID] = true
	}

	job := pipeline.NewJob(req.UserID, req.Items, req.Store)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.metrics.batches.Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"items":    len(req.Items),
		"poll_url": fmt.Sprintf("/api/batch/%s/status", job.ID),
	})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
