package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mwantia/chansync/internal/mapping"
	"github.com/mwantia/chansync/internal/syncer"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string                `json:"status"`
	Warm   bool                  `json:"warm"`
	Counts map[mapping.State]int `json:"counts"`
}

type recordsResponse struct {
	Records []mapping.Record `json:"records"`
	Total   int              `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// health reports 503 until the bootstrap scan has seeded the mapping table.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()

	resp := healthResponse{
		Status: "ok",
		Warm:   store.Warm(),
		Counts: store.Counts(),
	}
	if !resp.Warm {
		resp.Status = "starting"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	var filter mapping.State
	if raw := r.URL.Query().Get("state"); raw != "" {
		state, err := mapping.ParseState(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown state '"+raw+"'")
			return
		}
		filter = state
	}

	records := []mapping.Record{}
	for _, record := range s.engine.Store().All() {
		if filter == "" || record.State == filter {
			records = append(records, record)
		}
	}

	writeJSON(w, http.StatusOK, recordsResponse{Records: records, Total: len(records)})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "message id must be an integer")
		return
	}

	record, ok := s.engine.Store().FindByChannelMessage(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no record for message "+strconv.FormatInt(id, 10))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) retryPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.RetryPending(r.Context()))
}

func (s *Server) lastCycle(w http.ResponseWriter, r *http.Request) {
	report, ok := s.engine.LastCycle()
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no reconciliation cycle has run yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) runCycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.RunOnce(r.Context())
	switch {
	case errors.Is(err, syncer.ErrCycleInProcess):
		writeError(w, http.StatusConflict, "RECONCILE_IN_PROGRESS", err.Error())
	case errors.Is(err, syncer.ErrSyncDisabled):
		writeError(w, http.StatusConflict, "SYNC_DISABLED", err.Error())
	case errors.Is(err, syncer.ErrListing):
		writeJSON(w, http.StatusBadGateway, report)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}
