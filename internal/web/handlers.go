package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// maxRunsLimit caps ?limit= on /api/runs.
const maxRunsLimit = 500

type healthResponse struct {
	Status  string `json:"status"`
	Sync    bool   `json:"sync"`
	History bool   `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Sync:    s.service.SyncEnabled(),
		History: s.service.HistoryEnabled(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := catalog.Load(s.catalogPath)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	c, err := catalog.Load(s.catalogPath)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	p, ok := c.ProductBySlug(slug)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "product not found",
			Message: "No product has slug " + strconv.Quote(slug),
			Code:    "NF001",
		})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.service.HistoryEnabled() {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "run history is not configured",
			Message: "Run history is not configured",
			Action:  "Set DATABASE_URL to record runs",
			Code:    "NF002",
		})
		return
	}

	limit := core.DefaultRecentRuns
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, r, diag.New(diag.ValidationError, "invalid number %q for limit", v), http.StatusBadRequest)
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.service.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []core.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleLimiter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Limiter().Status())
}

type syncStatus struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, syncStatus{
		Enabled: s.service.SyncEnabled(),
		Running: s.service.SyncRunning(),
	})
}

// handleSync runs one poll and returns its summary. Per-object failures are
// part of the summary; only a failed listing is an error. The poll is shared
// with other callers, so a client that goes away does not cancel it.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.TriggerSync(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, core.ErrSyncDisabled):
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	case err != nil:
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
