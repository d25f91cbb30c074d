package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) boardQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Board.Queue(r.Context()))
}

// boardGrid renders the weekly grid. The optional anchor query parameter
// picks the week; it defaults to the current one.
func (d Dependencies) boardGrid(w http.ResponseWriter, r *http.Request) {
	anchor := time.Now().UTC()
	if anchorStr := r.URL.Query().Get("anchor"); anchorStr != "" {
		t, err := time.Parse("2006-01-02", anchorStr)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "anchor must be a YYYY-MM-DD date", d.Log)
			return
		}
		anchor = t
	}

	writeJSON(w, http.StatusOK, d.Board.Grid(r.Context(), anchor))
}

func (d Dependencies) assignRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TechnicianID string `json:"technicianId"`
		Date         string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	req, err := d.Board.Assign(r.Context(), chi.URLParam(r, "id"), body.TechnicianID, body.Date)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) unassignRequest(w http.ResponseWriter, r *http.Request) {
	req, err := d.Board.Unassign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
