package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"fieldbox/internal/store"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) listTechnicians(w http.ResponseWriter, r *http.Request) {
	techs := d.Store.ListTechnicians()
	sort.Slice(techs, func(i, j int) bool { return techs[i].Name < techs[j].Name })
	writeJSON(w, http.StatusOK, techs)
}

func (d Dependencies) getTechnician(w http.ResponseWriter, r *http.Request) {
	tech, ok := d.Store.GetTechnician(chi.URLParam(r, "id"))
	if !ok {
		WriteError(w, http.StatusNotFound, "not_found", "Technician not found", d.Log)
		return
	}
	writeJSON(w, http.StatusOK, tech)
}

// setTechnicianAvailability toggles the roster flag. Existing assignments
// are untouched; the board stops offering the technician for new drops.
func (d Dependencies) setTechnicianAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsAvailable bool `json:"isAvailable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	id := chi.URLParam(r, "id")
	if err := d.Store.SetTechnicianAvailability(r.Context(), id, body.IsAvailable); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "Technician not found", d.Log)
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), d.Log)
		return
	}

	tech, _ := d.Store.GetTechnician(id)
	writeJSON(w, http.StatusOK, tech)
}
