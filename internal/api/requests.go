package api

import (
	"encoding/json"
	"net/http"

	"fieldbox/internal/model"
	"fieldbox/internal/service"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) createRequest(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	req, err := d.Lifecycle.CreateRequest(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (d Dependencies) listRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Lifecycle.ListRequests(r.Context()))
}

func (d Dependencies) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := d.Lifecycle.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) deleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := d.Lifecycle.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (d Dependencies) setRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	req, err := d.Lifecycle.SetStatus(r.Context(), chi.URLParam(r, "id"), model.Status(body.Status))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) completeRequest(w http.ResponseWriter, r *http.Request) {
	var input service.CompletionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	req, err := d.Lifecycle.Complete(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) cancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := d.Lifecycle.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := d.Lifecycle.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (d Dependencies) awardRequestPoints(w http.ResponseWriter, r *http.Request) {
	result, err := d.Rewards.AwardMaintenancePoints(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
