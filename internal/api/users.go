package api

import (
	"encoding/json"
	"net/http"

	"fieldbox/internal/service"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) createUser(w http.ResponseWriter, r *http.Request) {
	var input service.CreateUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	user, err := d.Users.CreateUser(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (d Dependencies) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := d.Users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (d Dependencies) createReview(w http.ResponseWriter, r *http.Request) {
	var input service.CreateReviewInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	review, err := d.Users.CreateReview(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (d Dependencies) awardReviewPoints(w http.ResponseWriter, r *http.Request) {
	result, err := d.Rewards.AwardReviewPoints(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (d Dependencies) createRental(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRentalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	rental, err := d.Users.CreateRental(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, rental)
}

func (d Dependencies) signRental(w http.ResponseWriter, r *http.Request) {
	rental, err := d.Users.SignRental(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (d Dependencies) awardRentalPoints(w http.ResponseWriter, r *http.Request) {
	result, err := d.Rewards.AwardRentalPoints(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// rewardsConfig reports the session points configuration so clients can
// hide award affordances while rewards are disabled.
func (d Dependencies) rewardsConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Rewards.Config())
}
