package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"fieldbox/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

// signPhoto validates an intake photo and returns an upload URL plus the
// public URL the client should attach to the request.
func (d Dependencies) signPhoto(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
		SizeBytes   int64  `json:"sizeBytes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	if err := storage.ValidatePhoto(body.FileName, body.ContentType, body.SizeBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_photo", err.Error(), d.Log)
		return
	}

	ext := strings.ToLower(filepath.Ext(body.FileName))
	objectName := ulid.Make().String() + ext

	uploadURL, err := d.Photos.PresignPut(r.Context(), objectName, body.ContentType, 15*time.Minute)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "sign_failed", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"objectName": objectName,
		"uploadUrl":  uploadURL,
		"photoUrl":   d.Photos.URL(objectName),
	})
}

// uploadPhoto is the target of the signed uploadUrl.
func (d Dependencies) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	objectName := chi.URLParam(r, "objectName")
	if err := storage.ValidatePhoto(objectName, r.Header.Get("Content-Type"), r.ContentLength); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_photo", err.Error(), d.Log)
		return
	}

	if err := d.Photos.Put(r.Context(), objectName, r.Body); err != nil {
		WriteError(w, http.StatusInternalServerError, "upload_failed", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"objectName": objectName,
		"photoUrl":   d.Photos.URL(objectName),
	})
}

func (d Dependencies) getPhoto(w http.ResponseWriter, r *http.Request) {
	objectName := chi.URLParam(r, "objectName")

	reader, err := d.Photos.Get(r.Context(), objectName)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Photo not found", d.Log)
		return
	}
	defer reader.Close()

	if ct := mime.TypeByExtension(filepath.Ext(objectName)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	io.Copy(w, reader)
}

func (d Dependencies) deletePhoto(w http.ResponseWriter, r *http.Request) {
	objectName := chi.URLParam(r, "objectName")

	if err := d.Photos.Delete(r.Context(), objectName); err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Photo not found", d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
