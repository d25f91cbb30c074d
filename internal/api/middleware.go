package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fieldbox/internal/auth"
	"fieldbox/internal/service"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON envelope for every error this API returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, code int, errCode, message string, log *zap.Logger) {
	log.Error("API error", zap.String("code", errCode), zap.String("message", message))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	resp := ErrorResponse{
		Error:   errCode,
		Message: message,
	}
	if errCode != "" {
		resp.Code = errCode
	}

	json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Anything the taxonomy does not name is a 500.
func writeServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	var ve *service.ValidationError
	var nf *service.NotFoundError
	var es *service.ExternalServiceError
	var iv *service.InvariantViolation

	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), log)
	case errors.As(err, &nf):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), log)
	case errors.As(err, &es):
		WriteError(w, http.StatusBadGateway, "upstream_failed", err.Error(), log)
	case errors.As(err, &iv):
		WriteError(w, http.StatusConflict, "conflict", err.Error(), log)
	case errors.Is(err, service.ErrRewardsDisabled):
		WriteError(w, http.StatusForbidden, "rewards_disabled", err.Error(), log)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), log)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// RequestLogger logs HTTP requests and responses.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket upgrades need the raw ResponseWriter.
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if adminID := auth.GetAdminID(r.Context()); adminID != "" {
				fields = append(fields, zap.String("admin_id", adminID))
			}
			if role := auth.GetRole(r.Context()); role != "" {
				fields = append(fields, zap.String("role", role))
			}
			log.Info("HTTP request", fields...)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
