package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldbox/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerCarriesCallerIdentity(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := auth.NewJWTConfig("test-secret").Middleware(RequestLogger(log)(ok))

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("X-Admin-ID", "admin-3")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "admin-3", fields["admin_id"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestRequestLoggerOmitsIdentityForAnonymous(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := auth.NewJWTConfig("test-secret").Middleware(RequestLogger(log)(ok))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/requests", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "admin_id")
	assert.NotContains(t, fields, "role")
}
