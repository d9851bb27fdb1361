package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/config"
	"github.com/ekaya-inc/ekaya-continuum/pkg/testhelpers"
)

type fakeDatabase struct {
	err   error
	stats sql.DBStats
}

func (f *fakeDatabase) PingContext(ctx context.Context) error { return f.err }
func (f *fakeDatabase) Stats() sql.DBStats                   { return f.stats }

func testConfig() *config.Config {
	return &config.Config{Version: "test-version", Env: "test"}
}

func serve(t *testing.T, h *HealthHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthHandler_Health_WithoutDatabase(t *testing.T) {
	rec := serve(t, NewHealthHandler(testConfig(), nil, zap.NewNop()), "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Nil(t, response.Database)
}

func TestHealthHandler_Health_WithDatabase(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)

	rec := serve(t, NewHealthHandler(testConfig(), tdb.DB, zap.NewNop()), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	require.NotNil(t, response.Database)
	assert.Equal(t, "ok", response.Database.Status)
	assert.Equal(t, 16, response.Database.MaxOpen)
}

func TestHealthHandler_Health_DatabaseDown(t *testing.T) {
	db := &fakeDatabase{err: errors.New("database is closed")}

	rec := serve(t, NewHealthHandler(testConfig(), db, zap.NewNop()), "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "degraded", response.Status)
	assert.Equal(t, "unavailable", response.Database.Status)
}

func TestHealthHandler_Ping(t *testing.T) {
	rec := serve(t, NewHealthHandler(testConfig(), nil, zap.NewNop()), "/ping")
	require.Equal(t, http.StatusOK, rec.Code)

	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "test-version", response.Version)
	assert.Equal(t, "ekaya-continuum", response.Service)
	assert.Equal(t, runtime.Version(), response.GoVersion)
	assert.Equal(t, "test", response.Environment)
	assert.NotEmpty(t, response.Hostname)
}

func TestHealthHandler_RejectsPost(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), nil, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
