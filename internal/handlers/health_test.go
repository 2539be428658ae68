package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-sec/argus/internal/services"
	"github.com/argus-sec/argus/internal/storage"
	"github.com/argus-sec/argus/internal/testutils"
)

func TestNewHealthHandler(t *testing.T) {
	logger := testutils.NewTestLogger()
	healthService := services.NewHealthService(logger, nil, storage.NewMemoryDataPlane())

	handler := NewHealthHandler(logger, healthService)

	assert.NotNil(t, handler)
	assert.Equal(t, logger, handler.logger)
	assert.Equal(t, healthService, handler.healthService)
}

func TestHealthHandler_HandleHealthCheck(t *testing.T) {
	logger := testutils.NewTestLogger()
	healthService := services.NewHealthService(logger, nil, storage.NewMemoryDataPlane())
	handler := NewHealthHandler(logger, healthService)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service_name":"argus"`)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthHandler_HandleHealthCheck_Unhealthy(t *testing.T) {
	logger := testutils.NewTestLogger()

	// nil data plane reports an error dependency
	healthService := services.NewHealthService(logger, nil, nil)
	handler := NewHealthHandler(logger, healthService)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealthCheck(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}
