package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/newsnow-ops/source-registry-server/internal/api"
	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	"github.com/newsnow-ops/source-registry-server/internal/service"
	"github.com/newsnow-ops/source-registry-server/internal/service/mocks"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// No expectations needed - health check doesn't call service
	server := api.NewServer(mocks.NewMockSourceService(ctrl))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setupMock      func(*mocks.MockSourceService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "service ready",
			setupMock: func(m *mocks.MockSourceService) {
				m.EXPECT().CheckReadiness(gomock.Any()).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name: "service not ready",
			setupMock: func(m *mocks.MockSourceService) {
				m.EXPECT().CheckReadiness(gomock.Any()).Return(errors.Join(service.ErrNotReady, errors.New("corrupt")))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockSvc := mocks.NewMockSourceService(ctrl)
			tt.setupMock(mockSvc)

			rr := httptest.NewRecorder()
			api.NewServer(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestRoutesAreMounted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		setupMock  func(*mocks.MockSourceService)
		wantStatus int
	}{
		{
			name:   "legacy reboot",
			method: http.MethodPost,
			path:   "/api/reboot",
			setupMock: func(m *mocks.MockSourceService) {
				m.EXPECT().RequestRebuild(gomock.Any()).Return(&rebuild.Ack{RequestID: "r"}, nil)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "legacy create-source with GET",
			method:     http.MethodGet,
			path:       "/api/create-source",
			setupMock:  func(*mocks.MockSourceService) {},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:   "v1 rebuild",
			method: http.MethodPost,
			path:   "/v1/rebuild",
			setupMock: func(m *mocks.MockSourceService) {
				m.EXPECT().RequestRebuild(gomock.Any()).Return(nil, rebuild.ErrRebuildDisabled)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unknown path",
			method:     http.MethodGet,
			path:       "/nope",
			setupMock:  func(*mocks.MockSourceService) {},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "metrics not registered without handler",
			method:     http.MethodGet,
			path:       "/metrics",
			setupMock:  func(*mocks.MockSourceService) {},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockSvc := mocks.NewMockSourceService(ctrl)
			tt.setupMock(mockSvc)

			rr := httptest.NewRecorder()
			api.NewServer(mockSvc).ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("source_registry_sources_total 3\n"))
	})
	server := api.NewServer(mocks.NewMockSourceService(ctrl), api.WithMetricsHandler(metrics))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "source_registry_sources_total")
}

func TestMaxBodyBytes(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	server := api.NewServer(mocks.NewMockSourceService(ctrl), api.WithMaxBodyBytes(8))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/create-source", strings.NewReader(`{"id":"techblog"}`))
	server.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

//nolint:paralleltest // Replaces the default slog logger
func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	handler := middleware.RequestID(api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sources", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "HTTP request", record["msg"])
	assert.Equal(t, "/v1/sources", record["path"])
	assert.Equal(t, float64(http.StatusTeapot), record["status"])
	assert.NotEmpty(t, record["request_id"])
}
