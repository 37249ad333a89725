package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PFerreria/Concilium/pkg/artifacts"
	"github.com/PFerreria/Concilium/pkg/config"
	"github.com/PFerreria/Concilium/pkg/persistence/memory"
	"github.com/PFerreria/Concilium/pkg/pipeline"
	"github.com/PFerreria/Concilium/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := memory.NewPersistence()

	cfg := config.Default()
	cfg.Render.Order = []string{"builtin"}

	orchestrator, err := newOrchestrator(cfg, jobs, artifacts.NewFileStore(t.TempDir()), logger,
		pipeline.WithDispatcher(deferred{}))
	require.NoError(t, err)

	return NewAPI(logger, orchestrator, map[string]web.HealthChecker{"repository": jobs}).App()
}

func TestAPI_Routes(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name           string
		method         string
		target         string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "root", method: http.MethodGet, target: "/", expectedStatus: http.StatusOK, expectedBody: "Concilium API"},
		{name: "liveness", method: http.MethodGet, target: "/livez", expectedStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, target: "/readyz", expectedStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, target: "/health", expectedStatus: http.StatusOK, expectedBody: "healthy"},
		{name: "list jobs", method: http.MethodGet, target: "/api/v1/jobs", expectedStatus: http.StatusOK, expectedBody: `"jobs":[]`},
		{
			name:           "submit job",
			method:         http.MethodPost,
			target:         "/api/v1/jobs",
			body:           `{"title":"Leave request","steps":[{"id":"a","name":"Start","type":"start","next":["b"]},{"id":"b","name":"End","type":"end"}]}`,
			expectedStatus: http.StatusAccepted,
			expectedBody:   `"status":"pending"`,
		},
		{name: "unknown job", method: http.MethodGet, target: "/api/v1/jobs/missing", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}

			req := httptest.NewRequest(tt.method, tt.target, body)
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)

			defer func() {
				err := resp.Body.Close()
				if err != nil {
					t.Logf("Failed to close response body: %v", err)
				}
			}()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			data, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			if tt.expectedBody != "" {
				assert.Contains(t, string(data), tt.expectedBody)
			}
		})
	}
}

func TestNewOrchestrator_RejectsUnknownRenderer(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Render.Order = []string{"imagemagick"}

	_, err := newOrchestrator(cfg, memory.NewPersistence(), artifacts.NewMemoryStore(), slog.Default())
	require.Error(t, err)
}
