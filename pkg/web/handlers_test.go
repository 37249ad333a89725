package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PFerreria/Concilium/pkg/artifacts"
	"github.com/PFerreria/Concilium/pkg/bpmn"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/PFerreria/Concilium/pkg/persistence/memory"
	"github.com/PFerreria/Concilium/pkg/pipeline"
	"github.com/PFerreria/Concilium/pkg/render"
	"github.com/PFerreria/Concilium/pkg/testutil"
	"github.com/PFerreria/Concilium/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string) error { return nil }

type failingChecker struct{}

func (failingChecker) HealthCheck(context.Context) error { return errors.New("connection refused") }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestApp(t *testing.T, checkers map[string]web.HealthChecker) (*fiber.App, *pipeline.Orchestrator) {
	t.Helper()

	repo := memory.NewPersistence()
	orchestrator := pipeline.NewOrchestrator(
		pipeline.Config{DiagramFormat: render.FormatSVG},
		repo,
		artifacts.NewMemoryStore(),
		render.NewChain(discard(), render.NewBuiltin()),
		discard(),
		pipeline.WithDispatcher(noopDispatcher{}),
	)

	if checkers == nil {
		checkers = map[string]web.HealthChecker{"repository": repo}
	}

	app := fiber.New()
	web.NewAPIHandlers(orchestrator, checkers, discard()).Register(app)

	return app, orchestrator
}

func do(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)

			raw = string(encoded)
		}

		reader = strings.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func submit(t *testing.T, app *fiber.App) web.SubmitJobResponse {
	t.Helper()

	resp, body := do(t, app, http.MethodPost, "/api/v1/jobs", map[string]any{
		"title": "Invoice approval",
		"steps": []map[string]any{
			{"step_id": "s1", "name": "Invoice received", "step_type": "start", "next_steps": []string{"s2"}},
			{"step_id": "s2", "name": "Approve invoice", "step_type": "task", "next_steps": []string{"s3"}},
			{"step_id": "s3", "name": "Paid", "step_type": "end"},
		},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var accepted web.SubmitJobResponse
	require.NoError(t, json.Unmarshal(body, &accepted))

	return accepted
}

func TestAPIHandlers_SubmitJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "valid steps",
			body:           map[string]any{"title": "Onboarding", "steps": testutil.LinearSteps()},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "valid transcript",
			body:           map[string]any{"title": "Onboarding", "transcript": map[string]any{"text": "We start by...", "duration_seconds": 12.5}},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "malformed json",
			body:           `{"title": `,
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "missing title",
			body:           map[string]any{"steps": testutil.LinearSteps()},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "no input",
			body:           map[string]any{"title": "Nothing"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t, nil)

			resp, body := do(t, app, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(body, &decoded))

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, decoded["type"])

				return
			}

			assert.Equal(t, "pending", decoded["status"])
			assert.NotEmpty(t, decoded["job_id"])
			assert.Equal(t, "/api/v1/jobs/"+decoded["job_id"].(string), resp.Header.Get("Location"))
		})
	}
}

func TestAPIHandlers_JobLifecycle(t *testing.T) {
	t.Parallel()

	app, orchestrator := setupTestApp(t, nil)
	accepted := submit(t, app)

	resp, body := do(t, app, http.MethodGet, accepted.StatusURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var job web.JobResponse
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Empty(t, job.Artifacts)

	resp, _ = do(t, app, http.MethodDelete, accepted.StatusURL, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, err := orchestrator.Execute(context.Background(), accepted.JobID)
	require.NoError(t, err)

	resp, body = do(t, app, http.MethodGet, accepted.StatusURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, render.BuiltinName, job.Strategy)
	require.Contains(t, job.Artifacts, models.ArtifactKindDocument)
	require.Contains(t, job.Artifacts, models.ArtifactKindDiagram)

	for _, alias := range []string{"document", "bpmn", "xml"} {
		resp, body = do(t, app, http.MethodGet, accepted.StatusURL+"/artifacts/"+alias, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, alias)
		assert.Equal(t, bpmn.ContentType, resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "workflow_"+accepted.JobID+".bpmn")

		summary, err := bpmn.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.SequenceFlows)
	}

	resp, body = do(t, app, http.MethodGet, job.Artifacts[models.ArtifactKindDiagram].URL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.Contains(body, []byte("Approve invoice")))

	resp, _ = do(t, app, http.MethodDelete, accepted.StatusURL, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, accepted.StatusURL, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)
	accepted := submit(t, app)

	tests := map[string]string{
		"unknown job":           "/api/v1/jobs/does-not-exist",
		"unknown job artifact":  "/api/v1/jobs/does-not-exist/artifacts/diagram",
		"artifact not produced": "/api/v1/jobs/" + accepted.JobID + "/artifacts/diagram",
	}

	for name, target := range tests {
		resp, body := do(t, app, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)

		var problem map[string]any
		require.NoError(t, json.Unmarshal(body, &problem))
		assert.Equal(t, "not_found", problem["type"], name)
	}

	resp, _ := do(t, app, http.MethodGet, "/api/v1/jobs/"+accepted.JobID+"/artifacts/thumbnail", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodDelete, "/api/v1/jobs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetJobs(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)

	for range 3 {
		submit(t, app)
	}

	resp, body := do(t, app, http.MethodGet, "/api/v1/jobs?limit=2&status=pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page web.ListJobsResponse
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Len(t, page.Jobs, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, 2, page.Limit)

	for _, target := range []string{"/api/v1/jobs?limit=ten", "/api/v1/jobs?status=cancelled", "/api/v1/jobs?sort_by=title"} {
		resp, _ = do(t, app, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestAPIHandlers_GetJobsEffectivePaging(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)
	submit(t, app)

	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{query: "", limit: persistence.DefaultListLimit, offset: 0},
		{query: "?limit=100000", limit: persistence.MaxListLimit, offset: 0},
		{query: "?limit=5&offset=-3", limit: 5, offset: 0},
		{query: "?offset=4&sort_by=status&sort_order=asc", limit: persistence.DefaultListLimit, offset: 4},
	}

	for _, tt := range tests {
		resp, body := do(t, app, http.MethodGet, "/api/v1/jobs"+tt.query, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, tt.query)

		var page web.ListJobsResponse
		require.NoError(t, json.Unmarshal(body, &page))
		assert.Equal(t, tt.limit, page.Limit, tt.query)
		assert.Equal(t, tt.offset, page.Offset, tt.query)
	}
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t, nil)

	resp, body := do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"healthy"`)

	app, _ = setupTestApp(t, map[string]web.HealthChecker{"repository": failingChecker{}})

	resp, body = do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "connection refused")
}
