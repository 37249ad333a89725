package extraction_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PFerreria/Concilium/pkg/extraction"
	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelAnswer = `Sure! Here is the workflow [as requested]:
[
  {"step_id": "step_1", "name": "Start", "step_type": "event", "next_steps": ["step_2"]},
  {"step_id": "step_2", "name": "Review invoice", "description": "Finance checks totals", "step_type": "task", "next_steps": ["step_3"]},
  {"step_id": "step_3", "name": "End", "step_type": "event", "next_steps": []}
]
Let me know if you need anything else.`

func TestParseSteps(t *testing.T) {
	t.Parallel()

	candidates, err := extraction.ParseSteps(modelAnswer)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "step_2", candidates[1].ID)
	assert.Equal(t, "Review invoice", candidates[1].Name)
	assert.Equal(t, "Finance checks totals", candidates[1].Description)
	assert.Equal(t, []string{"step_3"}, candidates[1].Next)
	assert.Equal(t, "event", candidates[2].Type)
}

func TestParseSteps_ShortFieldNames(t *testing.T) {
	t.Parallel()

	candidates, err := extraction.ParseSteps(`[{"id": "a", "name": "A", "type": "start", "next": ["b"]}, {"id": "b", "name": "B", "type": "end"}]`)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "a", candidates[0].ID)
	assert.Equal(t, "start", candidates[0].Type)
	assert.Equal(t, []string{"b"}, candidates[0].Next)
}

func TestParseSteps_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"no array":      "I could not find any workflow in this text.",
		"empty array":   "[]",
		"not objects":   "[1, 2, 3]",
		"wrong types":   `[{"name": "A", "next_steps": "b"}]`,
		"unterminated":  `[{"name": "A"`,
		"only brackets": "see [note] and [ref]",
	}

	for name, response := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := extraction.ParseSteps(response)
			require.Error(t, err)
			assert.Equal(t, failure.KindExternalService, failure.KindOf(err))
		})
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completionServer(t *testing.T, status int, content string, delay time.Duration) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)

		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
			assert.Contains(t, body.Messages[1].Content, "the invoice arrives")
		}

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)

		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newExtractor(srv *httptest.Server, timeout time.Duration) *extraction.OpenAIExtractor {
	return extraction.NewOpenAIExtractor(extraction.OpenAIConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: timeout,
	}, discard())
}

func TestOpenAIExtractor_Extract(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, http.StatusOK, modelAnswer, 0)

	candidates, err := newExtractor(srv, time.Second*5).Extract(context.Background(), "First the invoice arrives, then it is reviewed.", "")
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestOpenAIExtractor_EmptyText(t *testing.T) {
	t.Parallel()

	extractor := extraction.NewOpenAIExtractor(extraction.OpenAIConfig{BaseURL: "http://127.0.0.1:1/v1"}, discard())

	_, err := extractor.Extract(context.Background(), "  ", "")
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))
}

func TestOpenAIExtractor_ServiceErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status  int
		content string
		delay   time.Duration
	}{
		"server error":   {status: http.StatusServiceUnavailable},
		"useless answer": {status: http.StatusOK, content: "I am not sure."},
		"timeout":        {status: http.StatusOK, content: modelAnswer, delay: 2 * time.Second},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := completionServer(t, tt.status, tt.content, tt.delay)

			_, err := newExtractor(srv, 200*time.Millisecond).Extract(context.Background(), "Then the invoice arrives.", "finance")
			require.Error(t, err)
			assert.Equal(t, failure.KindExternalService, failure.KindOf(err))
		})
	}
}
