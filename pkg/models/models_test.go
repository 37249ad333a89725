package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Transition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{"pending to processing", JobStatusPending, JobStatusProcessing, true},
		{"processing to completed", JobStatusProcessing, JobStatusCompleted, true},
		{"processing to failed", JobStatusProcessing, JobStatusFailed, true},
		{"pending to completed", JobStatusPending, JobStatusCompleted, false},
		{"processing to pending", JobStatusProcessing, JobStatusPending, false},
		{"completed to failed", JobStatusCompleted, JobStatusFailed, false},
		{"failed to processing", JobStatusFailed, JobStatusProcessing, false},
		{"completed to completed", JobStatusCompleted, JobStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
			job := NewJob("job-1", "Title", "", JobInput{}, now)
			job.Status = tt.from

			err := job.Transition(tt.to, now.Add(time.Minute))
			if !tt.allowed {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, job.Status)
				assert.Equal(t, now, job.UpdatedAt)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, job.Status)
			assert.Equal(t, now.Add(time.Minute), job.UpdatedAt)
			assert.Equal(t, tt.to.IsTerminal(), job.CompletedAt != nil)
		})
	}
}

func TestJob_Fail(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	job := NewJob("job-1", "Title", "", JobInput{}, now)

	require.ErrorIs(t, job.Fail("RenderError", "boom", now), ErrInvalidTransition)
	assert.Nil(t, job.Error)

	require.NoError(t, job.Transition(JobStatusProcessing, now))
	require.NoError(t, job.Fail("RenderError", "boom", now))
	assert.Equal(t, &JobError{Kind: "RenderError", Message: "boom"}, job.Error)

	require.ErrorIs(t, job.Fail("InternalError", "again", now), ErrInvalidTransition)
	assert.Equal(t, "RenderError", job.Error.Kind)
}

func TestJob_Clone(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	job := NewJob("job-1", "Title", "", JobInput{
		Steps:      []StepCandidate{{ID: "a", Name: "A", Next: []string{"b"}}},
		Transcript: &Transcript{Text: "hello"},
	}, now)
	job.AttachArtifact(ArtifactKindDocument, "artifact-1", now)

	clone := job.Clone()
	clone.Artifacts[ArtifactKindDiagram] = "artifact-2"
	clone.Input.Steps[0].Next[0] = "z"
	clone.Input.Transcript.Text = "changed"

	assert.Len(t, job.Artifacts, 1)
	assert.Equal(t, "b", job.Input.Steps[0].Next[0])
	assert.Equal(t, "hello", job.Input.Transcript.Text)
}

func TestParseStepType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		name     string
		expected StepType
	}{
		{"start", "", StepTypeStart},
		{"StartEvent", "", StepTypeStart},
		{"end", "", StepTypeEnd},
		{"decision", "Approved?", StepTypeGateway},
		{"gateway", "", StepTypeGateway},
		{"event", "Process start", StepTypeStart},
		{"event", "Invoice archived", StepTypeEnd},
		{"task", "", StepTypeTask},
		{"subprocess", "", StepTypeTask},
		{"", "", StepTypeTask},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseStepType(tt.raw, tt.name), "%q/%q", tt.raw, tt.name)
	}
}

func TestStepCandidate_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var candidates []StepCandidate

	err := json.Unmarshal([]byte(`[
		{"step_id": "s1", "name": "Receive", "step_type": "start", "next_steps": ["s2"]},
		{"id": "s2", "name": "Check", "type": "decision", "next": ["s3", "s1"], "description": "Is it complete?"}
	]`), &candidates)
	require.NoError(t, err)

	assert.Equal(t, []StepCandidate{
		{ID: "s1", Name: "Receive", Type: "start", Next: []string{"s2"}},
		{ID: "s2", Name: "Check", Type: "decision", Next: []string{"s3", "s1"}, Description: "Is it complete?"},
	}, candidates)
}

func TestParseArtifactKind(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"document", "BPMN", "xml"} {
		kind, err := ParseArtifactKind(raw)
		require.NoError(t, err)
		assert.Equal(t, ArtifactKindDocument, kind)
	}

	kind, err := ParseArtifactKind("diagram")
	require.NoError(t, err)
	assert.Equal(t, ArtifactKindDiagram, kind)

	_, err = ParseArtifactKind("thumbnail")
	require.Error(t, err)
}

func TestWorkflowGraph_Layers(t *testing.T) {
	t.Parallel()

	g := &WorkflowGraph{
		Steps: map[string]*Step{
			"a": {ID: "a", Type: StepTypeStart, Next: []string{"b", "c"}},
			"b": {ID: "b", Type: StepTypeTask, Next: []string{"d"}},
			"c": {ID: "c", Type: StepTypeTask, Next: []string{"d"}},
			"d": {ID: "d", Type: StepTypeEnd},
		},
		Order:  []string{"a", "b", "c", "d"},
		Layers: map[string]int{"a": 0, "b": 1, "c": 1, "d": 2},
	}

	assert.Equal(t, 3, g.LayerCount())
	assert.Len(t, g.StepsInLayer(1), 2)
	assert.Equal(t, 2, g.CountByType(StepTypeTask))
	assert.Equal(t, []Edge{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}}, g.Edges())
	assert.False(t, g.HasCycle())
}
