package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	assert.Equal(t, JobSubmittedEvent, JobSubmitted{}.GetType())
	assert.Equal(t, JobProcessingEvent, JobProcessing{}.GetType())
	assert.Equal(t, JobCompletedEvent, JobCompleted{}.GetType())
	assert.Equal(t, JobFailedEvent, JobFailed{}.GetType())
}

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(JobFailedEvent, "job-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, JobFailedEvent, event.Type)
	assert.Equal(t, "job-1", event.JobID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
	assert.NotNil(t, event.Metadata)
}

func TestJobCompleted_JSON(t *testing.T) {
	original := &JobCompleted{
		BaseEvent: NewBaseEvent(JobCompletedEvent, "job-1"),
		Artifacts: map[models.ArtifactKind]string{
			models.ArtifactKindDocument: "a1",
			models.ArtifactKindDiagram:  "a2",
		},
		Strategy: "builtin",
		Duration: 1500 * time.Millisecond,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"job_id":"job-1"`)
	assert.Contains(t, string(data), `"renderer_strategy":"builtin"`)

	var decoded JobCompleted
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Artifacts, decoded.Artifacts)
	assert.Equal(t, original.Duration, decoded.Duration)
	assert.Equal(t, JobCompletedEvent, decoded.Type)
}

func TestDecode(t *testing.T) {
	payload, err := json.Marshal(JobFailed{
		BaseEvent: NewBaseEvent(JobFailedEvent, "job-9"),
		Stage:     "render",
		Kind:      "RenderError",
		Error:     "all renderer strategies failed",
	})
	require.NoError(t, err)

	decoded, err := Decode(JobFailedEvent, payload)
	require.NoError(t, err)

	failed, ok := decoded.(*JobFailed)
	require.True(t, ok)
	assert.Equal(t, "job-9", failed.GetJobID())
	assert.Equal(t, "render", failed.Stage)

	_, err = Decode("job.archived", payload)
	require.Error(t, err)

	_, err = Decode(JobSubmittedEvent, []byte("{"))
	require.Error(t, err)
}
