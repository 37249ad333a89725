// Package events defines event types and structures for job lifecycle notifications.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every job lifecycle event.
const Topic = "concilium.jobs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	JobSubmittedEvent  EventType = "job.submitted"
	JobProcessingEvent EventType = "job.processing"
	JobCompletedEvent  EventType = "job.completed"
	JobFailedEvent     EventType = "job.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	JobID     string         `json:"job_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// JobSubmitted asks a worker to execute a pending job.
type JobSubmitted struct {
	BaseEvent

	Title         string `json:"title"`
	HasTranscript bool   `json:"has_transcript"`
	StepCount     int    `json:"step_count"`
}

func (e JobSubmitted) GetType() EventType {
	return JobSubmittedEvent
}

type JobProcessing struct {
	BaseEvent
}

func (e JobProcessing) GetType() EventType {
	return JobProcessingEvent
}

type JobCompleted struct {
	BaseEvent

	Artifacts map[models.ArtifactKind]string `json:"artifacts"`
	Strategy  string                         `json:"renderer_strategy,omitempty"`
	Duration  time.Duration                  `json:"duration"`
}

func (e JobCompleted) GetType() EventType {
	return JobCompletedEvent
}

type JobFailed struct {
	BaseEvent

	Stage    string        `json:"stage"`
	Kind     string        `json:"kind"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e JobFailed) GetType() EventType {
	return JobFailedEvent
}

// GetJobID is the job the event belongs to.
func (e BaseEvent) GetJobID() string {
	return e.JobID
}

// Decode unmarshals payload into the event type named by eventType and returns
// a pointer to it.
func Decode(eventType EventType, payload []byte) (any, error) {
	var event any

	switch eventType {
	case JobSubmittedEvent:
		event = &JobSubmitted{}
	case JobProcessingEvent:
		event = &JobProcessing{}
	case JobCompletedEvent:
		event = &JobCompleted{}
	case JobFailedEvent:
		event = &JobFailed{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	err := json.Unmarshal(payload, event)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	return event, nil
}

func NewBaseEvent(eventType EventType, jobID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		JobID:     jobID,
		Metadata:  make(map[string]any),
	}
}
