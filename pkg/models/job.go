package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a job status would move backwards or
// leave a terminal state.
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether s -> to is a forward move of the state machine
// pending -> processing -> {completed | failed}.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	switch s {
	case JobStatusPending:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// JobError is the structured failure reason recorded on a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobInput is what a client submitted: either step candidates, or a
// transcript that still needs step extraction.
type JobInput struct {
	Steps      []StepCandidate `json:"steps,omitempty"`
	Transcript *Transcript     `json:"transcript,omitempty"`
}

// Transcript is the speech-to-text result handed over by the upstream collaborator.
type Transcript struct {
	Text            string  `json:"text"`
	Language        string  `json:"language,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// Job is the unit of asynchronous work for one submission.
type Job struct {
	ID          string                  `json:"id"`
	Status      JobStatus               `json:"status"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	InputRef    string                  `json:"input_ref"`
	Input       JobInput                `json:"input"`
	Artifacts   map[ArtifactKind]string `json:"artifacts"`
	Error       *JobError               `json:"error,omitempty"`
	Strategy    string                  `json:"renderer_strategy,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// NewJob creates a job in the pending state.
func NewJob(id, title, description string, input JobInput, now time.Time) *Job {
	return &Job{
		ID:          id,
		Status:      JobStatusPending,
		Title:       title,
		Description: description,
		InputRef:    "inline:" + id,
		Input:       input,
		Artifacts:   make(map[ArtifactKind]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the job to status to, enforcing the forward-only state machine.
func (j *Job) Transition(to JobStatus, now time.Time) error {
	if !j.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}

	j.Status = to
	j.UpdatedAt = now

	if to.IsTerminal() {
		j.CompletedAt = &now
	}

	return nil
}

// Fail records the failure reason and moves the job to failed.
func (j *Job) Fail(kind, message string, now time.Time) error {
	err := j.Transition(JobStatusFailed, now)
	if err != nil {
		return err
	}

	j.Error = &JobError{Kind: kind, Message: message}

	return nil
}

// AttachArtifact records the artifact id produced for kind.
func (j *Job) AttachArtifact(kind ArtifactKind, artifactID string, now time.Time) {
	if j.Artifacts == nil {
		j.Artifacts = make(map[ArtifactKind]string)
	}

	j.Artifacts[kind] = artifactID
	j.UpdatedAt = now
}

// Clone returns a deep copy so stored jobs are never shared with callers.
func (j *Job) Clone() *Job {
	c := *j

	c.Artifacts = make(map[ArtifactKind]string, len(j.Artifacts))
	for kind, id := range j.Artifacts {
		c.Artifacts[kind] = id
	}

	if j.Error != nil {
		jobErr := *j.Error
		c.Error = &jobErr
	}

	if j.CompletedAt != nil {
		completedAt := *j.CompletedAt
		c.CompletedAt = &completedAt
	}

	if j.Input.Transcript != nil {
		transcript := *j.Input.Transcript
		c.Input.Transcript = &transcript
	}

	if j.Input.Steps != nil {
		c.Input.Steps = make([]StepCandidate, len(j.Input.Steps))
		for i, step := range j.Input.Steps {
			step.Next = append([]string(nil), step.Next...)
			c.Input.Steps[i] = step
		}
	}

	return &c
}
