// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/google/uuid"
)

// LinearSteps is the smallest complete process: start -> task -> end.
func LinearSteps() []models.StepCandidate {
	return []models.StepCandidate{
		{ID: "s1", Name: "Receive request", Type: "start", Next: []string{"s2"}},
		{ID: "s2", Name: "Review request", Type: "task", Next: []string{"s3"}},
		{ID: "s3", Name: "Done", Type: "end"},
	}
}

// CreateTestJob creates a pending test Job with default values that can be overridden.
func CreateTestJob(overrides ...func(*models.Job)) *models.Job {
	job := models.NewJob(
		uuid.New().String(),
		"Test workflow",
		"Created by a test",
		models.JobInput{Steps: LinearSteps()},
		time.Now().UTC().Truncate(time.Millisecond),
	)

	for _, override := range overrides {
		override(job)
	}

	return job
}

// WithID sets the job id.
func WithID(id string) func(*models.Job) {
	return func(j *models.Job) {
		j.ID = id
		j.InputRef = "inline:" + id
	}
}

// WithStatus forces the job status.
func WithStatus(status models.JobStatus) func(*models.Job) {
	return func(j *models.Job) {
		j.Status = status
	}
}

// WithCreatedAt sets both timestamps.
func WithCreatedAt(at time.Time) func(*models.Job) {
	return func(j *models.Job) {
		j.CreatedAt = at
		j.UpdatedAt = at
	}
}

// WithSteps replaces the submitted step candidates.
func WithSteps(steps []models.StepCandidate) func(*models.Job) {
	return func(j *models.Job) {
		j.Input.Steps = steps
	}
}

// WithTranscript makes the job a transcript submission.
func WithTranscript(text string) func(*models.Job) {
	return func(j *models.Job) {
		j.Input.Steps = nil
		j.Input.Transcript = &models.Transcript{Text: text, Language: "en"}
	}
}
