// Package web provides HTTP request and response types for the job API.
package web

import (
	"time"

	"github.com/PFerreria/Concilium/pkg/models"
)

// SubmitJobResponse is returned when a job has been accepted.
type SubmitJobResponse struct {
	JobID     string           `json:"job_id"`
	Status    models.JobStatus `json:"status"`
	StatusURL string           `json:"status_url"`
}

// JobResponse is the public view of a job.
type JobResponse struct {
	ID          string                       `json:"job_id"`
	Status      models.JobStatus             `json:"status"`
	Title       string                       `json:"title"`
	Description string                       `json:"description,omitempty"`
	InputRef    string                       `json:"input_ref"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
	Error       *models.JobError             `json:"error,omitempty"`
	Strategy    string                       `json:"renderer_strategy,omitempty"`
	Artifacts   map[models.ArtifactKind]Link `json:"artifacts"`
}

// Link references a downloadable artifact.
type Link struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ListJobsResponse is one page of jobs.
type ListJobsResponse struct {
	Jobs        []JobResponse `json:"jobs"`
	TotalCount  int64         `json:"total_count"`
	HasNextPage bool          `json:"has_next_page"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}

// TransformJob builds the public view of job. Artifact links are only
// present for artifacts the job actually holds.
func TransformJob(job *models.Job) JobResponse {
	artifacts := make(map[models.ArtifactKind]Link, len(job.Artifacts))
	for kind, id := range job.Artifacts {
		artifacts[kind] = Link{ID: id, URL: artifactURL(job.ID, kind)}
	}

	return JobResponse{
		ID:          job.ID,
		Status:      job.Status,
		Title:       job.Title,
		Description: job.Description,
		InputRef:    job.InputRef,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
		Strategy:    job.Strategy,
		Artifacts:   artifacts,
	}
}

func jobURL(id string) string {
	return "/api/v1/jobs/" + id
}

func artifactURL(id string, kind models.ArtifactKind) string {
	return jobURL(id) + "/artifacts/" + string(kind)
}
