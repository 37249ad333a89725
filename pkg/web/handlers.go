package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/PFerreria/Concilium/pkg/pipeline"
	"github.com/gofiber/fiber/v3"
)

// JobService is the job API the handlers serve.
type JobService interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (*models.Job, error)
	Status(ctx context.Context, jobID string) (*models.Job, error)
	List(ctx context.Context, opts persistence.ListJobsOptions) (*persistence.JobListResult, error)
	Download(ctx context.Context, jobID string, kind models.ArtifactKind) (*models.Artifact, []byte, error)
	Cleanup(ctx context.Context, jobID string) error
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	jobs     JobService
	checkers map[string]HealthChecker
	logger   *slog.Logger
}

func NewAPIHandlers(jobs JobService, checkers map[string]HealthChecker, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		jobs:     jobs,
		checkers: checkers,
		logger:   logger.With("module", "web"),
	}
}

// Register mounts the job routes on app.
func (h *APIHandlers) Register(app *fiber.App) {
	j := app.Group("/api/v1/jobs")
	j.Get("/", h.GetJobs)
	j.Post("/", h.SubmitJob)
	j.Get("/:id", h.GetJob)
	j.Delete("/:id", h.DeleteJob)
	j.Get("/:id/artifacts/:kind", h.DownloadArtifact)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) SubmitJob(c fiber.Ctx) error {
	var req pipeline.SubmitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	job, err := h.jobs.Submit(c.Context(), req)
	if err != nil {
		return h.serviceError(c, err)
	}

	c.Set(fiber.HeaderLocation, jobURL(job.ID))

	return c.Status(fiber.StatusAccepted).JSON(SubmitJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		StatusURL: jobURL(job.ID),
	})
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	job, err := h.jobs.Status(c.Context(), c.Params("id"))
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(TransformJob(job))
}

func (h *APIHandlers) GetJobs(c fiber.Ctx) error {
	opts, err := parseListJobsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.jobs.List(c.Context(), opts)
	if err != nil {
		return h.serviceError(c, err)
	}

	jobs := make([]JobResponse, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		jobs = append(jobs, TransformJob(job))
	}

	return c.JSON(ListJobsResponse{
		Jobs:        jobs,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

func parseListJobsOptions(c fiber.Ctx) (persistence.ListJobsOptions, error) {
	var opts persistence.ListJobsOptions

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return opts, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return opts, err
		}

		opts.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.JobStatus(statusStr)

		switch status {
		case models.JobStatusPending, models.JobStatusProcessing, models.JobStatusCompleted, models.JobStatusFailed:
			opts.Status = &status
		default:
			return opts, fmt.Errorf("unknown status %q", statusStr)
		}
	}

	opts.SortBy = c.Query("sort_by")
	opts.SortOrder = c.Query("sort_order")

	return persistence.NormalizeListOptions(opts)
}

// DownloadArtifact streams the raw artifact bytes with their content type.
func (h *APIHandlers) DownloadArtifact(c fiber.Ctx) error {
	kind, err := models.ParseArtifactKind(c.Params("kind"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	artifact, data, err := h.jobs.Download(c.Context(), c.Params("id"), kind)
	if err != nil {
		return h.serviceError(c, err)
	}

	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Filename()))
	c.Set(fiber.HeaderETag, strconv.Quote(artifact.Digest))

	return c.Send(data)
}

// DeleteJob removes a finished job and its artifacts.
func (h *APIHandlers) DeleteJob(c fiber.Ctx) error {
	err := h.jobs.Cleanup(c.Context(), c.Params("id"))
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checks := make(fiber.Map, len(h.checkers))
	healthy := true

	for name, checker := range h.checkers {
		err := checker.HealthCheck(c.Context())
		if err != nil {
			healthy = false
			checks[name] = err.Error()

			continue
		}

		checks[name] = "ok"
	}

	status := "unhealthy"
	message := "Concilium API is unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if healthy {
		status = "healthy"
		message = "Concilium API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"checkers":  checks,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) serviceError(c fiber.Ctx, err error) error {
	switch failure.KindOf(err) {
	case failure.KindValidation, failure.KindNotFound, failure.KindConflict:
		h.logger.DebugContext(c.Context(), "Request rejected", "path", c.Path(), "error", err)
	default:
		h.logger.ErrorContext(c.Context(), "Request failed", "path", c.Path(), "error", err)
	}

	return handleServiceError(c, err)
}
