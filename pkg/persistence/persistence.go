// Package persistence provides the storage abstraction for jobs.
package persistence

import (
	"context"
	"sort"

	"github.com/PFerreria/Concilium/pkg/models"
)

// UpdateFunc mutates a job inside Update. Returning an error aborts the update
// and leaves the stored job untouched.
type UpdateFunc func(job *models.Job) error

// JobRepository stores job records. Implementations must make Update atomic
// with respect to other Update calls on the same id.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Job, error)
	List(ctx context.Context, opts ListJobsOptions) (*JobListResult, error)
	Delete(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ListJobsOptions filters and paginates List.
type ListJobsOptions struct {
	Status    *models.JobStatus
	SortBy    string // created_at, updated_at or status
	SortOrder string // asc or desc
	Limit     int
	Offset    int
}

// JobListResult is one page of jobs.
type JobListResult struct {
	Jobs        []*models.Job `json:"jobs"`
	TotalCount  int64         `json:"total_count"`
	HasNextPage bool          `json:"has_next_page"`
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var allowedSorts = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"status":     true,
}

// NormalizeListOptions applies defaults and validates the sort field against
// the allowlist.
func NormalizeListOptions(opts ListJobsOptions) (ListJobsOptions, error) {
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder != "asc" {
		opts.SortOrder = "desc"
	}

	if !allowedSorts[opts.SortBy] {
		return opts, ErrInvalidSortField
	}

	return opts, nil
}

// Page filters, sorts and slices jobs in memory. Backends without a query
// language share it.
func Page(jobs []*models.Job, opts ListJobsOptions) *JobListResult {
	filtered := make([]*models.Job, 0, len(jobs))

	for _, job := range jobs {
		if opts.Status != nil && job.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, job)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if opts.SortOrder == "desc" {
			a, b = b, a
		}

		switch opts.SortBy {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "status":
			return a.Status < b.Status
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})

	result := &JobListResult{
		Jobs:       make([]*models.Job, 0),
		TotalCount: int64(len(filtered)),
	}

	if opts.Offset >= len(filtered) {
		return result
	}

	end := min(opts.Offset+opts.Limit, len(filtered))
	result.Jobs = filtered[opts.Offset:end]
	result.HasNextPage = end < len(filtered)

	return result
}
