package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const jobColumns = `
			id
		  , status
		  , title
		  , description
		  , input_ref
		  , input
		  , artifacts
		  , error
		  , renderer_strategy
		  , created_at
		  , updated_at
		  , completed_at
`

// JobRepository handles job-related database operations.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	inputJSON, artifactsJSON, errorJSON, err := encodeJob(job)
	if err != nil {
		return persistence.NewJobError("Create", job.ID, err)
	}

	query := `
		INSERT INTO jobs (id, status, title, description, input_ref, input,
			artifacts, error, renderer_strategy, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.Title,
		job.Description,
		job.InputRef,
		inputJSON,
		artifactsJSON,
		errorJSON,
		job.Strategy,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewJobError("Create", job.ID, persistence.ErrJobAlreadyExists)
		}

		return persistence.NewJobError("Create", job.ID, fmt.Errorf("failed to insert job: %w", err))
	}

	return nil
}

// GetByID returns a job by id.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+jobColumns+"FROM jobs WHERE id = $1", id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewJobError("Get", id, persistence.ErrJobNotFound)
	}

	if err != nil {
		return nil, persistence.NewJobError("Get", id, fmt.Errorf("failed to scan job: %w", err))
	}

	return job, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
func (r *JobRepository) Update(ctx context.Context, id string, fn persistence.UpdateFunc) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, "SELECT"+jobColumns+"FROM jobs WHERE id = $1 FOR UPDATE", id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewJobError("Update", id, persistence.ErrJobNotFound)
	}

	if err != nil {
		return nil, persistence.NewJobError("Update", id, fmt.Errorf("failed to scan job: %w", err))
	}

	err = fn(job)
	if err != nil {
		return nil, err
	}

	inputJSON, artifactsJSON, errorJSON, err := encodeJob(job)
	if err != nil {
		return nil, persistence.NewJobError("Update", id, err)
	}

	query := `
		UPDATE jobs SET
			status = $2,
			title = $3,
			description = $4,
			input_ref = $5,
			input = $6,
			artifacts = $7,
			error = $8,
			renderer_strategy = $9,
			updated_at = $10,
			completed_at = $11
		WHERE id = $1
	`

	_, err = tx.ExecContext(ctx, query,
		id,
		job.Status,
		job.Title,
		job.Description,
		job.InputRef,
		inputJSON,
		artifactsJSON,
		errorJSON,
		job.Strategy,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return nil, persistence.NewJobError("Update", id, fmt.Errorf("failed to update job: %w", err))
	}

	err = tx.Commit()
	if err != nil {
		return nil, persistence.NewJobError("Update", id, fmt.Errorf("failed to commit transaction: %w", err))
	}

	committed = true

	return job, nil
}

// List returns a filtered page of jobs. The sort column comes from the
// allowlist in persistence.NormalizeListOptions.
func (r *JobRepository) List(ctx context.Context, opts persistence.ListJobsOptions) (*persistence.JobListResult, error) {
	opts, err := persistence.NormalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	where := ""
	args := make([]any, 0, 3)

	if opts.Status != nil {
		where = " WHERE status = $1"
		args = append(args, *opts.Status)
	}

	var total int64

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf("SELECT%sFROM jobs%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d",
		jobColumns, where, opts.SortBy, direction, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	defer func(ctx context.Context, r *JobRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	jobs := make([]*models.Job, 0, opts.Limit)

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		jobs = append(jobs, job)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return &persistence.JobListResult{
		Jobs:        jobs,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(jobs)) < total,
	}, nil
}

// Delete removes a job row.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = $1", id)
	if err != nil {
		return persistence.NewJobError("Delete", id, fmt.Errorf("failed to delete job: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewJobError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewJobError("Delete", id, persistence.ErrJobNotFound)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		job                                 models.Job
		inputJSON, artifactsJSON, errorJSON []byte
		completedAt                         sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.Title,
		&job.Description,
		&job.InputRef,
		&inputJSON,
		&artifactsJSON,
		&errorJSON,
		&job.Strategy,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(inputJSON, &job.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}

	err = json.Unmarshal(artifactsJSON, &job.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
	}

	if len(errorJSON) > 0 {
		err = json.Unmarshal(errorJSON, &job.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal error: %w", err)
		}
	}

	if completedAt.Valid {
		at := completedAt.Time.UTC()
		job.CompletedAt = &at
	}

	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()

	return &job, nil
}

// encodeJob returns the JSONB column values. The error column is NULL for
// jobs that have not failed.
func encodeJob(job *models.Job) ([]byte, []byte, any, error) {
	inputJSON, err := json.Marshal(job.Input)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal input: %w", err)
	}

	artifacts := job.Artifacts
	if artifacts == nil {
		artifacts = map[models.ArtifactKind]string{}
	}

	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal artifacts: %w", err)
	}

	if job.Error == nil {
		return inputJSON, artifactsJSON, nil, nil
	}

	errorJSON, err := json.Marshal(job.Error)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal error: %w", err)
	}

	return inputJSON, artifactsJSON, errorJSON, nil
}
