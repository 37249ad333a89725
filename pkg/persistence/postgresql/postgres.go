// Package postgresql provides PostgreSQL persistence for jobs.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/PFerreria/Concilium/pkg/persistence/sqlbase"

	_ "github.com/lib/pq"
)

// Persistence implements persistence.JobRepository for PostgreSQL.
type Persistence struct {
	db      *sql.DB
	logger  *slog.Logger
	jobRepo *JobRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("component", "postgres_persistence")
	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:      database,
		logger:  logger,
		jobRepo: NewJobRepository(database, logger),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Create(ctx context.Context, job *models.Job) error {
	return p.jobRepo.Create(ctx, job)
}

func (p *Persistence) Get(ctx context.Context, id string) (*models.Job, error) {
	return p.jobRepo.GetByID(ctx, id)
}

func (p *Persistence) Update(ctx context.Context, id string, fn persistence.UpdateFunc) (*models.Job, error) {
	return p.jobRepo.Update(ctx, id, fn)
}

func (p *Persistence) List(ctx context.Context, opts persistence.ListJobsOptions) (*persistence.JobListResult, error) {
	return p.jobRepo.List(ctx, opts)
}

func (p *Persistence) Delete(ctx context.Context, id string) error {
	return p.jobRepo.Delete(ctx, id)
}
