// Package memory provides an in-process job repository.
package memory

import (
	"context"
	"sync"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
)

// Persistence implements persistence.JobRepository with a map guarded by a mutex.
type Persistence struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewPersistence() *Persistence {
	return &Persistence{jobs: make(map[string]*models.Job)}
}

func (p *Persistence) Create(_ context.Context, job *models.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.jobs[job.ID]; exists {
		return persistence.NewJobError("Create", job.ID, persistence.ErrJobAlreadyExists)
	}

	p.jobs[job.ID] = job.Clone()

	return nil
}

func (p *Persistence) Get(_ context.Context, id string) (*models.Job, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	job, ok := p.jobs[id]
	if !ok {
		return nil, persistence.NewJobError("Get", id, persistence.ErrJobNotFound)
	}

	return job.Clone(), nil
}

func (p *Persistence) Update(_ context.Context, id string, fn persistence.UpdateFunc) (*models.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return nil, persistence.NewJobError("Update", id, persistence.ErrJobNotFound)
	}

	updated := job.Clone()

	err := fn(updated)
	if err != nil {
		return nil, err
	}

	p.jobs[id] = updated

	return updated.Clone(), nil
}

func (p *Persistence) List(_ context.Context, opts persistence.ListJobsOptions) (*persistence.JobListResult, error) {
	opts, err := persistence.NormalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	jobs := make([]*models.Job, 0, len(p.jobs))

	for _, job := range p.jobs {
		jobs = append(jobs, job.Clone())
	}
	p.mu.RUnlock()

	return persistence.Page(jobs, opts), nil
}

func (p *Persistence) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.jobs[id]; !ok {
		return persistence.NewJobError("Delete", id, persistence.ErrJobNotFound)
	}

	delete(p.jobs, id)

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
