// Package file provides file-based persistence for jobs, one JSON file per job.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
)

// Persistence implements persistence.JobRepository using the file system.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

func (fp *Persistence) Create(_ context.Context, job *models.Job) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path, err := fp.jobPath(job.ID)
	if err != nil {
		return persistence.NewJobError("Create", job.ID, err)
	}

	_, err = os.Stat(path)
	if err == nil {
		return persistence.NewJobError("Create", job.ID, persistence.ErrJobAlreadyExists)
	}

	return fp.save(path, job)
}

func (fp *Persistence) Get(_ context.Context, id string) (*models.Job, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.load("Get", id)
}

func (fp *Persistence) Update(_ context.Context, id string, fn persistence.UpdateFunc) (*models.Job, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	job, err := fp.load("Update", id)
	if err != nil {
		return nil, err
	}

	err = fn(job)
	if err != nil {
		return nil, err
	}

	path, err := fp.jobPath(id)
	if err != nil {
		return nil, persistence.NewJobError("Update", id, err)
	}

	err = fp.save(path, job)
	if err != nil {
		return nil, err
	}

	return job.Clone(), nil
}

// List reads every job file and pages through them in memory.
func (fp *Persistence) List(_ context.Context, opts persistence.ListJobsOptions) (*persistence.JobListResult, error) {
	opts, err := persistence.NormalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	root := os.DirFS(fp.jobsDir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list job files: %w", err)
	}

	jobs := make([]*models.Job, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		job, err := fp.load("List", strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, job)
	}

	return persistence.Page(jobs, opts), nil
}

func (fp *Persistence) Delete(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path, err := fp.jobPath(id)
	if err != nil {
		return persistence.NewJobError("Delete", id, err)
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewJobError("Delete", id, persistence.ErrJobNotFound)
	}

	if err != nil {
		return persistence.NewJobError("Delete", id, err)
	}

	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

func (fp *Persistence) jobsDir() string {
	return filepath.Join(fp.root, "jobs")
}

// jobPath rejects ids that would escape the jobs directory; such a job cannot exist.
func (fp *Persistence) jobPath(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", persistence.ErrJobNotFound
	}

	return filepath.Join(fp.jobsDir(), id+".json"), nil
}

func (fp *Persistence) load(op, id string) (*models.Job, error) {
	path, err := fp.jobPath(id)
	if err != nil {
		return nil, persistence.NewJobError(op, id, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewJobError(op, id, persistence.ErrJobNotFound)
	}

	if err != nil {
		return nil, persistence.NewJobError(op, id, err)
	}

	var job models.Job

	err = json.Unmarshal(data, &job)
	if err != nil {
		return nil, &persistence.JobError{Op: op, JobID: id, Err: err, Message: "corrupt job file"}
	}

	return &job, nil
}

func (fp *Persistence) save(path string, job *models.Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return persistence.NewJobError("Save", job.ID, err)
	}

	err = os.MkdirAll(fp.jobsDir(), 0750)
	if err != nil {
		return persistence.NewJobError("Save", job.ID, err)
	}

	tmp := path + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return persistence.NewJobError("Save", job.ID, err)
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return persistence.NewJobError("Save", job.ID, err)
	}

	return nil
}
