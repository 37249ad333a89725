package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PFerreria/Concilium/pkg/artifacts"
	"github.com/PFerreria/Concilium/pkg/eventbus"
	"github.com/PFerreria/Concilium/pkg/events"
	"github.com/PFerreria/Concilium/pkg/extraction"
	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/otelhelper"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/PFerreria/Concilium/pkg/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the execution settings read at startup.
type Config struct {
	DiagramFormat render.Format
	// NoDiagram skips the render stage; a job completes with its document only.
	NoDiagram bool
	// ExtractionTimeout bounds the call to the step extractor.
	ExtractionTimeout time.Duration
}

// Dispatcher schedules a pending job for execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Orchestrator owns the job lifecycle: it records submissions, runs the stages
// of each job and serves status and artifact lookups.
type Orchestrator struct {
	jobs      persistence.JobRepository
	artifacts artifacts.Store
	renderer  *render.Chain
	extractor extraction.Extractor
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	validate  *validator.Validate
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	dispatcher Dispatcher
	running    map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExtractor sets the collaborator used for transcript submissions.
func WithExtractor(e extraction.Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

// WithPublisher publishes lifecycle events. When set, submissions are announced
// with job.submitted and a subscribed Worker picks them up.
func WithPublisher(p eventbus.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithDispatcher hands submissions straight to d instead of going through the bus.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(
	cfg Config,
	jobs persistence.JobRepository,
	store artifacts.Store,
	renderer *render.Chain,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		jobs:      jobs,
		artifacts: store,
		renderer:  renderer,
		tracer:    otelhelper.NoopTracer(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
		logger:    logger.With("module", "pipeline"),
		now:       func() time.Time { return time.Now().UTC() },
		running:   make(map[string]struct{}),
	}

	if o.cfg.DiagramFormat == "" {
		o.cfg.DiagramFormat = render.FormatPNG
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// SetDispatcher replaces the dispatcher after construction, for pools that
// need the orchestrator to exist first.
func (o *Orchestrator) SetDispatcher(d Dispatcher) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.dispatcher = d
}

// Submit validates req, records a pending job and schedules it. It returns as
// soon as the job is stored; execution happens elsewhere.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	err := req.Validate(o.validate)
	if err != nil {
		return nil, err
	}

	job := models.NewJob(uuid.NewString(), req.Title, req.Description, req.input(), o.now())

	err = o.jobs.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With("job_id", job.ID)
	logger.InfoContext(ctx, "Job submitted", "steps", len(job.Input.Steps), "transcript", job.Input.Transcript != nil)

	err = o.schedule(ctx, job)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to schedule job", "error", err)

		failed, updateErr := o.jobs.Update(ctx, job.ID, func(j *models.Job) error {
			now := o.now()

			transitionErr := j.Transition(models.JobStatusProcessing, now)
			if transitionErr != nil {
				return transitionErr
			}

			return j.Fail(string(failure.KindInternal), "job could not be scheduled: "+err.Error(), now)
		})
		if updateErr != nil {
			return nil, updateErr
		}

		return failed, nil
	}

	return job, nil
}

func (o *Orchestrator) schedule(ctx context.Context, job *models.Job) error {
	o.mu.Lock()
	dispatcher := o.dispatcher
	o.mu.Unlock()

	if dispatcher != nil {
		return dispatcher.Dispatch(ctx, job.ID)
	}

	if o.publisher == nil {
		return failure.New("pipeline.Submit", failure.KindInternal, "no dispatcher or event publisher configured")
	}

	event := events.JobSubmitted{
		BaseEvent:     events.NewBaseEvent(events.JobSubmittedEvent, job.ID),
		Title:         job.Title,
		HasTranscript: job.Input.Transcript != nil,
		StepCount:     len(job.Input.Steps),
	}

	return o.publisher.Publish(ctx, event)
}

// Status returns the current job record.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*models.Job, error) {
	return o.jobs.Get(ctx, jobID)
}

// List returns a page of jobs.
func (o *Orchestrator) List(ctx context.Context, opts persistence.ListJobsOptions) (*persistence.JobListResult, error) {
	return o.jobs.List(ctx, opts)
}

// Download returns the artifact of kind produced for the job. A job that never
// produced it, for example because it failed first, yields a NotFoundError.
func (o *Orchestrator) Download(ctx context.Context, jobID string, kind models.ArtifactKind) (*models.Artifact, []byte, error) {
	const op = "pipeline.Download"

	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	artifactID, ok := job.Artifacts[kind]
	if !ok {
		return nil, nil, failure.NotFound(op, "job %s has no %s artifact", jobID, kind)
	}

	artifact, data, err := o.artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, nil, err
	}

	if artifact.JobID != jobID || artifact.Kind != kind {
		return nil, nil, failure.New(op, failure.KindInternal, "artifact %s does not belong to job %s", artifactID, jobID)
	}

	return artifact, data, nil
}

// Cleanup deletes a finished job and its artifacts. Jobs still pending or
// processing are left alone with a ConflictError.
func (o *Orchestrator) Cleanup(ctx context.Context, jobID string) error {
	const op = "pipeline.Cleanup"

	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if !job.Status.IsTerminal() {
		return failure.New(op, failure.KindConflict, "job %s is %s", jobID, job.Status)
	}

	err = o.artifacts.DeleteJob(ctx, jobID)
	if err != nil {
		return err
	}

	err = o.jobs.Delete(ctx, jobID)
	if err != nil {
		return err
	}

	o.logger.InfoContext(ctx, "Job cleaned up", "job_id", jobID)

	return nil
}

// Recover puts jobs left behind by a previous process back on track: pending
// jobs are scheduled again, jobs interrupted while processing are failed.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	recovered := 0

	for _, status := range []models.JobStatus{models.JobStatusProcessing, models.JobStatusPending} {
		jobs, err := o.allWithStatus(ctx, status)
		if err != nil {
			return recovered, err
		}

		for _, job := range jobs {
			if o.isRunning(job.ID) {
				continue
			}

			if status == models.JobStatusProcessing {
				_, err = o.jobs.Update(ctx, job.ID, func(j *models.Job) error {
					return j.Fail(string(failure.KindInternal), "job was interrupted by a restart", o.now())
				})
			} else {
				err = o.schedule(ctx, job)
			}

			if err != nil {
				return recovered, err
			}

			recovered++
		}
	}

	if recovered > 0 {
		o.logger.InfoContext(ctx, "Recovered unfinished jobs", "count", recovered)
	}

	return recovered, nil
}

func (o *Orchestrator) allWithStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	var all []*models.Job

	opts := persistence.ListJobsOptions{Status: &status, SortBy: "created_at", SortOrder: "asc", Limit: persistence.MaxListLimit}

	for {
		page, err := o.jobs.List(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Jobs...)

		if !page.HasNextPage {
			return all, nil
		}

		opts.Offset += len(page.Jobs)
	}
}

func (o *Orchestrator) publish(ctx context.Context, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(ctx, event)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to publish job event", "job_id", event.GetJobID(), "event", event.GetType(), "error", err)
	}
}
