package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/PFerreria/Concilium/pkg/bpmn"
	"github.com/PFerreria/Concilium/pkg/events"
	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/graph"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stage names, as recorded in logs, spans and job.failed events.
const (
	StageResolve  = "resolve"
	StageBuild    = "build"
	StageExport   = "export"
	StageRender   = "render"
	StageComplete = "complete"
)

// execution is the state one run of a job carries between stages. It is never
// shared with another job.
type execution struct {
	job        *models.Job
	candidates []models.StepCandidate
	graph      *models.WorkflowGraph
}

type stage struct {
	name string
	run  func(ctx context.Context, x *execution) error
}

func (o *Orchestrator) stages() []stage {
	stages := []stage{
		{name: StageResolve, run: o.resolve},
		{name: StageBuild, run: o.build},
		{name: StageExport, run: o.export},
	}

	if !o.cfg.NoDiagram {
		stages = append(stages, stage{name: StageRender, run: o.render})
	}

	return stages
}

// Execute runs a pending job to a terminal state. Stage failures do not come
// back as errors: they are recorded on the returned job, which is then failed.
// An error means the job could not be run at all, for example because it is
// unknown, already executing or no longer pending.
func (o *Orchestrator) Execute(ctx context.Context, jobID string) (*models.Job, error) {
	const op = "pipeline.Execute"

	if !o.acquire(jobID) {
		return nil, failure.New(op, failure.KindConflict, "job %s is already executing", jobID)
	}
	defer o.release(jobID)

	attrs := []attribute.KeyValue{attribute.String(otelhelper.JobIDKey, jobID)}

	worker := workerFrom(ctx)
	if worker != "" {
		attrs = append(attrs, attribute.String(otelhelper.WorkerIDKey, worker))
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline.execute", attrs...)
	defer span.End()

	started := o.now()

	job, err := o.jobs.Update(ctx, jobID, func(j *models.Job) error {
		return j.Transition(models.JobStatusProcessing, o.now())
	})
	if errors.Is(err, models.ErrInvalidTransition) {
		return nil, failure.Wrap(op, failure.KindConflict, err)
	}

	if err != nil {
		return nil, err
	}

	logger := o.logger.With("job_id", jobID)
	if worker != "" {
		logger = logger.With("worker", worker)
	}

	logger.InfoContext(ctx, "Job processing started")

	o.publish(ctx, events.JobProcessing{BaseEvent: events.NewBaseEvent(events.JobProcessingEvent, jobID)})

	x := &execution{job: job}

	for _, s := range o.stages() {
		err := o.runStage(ctx, logger, s, x)
		if err != nil {
			return o.fail(ctx, logger, x, s.name, err, started)
		}
	}

	return o.complete(ctx, logger, x, started)
}

func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, s stage, x *execution) error {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline."+s.name,
		attribute.String(otelhelper.JobIDKey, x.job.ID),
		attribute.String(otelhelper.StageKey, s.name),
	)
	defer span.End()

	began := time.Now()

	err := s.run(ctx, x)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.StageKey, s.name))

		return err
	}

	logger.DebugContext(ctx, "Stage finished", "stage", s.name, "duration", time.Since(began))

	return nil
}

// resolve produces the step candidates, asking the extractor when the job was
// submitted as a transcript.
func (o *Orchestrator) resolve(ctx context.Context, x *execution) error {
	const op = "pipeline.resolve"

	if len(x.job.Input.Steps) > 0 {
		x.candidates = x.job.Input.Steps

		return nil
	}

	transcript := x.job.Input.Transcript
	if transcript == nil {
		return failure.Validation(op, "job has neither steps nor a transcript")
	}

	if o.extractor == nil {
		return failure.New(op, failure.KindExternalService, "no step extractor is configured")
	}

	extractCtx := ctx

	if o.cfg.ExtractionTimeout > 0 {
		var cancel context.CancelFunc

		extractCtx, cancel = context.WithTimeout(ctx, o.cfg.ExtractionTimeout)
		defer cancel()
	}

	candidates, err := o.extractor.Extract(extractCtx, transcript.Text, x.job.Description)
	if err != nil {
		if failure.KindOf(err) == failure.KindInternal {
			return failure.Wrap(op, failure.KindExternalService, err)
		}

		return err
	}

	if len(candidates) == 0 {
		return failure.New(op, failure.KindExternalService, "extractor returned no steps")
	}

	x.candidates = candidates

	job, err := o.jobs.Update(ctx, x.job.ID, func(j *models.Job) error {
		j.Input.Steps = candidates
		j.UpdatedAt = o.now()

		return nil
	})
	if err != nil {
		return err
	}

	x.job = job

	return nil
}

func (o *Orchestrator) build(ctx context.Context, x *execution) error {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(otelhelper.JobTitleKey, x.job.Title),
		attribute.Int(otelhelper.StepCountKey, len(x.candidates)),
	)

	g, err := graph.Build(x.job.ID, x.job.Title, x.candidates)
	if err != nil {
		return err
	}

	g.Description = x.job.Description
	x.graph = g

	return nil
}

// export writes the document and attaches it to the job right away, so a later
// render failure still leaves the document reachable.
func (o *Orchestrator) export(ctx context.Context, x *execution) error {
	data, err := bpmn.Export(x.graph)
	if err != nil {
		return err
	}

	return o.store(ctx, x, models.Artifact{
		JobID:       x.job.ID,
		Kind:        models.ArtifactKindDocument,
		Format:      bpmn.FileExtension,
		ContentType: bpmn.ContentType,
	}, data, "")
}

func (o *Orchestrator) render(ctx context.Context, x *execution) error {
	result, err := o.renderer.Render(ctx, x.graph, o.cfg.DiagramFormat)
	if err != nil {
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(otelhelper.StrategyKey, result.Strategy),
		attribute.String(otelhelper.FormatKey, string(result.Format)),
	)

	return o.store(ctx, x, models.Artifact{
		JobID:       x.job.ID,
		Kind:        models.ArtifactKindDiagram,
		Format:      string(result.Format),
		ContentType: result.ContentType,
	}, result.Bytes, result.Strategy)
}

func (o *Orchestrator) store(ctx context.Context, x *execution, meta models.Artifact, data []byte, strategy string) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelhelper.ArtifactKindKey, string(meta.Kind)))

	artifact, err := o.artifacts.Put(ctx, meta, data)
	if err != nil {
		return err
	}

	job, err := o.jobs.Update(ctx, x.job.ID, func(j *models.Job) error {
		j.AttachArtifact(artifact.Kind, artifact.ID, o.now())

		if strategy != "" {
			j.Strategy = strategy
		}

		return nil
	})
	if err != nil {
		return err
	}

	x.job = job

	return nil
}

// complete marks the job completed once every configured artifact is attached.
func (o *Orchestrator) complete(ctx context.Context, logger *slog.Logger, x *execution, started time.Time) (*models.Job, error) {
	const op = "pipeline.complete"

	required := []models.ArtifactKind{models.ArtifactKindDocument}
	if !o.cfg.NoDiagram {
		required = append(required, models.ArtifactKindDiagram)
	}

	job, err := o.jobs.Update(ctx, x.job.ID, func(j *models.Job) error {
		for _, kind := range required {
			if _, ok := j.Artifacts[kind]; !ok {
				return failure.New(op, failure.KindInternal, "job has no %s artifact", kind)
			}
		}

		return j.Transition(models.JobStatusCompleted, o.now())
	})
	if err != nil {
		return o.fail(ctx, logger, x, StageComplete, err, started)
	}

	duration := o.now().Sub(started)

	logger.InfoContext(ctx, "Job completed", "duration", duration, "strategy", job.Strategy)

	o.publish(ctx, events.JobCompleted{
		BaseEvent: events.NewBaseEvent(events.JobCompletedEvent, job.ID),
		Artifacts: job.Artifacts,
		Strategy:  job.Strategy,
		Duration:  duration,
	})

	return job, nil
}

// fail records cause on the job. Only a failure to record it is returned.
func (o *Orchestrator) fail(
	ctx context.Context,
	logger *slog.Logger,
	x *execution,
	stageName string,
	cause error,
	started time.Time,
) (*models.Job, error) {
	kind := failure.KindOf(cause)

	logger.ErrorContext(ctx, "Job failed", "stage", stageName, "kind", kind, "error", cause)

	job, err := o.jobs.Update(ctx, x.job.ID, func(j *models.Job) error {
		return j.Fail(string(kind), cause.Error(), o.now())
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record job failure", "error", err)

		return nil, errors.Join(cause, err)
	}

	o.publish(ctx, events.JobFailed{
		BaseEvent: events.NewBaseEvent(events.JobFailedEvent, job.ID),
		Stage:     stageName,
		Kind:      string(kind),
		Error:     cause.Error(),
		Duration:  o.now().Sub(started),
	})

	return job, nil
}

func (o *Orchestrator) acquire(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.running[jobID]; busy {
		return false
	}

	o.running[jobID] = struct{}{}

	return true
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.running, jobID)
}

func (o *Orchestrator) isRunning(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, busy := o.running[jobID]

	return busy
}
