package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/sheetflow/internal/compiler"
	"github.com/roach88/sheetflow/internal/ids"
	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/sheet"
)

// JobRecorder persists job snapshots. SaveJob is called after every
// transition with the full job state and must upsert by job id.
type JobRecorder interface {
	SaveJob(ctx context.Context, job ir.Job) error
}

// DefaultWorkers is the number of Run workers when WithWorkers is not given.
const DefaultWorkers = 1

// Option configures an Executor.
type Option func(*Executor)

// WithGenerator sets the job id generator.
func WithGenerator(g ids.Generator) Option {
	return func(e *Executor) { e.gen = g }
}

// WithNow sets the wall clock used for job timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithRecorder persists every job transition through r.
func WithRecorder(r JobRecorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithLogger sets the logger for job transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithWorkers sets how many jobs Run executes concurrently. Jobs on the same
// sheet never run concurrently regardless of this value.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// jobState is the executor's private view of one job.
type jobState struct {
	job     ir.Job
	steps   []compiler.ExecStep
	target  sheet.Target
	claimed bool // a worker is executing the job
}

// Executor runs apply jobs: a pattern replayed against a target sheet one
// step at a time, observable by polling.
//
// Thread-safety model:
//   - Submit, Poll, Retry, Cancel, Restore: safe from any goroutine
//   - Run: starts its own workers; call once
//   - ProcessNext: runs one queued job on the calling goroutine
//
// INVARIANTS:
//   - at most one job per sheet is queued or running
//   - steps of a job execute strictly in position order
//   - a step in the applied state is never executed again
type Executor struct {
	mu       sync.Mutex
	jobs     map[string]*jobState
	active   map[string]string // sheet id -> job id
	queue    *jobQueue
	gen      ids.Generator
	now      func() time.Time
	recorder JobRecorder
	logger   *slog.Logger
	workers  int
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		jobs:    make(map[string]*jobState),
		active:  make(map[string]string),
		queue:   newJobQueue(),
		gen:     ids.UUIDv7Generator{},
		now:     time.Now,
		logger:  slog.Default(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit validates pattern, reserves the target sheet and queues a job.
// The returned job is in the queued state; execution happens on Run or
// ProcessNext.
func (e *Executor) Submit(ctx context.Context, pattern ir.Pattern, target sheet.Target) (ir.Job, error) {
	steps, err := compiler.Expand(pattern.Steps)
	if err != nil {
		return ir.Job{}, &RuntimeError{
			Code:     ErrCodeInvalidPattern,
			Message:  fmt.Sprintf("pattern %s does not decode", pattern.ID),
			Position: -1,
			Err:      err,
		}
	}
	if len(steps) == 0 {
		return ir.Job{}, &RuntimeError{
			Code:     ErrCodeInvalidPattern,
			Message:  fmt.Sprintf("pattern %s has no enabled steps", pattern.ID),
			Position: -1,
		}
	}

	sheetID := target.ID()
	if err := target.Ping(ctx); err != nil {
		return ir.Job{}, newSheetError(ErrCodeTargetUnavailable, sheetID, err, "target sheet unreachable")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.Closed() {
		return ir.Job{}, newSheetError(ErrCodeExecutorStopped, sheetID, nil, "executor stopped")
	}
	if other, busy := e.active[sheetID]; busy {
		return ir.Job{}, newSheetError(ErrCodeJobAlreadyRunning, sheetID, nil, "job %s is %s", other, e.jobs[other].job.Status)
	}

	job := ir.Job{
		ID:        e.gen.Generate(),
		PatternID: pattern.ID,
		SheetID:   sheetID,
		Status:    ir.JobQueued,
		CreatedAt: e.now().UTC(),
		Steps:     make([]ir.StepState, len(steps)),
	}
	for i, s := range steps {
		job.Steps[i] = ir.StepState{Position: i, Seq: s.Seq, Kind: s.Kind(), Status: ir.StepPending}
	}

	if e.recorder != nil {
		if err := e.recorder.SaveJob(ctx, job.Clone()); err != nil {
			return ir.Job{}, fmt.Errorf("save job %s: %w", job.ID, err)
		}
	}

	e.jobs[job.ID] = &jobState{job: job, steps: steps, target: target}
	e.active[sheetID] = job.ID
	e.queue.Enqueue(job.ID)

	e.logger.Info("job queued",
		"job_id", job.ID,
		"pattern_id", pattern.ID,
		"sheet_id", sheetID,
		"steps", len(steps),
	)
	return job.Clone(), nil
}

// Poll returns a snapshot of the job.
func (e *Executor) Poll(jobID string) (ir.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.jobs[jobID]
	if !ok {
		return ir.Job{}, newJobError(ErrCodeJobNotFound, jobID, "no such job")
	}
	return st.job.Clone(), nil
}

// Retry re-queues a failed job under the same id. Execution resumes at the
// failing step; steps already applied are not run again.
func (e *Executor) Retry(ctx context.Context, jobID string) (ir.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.jobs[jobID]
	if !ok {
		return ir.Job{}, newJobError(ErrCodeJobNotFound, jobID, "no such job")
	}
	if st.job.Status != ir.JobFailed {
		return ir.Job{}, newJobError(ErrCodeJobNotFailed, jobID, "job is %s", st.job.Status)
	}
	if e.queue.Closed() {
		return ir.Job{}, newJobError(ErrCodeExecutorStopped, jobID, "executor stopped")
	}
	if st.target == nil {
		return ir.Job{}, newJobError(ErrCodeTargetUnavailable, jobID, "no target sheet attached")
	}
	if other, busy := e.active[st.job.SheetID]; busy {
		return ir.Job{}, newSheetError(ErrCodeJobAlreadyRunning, st.job.SheetID, nil, "job %s is %s", other, e.jobs[other].job.Status)
	}

	prev := st.job.Clone()
	st.job.Status = ir.JobQueued
	st.job.ErrorCode = ""
	st.job.ErrorMessage = ""
	st.job.FinishedAt = nil
	for i := range st.job.Steps {
		if st.job.Steps[i].Status == ir.StepFailed {
			st.job.Steps[i].Status = ir.StepPending
			st.job.Steps[i].Error = ""
		}
	}

	if e.recorder != nil {
		if err := e.recorder.SaveJob(ctx, st.job.Clone()); err != nil {
			st.job = prev
			return ir.Job{}, fmt.Errorf("save job %s: %w", jobID, err)
		}
	}

	e.active[st.job.SheetID] = jobID
	e.queue.Enqueue(jobID)

	e.logger.Info("job requeued", "job_id", jobID, "resume_at", resumePoint(st.job), "attempts", st.job.Attempts)
	return st.job.Clone(), nil
}

// Cancel stops a queued or running job. A running job halts before its next
// step; the step in flight completes.
func (e *Executor) Cancel(ctx context.Context, jobID string) (ir.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.jobs[jobID]
	if !ok {
		return ir.Job{}, newJobError(ErrCodeJobNotFound, jobID, "no such job")
	}
	if !st.job.Status.Active() {
		return ir.Job{}, newJobError(ErrCodeJobNotCancelable, jobID, "job is %s", st.job.Status)
	}

	st.job.Status = ir.JobCanceled
	next := resumePoint(st.job)
	st.job.CurrentStep = &next
	now := e.now().UTC()
	st.job.FinishedAt = &now

	// A claimed job keeps its sheet until the worker reaches a step boundary.
	if !st.claimed {
		delete(e.active, st.job.SheetID)
	}
	e.save(ctx, st)

	e.logger.Info("job canceled", "job_id", jobID, "next_step", next)
	return st.job.Clone(), nil
}

// Restore registers a job loaded from storage so it can be polled and
// retried. A job persisted as queued or running belonged to a process that
// is gone; it is restored as failed with ErrCodeInterrupted.
func (e *Executor) Restore(job ir.Job, pattern ir.Pattern, target sheet.Target) error {
	steps, err := compiler.Expand(pattern.Steps)
	if err != nil {
		return &RuntimeError{Code: ErrCodeInvalidPattern, JobID: job.ID, Position: -1, Message: "pattern does not decode", Err: err}
	}
	if len(steps) != len(job.Steps) {
		return newJobError(ErrCodeInvalidPattern, job.ID, "pattern has %d steps, job has %d", len(steps), len(job.Steps))
	}
	if target != nil && target.ID() != job.SheetID {
		return newJobError(ErrCodeTargetUnavailable, job.ID, "job targets sheet %s, got %s", job.SheetID, target.ID())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.jobs[job.ID]; exists {
		return nil
	}

	job = job.Clone()
	if job.Status.Active() {
		pos := resumePoint(job)
		job.Status = ir.JobFailed
		job.CurrentStep = &pos
		job.ErrorCode = string(ErrCodeInterrupted)
		job.ErrorMessage = "executor stopped before the job finished"
		now := e.now().UTC()
		job.FinishedAt = &now
	}
	e.jobs[job.ID] = &jobState{job: job, steps: steps, target: target}
	return nil
}

// Jobs returns snapshots of every known job on sheetID, or of all jobs when
// sheetID is empty.
func (e *Executor) Jobs(sheetID string) []ir.Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ir.Job
	for _, st := range e.jobs {
		if sheetID == "" || st.job.SheetID == sheetID {
			out = append(out, st.job.Clone())
		}
	}
	return out
}

// Run starts the worker pool and blocks until ctx is canceled or Stop is
// called. Jobs interrupted by ctx fail with ErrCodeInterrupted and can be
// retried.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor starting", "workers", e.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error { return e.work(gctx) })
	}
	err := g.Wait()
	e.logger.Info("executor stopped")
	return err
}

func (e *Executor) work(ctx context.Context) error {
	for {
		if jobID, ok := e.queue.TryDequeue(); ok {
			e.execute(ctx, jobID)
			continue
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			// The signal channel closes with the queue, which fires this
			// case immediately.
			if e.queue.Closed() && e.queue.Len() == 0 {
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once in-flight jobs reach a step
// boundary and the queue drains.
func (e *Executor) Stop() {
	e.queue.Close()
}

// ProcessNext executes one queued job to completion on the calling goroutine.
// It reports false when the queue was empty.
func (e *Executor) ProcessNext(ctx context.Context) bool {
	jobID, ok := e.queue.TryDequeue()
	if !ok {
		return false
	}
	e.execute(ctx, jobID)
	return true
}

// Drain runs ProcessNext until the queue is empty.
func (e *Executor) Drain(ctx context.Context) {
	for e.ProcessNext(ctx) {
	}
}

// Wait polls the job every interval until it leaves the queued and running
// states or ctx ends.
func (e *Executor) Wait(ctx context.Context, jobID string, interval time.Duration) (ir.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := e.Poll(jobID)
		if err != nil {
			return ir.Job{}, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// execute runs the steps of one job from its resume point.
func (e *Executor) execute(ctx context.Context, jobID string) {
	e.mu.Lock()
	st, ok := e.jobs[jobID]
	if !ok || st.job.Status != ir.JobQueued {
		// Canceled while waiting in the queue.
		e.mu.Unlock()
		return
	}
	st.claimed = true
	st.job.Status = ir.JobRunning
	st.job.Attempts++
	started := e.now().UTC()
	st.job.StartedAt = &started
	start := resumePoint(st.job)
	total := len(st.steps)
	log := e.logger.With("job_id", jobID, "sheet_id", st.job.SheetID)
	log.Info("job running", "attempt", st.job.Attempts, "resume_at", start, "steps", total)
	e.save(ctx, st)
	e.mu.Unlock()

	for pos := start; pos < total; pos++ {
		e.mu.Lock()
		if st.job.Status == ir.JobCanceled {
			p := pos
			st.job.CurrentStep = &p
			e.release(st)
			e.save(ctx, st)
			e.mu.Unlock()
			log.Info("job halted after cancel", "next_step", pos)
			return
		}
		if err := ctx.Err(); err != nil {
			e.fail(ctx, st, pos, ErrCodeInterrupted, err.Error(), false)
			e.mu.Unlock()
			log.Warn("job interrupted", "step", pos, "error", err)
			return
		}
		if st.job.Steps[pos].Status == ir.StepApplied {
			e.mu.Unlock()
			continue
		}
		p := pos
		st.job.CurrentStep = &p
		e.save(ctx, st)
		step := st.steps[pos]
		e.mu.Unlock()

		opID, err := applyStep(ctx, st.target, pos, step.Params)

		e.mu.Lock()
		if err != nil && st.job.Status == ir.JobCanceled {
			// Canceled while the step was in flight: the job stays canceled.
			p := pos
			st.job.CurrentStep = &p
			st.job.Steps[pos].Status = ir.StepFailed
			st.job.Steps[pos].Error = err.Error()
			e.release(st)
			e.save(ctx, st)
			e.mu.Unlock()
			log.Info("job halted after cancel", "next_step", pos, "error", err)
			return
		}
		if err != nil {
			code := ErrorCode(err)
			if code == "" {
				code = ErrCodeExecutionFailed
			}
			e.fail(ctx, st, pos, code, err.Error(), true)
			e.mu.Unlock()
			log.Error("job failed", "step", pos, "kind", step.Kind(), "code", code, "error", err)
			return
		}
		st.job.Steps[pos].Status = ir.StepApplied
		st.job.Steps[pos].OperationID = opID
		st.job.Steps[pos].Error = ""
		st.job.Progress = float64(st.job.Applied()) / float64(total)
		e.save(ctx, st)
		e.mu.Unlock()
		log.Debug("step applied", "step", pos, "kind", step.Kind(), "operation_id", opID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st.job.Status == ir.JobCanceled {
		// Canceled during the last step: every step applied anyway.
		st.job.CurrentStep = nil
		e.release(st)
		e.save(ctx, st)
		return
	}
	st.job.Status = ir.JobSucceeded
	st.job.CurrentStep = nil
	st.job.Progress = 1
	finished := e.now().UTC()
	st.job.FinishedAt = &finished
	e.release(st)
	e.save(ctx, st)
	log.Info("job succeeded", "steps", total, "attempts", st.job.Attempts)
}

// fail records a failure at pos. Caller holds e.mu.
func (e *Executor) fail(ctx context.Context, st *jobState, pos int, code RuntimeErrorCode, msg string, stepFailed bool) {
	p := pos
	st.job.Status = ir.JobFailed
	st.job.CurrentStep = &p
	st.job.ErrorCode = string(code)
	st.job.ErrorMessage = msg
	if stepFailed {
		st.job.Steps[pos].Status = ir.StepFailed
		st.job.Steps[pos].Error = msg
	}
	finished := e.now().UTC()
	st.job.FinishedAt = &finished
	e.release(st)
	e.save(ctx, st)
}

// release frees the job's sheet. Caller holds e.mu.
func (e *Executor) release(st *jobState) {
	st.claimed = false
	if e.active[st.job.SheetID] == st.job.ID {
		delete(e.active, st.job.SheetID)
	}
}

// save persists a snapshot. Failures are logged: the in-memory job stays
// authoritative for pollers. Caller holds e.mu.
func (e *Executor) save(ctx context.Context, st *jobState) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.SaveJob(context.WithoutCancel(ctx), st.job.Clone()); err != nil {
		e.logger.Error("save job snapshot", "job_id", st.job.ID, "status", st.job.Status, "error", err)
	}
}

// resumePoint is the position of the first step not yet applied.
func resumePoint(job ir.Job) int {
	for i, s := range job.Steps {
		if s.Status != ir.StepApplied {
			return i
		}
	}
	return len(job.Steps)
}
