package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/roach88/sheetflow/internal/compiler"
	"github.com/roach88/sheetflow/internal/engine"
	"github.com/roach88/sheetflow/internal/ids"
	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/oplog"
	"github.com/roach88/sheetflow/internal/sheet"
	"github.com/roach88/sheetflow/internal/store"
	"github.com/roach88/sheetflow/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and sequence ids.
type Harness struct {
	store    *store.Store
	executor *engine.Executor
	target   *testutil.FaultTarget
	clock    *testutil.DeterministicClock
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Validate and compile the pattern payload
// 2. Build the sheet and inject faults
// 3. Submit the job and drain the executor
// 4. Heal and retry while the job is failed and retries remain
// 5. Return result with pass/fail, final job, cells and errors
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.DiscardHandler)

	log := oplog.New(
		oplog.WithGenerator(ids.NewSequenceGenerator("op")),
		oplog.WithNow(clock.Now),
		oplog.WithRecorder(st),
		oplog.WithLogger(logger),
	)
	mem := sheet.FromRows(scenario.Sheet.ID, scenario.Sheet.Rows, log)

	h := &Harness{
		store: st,
		executor: engine.New(
			engine.WithGenerator(ids.NewSequenceGenerator("job")),
			engine.WithNow(clock.Now),
			engine.WithRecorder(st),
			engine.WithLogger(logger),
		),
		target: testutil.NewFaultTarget(mem),
		clock:  clock,
	}
	defer h.executor.Stop()

	pattern, err := h.loadPattern(ctx, scenario)
	if err != nil {
		return nil, err
	}
	for _, f := range scenario.Faults {
		var injected error
		if f.Error != "" {
			injected = errors.New(f.Error)
		}
		h.target.FailOn(f.Method, f.Call, injected)
	}

	job, err := h.apply(ctx, pattern, scenario.Retries)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Job = job
	result.Cells = append(result.Cells, mem.Snapshot()...)
	result.Operations = append(result.Operations, log.List(mem.ID())...)
	for method := range faultMethods {
		if n := h.target.Calls(method); n > 0 {
			result.Calls[method] = n
		}
	}

	if err := h.checkPersisted(ctx, job); err != nil {
		result.AddError(err.Error())
	}
	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// loadPattern validates the scenario's pattern payload, compiles it and
// stores it so jobs can reference it.
func (h *Harness) loadPattern(ctx context.Context, scenario *Scenario) (ir.Pattern, error) {
	raw, err := scenario.PatternPayload()
	if err != nil {
		return ir.Pattern{}, err
	}
	payload, err := compiler.ParsePayload(raw)
	if err != nil {
		return ir.Pattern{}, fmt.Errorf("pattern: %w", err)
	}
	pattern, err := compiler.NewPattern("pattern-"+scenario.Name, payload.Name, payload.Description,
		payload.Origin, payload.Steps, h.clock.Now())
	if err != nil {
		return ir.Pattern{}, fmt.Errorf("pattern: %w", err)
	}
	if _, err := h.store.CreatePattern(ctx, pattern); err != nil {
		return ir.Pattern{}, err
	}
	return pattern, nil
}

// apply submits the pattern and runs the job to a terminal state, healing
// the sheet and retrying up to retries times.
func (h *Harness) apply(ctx context.Context, pattern ir.Pattern, retries int) (ir.Job, error) {
	job, err := h.executor.Submit(ctx, pattern, h.target)
	if err != nil {
		return ir.Job{}, fmt.Errorf("submit: %w", err)
	}
	h.executor.Drain(ctx)

	for attempt := 0; attempt < retries; attempt++ {
		if job, err = h.executor.Poll(job.ID); err != nil {
			return ir.Job{}, err
		}
		if job.Status != ir.JobFailed {
			break
		}
		h.target.Heal()
		if _, err := h.executor.Retry(ctx, job.ID); err != nil {
			return ir.Job{}, fmt.Errorf("retry: %w", err)
		}
		h.executor.Drain(ctx)
	}
	return h.executor.Poll(job.ID)
}

// checkPersisted compares the stored snapshot with the executor's view.
func (h *Harness) checkPersisted(ctx context.Context, job ir.Job) error {
	stored, err := h.store.GetJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("persisted job: %w", err)
	}
	if !reflect.DeepEqual(stored, job) {
		return fmt.Errorf("persisted job differs from executor state:\n  stored:   %+v\n  executor: %+v", stored, job)
	}
	return nil
}
