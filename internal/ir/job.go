package ir

import "time"

// JobStatus is the lifecycle state of an apply job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Active reports whether the job still occupies its target sheet.
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobRunning
}

// Terminal reports whether no further transition happens without a retry.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCanceled
}

// StepStatus is the per-step state exposed alongside a job.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepApplied StepStatus = "applied"
	StepFailed  StepStatus = "failed"
)

// StepState tracks one executable step of a job. Position is the 0-based
// index in the group-expanded, disabled-filtered step list; Seq is the
// top-level record the step came from.
type StepState struct {
	Position    int        `json:"position"`
	Seq         int        `json:"seq"`
	Kind        StepKind   `json:"kind"`
	Status      StepStatus `json:"status"`
	OperationID string     `json:"operation_id,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Job is the observable state of one pattern application.
//
// CurrentStep is the 0-based position of the step being applied while
// running, of the failing step once failed, and of the next unapplied step
// once canceled. It is nil while queued for the first time and after success.
type Job struct {
	ID           string      `json:"id"`
	PatternID    string      `json:"pattern_id"`
	SheetID      string      `json:"sheet_id"`
	Status       JobStatus   `json:"status"`
	Progress     float64     `json:"progress"`
	CurrentStep  *int        `json:"current_step"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Attempts     int         `json:"attempts"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	Steps        []StepState `json:"steps"`
}

// Applied returns the number of steps in the applied state.
func (j Job) Applied() int {
	n := 0
	for _, s := range j.Steps {
		if s.Status == StepApplied {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of j, safe to hand to pollers.
func (j Job) Clone() Job {
	j.Steps = append([]StepState(nil), j.Steps...)
	if j.CurrentStep != nil {
		v := *j.CurrentStep
		j.CurrentStep = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		j.StartedAt = &v
	}
	if j.FinishedAt != nil {
		v := *j.FinishedAt
		j.FinishedAt = &v
	}
	return j
}
