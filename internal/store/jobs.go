package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sheetflow/internal/ir"
)

// SaveJob upserts the job row and replaces its step rows in one transaction.
// Implements engine.JobRecorder.
//
// Note: The pattern referenced by PatternID must exist (foreign key constraint).
func (s *Store) SaveJob(ctx context.Context, job ir.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save job: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var current sql.NullInt64
	if job.CurrentStep != nil {
		current = sql.NullInt64{Int64: int64(*job.CurrentStep), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs
		(id, pattern_id, sheet_id, status, progress, current_step, error_code, error_message,
		 attempts, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status        = excluded.status,
			progress      = excluded.progress,
			current_step  = excluded.current_step,
			error_code    = excluded.error_code,
			error_message = excluded.error_message,
			attempts      = excluded.attempts,
			started_at    = excluded.started_at,
			finished_at   = excluded.finished_at
	`,
		job.ID,
		job.PatternID,
		job.SheetID,
		string(job.Status),
		job.Progress,
		current,
		job.ErrorCode,
		job.ErrorMessage,
		job.Attempts,
		formatTime(job.CreatedAt),
		formatOptTime(job.StartedAt),
		formatOptTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_steps WHERE job_id = ?`, job.ID); err != nil {
		return fmt.Errorf("save job %s: clear steps: %w", job.ID, err)
	}
	for _, st := range job.Steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_steps (job_id, position, seq, kind, status, operation_id, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, job.ID, st.Position, st.Seq, string(st.Kind), string(st.Status), st.OperationID, st.Error)
		if err != nil {
			return fmt.Errorf("save job %s: step %d: %w", job.ID, st.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save job %s: commit: %w", job.ID, err)
	}
	return nil
}

const jobColumns = `id, pattern_id, sheet_id, status, progress, current_step, error_code, error_message,
	attempts, created_at, started_at, finished_at`

// GetJob returns the latest snapshot of a job.
func (s *Store) GetJob(ctx context.Context, id string) (ir.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	if job.Steps, err = s.readJobSteps(ctx, id); err != nil {
		return ir.Job{}, err
	}
	return job, nil
}

// ListJobs returns jobs ordered by creation. A non-empty sheetID keeps only
// jobs applied to that sheet.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListJobs(ctx context.Context, sheetID string) ([]ir.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE (? = '' OR sheet_id = ?)
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, sheetID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	jobs := []ir.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	// Steps are read after the cursor closes: the pool holds one connection.
	for i := range jobs {
		if jobs[i].Steps, err = s.readJobSteps(ctx, jobs[i].ID); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (s *Store) readJobSteps(ctx context.Context, jobID string) ([]ir.StepState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, seq, kind, status, operation_id, error
		FROM job_steps
		WHERE job_id = ?
		ORDER BY position ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job steps: %w", err)
	}
	defer rows.Close()

	steps := []ir.StepState{}
	for rows.Next() {
		var st ir.StepState
		var kind, status string
		if err := rows.Scan(&st.Position, &st.Seq, &kind, &status, &st.OperationID, &st.Error); err != nil {
			return nil, fmt.Errorf("scan job step: %w", err)
		}
		st.Kind = ir.StepKind(kind)
		st.Status = ir.StepStatus(status)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job steps: %w", err)
	}
	return steps, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (ir.Job, error) {
	var job ir.Job
	var status, createdAt string
	var current sql.NullInt64
	var started, finished sql.NullString

	if err := r.Scan(
		&job.ID, &job.PatternID, &job.SheetID, &status, &job.Progress, &current,
		&job.ErrorCode, &job.ErrorMessage, &job.Attempts, &createdAt, &started, &finished,
	); err != nil {
		return ir.Job{}, err
	}

	job.Status = ir.JobStatus(status)
	if current.Valid {
		v := int(current.Int64)
		job.CurrentStep = &v
	}
	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return ir.Job{}, err
	}
	if job.StartedAt, err = parseOptTime(started); err != nil {
		return ir.Job{}, err
	}
	if job.FinishedAt, err = parseOptTime(finished); err != nil {
		return ir.Job{}, err
	}
	return job, nil
}
