package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sheetflow/internal/engine"
	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/sheet"
)

// workbookFlags locate the workbook a job reads and writes.
type workbookFlags struct {
	XLSX string // workbook to load
	Out  string // workbook to write, defaults to XLSX
}

func (w *workbookFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.XLSX, "xlsx", "", "xlsx workbook holding the sheet")
	cmd.Flags().StringVar(&w.Out, "out", "", "write the result here instead of back to --xlsx")
	_ = cmd.MarkFlagRequired("xlsx")
}

func (w *workbookFlags) output() string {
	if w.Out != "" {
		return w.Out
	}
	return w.XLSX
}

// runJob starts the executor's workers, waits for jobID to reach a terminal
// state and stops the executor. A canceled ctx interrupts the job, which is
// then reported in its failed state.
func runJob(ctx context.Context, exec *engine.Executor, jobID string, interval time.Duration) (ir.Job, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exec.Run(gctx)
	})

	_, waitErr := exec.Wait(ctx, jobID, interval)
	exec.Stop()
	if err := g.Wait(); err != nil && waitErr == nil {
		waitErr = err
	}

	job, err := exec.Poll(jobID)
	if err != nil {
		return ir.Job{}, err
	}
	if waitErr != nil && !job.Status.Terminal() {
		return job, waitErr
	}
	return job, nil
}

// finishJob writes the sheet back to disk and reports the job. The workbook
// is saved whatever the outcome so a retry resumes against the partially
// applied sheet.
func finishJob(f *OutputFormatter, mem *sheet.Memory, job ir.Job, out string) error {
	if err := sheet.SaveXLSX(mem, out); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("save workbook %s: %v", out, err), nil)
	}
	f.VerboseLog("Wrote sheet %s to %s", mem.ID(), out)

	if job.Status == ir.JobSucceeded {
		if f.JSON() {
			return f.Success(job)
		}
		printJob(f, job)
		fmt.Fprintf(f.Writer, "Wrote %s\n", out)
		return nil
	}

	message := fmt.Sprintf("job %s %s", job.ID, job.Status)
	if job.ErrorCode != "" {
		message = fmt.Sprintf("%s: %s", message, job.ErrorCode)
	}
	if f.JSON() {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   job,
			Error:  &CLIError{Code: ErrCodeJobFailed, Message: message, Details: job.ErrorMessage},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}
	printJob(f, job)
	fmt.Fprintf(f.Writer, "Wrote %s\n", out)
	return NewExitError(ExitFailure, message)
}

// failRejected reports a job the executor refused to queue.
func failRejected(f *OutputFormatter, err error) error {
	details := map[string]string{}
	if code := engine.ErrorCode(err); code != "" {
		details["runtime_code"] = string(code)
	}
	return f.Fail(ExitFailure, ErrCodeJobRejected, err.Error(), details)
}

func printJob(f *OutputFormatter, job ir.Job) {
	w := f.Writer
	fmt.Fprintf(w, "Job %s  %s  progress %.0f%%  attempts %d\n", job.ID, job.Status, job.Progress*100, job.Attempts)
	fmt.Fprintf(w, "  pattern: %s\n", job.PatternID)
	fmt.Fprintf(w, "  sheet:   %s\n", job.SheetID)
	if job.CurrentStep != nil {
		fmt.Fprintf(w, "  step:    %d\n", *job.CurrentStep)
	}
	if job.ErrorCode != "" {
		fmt.Fprintf(w, "  error:   %s: %s\n", job.ErrorCode, job.ErrorMessage)
	}
	for _, st := range job.Steps {
		fmt.Fprintf(w, "  [%d] %s %s", st.Position, st.Kind, st.Status)
		if st.OperationID != "" {
			fmt.Fprintf(w, " op=%s", st.OperationID)
		}
		fmt.Fprintln(w)
	}
}
