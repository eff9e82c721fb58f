package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RetryOptions holds flags for the retry command.
type RetryOptions struct {
	*RootOptions
	workbookFlags
}

// NewRetryCommand creates the retry command.
func NewRetryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RetryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Resume a failed job from its failing step",
		Long: `Resume a failed job against the workbook it was applied to.

Steps already applied are not run again. A job left queued or running by a
process that exited is treated as interrupted and can be retried too.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(opts, args[0], cmd)
		},
	}

	opts.register(cmd)

	return cmd
}

func runRetry(opts *RetryOptions, jobID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if _, err := os.Stat(opts.XLSX); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("workbook not found: %s", opts.XLSX), nil)
	}

	sess, err := openSession(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	stored, err := sess.store.GetJob(ctx, jobID)
	if err != nil {
		return failLookup(f, "job", jobID, err)
	}
	pattern, err := sess.store.GetPattern(ctx, stored.PatternID)
	if err != nil {
		return failLookup(f, "pattern", stored.PatternID, err)
	}

	mem, err := sess.openSheet(ctx, opts.XLSX, stored.SheetID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSheet, err.Error(), nil)
	}

	exec := sess.executor()
	if err := exec.Restore(stored, pattern, mem); err != nil {
		return failRejected(f, err)
	}
	job, err := exec.Retry(ctx, jobID)
	if err != nil {
		return failRejected(f, err)
	}
	f.VerboseLog("Requeued job %s (attempt %d)", job.ID, job.Attempts+1)

	job, err = runJob(ctx, exec, job.ID, sess.cfg.Executor.PollInterval())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	return finishJob(f, mem, job, opts.output())
}
