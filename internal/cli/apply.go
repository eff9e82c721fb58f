package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	workbookFlags
	Sheet string // worksheet name, defaults to the pattern's origin sheet
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <pattern-id>",
		Short: "Apply a stored pattern to a worksheet",
		Long: `Apply a stored pattern to one worksheet of an xlsx workbook.

The job runs to completion in this process and is persisted after every
step. The workbook is written back even when the job fails, so
"sheetflow retry <job-id>" can resume from the failing step.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "worksheet name (default: the pattern's origin sheet)")

	return cmd
}

func runApply(opts *ApplyOptions, patternID string, cmd *cobra.Command) error {
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

	pattern, err := sess.store.GetPattern(ctx, patternID)
	if err != nil {
		return failLookup(f, "pattern", patternID, err)
	}
	if pattern.IsArchived {
		sess.logger.Warn("applying archived pattern", "pattern_id", pattern.ID)
	}

	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = pattern.Origin.SheetID
	}
	if sheetName == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--sheet is required: the pattern has no origin sheet", nil)
	}

	mem, err := sess.openSheet(ctx, opts.XLSX, sheetName)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSheet, err.Error(), nil)
	}

	exec := sess.executor()
	job, err := exec.Submit(ctx, pattern, mem)
	if err != nil {
		return failRejected(f, err)
	}
	f.VerboseLog("Queued job %s: %d step(s) on %s", job.ID, len(job.Steps), sheetName)

	job, err = runJob(ctx, exec, job.ID, sess.cfg.Executor.PollInterval())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	return finishJob(f, mem, job, opts.output())
}
