package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewJobsCommand creates the jobs command group.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect apply jobs",
	}
	cmd.AddCommand(newJobsListCommand(rootOpts))
	cmd.AddCommand(newJobsShowCommand(rootOpts))
	return cmd
}

func newJobsListCommand(rootOpts *RootOptions) *cobra.Command {
	var sheetID string
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List jobs in creation order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			sess, err := openSession(rootOpts, cmd, f)
			if err != nil {
				return err
			}
			defer sess.Close()

			jobs, err := sess.store.ListJobs(cmd.Context(), sheetID)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			if f.JSON() {
				return f.Success(jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(f.Writer, "No jobs found")
				return nil
			}
			for _, j := range jobs {
				fmt.Fprintf(f.Writer, "%s  %s  %s  %s  %.0f%%", j.ID, j.SheetID, j.PatternID, j.Status, j.Progress*100)
				if j.ErrorCode != "" {
					fmt.Fprintf(f.Writer, "  %s", j.ErrorCode)
				}
				fmt.Fprintln(f.Writer)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetID, "sheet", "", "only jobs on this sheet")
	return cmd
}

func newJobsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <job-id>",
		Short:         "Show a job with its step states",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			sess, err := openSession(rootOpts, cmd, f)
			if err != nil {
				return err
			}
			defer sess.Close()

			job, err := sess.store.GetJob(cmd.Context(), args[0])
			if err != nil {
				return failLookup(f, "job", args[0], err)
			}
			if f.JSON() {
				return f.Success(job)
			}
			printJob(f, job)
			return nil
		},
	}
}
