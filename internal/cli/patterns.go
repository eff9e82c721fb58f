package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetflow/internal/compiler"
	"github.com/roach88/sheetflow/internal/ids"
	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/store"
)

// NewPatternsCommand creates the patterns command group.
func NewPatternsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List, inspect, import and archive stored patterns",
	}
	cmd.AddCommand(newPatternsListCommand(rootOpts))
	cmd.AddCommand(newPatternsShowCommand(rootOpts))
	cmd.AddCommand(newPatternsImportCommand(rootOpts))
	cmd.AddCommand(newPatternsArchiveCommand(rootOpts))
	return cmd
}

func newPatternsListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		sheetID string
		all     bool
	)
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored patterns",
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

			patterns, err := sess.store.ListPatterns(cmd.Context(), sheetID, all)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			if f.JSON() {
				return f.Success(patterns)
			}
			if len(patterns) == 0 {
				fmt.Fprintln(f.Writer, "No patterns found")
				return nil
			}
			for _, p := range patterns {
				fmt.Fprintf(f.Writer, "%s  %s  %d step(s)  %s", p.ID, p.Name, p.StepCount, p.CreatedAt.Format(time.RFC3339))
				if p.IsArchived {
					fmt.Fprint(f.Writer, "  archived")
				}
				fmt.Fprintln(f.Writer)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetID, "sheet", "", "only patterns recorded on this sheet")
	cmd.Flags().BoolVar(&all, "all", false, "include archived patterns")
	return cmd
}

func newPatternsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <pattern-id>",
		Short:         "Show a pattern and its step records",
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

			p, err := sess.store.GetPattern(cmd.Context(), args[0])
			if err != nil {
				return failLookup(f, "pattern", args[0], err)
			}
			if f.JSON() {
				return f.Success(p)
			}
			printPattern(f, p)
			return nil
		},
	}
}

func newPatternsImportCommand(rootOpts *RootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "import <payload.json>",
		Short: "Validate and store a JSON pattern payload",
		Long: `Validate a pattern payload against the pattern schema and store it.

The pattern gets a fresh UUIDv7 id unless --id is given. Importing the same
steps under the same id again is a no-op.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("read payload: %v", err), nil)
			}
			payload, err := compiler.ParsePayload(raw)
			if err != nil {
				code, message := parseCompileError(err)
				return f.Fail(ExitFailure, code, message, nil)
			}
			if id == "" {
				id = ids.UUIDv7Generator{}.Generate()
			}
			p, err := compiler.NewPattern(id, payload.Name, payload.Description, payload.Origin, payload.Steps, time.Now())
			if err != nil {
				code, message := parseCompileError(err)
				return f.Fail(ExitFailure, code, message, nil)
			}

			sess, err := openSession(rootOpts, cmd, f)
			if err != nil {
				return err
			}
			defer sess.Close()

			summary, err := sess.store.CreatePattern(cmd.Context(), p)
			if errors.Is(err, store.ErrPatternConflict) {
				return f.Fail(ExitFailure, ErrCodeConflict, err.Error(), nil)
			}
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			sess.logger.Info("pattern imported", "pattern_id", summary.ID, "steps", summary.StepCount)

			if f.JSON() {
				return f.Success(summary)
			}
			fmt.Fprintf(f.Writer, "✓ Imported %s (%s, %d step(s))\n", summary.ID, summary.Name, summary.StepCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "pattern id (default: generated)")
	return cmd
}

func newPatternsArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "archive <pattern-id>",
		Short:         "Hide a pattern from listings",
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

			if err := sess.store.ArchivePattern(cmd.Context(), args[0]); err != nil {
				return failLookup(f, "pattern", args[0], err)
			}
			if f.JSON() {
				return f.Success(map[string]string{"id": args[0], "status": "archived"})
			}
			fmt.Fprintf(f.Writer, "✓ Archived %s\n", args[0])
			return nil
		},
	}
}

// failLookup reports a failed store lookup, distinguishing missing records.
func failLookup(f *OutputFormatter, kind, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("%s not found: %s", kind, id), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
}

func printPattern(f *OutputFormatter, p ir.Pattern) {
	w := f.Writer
	fmt.Fprintf(w, "Pattern %s\n", p.ID)
	fmt.Fprintf(w, "  name:    %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(w, "  about:   %s\n", p.Description)
	}
	if p.Origin.SheetID != "" {
		fmt.Fprintf(w, "  origin:  %s\n", p.Origin.SheetID)
	}
	fmt.Fprintf(w, "  hash:    %s\n", p.ContentHash)
	fmt.Fprintf(w, "  created: %s\n", p.CreatedAt.Format(time.RFC3339))
	if p.IsArchived {
		fmt.Fprintln(w, "  archived")
	}
	fmt.Fprintln(w, "Steps:")
	for _, r := range p.Steps {
		fmt.Fprintf(w, "  %d. %s", r.Seq, r.Type)
		if r.Disabled {
			fmt.Fprint(w, " (disabled)")
		}
		fmt.Fprintln(w)
	}
}
