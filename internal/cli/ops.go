package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/oplog"
	"github.com/roach88/sheetflow/internal/sheet"
)

// NewOpsCommand creates the ops command group for structural operations.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List and revert structural operations",
	}
	cmd.AddCommand(newOpsListCommand(rootOpts))
	cmd.AddCommand(newOpsRevertCommand(rootOpts))
	return cmd
}

func newOpsListCommand(rootOpts *RootOptions) *cobra.Command {
	var sheetID string
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List row and column inserts and deletes in log order",
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

			ops, err := sess.store.ListOperations(cmd.Context(), sheetID)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			if f.JSON() {
				return f.Success(ops)
			}
			if len(ops) == 0 {
				fmt.Fprintln(f.Writer, "No operations found")
				return nil
			}
			for _, op := range ops {
				fmt.Fprintf(f.Writer, "%d  %s  %s  %s at %d x%d", op.Seq, op.OperationID, op.SheetID, op.Kind, op.Position, op.Count)
				if op.IsReverted {
					fmt.Fprint(f.Writer, "  reverted")
				}
				fmt.Fprintln(f.Writer)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetID, "sheet", "", "only operations on this sheet")
	return cmd
}

func newOpsRevertCommand(rootOpts *RootOptions) *cobra.Command {
	var wb workbookFlags
	cmd := &cobra.Command{
		Use:   "revert <operation-id>",
		Short: "Undo one structural operation on a workbook",
		Long: `Undo one insert or delete on the sheet it was applied to.

Reverting an insert removes the inserted rows or columns. Reverting a delete
restores blank rows or columns. An operation overlapped by a later,
unreverted operation cannot be reverted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			ctx := cmd.Context()
			opID := args[0]

			if _, err := os.Stat(wb.XLSX); err != nil {
				return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("workbook not found: %s", wb.XLSX), nil)
			}
			sess, err := openSession(rootOpts, cmd, f)
			if err != nil {
				return err
			}
			defer sess.Close()

			all, err := sess.store.ListOperations(ctx, "")
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			op, ok := findOperation(all, opID)
			if !ok {
				return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("operation not found: %s", opID), nil)
			}

			mem, err := sess.openSheet(ctx, wb.XLSX, op.SheetID)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeSheet, err.Error(), nil)
			}
			res, err := mem.Revert(ctx, opID)
			if err != nil {
				details := map[string]string{}
				var oe *oplog.OpError
				if errors.As(err, &oe) {
					details["operation_code"] = oe.Code
				}
				return f.Fail(ExitFailure, ErrCodeRevert, err.Error(), details)
			}

			out := wb.output()
			if err := sheet.SaveXLSX(mem, out); err != nil {
				return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("save workbook %s: %v", out, err), nil)
			}
			sess.logger.Info("operation reverted", "operation_id", opID, "sheet_id", op.SheetID)

			if f.JSON() {
				return f.Success(res)
			}
			fmt.Fprintf(f.Writer, "✓ Reverted %s (%s at %d x%d on %s)\n", opID, op.Kind, op.Position, op.Count, op.SheetID)
			fmt.Fprintf(f.Writer, "Wrote %s\n", out)
			return nil
		},
	}
	wb.register(cmd)
	return cmd
}

func findOperation(ops []ir.StructuralOperation, id string) (ir.StructuralOperation, bool) {
	for _, op := range ops {
		if op.OperationID == id {
			return op, true
		}
	}
	return ir.StructuralOperation{}, false
}
