// Package sheet defines the collaborators a pattern runs against and an
// in-memory implementation backed by the structural-operation log.
package sheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sheetflow/internal/ir"
)

// Cells reads and writes cell contents.
type Cells interface {
	// ReadRange returns the non-empty cells inside the inclusive,
	// zero-based rectangle, in row-major order.
	ReadRange(ctx context.Context, rowStart, rowEnd, colStart, colEnd int) ([]ir.Cell, error)
	BatchUpdateCells(ctx context.Context, ops []ir.CellOp) (ir.BatchResult, error)
}

// Structure inserts, deletes and reverts rows and columns. Every insert or
// delete is recorded as a revertible operation.
type Structure interface {
	InsertRows(ctx context.Context, position, count int) (ir.InsertResult, error)
	InsertColumns(ctx context.Context, position, count int) (ir.InsertResult, error)
	DeleteRows(ctx context.Context, position, count int) (ir.DeleteResult, error)
	DeleteColumns(ctx context.Context, position, count int) (ir.DeleteResult, error)
	Revert(ctx context.Context, operationID string) (ir.RevertResult, error)
}

// Target is one sheet a pattern can be applied to.
type Target interface {
	Cells
	Structure
	ID() string
	// Ping reports whether the sheet can be reached.
	Ping(ctx context.Context) error
	// Dimensions returns the sheet's row and column count.
	Dimensions(ctx context.Context) (rows, cols int, err error)
}

// ErrCodeOutOfRange is the code of a RangeError.
const ErrCodeOutOfRange = "OUT_OF_RANGE"

// RangeError reports a position outside the sheet.
type RangeError struct {
	Op       string
	Position int
	Count    int
	Limit    int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s position %d count %d outside [0, %d]", ErrCodeOutOfRange, e.Op, e.Position, e.Count, e.Limit)
}

// IsRangeError reports whether err is a RangeError.
func IsRangeError(err error) bool {
	var re *RangeError
	return errors.As(err, &re)
}
