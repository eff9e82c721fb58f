package ir

import (
	"strconv"
	"time"
)

// Computed cell types.
const (
	ComputedEmpty   = "empty"
	ComputedString  = "string"
	ComputedNumber  = "number"
	ComputedFormula = "formula"
	ComputedError   = "error"
)

// Cell is one cell as served by a sheet collaborator.
type Cell struct {
	Row            int      `json:"row_position"`
	Col            int      `json:"column_position"`
	RawInput       string   `json:"raw_input"`
	ComputedType   string   `json:"computed_type"`
	ComputedString string   `json:"computed_string,omitempty"`
	ComputedNumber *float64 `json:"computed_number,omitempty"`
	ErrorCode      string   `json:"error_code,omitempty"`
	Highlight      string   `json:"highlight,omitempty"`
}

// Coordinate returns the cell's position.
func (c Cell) Coordinate() Coordinate {
	return Coordinate{Row: c.Row, Col: c.Col}
}

// DisplayText is the text a user sees in the cell.
func (c Cell) DisplayText() string {
	switch {
	case c.ComputedString != "":
		return c.ComputedString
	case c.ComputedNumber != nil:
		return strconv.FormatFloat(*c.ComputedNumber, 'f', -1, 64)
	default:
		return c.RawInput
	}
}

// CellOp is one entry of a batch update. A nil field leaves that attribute
// untouched; Clear empties the cell before the other fields apply.
type CellOp struct {
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	RawInput  *string `json:"raw_input,omitempty"`
	Highlight *string `json:"highlight,omitempty"`
	Clear     bool    `json:"clear,omitempty"`
}

// BatchResult summarizes a batch update.
type BatchResult struct {
	Updated         int `json:"updated"`
	Cleared         int `json:"cleared"`
	RowsExpanded    int `json:"rows_expanded"`
	ColumnsExpanded int `json:"columns_expanded"`
}

// Axis is the dimension a structural operation acts on.
type Axis string

const (
	AxisRow    Axis = "row"
	AxisColumn Axis = "column"
)

// OperationKind names a structural operation.
type OperationKind string

const (
	OpInsertRow    OperationKind = "insert_row"
	OpInsertColumn OperationKind = "insert_column"
	OpDeleteRow    OperationKind = "delete_row"
	OpDeleteColumn OperationKind = "delete_column"
)

// Axis returns the dimension the operation acts on.
func (k OperationKind) Axis() Axis {
	if k == OpInsertRow || k == OpDeleteRow {
		return AxisRow
	}
	return AxisColumn
}

// IsInsert reports whether the operation adds rows or columns.
func (k OperationKind) IsInsert() bool {
	return k == OpInsertRow || k == OpInsertColumn
}

// StructuralOperation is a recorded row/column insert or delete.
type StructuralOperation struct {
	OperationID string        `json:"operation_id"`
	SheetID     string        `json:"sheet_id"`
	Kind        OperationKind `json:"kind"`
	Position    int           `json:"position"`
	Count       int           `json:"count"`
	IsReverted  bool          `json:"is_reverted"`
	Seq         int64         `json:"seq"`
	CreatedAt   time.Time     `json:"created_at"`
}

// End returns the first index past the operation's block.
func (op StructuralOperation) End() int {
	return op.Position + op.Count
}

// InsertResult is returned by row/column insertion.
type InsertResult struct {
	CreatedCount int    `json:"created_count"`
	NewTotal     int    `json:"new_total"`
	OperationID  string `json:"operation_id"`
}

// DeleteResult is returned by row/column deletion.
type DeleteResult struct {
	DeletedCount int    `json:"deleted_count"`
	NewTotal     int    `json:"new_total"`
	OperationID  string `json:"operation_id"`
}

// RevertResult is returned by reverting a structural operation.
type RevertResult struct {
	OperationID string `json:"operation_id"`
	IsReverted  bool   `json:"is_reverted"`
}
