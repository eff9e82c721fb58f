package sheet

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/oplog"
)

type cellData struct {
	raw       string
	highlight string
}

func (c cellData) empty() bool { return c.raw == "" && c.highlight == "" }

// Memory is an in-memory sheet. Structural changes shift cells and are
// recorded in the shared operation log.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	id    string
	rows  int
	cols  int
	cells map[ir.Coordinate]cellData
	log   *oplog.Log
}

var _ Target = (*Memory)(nil)

// NewMemory creates an empty rows x cols sheet. A nil log gets a private one.
func NewMemory(id string, rows, cols int, log *oplog.Log) *Memory {
	if log == nil {
		log = oplog.New()
	}
	return &Memory{
		id:    id,
		rows:  max(rows, 0),
		cols:  max(cols, 0),
		cells: make(map[ir.Coordinate]cellData),
		log:   log,
	}
}

// FromRows creates a sheet holding the given raw inputs, one slice per row.
// Empty strings leave cells empty.
func FromRows(id string, rows [][]string, log *oplog.Log) *Memory {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	m := NewMemory(id, len(rows), cols, log)
	for r, row := range rows {
		for c, raw := range row {
			if raw != "" {
				m.cells[ir.Coordinate{Row: r, Col: c}] = cellData{raw: raw}
			}
		}
	}
	return m
}

// ID implements Target.
func (m *Memory) ID() string { return m.id }

// Ping implements Target. A memory sheet is always reachable.
func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

// Dimensions implements Target.
func (m *Memory) Dimensions(context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows, m.cols, nil
}

// Log returns the operation log the sheet records into.
func (m *Memory) Log() *oplog.Log { return m.log }

// Cell returns one cell and whether it holds anything.
func (m *Memory) Cell(row, col int) (ir.Cell, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.cells[ir.Coordinate{Row: row, Col: col}]
	if !ok {
		return ir.Cell{Row: row, Col: col, ComputedType: ir.ComputedEmpty}, false
	}
	return toCell(ir.Coordinate{Row: row, Col: col}, d), true
}

// Snapshot returns every non-empty cell in row-major order.
func (m *Memory) Snapshot() []ir.Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(func(ir.Coordinate) bool { return true })
}

// ReadRange implements Cells.
func (m *Memory) ReadRange(ctx context.Context, rowStart, rowEnd, colStart, colEnd int) ([]ir.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := ir.Range{StartRow: rowStart, EndRow: rowEnd, StartCol: colStart, EndCol: colEnd}
	if !r.Valid() {
		return nil, fmt.Errorf("read range: invalid range %+v", r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(r.Contains), nil
}

func (m *Memory) collect(keep func(ir.Coordinate) bool) []ir.Cell {
	var out []ir.Cell
	for c, d := range m.cells {
		if keep(c) {
			out = append(out, toCell(c, d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// BatchUpdateCells implements Cells. Writing past the current extent grows
// the sheet.
func (m *Memory) BatchUpdateCells(ctx context.Context, ops []ir.CellOp) (ir.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return ir.BatchResult{}, err
	}
	for _, op := range ops {
		if op.Row < 0 || op.Col < 0 {
			return ir.BatchResult{}, fmt.Errorf("batch update: negative coordinate (%d, %d)", op.Row, op.Col)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var res ir.BatchResult
	for _, op := range ops {
		if op.Row >= m.rows {
			res.RowsExpanded += op.Row + 1 - m.rows
			m.rows = op.Row + 1
		}
		if op.Col >= m.cols {
			res.ColumnsExpanded += op.Col + 1 - m.cols
			m.cols = op.Col + 1
		}

		key := ir.Coordinate{Row: op.Row, Col: op.Col}
		d := m.cells[key]
		if op.Clear {
			if !d.empty() {
				res.Cleared++
			}
			d = cellData{}
		}
		if op.RawInput != nil {
			d.raw = *op.RawInput
		}
		if op.Highlight != nil {
			d.highlight = *op.Highlight
		}
		if op.RawInput != nil || op.Highlight != nil {
			res.Updated++
		}
		if d.empty() {
			delete(m.cells, key)
		} else {
			m.cells[key] = d
		}
	}
	return res, nil
}

// InsertRows implements Structure.
func (m *Memory) InsertRows(ctx context.Context, position, count int) (ir.InsertResult, error) {
	return m.insert(ctx, ir.OpInsertRow, position, count)
}

// InsertColumns implements Structure.
func (m *Memory) InsertColumns(ctx context.Context, position, count int) (ir.InsertResult, error) {
	return m.insert(ctx, ir.OpInsertColumn, position, count)
}

// DeleteRows implements Structure.
func (m *Memory) DeleteRows(ctx context.Context, position, count int) (ir.DeleteResult, error) {
	return m.delete(ctx, ir.OpDeleteRow, position, count)
}

// DeleteColumns implements Structure. Cells in [position, position+count)
// are dropped and cells to the right move left by count.
func (m *Memory) DeleteColumns(ctx context.Context, position, count int) (ir.DeleteResult, error) {
	return m.delete(ctx, ir.OpDeleteColumn, position, count)
}

func (m *Memory) insert(ctx context.Context, kind ir.OperationKind, position, count int) (ir.InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return ir.InsertResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := m.extent(kind.Axis())
	if position < 0 || count < 1 || position > limit {
		return ir.InsertResult{}, &RangeError{Op: string(kind), Position: position, Count: count, Limit: limit}
	}
	op, err := m.log.Append(ctx, m.id, kind, position, count)
	if err != nil {
		return ir.InsertResult{}, err
	}
	m.shiftInsert(kind.Axis(), position, count)
	return ir.InsertResult{CreatedCount: count, NewTotal: m.extent(kind.Axis()), OperationID: op.OperationID}, nil
}

func (m *Memory) delete(ctx context.Context, kind ir.OperationKind, position, count int) (ir.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return ir.DeleteResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := m.extent(kind.Axis())
	if position < 0 || count < 1 || position+count > limit {
		return ir.DeleteResult{}, &RangeError{Op: string(kind), Position: position, Count: count, Limit: limit}
	}
	op, err := m.log.Append(ctx, m.id, kind, position, count)
	if err != nil {
		return ir.DeleteResult{}, err
	}
	m.shiftDelete(kind.Axis(), position, count)
	return ir.DeleteResult{DeletedCount: count, NewTotal: m.extent(kind.Axis()), OperationID: op.OperationID}, nil
}

// Revert implements Structure. Reverting an insert removes the inserted
// rows or columns; reverting a delete restores blank rows or columns, never
// their former content. Reverting twice is a no-op.
func (m *Memory) Revert(ctx context.Context, operationID string) (ir.RevertResult, error) {
	if err := ctx.Err(); err != nil {
		return ir.RevertResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	op, err := m.log.PrepareRevert(m.id, operationID)
	if err != nil {
		return ir.RevertResult{}, err
	}
	if op.IsReverted {
		return ir.RevertResult{OperationID: operationID, IsReverted: true}, nil
	}

	axis := op.Kind.Axis()
	if op.Kind.IsInsert() {
		if op.End() > m.extent(axis) {
			return ir.RevertResult{}, &RangeError{Op: "revert " + string(op.Kind), Position: op.Position, Count: op.Count, Limit: m.extent(axis)}
		}
		if _, err := m.log.MarkReverted(ctx, operationID); err != nil {
			return ir.RevertResult{}, err
		}
		m.shiftDelete(axis, op.Position, op.Count)
	} else {
		if _, err := m.log.MarkReverted(ctx, operationID); err != nil {
			return ir.RevertResult{}, err
		}
		m.shiftInsert(axis, op.Position, op.Count)
	}
	return ir.RevertResult{OperationID: operationID, IsReverted: true}, nil
}

func (m *Memory) extent(axis ir.Axis) int {
	if axis == ir.AxisRow {
		return m.rows
	}
	return m.cols
}

// shiftInsert opens count blank lines at position.
func (m *Memory) shiftInsert(axis ir.Axis, position, count int) {
	next := make(map[ir.Coordinate]cellData, len(m.cells))
	for c, d := range m.cells {
		if axis == ir.AxisRow && c.Row >= position {
			c.Row += count
		}
		if axis == ir.AxisColumn && c.Col >= position {
			c.Col += count
		}
		next[c] = d
	}
	m.cells = next
	if axis == ir.AxisRow {
		m.rows += count
	} else {
		m.cols += count
	}
}

// shiftDelete drops lines [position, position+count) and closes the gap.
func (m *Memory) shiftDelete(axis ir.Axis, position, count int) {
	end := position + count
	next := make(map[ir.Coordinate]cellData, len(m.cells))
	for c, d := range m.cells {
		idx := c.Col
		if axis == ir.AxisRow {
			idx = c.Row
		}
		switch {
		case idx >= end:
			if axis == ir.AxisRow {
				c.Row -= count
			} else {
				c.Col -= count
			}
		case idx >= position:
			continue
		}
		next[c] = d
	}
	m.cells = next
	if axis == ir.AxisRow {
		m.rows -= count
	} else {
		m.cols -= count
	}
}

// toCell derives the computed view of a raw input. Formulas are opaque and
// are not evaluated.
func toCell(c ir.Coordinate, d cellData) ir.Cell {
	cell := ir.Cell{Row: c.Row, Col: c.Col, RawInput: d.raw, Highlight: d.highlight}
	raw := strings.TrimSpace(d.raw)
	switch {
	case raw == "":
		cell.ComputedType = ir.ComputedEmpty
	case strings.HasPrefix(raw, "="):
		cell.ComputedType = ir.ComputedFormula
	default:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			cell.ComputedType = ir.ComputedNumber
			cell.ComputedNumber = &n
		} else {
			cell.ComputedType = ir.ComputedString
			cell.ComputedString = d.raw
		}
	}
	return cell
}
