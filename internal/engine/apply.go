package engine

import (
	"context"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/locator"
	"github.com/roach88/sheetflow/internal/sheet"
)

// applyStep executes one step against the target sheet. It returns the
// structural operation id for inserts and deletes, and "" otherwise.
//
// Locator-based steps read the header row at execution time, so they follow
// columns moved by earlier steps of the same job.
func applyStep(ctx context.Context, t sheet.Target, pos int, p ir.Params) (string, error) {
	fail := func(err error, format string, args ...any) error {
		return stepError(ErrCodeExecutionFailed, pos, err, format, args...)
	}

	switch v := p.(type) {
	case ir.ApplyFormula:
		formula := v.Formula
		if _, err := t.BatchUpdateCells(ctx, []ir.CellOp{{Row: v.Target.Row, Col: v.Target.Col, RawInput: &formula}}); err != nil {
			return "", fail(err, "apply formula at (%d, %d)", v.Target.Row, v.Target.Col)
		}
		return "", nil

	case ir.InsertRow:
		at := v.Index
		if v.Position == ir.Below {
			at++
		}
		res, err := t.InsertRows(ctx, at, 1)
		if err != nil {
			return "", fail(err, "insert row at %d", at)
		}
		return res.OperationID, nil

	case ir.InsertColumn:
		at := v.Index
		if v.Position == ir.Right {
			at++
		}
		res, err := t.InsertColumns(ctx, at, 1)
		if err != nil {
			return "", fail(err, "insert column at %d", at)
		}
		return res.OperationID, nil

	case ir.DeleteRow:
		res, err := t.DeleteRows(ctx, v.Index, 1)
		if err != nil {
			return "", fail(err, "delete row %d", v.Index)
		}
		return res.OperationID, nil

	case ir.DeleteColumn:
		res, err := t.DeleteColumns(ctx, v.Index, 1)
		if err != nil {
			return "", fail(err, "delete column %d", v.Index)
		}
		return res.OperationID, nil

	case ir.FillSeries:
		return "", fillSeries(ctx, t, pos, v)

	case ir.SetColumnName:
		header, err := readRow(ctx, t, v.HeaderRowIndex)
		if err != nil {
			return "", fail(err, "read header row %d", v.HeaderRowIndex)
		}
		col, err := locator.ResolveSetColumnName(header, v)
		if err != nil {
			return "", stepError(ErrCodeLocatorResolution, pos, err, "resolve column to rename")
		}
		name := v.ToHeader
		if _, err := t.BatchUpdateCells(ctx, []ir.CellOp{{Row: v.HeaderRowIndex, Col: col, RawInput: &name}}); err != nil {
			return "", fail(err, "rename column %d", col)
		}
		return "", nil

	case ir.ApplyHighlight:
		header, err := readRow(ctx, t, v.HeaderRowIndex)
		if err != nil {
			return "", fail(err, "read header row %d", v.HeaderRowIndex)
		}
		rows, cols, err := t.Dimensions(ctx)
		if err != nil {
			return "", fail(err, "read sheet dimensions")
		}
		rng, err := locator.ResolveHighlight(header, v, locator.Bounds{Rows: rows, Cols: cols})
		if err != nil {
			return "", stepError(ErrCodeLocatorResolution, pos, err, "resolve highlight target")
		}
		if !rng.Bounded() {
			return "", stepError(ErrCodeInvalidStep, pos, nil, "highlight range %+v exceeds the sheet limits", rng)
		}
		color := v.Color
		coords := rng.Coordinates()
		ops := make([]ir.CellOp, len(coords))
		for i, c := range coords {
			ops[i] = ir.CellOp{Row: c.Row, Col: c.Col, Highlight: &color}
		}
		if _, err := t.BatchUpdateCells(ctx, ops); err != nil {
			return "", fail(err, "highlight %d cells", len(ops))
		}
		return "", nil

	default:
		return "", stepError(ErrCodeInvalidStep, pos, nil, "cannot dispatch parameters of type %T", p)
	}
}

func fillSeries(ctx context.Context, t sheet.Target, pos int, v ir.FillSeries) error {
	if !v.Range.Bounded() || !v.Source.InBounds() {
		return stepError(ErrCodeInvalidStep, pos, nil, "fill range %+v exceeds the sheet limits", v.Range)
	}
	cells, err := t.ReadRange(ctx, v.Source.Row, v.Source.Row, v.Source.Col, v.Source.Col)
	if err != nil {
		return stepError(ErrCodeExecutionFailed, pos, err, "read fill source")
	}
	src := ir.Cell{Row: v.Source.Row, Col: v.Source.Col, ComputedType: ir.ComputedEmpty}
	if len(cells) > 0 {
		src = cells[0]
	}

	var ops []ir.CellOp
	for _, c := range v.Range.Coordinates() {
		if c == v.Source {
			continue
		}
		raw := seriesValue(src, c.Row-v.Source.Row, c.Col-v.Source.Col)
		ops = append(ops, ir.CellOp{Row: c.Row, Col: c.Col, RawInput: &raw})
	}
	if len(ops) == 0 {
		return nil
	}
	if _, err := t.BatchUpdateCells(ctx, ops); err != nil {
		return stepError(ErrCodeExecutionFailed, pos, err, "fill %d cells", len(ops))
	}
	return nil
}

// readRow returns the non-empty cells of one row across the sheet's width.
func readRow(ctx context.Context, t sheet.Target, row int) ([]ir.Cell, error) {
	_, cols, err := t.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if cols == 0 {
		return nil, nil
	}
	return t.ReadRange(ctx, row, row, 0, cols-1)
}
