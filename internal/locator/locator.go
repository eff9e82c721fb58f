// Package locator resolves header-relative targets against the live sheet at
// execution time, so a step recorded against one column layout keeps hitting
// the same logical column after earlier inserts or deletes shift it.
package locator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/sheetflow/internal/ir"
)

// ErrCodeLocatorResolution is the step error code for an unresolvable target.
const ErrCodeLocatorResolution = "LOCATOR_RESOLUTION_FAILED"

// ResolutionError reports a locator whose header was not found and which has
// no fallback index.
type ResolutionError struct {
	FromHeader *string
	Reason     string
}

func (e *ResolutionError) Error() string {
	if e.FromHeader != nil {
		return fmt.Sprintf("%s: header %q: %s", ErrCodeLocatorResolution, *e.FromHeader, e.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrCodeLocatorResolution, e.Reason)
}

// Code returns the step error code.
func (e *ResolutionError) Code() string { return ErrCodeLocatorResolution }

// IsResolutionError reports whether err is a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// ResolveColumn returns the column of the first header cell, scanning left
// to right, whose display text equals FromHeader exactly. When no cell
// matches, or FromHeader is nil, it returns FallbackIndex.
func ResolveColumn(headerRow []ir.Cell, loc ir.ColumnLocator) (int, error) {
	if loc.Strategy != "" && loc.Strategy != ir.StrategyByHeaderText {
		return 0, &ResolutionError{FromHeader: loc.FromHeader, Reason: fmt.Sprintf("unknown strategy %q", loc.Strategy)}
	}
	if loc.FromHeader != nil {
		if col, ok := findHeader(headerRow, *loc.FromHeader); ok {
			return col, nil
		}
	}
	if loc.FallbackIndex != nil {
		return *loc.FallbackIndex, nil
	}
	reason := "no locator header and no fallback index"
	if loc.FromHeader != nil {
		reason = "not found and no fallback index"
	}
	return 0, &ResolutionError{FromHeader: loc.FromHeader, Reason: reason}
}

func findHeader(headerRow []ir.Cell, text string) (int, bool) {
	cells := append([]ir.Cell(nil), headerRow...)
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].Col < cells[j].Col })
	for _, c := range cells {
		if c.DisplayText() == text {
			return c.Col, true
		}
	}
	return 0, false
}

// ResolveSetColumnName returns the column a SET_COLUMN_NAME step renames.
// The locator wins when present; otherwise column_ref.index is used.
func ResolveSetColumnName(headerRow []ir.Cell, p ir.SetColumnName) (int, error) {
	if p.ColumnLocator == nil {
		return p.ColumnRef.Index, nil
	}
	return ResolveColumn(headerRow, *p.ColumnLocator)
}

// Bounds is the used extent of a sheet: Rows rows and Cols columns.
type Bounds struct {
	Rows int
	Cols int
}

// ResolveHighlight returns the rectangle an APPLY_HIGHLIGHT step covers.
// ROW and COLUMN scopes span the sheet's used extent.
func ResolveHighlight(headerRow []ir.Cell, p ir.ApplyHighlight, b Bounds) (ir.Range, error) {
	lastRow := max(b.Rows-1, 0)
	lastCol := max(b.Cols-1, 0)

	switch p.Scope {
	case ir.ScopeCell:
		if p.Target.Row == nil {
			return ir.Range{}, &ResolutionError{Reason: "CELL highlight without a row"}
		}
		col, err := highlightColumn(headerRow, p.Target)
		if err != nil {
			return ir.Range{}, err
		}
		r := *p.Target.Row
		return ir.Range{StartRow: r, EndRow: r, StartCol: col, EndCol: col}, nil

	case ir.ScopeRow:
		if p.Target.Row == nil {
			return ir.Range{}, &ResolutionError{Reason: "ROW highlight without a row"}
		}
		r := *p.Target.Row
		return ir.Range{StartRow: r, EndRow: r, StartCol: 0, EndCol: lastCol}, nil

	case ir.ScopeColumn:
		col, err := highlightColumn(headerRow, p.Target)
		if err != nil {
			return ir.Range{}, err
		}
		return ir.Range{StartRow: 0, EndRow: lastRow, StartCol: col, EndCol: col}, nil

	case ir.ScopeRange:
		if p.Target.Range == nil || !p.Target.Range.Valid() {
			return ir.Range{}, &ResolutionError{Reason: "RANGE highlight without a valid range"}
		}
		return *p.Target.Range, nil

	default:
		return ir.Range{}, &ResolutionError{Reason: fmt.Sprintf("unknown highlight scope %q", p.Scope)}
	}
}

// highlightColumn prefers the header locator and falls back to Target.Col.
func highlightColumn(headerRow []ir.Cell, t ir.HighlightTarget) (int, error) {
	if t.ByHeader != nil {
		loc := *t.ByHeader
		if loc.FallbackIndex == nil && t.Col != nil {
			loc.FallbackIndex = t.Col
		}
		return ResolveColumn(headerRow, loc)
	}
	if t.Col != nil {
		return *t.Col, nil
	}
	return 0, &ResolutionError{Reason: "no column locator or column index"}
}
