package ir

import "time"

// StepKind is the discriminant of a timeline item.
type StepKind string

const (
	KindApplyFormula   StepKind = "APPLY_FORMULA"
	KindInsertRow      StepKind = "INSERT_ROW"
	KindInsertColumn   StepKind = "INSERT_COLUMN"
	KindDeleteRow      StepKind = "DELETE_ROW"
	KindDeleteColumn   StepKind = "DELETE_COLUMN"
	KindFillSeries     StepKind = "FILL_SERIES"
	KindSetColumnName  StepKind = "SET_COLUMN_NAME"
	KindApplyHighlight StepKind = "APPLY_HIGHLIGHT"

	// KindGroup marks a group container. It is never the kind of a Step.
	KindGroup StepKind = "GROUP"
)

// StepKinds lists every executable step kind in declaration order.
var StepKinds = []StepKind{
	KindApplyFormula,
	KindInsertRow,
	KindInsertColumn,
	KindDeleteRow,
	KindDeleteColumn,
	KindFillSeries,
	KindSetColumnName,
	KindApplyHighlight,
}

// IsStep reports whether k names an executable step kind.
func (k StepKind) IsStep() bool {
	for _, known := range StepKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsStructural reports whether steps of this kind insert or delete rows or columns.
func (k StepKind) IsStructural() bool {
	switch k {
	case KindInsertRow, KindInsertColumn, KindDeleteRow, KindDeleteColumn:
		return true
	}
	return false
}

// Coordinate is a zero-based cell position.
type Coordinate struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// Sheet limits, matching the xlsx format. MaxRangeCells caps how many cells a
// single FILL_SERIES or APPLY_HIGHLIGHT step may touch.
const (
	MaxRows       = 1 << 20
	MaxCols       = 1 << 14
	MaxRangeCells = 1 << 20
)

// InBounds reports whether c lies inside the sheet limits.
func (c Coordinate) InBounds() bool {
	return c.Row >= 0 && c.Row < MaxRows && c.Col >= 0 && c.Col < MaxCols
}

// Range is an inclusive, zero-based rectangle of cells.
type Range struct {
	StartRow int `json:"start_row" yaml:"start_row"`
	EndRow   int `json:"end_row" yaml:"end_row"`
	StartCol int `json:"start_col" yaml:"start_col"`
	EndCol   int `json:"end_col" yaml:"end_col"`
}

// Valid reports whether the range has non-negative bounds in order.
func (r Range) Valid() bool {
	return r.StartRow >= 0 && r.StartCol >= 0 && r.StartRow <= r.EndRow && r.StartCol <= r.EndCol
}

// Contains reports whether c lies inside the range.
func (r Range) Contains(c Coordinate) bool {
	return c.Row >= r.StartRow && c.Row <= r.EndRow && c.Col >= r.StartCol && c.Col <= r.EndCol
}

// Bounded reports whether the range is valid, lies inside the sheet limits
// and covers at most MaxRangeCells cells.
func (r Range) Bounded() bool {
	if !r.Valid() || r.EndRow >= MaxRows || r.EndCol >= MaxCols {
		return false
	}
	return int64(r.EndRow-r.StartRow+1)*int64(r.EndCol-r.StartCol+1) <= MaxRangeCells
}

// Coordinates returns every cell of the range in row-major order, or nil
// when the range is not Bounded.
func (r Range) Coordinates() []Coordinate {
	if !r.Bounded() {
		return nil
	}
	out := make([]Coordinate, 0, (r.EndRow-r.StartRow+1)*(r.EndCol-r.StartCol+1))
	for row := r.StartRow; row <= r.EndRow; row++ {
		for col := r.StartCol; col <= r.EndCol; col++ {
			out = append(out, Coordinate{Row: row, Col: col})
		}
	}
	return out
}

// LocatorStrategy names how a ColumnLocator finds its column.
type LocatorStrategy string

// StrategyByHeaderText locates a column by the text of its header cell.
const StrategyByHeaderText LocatorStrategy = "BY_HEADER_TEXT"

// ColumnLocator targets a column by header text with a positional fallback,
// so a step keeps pointing at the same logical column after earlier
// insertions or deletions shift it.
type ColumnLocator struct {
	Strategy      LocatorStrategy `json:"strategy"`
	FromHeader    *string         `json:"from_header"`
	FallbackIndex *int            `json:"fallback_index"`
}

// HeaderLocator builds a BY_HEADER_TEXT locator with a fallback index.
func HeaderLocator(fromHeader string, fallback int) *ColumnLocator {
	return &ColumnLocator{
		Strategy:      StrategyByHeaderText,
		FromHeader:    &fromHeader,
		FallbackIndex: &fallback,
	}
}

// Params is the sealed set of per-kind step parameters.
type Params interface {
	Kind() StepKind
	params()
}

// ApplyFormula writes a formula string into one cell.
type ApplyFormula struct {
	Target  Coordinate
	A1      string
	Formula string
}

// RowPosition places an inserted row relative to its index.
type RowPosition string

const (
	Above RowPosition = "above"
	Below RowPosition = "below"
)

// InsertRow inserts one row above or below Index.
type InsertRow struct {
	Index    int
	Position RowPosition
}

// ColumnPosition places an inserted column relative to its index.
type ColumnPosition string

const (
	Left  ColumnPosition = "left"
	Right ColumnPosition = "right"
)

// InsertColumn inserts one column left or right of Index.
type InsertColumn struct {
	Index    int
	Position ColumnPosition
}

// DeleteRow removes the row at Index.
type DeleteRow struct {
	Index int
}

// DeleteColumn removes the column at Index.
type DeleteColumn struct {
	Index int
}

// FillSeries extends the value at Source across Range.
type FillSeries struct {
	Source Coordinate
	Range  Range
}

// ColumnRef is a direct positional column reference.
type ColumnRef struct {
	Index int
}

// SetColumnName renames a header cell. ColumnLocator, when present, takes
// precedence over ColumnRef at execution time.
type SetColumnName struct {
	HeaderRowIndex int
	FromHeader     string
	ToHeader       string
	ColumnRef      ColumnRef
	ColumnLocator  *ColumnLocator
}

// HighlightScope selects which cells a highlight covers.
type HighlightScope string

const (
	ScopeCell   HighlightScope = "CELL"
	ScopeRow    HighlightScope = "ROW"
	ScopeColumn HighlightScope = "COLUMN"
	ScopeRange  HighlightScope = "RANGE"
)

// HighlightTarget addresses the highlighted cells. ByHeader resolves a column
// through the header row; Row, Col and Range are positional fallbacks.
type HighlightTarget struct {
	ByHeader *ColumnLocator
	Row      *int
	Col      *int
	Range    *Range
}

// ApplyHighlight marks cells with a highlight color.
type ApplyHighlight struct {
	Color          string
	Scope          HighlightScope
	HeaderRowIndex int
	Target         HighlightTarget
}

func (ApplyFormula) Kind() StepKind   { return KindApplyFormula }
func (InsertRow) Kind() StepKind      { return KindInsertRow }
func (InsertColumn) Kind() StepKind   { return KindInsertColumn }
func (DeleteRow) Kind() StepKind      { return KindDeleteRow }
func (DeleteColumn) Kind() StepKind   { return KindDeleteColumn }
func (FillSeries) Kind() StepKind     { return KindFillSeries }
func (SetColumnName) Kind() StepKind  { return KindSetColumnName }
func (ApplyHighlight) Kind() StepKind { return KindApplyHighlight }

func (ApplyFormula) params()   {}
func (InsertRow) params()      {}
func (InsertColumn) params()   {}
func (DeleteRow) params()      {}
func (DeleteColumn) params()   {}
func (FillSeries) params()     {}
func (SetColumnName) params()  {}
func (ApplyHighlight) params() {}

// Item is a timeline element: a Step or a Group.
type Item interface {
	ItemID() string
	timelineItem()
}

// Step is one recorded edit.
type Step struct {
	ID        string
	Disabled  bool
	CreatedAt time.Time
	Params    Params
}

// Kind returns the step's discriminant, or "" when Params is unset.
func (s Step) Kind() StepKind {
	if s.Params == nil {
		return ""
	}
	return s.Params.Kind()
}

// ItemID implements Item.
func (s Step) ItemID() string { return s.ID }

func (Step) timelineItem() {}

// Group bundles two or more steps recorded as one unit. Groups never nest.
type Group struct {
	ID        string
	Name      string
	Items     []Step
	Collapsed bool
	CreatedAt time.Time
}

// ItemID implements Item.
func (g Group) ItemID() string { return g.ID }

func (Group) timelineItem() {}

// Clone returns a copy of g that shares no slice storage with it.
func (g Group) Clone() Group {
	g.Items = append([]Step(nil), g.Items...)
	return g
}
