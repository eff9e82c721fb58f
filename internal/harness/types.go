package harness

import "github.com/roach88/sheetflow/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation matches.
	Pass bool `json:"pass"`

	// Job is the final state of the apply job.
	Job ir.Job `json:"job"`

	// Cells holds every non-empty cell of the final sheet in row-major order.
	Cells []ir.Cell `json:"cells"`

	// Operations is the structural operation log of the sheet.
	Operations []ir.StructuralOperation `json:"operations"`

	// Calls counts sheet method calls by method name.
	Calls map[string]int `json:"calls"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Cells:      []ir.Cell{},
		Operations: []ir.StructuralOperation{},
		Calls:      make(map[string]int),
		Errors:     []string{},
	}
}

// AddError records a failed check and marks the result as failing.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// Cell returns the final cell at c, or an empty cell.
func (r *Result) Cell(c ir.Coordinate) ir.Cell {
	for _, cell := range r.Cells {
		if cell.Row == c.Row && cell.Col == c.Col {
			return cell
		}
	}
	return ir.Cell{Row: c.Row, Col: c.Col, ComputedType: ir.ComputedEmpty}
}
