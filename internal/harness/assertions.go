package harness

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/sheetflow/internal/address"
	"github.com/roach88/sheetflow/internal/ir"
)

// progressTolerance absorbs float rounding of applied/total.
const progressTolerance = 1e-9

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Field    string // Expectation that failed, e.g. "status" or "cells.C1"
	Expected string
	Actual   string
	Job      ir.Job // Final job for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nJob %s %s:\n", e.Job.ID, e.Job.Status)
	for _, st := range e.Job.Steps {
		fmt.Fprintf(&buf, "  [%d] %s %s", st.Position, st.Kind, st.Status)
		if st.Error != "" {
			fmt.Fprintf(&buf, ": %s", st.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// EvaluateExpectations checks the result against expect and returns one
// message per mismatch, in a stable order.
func EvaluateExpectations(result *Result, expect Expectation) []string {
	var errs []string
	fail := func(field, expected, actual string) {
		err := &AssertionError{Field: field, Expected: expected, Actual: actual, Job: result.Job}
		errs = append(errs, err.Error())
	}
	job := result.Job

	if job.Status != expect.Status {
		fail("status", string(expect.Status), string(job.Status))
	}
	if expect.Progress != nil && math.Abs(job.Progress-*expect.Progress) > progressTolerance {
		fail("progress", fmt.Sprintf("%g", *expect.Progress), fmt.Sprintf("%g", job.Progress))
	}
	if expect.CurrentStep != nil {
		switch {
		case job.CurrentStep == nil:
			fail("current_step", fmt.Sprintf("%d", *expect.CurrentStep), "none")
		case *job.CurrentStep != *expect.CurrentStep:
			fail("current_step", fmt.Sprintf("%d", *expect.CurrentStep), fmt.Sprintf("%d", *job.CurrentStep))
		}
	}
	if expect.ErrorCode != "" && job.ErrorCode != expect.ErrorCode {
		fail("error_code", expect.ErrorCode, quoteOrNone(job.ErrorCode))
	}
	if expect.Attempts != 0 && job.Attempts != expect.Attempts {
		fail("attempts", fmt.Sprintf("%d", expect.Attempts), fmt.Sprintf("%d", job.Attempts))
	}

	for _, label := range sortedKeys(expect.Cells) {
		c, _ := address.LabelCoordinate(label)
		got := result.Cell(c).RawInput
		if got != expect.Cells[label] {
			fail("cells."+label, fmt.Sprintf("%q", expect.Cells[label]), fmt.Sprintf("%q", got))
		}
	}
	for _, label := range sortedKeys(expect.Highlights) {
		c, _ := address.LabelCoordinate(label)
		got := result.Cell(c).Highlight
		if got != expect.Highlights[label] {
			fail("highlights."+label, expect.Highlights[label], quoteOrNone(got))
		}
	}
	for _, method := range sortedKeys(expect.Calls) {
		if got := result.Calls[method]; got != expect.Calls[method] {
			fail("calls."+method, fmt.Sprintf("%d", expect.Calls[method]), fmt.Sprintf("%d", got))
		}
	}

	return errs
}

func quoteOrNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
