package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/testutil"
)

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestRun_Minimal(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "job-1", result.Job.ID)
	assert.Equal(t, "pattern-minimal", result.Job.PatternID)
	assert.Equal(t, ir.JobSucceeded, result.Job.Status)
	assert.Equal(t, "=A1&B1", result.Cell(ir.Coordinate{Row: 0, Col: 2}).RawInput)
	assert.Empty(t, result.Operations)
	assert.Equal(t, 1, result.Calls[testutil.MethodPing])
	assert.Equal(t, 1, result.Calls[testutil.MethodBatchUpdateCells])
}

func TestRun_ReportsMismatches(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.Expect.Status = ir.JobFailed
	s.Expect.Cells = map[string]string{"C1": "=A1+B1"}

	result, err := Run(s)
	require.NoError(t, err, "mismatches are results, not errors")

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: status")
	assert.Contains(t, result.Errors[1], "Assertion failed: cells.C1")
}

func TestRun_FaultWithoutRetry(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.Faults = []Fault{{Method: testutil.MethodBatchUpdateCells, Call: 0, Error: "quota exceeded"}}
	s.Expect = Expectation{Status: ir.JobFailed, ErrorCode: "EXECUTION_FAILED"}

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.Job.CurrentStep)
	assert.Equal(t, 0, *result.Job.CurrentStep)
	assert.Contains(t, result.Job.ErrorMessage, "quota exceeded")
	assert.Empty(t, result.Cell(ir.Coordinate{Row: 0, Col: 2}).RawInput)
}

func TestRun_RetryHealsPersistentFault(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.Faults = []Fault{{Method: testutil.MethodBatchUpdateCells, Call: 0}}
	s.Retries = 3
	s.Expect.Attempts = 2

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Calls[testutil.MethodBatchUpdateCells])
}

func TestRun_InvalidPattern(t *testing.T) {
	s := mustParse(t, `
name: bad
description: "Unknown step type"
sheet: { id: s1 }
pattern:
  name: bad
  steps:
    - { seq: 1, type: MERGE_CELLS, params: {} }
expect: { status: succeeded }
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern")
}

func TestRun_SubmitRejected(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.Faults = []Fault{{Method: testutil.MethodPing, Call: 1}}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_UNAVAILABLE")
}
