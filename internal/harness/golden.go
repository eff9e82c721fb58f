package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sheetflow/internal/address"
	"github.com/roach88/sheetflow/internal/ir"
)

// Snapshot captures the final job and sheet of a scenario execution.
type Snapshot struct {
	ScenarioName string
	Job          ir.Job
	Cells        []ir.Cell
	Operations   []ir.StructuralOperation
}

// Render prints the snapshot as stable, line-oriented text. Cells appear in
// row-major order as `A1 "raw input"`, followed by their highlight color.
func (s *Snapshot) Render() []byte {
	var buf bytes.Buffer
	j := s.Job

	fmt.Fprintf(&buf, "scenario: %s\n", s.ScenarioName)
	fmt.Fprintf(&buf, "job: %s %s progress=%.2f attempts=%d", j.ID, j.Status, j.Progress, j.Attempts)
	if j.CurrentStep != nil {
		fmt.Fprintf(&buf, " current_step=%d", *j.CurrentStep)
	}
	if j.ErrorCode != "" {
		fmt.Fprintf(&buf, " error=%s", j.ErrorCode)
	}
	buf.WriteByte('\n')

	for _, st := range j.Steps {
		fmt.Fprintf(&buf, "step %d seq=%d %s %s", st.Position, st.Seq, st.Kind, st.Status)
		if st.OperationID != "" {
			fmt.Fprintf(&buf, " %s", st.OperationID)
		}
		buf.WriteByte('\n')
	}

	buf.WriteString("cells:\n")
	for _, c := range s.Cells {
		fmt.Fprintf(&buf, "  %s %q", address.CoordinateLabel(c.Coordinate()), c.RawInput)
		if c.Highlight != "" {
			fmt.Fprintf(&buf, " %s", c.Highlight)
		}
		buf.WriteByte('\n')
	}

	if len(s.Operations) > 0 {
		buf.WriteString("operations:\n")
		for _, op := range s.Operations {
			fmt.Fprintf(&buf, "  %s %s at %d x%d", op.OperationID, op.Kind, op.Position, op.Count)
			if op.IsReverted {
				buf.WriteString(" reverted")
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the final snapshot against
// a golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, RenderSnapshot(scenarioName, result))
}

// RenderSnapshot renders the golden text for a scenario result.
func RenderSnapshot(scenarioName string, result *Result) []byte {
	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Job:          result.Job,
		Cells:        result.Cells,
		Operations:   result.Operations,
	}
	return snapshot.Render()
}
