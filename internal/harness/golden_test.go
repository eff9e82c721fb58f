package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs the conformance scenarios under testdata/scenarios at
// the repository root and compares each final sheet with its golden file.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenarios found")

	for _, path := range paths {
		name := filepath.Base(path)
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err, "failed to load scenario from %s", path)
			assert.Equal(t, name[:len(name)-len(filepath.Ext(name))], scenario.Name, "file name should match scenario name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario %s failed:\n%v", scenario.Name, result.Errors)
		})
	}
}

func TestSnapshot_RenderFailedJob(t *testing.T) {
	r := sampleResult()
	snap := Snapshot{ScenarioName: "sample", Job: r.Job, Cells: r.Cells}

	want := "scenario: sample\n" +
		"job: job-1 failed progress=0.50 attempts=1 current_step=1 error=EXECUTION_FAILED\n" +
		"step 0 seq=1 INSERT_ROW applied\n" +
		"step 1 seq=2 APPLY_FORMULA failed\n" +
		"cells:\n" +
		"  A1 \"Item\"\n" +
		"  B1 \"Qty\" #FF0000\n"
	assert.Equal(t, want, string(snap.Render()))
}
