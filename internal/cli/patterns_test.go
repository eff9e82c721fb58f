package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetflow/internal/ir"
)

func importPayload(t *testing.T, db, file, id string) ir.PatternSummary {
	t.Helper()
	resp, err := runJSON(t, "--db", db, "patterns", "import", filepath.Join(payloadsDir, file), "--id", id)
	require.NoError(t, err)
	var summary ir.PatternSummary
	decodeData(t, resp, &summary)
	return summary
}

func TestPatternsImportAndShow(t *testing.T) {
	db := testDB(t)

	summary := importPayload(t, db, "rename_qty.json", "p-rename")
	assert.Equal(t, "p-rename", summary.ID)
	assert.Equal(t, "rename qty and total", summary.Name)
	assert.Equal(t, 2, summary.StepCount)
	assert.Equal(t, ir.Origin{SheetID: "orders"}, summary.Origin)

	resp, err := runJSON(t, "--db", db, "patterns", "show", "p-rename")
	require.NoError(t, err)
	var p ir.Pattern
	decodeData(t, resp, &p)
	assert.Equal(t, summary.ContentHash, p.ContentHash)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, ir.KindSetColumnName, p.Steps[0].Type)

	out, err := runCLI(t, "--db", db, "patterns", "show", "p-rename")
	require.NoError(t, err)
	assert.Contains(t, out, "Pattern p-rename")
	assert.Contains(t, out, "1. SET_COLUMN_NAME")
	assert.Contains(t, out, "2. APPLY_FORMULA")
}

func TestPatternsImportGeneratesID(t *testing.T) {
	db := testDB(t)

	resp, err := runJSON(t, "--db", db, "patterns", "import", filepath.Join(payloadsDir, "rename_qty.json"))
	require.NoError(t, err)
	var summary ir.PatternSummary
	decodeData(t, resp, &summary)
	assert.Len(t, summary.ID, 36)
}

func TestPatternsImportIsIdempotent(t *testing.T) {
	db := testDB(t)

	first := importPayload(t, db, "rename_qty.json", "p-1")
	second := importPayload(t, db, "rename_qty.json", "p-1")
	assert.Equal(t, first, second)

	// Same id, different steps.
	resp, err := runJSON(t, "--db", db, "patterns", "import", filepath.Join(payloadsDir, "add_discount.json"), "--id", "p-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
}

func TestPatternsImportRejectsInvalidPayload(t *testing.T) {
	db := testDB(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "x", "steps": []}`), 0644))

	out, err := runCLI(t, "--db", db, "patterns", "import", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [")

	// Nothing was stored.
	resp, err := runJSON(t, "--db", db, "patterns", "list")
	require.NoError(t, err)
	var listed []ir.PatternSummary
	decodeData(t, resp, &listed)
	assert.Empty(t, listed)
}

func TestPatternsListAndArchive(t *testing.T) {
	db := testDB(t)
	importPayload(t, db, "rename_qty.json", "p-rename")
	importPayload(t, db, "add_discount.json", "p-discount")

	list := func(args ...string) []string {
		t.Helper()
		resp, err := runJSON(t, append([]string{"--db", db, "patterns", "list"}, args...)...)
		require.NoError(t, err)
		var listed []ir.PatternSummary
		decodeData(t, resp, &listed)
		ids := make([]string, len(listed))
		for i, p := range listed {
			ids[i] = p.ID
		}
		return ids
	}

	assert.ElementsMatch(t, []string{"p-rename", "p-discount"}, list())
	assert.Equal(t, []string{"p-rename"}, list("--sheet", "orders"))

	out, err := runCLI(t, "--db", db, "patterns", "archive", "p-rename")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Archived p-rename")

	assert.Equal(t, []string{"p-discount"}, list())
	assert.ElementsMatch(t, []string{"p-rename", "p-discount"}, list("--all"))

	out, err = runCLI(t, "--db", db, "patterns", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "archived")
}

func TestPatternsNotFound(t *testing.T) {
	db := testDB(t)

	for _, sub := range []string{"show", "archive"} {
		t.Run(sub, func(t *testing.T) {
			resp, err := runJSON(t, "--db", db, "patterns", sub, "missing")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "pattern not found: missing")
		})
	}
}

func TestPatternsListEmpty(t *testing.T) {
	db := testDB(t)
	out, err := runCLI(t, "--db", db, "patterns", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No patterns found")
}
