package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetflow/internal/oplog"
	"github.com/roach88/sheetflow/internal/sheet"
)

// Fixture paths are absolute: tests using testDB change directory.
var (
	patternsDir  = repoTestdata("patterns")
	payloadsDir  = repoTestdata("payloads")
	scenariosDir = repoTestdata("scenarios")
)

var ordersRows = [][]string{
	{"Item", "Price", "Qty"},
	{"Widget", "4", "3"},
	{"Gadget", "10", "2"},
}

func repoTestdata(name string) string {
	p, err := filepath.Abs(filepath.Join("..", "..", "testdata", name))
	if err != nil {
		panic(err)
	}
	return p
}

// jsonResponse mirrors CLIResponse with the payload left undecoded.
type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// runJSON executes a command with --format json and decodes the response.
func runJSON(t *testing.T, args ...string) (jsonResponse, error) {
	t.Helper()
	out, err := runCLI(t, append([]string{"--format", "json"}, args...)...)
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}

// decodeData unmarshals the response payload into v.
func decodeData(t *testing.T, resp jsonResponse, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// testDB returns a fresh database path and keeps configuration lookups
// inside a temporary working directory.
func testDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SHEETFLOW_POLL_INTERVAL_MS", "5")
	t.Setenv("SHEETFLOW_LOG_LEVEL", "error")
	return filepath.Join(dir, "sheetflow.db")
}

// writeWorkbook saves rows as worksheet sheetName of a new workbook.
func writeWorkbook(t *testing.T, path, sheetName string, rows [][]string) {
	t.Helper()
	require.NoError(t, sheet.SaveXLSX(sheet.FromRows(sheetName, rows, oplog.New()), path))
}

// readWorkbook loads worksheet sheetName without any operation history.
func readWorkbook(t *testing.T, path, sheetName string) *sheet.Memory {
	t.Helper()
	m, err := sheet.LoadXLSX(path, sheetName, oplog.New())
	require.NoError(t, err)
	return m
}

func rawAt(m *sheet.Memory, row, col int) string {
	c, _ := m.Cell(row, col)
	return c.RawInput
}
