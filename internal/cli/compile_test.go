package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetflow/internal/ir"
)

const singlePattern = `
package test

pattern: "drop-first-row": {
	steps: [{type: "DELETE_ROW", index: 0}]
}
`

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func TestCompileValidPatterns(t *testing.T) {
	out, err := runCLI(t, "compile", patternsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 pattern(s)")
	assert.Contains(t, out, "rename-qty: 2 step(s)")
	assert.Contains(t, out, "notes-column: 3 step(s)")
	assert.NotContains(t, out, "saved as")
}

func TestCompileValidPatternsJSON(t *testing.T) {
	resp, err := runJSON(t, "compile", patternsDir)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	var result CompilationResult
	decodeData(t, resp, &result)
	require.Len(t, result.Patterns, 2)

	notes, rename := result.Patterns[0], result.Patterns[1]
	assert.Equal(t, "notes-column", notes.Name)
	assert.Equal(t, "rename-qty", rename.Name)
	assert.Equal(t, ir.Origin{SheetID: "orders"}, rename.Origin)
	assert.Empty(t, rename.ID)
	assert.Len(t, rename.ContentHash, 64)

	// The group occupies one seq and keeps its disabled child.
	require.Len(t, notes.Steps, 3)
	assert.Equal(t, ir.KindGroup, notes.Steps[0].Type)
	assert.Equal(t, 2, notes.Steps[1].Seq)
}

func TestCompileIsDeterministic(t *testing.T) {
	first, err := runJSON(t, "compile", patternsDir)
	require.NoError(t, err)
	second, err := runJSON(t, "compile", patternsDir)
	require.NoError(t, err)

	var a, b CompilationResult
	decodeData(t, first, &a)
	decodeData(t, second, &b)
	assert.Equal(t, a, b)
}

func TestCompileOutputToFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "patterns.json")

	out, err := runCLI(t, "compile", patternsDir, "--output", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote step records to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Patterns, 2)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, err := runCLI(t, "compile", "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "patterns directory not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := runCLI(t, "compile", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "no CUE files found")
}

func TestCompileWithoutPatternStruct(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "other.cue", "package test\n\nsettings: {debug: true}\n")

	out, err := runCLI(t, "compile", dir)
	require.Error(t, err)
	assert.Contains(t, out, "no patterns found")
}

func TestCompileInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
package test

pattern: broken: {description: "no steps"}
`)

	out, err := runCLI(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "compilation failed")
	assert.Contains(t, out, "Compilation failed")
	assert.Contains(t, out, "pattern broken")
	assert.Contains(t, out, "steps are required")
}

func TestCompileCollectsAllErrorsJSON(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
package test

pattern: a: {description: "no steps"}
pattern: b: steps: [{type: "DELETE_ROW", index: 1.5}]
pattern: c: steps: [{type: "DELETE_ROW", index: 0}]
`)

	resp, err := runJSON(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePatternSteps, resp.Error.Code)

	var all []CLIError
	decodeData(t, resp, &all)
	require.Len(t, all, 2)
	assert.Contains(t, all[1].Message, "floats")
}

func TestCompileSave(t *testing.T) {
	db := testDB(t)

	resp, err := runJSON(t, "--db", db, "compile", patternsDir, "--save")
	require.NoError(t, err)
	var first CompilationResult
	decodeData(t, resp, &first)
	require.Len(t, first.Patterns, 2)
	rename := first.Patterns[1]
	assert.Equal(t, "rename-qty-"+rename.ContentHash[:12], rename.ID)

	// Saving unchanged patterns again is a no-op.
	resp, err = runJSON(t, "--db", db, "compile", patternsDir, "--save")
	require.NoError(t, err)
	var second CompilationResult
	decodeData(t, resp, &second)
	assert.Equal(t, rename.ID, second.Patterns[1].ID)

	resp, err = runJSON(t, "--db", db, "patterns", "list")
	require.NoError(t, err)
	var listed []ir.PatternSummary
	decodeData(t, resp, &listed)
	assert.Len(t, listed, 2)
}

func TestCompileVerboseOutput(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--verbose", "--format", "json", "compile", patternsDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Found 1 CUE file(s)")
	assert.Contains(t, errOut.String(), "Compiling pattern: rename-qty")

	// Verbose lines stay off stdout so the JSON parses.
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCompileWatchRecompilesOnChange(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "first.cue", singlePattern)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"compile", "--watch", dir})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching "+dir)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "✓ Compiled 1 pattern(s)")

	writeCUE(t, dir, "second.cue", `
package test

pattern: "drop-first-col": steps: [{type: "DELETE_COLUMN", index: 0}]
`)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✓ Compiled 2 pattern(s)")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "a.cue", singlePattern)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	writeCUE(t, filepath.Join(dir, "nested"), "b.cue", singlePattern)
	writeCUE(t, dir, "notes.txt", "not cue")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"name", ErrCodePatternName},
		{"steps", ErrCodePatternSteps},
		{"timeline", ErrCodePatternSteps},
		{"p.1.type", ErrCodePatternSteps},
		{"p.2.items", ErrCodePatternSteps},
		{"p.1.params", ErrCodeInvalidPattern},
		{"value", ErrCodeInvalidPattern},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
