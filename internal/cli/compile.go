package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/sheetflow/internal/compiler"
	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/store"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Save   bool   // store compiled patterns
	Watch  bool   // recompile on change
}

// CompiledPattern is one pattern of a compilation result.
type CompiledPattern struct {
	ID          string          `json:"id,omitempty"` // set when saved
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Origin      ir.Origin       `json:"origin"`
	ContentHash string          `json:"content_hash"`
	StepCount   int             `json:"step_count"`
	Steps       []ir.StepRecord `json:"steps"`
}

// CompilationResult holds the compiled patterns.
type CompilationResult struct {
	Patterns []CompiledPattern `json:"patterns"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <patterns-dir>",
		Short: "Compile CUE patterns to step records",
		Long: `Compile CUE pattern definitions to step records.

Every field of the top-level pattern struct is compiled: steps are validated,
groups are checked, and each pattern gets a content hash. With --save the
patterns are stored under "<name>-<hash prefix>" so recompiling unchanged
patterns is a no-op. With --watch the directory is recompiled on every change.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "store compiled patterns in the database")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "recompile when CUE files change")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	var st *store.Store
	if opts.Save {
		sess, err := openSession(opts.RootOptions, cmd, formatter)
		if err != nil {
			return err
		}
		defer sess.Close()
		st = sess.store
	}

	err := compileOnce(ctx, opts, formatter, st, dir)
	if !opts.Watch {
		return err
	}
	return watchPatterns(ctx, dir, formatter, func() {
		// Errors were already reported; keep watching.
		_ = compileOnce(ctx, opts, formatter, st, dir)
	})
}

// compileOnce loads, compiles and optionally saves the patterns in dir.
func compileOnce(ctx context.Context, opts *CompileOptions, formatter *OutputFormatter, st *store.Store, dir string) error {
	loadResult, loadErrors := LoadPatterns(dir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return formatter.Fail(ExitCommandError, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)
	for _, p := range loadResult.Patterns {
		formatter.VerboseLog("Compiling pattern: %s", p.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{Patterns: []CompiledPattern{}}
	for _, a := range loadResult.Patterns {
		p, err := compiler.NewPattern("", a.Name, a.Description, a.Origin, a.Records, time.Now())
		if err != nil {
			code, message := parseCompileError(err)
			return formatter.Fail(ExitCommandError, code, message, nil)
		}
		if st != nil {
			p.ID = savedPatternID(p)
			if _, err := st.CreatePattern(ctx, p); err != nil {
				if errors.Is(err, store.ErrPatternConflict) {
					return formatter.Fail(ExitFailure, ErrCodeConflict, err.Error(), nil)
				}
				return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
		}
		result.Patterns = append(result.Patterns, CompiledPattern{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Origin:      p.Origin,
			ContentHash: p.ContentHash,
			StepCount:   len(p.Steps),
			Steps:       p.Steps,
		})
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeCompilationToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// savedPatternID names a stored pattern after its content, so saving the
// same definition twice lands on the same row.
func savedPatternID(p ir.Pattern) string {
	return p.Name + "-" + shortHash(p.ContentHash)
}

// watchPatterns calls recompile after CUE files under dir change, until ctx
// ends.
func watchPatterns(ctx context.Context, dir string, formatter *OutputFormatter, recompile func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("create watcher: %v", err), nil)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScanError, fmt.Sprintf("watch %s: %v", dir, err), nil)
	}
	formatter.Printf("Watching %s for changes\n", dir)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".cue" || event.Op == fsnotify.Chmod {
				continue
			}
			formatter.VerboseLog("fsnotify event=%s file=%s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			recompile()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			formatter.VerboseLog("fsnotify error=%v", err)
		}
	}
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d pattern(s)\n\n", len(result.Patterns))
	for _, p := range result.Patterns {
		fmt.Fprintf(w, "  %s: %d step(s), hash %s\n", p.Name, p.StepCount, shortHash(p.ContentHash))
		if p.ID != "" {
			fmt.Fprintf(w, "    saved as %s\n", p.ID)
		}
	}
	fmt.Fprintln(w)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote step records to %s\n", outputFile)
	}
	return nil
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			if loadErr.Pos.IsValid() {
				fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
					loadErr.Pos.Filename(),
					loadErr.Pos.Line(),
					loadErr.Pos.Column())
			}
			if loadErr.Pattern != "" {
				message = fmt.Sprintf("pattern %s: %s", loadErr.Pattern, message)
			}
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeCompilationToFile writes the compilation result as indented JSON.
func writeCompilationToFile(result *CompilationResult, filename string) error {
	// Indented for readability; hashing uses the canonical form separately.
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling patterns: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
