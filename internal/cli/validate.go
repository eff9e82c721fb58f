package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetflow/internal/compiler"
)

// ValidationIssue is one problem found while validating.
type ValidationIssue struct {
	Code    string `json:"code"`
	Pattern string `json:"pattern,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Source   string            `json:"source"` // "cue" or "payload"
	Patterns []string          `json:"patterns,omitempty"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <patterns-dir | payload.json>",
		Short: "Validate patterns without storing them",
		Long: `Validate CUE pattern definitions or a JSON import payload.

A directory is loaded as a CUE package and every pattern is compiled. A file
is checked against the pattern payload schema and its step parameters are
decoded, so a payload that validates also executes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	info, err := os.Stat(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("path not found: %s", path), nil)
	}

	var result ValidationResult
	if info.IsDir() {
		result, err = validateDir(path, formatter)
		if err != nil {
			return err
		}
	} else {
		result = validatePayloadFile(path, formatter)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateDir compiles the CUE patterns in dir, stopping at the first error.
func validateDir(dir string, formatter *OutputFormatter) (ValidationResult, error) {
	loadResult, loadErrors := LoadPatterns(dir, LoadModeFailFast)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return ValidationResult{}, formatter.Fail(ExitCommandError, code, message, nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	result := ValidationResult{Valid: true, Source: "cue"}
	for _, p := range loadResult.Patterns {
		formatter.VerboseLog("Validated pattern: %s", p.Name)
		result.Patterns = append(result.Patterns, p.Name)
	}
	for _, err := range loadErrors {
		result.Valid = false
		result.Errors = append(result.Errors, issueFromError(err))
	}
	return result, nil
}

// validatePayloadFile checks a JSON import payload.
func validatePayloadFile(path string, formatter *OutputFormatter) ValidationResult {
	result := ValidationResult{Source: "payload"}

	raw, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, ValidationIssue{Code: ErrCodeNotFound, Message: err.Error()})
		return result
	}
	formatter.VerboseLog("Validating payload %s (%d bytes)", path, len(raw))

	payload, err := compiler.ParsePayload(raw)
	if err != nil {
		result.Errors = append(result.Errors, issueFromError(err))
		return result
	}
	result.Valid = true
	result.Patterns = []string{payload.Name}
	return result
}

func issueFromError(err error) ValidationIssue {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		issue := ValidationIssue{Code: loadErr.Code, Pattern: loadErr.Pattern, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			issue.Line = loadErr.Pos.Line()
		}
		return issue
	}
	code, message := parseCompileError(err)
	return ValidationIssue{Code: code, Message: message}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All patterns valid (%d)\n", len(result.Patterns))
	for _, name := range result.Patterns {
		fmt.Fprintf(formatter.Writer, "  %s\n", name)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		if err.Pattern != "" {
			fmt.Fprintf(formatter.Writer, "  %s: pattern %s: %s\n\n", err.Code, err.Pattern, err.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
