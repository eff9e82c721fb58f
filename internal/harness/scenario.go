package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sheetflow/internal/address"
	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/testutil"
)

// Scenario defines a conformance test scenario: a starting sheet, a pattern
// to apply, optional injected faults, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sheet is the target sheet before the pattern runs.
	Sheet SheetSetup `yaml:"sheet"`

	// Pattern is a pattern import payload written in YAML.
	Pattern yaml.Node `yaml:"pattern"`

	// Faults are injected into the target before the job is submitted.
	Faults []Fault `yaml:"faults,omitempty"`

	// Retries is how many times a failed job is healed and retried.
	Retries int `yaml:"retries,omitempty"`

	// Expect is checked against the final job and sheet.
	Expect Expectation `yaml:"expect"`
}

// SheetSetup is the initial content of the target sheet.
type SheetSetup struct {
	ID   string     `yaml:"id"`
	Rows [][]string `yaml:"rows"`
}

// Fault fails one call of a sheet method.
type Fault struct {
	// Method is a sheet method name, e.g. "BatchUpdateCells".
	Method string `yaml:"method"`

	// Call is the 1-based call that fails; 0 fails every call.
	Call int `yaml:"call"`

	// Error is the injected error message. Empty means testutil.ErrInjected.
	Error string `yaml:"error,omitempty"`
}

// Expectation describes the expected end state. Unset fields are not
// checked.
type Expectation struct {
	Status      ir.JobStatus      `yaml:"status"`
	Progress    *float64          `yaml:"progress,omitempty"`
	CurrentStep *int              `yaml:"current_step,omitempty"`
	ErrorCode   string            `yaml:"error_code,omitempty"`
	Attempts    int               `yaml:"attempts,omitempty"`
	Cells       map[string]string `yaml:"cells,omitempty"`
	Highlights  map[string]string `yaml:"highlights,omitempty"`
	Calls       map[string]int    `yaml:"calls,omitempty"`
}

var faultMethods = map[string]bool{
	testutil.MethodPing:             true,
	testutil.MethodDimensions:       true,
	testutil.MethodReadRange:        true,
	testutil.MethodBatchUpdateCells: true,
	testutil.MethodInsertRows:       true,
	testutil.MethodInsertColumns:    true,
	testutil.MethodDeleteRows:       true,
	testutil.MethodDeleteColumns:    true,
	testutil.MethodRevert:           true,
}

var jobStatuses = map[ir.JobStatus]bool{
	ir.JobQueued:    true,
	ir.JobRunning:   true,
	ir.JobSucceeded: true,
	ir.JobFailed:    true,
	ir.JobCanceled:  true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// PatternPayload returns the pattern block as JSON, ready for
// compiler.ParsePayload.
func (s *Scenario) PatternPayload() ([]byte, error) {
	var doc any
	if err := s.Pattern.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode pattern: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode pattern: %w", err)
	}
	return data, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Sheet.ID == "" {
		return fmt.Errorf("sheet.id is required")
	}
	if s.Pattern.Kind != yaml.MappingNode {
		return fmt.Errorf("pattern must be a mapping")
	}
	if s.Retries < 0 {
		return fmt.Errorf("retries must be non-negative")
	}

	for i, f := range s.Faults {
		if !faultMethods[f.Method] {
			return fmt.Errorf("faults[%d]: unknown method %q", i, f.Method)
		}
		if f.Call < 0 {
			return fmt.Errorf("faults[%d]: call must be non-negative", i)
		}
	}

	return validateExpectation(&s.Expect)
}

func validateExpectation(e *Expectation) error {
	if e.Status == "" {
		return fmt.Errorf("expect.status is required")
	}
	if !jobStatuses[e.Status] {
		return fmt.Errorf("expect.status: unknown status %q", e.Status)
	}
	if e.Progress != nil && (*e.Progress < 0 || *e.Progress > 1) {
		return fmt.Errorf("expect.progress must be within [0, 1]")
	}
	for label := range e.Cells {
		if _, ok := address.LabelCoordinate(label); !ok {
			return fmt.Errorf("expect.cells: bad cell label %q", label)
		}
	}
	for label := range e.Highlights {
		if _, ok := address.LabelCoordinate(label); !ok {
			return fmt.Errorf("expect.highlights: bad cell label %q", label)
		}
	}
	for method := range e.Calls {
		if !faultMethods[method] {
			return fmt.Errorf("expect.calls: unknown method %q", method)
		}
	}
	return nil
}
