package compiler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sheetflow/internal/ir"
)

//go:embed schema/pattern.schema.yaml
var patternSchemaYAML []byte

const patternSchemaURL = "sheetflow://schema/pattern.json"

var (
	patternSchemaOnce sync.Once
	patternSchema     *jsonschema.Schema
	patternSchemaErr  error
)

// loadPatternSchema compiles the embedded YAML schema once.
func loadPatternSchema() (*jsonschema.Schema, error) {
	patternSchemaOnce.Do(func() {
		var doc any
		if err := yaml.Unmarshal(patternSchemaYAML, &doc); err != nil {
			patternSchemaErr = fmt.Errorf("parse pattern schema: %w", err)
			return
		}
		jsonData, err := json.Marshal(doc)
		if err != nil {
			patternSchemaErr = fmt.Errorf("marshal pattern schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(patternSchemaURL, bytes.NewReader(jsonData)); err != nil {
			patternSchemaErr = fmt.Errorf("add pattern schema: %w", err)
			return
		}
		patternSchema, patternSchemaErr = c.Compile(patternSchemaURL)
	})
	return patternSchema, patternSchemaErr
}

// Payload is the JSON form of a pattern submitted for import.
type Payload struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Version     int             `json:"version,omitempty"`
	Origin      ir.Origin       `json:"origin"`
	Steps       []ir.StepRecord `json:"steps"`
}

// ValidatePayload checks raw JSON against the pattern schema.
func ValidatePayload(raw []byte) error {
	schema, err := loadPatternSchema()
	if err != nil {
		return err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return &CompileError{Field: "payload", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return &CompileError{Field: "payload", Message: schemaMessage(err)}
	}
	return nil
}

// ParsePayload validates raw JSON and decodes it. Step parameters are
// decoded and checked too, so a payload that parses also executes.
func ParsePayload(raw []byte) (*Payload, error) {
	if err := ValidatePayload(raw); err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &CompileError{Field: "payload", Message: err.Error()}
	}
	if _, err := Expand(p.Steps); err != nil {
		return nil, err
	}
	return &p, nil
}

// schemaMessage flattens a jsonschema validation error to its leaf causes.
func schemaMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
