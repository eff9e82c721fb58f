// Package compiler turns a recorded timeline into the persisted step-record
// form, expands records back into executable steps, and loads patterns
// authored in CUE or submitted as JSON payloads.
package compiler

import (
	"errors"
	"fmt"
	"time"

	"cuelang.org/go/cue/token"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/timeline"
)

// CompileError represents a compilation error, with a CUE source position
// when the pattern was authored in CUE.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsCompileError reports whether err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// CompileTimeline converts a timeline into step records.
//
// Each top-level item gets the next 1-based seq; a group consumes one seq and
// embeds its children as {type, params, disabled} tuples. Groups compile with
// disabled false. Output is deterministic: identical timelines produce
// records that marshal to identical canonical bytes.
func CompileTimeline(tl timeline.Timeline) ([]ir.StepRecord, error) {
	if len(tl) == 0 {
		return nil, &CompileError{Field: "timeline", Message: "pattern has no steps"}
	}

	records := make([]ir.StepRecord, 0, len(tl))
	for i, item := range tl {
		seq := i + 1
		field := fmt.Sprintf("steps[%d]", i)

		switch v := item.(type) {
		case ir.Step:
			params, err := compileParams(field, v)
			if err != nil {
				return nil, err
			}
			records = append(records, ir.StepRecord{
				Seq:      seq,
				Type:     v.Kind(),
				Disabled: v.Disabled,
				Params:   params,
			})

		case ir.Group:
			if len(v.Items) < 2 {
				return nil, &CompileError{
					Field:   field,
					Message: fmt.Sprintf("group %q has %d steps, need at least 2", v.ID, len(v.Items)),
				}
			}
			children := make(ir.IRArray, 0, len(v.Items))
			for j, s := range v.Items {
				params, err := compileParams(fmt.Sprintf("%s.items[%d]", field, j), s)
				if err != nil {
					return nil, err
				}
				children = append(children, ir.IRObject{
					"type":     ir.IRString(s.Kind()),
					"params":   params,
					"disabled": ir.IRBool(s.Disabled),
				})
			}
			records = append(records, ir.StepRecord{
				Seq:  seq,
				Type: ir.KindGroup,
				Params: ir.IRObject{
					"name":  ir.IRString(v.Name),
					"items": children,
				},
			})

		default:
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown timeline item %T", item)}
		}
	}
	return records, nil
}

func compileParams(field string, s ir.Step) (ir.IRObject, error) {
	if s.Params == nil {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("step %q has no parameters", s.ID)}
	}
	if err := ir.ValidateParams(s.Params); err != nil {
		return nil, &CompileError{Field: field + ".params", Message: err.Error()}
	}
	params, err := ir.EncodeParams(s.Params)
	if err != nil {
		return nil, &CompileError{Field: field + ".params", Message: err.Error()}
	}
	return params, nil
}

// NewPattern assembles a persistable pattern around compiled records and
// computes its content hash.
func NewPattern(id, name, description string, origin ir.Origin, records []ir.StepRecord, now time.Time) (ir.Pattern, error) {
	if name == "" {
		return ir.Pattern{}, &CompileError{Field: "name", Message: "pattern name is required"}
	}
	if _, err := Expand(records); err != nil {
		return ir.Pattern{}, err
	}
	hash, err := ir.PatternHash(records)
	if err != nil {
		return ir.Pattern{}, fmt.Errorf("NewPattern: %w", err)
	}
	return ir.Pattern{
		ID:          id,
		Name:        name,
		Description: description,
		Version:     ir.PatternFormatVersion,
		Origin:      origin,
		Steps:       records,
		ContentHash: hash,
		CreatedAt:   now.UTC(),
	}, nil
}
