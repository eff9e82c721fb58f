package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/sheetflow/internal/ir"
)

// ExecStep is one step of the executable list: records in seq order, groups
// expanded inline, disabled steps dropped.
type ExecStep struct {
	// Position is the 0-based index in the executable list.
	Position int
	// Seq is the top-level record the step came from.
	Seq int
	// Child is the index inside a GROUP record, or -1.
	Child  int
	Params ir.Params
}

// Kind returns the step's kind.
func (s ExecStep) Kind() ir.StepKind { return s.Params.Kind() }

// Expand decodes records into the executable step list. Records are visited
// in ascending seq order regardless of slice order.
func Expand(records []ir.StepRecord) ([]ExecStep, error) {
	ordered, err := orderRecords(records)
	if err != nil {
		return nil, err
	}

	var out []ExecStep
	add := func(seq, child int, p ir.Params) {
		out = append(out, ExecStep{Position: len(out), Seq: seq, Child: child, Params: p})
	}

	for _, r := range ordered {
		field := fmt.Sprintf("steps[seq=%d]", r.Seq)

		if r.Type != ir.KindGroup {
			p, err := decodeStep(field, r.Type, r.Params)
			if err != nil {
				return nil, err
			}
			if !r.Disabled {
				add(r.Seq, -1, p)
			}
			continue
		}

		children, err := groupChildren(field, r.Params)
		if err != nil {
			return nil, err
		}
		for j, c := range children {
			if !r.Disabled && !c.disabled {
				add(r.Seq, j, c.params)
			}
		}
	}
	return out, nil
}

// EnabledCount returns the number of executable steps in records.
func EnabledCount(records []ir.StepRecord) (int, error) {
	steps, err := Expand(records)
	return len(steps), err
}

func orderRecords(records []ir.StepRecord) ([]ir.StepRecord, error) {
	ordered := make([]ir.StepRecord, len(records))
	copy(ordered, records)
	seen := make(map[int]bool, len(records))
	for _, r := range ordered {
		if r.Seq < 1 {
			return nil, &CompileError{Field: "steps", Message: fmt.Sprintf("seq %d must be at least 1", r.Seq)}
		}
		if seen[r.Seq] {
			return nil, &CompileError{Field: "steps", Message: fmt.Sprintf("duplicate seq %d", r.Seq)}
		}
		seen[r.Seq] = true
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })
	return ordered, nil
}

func decodeStep(field string, kind ir.StepKind, obj ir.IRObject) (ir.Params, error) {
	if !kind.IsStep() {
		return nil, &CompileError{Field: field + ".type", Message: fmt.Sprintf("unknown step type %q", kind)}
	}
	p, err := ir.DecodeParams(kind, obj)
	if err != nil {
		return nil, &CompileError{Field: field + ".params", Message: err.Error()}
	}
	if err := ir.ValidateParams(p); err != nil {
		return nil, &CompileError{Field: field + ".params", Message: err.Error()}
	}
	return p, nil
}

type groupChild struct {
	params   ir.Params
	disabled bool
}

func groupChildren(field string, params ir.IRObject) ([]groupChild, error) {
	raw, ok := params["items"].(ir.IRArray)
	if !ok {
		return nil, &CompileError{Field: field + ".params.items", Message: "group items must be an array"}
	}
	if len(raw) < 2 {
		return nil, &CompileError{Field: field + ".params.items", Message: fmt.Sprintf("group has %d steps, need at least 2", len(raw))}
	}

	children := make([]groupChild, 0, len(raw))
	for j, v := range raw {
		childField := fmt.Sprintf("%s.items[%d]", field, j)
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil, &CompileError{Field: childField, Message: "group item must be an object"}
		}
		kind, _ := obj["type"].(ir.IRString)
		if ir.StepKind(kind) == ir.KindGroup {
			return nil, &CompileError{Field: childField, Message: "groups do not nest"}
		}
		childParams, _ := obj["params"].(ir.IRObject)
		p, err := decodeStep(childField, ir.StepKind(kind), childParams)
		if err != nil {
			return nil, err
		}
		disabled, _ := obj["disabled"].(ir.IRBool)
		children = append(children, groupChild{params: p, disabled: bool(disabled)})
	}
	return children, nil
}
