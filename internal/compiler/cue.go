package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/timeline"
)

// Authored is a pattern read from CUE source, before it is given an id.
type Authored struct {
	Name        string
	Description string
	Origin      ir.Origin
	Timeline    timeline.Timeline
	Records     []ir.StepRecord
}

// CompilePatternCUE parses one pattern definition into a timeline and
// compiles it. The value is the pattern struct itself:
//
//	pattern: "rename-qty": {
//		description: "Rename Qty and add a line total"
//		steps: [
//			{type: "SET_COLUMN_NAME", header_row_index: 0, from_header: "Qty", to_header: "Quantity",
//				column_ref: index: 2, column_locator: {strategy: "BY_HEADER_TEXT", from_header: "Qty", fallback_index: 2}},
//			{type: "GROUP", name: "totals", items: [...]},
//		]
//	}
//
// Every step field other than type, id and disabled is a step parameter.
// Steps without an id get "<name>.<n>" (and "<name>.<n>.<m>" inside groups).
func CompilePatternCUE(name string, v cue.Value) (*Authored, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	a := &Authored{Name: name}

	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		s, err := d.String()
		if err != nil {
			return nil, &CompileError{Field: "description", Message: "must be a string", Pos: d.Pos()}
		}
		a.Description = s
	}

	if o := v.LookupPath(cue.ParsePath("origin")); o.Exists() {
		origin, err := cueOrigin(o)
		if err != nil {
			return nil, err
		}
		a.Origin = origin
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return nil, &CompileError{Field: "steps", Message: "steps are required", Pos: v.Pos()}
	}
	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		item, err := cueItem(fmt.Sprintf("%s.%d", name, i+1), iter.Value(), true)
		if err != nil {
			return nil, err
		}
		a.Timeline = append(a.Timeline, item)
	}

	if err := timeline.Validate(a.Timeline); err != nil {
		return nil, &CompileError{Field: "steps", Message: err.Error(), Pos: stepsVal.Pos()}
	}
	a.Records, err = CompileTimeline(a.Timeline)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func cueOrigin(v cue.Value) (ir.Origin, error) {
	val, err := cueToIR(v)
	if err != nil {
		return ir.Origin{}, err
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return ir.Origin{}, &CompileError{Field: "origin", Message: "must be a struct", Pos: v.Pos()}
	}
	spreadsheet, _ := obj["spreadsheet_id"].(ir.IRString)
	sheet, _ := obj["sheet_id"].(ir.IRString)
	return ir.Origin{SpreadsheetID: string(spreadsheet), SheetID: string(sheet)}, nil
}

// cueItem converts one step struct. Groups are only allowed at the top level.
func cueItem(defaultID string, v cue.Value, topLevel bool) (ir.Item, error) {
	val, err := cueToIR(v)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return nil, &CompileError{Field: defaultID, Message: "step must be a struct", Pos: v.Pos()}
	}

	kind, ok := obj["type"].(ir.IRString)
	if !ok {
		return nil, &CompileError{Field: defaultID + ".type", Message: "type is required", Pos: v.Pos()}
	}
	id := defaultID
	if s, ok := obj["id"].(ir.IRString); ok && s != "" {
		id = string(s)
	}
	disabled, _ := obj["disabled"].(ir.IRBool)

	if ir.StepKind(kind) == ir.KindGroup {
		if !topLevel {
			return nil, &CompileError{Field: defaultID, Message: "groups do not nest", Pos: v.Pos()}
		}
		return cueGroup(id, obj, v)
	}

	params := make(ir.IRObject, len(obj))
	for k, fv := range obj {
		switch k {
		case "type", "id", "disabled":
		default:
			params[k] = fv
		}
	}
	p, err := ir.DecodeParams(ir.StepKind(kind), params)
	if err != nil {
		return nil, &CompileError{Field: defaultID, Message: err.Error(), Pos: v.Pos()}
	}
	return ir.Step{ID: id, Disabled: bool(disabled), Params: p}, nil
}

func cueGroup(id string, obj ir.IRObject, v cue.Value) (ir.Item, error) {
	name, _ := obj["name"].(ir.IRString)
	collapsed, _ := obj["collapsed"].(ir.IRBool)
	g := ir.Group{ID: id, Name: string(name), Collapsed: bool(collapsed)}

	itemsVal := v.LookupPath(cue.ParsePath("items"))
	iter, err := itemsVal.List()
	if err != nil {
		return nil, &CompileError{Field: id + ".items", Message: "group items must be a list", Pos: v.Pos()}
	}
	for j := 0; iter.Next(); j++ {
		item, err := cueItem(fmt.Sprintf("%s.%d", id, j+1), iter.Value(), false)
		if err != nil {
			return nil, err
		}
		g.Items = append(g.Items, item.(ir.Step))
	}
	return g, nil
}

// cueToIR converts a concrete CUE value into an IRValue. Floats are rejected
// so compiled records stay integer-only.
func cueToIR(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.StructKind:
		obj := ir.IRObject{}
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fv, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = fv
		}
		return obj, nil

	case cue.ListKind:
		arr := ir.IRArray{}
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			ev, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil

	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil

	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil

	case cue.NullKind:
		return ir.IRNull{}, nil

	case cue.FloatKind:
		return nil, &CompileError{Field: "value", Message: "floats are not allowed, use int", Pos: v.Pos()}

	default:
		return nil, &CompileError{Field: "value", Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()), Pos: v.Pos()}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
