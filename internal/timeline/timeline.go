// Package timeline holds the in-memory recording of a session: an ordered
// list of steps and groups.
//
// Every operation is a pure function: it takes a Timeline value and returns
// a new one without touching the input's backing arrays. A call that cannot
// apply (unknown id, malformed update) returns the input unchanged together
// with a *RecordingError, so a recording UI can ignore the error and keep the
// prior state.
//
// Groups always hold at least two steps. Any operation that would leave a
// group with one child promotes that child to the group's position; a group
// left with no children is removed.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sheetflow/internal/ir"
)

// Timeline is an ordered list of steps and groups.
type Timeline []ir.Item

// RecordingError reports a timeline operation that was not applied.
type RecordingError struct {
	Op      string
	ID      string
	Message string
}

func (e *RecordingError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.ID, e.Message)
}

// IsRecordingError reports whether err is a RecordingError.
func IsRecordingError(err error) bool {
	var re *RecordingError
	return errors.As(err, &re)
}

func fail(tl Timeline, op, id, msg string) (Timeline, error) {
	return tl, &RecordingError{Op: op, ID: id, Message: msg}
}

// clone copies the top level and every group's items slice.
func (tl Timeline) clone() Timeline {
	out := make(Timeline, len(tl))
	for i, item := range tl {
		if g, ok := item.(ir.Group); ok {
			out[i] = g.Clone()
			continue
		}
		out[i] = item
	}
	return out
}

// Flatten returns the steps in execution order: top-level order with each
// group's children expanded in place. Group wrappers are dropped and
// disabled steps are kept.
func Flatten(tl Timeline) []ir.Step {
	var out []ir.Step
	for _, item := range tl {
		switch v := item.(type) {
		case ir.Step:
			out = append(out, v)
		case ir.Group:
			out = append(out, v.Items...)
		}
	}
	return out
}

// FindStepByID finds a step at the top level or nested in a group.
func FindStepByID(tl Timeline, id string) (ir.Step, bool) {
	idx, child, ok := FindItemIndexByID(tl, id)
	if !ok {
		return ir.Step{}, false
	}
	if child >= 0 {
		return tl[idx].(ir.Group).Items[child], true
	}
	s, isStep := tl[idx].(ir.Step)
	return s, isStep
}

// FindGroupByID finds a top-level group.
func FindGroupByID(tl Timeline, id string) (ir.Group, bool) {
	for _, item := range tl {
		if g, ok := item.(ir.Group); ok && g.ID == id {
			return g, true
		}
	}
	return ir.Group{}, false
}

// FindItemIndexByID locates id. Steps are searched at the top level and
// inside groups; groups only at the top level. For a nested step, index is
// the group's position and child the step's position in the group;
// otherwise child is -1.
func FindItemIndexByID(tl Timeline, id string) (index, child int, ok bool) {
	for i, item := range tl {
		if item.ItemID() == id {
			return i, -1, true
		}
	}
	for i, item := range tl {
		g, isGroup := item.(ir.Group)
		if !isGroup {
			continue
		}
		for j, s := range g.Items {
			if s.ID == id {
				return i, j, true
			}
		}
	}
	return 0, -1, false
}

// Append adds items at the end of the timeline.
func Append(tl Timeline, items ...ir.Item) (Timeline, error) {
	return InsertAt(tl, len(tl), items...)
}

// InsertAt inserts items at top-level position index.
func InsertAt(tl Timeline, index int, items ...ir.Item) (Timeline, error) {
	if index < 0 || index > len(tl) {
		return fail(tl, "insert", "", fmt.Sprintf("index %d out of range [0, %d]", index, len(tl)))
	}
	out := make(Timeline, 0, len(tl)+len(items))
	out = append(out, tl[:index]...)
	for _, item := range items {
		if g, ok := item.(ir.Group); ok {
			item = g.Clone()
		}
		out = append(out, item)
	}
	out = append(out, tl[index:]...)

	if err := Validate(out); err != nil {
		return fail(tl, "insert", "", err.Error())
	}
	return out.clone(), nil
}

// DeleteByID removes a top-level step, a whole group with its children, or
// a single child of a group. Removing a child dissolves a group left with
// fewer than two steps.
func DeleteByID(tl Timeline, id string) (Timeline, error) {
	idx, child, ok := FindItemIndexByID(tl, id)
	if !ok {
		return fail(tl, "delete", id, "no such step or group")
	}
	out := tl.clone()
	if child < 0 {
		return append(out[:idx:idx], out[idx+1:]...), nil
	}

	g := out[idx].(ir.Group)
	g.Items = append(g.Items[:child:child], g.Items[child+1:]...)
	return replaceGroup(out, idx, g), nil
}

// replaceGroup writes g back at idx, dissolving it when it holds fewer than
// two steps.
func replaceGroup(tl Timeline, idx int, g ir.Group) Timeline {
	switch len(g.Items) {
	case 0:
		return append(tl[:idx:idx], tl[idx+1:]...)
	case 1:
		tl[idx] = g.Items[0]
		return tl
	default:
		tl[idx] = g
		return tl
	}
}

// Patch is a partial update. Name, Collapsed and Items apply to groups;
// Disabled and Params apply to steps. A nil field is left unchanged.
type Patch struct {
	Name      *string
	Collapsed *bool
	Items     []ir.Step

	Disabled *bool
	Params   ir.Params
}

func (p Patch) touchesGroup() bool { return p.Name != nil || p.Collapsed != nil || p.Items != nil }
func (p Patch) touchesStep() bool  { return p.Disabled != nil || p.Params != nil }

// UpdateByID merges p into the group or step with the given id. Step params
// may be replaced only by params of the same kind.
func UpdateByID(tl Timeline, id string, p Patch) (Timeline, error) {
	idx, child, ok := FindItemIndexByID(tl, id)
	if !ok {
		return fail(tl, "update", id, "no such step or group")
	}
	out := tl.clone()

	if g, isGroup := out[idx].(ir.Group); isGroup && child < 0 {
		if p.touchesStep() {
			return fail(tl, "update", id, "disabled and params do not apply to a group")
		}
		if p.Name != nil {
			g.Name = *p.Name
		}
		if p.Collapsed != nil {
			g.Collapsed = *p.Collapsed
		}
		if p.Items != nil {
			g.Items = append([]ir.Step(nil), p.Items...)
		}
		out = replaceGroup(out, idx, g)
		if err := Validate(out); err != nil {
			return fail(tl, "update", id, err.Error())
		}
		return out, nil
	}

	if p.touchesGroup() {
		return fail(tl, "update", id, "name, collapsed and items do not apply to a step")
	}
	var s ir.Step
	if child >= 0 {
		s = out[idx].(ir.Group).Items[child]
	} else {
		s = out[idx].(ir.Step)
	}
	if p.Params != nil {
		if p.Params.Kind() != s.Kind() {
			return fail(tl, "update", id, fmt.Sprintf("cannot change step kind from %s to %s", s.Kind(), p.Params.Kind()))
		}
		s.Params = p.Params
	}
	if p.Disabled != nil {
		s.Disabled = *p.Disabled
	}
	if child >= 0 {
		out[idx].(ir.Group).Items[child] = s
	} else {
		out[idx] = s
	}
	return out, nil
}

// MoveStepOutOfGroup removes a step from a group and reinserts it as a
// standalone item right after the group's former position. If one step is
// left behind it is promoted too, ahead of the moved step, and the group is
// removed.
func MoveStepOutOfGroup(tl Timeline, groupID, stepID string) (Timeline, error) {
	idx := -1
	for i, item := range tl {
		if g, ok := item.(ir.Group); ok && g.ID == groupID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fail(tl, "move out of group", groupID, "no such group")
	}
	out := tl.clone()
	g := out[idx].(ir.Group)

	child := -1
	for j, s := range g.Items {
		if s.ID == stepID {
			child = j
			break
		}
	}
	if child < 0 {
		return fail(tl, "move out of group", stepID, fmt.Sprintf("not a step of group %q", groupID))
	}
	moved := g.Items[child]
	g.Items = append(g.Items[:child:child], g.Items[child+1:]...)

	before := len(out)
	out = replaceGroup(out, idx, g)
	at := idx + 1
	if len(out) < before {
		at = idx
	}
	result := make(Timeline, 0, len(out)+1)
	result = append(result, out[:at]...)
	result = append(result, moved)
	result = append(result, out[at:]...)
	return result, nil
}

// GroupSteps bundles top-level steps into a new group placed at the position
// of the earliest of them. Children keep their timeline order.
func GroupSteps(tl Timeline, groupID, name string, createdAt time.Time, stepIDs ...string) (Timeline, error) {
	if len(stepIDs) < 2 {
		return fail(tl, "group", groupID, "a group needs at least two steps")
	}
	want := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		if want[id] {
			return fail(tl, "group", id, "step listed twice")
		}
		want[id] = true
	}

	g := ir.Group{ID: groupID, Name: name, CreatedAt: createdAt}
	out := make(Timeline, 0, len(tl))
	at := -1
	for _, item := range tl {
		s, isStep := item.(ir.Step)
		if !isStep || !want[s.ID] {
			out = append(out, item)
			continue
		}
		if at < 0 {
			at = len(out)
		}
		g.Items = append(g.Items, s)
	}
	if len(g.Items) != len(stepIDs) {
		return fail(tl, "group", groupID, "every grouped id must name a top-level step")
	}

	out = append(out[:at], append(Timeline{g}, out[at:]...)...)
	if err := Validate(out); err != nil {
		return fail(tl, "group", groupID, err.Error())
	}
	return out.clone(), nil
}

// Ungroup replaces a group with its children.
func Ungroup(tl Timeline, groupID string) (Timeline, error) {
	for i, item := range tl {
		g, ok := item.(ir.Group)
		if !ok || g.ID != groupID {
			continue
		}
		out := make(Timeline, 0, len(tl)+len(g.Items)-1)
		out = append(out, tl[:i]...)
		for _, s := range g.Items {
			out = append(out, s)
		}
		out = append(out, tl[i+1:]...)
		return out.clone(), nil
	}
	return fail(tl, "ungroup", groupID, "no such group")
}

// Validate checks the timeline invariants: ids are non-empty and unique
// across all nesting levels, every step has parameters, and every group
// holds at least two steps.
func Validate(tl Timeline) error {
	seen := make(map[string]bool)
	checkID := func(id string) error {
		if id == "" {
			return errors.New("empty id")
		}
		if seen[id] {
			return fmt.Errorf("duplicate id %q", id)
		}
		seen[id] = true
		return nil
	}
	checkStep := func(s ir.Step) error {
		if err := checkID(s.ID); err != nil {
			return err
		}
		if s.Params == nil {
			return fmt.Errorf("step %q has no parameters", s.ID)
		}
		return nil
	}

	for _, item := range tl {
		switch v := item.(type) {
		case ir.Step:
			if err := checkStep(v); err != nil {
				return err
			}
		case ir.Group:
			if err := checkID(v.ID); err != nil {
				return err
			}
			if len(v.Items) < 2 {
				return fmt.Errorf("group %q has %d steps, need at least 2", v.ID, len(v.Items))
			}
			for _, s := range v.Items {
				if err := checkStep(s); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unknown timeline item %T", item)
		}
	}
	return nil
}
