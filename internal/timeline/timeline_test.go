package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetflow/internal/ir"
)

var recordedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func step(id string, index int) ir.Step {
	return ir.Step{ID: id, CreatedAt: recordedAt, Params: ir.DeleteColumn{Index: index}}
}

func group(id string, items ...ir.Step) ir.Group {
	return ir.Group{ID: id, Name: "group " + id, Items: items, CreatedAt: recordedAt}
}

// sample is [A, G{B, C}, D].
func sample() Timeline {
	return Timeline{step("A", 0), group("G", step("B", 1), step("C", 2)), step("D", 3)}
}

func ids(steps []ir.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

func itemIDs(tl Timeline) []string {
	out := make([]string, len(tl))
	for i, item := range tl {
		out[i] = item.ItemID()
	}
	return out
}

func TestFlattenPreservesOrder(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(Flatten(sample())))
}

func TestFlattenKeepsDisabledSteps(t *testing.T) {
	tl := sample()
	disabled := true
	tl, err := UpdateByID(tl, "C", Patch{Disabled: &disabled})
	require.NoError(t, err)

	flat := Flatten(tl)
	require.Len(t, flat, 4)
	assert.True(t, flat[2].Disabled)
}

func TestMoveStepOutOfGroupDissolvesSingleChild(t *testing.T) {
	tl, err := MoveStepOutOfGroup(sample(), "G", "C")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, itemIDs(tl))
	for _, item := range tl {
		_, isStep := item.(ir.Step)
		assert.True(t, isStep, "item %s should be standalone", item.ItemID())
	}
}

func TestMoveStepOutOfGroupKeepsLargerGroup(t *testing.T) {
	tl := Timeline{group("G", step("B", 1), step("C", 2), step("E", 4)), step("D", 3)}

	out, err := MoveStepOutOfGroup(tl, "G", "B")
	require.NoError(t, err)

	assert.Equal(t, []string{"G", "B", "D"}, itemIDs(out))
	g := out[0].(ir.Group)
	assert.Equal(t, []string{"C", "E"}, ids(g.Items))

	// Input is untouched.
	assert.Equal(t, []string{"B", "C", "E"}, ids(tl[0].(ir.Group).Items))
}

func TestMoveStepOutOfGroupErrors(t *testing.T) {
	tl := sample()

	out, err := MoveStepOutOfGroup(tl, "missing", "B")
	require.Error(t, err)
	assert.True(t, IsRecordingError(err))
	assert.Equal(t, tl, out)

	out, err = MoveStepOutOfGroup(tl, "G", "A")
	require.Error(t, err)
	assert.Equal(t, tl, out)
}

func TestDeleteByID(t *testing.T) {
	t.Run("top-level step", func(t *testing.T) {
		tl, err := DeleteByID(sample(), "A")
		require.NoError(t, err)
		assert.Equal(t, []string{"G", "D"}, itemIDs(tl))
	})

	t.Run("whole group", func(t *testing.T) {
		tl, err := DeleteByID(sample(), "G")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "D"}, itemIDs(tl))
	})

	t.Run("nested child dissolves group", func(t *testing.T) {
		tl, err := DeleteByID(sample(), "B")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "C", "D"}, itemIDs(tl))
		_, isStep := tl[1].(ir.Step)
		assert.True(t, isStep)
	})

	t.Run("nested child of larger group", func(t *testing.T) {
		tl := Timeline{group("G", step("B", 1), step("C", 2), step("E", 4))}
		out, err := DeleteByID(tl, "C")
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "E"}, ids(out[0].(ir.Group).Items))
		assert.Len(t, tl[0].(ir.Group).Items, 3)
	})

	t.Run("unknown id", func(t *testing.T) {
		tl := sample()
		out, err := DeleteByID(tl, "nope")
		require.Error(t, err)
		assert.True(t, IsRecordingError(err))
		assert.Equal(t, tl, out)
	})
}

func TestUpdateByID(t *testing.T) {
	t.Run("group fields", func(t *testing.T) {
		name := "cleanup"
		collapsed := true
		tl, err := UpdateByID(sample(), "G", Patch{Name: &name, Collapsed: &collapsed})
		require.NoError(t, err)

		g, ok := FindGroupByID(tl, "G")
		require.True(t, ok)
		assert.Equal(t, "cleanup", g.Name)
		assert.True(t, g.Collapsed)
	})

	t.Run("nested step params", func(t *testing.T) {
		input := sample()
		tl, err := UpdateByID(input, "C", Patch{Params: ir.DeleteColumn{Index: 9}})
		require.NoError(t, err)

		s, ok := FindStepByID(tl, "C")
		require.True(t, ok)
		assert.Equal(t, ir.DeleteColumn{Index: 9}, s.Params)

		orig, _ := FindStepByID(input, "C")
		assert.Equal(t, ir.DeleteColumn{Index: 2}, orig.Params)
	})

	t.Run("group items shrink to one dissolves", func(t *testing.T) {
		tl, err := UpdateByID(sample(), "G", Patch{Items: []ir.Step{step("B", 1)}})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "D"}, itemIDs(tl))
	})

	tests := []struct {
		name  string
		id    string
		patch Patch
	}{
		{"kind change", "A", Patch{Params: ir.InsertRow{Index: 0, Position: ir.Above}}},
		{"step field on group", "G", Patch{Params: ir.DeleteColumn{Index: 1}}},
		{"group field on step", "A", Patch{Items: []ir.Step{step("X", 0)}}},
		{"duplicate id in items", "G", Patch{Items: []ir.Step{step("A", 1), step("C", 2)}}},
		{"unknown id", "nope", Patch{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := sample()
			out, err := UpdateByID(tl, tt.id, tt.patch)
			require.Error(t, err)
			assert.True(t, IsRecordingError(err))
			assert.Equal(t, tl, out)
		})
	}
}

func TestFindItemIndexByID(t *testing.T) {
	tl := sample()

	idx, child, ok := FindItemIndexByID(tl, "G")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, -1, child)

	idx, child, ok = FindItemIndexByID(tl, "C")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 1, child)

	_, ok = FindStepByID(tl, "G")
	assert.False(t, ok, "groups are not steps")

	_, _, ok = FindItemIndexByID(tl, "nope")
	assert.False(t, ok)
}

func TestGroupStepsAndUngroup(t *testing.T) {
	tl := Timeline{step("A", 0), step("B", 1), step("C", 2), step("D", 3)}

	grouped, err := GroupSteps(tl, "G", "pair", recordedAt, "D", "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "G", "C"}, itemIDs(grouped))
	assert.Equal(t, []string{"B", "D"}, ids(grouped[1].(ir.Group).Items))
	assert.Equal(t, []string{"A", "B", "D", "C"}, ids(Flatten(grouped)))

	ungrouped, err := Ungroup(grouped, "G")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D", "C"}, itemIDs(ungrouped))
}

func TestGroupStepsRejects(t *testing.T) {
	tl := sample()

	for name, stepIDs := range map[string][]string{
		"single step":  {"A"},
		"nested step":  {"A", "B"},
		"twice":        {"A", "A"},
		"unknown step": {"A", "Z"},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := GroupSteps(tl, "H", "x", recordedAt, stepIDs...)
			require.Error(t, err)
			assert.Equal(t, tl, out)
		})
	}

	_, err := GroupSteps(tl, "A", "x", recordedAt, "A", "D")
	assert.Error(t, err, "group id collides with a step id")
}

func TestAppendAndInsertAt(t *testing.T) {
	tl, err := Append(nil, step("A", 0), step("B", 1))
	require.NoError(t, err)

	tl, err = InsertAt(tl, 1, group("G", step("C", 2), step("D", 3)))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "G", "B"}, itemIDs(tl))

	_, err = Append(tl, step("C", 4))
	assert.Error(t, err, "duplicate nested id")

	_, err = InsertAt(tl, 7, step("E", 5))
	assert.Error(t, err)

	_, err = Append(tl, group("H", step("E", 5)))
	assert.Error(t, err, "single-step group")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(sample()))
	assert.Error(t, Validate(Timeline{ir.Step{ID: "A"}}), "missing params")
	assert.Error(t, Validate(Timeline{step("", 0)}))
}
