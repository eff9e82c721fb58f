package compiler

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/timeline"
)

var recordedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func renameStep() ir.Step {
	return ir.Step{ID: "s1", CreatedAt: recordedAt, Params: ir.SetColumnName{
		HeaderRowIndex: 0,
		FromHeader:     "Qty",
		ToHeader:       "Quantity",
		ColumnRef:      ir.ColumnRef{Index: 2},
		ColumnLocator:  ir.HeaderLocator("Qty", 2),
	}}
}

func formulaStep() ir.Step {
	return ir.Step{ID: "s2", CreatedAt: recordedAt, Params: ir.ApplyFormula{
		Target:  ir.Coordinate{Row: 0, Col: 3},
		A1:      "D1",
		Formula: "=B1*C1",
	}}
}

func deleteStep(disabled bool) ir.Step {
	return ir.Step{ID: "s3", Disabled: disabled, CreatedAt: recordedAt, Params: ir.DeleteColumn{Index: 5}}
}

// sampleTimeline is [rename, group{formula, delete(disabled)}].
func sampleTimeline() timeline.Timeline {
	return timeline.Timeline{
		renameStep(),
		ir.Group{ID: "g1", Name: "totals", Items: []ir.Step{formulaStep(), deleteStep(true)}, CreatedAt: recordedAt},
	}
}

func TestCompileTimelineDeterministic(t *testing.T) {
	first, err := CompileTimeline(sampleTimeline())
	require.NoError(t, err)
	second, err := CompileTimeline(sampleTimeline())
	require.NoError(t, err)

	assert.Equal(t, first, second)

	a, err := ir.MarshalRecords(first)
	require.NoError(t, err)
	b, err := ir.MarshalRecords(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompileTimelineGroupConsumesOneSeq(t *testing.T) {
	records, err := CompileTimeline(sampleTimeline())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].Seq)
	assert.Equal(t, ir.KindSetColumnName, records[0].Type)

	group := records[1]
	assert.Equal(t, 2, group.Seq, "a group of two advances seq by exactly one")
	assert.Equal(t, ir.KindGroup, group.Type)
	assert.False(t, group.Disabled)
	assert.Equal(t, ir.IRString("totals"), group.Params["name"])

	items := group.Params["items"].(ir.IRArray)
	require.Len(t, items, 2)
	child := items[1].(ir.IRObject)
	assert.Equal(t, ir.IRString(ir.KindDeleteColumn), child["type"])
	assert.Equal(t, ir.IRBool(true), child["disabled"])
	_, hasSeq := child["seq"]
	assert.False(t, hasSeq, "group children carry no seq")
}

func TestCompileTimelineGolden(t *testing.T) {
	records, err := CompileTimeline(sampleTimeline())
	require.NoError(t, err)

	data, err := ir.MarshalRecords(records)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "compile_rename_totals", append(data, '\n'))
}

func TestCompileTimelineErrors(t *testing.T) {
	_, err := CompileTimeline(nil)
	require.Error(t, err)
	assert.True(t, IsCompileError(err))

	_, err = CompileTimeline(timeline.Timeline{
		ir.Group{ID: "g1", Items: []ir.Step{formulaStep()}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 2")

	_, err = CompileTimeline(timeline.Timeline{
		ir.Step{ID: "bad", Params: ir.InsertRow{Index: 0, Position: "sideways"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0].params")
}

func TestExpandDropsDisabledAndExpandsGroups(t *testing.T) {
	records, err := CompileTimeline(sampleTimeline())
	require.NoError(t, err)

	steps, err := Expand(records)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, ExecStep{Position: 0, Seq: 1, Child: -1, Params: renameStep().Params}, steps[0])
	assert.Equal(t, ExecStep{Position: 1, Seq: 2, Child: 0, Params: formulaStep().Params}, steps[1])
}

func TestExpandOrdersBySeq(t *testing.T) {
	records := []ir.StepRecord{
		{Seq: 2, Type: ir.KindDeleteRow, Params: ir.IRObject{"index": ir.IRInt(1)}},
		{Seq: 1, Type: ir.KindDeleteRow, Params: ir.IRObject{"index": ir.IRInt(0)}},
	}
	steps, err := Expand(records)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, ir.DeleteRow{Index: 0}, steps[0].Params)
	assert.Equal(t, 1, steps[1].Position)

	// Input order is untouched.
	assert.Equal(t, 2, records[0].Seq)
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []ir.StepRecord
	}{
		{"duplicate seq", []ir.StepRecord{
			{Seq: 1, Type: ir.KindDeleteRow, Params: ir.IRObject{"index": ir.IRInt(0)}},
			{Seq: 1, Type: ir.KindDeleteRow, Params: ir.IRObject{"index": ir.IRInt(0)}},
		}},
		{"unknown type", []ir.StepRecord{{Seq: 1, Type: "MERGE", Params: ir.IRObject{}}}},
		{"bad params", []ir.StepRecord{{Seq: 1, Type: ir.KindDeleteRow, Params: ir.IRObject{}}}},
		{"nested group", []ir.StepRecord{{Seq: 1, Type: ir.KindGroup, Params: ir.IRObject{
			"name": ir.IRString("outer"),
			"items": ir.IRArray{
				ir.IRObject{"type": ir.IRString("GROUP"), "params": ir.IRObject{}},
				ir.IRObject{"type": ir.IRString("DELETE_ROW"), "params": ir.IRObject{"index": ir.IRInt(0)}},
			},
		}}}},
		{"short group", []ir.StepRecord{{Seq: 1, Type: ir.KindGroup, Params: ir.IRObject{
			"name":  ir.IRString("solo"),
			"items": ir.IRArray{ir.IRObject{"type": ir.IRString("DELETE_ROW"), "params": ir.IRObject{"index": ir.IRInt(0)}}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.records)
			require.Error(t, err)
			assert.True(t, IsCompileError(err))
		})
	}
}

func TestEnabledCount(t *testing.T) {
	tl := timeline.Timeline{deleteStep(true)}
	records, err := CompileTimeline(tl)
	require.NoError(t, err)

	n, err := EnabledCount(records)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewPattern(t *testing.T) {
	records, err := CompileTimeline(sampleTimeline())
	require.NoError(t, err)

	p, err := NewPattern("p1", "rename", "", ir.Origin{SheetID: "sheet-a"}, records, recordedAt)
	require.NoError(t, err)
	assert.Equal(t, ir.PatternFormatVersion, p.Version)
	assert.Len(t, p.ContentHash, 64)

	other, err := NewPattern("p2", "renamed copy", "desc", ir.Origin{}, records, recordedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, p.ContentHash, other.ContentHash, "hash covers steps only")

	_, err = NewPattern("p3", "", "", ir.Origin{}, records, recordedAt)
	assert.Error(t, err)
}
