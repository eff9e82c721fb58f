package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func allParams() []Params {
	return []Params{
		ApplyFormula{Target: Coordinate{Row: 0, Col: 3}, A1: "D1", Formula: "=B1*C1"},
		InsertRow{Index: 4, Position: Below},
		InsertColumn{Index: 1, Position: Left},
		DeleteRow{Index: 2},
		DeleteColumn{Index: 0},
		FillSeries{Source: Coordinate{Row: 1, Col: 0}, Range: Range{StartRow: 1, EndRow: 9, StartCol: 0, EndCol: 0}},
		SetColumnName{
			HeaderRowIndex: 0,
			FromHeader:     "Qty",
			ToHeader:       "Quantity",
			ColumnRef:      ColumnRef{Index: 2},
			ColumnLocator:  HeaderLocator("Qty", 2),
		},
		ApplyHighlight{
			Color:          "#FFEB3B",
			Scope:          ScopeColumn,
			HeaderRowIndex: 0,
			Target:         HighlightTarget{ByHeader: HeaderLocator("Revenue", 3)},
		},
		ApplyHighlight{
			Color:  "#FF0000",
			Scope:  ScopeRange,
			Target: HighlightTarget{Range: &Range{StartRow: 1, EndRow: 2, StartCol: 1, EndCol: 2}},
		},
	}
}

func TestParamsEncodeDecodeRoundTrip(t *testing.T) {
	for _, p := range allParams() {
		t.Run(string(p.Kind()), func(t *testing.T) {
			require.NoError(t, ValidateParams(p))

			obj, err := EncodeParams(p)
			require.NoError(t, err)

			decoded, err := DecodeParams(p.Kind(), obj)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestParamsSurviveJSONStorage(t *testing.T) {
	// Params are stored as JSON in sqlite and decoded back through IRObject.
	p := SetColumnName{
		HeaderRowIndex: 1,
		FromHeader:     "Price",
		ToHeader:       "Unit Price",
		ColumnRef:      ColumnRef{Index: 5},
		ColumnLocator:  HeaderLocator("Price", 5),
	}
	obj, err := EncodeParams(p)
	require.NoError(t, err)

	data, err := json.Marshal(obj)
	require.NoError(t, err)

	var stored IRObject
	require.NoError(t, json.Unmarshal(data, &stored))

	decoded, err := DecodeParams(KindSetColumnName, stored)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodeParamsNullLocatorFields(t *testing.T) {
	var obj IRObject
	require.NoError(t, json.Unmarshal([]byte(`{
		"header_row_index": 0,
		"to_header": "Total",
		"column_ref": {"index": 4},
		"column_locator": {"strategy": "BY_HEADER_TEXT", "from_header": null, "fallback_index": 4}
	}`), &obj))

	decoded, err := DecodeParams(KindSetColumnName, obj)
	require.NoError(t, err)

	params := decoded.(SetColumnName)
	require.NotNil(t, params.ColumnLocator)
	assert.Nil(t, params.ColumnLocator.FromHeader)
	assert.Equal(t, intPtr(4), params.ColumnLocator.FallbackIndex)
}

func TestDecodeParamsErrors(t *testing.T) {
	tests := []struct {
		name  string
		kind  StepKind
		obj   IRObject
		field string
	}{
		{"missing index", KindInsertRow, IRObject{"position": IRString("above")}, "index"},
		{"wrong type", KindDeleteColumn, IRObject{"index": IRString("2")}, "index"},
		{"nested field", KindApplyFormula, IRObject{"target": IRObject{"row": IRInt(0)}, "formula": IRString("=1")}, "target.col"},
		{"missing column_ref", KindSetColumnName, IRObject{"header_row_index": IRInt(0), "to_header": IRString("X")}, "column_ref"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeParams(tt.kind, tt.obj)
			require.Error(t, err)

			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestDecodeParamsUnknownKind(t *testing.T) {
	_, err := DecodeParams("MERGE_CELLS", IRObject{})
	assert.Error(t, err)

	_, err = DecodeParams(KindGroup, IRObject{})
	assert.Error(t, err, "groups are not step parameters")
}

func TestValidateParamsRejects(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		field  string
	}{
		{"negative target", ApplyFormula{Target: Coordinate{Row: -1}, Formula: "=1"}, "target"},
		{"empty formula", ApplyFormula{}, "formula"},
		{"bad row position", InsertRow{Index: 0, Position: "left"}, "position"},
		{"bad column position", InsertColumn{Index: 0, Position: "below"}, "position"},
		{"negative delete", DeleteColumn{Index: -1}, "index"},
		{"inverted range", FillSeries{Range: Range{StartRow: 3, EndRow: 1}}, "range"},
		{"empty header", SetColumnName{ColumnRef: ColumnRef{Index: 0}}, "to_header"},
		{"unknown scope", ApplyHighlight{Color: "red", Scope: "SHEET"}, "scope"},
		{"row scope without row", ApplyHighlight{Color: "red", Scope: ScopeRow}, "target.row"},
		{"cell scope without column", ApplyHighlight{Color: "red", Scope: ScopeCell, Target: HighlightTarget{Row: intPtr(1)}}, "target"},
		{"target past last row", ApplyFormula{Target: Coordinate{Row: MaxRows}, Formula: "=1"}, "target"},
		{"oversized fill", FillSeries{Range: Range{EndRow: 10_000_000, EndCol: 10_000_000}}, "range"},
		{"fill over cell cap", FillSeries{Range: Range{EndRow: MaxRows - 1, EndCol: 1}}, "range"},
		{"oversized highlight", ApplyHighlight{Color: "red", Scope: ScopeRange, Target: HighlightTarget{Range: &Range{EndRow: 10_000_000, EndCol: 10_000_000}}}, "target.range"},
		{"highlight column past limit", ApplyHighlight{Color: "red", Scope: ScopeColumn, Target: HighlightTarget{Col: intPtr(MaxCols)}}, "target.col"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParams(tt.params)
			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}
