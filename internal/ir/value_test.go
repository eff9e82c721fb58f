package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{"a": IRInt(1), "A": IRInt(2), "aa": IRInt(3), "Aa": IRInt(4), "AA": IRInt(5)}
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aa"}, obj.SortedKeys())
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"index":    IRInt(3),
		"position": IRString("above"),
		"nested":   IRObject{"flag": IRBool(true), "list": IRArray{IRInt(1)}},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"index":3,"nested":{"flag":true,"list":[1]},"position":"above"}`, string(data))

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obj, decoded)
}

func TestIRObjectUnmarshalKeepsNull(t *testing.T) {
	var decoded IRObject
	require.NoError(t, json.Unmarshal([]byte(`{"from_header":null}`), &decoded))
	assert.Equal(t, IRNull{}, decoded["from_header"])
}

func TestIRObjectUnmarshalRejectsFloat(t *testing.T) {
	var decoded IRObject
	err := json.Unmarshal([]byte(`{"index":1.5}`), &decoded)
	assert.Error(t, err)
}

func TestUnmarshalIRValueStrict(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`{"a":null}`))
	assert.Error(t, err, "null is rejected by the strict decoder")

	_, err = UnmarshalIRValue([]byte(`[1e3]`))
	assert.Error(t, err, "exponent notation is a float")

	v, err := UnmarshalIRValue([]byte(`{"a":[1,"b",true]}`))
	require.NoError(t, err)
	assert.Equal(t, IRObject{"a": IRArray{IRInt(1), IRString("b"), IRBool(true)}}, v)
}

func TestObjectFromMap(t *testing.T) {
	obj, err := ObjectFromMap(map[string]any{
		"index":    2,
		"position": "left",
		"skip":     nil,
		"range":    map[string]any{"start_row": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"index":    IRInt(2),
		"position": IRString("left"),
		"range":    IRObject{"start_row": IRInt(0)},
	}, obj)

	_, err = ObjectFromMap(map[string]any{"x": 1.5})
	assert.Error(t, err)
}
