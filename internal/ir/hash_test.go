package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []StepRecord {
	return []StepRecord{
		{Seq: 1, Type: KindInsertRow, Params: IRObject{"index": IRInt(0), "position": IRString("above")}},
		{Seq: 2, Type: KindDeleteColumn, Disabled: true, Params: IRObject{"index": IRInt(3)}},
	}
}

func TestMarshalRecordsCanonical(t *testing.T) {
	data, err := MarshalRecords(sampleRecords())
	require.NoError(t, err)

	expected := `[{"disabled":false,"params":{"index":0,"position":"above"},"seq":1,"type":"INSERT_ROW"},` +
		`{"disabled":true,"params":{"index":3},"seq":2,"type":"DELETE_COLUMN"}]`
	assert.Equal(t, expected, string(data))
}

func TestPatternHashDeterminism(t *testing.T) {
	h1, err := PatternHash(sampleRecords())
	require.NoError(t, err)
	h2, err := PatternHash(sampleRecords())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestPatternHashChangesWithContent(t *testing.T) {
	base, err := PatternHash(sampleRecords())
	require.NoError(t, err)

	changed := sampleRecords()
	changed[1].Disabled = false
	other, err := PatternHash(changed)
	require.NoError(t, err)

	assert.NotEqual(t, base, other)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`[]`)
	assert.NotEqual(t, hashWithDomain(DomainPattern, data), hashWithDomain(DomainRecord, data))
}

func TestRecordHash(t *testing.T) {
	records := sampleRecords()
	h1, err := RecordHash(records[0])
	require.NoError(t, err)
	h2, err := RecordHash(records[1])
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestRecordObjectNilParams(t *testing.T) {
	obj := StepRecord{Seq: 1, Type: KindDeleteRow}.Object()
	assert.Equal(t, IRObject{}, obj["params"])
}
