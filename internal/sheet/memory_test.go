package sheet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetflow/internal/ids"
	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/oplog"
)

func strPtr(s string) *string { return &s }

func newOrders(t *testing.T) *Memory {
	t.Helper()
	log := oplog.New(oplog.WithGenerator(ids.NewSequenceGenerator("op")))
	return FromRows("orders", [][]string{
		{"Item", "Price", "Qty"},
		{"Pen", "1.5", "4"},
		{"Ink", "3", "2"},
	}, log)
}

func raw(m *Memory, row, col int) string {
	c, _ := m.Cell(row, col)
	return c.RawInput
}

func TestFromRowsAndReadRange(t *testing.T) {
	m := newOrders(t)
	ctx := context.Background()

	rows, cols, err := m.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)

	header, err := m.ReadRange(ctx, 0, 0, 0, 2)
	require.NoError(t, err)
	require.Len(t, header, 3)
	assert.Equal(t, "Qty", header[2].DisplayText())
	assert.Equal(t, ir.ComputedString, header[2].ComputedType)

	cells, err := m.ReadRange(ctx, 1, 2, 1, 1)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, ir.ComputedNumber, cells[0].ComputedType)
	assert.Equal(t, 1.5, *cells[0].ComputedNumber)

	_, err = m.ReadRange(ctx, 2, 1, 0, 0)
	assert.Error(t, err)
}

func TestBatchUpdateCells(t *testing.T) {
	m := newOrders(t)
	ctx := context.Background()

	res, err := m.BatchUpdateCells(ctx, []ir.CellOp{
		{Row: 0, Col: 3, RawInput: strPtr("=B1*C1")},
		{Row: 4, Col: 0, RawInput: strPtr("Total")},
		{Row: 1, Col: 0, Clear: true},
		{Row: 2, Col: 0, Highlight: strPtr("#FFEB3B")},
	})
	require.NoError(t, err)
	assert.Equal(t, ir.BatchResult{Updated: 3, Cleared: 1, RowsExpanded: 2, ColumnsExpanded: 1}, res)

	c, ok := m.Cell(0, 3)
	require.True(t, ok)
	assert.Equal(t, ir.ComputedFormula, c.ComputedType)
	assert.Equal(t, "=B1*C1", c.RawInput)

	_, ok = m.Cell(1, 0)
	assert.False(t, ok)

	c, _ = m.Cell(2, 0)
	assert.Equal(t, "Ink", c.RawInput)
	assert.Equal(t, "#FFEB3B", c.Highlight)

	rows, cols, _ := m.Dimensions(ctx)
	assert.Equal(t, 5, rows)
	assert.Equal(t, 4, cols)

	_, err = m.BatchUpdateCells(ctx, []ir.CellOp{{Row: -1, Col: 0, RawInput: strPtr("x")}})
	assert.Error(t, err)
}

func TestInsertAndDeleteRows(t *testing.T) {
	m := newOrders(t)
	ctx := context.Background()

	ins, err := m.InsertRows(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, ir.InsertResult{CreatedCount: 2, NewTotal: 5, OperationID: "op-1"}, ins)
	assert.Equal(t, "Pen", raw(m, 3, 0))
	assert.Equal(t, "", raw(m, 1, 0))

	del, err := m.DeleteRows(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.DeleteResult{DeletedCount: 1, NewTotal: 4, OperationID: "op-2"}, del)
	assert.Equal(t, "Pen", raw(m, 2, 0))

	_, err = m.DeleteRows(ctx, 3, 2)
	assert.True(t, IsRangeError(err))
	_, err = m.InsertRows(ctx, 9, 1)
	assert.True(t, IsRangeError(err))
	assert.Len(t, m.Log().List("orders"), 2, "rejected calls are not logged")
}

func TestDeleteColumnsShiftsLeft(t *testing.T) {
	m := FromRows("s", [][]string{{"A", "B", "C", "D", "E"}}, nil)
	ctx := context.Background()

	res, err := m.DeleteColumns(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Equal(t, 3, res.NewTotal)

	var got []string
	for _, c := range m.Snapshot() {
		got = append(got, c.RawInput)
	}
	assert.Equal(t, []string{"A", "D", "E"}, got)
	assert.Equal(t, "D", raw(m, 0, 1))
}

func TestInsertColumnsAtEnd(t *testing.T) {
	m := newOrders(t)
	res, err := m.InsertColumns(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, res.NewTotal)
	assert.Equal(t, "Qty", raw(m, 0, 2))
}

func TestRevertInsertRemovesBlock(t *testing.T) {
	m := newOrders(t)
	ctx := context.Background()

	ins, err := m.InsertColumns(ctx, 1, 1)
	require.NoError(t, err)
	_, err = m.BatchUpdateCells(ctx, []ir.CellOp{{Row: 0, Col: 1, RawInput: strPtr("SKU")}})
	require.NoError(t, err)

	res, err := m.Revert(ctx, ins.OperationID)
	require.NoError(t, err)
	assert.Equal(t, ir.RevertResult{OperationID: ins.OperationID, IsReverted: true}, res)

	assert.Equal(t, "Price", raw(m, 0, 1))
	_, cols, _ := m.Dimensions(ctx)
	assert.Equal(t, 3, cols)

	// Idempotent.
	res, err = m.Revert(ctx, ins.OperationID)
	require.NoError(t, err)
	assert.True(t, res.IsReverted)
	_, cols, _ = m.Dimensions(ctx)
	assert.Equal(t, 3, cols)
}

func TestRevertDeleteRestoresStructureOnly(t *testing.T) {
	m := newOrders(t)
	ctx := context.Background()

	del, err := m.DeleteColumns(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Qty", raw(m, 0, 1))

	_, err = m.Revert(ctx, del.OperationID)
	require.NoError(t, err)

	_, cols, _ := m.Dimensions(ctx)
	assert.Equal(t, 3, cols)
	assert.Equal(t, "", raw(m, 0, 1), "content is not restored")
	assert.Equal(t, "Qty", raw(m, 0, 2))
}

func TestRevertChainAfterShift(t *testing.T) {
	m := FromRows("s", [][]string{{"r0"}, {"r1"}, {"r2"}, {"r3"}}, nil)
	ctx := context.Background()

	first, err := m.InsertRows(ctx, 1, 1) // r0, _, r1, r2, r3
	require.NoError(t, err)
	second, err := m.InsertRows(ctx, 4, 1) // r0, _, r1, r2, _, r3
	require.NoError(t, err)

	_, err = m.Revert(ctx, first.OperationID) // r0, r1, r2, _, r3
	require.NoError(t, err)
	_, err = m.Revert(ctx, second.OperationID) // r0, r1, r2, r3
	require.NoError(t, err)

	var got []string
	for _, c := range m.Snapshot() {
		got = append(got, c.RawInput)
	}
	assert.Equal(t, []string{"r0", "r1", "r2", "r3"}, got)
	assert.Equal(t, "r3", raw(m, 3, 0))
}

func TestRevertAmbiguous(t *testing.T) {
	m := newOrders(t)
	ctx := context.Background()

	first, err := m.InsertRows(ctx, 2, 1)
	require.NoError(t, err)
	_, err = m.InsertRows(ctx, 1, 1)
	require.NoError(t, err)

	_, err = m.Revert(ctx, first.OperationID)
	require.Error(t, err)
	assert.True(t, oplog.IsRevertAmbiguous(err))
	rows, _, _ := m.Dimensions(ctx)
	assert.Equal(t, 5, rows, "sheet untouched")
}

func TestRevertForeignOperation(t *testing.T) {
	log := oplog.New()
	a := NewMemory("a", 2, 2, log)
	b := NewMemory("b", 2, 2, log)

	ins, err := a.InsertRows(context.Background(), 0, 1)
	require.NoError(t, err)

	_, err = b.Revert(context.Background(), ins.OperationID)
	assert.True(t, oplog.IsNotFound(err))
}

func TestCanceledContext(t *testing.T) {
	m := newOrders(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, m.Ping(ctx))
	_, err := m.InsertRows(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
