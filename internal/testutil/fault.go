package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/sheet"
)

// Method names accepted by FaultTarget.FailOn.
const (
	MethodPing             = "Ping"
	MethodDimensions       = "Dimensions"
	MethodReadRange        = "ReadRange"
	MethodBatchUpdateCells = "BatchUpdateCells"
	MethodInsertRows       = "InsertRows"
	MethodInsertColumns    = "InsertColumns"
	MethodDeleteRows       = "DeleteRows"
	MethodDeleteColumns    = "DeleteColumns"
	MethodRevert           = "Revert"
)

// ErrInjected is the default error returned by an injected fault.
var ErrInjected = errors.New("injected fault")

type fault struct {
	call int // 1-based call of the method that fails; 0 fails every call
	err  error
}

// FaultTarget wraps a sheet.Target and fails chosen calls. Calls that are
// not faulted pass through to the wrapped target.
type FaultTarget struct {
	sheet.Target

	mu     sync.Mutex
	faults map[string][]fault
	calls  map[string]int

	// OnCall, when set, runs before every call with the method name and its
	// 1-based call count. Tests use it to act while a step is in flight.
	OnCall func(method string, n int)
}

// NewFaultTarget wraps t.
func NewFaultTarget(t sheet.Target) *FaultTarget {
	return &FaultTarget{
		Target: t,
		faults: make(map[string][]fault),
		calls:  make(map[string]int),
	}
}

// FailOn makes the call-th call of method return err. A call of 0 fails
// every call; a nil err means ErrInjected.
func (f *FaultTarget) FailOn(method string, call int, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[method] = append(f.faults[method], fault{call: call, err: err})
}

// Heal removes every configured fault.
func (f *FaultTarget) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[string][]fault)
}

// Calls returns how many times method has been called.
func (f *FaultTarget) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FaultTarget) check(method string) error {
	f.mu.Lock()
	f.calls[method]++
	n := f.calls[method]
	var err error
	for _, ft := range f.faults[method] {
		if ft.call == 0 || ft.call == n {
			err = ft.err
			break
		}
	}
	hook := f.OnCall
	f.mu.Unlock()

	if hook != nil {
		hook(method, n)
	}
	return err
}

// Ping implements sheet.Target.
func (f *FaultTarget) Ping(ctx context.Context) error {
	if err := f.check(MethodPing); err != nil {
		return err
	}
	return f.Target.Ping(ctx)
}

// Dimensions implements sheet.Target.
func (f *FaultTarget) Dimensions(ctx context.Context) (int, int, error) {
	if err := f.check(MethodDimensions); err != nil {
		return 0, 0, err
	}
	return f.Target.Dimensions(ctx)
}

// ReadRange implements sheet.Cells.
func (f *FaultTarget) ReadRange(ctx context.Context, rowStart, rowEnd, colStart, colEnd int) ([]ir.Cell, error) {
	if err := f.check(MethodReadRange); err != nil {
		return nil, err
	}
	return f.Target.ReadRange(ctx, rowStart, rowEnd, colStart, colEnd)
}

// BatchUpdateCells implements sheet.Cells.
func (f *FaultTarget) BatchUpdateCells(ctx context.Context, ops []ir.CellOp) (ir.BatchResult, error) {
	if err := f.check(MethodBatchUpdateCells); err != nil {
		return ir.BatchResult{}, err
	}
	return f.Target.BatchUpdateCells(ctx, ops)
}

// InsertRows implements sheet.Structure.
func (f *FaultTarget) InsertRows(ctx context.Context, position, count int) (ir.InsertResult, error) {
	if err := f.check(MethodInsertRows); err != nil {
		return ir.InsertResult{}, err
	}
	return f.Target.InsertRows(ctx, position, count)
}

// InsertColumns implements sheet.Structure.
func (f *FaultTarget) InsertColumns(ctx context.Context, position, count int) (ir.InsertResult, error) {
	if err := f.check(MethodInsertColumns); err != nil {
		return ir.InsertResult{}, err
	}
	return f.Target.InsertColumns(ctx, position, count)
}

// DeleteRows implements sheet.Structure.
func (f *FaultTarget) DeleteRows(ctx context.Context, position, count int) (ir.DeleteResult, error) {
	if err := f.check(MethodDeleteRows); err != nil {
		return ir.DeleteResult{}, err
	}
	return f.Target.DeleteRows(ctx, position, count)
}

// DeleteColumns implements sheet.Structure.
func (f *FaultTarget) DeleteColumns(ctx context.Context, position, count int) (ir.DeleteResult, error) {
	if err := f.check(MethodDeleteColumns); err != nil {
		return ir.DeleteResult{}, err
	}
	return f.Target.DeleteColumns(ctx, position, count)
}

// Revert implements sheet.Structure.
func (f *FaultTarget) Revert(ctx context.Context, operationID string) (ir.RevertResult, error) {
	if err := f.check(MethodRevert); err != nil {
		return ir.RevertResult{}, err
	}
	return f.Target.Revert(ctx, operationID)
}

var _ sheet.Target = (*FaultTarget)(nil)
