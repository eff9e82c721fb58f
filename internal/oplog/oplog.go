// Package oplog records row and column inserts and deletes so each can be
// reverted on its own.
//
// Positions held by the log are kept current: reverting an operation shifts
// the recorded position of every later, still-applied operation on the same
// axis, so a later revert removes or restores the rows it actually created.
package oplog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/sheetflow/internal/ids"
	"github.com/roach88/sheetflow/internal/ir"
)

// Error codes for structural-operation failures.
const (
	ErrCodeNotFound        = "OPERATION_NOT_FOUND"
	ErrCodeRevertAmbiguous = "REVERT_AMBIGUOUS"
	ErrCodeInvalid         = "INVALID_OPERATION"
)

// OpError reports a structural operation that cannot be recorded or reverted.
type OpError struct {
	Code        string
	OperationID string
	Message     string
}

func (e *OpError) Error() string {
	if e.OperationID == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: operation %s: %s", e.Code, e.OperationID, e.Message)
}

// IsRevertAmbiguous reports whether err is a revert blocked by later operations.
func IsRevertAmbiguous(err error) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Code == ErrCodeRevertAmbiguous
}

// IsNotFound reports whether err names an unknown operation.
func IsNotFound(err error) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Code == ErrCodeNotFound
}

// Recorder persists operations. RecordOperations upserts by operation id and
// must be atomic: either every operation in the call is stored or none is.
// Append passes the new operation; a revert passes the reverted operation
// together with every operation whose position it shifted.
type Recorder interface {
	RecordOperations(ctx context.Context, ops ...ir.StructuralOperation) error
}

// Option configures a Log.
type Option func(*Log)

// WithGenerator sets the operation id generator (UUIDv7 by default).
func WithGenerator(g ids.Generator) Option {
	return func(l *Log) { l.gen = g }
}

// WithNow sets the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithRecorder persists every change through r.
func WithRecorder(r Recorder) Option {
	return func(l *Log) { l.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// Log is an ordered, in-memory log of structural operations across sheets.
//
// Thread-safety: Log is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	ops      []ir.StructuralOperation
	index    map[string]int
	seq      int64
	gen      ids.Generator
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		index:  make(map[string]int),
		gen:    ids.UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the log's contents with previously recorded operations,
// ordered by seq. New operations continue after the highest seq.
func (l *Log) Load(ops []ir.StructuralOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ops = append([]ir.StructuralOperation(nil), ops...)
	sort.SliceStable(l.ops, func(i, j int) bool { return l.ops[i].Seq < l.ops[j].Seq })
	l.index = make(map[string]int, len(l.ops))
	l.seq = 0
	for i, op := range l.ops {
		l.index[op.OperationID] = i
		l.seq = max(l.seq, op.Seq)
	}
}

// Append records a newly applied operation and returns it with its id.
func (l *Log) Append(ctx context.Context, sheetID string, kind ir.OperationKind, position, count int) (ir.StructuralOperation, error) {
	switch kind {
	case ir.OpInsertRow, ir.OpInsertColumn, ir.OpDeleteRow, ir.OpDeleteColumn:
	default:
		return ir.StructuralOperation{}, &OpError{Code: ErrCodeInvalid, Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	if position < 0 || count < 1 {
		return ir.StructuralOperation{}, &OpError{Code: ErrCodeInvalid, Message: fmt.Sprintf("position %d count %d", position, count)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	op := ir.StructuralOperation{
		OperationID: l.gen.Generate(),
		SheetID:     sheetID,
		Kind:        kind,
		Position:    position,
		Count:       count,
		Seq:         l.seq,
		CreatedAt:   l.now().UTC(),
	}
	if l.recorder != nil {
		if err := l.recorder.RecordOperations(ctx, op); err != nil {
			l.seq--
			return ir.StructuralOperation{}, fmt.Errorf("record operation: %w", err)
		}
	}
	l.index[op.OperationID] = len(l.ops)
	l.ops = append(l.ops, op)

	l.logger.Debug("structural operation recorded",
		"operation_id", op.OperationID,
		"sheet_id", sheetID,
		"kind", kind,
		"position", position,
		"count", count)
	return op, nil
}

// Get returns the operation with the given id.
func (l *Log) Get(operationID string) (ir.StructuralOperation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[operationID]
	if !ok {
		return ir.StructuralOperation{}, false
	}
	return l.ops[i], true
}

// List returns the operations recorded against sheetID in seq order. An
// empty sheetID lists every sheet.
func (l *Log) List(sheetID string) []ir.StructuralOperation {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ir.StructuralOperation
	for _, op := range l.ops {
		if sheetID == "" || op.SheetID == sheetID {
			out = append(out, op)
		}
	}
	return out
}

// PrepareRevert checks that operationID on sheetID can be reverted and
// returns it. The caller undoes the structural change and then calls
// MarkReverted.
//
// An insert of [P, P+C) is ambiguous while a later applied operation on the
// same axis sits at a position below P+C. A delete at P is ambiguous while a
// later applied operation on the same axis sits at a position at or below P.
// An already reverted operation is returned with no error; callers treat the
// revert as done.
func (l *Log) PrepareRevert(sheetID, operationID string) (ir.StructuralOperation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[operationID]
	if !ok || l.ops[i].SheetID != sheetID {
		return ir.StructuralOperation{}, &OpError{Code: ErrCodeNotFound, OperationID: operationID, Message: "no such operation on this sheet"}
	}
	op := l.ops[i]
	if op.IsReverted {
		return op, nil
	}

	for _, later := range l.ops[i+1:] {
		if later.SheetID != op.SheetID || later.IsReverted || later.Kind.Axis() != op.Kind.Axis() {
			continue
		}
		if conflicts(op, later) {
			return ir.StructuralOperation{}, &OpError{
				Code:        ErrCodeRevertAmbiguous,
				OperationID: operationID,
				Message: fmt.Sprintf("later %s at %d (operation %s) overlaps; revert it first",
					later.Kind, later.Position, later.OperationID),
			}
		}
	}
	return op, nil
}

func conflicts(op, later ir.StructuralOperation) bool {
	if op.Kind.IsInsert() {
		return later.Position < op.End()
	}
	return later.Position <= op.Position
}

// MarkReverted flags operationID as reverted and shifts the positions of the
// later applied operations on the same axis. Marking an already reverted
// operation is a no-op.
func (l *Log) MarkReverted(ctx context.Context, operationID string) (ir.StructuralOperation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[operationID]
	if !ok {
		return ir.StructuralOperation{}, &OpError{Code: ErrCodeNotFound, OperationID: operationID, Message: "no such operation"}
	}
	op := l.ops[i]
	if op.IsReverted {
		return op, nil
	}

	shift := op.Count
	if op.Kind.IsInsert() {
		shift = -op.Count
	}

	updated := make(map[int]ir.StructuralOperation)
	op.IsReverted = true
	updated[i] = op
	for j := i + 1; j < len(l.ops); j++ {
		later := l.ops[j]
		if later.SheetID != op.SheetID || later.IsReverted || later.Kind.Axis() != op.Kind.Axis() {
			continue
		}
		later.Position += shift
		updated[j] = later
	}

	if l.recorder != nil {
		batch := make([]ir.StructuralOperation, 0, len(updated))
		for j := i; j < len(l.ops); j++ {
			if u, ok := updated[j]; ok {
				batch = append(batch, u)
			}
		}
		if err := l.recorder.RecordOperations(ctx, batch...); err != nil {
			return ir.StructuralOperation{}, fmt.Errorf("record revert: %w", err)
		}
	}
	for j, u := range updated {
		l.ops[j] = u
	}

	l.logger.Debug("structural operation reverted",
		"operation_id", op.OperationID,
		"sheet_id", op.SheetID,
		"kind", op.Kind,
		"shifted", len(updated)-1)
	return op, nil
}
