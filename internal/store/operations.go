package store

import (
	"context"
	"fmt"

	"github.com/roach88/sheetflow/internal/ir"
)

// RecordOperations upserts structural operations in one transaction, so a
// failure leaves none of them written. Implements oplog.Recorder: the log calls
// it on append and again with every operation a revert touches.
func (s *Store) RecordOperations(ctx context.Context, ops ...ir.StructuralOperation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record operations: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, op := range ops {
		if op.OperationID == "" {
			return fmt.Errorf("record operation: empty operation id")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO structural_operations
			(operation_id, sheet_id, kind, position, count, is_reverted, seq, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(operation_id) DO UPDATE SET
				position    = excluded.position,
				is_reverted = excluded.is_reverted
		`,
			op.OperationID,
			op.SheetID,
			string(op.Kind),
			op.Position,
			op.Count,
			boolInt(op.IsReverted),
			op.Seq,
			formatTime(op.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("record operation %s: %w", op.OperationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record operations: commit: %w", err)
	}
	return nil
}

// ListOperations returns the operation log in seq order. A non-empty sheetID
// keeps only that sheet's operations.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListOperations(ctx context.Context, sheetID string) ([]ir.StructuralOperation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, sheet_id, kind, position, count, is_reverted, seq, created_at
		FROM structural_operations
		WHERE (? = '' OR sheet_id = ?)
		ORDER BY seq ASC, operation_id COLLATE BINARY ASC
	`, sheetID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []ir.StructuralOperation{}
	for rows.Next() {
		var op ir.StructuralOperation
		var kind, createdAt string
		var reverted int
		if err := rows.Scan(&op.OperationID, &op.SheetID, &kind, &op.Position, &op.Count, &reverted, &op.Seq, &createdAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Kind = ir.OperationKind(kind)
		op.IsReverted = reverted != 0
		if op.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}
