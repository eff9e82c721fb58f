package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sheetflow/internal/ir"
)

// ErrPatternConflict is returned when a pattern id is reused for different
// steps.
var ErrPatternConflict = errors.New("pattern id already used for different steps")

// CreatePattern inserts a pattern and returns its summary.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: storing the same pattern
// twice succeeds, while reusing the id for other steps returns
// ErrPatternConflict.
func (s *Store) CreatePattern(ctx context.Context, p ir.Pattern) (ir.PatternSummary, error) {
	stepsJSON, err := marshalSteps(p.Steps)
	if err != nil {
		return ir.PatternSummary{}, fmt.Errorf("create pattern: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns
		(id, name, description, version, origin_spreadsheet_id, origin_sheet_id,
		 steps, step_count, content_hash, created_at, is_archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		p.ID,
		p.Name,
		p.Description,
		p.Version,
		p.Origin.SpreadsheetID,
		p.Origin.SheetID,
		stepsJSON,
		len(p.Steps),
		p.ContentHash,
		formatTime(p.CreatedAt),
		boolInt(p.IsArchived),
	)
	if err != nil {
		return ir.PatternSummary{}, fmt.Errorf("create pattern: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := s.GetPattern(ctx, p.ID)
		if err != nil {
			return ir.PatternSummary{}, fmt.Errorf("create pattern: %w", err)
		}
		if existing.ContentHash != p.ContentHash {
			return ir.PatternSummary{}, fmt.Errorf("create pattern %s: %w", p.ID, ErrPatternConflict)
		}
		return existing.Summary(), nil
	}
	return p.Summary(), nil
}

// GetPattern returns the pattern with its step records.
func (s *Store) GetPattern(ctx context.Context, id string) (ir.Pattern, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, version, origin_spreadsheet_id, origin_sheet_id,
		       steps, content_hash, created_at, is_archived
		FROM patterns
		WHERE id = ?
	`, id)

	var p ir.Pattern
	var stepsJSON, createdAt string
	var archived int
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Version, &p.Origin.SpreadsheetID, &p.Origin.SheetID,
		&stepsJSON, &p.ContentHash, &createdAt, &archived,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Pattern{}, fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Pattern{}, fmt.Errorf("get pattern %s: %w", id, err)
	}

	if p.Steps, err = unmarshalSteps(stepsJSON); err != nil {
		return ir.Pattern{}, fmt.Errorf("get pattern %s: %w", id, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return ir.Pattern{}, fmt.Errorf("get pattern %s: %w", id, err)
	}
	p.IsArchived = archived != 0
	return p, nil
}

// ListPatterns returns pattern summaries ordered by creation. A non-empty
// originSheetID keeps only patterns recorded on that sheet. Archived patterns
// are included only when includeArchived is set.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListPatterns(ctx context.Context, originSheetID string, includeArchived bool) ([]ir.PatternSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, version, origin_spreadsheet_id, origin_sheet_id,
		       step_count, content_hash, created_at, is_archived
		FROM patterns
		WHERE (? = '' OR origin_sheet_id = ?)
		  AND (? OR is_archived = 0)
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, originSheetID, originSheetID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	summaries := []ir.PatternSummary{}
	for rows.Next() {
		var p ir.PatternSummary
		var createdAt string
		var archived int
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Version, &p.Origin.SpreadsheetID, &p.Origin.SheetID,
			&p.StepCount, &p.ContentHash, &createdAt, &archived,
		); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		p.IsArchived = archived != 0
		summaries = append(summaries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return summaries, nil
}

// ArchivePattern hides a pattern from default listings. Jobs that reference
// it keep working.
func (s *Store) ArchivePattern(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE patterns SET is_archived = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("archive pattern %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	return nil
}
