package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/sheetflow/internal/ir"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPattern builds a two-record pattern recorded on sheetID.
func createTestPattern(id, sheetID string, created time.Time) ir.Pattern {
	records := []ir.StepRecord{
		{
			Seq:    1,
			Type:   ir.KindInsertRow,
			Params: ir.IRObject{"index": ir.IRInt(0), "position": ir.IRString("below")},
		},
		{
			Seq:  2,
			Type: ir.KindGroup,
			Params: ir.IRObject{
				"name": ir.IRString("cleanup"),
				"items": ir.IRArray{
					ir.IRObject{"type": ir.IRString("DELETE_ROW"), "params": ir.IRObject{"index": ir.IRInt(3)}, "disabled": ir.IRBool(false)},
					ir.IRObject{"type": ir.IRString("DELETE_COLUMN"), "params": ir.IRObject{"index": ir.IRInt(1)}, "disabled": ir.IRBool(true)},
				},
			},
		},
	}
	hash, err := ir.PatternHash(records)
	if err != nil {
		panic(err)
	}
	return ir.Pattern{
		ID:          id,
		Name:        "pattern " + id,
		Description: "test",
		Version:     ir.PatternFormatVersion,
		Origin:      ir.Origin{SpreadsheetID: "book", SheetID: sheetID},
		Steps:       records,
		ContentHash: hash,
		CreatedAt:   created,
	}
}

// createTestJob builds a job with one applied and one pending step.
func createTestJob(id, patternID, sheetID string, created time.Time) ir.Job {
	return ir.Job{
		ID:        id,
		PatternID: patternID,
		SheetID:   sheetID,
		Status:    ir.JobQueued,
		CreatedAt: created,
		Steps: []ir.StepState{
			{Position: 0, Seq: 1, Kind: ir.KindInsertRow, Status: ir.StepPending},
			{Position: 1, Seq: 2, Kind: ir.KindDeleteRow, Status: ir.StepPending},
		},
	}
}
