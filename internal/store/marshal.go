package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/sheetflow/internal/ir"
)

// marshalSteps converts step records to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical patterns store identical bytes.
func marshalSteps(records []ir.StepRecord) (string, error) {
	data, err := ir.MarshalRecords(records)
	if err != nil {
		return "", fmt.Errorf("marshal steps: %w", err)
	}
	return string(data), nil
}

// unmarshalSteps parses stored step records. Params decode through
// ir.IRObject.UnmarshalJSON, which keeps integers exact.
func unmarshalSteps(data string) ([]ir.StepRecord, error) {
	if data == "" {
		return []ir.StepRecord{}, nil
	}
	var records []ir.StepRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return records, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatOptTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseOptTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
