package ir

import "time"

// StepRecord is a compiled step: UI-only fields dropped, a 1-based Seq
// assigned, parameters carried as an IRObject. For a GROUP record, Params
// holds {"name": ..., "items": [{"type", "params", "disabled"}, ...]}.
type StepRecord struct {
	Seq      int      `json:"seq"`
	Type     StepKind `json:"type"`
	Disabled bool     `json:"disabled"`
	Params   IRObject `json:"params"`
}

// Object returns the record as an IRObject for canonical encoding.
func (r StepRecord) Object() IRObject {
	params := r.Params
	if params == nil {
		params = IRObject{}
	}
	return IRObject{
		"seq":      IRInt(r.Seq),
		"type":     IRString(r.Type),
		"disabled": IRBool(r.Disabled),
		"params":   params,
	}
}

// Origin identifies the sheet a pattern was recorded on.
type Origin struct {
	SpreadsheetID string `json:"spreadsheet_id,omitempty"`
	SheetID       string `json:"sheet_id,omitempty"`
}

// Pattern is a named, persisted, replayable sequence of compiled steps.
type Pattern struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Version     int          `json:"version"`
	Origin      Origin       `json:"origin"`
	Steps       []StepRecord `json:"steps"`
	ContentHash string       `json:"content_hash"`
	CreatedAt   time.Time    `json:"created_at"`
	IsArchived  bool         `json:"is_archived"`
}

// PatternSummary is the list view of a pattern.
type PatternSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	Origin      Origin    `json:"origin"`
	StepCount   int       `json:"step_count"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	IsArchived  bool      `json:"is_archived"`
}

// Summary returns the list view of p.
func (p Pattern) Summary() PatternSummary {
	return PatternSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		Origin:      p.Origin,
		StepCount:   len(p.Steps),
		ContentHash: p.ContentHash,
		CreatedAt:   p.CreatedAt,
		IsArchived:  p.IsArchived,
	}
}
