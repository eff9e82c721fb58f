package sheet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/sheetflow/internal/ir"
	"github.com/roach88/sheetflow/internal/oplog"
)

// LoadXLSX reads one worksheet of a workbook into a Memory sheet whose id
// is the worksheet name. Formulas are kept as "=..." raw inputs and solid
// fills become highlights.
func LoadXLSX(path, sheetName string, log *oplog.Log) (*Memory, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheetName)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	nrows, cols := len(rows), 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	// GetRows trims trailing cells without a cached value, which drops
	// formula-only cells written by SaveXLSX. The dimension ref covers them.
	if dr, dc, ok := sheetDimension(f, sheetName); ok {
		nrows, cols = max(nrows, dr), max(cols, dc)
	}
	m := NewMemory(sheetName, nrows, cols, log)

	for r := 0; r < nrows; r++ {
		for c := 0; c < cols; c++ {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			var d cellData
			if r < len(rows) && c < len(rows[r]) {
				d.raw = rows[r][c]
			}
			formula, err := f.GetCellFormula(sheetName, axis)
			if err != nil {
				return nil, fmt.Errorf("read formula %s: %w", axis, err)
			}
			if formula != "" {
				d.raw = "=" + strings.TrimPrefix(formula, "=")
			}
			d.highlight, err = cellFill(f, sheetName, axis)
			if err != nil {
				return nil, err
			}
			if !d.empty() {
				m.cells[ir.Coordinate{Row: r, Col: c}] = d
			}
		}
	}
	return m, nil
}

func sheetDimension(f *excelize.File, sheetName string) (rows, cols int, ok bool) {
	ref, err := f.GetSheetDimension(sheetName)
	if err != nil || ref == "" {
		return 0, 0, false
	}
	parts := strings.Split(ref, ":")
	cols, rows, err = excelize.CellNameToCoordinates(parts[len(parts)-1])
	if err != nil {
		return 0, 0, false
	}
	return rows, cols, true
}

func cellFill(f *excelize.File, sheetName, axis string) (string, error) {
	styleID, err := f.GetCellStyle(sheetName, axis)
	if err != nil || styleID == 0 {
		return "", err
	}
	style, err := f.GetStyle(styleID)
	if err != nil {
		return "", fmt.Errorf("read style %s: %w", axis, err)
	}
	if style.Fill.Type != "pattern" || style.Fill.Pattern != 1 || len(style.Fill.Color) == 0 {
		return "", nil
	}
	color := strings.TrimPrefix(style.Fill.Color[0], "#")
	if len(color) == 8 {
		color = color[2:] // drop ARGB alpha
	}
	return "#" + strings.ToUpper(color), nil
}

// SaveXLSX writes m into the worksheet named after it. An existing workbook
// keeps its other sheets; the target worksheet is cleared first.
func SaveXLSX(m *Memory, path string) error {
	f, err := openOrCreate(path, m.id)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := clearSheet(f, m.id); err != nil {
		return err
	}

	styles := make(map[string]int)
	for _, cell := range m.Snapshot() {
		axis, err := excelize.CoordinatesToCellName(cell.Col+1, cell.Row+1)
		if err != nil {
			return err
		}
		if err := writeCell(f, m.id, axis, cell); err != nil {
			return fmt.Errorf("write %s: %w", axis, err)
		}
		if cell.Highlight == "" {
			continue
		}
		id, ok := styles[cell.Highlight]
		if !ok {
			id, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillColor(cell.Highlight)}},
			})
			if err != nil {
				return fmt.Errorf("highlight %q: %w", cell.Highlight, err)
			}
			styles[cell.Highlight] = id
		}
		if err := f.SetCellStyle(m.id, axis, axis, id); err != nil {
			return fmt.Errorf("style %s: %w", axis, err)
		}
	}

	rows, cols, _ := m.Dimensions(context.Background())
	if rows > 0 && cols > 0 {
		last, err := excelize.CoordinatesToCellName(cols, rows)
		if err != nil {
			return err
		}
		if err := f.SetSheetDimension(m.id, "A1:"+last); err != nil {
			return fmt.Errorf("set dimension: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func openOrCreate(path, sheetName string) (*excelize.File, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		f := excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			f.Close()
			return nil, err
		}
		return f, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if idx, _ := f.GetSheetIndex(sheetName); idx < 0 {
		if _, err := f.NewSheet(sheetName); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func clearSheet(f *excelize.File, sheetName string) error {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return err
	}
	for r, row := range rows {
		for c := range row {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, axis, nil); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheetName, axis, axis, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCell(f *excelize.File, sheetName, axis string, cell ir.Cell) error {
	switch cell.ComputedType {
	case ir.ComputedFormula:
		return f.SetCellFormula(sheetName, axis, strings.TrimPrefix(strings.TrimSpace(cell.RawInput), "="))
	case ir.ComputedNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(cell.RawInput), 64); err == nil {
			return f.SetCellValue(sheetName, axis, n)
		}
	}
	return f.SetCellStr(sheetName, axis, cell.RawInput)
}

var namedColors = map[string]string{
	"yellow": "#FFEB3B",
	"red":    "#F44336",
	"green":  "#4CAF50",
	"blue":   "#2196F3",
	"orange": "#FF9800",
	"gray":   "#9E9E9E",
	"grey":   "#9E9E9E",
}

// fillColor maps a highlight to a hex color excelize accepts.
func fillColor(highlight string) string {
	if hex, ok := namedColors[strings.ToLower(highlight)]; ok {
		return hex
	}
	if !strings.HasPrefix(highlight, "#") {
		return "#" + highlight
	}
	return highlight
}
