// Package address converts between cell coordinates and A1 labels, and
// rewrites relative references inside formulas.
//
// Labels are one-based: column 1 is "A", 27 is "AA", and "B7" is row 7,
// column 2. CoordinateLabel and LabelCoordinate bridge to the zero-based
// ir.Coordinate used everywhere else.
package address

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/sheetflow/internal/ir"
)

// refLetters bounds the column part of references found inside formulas, so
// function names such as LOG10 are not mistaken for cells.
const refLetters = 3

// ColumnIndexToLabel converts a one-based column index to its bijective
// base-26 label: 1 is "A", 26 is "Z", 27 is "AA". Indices below 1 map to "A".
func ColumnIndexToLabel(col int) string {
	if col < 1 {
		col = 1
	}
	var buf [16]byte
	i := len(buf)
	for n := col; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// ColumnLabelToIndex converts a letter label to a one-based column index.
// Labels are case-insensitive; any character outside A-Z fails, as does a
// label whose index does not fit in an int.
func ColumnLabelToIndex(label string) (int, bool) {
	if label == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		c := upper(label[i])
		if c < 'A' || c > 'Z' {
			return 0, false
		}
		d := int(c - 'A' + 1)
		if n > (math.MaxInt-d)/26 {
			return 0, false
		}
		n = n*26 + d
	}
	return n, true
}

// RowColToLabel formats a one-based row and column as an A1 label.
func RowColToLabel(row, col int) (string, bool) {
	if row < 1 || col < 1 {
		return "", false
	}
	return ColumnIndexToLabel(col) + strconv.Itoa(row), true
}

// ParseLabel parses a label of the form letters-then-digits ("B7") into a
// one-based row and column.
func ParseLabel(s string) (row, col int, ok bool) {
	i := 0
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, 0, false
	}
	col, ok = ColumnLabelToIndex(s[:i])
	if !ok {
		return 0, 0, false
	}
	for j := i; j < len(s); j++ {
		if !isDigit(s[j]) {
			return 0, 0, false
		}
	}
	row, err := strconv.Atoi(s[i:])
	if err != nil || row < 1 {
		return 0, 0, false
	}
	return row, col, true
}

// CoordinateLabel formats a zero-based coordinate as an A1 label. It returns
// "" for negative coordinates.
func CoordinateLabel(c ir.Coordinate) string {
	label, ok := RowColToLabel(c.Row+1, c.Col+1)
	if !ok {
		return ""
	}
	return label
}

// LabelCoordinate parses an A1 label into a zero-based coordinate.
func LabelCoordinate(s string) (ir.Coordinate, bool) {
	row, col, ok := ParseLabel(s)
	if !ok {
		return ir.Coordinate{}, false
	}
	return ir.Coordinate{Row: row - 1, Col: col - 1}, true
}

// cellRef is a reference found inside a formula, zero-based.
type cellRef struct {
	row, col       int
	absRow, absCol bool
}

func (r cellRef) String() string {
	var b strings.Builder
	if r.absCol {
		b.WriteByte('$')
	}
	b.WriteString(ColumnIndexToLabel(r.col + 1))
	if r.absRow {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(r.row + 1))
	return b.String()
}

// scanRef reads a possibly "$"-pinned reference starting at s[i]. It returns
// the reference and the index just past it.
func scanRef(s string, i int) (cellRef, int, bool) {
	var ref cellRef
	if i < len(s) && s[i] == '$' {
		ref.absCol = true
		i++
	}
	start := i
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i-start > refLetters {
		return ref, 0, false
	}
	col, ok := ColumnLabelToIndex(s[start:i])
	if !ok {
		return ref, 0, false
	}
	if i < len(s) && s[i] == '$' {
		ref.absRow = true
		i++
	}
	start = i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if start == i || s[start] == '0' {
		return ref, 0, false
	}
	row, err := strconv.Atoi(s[start:i])
	if err != nil {
		return ref, 0, false
	}
	ref.row = row - 1
	ref.col = col - 1
	return ref, i, true
}

func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func isIdentByte(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '.'
}
