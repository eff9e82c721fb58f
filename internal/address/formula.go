package address

import "strings"

// RefError is written in place of a reference shifted off the sheet.
const RefError = "#REF!"

// ShiftFormula moves every relative cell reference in formula by dr rows and
// dc columns. "$"-pinned parts keep their position. String literals and
// function names are left alone. A reference that would
// move above row 1 or left of column A becomes #REF!.
//
// Non-formula input (no leading "=") is returned unchanged.
func ShiftFormula(formula string, dr, dc int) string {
	if !strings.HasPrefix(formula, "=") || (dr == 0 && dc == 0) {
		return formula
	}

	var b strings.Builder
	b.Grow(len(formula))
	s := formula
	i := 0
	for i < len(s) {
		c := s[i]

		if c == '"' {
			end := skipString(s, i)
			b.WriteString(s[i:end])
			i = end
			continue
		}

		if (c == '$' || isLetter(c)) && (i == 0 || !isIdentByte(s[i-1])) {
			ref, end, ok := scanRef(s, i)
			if ok && !continuesIdent(s, end) {
				b.WriteString(shiftRef(ref, dr, dc))
				i = end
				continue
			}
			// Function names and other identifiers pass through whole.
			j := i + 1
			for j < len(s) && (isIdentByte(s[j]) || s[j] == '$') {
				j++
			}
			b.WriteString(s[i:j])
			i = j
			continue
		}

		b.WriteByte(c)
		i++
	}
	return b.String()
}

func shiftRef(ref cellRef, dr, dc int) string {
	if !ref.absRow {
		ref.row += dr
	}
	if !ref.absCol {
		ref.col += dc
	}
	if ref.row < 0 || ref.col < 0 {
		return RefError
	}
	return ref.String()
}

// continuesIdent reports whether the token ending at end is part of a longer
// identifier, a function call, or a sheet name.
func continuesIdent(s string, end int) bool {
	if end >= len(s) {
		return false
	}
	c := s[end]
	return isIdentByte(c) || c == '(' || c == '!'
}

// skipString returns the index just past the string literal opening at s[i].
// Doubled quotes are escapes.
func skipString(s string, i int) int {
	j := i + 1
	for j < len(s) {
		if s[j] == '"' {
			if j+1 < len(s) && s[j+1] == '"' {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(s)
}
