package engine

import (
	"strconv"
	"strings"

	"github.com/roach88/sheetflow/internal/address"
	"github.com/roach88/sheetflow/internal/ir"
)

// seriesValue returns the raw input written at offset (dr, dc) from the
// source cell of a fill.
//
// Formulas have their relative references shifted. Numbers advance by one
// per row or column of distance. Text ending in digits advances that
// trailing number, keeping its zero padding. Anything else is copied.
func seriesValue(src ir.Cell, dr, dc int) string {
	step := dr + dc

	switch src.ComputedType {
	case ir.ComputedFormula:
		return address.ShiftFormula(strings.TrimSpace(src.RawInput), dr, dc)
	case ir.ComputedNumber:
		if src.ComputedNumber == nil {
			return src.RawInput
		}
		return formatNumber(*src.ComputedNumber + float64(step))
	case ir.ComputedString:
		return advanceTrailingNumber(src.RawInput, step)
	}
	return src.RawInput
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// advanceTrailingNumber adds step to the digits ending s: "Item 9" -> "Item 10",
// "W007" -> "W008". Text without trailing digits is returned as is.
func advanceTrailingNumber(s string, step int) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	digits := s[i:]
	if digits == "" || step == 0 {
		return s
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return s
	}
	next := n + step
	if next < 0 {
		next = 0
	}
	out := strconv.Itoa(next)
	if len(out) < len(digits) {
		out = strings.Repeat("0", len(digits)-len(out)) + out
	}
	return s[:i] + out
}
