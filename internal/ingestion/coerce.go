package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CoerceOrZero is the numeric policy for export cells: thousands separators
// and spreadsheet text markers are stripped, and anything that still does not
// parse becomes zero. Optional broker columns are often blank, and a zeroed
// fee is preferred over losing the whole row.
func CoerceOrZero(raw string) decimal.Decimal {
	d, ok := parseNumber(raw)
	if !ok {
		return decimal.Zero
	}
	return d
}

// CoerceIntOrZero applies CoerceOrZero and truncates toward zero.
func CoerceIntOrZero(raw string) int64 {
	return CoerceOrZero(raw).IntPart()
}

// parseNumber reports whether raw holds a number and returns it.
func parseNumber(raw string) (decimal.Decimal, bool) {
	s := cleanCell(raw)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// cleanCell strips the ="..." wrapper that spreadsheet exports use to keep
// leading zeros, plus stray quotes and whitespace.
func cleanCell(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "=")
	s = strings.Trim(s, "\"'")
	return strings.TrimSpace(s)
}

// NormalizeCode renders a security code as a zero-padded 6 digit string.
// Decimal suffixes left by spreadsheets ("2050.0") are dropped; codes that are
// not purely numeric are returned trimmed.
func NormalizeCode(raw string) string {
	s := cleanCell(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return ""
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if !isDigits(s) {
		return s
	}
	if len(s) < 6 {
		s = strings.Repeat("0", 6-len(s)) + s
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-01-02 15:04:05",
	"2006.01.02",
}

// ParseDate accepts the date renderings seen in settlement exports and
// returns a UTC midnight value.
func ParseDate(raw string) (time.Time, error) {
	s := cleanCell(raw)
	if i := strings.IndexByte(s, '.'); i == 8 && isDigits(s[:i]) {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
