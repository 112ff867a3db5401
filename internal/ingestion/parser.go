package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// Record is one data row of an export together with its 1-based line number.
type Record struct {
	Line int
	Row  Row
}

// delimiters are tried in order when sniffing the header row.
var delimiters = []rune{'\t', ',', ';', '|'}

var (
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// ReadFile opens path and reads its rows with ReadRows.
func ReadFile(path string, cfg ClassifierConfig) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadRows(f, cfg)
}

// ReadRows turns a delimited text export into rows keyed by canonical field.
//
// Behavior:
//   - Input that is not valid UTF-8 is decoded as GBK, the encoding broker
//     terminals use for their ".xls" text exports.
//   - The header row is searched for within cfg.HeaderScanLines lines, since
//     exports often start with account banners. The delimiter is whichever of
//     tab, comma, semicolon or pipe recognizes the most header labels.
//   - Header labels go through the synonym table; unknown columns are dropped
//     and column order does not matter.
//   - Blank lines and rows with no mapped content are skipped.
//
// Fails with models.ErrMissingColumns when no header is found or the date or
// business type column is not mapped, and with models.ErrNotSupported
// for binary spreadsheets.
func ReadRows(r io.Reader, cfg ClassifierConfig) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if bytes.HasPrefix(data, oleMagic) || bytes.HasPrefix(data, zipMagic) {
		return nil, fmt.Errorf("%w: binary spreadsheet, export the sheet as text", models.ErrNotSupported)
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	headerIdx, comma, columns := detectHeader(lines, cfg)
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: no header row within first %d lines", models.ErrMissingColumns, cfg.HeaderScanLines)
	}
	if err := requireColumns(columns); err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx+1:], "\n")))
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	// TrimLeadingSpace would swallow empty tab separated cells; cells are
	// trimmed by cleanCell instead.

	var out []Record
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read line after %d: %w", headerIdx+1, err)
		}
		line, _ := cr.FieldPos(0)

		row := make(Row, len(columns))
		content := false
		for i, cell := range rec {
			f, ok := columns[i]
			if !ok {
				continue
			}
			row[f] = cell
			if cleanCell(cell) != "" {
				content = true
			}
		}
		if !content {
			continue
		}
		out = append(out, Record{Line: headerIdx + 1 + line, Row: row})
	}
	return out, nil
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode gbk: %w", err)
	}
	return string(decoded), nil
}

// detectHeader returns the header line index, its delimiter and the column
// index to field mapping. The index is -1 when nothing qualifies.
func detectHeader(lines []string, cfg ClassifierConfig) (int, rune, map[int]Field) {
	limit := cfg.HeaderScanLines
	if limit <= 0 || limit > len(lines) {
		limit = len(lines)
	}
	for i := 0; i < limit; i++ {
		var (
			bestComma rune
			bestCols  map[int]Field
		)
		for _, comma := range delimiters {
			cols := mapHeader(strings.Split(lines[i], string(comma)), cfg)
			if len(cols) > len(bestCols) {
				bestComma, bestCols = comma, cols
			}
		}
		if isHeader(bestCols) {
			return i, bestComma, bestCols
		}
	}
	return -1, 0, nil
}

func mapHeader(cells []string, cfg ClassifierConfig) map[int]Field {
	cols := make(map[int]Field)
	seen := make(map[Field]bool)
	for i, cell := range cells {
		f, ok := cfg.lookupHeader(cleanCell(cell))
		if !ok || seen[f] {
			continue
		}
		cols[i] = f
		seen[f] = true
	}
	return cols
}

// isHeader requires one of the anchor columns plus at least one more label.
func isHeader(cols map[int]Field) bool {
	if len(cols) < 2 {
		return false
	}
	for _, f := range cols {
		switch f {
		case FieldDate, FieldSecurityCode, FieldBusinessType:
			return true
		}
	}
	return false
}

func requireColumns(cols map[int]Field) error {
	have := make(map[Field]bool, len(cols))
	for _, f := range cols {
		have[f] = true
	}
	var missing []string
	for _, f := range []Field{FieldDate, FieldBusinessType} {
		if !have[f] {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", models.ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}
