package ingest

// parser.go decodes uploaded files into a Table.
//
// The first row of the file (or of the first worksheet) is the header. Every
// following row becomes a RawRecord keyed by header. Fully blank rows are
// skipped so spreadsheets with trailing formatting do not produce phantom
// records.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Supported file extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
)

// SupportedExtensions is the upload allow-list.
var SupportedExtensions = []string{ExtCSV, ExtXLSX, ExtXLS}

// csvDelimiters are tried in order when sniffing the header line.
var csvDelimiters = []rune{',', ';', '\t', '|'}

// Parse decodes data according to its declared extension.
// It returns *UnsupportedFormatError for unknown extensions and *ParseError
// when the content cannot be decoded.
func Parse(data []byte, ext string) (*Table, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var (
		rows [][]string
		err  error
	)

	switch ext {
	case ExtCSV:
		rows, err = readCSV(data)
	case ExtXLSX:
		rows, err = readXLSX(data)
	case ExtXLS:
		rows, err = readXLS(data)
	default:
		return nil, &UnsupportedFormatError{Extension: ext}
	}
	if err != nil {
		return nil, &ParseError{Format: strings.TrimPrefix(ext, "."), Err: err}
	}

	table, err := buildTable(rows)
	if err != nil {
		return nil, &ParseError{Format: strings.TrimPrefix(ext, "."), Err: err}
	}
	return table, nil
}

func readCSV(data []byte) ([][]string, error) {
	decoded, _, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.Comma = sniffDelimiter(decoded)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// sniffDelimiter picks the candidate delimiter that occurs most often in the
// header line, defaulting to a comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', 0
	for _, d := range csvDelimiters {
		if n := countOutsideQuotes(line, byte(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func countOutsideQuotes(line []byte, sep byte) int {
	n := 0
	inQuotes := false
	for _, b := range line {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case b == sep && !inQuotes:
			n++
		}
	}
	return n
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) (rows [][]string, err error) {
	// The BIFF reader panics on some truncated workbooks.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, ErrEmptyFile
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyFile
	}

	width := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		// LastCol is one past the last cell. Rows without a ROW record
		// report zero, so read at least as wide as the header.
		cells := make([]string, max(row.LastCol(), width))
		for j := range cells {
			cells[j] = row.Col(j)
		}
		if i == 0 {
			width = len(cells)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// xlsRow returns row i, or nil when the sheet has no record of it. Excel
// writes nothing for blank rows and the reader does not guard the lookup.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// buildTable turns decoded rows into a Table using the first row as header.
func buildTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 || isEmptyRow(rows[0]) {
		return nil, ErrEmptyFile
	}

	columns := makeColumns(rows[0])
	table := &Table{
		Columns: columns,
		Records: make([]RawRecord, 0, len(rows)-1),
	}

	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		rec := make(RawRecord, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = CleanCell(row[i])
			} else {
				rec[col] = ""
			}
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

// makeColumns cleans header cells, names blank headers after their position
// and suffixes repeated headers so every column is addressable.
func makeColumns(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := CleanCell(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s (%d)", name, n+1)
		} else {
			seen[name] = 1
		}
		columns[i] = name
	}
	return columns
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace and the Excel text-formula wrapper ="...".
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
