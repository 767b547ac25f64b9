// Package xlsx reads and writes return rows as spreadsheet workbooks.
package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"vatfiling/internal/vatreturn"
)

// DefaultSheet is the worksheet name written by Encode.
const DefaultSheet = "VAT Return"

var (
	// ErrNoSheets is returned for a workbook without worksheets.
	ErrNoSheets = errors.New("workbook has no sheets")
)

// formatLiteral matches quoted text, escapes and [Red]-style sections of
// a custom number format.
var formatLiteral = regexp.MustCompile(`"[^"]*"|\\.|\[[^\]]*\]`)

// Decode reads the rows of the first worksheet. Cells come back as their
// stored values, so number formats never round or parenthesise amounts.
// Date-formatted cells are the exception and read as "2006-01-02".
// Trailing empty cells are dropped.
func Decode(data []byte) ([]vatreturn.Row, error) {
	const op = "Decode"

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open workbook: %w", op, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSheets)
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read rows of %q: %w", op, sheet, err)
	}

	rows := make([]vatreturn.Row, len(raw))
	for i, r := range raw {
		for j, v := range r {
			if v == "" {
				continue
			}
			if day, ok := dateCell(f, sheet, i, j, v); ok {
				r[j] = day
			}
		}
		rows[i] = vatreturn.Row(r)
	}
	return rows, nil
}

// dateCell renders the serial number v as a date when the cell at (row,
// col) carries a date number format.
func dateCell(f *excelize.File, sheet string, row, col int, v string) (string, bool) {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", false
	}
	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return "", false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || !isDateFormat(style) {
		return "", false
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02"), true
	}
	return t.Format("2006-01-02T15:04:05"), true
}

// isDateFormat reports whether a cell style displays dates or times.
func isDateFormat(style *excelize.Style) bool {
	if style.CustomNumFmt != nil {
		format := strings.ToLower(formatLiteral.ReplaceAllString(*style.CustomNumFmt, ""))
		return strings.ContainsAny(format, "dyh")
	}
	switch id := style.NumFmt; {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// Encode writes rows into a single-sheet workbook named sheet. An empty
// name means DefaultSheet.
func Encode(rows []vatreturn.Row, sheet string) ([]byte, error) {
	const op = "Encode"

	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("%s: failed to name sheet: %w", op, err)
	}

	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("%s: failed to write row %d: %w", op, i+1, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 55); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := f.SetColWidth(sheet, "B", "D", 24); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to write workbook: %w", op, err)
	}
	return buf.Bytes(), nil
}
