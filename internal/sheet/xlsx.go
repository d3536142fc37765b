package sheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Built-in number formats that render a date.
var dateFormats = map[int]bool{14: true, 15: true, 16: true, 17: true, 22: true}

func parseXLSX(data []byte, o options) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	name := o.sheet
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoHeaders
		}
		name = sheets[0]
	} else if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}

	raw, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	d := dateReader{f: f, sheet: name, styles: map[int]bool{}}
	for r, row := range raw {
		for c, v := range row {
			if v == "" {
				continue
			}
			if iso, ok := d.iso(r, c); ok {
				row[c] = iso
			}
		}
	}

	t := &Table{Format: FormatXLSX, Sheet: name}
	if err := shape(t, raw, o.maxRows, true); err != nil {
		return nil, err
	}
	return t, nil
}

// dateReader rewrites date-formatted cells as ISO dates. Excel stores dates
// as serial numbers and the rendered text follows the author's locale, which
// the date parser cannot tell apart.
type dateReader struct {
	f      *excelize.File
	sheet  string
	styles map[int]bool
}

func (d *dateReader) iso(row, col int) (string, bool) {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", false
	}
	styleID, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil || !d.isDateStyle(styleID) {
		return "", false
	}
	raw, err := d.f.GetCellValue(d.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", false
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	tm, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return tm.Format("2006-01-02"), true
}

func (d *dateReader) isDateStyle(id int) bool {
	if is, ok := d.styles[id]; ok {
		return is
	}
	is := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		is = dateFormats[style.NumFmt]
		if style.CustomNumFmt != nil {
			fmtStr := strings.ToLower(*style.CustomNumFmt)
			is = strings.Contains(fmtStr, "yy") && strings.Contains(fmtStr, "d")
		}
	}
	d.styles[id] = is
	return is
}
