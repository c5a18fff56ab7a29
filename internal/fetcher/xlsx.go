package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// MaxXLSXBytes bounds the workbook size that is loaded into memory. The
// XLSX container cannot be read incrementally.
const MaxXLSXBytes = 256 << 20

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// XLSXReader yields the rows of one worksheet as positional records. Rows
// whose cells are all empty are skipped.
type XLSXReader struct {
	rows []*xlsx.Row
	next int
}

// NewXLSXReader loads the workbook from r.
func NewXLSXReader(r io.Reader, opts XLSXOptions) (*XLSXReader, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxXLSXBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: read workbook")
	}
	if len(data) > MaxXLSXBytes {
		return nil, eris.Errorf("xlsx: workbook exceeds %d bytes", MaxXLSXBytes)
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	return &XLSXReader{rows: sheet.Rows}, nil
}

// Read implements RowSource.
func (x *XLSXReader) Read() (Record, error) {
	for x.next < len(x.rows) {
		row := x.rows[x.next]
		x.next++
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if blankRow(cells) {
			continue
		}
		return Record{Fields: cells, Line: int64(x.next), Terminated: true}, nil
	}
	return Record{}, io.EOF
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
