package dataset

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetName is the worksheet the XLSX export writes to.
const SheetName = "Pharmacies"

// WriteXLSX saves rows as a single-sheet workbook at path.
func WriteXLSX(path string, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addRow(sheet, Columns)
	for _, r := range rows {
		addRow(sheet, r.Record())
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// ReadXLSX parses the first sheet of a workbook keyed by column name.
func ReadXLSX(path string) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx: sheet %q is empty", sheet.Name)
	}

	header := NewHeader(rowToStrings(sheet.Rows[0]))
	rows := make([]Row, 0, len(sheet.Rows)-1)
	for i, xr := range sheet.Rows[1:] {
		cells := rowToStrings(xr)
		if allEmpty(cells) {
			continue
		}
		r, err := ParseRecord(header, cells)
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: row %d", i+2)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
