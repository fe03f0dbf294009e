package dataset

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// WriteCSV writes the header and one record per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "dataset: write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return eris.Wrapf(err, "dataset: write csv row %s", r.NPI)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "dataset: flush csv")
	}
	return nil
}

// ReadCSV parses an exported CSV keyed by column name.
func ReadCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	header, rowCh, errCh := StreamCSV(ctx, r)

	var rows []Row
	line := 1
	for rec := range rowCh {
		line++
		row, err := ParseRecord(header, rec)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: csv line %d", line)
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}
