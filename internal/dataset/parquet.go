package dataset

import (
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
)

// WriteParquet writes rows as a Parquet file with the Row schema.
func WriteParquet(w io.Writer, rows []Row) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return eris.Wrap(err, "parquet: write rows")
	}
	if err := pw.Close(); err != nil {
		return eris.Wrap(err, "parquet: close writer")
	}
	return nil
}

// ReadParquet reads every row of a Parquet export.
func ReadParquet(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "parquet: open file")
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, eris.Wrap(err, "parquet: stat file")
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, eris.Wrap(err, "parquet: open")
	}

	r := parquet.NewGenericReader[Row](pf)
	defer r.Close()

	rows := make([]Row, r.NumRows())
	n, err := r.Read(rows)
	if err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "parquet: read rows")
	}
	return rows[:n], nil
}
