package dataset

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// FormatFor infers the format from a file name. A trailing .gz is only
// meaningful for CSV.
func FormatFor(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(strings.ToLower(path), ".gz")))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		if strings.HasSuffix(strings.ToLower(path), ".gz") {
			return "", eris.Errorf("dataset: %s: gzip is only supported for csv", path)
		}
		return FormatXLSX, nil
	case ".parquet":
		if strings.HasSuffix(strings.ToLower(path), ".gz") {
			return "", eris.Errorf("dataset: %s: gzip is only supported for csv", path)
		}
		return FormatParquet, nil
	default:
		return "", eris.Errorf("dataset: unsupported export format %q", ext)
	}
}

// Export writes rows to path in the format its extension names.
func Export(path string, rows []Row) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	if format == FormatXLSX {
		return WriteXLSX(path, rows)
	}

	w, err := Create(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatParquet:
		err = WriteParquet(w, rows)
	default:
		err = WriteCSV(w, rows)
	}
	if cerr := w.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(cerr, "dataset: close %s", path)
	}
	return err
}

// Import reads rows back from any export format.
func Import(ctx context.Context, path string) ([]Row, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return ReadXLSX(path)
	case FormatParquet:
		return ReadParquet(path)
	default:
		r, err := Open(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return ReadCSV(ctx, r)
	}
}
