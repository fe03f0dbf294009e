package dataset

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// StreamCSV reads a headered CSV and sends each data row on the returned
// channel along with the parsed header. Both channels are closed when the
// input is exhausted, the context ends or a read fails.
func StreamCSV(ctx context.Context, r io.Reader) (Header, <-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	first, err := reader.Read()
	if err != nil {
		close(rowCh)
		if err == io.EOF {
			errCh <- eris.New("csv: empty input")
		} else {
			errCh <- eris.Wrap(err, "csv: read header")
		}
		close(errCh)
		return nil, rowCh, errCh
	}
	header := NewHeader(first)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return header, rowCh, errCh
}
