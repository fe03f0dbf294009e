package dataset

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/rotisserie/eris"
)

// Open opens path for reading, transparently decompressing .gz files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, eris.Wrapf(err, "dataset: gzip reader for %s", path)
	}
	return &stackedCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
}

// Create opens path for writing, compressing when it ends in .gz.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: create %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	gz := pgzip.NewWriter(f)
	return &stackedCloser{Writer: gz, closers: []io.Closer{gz, f}}, nil
}

// stackedCloser closes a compression layer before the file under it.
type stackedCloser struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
