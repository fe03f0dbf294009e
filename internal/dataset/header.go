package dataset

import (
	"strings"
)

// Header maps column names to their position in a record. Lookups are
// case-insensitive so consumers can key on name regardless of order.
type Header map[string]int

// NewHeader indexes a header row.
func NewHeader(cols []string) Header {
	h := make(Header, len(cols))
	for i, c := range cols {
		c = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		if _, dup := h[c]; !dup {
			h[c] = i
		}
	}
	return h
}

// Has reports whether the header contains name.
func (h Header) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Get returns the trimmed value of column name, or "" when the column is
// absent or the record is short.
func (h Header) Get(rec []string, name string) string {
	i, ok := h[strings.ToLower(name)]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
