package importer

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/eunmann/csvload/pkg/person"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Header names of the five person fields. Matching is case-sensitive.
const (
	ColName        = "Name"
	ColSurname     = "Surname"
	ColInitials    = "Initials"
	ColAge         = "Age"
	ColDateOfBirth = "DateOfBirth"
)

var requiredColumns = []string{ColName, ColSurname, ColInitials, ColAge, ColDateOfBirth}

// newPersonReader creates a csv.Reader for person files.
// Quotes are strict so a corrupted file fails the import instead of being
// half-read. Spaces before a cell, quoted or not, are dropped; trailing
// spaces are trimmed later in columnMap.fields, except after a closing
// quote, which is a parse error.
func newPersonReader(r io.Reader) *csv.Reader {
	csvr := csv.NewReader(r)
	csvr.ReuseRecord = true
	csvr.FieldsPerRecord = -1
	csvr.TrimLeadingSpace = true
	return csvr
}

// decodeText strips a leading byte-order mark. A UTF-16 BOM switches the
// decoder to UTF-16; without one the input is read as UTF-8.
func decodeText(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// decompressReader wraps a reader with gzip decompression if the path ends in .gz.
// The closer may be nil if no decompression wrapper was added.
func decompressReader(r io.Reader, path string) (io.Reader, func() error, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return r, nil, nil
	}

	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("create gzip reader: %w", err)
	}
	return gzr, gzr.Close, nil
}

// countingReader counts bytes read from the underlying file.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// columnMap holds the position of each person field in a row.
type columnMap struct {
	name, surname, initials, age, dateOfBirth int
}

// mapHeader locates the five person columns in header. Extra columns are
// ignored. If a name repeats, the first occurrence wins.
func mapHeader(header []string) (columnMap, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return columnMap{}, fmt.Errorf("header missing columns %s", strings.Join(missing, ", "))
	}

	return columnMap{
		name:        idx[ColName],
		surname:     idx[ColSurname],
		initials:    idx[ColInitials],
		age:         idx[ColAge],
		dateOfBirth: idx[ColDateOfBirth],
	}, nil
}

// fields extracts trimmed person fields from a row. Cells past the end of a
// short row read as empty.
func (m columnMap) fields(row []string) person.Fields {
	cell := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return person.Fields{
		Name:        cell(m.name),
		Surname:     cell(m.surname),
		Initials:    cell(m.initials),
		Age:         cell(m.age),
		DateOfBirth: cell(m.dateOfBirth),
	}
}
