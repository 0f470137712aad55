package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// tableReader reads a CSV table by column name.
type tableReader struct {
	table  string
	reader *csv.Reader
	header []string
	index  map[string]int
	record []string
	line   int
}

func newTableReader(table string, r io.Reader) (*tableReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Table: table, Reason: "empty table, header row missing"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", table, err)
	}

	header = normalizeHeader(header)
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return &tableReader{table: table, reader: cr, header: header, index: index, line: 1}, nil
}

// normalizeHeader strips a UTF-8 byte order mark and names blank header
// cells "Unnamed: <index>" the way pandas does.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		out[i] = name
	}
	return out
}

// require fails with a SchemaError naming the first missing column.
func (t *tableReader) require(columns ...string) error {
	for _, c := range columns {
		if _, ok := t.index[c]; !ok {
			return missingColumn(t.table, c)
		}
	}
	return nil
}

// next advances to the next non-blank record. It returns io.EOF at the end.
func (t *tableReader) next() error {
	for {
		rec, err := t.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("failed to read %s: %w", t.table, err)
		}
		line, _ := t.reader.FieldPos(0)
		t.line = line
		if isBlank(rec) {
			continue
		}
		t.record = rec
		return nil
	}
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (t *tableReader) cell(column string) string {
	i := t.index[column]
	if i >= len(t.record) {
		return ""
	}
	return strings.TrimSpace(t.record[i])
}

func (t *tableReader) fail(column, value, reason string) *SchemaError {
	return &SchemaError{Table: t.table, Column: column, Line: t.line, Value: value, Reason: reason}
}

// integer parses a key column holding an integer, accepting "7.0".
func (t *tableReader) integer(column string) (int, error) {
	raw := t.cell(column)
	if raw == "" {
		return 0, t.fail(column, raw, "missing value")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, t.fail(column, raw, "invalid integer")
	}
	return int(f), nil
}

// key parses a numeric key column; missing values are rejected.
func (t *tableReader) key(column string) (float64, error) {
	raw := t.cell(column)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, t.fail(column, raw, "invalid number")
	}
	return f, nil
}

// measure parses a value column; blank and NaN cells become NaN.
func (t *tableReader) measure(column string) (float64, error) {
	raw := t.cell(column)
	switch strings.ToLower(raw) {
	case "", "nan", "na", "null":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, t.fail(column, raw, "invalid number")
	}
	return f, nil
}

// session accepts only the exact codes BL and SWD.
func (t *tableReader) session(column string) (SessionType, error) {
	raw := t.cell(column)
	st := SessionType(raw)
	if !st.Valid() {
		return "", t.fail(column, raw, "session type must be BL or SWD")
	}
	return st, nil
}

func (t *tableReader) group(column string) (Group, error) {
	n, err := t.integer(column)
	if err != nil {
		return 0, err
	}
	g := Group(n)
	if !g.Valid() {
		return 0, t.fail(column, t.cell(column), "group must be 1 (HC) or 2 (MDD)")
	}
	return g, nil
}
