package dataset

import (
	"errors"
	"fmt"
)

// ErrSchema matches every *SchemaError with errors.Is.
var ErrSchema = errors.New("schema error")

// Table names used in errors, metrics and load records.
const (
	TableTrials       = "trials"
	TableSubjectLevel = "subject_level"
	TableGroupLevel   = "group_level"
	TableParticipants = "participants"
)

// SchemaError reports a table that does not match the expected layout:
// a missing column, an unparseable key cell, or data that breaks a table
// invariant. Line is 1-based and zero when the problem is not tied to a row.
type SchemaError struct {
	Table  string
	Column string
	Line   int
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	var b []byte
	b = append(b, e.Table...)
	if e.Line > 0 {
		b = fmt.Appendf(b, " line %d", e.Line)
	}
	if e.Column != "" {
		b = fmt.Appendf(b, " column %s", e.Column)
	}
	b = append(b, ": "...)
	b = append(b, e.Reason...)
	if e.Value != "" {
		b = fmt.Appendf(b, " (got %q)", e.Value)
	}
	return string(b)
}

// Is makes errors.Is(err, ErrSchema) true for schema errors.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func missingColumn(table, column string) *SchemaError {
	return &SchemaError{Table: table, Column: column, Reason: "missing required column"}
}
