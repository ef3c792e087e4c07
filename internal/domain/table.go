package domain

import (
	"fmt"
	"slices"
)

// Table names produced by a pull.
const (
	TableIndicatorMetadata   = "indicator_metadata"
	TableIndicatorMetadataT1 = "indicator_metadata_t1"
	TableSeriesData          = "series_data"
)

// Column names of the indicator metadata table.
const (
	ColumnGoal        = "goal"
	ColumnTarget      = "target"
	ColumnCode        = "code"
	ColumnDescription = "description"
	ColumnTier        = "tier"

	SeriesPrefix     = "m_"
	ColumnSeriesCode = SeriesPrefix + "code"
)

// IndicatorMeta lists the indicator fields repeated on every series row.
var IndicatorMeta = []string{ColumnGoal, ColumnTarget, ColumnCode, ColumnDescription, ColumnTier}

// Row maps a column name to a JSON scalar, nested slice, or nil.
// A column missing from the map reads as nil.
type Row map[string]any

// Table is an immutable flat view over a nested JSON document.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// HasColumn reports whether name is one of the table's columns.
func (t Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Column returns the values of one column in row order. An empty table yields
// an empty slice for any column name, since a document with no records has no
// record columns to report.
func (t Table) Column(name string) ([]any, error) {
	if len(t.Rows) == 0 {
		return []any{}, nil
	}
	if !t.HasColumn(name) {
		return nil, &ParseError{Source: t.Name, Reason: fmt.Sprintf("column %q not found", name)}
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out, nil
}

// Strings returns a column whose values must all be strings. Order and
// duplicates are preserved.
func (t Table) Strings(name string) ([]string, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, &ParseError{
				Source: t.Name,
				Reason: fmt.Sprintf("column %q row %d: expected string, got %T", name, i, v),
			}
		}
		out[i] = s
	}
	return out, nil
}

// Filter returns a new table named name holding the rows whose column equals
// value exactly. Non-string cells never match.
func (t Table) Filter(name, column, value string) Table {
	out := Table{
		Name:    name,
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Row, 0, len(t.Rows)),
	}
	for _, r := range t.Rows {
		if s, ok := r[column].(string); ok && s == value {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}
