package domain

import "slices"

// RecordSet is the flat, wide table returned by the PUMS API: one row per
// surveyed person, household fields repeated for every member.
// Cells stay strings end to end; the API returns numeric measures as text and
// recoding replaces codes with labels.
type RecordSet struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (rs RecordSet) Len() int {
	return len(rs.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (rs RecordSet) ColumnIndex(name string) int {
	return slices.Index(rs.Columns, name)
}

// Column returns a copy of the named column's values.
func (rs RecordSet) Column(name string) ([]string, bool) {
	idx := rs.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = cell(row, idx)
	}
	return out, true
}

// Record returns row i keyed by column name.
func (rs RecordSet) Record(i int) map[string]string {
	rec := make(map[string]string, len(rs.Columns))
	for j, c := range rs.Columns {
		rec[c] = cell(rs.Rows[i], j)
	}
	return rec
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// TableRows is one sub-table projected from a RecordSet, ready to append to a
// store. Columns[0] is always the correlation key column.
type TableRows struct {
	Table   string
	Columns []string
	Rows    [][]string
}
