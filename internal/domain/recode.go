package domain

import (
	"errors"
	"fmt"
	"slices"
)

// ErrColumnCountMismatch means the response columns cannot be renamed
// positionally. Only cardinality drift is detectable; a reordered field map
// with the same length would be renamed silently.
var ErrColumnCountMismatch = errors.New("column count mismatch")

// Relabel rewrites coded cells to their labels in place. Columns without a
// Coded field pass through, and so do codes missing from a field's labels.
// It returns the number of cells left unchanged because their code had no label.
func Relabel(rs *RecordSet, fm FieldMap) int {
	unknown := 0
	for _, f := range fm.Fields {
		if f.Kind != Coded {
			continue
		}
		idx := rs.ColumnIndex(f.Name)
		if idx < 0 {
			continue
		}
		for _, row := range rs.Rows {
			if idx >= len(row) {
				continue
			}
			if label, ok := f.Labels[row[idx]]; ok {
				row[idx] = label
			} else {
				unknown++
			}
		}
	}
	return unknown
}

// RenameColumns replaces the header positionally with names.
func RenameColumns(rs *RecordSet, names []string) error {
	if len(rs.Columns) != len(names) {
		return fmt.Errorf("%w: response has %d columns, rename table expects %d",
			ErrColumnCountMismatch, len(rs.Columns), len(names))
	}
	rs.Columns = slices.Clone(names)
	return nil
}
