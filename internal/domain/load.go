package domain

// TableCount is the number of rows committed to one table.
type TableCount struct {
	Table string
	Rows  int
}

// LoadResult describes a committed append of split sub-tables.
type LoadResult struct {
	Tables []TableCount
}

// Total returns the number of rows committed across all tables.
func (r LoadResult) Total() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Rows
	}
	return n
}
