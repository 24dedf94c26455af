package domain

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/census-microdata-etl/internal/schema"
	"github.com/google/uuid"
)

var (
	// ErrDuplicateKey means a correlation identifier repeats within one scope,
	// which would violate the sub-table primary key.
	ErrDuplicateKey = errors.New("duplicate correlation key")
	// ErrKeyCount means the keys were generated for a different record set.
	ErrKeyCount = errors.New("correlation key count does not match record count")
)

// Keys holds one correlation identifier per source row for each scope.
// Individual[i] and Household[i] both belong to row i; every sub-table in a
// scope reuses the same slice, so split rows can be rejoined on id.
type Keys struct {
	Individual []string
	Household  []string
}

// For returns the identifiers for scope.
func (k Keys) For(scope schema.Scope) []string {
	if scope == schema.Household {
		return k.Household
	}
	return k.Individual
}

// NewUUID is the default key generator.
func NewUUID() string {
	return uuid.NewString()
}

// NewKeys generates n identifiers per scope. A nil gen uses random UUIDs.
func NewKeys(n int, gen func() string) (Keys, error) {
	if gen == nil {
		gen = NewUUID
	}
	keys := Keys{
		Individual: make([]string, n),
		Household:  make([]string, n),
	}
	for i := range n {
		keys.Individual[i] = gen()
	}
	for i := range n {
		keys.Household[i] = gen()
	}
	for _, scope := range []schema.Scope{schema.Individual, schema.Household} {
		if err := checkUnique(keys.For(scope)); err != nil {
			return Keys{}, fmt.Errorf("%s scope: %w", scope, err)
		}
	}
	return keys, nil
}

func checkUnique(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q at row %d", ErrDuplicateKey, id, i)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Split projects rs onto every sub-table of g and prepends the scope's
// correlation identifier. It fails before producing anything if the group
// references a column rs lacks or if the identifiers are not a valid primary key.
func Split(rs RecordSet, g schema.Group, keys Keys) ([]TableRows, error) {
	if err := g.Validate(rs.Columns); err != nil {
		return nil, err
	}
	ids := keys.For(g.Scope)
	if len(ids) != rs.Len() {
		return nil, fmt.Errorf("%w: %d keys for %d records", ErrKeyCount, len(ids), rs.Len())
	}
	if err := checkUnique(ids); err != nil {
		return nil, fmt.Errorf("%s scope: %w", g.Scope, err)
	}

	out := make([]TableRows, 0, len(g.Tables))
	for _, t := range g.Tables {
		cols := t.Projection()
		idx := make([]int, len(cols))
		for i, c := range cols {
			idx[i] = rs.ColumnIndex(c)
		}

		rows := make([][]string, len(rs.Rows))
		for r, src := range rs.Rows {
			row := make([]string, 0, len(cols)+1)
			row = append(row, ids[r])
			for _, j := range idx {
				row = append(row, cell(src, j))
			}
			rows[r] = row
		}

		out = append(out, TableRows{
			Table:   t.Name,
			Columns: append([]string{schema.KeyColumn}, cols...),
			Rows:    rows,
		})
	}
	return out, nil
}

// SplitAll splits rs across every group in order.
func SplitAll(rs RecordSet, groups []schema.Group, keys Keys) ([]TableRows, error) {
	var out []TableRows
	for _, g := range groups {
		tables, err := Split(rs, g, keys)
		if err != nil {
			return nil, err
		}
		out = append(out, tables...)
	}
	return out, nil
}
