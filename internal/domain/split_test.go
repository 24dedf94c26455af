package domain

import (
	"fmt"
	"testing"

	"github.com/couchcryptid/census-microdata-etl/internal/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readableRecordSet builds n rows with every readable column; cell values are
// "<column>-<row>" so projections can be checked exactly.
func readableRecordSet(n int) RecordSet {
	cols := schema.ReadableColumns()
	rows := make([][]string, n)
	for r := range n {
		row := make([]string, len(cols))
		for c, name := range cols {
			row[c] = fmt.Sprintf("%s-%d", name, r)
		}
		rows[r] = row
	}
	return RecordSet{Columns: cols, Rows: rows}
}

func sequenceGen() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func TestNewKeys(t *testing.T) {
	t.Run("unique uuids per scope", func(t *testing.T) {
		const n = 250
		keys, err := NewKeys(n, nil)
		require.NoError(t, err)

		all := map[string]bool{}
		for _, ids := range [][]string{keys.Individual, keys.Household} {
			require.Len(t, ids, n)
			for _, id := range ids {
				_, err := uuid.Parse(id)
				require.NoError(t, err)
				all[id] = true
			}
		}
		assert.Len(t, all, 2*n)
	})

	t.Run("repeating generator is rejected", func(t *testing.T) {
		_, err := NewKeys(3, func() string { return "same" })
		require.ErrorIs(t, err, ErrDuplicateKey)
		assert.Contains(t, err.Error(), "individual scope")
	})

	t.Run("zero rows", func(t *testing.T) {
		keys, err := NewKeys(0, nil)
		require.NoError(t, err)
		assert.Empty(t, keys.Individual)
		assert.Empty(t, keys.Household)
	})
}

func TestSplit_IndividualGroup(t *testing.T) {
	rs := readableRecordSet(2)
	keys, err := NewKeys(2, sequenceGen())
	require.NoError(t, err)

	tables, err := Split(rs, schema.IndividualGroup(), keys)
	require.NoError(t, err)
	require.Len(t, tables, 3)

	demo := tables[0]
	assert.Equal(t, "demographics", demo.Table)
	assert.Equal(t, schema.KeyColumn, demo.Columns[0])
	assert.Equal(t, []string{"id-001", "state-0", "division-0", "age-0", "sex-0",
		"race_group_1-0", "race_group_2-0", "race_group_3-0", "marital_status-0", "disability-0"}, demo.Rows[0])

	for _, tbl := range tables {
		assert.Equal(t, "id-001", tbl.Rows[0][0], tbl.Table)
		assert.Equal(t, "id-002", tbl.Rows[1][0], tbl.Table)
	}
}

func TestSplit_HouseholdGroupUsesHouseholdKeys(t *testing.T) {
	rs := readableRecordSet(2)
	keys, err := NewKeys(2, sequenceGen())
	require.NoError(t, err)

	tables, err := Split(rs, schema.HouseholdGroup(), keys)
	require.NoError(t, err)
	require.Len(t, tables, 4)

	for _, tbl := range tables {
		assert.Equal(t, keys.Household[0], tbl.Rows[0][0], tbl.Table)
		assert.Equal(t, keys.Household[1], tbl.Rows[1][0], tbl.Table)
		assert.NotEqual(t, keys.Individual[0], tbl.Rows[0][0])
	}

	income := tables[3]
	assert.Equal(t, "income_costs", income.Table)
	assert.Equal(t, "state", income.Columns[len(income.Columns)-1])
	assert.Equal(t, "state-1", income.Rows[1][len(income.Columns)-1])

	transport := tables[2]
	assert.Equal(t, []string{schema.KeyColumn, "num_of_vehicles"}, transport.Columns)
}

// Rejoining every sub-table of a scope on id must give back exactly the
// scope's columns for every source row, with no loss or duplication.
func TestSplit_RoundTripRejoin(t *testing.T) {
	const n = 25
	rs := readableRecordSet(n)
	keys, err := NewKeys(n, nil)
	require.NoError(t, err)

	for _, g := range schema.Groups() {
		tables, err := Split(rs, g, keys)
		require.NoError(t, err)

		joined := map[string]map[string]string{}
		for _, tbl := range tables {
			require.Len(t, tbl.Rows, n, tbl.Table)
			for _, row := range tbl.Rows {
				id := row[0]
				if joined[id] == nil {
					joined[id] = map[string]string{}
				}
				for c := 1; c < len(tbl.Columns); c++ {
					joined[id][tbl.Columns[c]] = row[c]
				}
			}
		}
		require.Len(t, joined, n, g.Scope.String())

		ids := keys.For(g.Scope)
		for r := range n {
			want := map[string]string{}
			for _, tbl := range g.Tables {
				for _, c := range tbl.Projection() {
					want[c] = fmt.Sprintf("%s-%d", c, r)
				}
			}
			assert.Equal(t, want, joined[ids[r]], "%s row %d", g.Scope, r)
		}
	}
}

func TestSplit_Errors(t *testing.T) {
	t.Run("schema column missing from record set", func(t *testing.T) {
		rs := readableRecordSet(1)
		rs.Columns[rs.ColumnIndex("num_of_vehicles")] = "vehicles"
		keys, err := NewKeys(1, nil)
		require.NoError(t, err)

		_, err = Split(rs, schema.HouseholdGroup(), keys)
		require.ErrorIs(t, err, schema.ErrUnknownColumn)
		assert.Contains(t, err.Error(), "num_of_vehicles")
	})

	t.Run("key count mismatch", func(t *testing.T) {
		keys, err := NewKeys(1, nil)
		require.NoError(t, err)
		_, err = Split(readableRecordSet(2), schema.IndividualGroup(), keys)
		require.ErrorIs(t, err, ErrKeyCount)
	})

	t.Run("duplicate key", func(t *testing.T) {
		keys := Keys{Individual: []string{"a", "a"}, Household: []string{"b", "c"}}
		_, err := Split(readableRecordSet(2), schema.IndividualGroup(), keys)
		require.ErrorIs(t, err, ErrDuplicateKey)

		_, err = Split(readableRecordSet(2), schema.HouseholdGroup(), keys)
		require.NoError(t, err)
	})
}

func TestSplitAll(t *testing.T) {
	rs := readableRecordSet(3)
	keys, err := NewKeys(3, nil)
	require.NoError(t, err)

	tables, err := SplitAll(rs, schema.Groups(), keys)
	require.NoError(t, err)

	names := make([]string, len(tables))
	for i, tbl := range tables {
		names[i] = tbl.Table
	}
	assert.Equal(t, []string{"demographics", "education", "employment",
		"languages", "tech_access", "transportation", "income_costs"}, names)
}
