package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"github.com/couchcryptid/census-microdata-etl/internal/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("sqlite", filepath.Join(t.TempDir(), "census.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// splitFixture returns every sub-table for n people in state.
func splitFixture(t *testing.T, n int, state string) []domain.TableRows {
	t.Helper()
	cols := schema.ReadableColumns()
	rows := make([][]string, n)
	for r := range n {
		row := make([]string, len(cols))
		for c, name := range cols {
			row[c] = fmt.Sprintf("%s-%d", name, r)
		}
		row[len(cols)-1] = state
		rows[r] = row
	}
	keys, err := domain.NewKeys(n, nil)
	require.NoError(t, err)
	tables, err := domain.SplitAll(domain.RecordSet{Columns: cols, Rows: rows}, schema.Groups(), keys)
	require.NoError(t, err)
	return tables
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	db, err := s.open()
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", s.dialect.quote(table))).Scan(&n))
	return n
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New("oracle", "x", slog.Default())
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestNew_DriverNames(t *testing.T) {
	for _, d := range []string{"sqlserver", "postgres", "mysql", "SQLite"} {
		s, err := New(d, "unused", slog.Default())
		require.NoError(t, err, d)
		assert.NotEmpty(t, s.Driver())
	}
}

func TestStore_PingAndMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.CheckReadiness(ctx))
	require.NoError(t, s.Migrate(ctx))

	for _, name := range s.tableNames() {
		assert.Zero(t, countRows(t, s, name), name)
	}
}

func TestStore_LoadedStates_Empty(t *testing.T) {
	s := newTestStore(t)

	states, err := s.LoadedStates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)

	loaded, err := s.IsLoaded(context.Background(), "Texas")
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestStore_LoadedStates_BeforeMigrate(t *testing.T) {
	s, err := New("sqlite", filepath.Join(t.TempDir(), "fresh.db"), slog.Default())
	require.NoError(t, err)

	_, err = s.LoadedStates(context.Background())
	require.Error(t, err)
}

func TestStore_Append(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tables := splitFixture(t, 3, "Texas")

	res, err := s.Append(ctx, tables)
	require.NoError(t, err)

	want := []domain.TableCount{
		{Table: "demographics", Rows: 3},
		{Table: "education", Rows: 3},
		{Table: "employment", Rows: 3},
		{Table: "languages", Rows: 3},
		{Table: "tech_access", Rows: 3},
		{Table: "transportation", Rows: 3},
		{Table: "income_costs", Rows: 3},
	}
	if diff := cmp.Diff(want, res.Tables); diff != "" {
		t.Fatalf("load result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 21, res.Total())
	for _, tc := range want {
		assert.Equal(t, 3, countRows(t, s, tc.Table), tc.Table)
	}

	states, err := s.LoadedStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Texas"}, states)

	for _, in := range []string{"texas", "TEXAS", " Texas "} {
		loaded, err := s.IsLoaded(ctx, in)
		require.NoError(t, err)
		assert.True(t, loaded, in)
	}
	loaded, err := s.IsLoaded(ctx, "Ohio")
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestStore_Append_RowsJoinOnID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Append(ctx, splitFixture(t, 4, "Ohio"))
	require.NoError(t, err)

	db, err := s.open()
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM demographics d
		JOIN education e ON e.id = d.id
		JOIN employment m ON m.id = d.id
		WHERE e.school_enrollment = REPLACE(d.division, 'division', 'school_enrollment')`).Scan(&n))
	assert.Equal(t, 4, n)

	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM income_costs i
		JOIN languages l ON l.id = i.id
		JOIN tech_access t ON t.id = i.id
		JOIN transportation v ON v.id = i.id
		WHERE i.state = 'Ohio'`).Scan(&n))
	assert.Equal(t, 4, n)
}

func TestStore_Append_Batches(t *testing.T) {
	s := newTestStore(t)
	s.dialect.maxRows = 7

	res, err := s.Append(context.Background(), splitFixture(t, 30, "Utah"))
	require.NoError(t, err)
	assert.Equal(t, 30*7, res.Total())
	assert.Equal(t, 30, countRows(t, s, "tech_access"))
}

func TestStore_Append_RollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tables := splitFixture(t, 5, "Maine")

	// Fail on the fifth table, after four have been inserted in the transaction.
	tables[4].Table = "missing_table"

	_, err := s.Append(ctx, tables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_table")

	for _, name := range s.tableNames() {
		assert.Zero(t, countRows(t, s, name), name)
	}
	states, err := s.LoadedStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestStore_Append_DuplicateKeyRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := splitFixture(t, 2, "Iowa")
	_, err := s.Append(ctx, first)
	require.NoError(t, err)

	// Same ids again violate every primary key.
	_, err = s.Append(ctx, first)
	require.Error(t, err)
	assert.Equal(t, 2, countRows(t, s, "demographics"))
}

func TestStore_Append_RowWidth(t *testing.T) {
	s := newTestStore(t)
	tables := splitFixture(t, 1, "Idaho")
	tables[2].Rows[0] = tables[2].Rows[0][:1]

	_, err := s.Append(context.Background(), tables)
	require.ErrorIs(t, err, ErrRowWidth)
	assert.Zero(t, countRows(t, s, "demographics"))
}

func TestStore_Append_Empty(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Append(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Total())
}

func TestStore_AppendPreservesNullableText(t *testing.T) {
	s := newTestStore(t)
	tables := splitFixture(t, 1, "Ohio")
	tables[5].Rows[0][1] = ""

	_, err := s.Append(context.Background(), tables)
	require.NoError(t, err)

	db, err := s.open()
	require.NoError(t, err)
	defer db.Close()
	var v sql.NullString
	require.NoError(t, db.QueryRow("SELECT num_of_vehicles FROM transportation").Scan(&v))
	assert.True(t, v.Valid)
	assert.Empty(t, v.String)
}
