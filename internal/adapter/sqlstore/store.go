// Package sqlstore persists split PUMS sub-tables to a relational database.
//
// Every exported operation opens its own connection pool and closes it before
// returning, so no connection outlives the call that needed it.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"github.com/couchcryptid/census-microdata-etl/internal/schema"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrUnsupportedDriver means no dialect is registered for the driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrRowWidth means a row does not have one value per column.
	ErrRowWidth = errors.New("row width does not match columns")
)

const pingTimeout = 10 * time.Second

// Store writes to one database through a scoped connection per operation.
type Store struct {
	dialect dialect
	dsn     string
	groups  []schema.Group
	logger  *slog.Logger
}

// New returns a Store for driver, one of sqlserver, postgres, mysql or sqlite.
// It does not connect.
func New(driver, dsn string, logger *slog.Logger) (*Store, error) {
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return &Store{
		dialect: d,
		dsn:     dsn,
		groups:  schema.Groups(),
		logger:  logger,
	}, nil
}

// Driver returns the dialect name.
func (s *Store) Driver() string {
	return s.dialect.name
}

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open(s.dialect.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.dialect.name, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect.name, err)
	}
	return nil
}

// CheckReadiness implements the HTTP readiness probe.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.Ping(ctx)
}

// Migrate creates any missing sub-table. Existing tables are left alone.
func (s *Store) Migrate(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, g := range s.groups {
		for _, t := range g.Tables {
			cols := append([]string{schema.KeyColumn}, t.Projection()...)
			if _, err := db.ExecContext(ctx, s.dialect.createTableSQL(t.Name, cols)); err != nil {
				return fmt.Errorf("create table %s: %w", t.Name, err)
			}
		}
	}
	s.logger.Info("schema migrated", "driver", s.dialect.name, "tables", len(s.tableNames()))
	return nil
}

// LoadedStates returns the distinct state names already present, sorted.
func (s *Store) LoadedStates(ctx context.Context) ([]string, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s",
		s.dialect.quote(schema.StateColumn), s.dialect.quote(schema.DuplicateCheckTable))
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query loaded states: %w", err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var st sql.NullString
		if err := rows.Scan(&st); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if st.Valid && st.String != "" {
			states = append(states, st.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}
	sort.Strings(states)
	return states, nil
}

// IsLoaded reports whether rows for stateName exist, ignoring case.
func (s *Store) IsLoaded(ctx context.Context, stateName string) (bool, error) {
	states, err := s.LoadedStates(ctx)
	if err != nil {
		return false, err
	}
	want := strings.TrimSpace(stateName)
	return slices.ContainsFunc(states, func(st string) bool {
		return strings.EqualFold(strings.TrimSpace(st), want)
	}), nil
}

// Append inserts every sub-table inside one transaction. Either all rows are
// committed or, on any error, none are.
func (s *Store) Append(ctx context.Context, tables []domain.TableRows) (domain.LoadResult, error) {
	for _, t := range tables {
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return domain.LoadResult{}, fmt.Errorf("%w: table %s row %d has %d values for %d columns",
					ErrRowWidth, t.Table, i, len(row), len(t.Columns))
			}
		}
	}

	db, err := s.open()
	if err != nil {
		return domain.LoadResult{}, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LoadResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result := domain.LoadResult{Tables: make([]domain.TableCount, 0, len(tables))}
	for _, t := range tables {
		if err := s.insertTable(ctx, tx, t); err != nil {
			return domain.LoadResult{}, fmt.Errorf("append %s: %w", t.Table, err)
		}
		result.Tables = append(result.Tables, domain.TableCount{Table: t.Table, Rows: len(t.Rows)})
	}

	if err := tx.Commit(); err != nil {
		return domain.LoadResult{}, fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("load committed", "tables", len(result.Tables), "rows", result.Total())
	return result, nil
}

func (s *Store) insertTable(ctx context.Context, tx *sql.Tx, t domain.TableRows) error {
	per := s.dialect.batchRows(len(t.Columns))
	var (
		stmt     *sql.Stmt
		stmtRows int
	)
	defer func() {
		if stmt != nil {
			stmt.Close()
		}
	}()

	for start := 0; start < len(t.Rows); start += per {
		batch := t.Rows[start:min(start+per, len(t.Rows))]
		if stmt == nil || stmtRows != len(batch) {
			if stmt != nil {
				stmt.Close()
			}
			var err error
			stmt, err = tx.PrepareContext(ctx, s.dialect.insertSQL(t.Table, t.Columns, len(batch)))
			if err != nil {
				stmt = nil
				return fmt.Errorf("prepare insert: %w", err)
			}
			stmtRows = len(batch)
		}

		args := make([]any, 0, len(batch)*len(t.Columns))
		for _, row := range batch {
			for _, v := range row {
				args = append(args, v)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, start+len(batch)-1, err)
		}
	}
	return nil
}

func (s *Store) tableNames() []string {
	var names []string
	for _, g := range s.groups {
		names = append(names, g.TableNames()...)
	}
	return names
}
