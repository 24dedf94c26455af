package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the SQL differences between the supported databases.
// All data columns are stored as text; the key column is a fixed-width
// string so every engine accepts it as a primary key.
type dialect struct {
	name string
	// driver is the database/sql driver name registered by the imported package.
	driver string
	// maxParams bounds bind parameters per statement.
	maxParams int
	// maxRows bounds rows per multi-row INSERT.
	maxRows     int
	keyType     string
	textType    string
	placeholder func(n int) string
	quote       func(ident string) string
	createTable func(quotedTable, table, body string) string
}

var dialects = map[string]dialect{
	"sqlserver": {
		name:        "sqlserver",
		driver:      "sqlserver",
		maxParams:   2000,
		maxRows:     1000,
		keyType:     "NVARCHAR(36)",
		textType:    "NVARCHAR(MAX)",
		placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
		quote:       bracketQuote,
		createTable: func(quoted, table, body string) string {
			return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
				strings.ReplaceAll(table, "'", "''"), quoted, body)
		},
	},
	"postgres": {
		name:        "postgres",
		driver:      "postgres",
		maxParams:   65535,
		maxRows:     1000,
		keyType:     "VARCHAR(36)",
		textType:    "TEXT",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		quote:       doubleQuote,
		createTable: createIfNotExists,
	},
	"mysql": {
		name:        "mysql",
		driver:      "mysql",
		maxParams:   65535,
		maxRows:     1000,
		keyType:     "VARCHAR(36)",
		textType:    "TEXT",
		placeholder: func(int) string { return "?" },
		quote:       backtickQuote,
		createTable: createIfNotExists,
	},
	"sqlite": {
		name:        "sqlite",
		driver:      "sqlite",
		maxParams:   32766,
		maxRows:     500,
		keyType:     "TEXT",
		textType:    "TEXT",
		placeholder: func(int) string { return "?" },
		quote:       doubleQuote,
		createTable: createIfNotExists,
	},
}

func createIfNotExists(quoted, _, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoted, body)
}

func bracketQuote(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func doubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func backtickQuote(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// createTableSQL returns idempotent DDL for a table whose first column is
// the primary key.
func (d dialect) createTableSQL(table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		if i == 0 {
			defs[i] = d.quote(c) + " " + d.keyType + " NOT NULL PRIMARY KEY"
			continue
		}
		defs[i] = d.quote(c) + " " + d.textType + " NULL"
	}
	return d.createTable(d.quote(table), table, strings.Join(defs, ", "))
}

// batchRows returns how many rows of width cols fit in one INSERT.
func (d dialect) batchRows(cols int) int {
	if cols <= 0 {
		return d.maxRows
	}
	return max(1, min(d.maxRows, d.maxParams/cols))
}

// insertSQL returns a multi-row INSERT for rows rows of the given columns.
func (d dialect) insertSQL(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.quote(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.quote(c))
	}
	b.WriteString(") VALUES ")

	n := 0
	for r := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for i := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(d.placeholder(n))
		}
		b.WriteByte(')')
	}
	return b.String()
}
