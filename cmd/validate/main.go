// Command validate checks, offline, that the field map document, the rename
// table and the normalized schema agree with each other. Given a mock API
// response (see cmd/genmock) it also dry-runs the transform and split steps
// and checks that every sub-table receives one row per record.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -field-map configs/field_map.yaml \
//	  -response testdata/mock/texas_pums.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/couchcryptid/census-microdata-etl/internal/adapter/fieldmap"
	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"github.com/couchcryptid/census-microdata-etl/internal/schema"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fmPath := flag.String("field-map", "configs/field_map.yaml", "field map document")
	response := flag.String("response", "", "optional mock API response to dry-run")
	flag.Parse()

	if code := run(*fmPath, *response); code != 0 {
		os.Exit(code)
	}
}

func run(fmPath, responsePath string) int {
	fmt.Println("=== Census Microdata Validation ===")
	fmt.Println()

	fm, err := fieldmap.Load(fmPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load field map: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRenameTable(fm),
		validateSchemaColumns(),
		validateLabels(fm),
	}

	records := 0
	if responsePath != "" {
		rs, err := loadResponse(responsePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load response: %v\n", err)
			return 1
		}
		records = rs.Len()
		phases = append(phases, validateDryRun(fm, rs))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Fields: %d (%d coded), records: %d\n", len(fm.Fields), fm.CodedCount(), records)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadResponse reads a Census API style body: a header row then data rows.
func loadResponse(path string) (domain.RecordSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RecordSet{}, err
	}
	var body [][]string
	if err := json.Unmarshal(data, &body); err != nil {
		return domain.RecordSet{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(body) == 0 {
		return domain.RecordSet{}, fmt.Errorf("%s: no header row", path)
	}
	return domain.RecordSet{Columns: body[0], Rows: body[1:]}, nil
}

// ── Phases ──

func validateRenameTable(fm domain.FieldMap) *phase {
	p := &phase{name: "Field map matches rename table"}
	readable := schema.ReadableColumns()
	if got, want := len(fm.Fields)+1, len(readable); got != want {
		p.errorf("field map has %d fields plus state, rename table has %d names", len(fm.Fields), want)
	}
	seen := map[string]bool{}
	for _, name := range readable {
		if seen[name] {
			p.errorf("rename table repeats %q", name)
		}
		seen[name] = true
	}
	if _, ok := fm.Lookup(schema.StateColumn); ok {
		p.errorf("field map must not list %q; the API appends it", schema.StateColumn)
	}
	return p
}

func validateSchemaColumns() *phase {
	p := &phase{name: "Schema columns exist in rename table"}
	readable := schema.ReadableColumns()
	tables := map[string]bool{}
	for _, g := range schema.Groups() {
		if err := g.Validate(readable); err != nil {
			p.errorf("%s group: %v", g.Scope, err)
		}
		for _, name := range g.TableNames() {
			if tables[name] {
				p.errorf("table %s defined twice", name)
			}
			tables[name] = true
		}
	}
	if !tables[schema.DuplicateCheckTable] {
		p.errorf("duplicate check table %s is not in the schema", schema.DuplicateCheckTable)
	}
	return p
}

func validateLabels(fm domain.FieldMap) *phase {
	p := &phase{name: "Coded fields have labels"}
	for _, f := range fm.Fields {
		if f.Kind != domain.Coded {
			continue
		}
		if len(f.Labels) == 0 {
			p.errorf("%s: coded field with no labels", f.Name)
		}
		for code, label := range f.Labels {
			if label == "" {
				p.errorf("%s: code %q has an empty label", f.Name, code)
			}
		}
	}
	return p
}

func validateDryRun(fm domain.FieldMap, rs domain.RecordSet) *phase {
	p := &phase{name: "Dry run transform and split"}

	want := append(fm.Names(), schema.StateColumn)
	if !slices.Equal(rs.Columns, want) {
		p.errorf("response header %v does not match field map order %v", rs.Columns, want)
		return p
	}
	for i, row := range rs.Rows {
		if len(row) != len(rs.Columns) {
			p.errorf("row %d has %d cells, header has %d", i+1, len(row), len(rs.Columns))
		}
	}

	unknown := domain.Relabel(&rs, fm.With(domain.StateField()))
	if unknown > 0 {
		p.errorf("%d cells carry codes with no label", unknown)
	}
	if err := domain.RenameColumns(&rs, schema.ReadableColumns()); err != nil {
		p.errorf("rename: %v", err)
		return p
	}

	keys, err := domain.NewKeys(rs.Len(), nil)
	if err != nil {
		p.errorf("keys: %v", err)
		return p
	}
	tables, err := domain.SplitAll(rs, schema.Groups(), keys)
	if err != nil {
		p.errorf("split: %v", err)
		return p
	}
	for _, t := range tables {
		if len(t.Rows) != rs.Len() {
			p.errorf("table %s has %d rows, want %d", t.Table, len(t.Rows), rs.Len())
		}
	}
	return p
}
