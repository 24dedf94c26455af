// Command genmock writes a deterministic mock PUMS API response for one state,
// shaped exactly like the Census API body: a header row of the field map's
// variables plus "state", then one row per person. Household variables repeat
// across the members of each generated household, as they do in the real feed.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -field-map configs/field_map.yaml \
//	  -state texas -rows 200 -seed 7 \
//	  -out testdata/mock/texas_pums.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/census-microdata-etl/internal/adapter/fieldmap"
	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"github.com/couchcryptid/census-microdata-etl/internal/schema"
)

// numericRanges bounds generated values for passthrough measures; anything
// not listed draws from [0, 100].
var numericRanges = map[string][2]int{
	"AGEP":   {0, 94},
	"WKHP":   {0, 99},
	"HINCP":  {0, 450000},
	"ELEP":   {0, 600},
	"GASP":   {0, 300},
	"RNTP":   {0, 3500},
	"TAXAMT": {0, 15000},
	"WATP":   {0, 2500},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fmPath := flag.String("field-map", "configs/field_map.yaml", "field map document")
	state := flag.String("state", "texas", "state to generate records for")
	rows := flag.Int("rows", 100, "number of person records")
	seed := flag.Uint64("seed", 1, "random seed; the same seed gives the same output")
	out := flag.String("out", "", "output path (default testdata/mock/<state>_pums.json)")
	flag.Parse()

	code, ok := domain.StateCode(*state)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownState, *state)
	}
	if *rows <= 0 {
		return fmt.Errorf("-rows must be positive, got %d", *rows)
	}
	if *out == "" {
		name, _ := domain.StateName(code)
		*out = filepath.Join("testdata", "mock", strings.ReplaceAll(strings.ToLower(name), " ", "_")+"_pums.json")
	}

	fm, err := fieldmap.Load(*fmPath)
	if err != nil {
		return err
	}

	body, err := generate(fm, code, *rows, rand.New(rand.NewPCG(*seed, *seed)))
	if err != nil {
		return err
	}
	if err := writeJSON(*out, body); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	log.Printf("wrote %d records for state %s to %s", *rows, code, *out)
	return nil
}

// generate builds the response body. Households hold one to four people.
func generate(fm domain.FieldMap, stateCode string, rows int, rng *rand.Rand) ([][]string, error) {
	household, err := householdFields(fm)
	if err != nil {
		return nil, err
	}

	header := append(fm.Names(), schema.StateColumn)
	body := make([][]string, 0, rows+1)
	body = append(body, header)

	var shared map[string]string
	left := 0
	for range rows {
		if left == 0 {
			left = 1 + rng.IntN(4)
			shared = map[string]string{}
			for _, f := range fm.Fields {
				if household[f.Name] {
					shared[f.Name] = value(f, rng)
				}
			}
		}
		left--

		row := make([]string, 0, len(header))
		for _, f := range fm.Fields {
			if v, ok := shared[f.Name]; ok {
				row = append(row, v)
				continue
			}
			row = append(row, value(f, rng))
		}
		body = append(body, append(row, stateCode))
	}
	return body, nil
}

// householdFields maps raw variable names to whether they land in a
// household-scoped table, using the positional rename table.
func householdFields(fm domain.FieldMap) (map[string]bool, error) {
	readable := schema.ReadableColumns()
	if len(fm.Fields)+1 != len(readable) {
		return nil, fmt.Errorf("%w: field map has %d fields plus state, rename table has %d",
			domain.ErrColumnCountMismatch, len(fm.Fields), len(readable))
	}

	var hhCols []string
	for _, t := range schema.HouseholdGroup().Tables {
		hhCols = append(hhCols, t.Columns...)
	}
	out := make(map[string]bool, len(fm.Fields))
	for i, f := range fm.Fields {
		out[f.Name] = slices.Contains(hhCols, readable[i])
	}
	return out, nil
}

func value(f domain.Field, rng *rand.Rand) string {
	if f.Kind == domain.Coded {
		codes := make([]string, 0, len(f.Labels))
		for c := range f.Labels {
			codes = append(codes, c)
		}
		slices.Sort(codes)
		return codes[rng.IntN(len(codes))]
	}
	r, ok := numericRanges[f.Name]
	if !ok {
		r = [2]int{0, 100}
	}
	return strconv.Itoa(r[0] + rng.IntN(r[1]-r[0]+1))
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
