// Package schema defines how the flat PUMS record set is normalized into
// relational sub-tables.
//
// Columns are referenced by their readable names, i.e. the names produced by
// renaming the raw API columns with [ReadableColumns]. The two must stay in
// sync: a sub-table that references a column the record set does not have is a
// configuration error reported by [Group.Validate].
package schema

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// KeyColumn is the correlation identifier column prepended to every sub-table.
	KeyColumn = "id"

	// StateColumn holds the state name after recoding.
	StateColumn = "state"

	// DuplicateCheckTable is queried for already-loaded states.
	DuplicateCheckTable = "demographics"
)

// ErrUnknownColumn means a sub-table references a column absent from the record set.
var ErrUnknownColumn = errors.New("schema references unknown column")

// Scope selects which correlation identifier a group's rows receive.
type Scope int

const (
	Individual Scope = iota
	Household
)

func (s Scope) String() string {
	switch s {
	case Individual:
		return "individual"
	case Household:
		return "household"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Table is one normalized sub-table.
type Table struct {
	Name    string
	Columns []string

	// CarriesState copies the state column into a household-scoped table so
	// it can be filtered by state without a join.
	CarriesState bool
}

// Projection returns the record set columns the table is built from.
func (t Table) Projection() []string {
	cols := slices.Clone(t.Columns)
	if t.CarriesState && !slices.Contains(cols, StateColumn) {
		cols = append(cols, StateColumn)
	}
	return cols
}

// Group is an ordered set of sub-tables sharing one correlation scope.
type Group struct {
	Scope  Scope
	Tables []Table
}

// Validate reports the first sub-table column missing from columns.
func (g Group) Validate(columns []string) error {
	for _, t := range g.Tables {
		for _, c := range t.Projection() {
			if !slices.Contains(columns, c) {
				return fmt.Errorf("%w: table %s column %s", ErrUnknownColumn, t.Name, c)
			}
		}
	}
	return nil
}

// TableNames lists the group's tables in order.
func (g Group) TableNames() []string {
	names := make([]string, len(g.Tables))
	for i, t := range g.Tables {
		names[i] = t.Name
	}
	return names
}

// IndividualGroup returns the person-scoped sub-tables.
func IndividualGroup() Group {
	return Group{
		Scope: Individual,
		Tables: []Table{
			{Name: "demographics", Columns: []string{
				"state", "division", "age", "sex", "race_group_1", "race_group_2",
				"race_group_3", "marital_status", "disability",
			}},
			{Name: "education", Columns: []string{
				"school_enrollment", "current_grade_level", "attained_education",
			}},
			{Name: "employment", Columns: []string{
				"worker_class", "usual_hrs_worked_per_week",
			}},
		},
	}
}

// HouseholdGroup returns the household-scoped sub-tables.
func HouseholdGroup() Group {
	return Group{
		Scope: Household,
		Tables: []Table{
			{Name: "languages", Columns: []string{
				"lang_spoken_at_home", "non_engl_lang_spoken_at_home",
				"limited_engl_speaking_household",
			}},
			{Name: "tech_access", Columns: []string{
				"smartphone", "telephone_service", "cell_data_plan", "computer",
				"tablet", "intnt_access", "satellite_intnt_service",
				"high_speed_intnt", "other_intnt_service",
			}},
			{Name: "transportation", Columns: []string{
				"num_of_vehicles",
			}},
			{Name: "income_costs", Columns: []string{
				"household_income", "monthly_electricity_cost", "monthly_gas_cost",
				"monthly_rent", "property_taxes", "annual_water_cost",
			}, CarriesState: true},
		},
	}
}

// Groups returns every group in load order.
func Groups() []Group {
	return []Group{IndividualGroup(), HouseholdGroup()}
}

// ReadableColumns is the positional rename table applied to the raw API
// response: the field map's fields in order, followed by the state column the
// API appends for the "for=state:" predicate.
func ReadableColumns() []string {
	return []string{
		"division", "sex", "age", "race_group_1", "race_group_2", "race_group_3",
		"marital_status", "disability", "lang_spoken_at_home", "non_engl_lang_spoken_at_home",
		"limited_engl_speaking_household", "smartphone", "telephone_service",
		"cell_data_plan", "computer", "tablet", "intnt_access", "satellite_intnt_service",
		"high_speed_intnt", "other_intnt_service", "school_enrollment", "current_grade_level",
		"attained_education", "num_of_vehicles", "worker_class", "usual_hrs_worked_per_week",
		"household_income", "monthly_electricity_cost", "monthly_gas_cost",
		"monthly_rent", "property_taxes", "annual_water_cost", "state",
	}
}
