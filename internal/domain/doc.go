// Package domain models U.S. Census ACS Public Use Microdata Sample (PUMS)
// records and the transformations applied to them before loading.
//
// # Data Source
//
// Records come from the Census Data API, 2022 ACS 1-year PUMS endpoint
// (https://api.census.gov/data/2022/acs/acs1/pums). A request names the
// variables to return and a state predicate:
//
//	?get=DIVISION,SEX,AGEP,...&for=state:06&key=<api key>
//
// The response is a JSON array of arrays. The first row is the header: the
// requested variables in request order, followed by "state" for the
// predicate. Every following row is one person. See [BuildQuery].
//
// # PUMS Conventions
//
// Codes:
//
//	Categorical variables are numeric codes ("1" = Male for SEX). The field
//	map document carries the code -> label dictionary for each coded variable.
//	Codes the dictionary does not know are left as-is.
//
// Measures:
//
//	Numeric variables (AGEP, WKHP, HINCP, ...) have no dictionary and pass
//	through untouched.
//
// Household variables:
//
//	Person records repeat the household's values (HINCP, VEH, TEL, ...) for
//	every member. The loader therefore gives each row both an individual and a
//	household identifier.
//
// State:
//
//	The "state" column holds the two-digit FIPS code and is recoded to the
//	state name with [StateField].
//
// # Normalization
//
// After recoding, columns are renamed positionally to readable names and the
// record set is split into the sub-tables declared by package schema. Each
// scope gets one UUID per row ([NewKeys]); every sub-table of the scope
// reuses it, so rows can be rejoined on id. See [Split].
package domain
