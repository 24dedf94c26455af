package domain

import (
	"sort"
	"strings"
)

// stateCodes maps two-digit FIPS codes to state names for every state the
// ACS 1-year PUMS endpoint serves (50 states plus DC; Puerto Rico is a
// separate dataset).
var stateCodes = map[string]string{
	"01": "Alabama",
	"02": "Alaska",
	"04": "Arizona",
	"05": "Arkansas",
	"06": "California",
	"08": "Colorado",
	"09": "Connecticut",
	"10": "Delaware",
	"11": "District of Columbia",
	"12": "Florida",
	"13": "Georgia",
	"15": "Hawaii",
	"16": "Idaho",
	"17": "Illinois",
	"18": "Indiana",
	"19": "Iowa",
	"20": "Kansas",
	"21": "Kentucky",
	"22": "Louisiana",
	"23": "Maine",
	"24": "Maryland",
	"25": "Massachusetts",
	"26": "Michigan",
	"27": "Minnesota",
	"28": "Mississippi",
	"29": "Missouri",
	"30": "Montana",
	"31": "Nebraska",
	"32": "Nevada",
	"33": "New Hampshire",
	"34": "New Jersey",
	"35": "New Mexico",
	"36": "New York",
	"37": "North Carolina",
	"38": "North Dakota",
	"39": "Ohio",
	"40": "Oklahoma",
	"41": "Oregon",
	"42": "Pennsylvania",
	"44": "Rhode Island",
	"45": "South Carolina",
	"46": "South Dakota",
	"47": "Tennessee",
	"48": "Texas",
	"49": "Utah",
	"50": "Vermont",
	"51": "Virginia",
	"53": "Washington",
	"54": "West Virginia",
	"55": "Wisconsin",
	"56": "Wyoming",
}

// StateCode resolves a state name, case-insensitively, to its FIPS code.
func StateCode(name string) (string, bool) {
	name = normalizeStateName(name)
	for code, n := range stateCodes {
		if strings.ToLower(n) == name {
			return code, true
		}
	}
	return "", false
}

// StateName returns the display name for a FIPS code.
func StateName(code string) (string, bool) {
	n, ok := stateCodes[code]
	return n, ok
}

// IsState reports whether name resolves to a known state.
func IsState(name string) bool {
	_, ok := StateCode(name)
	return ok
}

// StateNames returns every state name, sorted.
func StateNames() []string {
	names := make([]string, 0, len(stateCodes))
	for _, n := range stateCodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StateField returns the coded field that turns the FIPS code the API
// appends in the "state" column into the state name.
func StateField() Field {
	labels := make(map[string]string, len(stateCodes))
	for code, n := range stateCodes {
		labels[code] = n
	}
	return CodedField("state", labels)
}

func normalizeStateName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
