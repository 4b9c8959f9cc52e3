package cleaning

import "strings"

// StateTable maps two-letter US state abbreviations to full state names.
type StateTable map[string]string

// DefaultStates returns a fresh copy of the 50-state table.
func DefaultStates() StateTable {
	out := make(StateTable, len(usStates))
	for k, v := range usStates {
		out[k] = v
	}
	return out
}

var usStates = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
}

// Expand returns the full name for abbr, matched case-insensitively. Unknown
// values are returned unchanged.
func (s StateTable) Expand(abbr string) string {
	if name, ok := s[strings.ToUpper(strings.TrimSpace(abbr))]; ok {
		return name
	}
	return abbr
}

// Merge returns a copy of s with overrides applied. Keys are upper-cased.
func (s StateTable) Merge(overrides map[string]string) StateTable {
	out := make(StateTable, len(s)+len(overrides))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}
