package cleaning

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/fuelclean/internal/table"
)

var (
	spaceRun  = regexp.MustCompile(`\s+`)
	commaRun  = regexp.MustCompile(`\s*,[\s,]*`)
	stateCode = regexp.MustCompile(`^[A-Z]{2}$`)
	zipCode   = regexp.MustCompile(`^\d{5}$`)
	zipState  = regexp.MustCompile(`^(\d{5})\s+([A-Z]{2})$`)
	stateZip  = regexp.MustCompile(`^([A-Z]{2})\s+(\d{5})$`)
)

const addrJoiner = ", "

// AddressNormalizer rewrites a free-text address column into
// "street, city, state, zip" order.
type AddressNormalizer struct {
	Column string
}

// Normalize returns a copy of t with every present address reformatted and the
// number of addresses whose text changed. If the column is absent the table is
// returned as is and skipped is true.
func (a AddressNormalizer) Normalize(t *table.Table) (out *table.Table, changed int, skipped bool) {
	if !t.Has(a.Column) {
		return t, 0, true
	}
	out, _ = t.MapColumn(a.Column, func(_ table.Row, c table.Cell) table.Cell {
		if c.Null {
			return c
		}
		formatted := FormatAddress(c.Value)
		if formatted == c.Value {
			return c
		}
		changed++
		return table.Text(formatted)
	})
	return out, changed, false
}

// address holds the fields recovered from one address string.
type address struct {
	street, city, state, zip string

	// cityOpen is set once a state segment is seen in the body; segments
	// after it are taken as the city.
	cityOpen bool
}

func (a *address) addStreet(s string) {
	if a.street != "" {
		a.street += addrJoiner
	}
	a.street += s
}

func (a *address) classify(seg string) {
	switch {
	case a.state == "" && stateCode.MatchString(seg):
		a.state = seg
		a.cityOpen = true
	case a.zip == "" && zipCode.MatchString(seg):
		a.zip = seg
	case a.cityOpen && a.city == "":
		a.city = seg
	default:
		a.addStreet(seg)
	}
}

func (a *address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.street, a.city, a.state, a.zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, addrJoiner)
}

// FormatAddress normalizes spacing and comma placement, then reorders the
// comma separated segments. A leading "ZIP ST" or "ST ZIP" segment is taken
// apart before the rest is scanned. Text that matches no state or zip pattern
// ends up entirely in the street field.
func FormatAddress(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	s = commaRun.ReplaceAllString(s, addrJoiner)
	s = strings.Trim(s, ", ")
	if s == "" {
		return s
	}

	segs := strings.Split(s, ",")
	for i := range segs {
		segs[i] = strings.TrimSpace(segs[i])
	}

	var addr address
	if len(segs) > 1 {
		if m := zipState.FindStringSubmatch(segs[0]); m != nil {
			addr.zip, addr.state = m[1], m[2]
			segs = segs[1:]
		} else if m := stateZip.FindStringSubmatch(segs[0]); m != nil {
			addr.state, addr.zip = m[1], m[2]
			segs = segs[1:]
		}
	}

	for _, seg := range segs {
		if seg == "" {
			continue
		}
		addr.classify(seg)
	}
	return addr.String()
}
