package decision

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RegionMap maps group-id prefixes (nucleus codes) to region codes.
// Keys are compared upper-cased.
type RegionMap map[string]string

// DefaultRegion is used when nothing else resolves.
const DefaultRegion = "CS"

// DefaultRegionMap returns the nucleus-to-region table the portal expects.
func DefaultRegionMap() RegionMap {
	m := RegionMap{}
	add := func(region string, nuclei ...string) {
		m[region] = region
		for _, n := range nuclei {
			m[n] = region
		}
	}
	add("BA", "BA2", "BA3", "BA4", "BA5")
	add("CS", "CS1", "CS2", "CS3")
	add("ES", "ES1", "ES2", "ES3")
	add("MA", "MA1", "MA2", "MA3")
	add("MS", "MS1", "MS2", "MS3")
	add("SP", "SP1", "SP2", "SP3")
	return m
}

func (m RegionMap) lookup(key string) (string, bool) {
	if len(m) == 0 || key == "" {
		return "", false
	}
	key = strings.ToUpper(key)
	if v, ok := m[key]; ok {
		return v, true
	}
	// Tolerate maps loaded from config with mixed-case keys.
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

var nucleusPrefix = regexp.MustCompile(`^([A-Za-z]{2}\d*)`)

// ResolveRegion picks the region code for a group. Order:
//  1. an explicit region value from the sheet (blank and "nan" ignored)
//  2. the group id looked up in m
//  3. the two-letter+digits prefix of the group id looked up in m
//  4. the first two letters of the group id
//  5. def (DefaultRegion when def is empty)
func ResolveRegion(explicit, groupID string, m RegionMap, def string) string {
	if def == "" {
		def = DefaultRegion
	}
	if v := strings.TrimSpace(explicit); v != "" && !strings.EqualFold(v, "nan") {
		return strings.ToUpper(v)
	}

	id := strings.TrimSpace(groupID)
	if id == "" {
		return def
	}
	if v, ok := m.lookup(id); ok {
		return v
	}
	if match := nucleusPrefix.FindStringSubmatch(id); match != nil {
		if v, ok := m.lookup(match[1]); ok {
			return v
		}
	}

	if utf8.RuneCountInString(id) >= 2 {
		r := []rune(id)
		if unicode.IsLetter(r[0]) && unicode.IsLetter(r[1]) {
			return strings.ToUpper(string(r[:2]))
		}
	}
	return def
}
