package dataset

import (
	"fmt"
	"strings"
)

// GroupMode selects what one report covers.
type GroupMode string

const (
	ByNucleus  GroupMode = "nucleus"
	ByProperty GroupMode = "property"
)

// ParseGroupMode validates a mode name. Empty means ByNucleus.
func ParseGroupMode(s string) (GroupMode, error) {
	switch m := GroupMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ByNucleus, nil
	case ByNucleus, ByProperty:
		return m, nil
	default:
		return "", fmt.Errorf("unknown group mode %q (want nucleus or property)", s)
	}
}

// Group is a set of records submitted as one report.
type Group struct {
	ID   string
	Name string
	Mode GroupMode
	// NucleusID is the group id of the first record; property groups use it
	// to resolve the report's region.
	NucleusID string
	// Region is the first explicit region value among the records.
	Region  string
	Records []SourceRecord
}

// GroupRecords clusters records in first-appearance order. Property groups
// are keyed by region and property name, so two regions sharing a farm name
// stay apart.
func GroupRecords(recs []SourceRecord, mode GroupMode) []Group {
	var (
		groups []Group
		index  = make(map[string]int)
	)
	for _, r := range recs {
		key, name := r.GroupID, r.GroupID
		if mode == ByProperty {
			name = r.Property
			if name == "" {
				name = r.GroupID
			}
			key = strings.ToUpper(r.Region) + "|" + name
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			id := name
			if mode == ByProperty && r.Region != "" {
				id = r.Region + "/" + name
			}
			groups = append(groups, Group{ID: id, Name: name, Mode: mode, NucleusID: r.GroupID})
		}
		if groups[i].Region == "" {
			groups[i].Region = r.Region
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// Pending drops records whose report was already filed.
func Pending(recs []SourceRecord) []SourceRecord {
	out := make([]SourceRecord, 0, len(recs))
	for _, r := range recs {
		if !r.Existing {
			out = append(out, r)
		}
	}
	return out
}

// Select keeps the groups whose ID or Name matches one of the given
// selectors, case-insensitively, in the original order. No selectors keeps
// every group.
func Select(groups []Group, selectors []string) []Group {
	if len(selectors) == 0 {
		return groups
	}
	want := make(map[string]bool, len(selectors))
	for _, s := range selectors {
		want[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	var out []Group
	for _, g := range groups {
		if want[strings.ToUpper(g.ID)] || want[strings.ToUpper(g.Name)] {
			out = append(out, g)
		}
	}
	return out
}

// FilterRegion keeps groups whose resolved region equals region.
func FilterRegion(groups []Group, region string, resolve func(Group) string) []Group {
	if region == "" {
		return groups
	}
	var out []Group
	for _, g := range groups {
		if strings.EqualFold(resolve(g), region) {
			out = append(out, g)
		}
	}
	return out
}
