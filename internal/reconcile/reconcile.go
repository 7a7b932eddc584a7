// Package reconcile marks confirmed submissions back into the source table.
package reconcile

import (
	"strings"
	"unicode"

	"fenixrpa/internal/decision"
	"fenixrpa/internal/logging"
)

// Sheet is the part of a source table reconciliation needs.
type Sheet interface {
	Len() int
	ID(i int) string
	Flag(i int) string
	SetFlag(i int, v string)
}

// Strategy is one way of matching a submitted id to a source row.
type Strategy int

const (
	// Exact compares the trimmed strings.
	Exact Strategy = iota
	// Normalized ignores case, accents, whitespace, dashes and underscores.
	Normalized
	// Alphanumeric compares only letters and digits.
	Alphanumeric
	// Contains accepts a source id that contains the submitted one.
	Contains
)

var strategies = []Strategy{Exact, Normalized, Alphanumeric, Contains}

func (s Strategy) String() string {
	switch s {
	case Normalized:
		return "normalized"
	case Alphanumeric:
		return "alphanumeric"
	case Contains:
		return "contains"
	}
	return "exact"
}

// minContains keeps very short ids from matching half the sheet.
const minContains = 3

// Match records which rows an id matched and how.
type Match struct {
	ID       string
	Rows     []int
	Strategy Strategy
	// Changed counts rows whose flag was not already set.
	Changed int
}

// Report is the result of UpdateStatus.
type Report struct {
	Matches []Match
	// Unmatched ids matched no strategy.
	Unmatched []string
	// Changed is the number of rows actually modified.
	Changed int
}

// ByStrategy counts matched ids per strategy.
func (r Report) ByStrategy() map[Strategy]int {
	out := make(map[Strategy]int)
	for _, m := range r.Matches {
		out[m.Strategy]++
	}
	return out
}

// UpdateStatus sets the flag of every row matching a submitted id to mark.
// Strategies are tried in order and the first one that matches any row
// wins for that id. Rows already carrying mark are left alone, so running
// it again with the same ids changes nothing.
func UpdateStatus(t Sheet, ids []string, mark string) Report {
	log := logging.Get(logging.CategoryReconcile)
	keys := make([]rowKeys, t.Len())
	for i := range keys {
		keys[i] = keysFor(t.ID(i))
	}

	var rep Report
	seen := make(map[string]bool)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		want := keysFor(id)
		m, ok := match(keys, want)
		if !ok {
			rep.Unmatched = append(rep.Unmatched, id)
			log.Warn("submitted id %q matches no source row", id)
			continue
		}
		m.ID = id
		for _, row := range m.Rows {
			if decision.Fold(t.Flag(row)) == decision.Fold(mark) {
				continue
			}
			t.SetFlag(row, mark)
			m.Changed++
		}
		rep.Changed += m.Changed
		rep.Matches = append(rep.Matches, m)
		if m.Strategy != Exact {
			log.Info("%q matched %d row(s) by %s", id, len(m.Rows), m.Strategy)
		}
	}
	log.Info("reconciled %d ids: %d rows changed, %d unmatched", len(seen), rep.Changed, len(rep.Unmatched))
	return rep
}

type rowKeys struct {
	exact, normalized, alnum string
}

func keysFor(id string) rowKeys {
	return rowKeys{
		exact:      strings.TrimSpace(id),
		normalized: strings.ReplaceAll(decision.Fold(id), " ", ""),
		alnum:      alphanumeric(id),
	}
}

func alphanumeric(s string) string {
	var b strings.Builder
	for _, r := range decision.Fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func match(rows []rowKeys, want rowKeys) (Match, bool) {
	for _, s := range strategies {
		var hits []int
		for i, k := range rows {
			if matches(s, k, want) {
				hits = append(hits, i)
			}
		}
		if len(hits) > 0 {
			return Match{Rows: hits, Strategy: s}, true
		}
	}
	return Match{}, false
}

func matches(s Strategy, row, want rowKeys) bool {
	switch s {
	case Exact:
		return row.exact != "" && row.exact == want.exact
	case Normalized:
		return row.normalized != "" && row.normalized == want.normalized
	case Alphanumeric:
		return row.alnum != "" && row.alnum == want.alnum
	case Contains:
		return len(want.normalized) >= minContains && strings.Contains(row.normalized, want.normalized)
	}
	return false
}
