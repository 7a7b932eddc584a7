package decision

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IncidenceUnit is the unit contract for the incidence column.
type IncidenceUnit string

const (
	// IncidenceAuto guesses per value: an explicit "%" means percent, values
	// <= 1 are fractions, anything else is already a percentage. A genuine
	// sub-1% incidence is misread as a fraction under this unit.
	IncidenceAuto IncidenceUnit = "auto"
	// IncidencePercent takes every value as a percentage.
	IncidencePercent IncidenceUnit = "percent"
	// IncidenceFraction takes unsuffixed values as fractions of 1.
	IncidenceFraction IncidenceUnit = "fraction"
)

// ParseIncidenceUnit validates a configured unit. Empty means auto.
func ParseIncidenceUnit(s string) (IncidenceUnit, error) {
	switch u := IncidenceUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return IncidenceAuto, nil
	case IncidenceAuto, IncidencePercent, IncidenceFraction:
		return u, nil
	default:
		return "", fmt.Errorf("unknown incidence unit %q (want auto, percent or fraction)", s)
	}
}

// NormalizeIncidence converts a raw sheet value ("0.92", "92%", "92,5") to a
// percentage in [0, 100] under the given unit contract.
func NormalizeIncidence(raw string, unit IncidenceUnit) (float64, error) {
	s := strings.TrimSpace(raw)
	hasPct := strings.Contains(s, "%")
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty incidence")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid incidence %q", raw)
	}

	switch unit {
	case IncidencePercent:
	case IncidenceFraction:
		if !hasPct {
			v *= 100
		}
	default:
		if !hasPct && v <= 1 {
			v *= 100
		}
	}

	// 0.92*100 is 92.00000000000001 in binary floating point.
	v = math.Round(v*1e6) / 1e6
	return math.Min(math.Max(v, 0), 100), nil
}
