// Package decision holds the pure business rules that turn an evaluated
// record into a recommendation, plus the token normalization the rules and
// the portal depend on (severity synonyms, region codes, damage types,
// incidence units).
package decision

import "math"

// Recommend maps (severity, incidence%, age in years) to a Category.
// Rules are ordered and the first match wins:
//
//	Low                          -> MaintainCycle
//	Medium, incidence < 25       -> MaintainCycle
//	Medium, incidence >= 25      -> Reevaluate
//	High,   incidence <= 5       -> MaintainCycle
//	High,   5 < incidence <= 25  -> Reevaluate
//	High,   incidence > 25, age > 6        -> AcceleratedHarvest
//	High,   incidence > 25, 3 < age <= 6   -> AcceleratedHarvest if incidence > 75, else PartialAcceleratedHarvest
//	High,   incidence > 25, age <= 3       -> AreaClearing if incidence > 75, else PartialAreaClearing
//	Unknown                      -> MaintainCycle
//
// Recommend is total: NaN inputs are treated as zero.
func Recommend(sev Severity, incidencePct, ageYears float64) Category {
	inc := finite(incidencePct)
	age := finite(ageYears)

	switch sev {
	case SeverityLow:
		return MaintainCycle

	case SeverityMedium:
		if inc < 25 {
			return MaintainCycle
		}
		return Reevaluate

	case SeverityHigh:
		switch {
		case inc <= 5:
			return MaintainCycle
		case inc <= 25:
			return Reevaluate
		}
		switch {
		case age > 6:
			return AcceleratedHarvest
		case age > 3:
			if inc > 75 {
				return AcceleratedHarvest
			}
			return PartialAcceleratedHarvest
		default:
			if inc > 75 {
				return AreaClearing
			}
			return PartialAreaClearing
		}
	}

	// Unrecognized severity.
	return MaintainCycle
}

// RecommendToken is Recommend with the severity given as a raw sheet token.
func RecommendToken(severity string, incidencePct, ageYears float64) Category {
	return Recommend(ParseSeverity(severity), incidencePct, ageYears)
}

func finite(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
