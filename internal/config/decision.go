package config

import "fenixrpa/internal/decision"

// DecisionConfig holds the business-rule lookup tables.
type DecisionConfig struct {
	DefaultRegion  string            `yaml:"default_region"`
	Regions        map[string]string `yaml:"regions"`
	IncidenceUnit  string            `yaml:"incidence_unit"` // auto, percent, fraction
	DamageTypes    map[string]string `yaml:"damage_types"`
	DamageFallback string            `yaml:"damage_fallback"`
}

// DefaultDecisionConfig returns the tables the portal currently accepts.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		DefaultRegion:  decision.DefaultRegion,
		Regions:        decision.DefaultRegionMap(),
		IncidenceUnit:  string(decision.IncidenceAuto),
		DamageTypes:    decision.DefaultDamageMap(),
		DamageFallback: decision.DefaultDamageFallback,
	}
}

// RegionMap returns the configured region table, or the default one.
func (d DecisionConfig) RegionMap() decision.RegionMap {
	if len(d.Regions) == 0 {
		return decision.DefaultRegionMap()
	}
	return decision.RegionMap(d.Regions)
}

// DamageMap returns the configured damage table, or the default one.
func (d DecisionConfig) DamageMap() decision.DamageMap {
	if len(d.DamageTypes) == 0 {
		return decision.DefaultDamageMap()
	}
	return decision.DamageMap(d.DamageTypes)
}

// Unit returns the parsed incidence unit, falling back to auto.
func (d DecisionConfig) Unit() decision.IncidenceUnit {
	u, err := decision.ParseIncidenceUnit(d.IncidenceUnit)
	if err != nil {
		return decision.IncidenceAuto
	}
	return u
}
