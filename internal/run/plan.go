// Package run drives a whole submission run: it turns dataset groups into
// portal plans, processes them one at a time on a single session, asks the
// operator before each next group and reconciles the confirmed ids back
// into the source table.
package run

import (
	"time"

	"fenixrpa/internal/dataset"
	"fenixrpa/internal/decision"
	"fenixrpa/internal/logging"
	"fenixrpa/internal/portal"
)

// PlanOptions carries the decision tables used to plan records.
type PlanOptions struct {
	Regions        decision.RegionMap
	DefaultRegion  string
	Damage         decision.DamageMap
	DamageFallback string
	// VisitDate is stamped on every report; zero means the day it is sent.
	VisitDate time.Time
}

// Selection narrows the records of a table to the groups to submit.
type Selection struct {
	Mode dataset.GroupMode
	// IncludeExisting submits rows whose report was already filed.
	IncludeExisting bool
	// Groups selects by group id or name; empty means all.
	Groups []string
	// Region keeps only groups resolving to this region code.
	Region string
}

// SelectGroups applies the pending filter, grouping and selection.
func SelectGroups(recs []dataset.SourceRecord, sel Selection, opts PlanOptions) []dataset.Group {
	if !sel.IncludeExisting {
		recs = dataset.Pending(recs)
	}
	groups := dataset.GroupRecords(recs, sel.Mode)
	groups = dataset.Select(groups, sel.Groups)
	return dataset.FilterRegion(groups, sel.Region, opts.RegionOf)
}

// RegionOf resolves a group's report region.
func (o PlanOptions) RegionOf(g dataset.Group) string {
	return decision.ResolveRegion(g.Region, g.NucleusID, o.Regions, o.DefaultRegion)
}

// BuildPlans converts groups into portal plans.
func BuildPlans(groups []dataset.Group, opts PlanOptions) []portal.GroupPlan {
	plans := make([]portal.GroupPlan, 0, len(groups))
	for _, g := range groups {
		p := portal.GroupPlan{
			ID:         g.ID,
			Name:       g.Name,
			ByProperty: g.Mode == dataset.ByProperty,
			Region:     opts.RegionOf(g),
			VisitDate:  opts.VisitDate,
		}
		for _, rec := range g.Records {
			p.Records = append(p.Records, PlanRecord(rec, opts))
		}
		plans = append(plans, p)
	}
	return plans
}

// PlanRecord applies the decision engine to one record. A precomputed
// recommendation in the sheet is only compared, never used.
func PlanRecord(rec dataset.SourceRecord, opts PlanOptions) portal.RecordPlan {
	log := logging.Get(logging.CategoryRun)

	sev := decision.ParseSeverity(rec.Severity)
	if sev == decision.SeverityUnknown {
		log.Warn("%s: severity %q not recognized, treated as %s", rec.ID, rec.Severity, sev.Label())
	}
	cat := decision.Recommend(sev, rec.Incidence, rec.Age)

	if rec.Recommendation != "" {
		if pre, ok := decision.ParseCategory(rec.Recommendation); !ok {
			log.Warn("%s: precomputed recommendation %q not recognized", rec.ID, rec.Recommendation)
		} else if pre != cat {
			log.Warn("%s: sheet says %s, rules give %s; using %s", rec.ID, pre.Label(), cat.Label(), cat.Label())
		}
	}

	damage, ok := decision.DamageLabel(rec.Occurrence, opts.Damage, opts.DamageFallback)
	if !ok {
		log.Warn("%s: occurrence %q has no damage type, using %s", rec.ID, rec.Occurrence, damage)
	}

	return portal.RecordPlan{
		ID:             rec.ID,
		PortalID:       rec.PortalID,
		DamageType:     damage,
		Incidence:      rec.Incidence,
		Severity:       sev.Label(),
		Recommendation: cat.Label(),
	}
}
