// Package main implements the fenixrpa CLI commands.
// This file contains the offline commands that only read the table.
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fenixrpa/internal/dataset"
	"fenixrpa/internal/decision"
	"fenixrpa/internal/logging"
	"fenixrpa/internal/run"
)

var (
	includeExisting bool
	groupBy         string
	regionFilter    string

	recSeverity  string
	recIncidence string
	recAge       float64
)

// groupsCmd previews the reports a run would file
var groupsCmd = &cobra.Command{
	Use:   "groups <table>",
	Short: "List the groups a run would submit",
	Args:  cobra.ExactArgs(1),
	RunE:  listGroups,
}

// recommendCmd evaluates the decision rules for one record
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Compute the recommendation for one evaluation",
	Long: `Applies the recommendation rules to a single evaluation.

Example:
  fenixrpa recommend --severity Alta --incidence 0.8 --age 2.5`,
	Args: cobra.NoArgs,
	RunE: recommend,
}

// groupMode resolves --by against the configured default.
func groupMode() (dataset.GroupMode, error) {
	if groupBy != "" {
		return dataset.ParseGroupMode(groupBy)
	}
	return dataset.ParseGroupMode(cfg.Data.GroupBy)
}

// loadTable reads the table and reports row issues. Error-level rows are
// already excluded from the returned records.
func loadTable(path string, mode dataset.GroupMode) (*dataset.Table, []dataset.SourceRecord, error) {
	log := logging.Get(logging.CategoryDataset)

	t, err := dataset.Load(path, dataset.Options{
		Sheet:           cfg.Data.Sheet,
		Aliases:         cfg.Data.Columns,
		FlagYes:         cfg.Data.FlagYes,
		Unit:            cfg.Decision.Unit(),
		RequireProperty: mode == dataset.ByProperty,
	})
	if err != nil {
		return nil, nil, err
	}

	recs, issues := t.Records()
	for _, is := range issues {
		if is.Level == dataset.IssueError {
			log.Error("%s", is)
		} else {
			log.Warn("%s", is)
		}
	}
	log.Info("loaded %d records from %s (%d issues)", len(recs), path, len(issues))
	return t, recs, nil
}

// planOptions builds the decision tables from config.
func planOptions(date time.Time) run.PlanOptions {
	return run.PlanOptions{
		Regions:        cfg.Decision.RegionMap(),
		DefaultRegion:  cfg.Decision.DefaultRegion,
		Damage:         cfg.Decision.DamageMap(),
		DamageFallback: cfg.Decision.DamageFallback,
		VisitDate:      date,
	}
}

// listGroups prints the groups and the recommendation per record
func listGroups(cmd *cobra.Command, args []string) error {
	mode, err := groupMode()
	if err != nil {
		return err
	}
	_, recs, err := loadTable(args[0], mode)
	if err != nil {
		return err
	}

	opts := planOptions(time.Time{})
	groups := run.SelectGroups(recs, run.Selection{
		Mode:            mode,
		IncludeExisting: includeExisting || !cfg.Data.SkipExisting,
		Region:          regionFilter,
	}, opts)
	plans := run.BuildPlans(groups, opts)

	out := cmd.OutOrStdout()
	if len(plans) == 0 {
		fmt.Fprintln(out, warningStyle.Render("No pending groups."))
		return nil
	}

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d groups by %s", len(plans), mode)))
	for _, p := range plans {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s  %s\n", headerStyle.Render(p.Name), mutedStyle.Render(fmt.Sprintf("region %s, %d records", p.Region, len(p.Records))))

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, r := range p.Records {
			fmt.Fprintf(w, "  %s\t%s\t%s%%\t%s\t%s\n", r.ID, r.DamageType, r.IncidenceText(), r.Severity, r.Recommendation)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// recommend prints the category for one (severity, incidence, age)
func recommend(cmd *cobra.Command, args []string) error {
	inc, err := decision.NormalizeIncidence(recIncidence, cfg.Decision.Unit())
	if err != nil {
		return fmt.Errorf("invalid incidence: %w", err)
	}

	sev := decision.ParseSeverity(recSeverity)
	cat := decision.Recommend(sev, inc, recAge)

	out := cmd.OutOrStdout()
	if sev == decision.SeverityUnknown {
		fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("severity %q not recognized, treated as %s", recSeverity, sev.Label())))
	}
	fmt.Fprintf(out, "severity=%s incidence=%g%% age=%g\n", sev, inc, recAge)
	fmt.Fprintf(out, "%s (%s)\n", successStyle.Render(cat.Label()), cat)
	return nil
}
