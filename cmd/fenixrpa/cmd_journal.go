// Package main implements the fenixrpa CLI commands.
// This file contains the commands reading the run journal.
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fenixrpa/internal/run"
	"fenixrpa/internal/store"
)

var (
	reconcileRun string
	historyLimit int
)

// reconcileCmd re-applies a journaled run to a table
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <table>",
	Short: "Mark the ids confirmed by a past run as filed",
	Long: `Reads the ids a journaled run confirmed and marks them in a copy of the
table. Running it twice changes nothing the second time.

Example:
  fenixrpa reconcile ups.xlsx --run 3f2a9c`,
	Args: cobra.ExactArgs(1),
	RunE: reconcileTable,
}

// historyCmd lists journaled runs
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or the outcomes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showHistory,
}

func openJournal() (*store.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, fmt.Errorf("journal is disabled (journal.enabled: false)")
	}
	return store.Open(cfg.Journal.Path)
}

// reconcileTable applies a run's confirmed ids to a table
func reconcileTable(cmd *cobra.Command, args []string) error {
	st, err := openJournal()
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := st.GetRun(reconcileRun)
	if err != nil {
		return err
	}
	ids, err := st.SubmittedIDs(r.ID)
	if err != nil {
		return err
	}

	mode, err := groupMode()
	if err != nil {
		return err
	}
	table, _, err := loadTable(args[0], mode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s confirmed %d ids\n", shortID(r.ID), len(ids))
	if len(ids) == 0 {
		return nil
	}

	dst := outPath
	if dst == "" {
		dst = run.ExportPath(args[0])
	}
	return exportTable(out, table, ids, dst)
}

// showHistory prints recent runs, or one run's groups and outcomes
func showHistory(cmd *cobra.Command, args []string) error {
	st, err := openJournal()
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return showRun(cmd, st, args[0])
	}

	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No runs recorded."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tSUBMITTED\tSKIPPED\tFAILED\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Status,
			r.Submitted, r.Skipped, r.Failed, r.Source)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, st *store.Store, id string) error {
	r, err := st.GetRun(id)
	if err != nil {
		return err
	}
	groups, err := st.Groups(r.ID)
	if err != nil {
		return err
	}
	outcomes, err := st.Outcomes(r.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Run %s (%s)", r.ID, r.Status)))
	fmt.Fprintf(out, "%s, grouped by %s, started %s\n", r.Source, r.Mode, r.StartedAt.Local().Format(time.DateTime))

	for _, g := range groups {
		state := successStyle.Render("sent")
		if !g.Finalized {
			state = errorStyle.Render("not sent")
		}
		fmt.Fprintf(out, "\n%s %s", headerStyle.Render(g.GroupID), state)
		if g.Failure != "" {
			fmt.Fprintf(out, " %s", mutedStyle.Render(g.Failure))
		}
		fmt.Fprintln(out)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, o := range outcomes {
			if o.GroupID != g.GroupID {
				continue
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", o.RecordID, o.Status, o.Reason)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
