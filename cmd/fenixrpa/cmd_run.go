// Package main implements the fenixrpa CLI commands.
// This file contains the submission run.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fenixrpa/internal/browser"
	"fenixrpa/internal/dataset"
	"fenixrpa/internal/logging"
	"fenixrpa/internal/portal"
	"fenixrpa/internal/run"
	"fenixrpa/internal/store"
)

var (
	continueAll    bool
	groupSelectors []string
	outPath        string
	visitDate      string
)

// runCmd submits the pending groups of a table
var runCmd = &cobra.Command{
	Use:   "run <table>",
	Short: "Submit the pending groups of a table to the portal",
	Long: `Loads the table, plans one report per group and files the reports on
the portal one after another in a single browser session.

After each group you are asked whether to continue with the next one;
--continue-all answers yes up front. Ctrl+C once stops after the record in
progress; a second Ctrl+C aborts immediately.

Confirmed units are marked in a copy of the table (see --out).`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmission,
}

// runSubmission wires the table, the browser session and the runner
func runSubmission(cmd *cobra.Command, args []string) error {
	log := logging.Get(logging.CategoryBoot)
	src := args[0]

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	header := headerDefaults()
	if err := header.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mode, err := groupMode()
	if err != nil {
		return err
	}
	date, err := parseVisitDate(visitDate)
	if err != nil {
		return err
	}
	table, recs, err := loadTable(src, mode)
	if err != nil {
		return err
	}

	opts := planOptions(date)
	groups := run.SelectGroups(recs, run.Selection{
		Mode:            mode,
		IncludeExisting: includeExisting || !cfg.Data.SkipExisting,
		Groups:          groupSelectors,
		Region:          regionFilter,
	}, opts)
	plans := run.BuildPlans(groups, opts)

	out := cmd.OutOrStdout()
	if len(plans) == 0 {
		fmt.Fprintln(out, warningStyle.Render("No pending groups, nothing to submit."))
		return nil
	}

	// Journal
	runID := uuid.NewString()
	var journal *store.Store
	if cfg.Journal.Enabled {
		journal, err = store.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
		r, err := journal.BeginRun(src, string(mode))
		if err != nil {
			return err
		}
		runID = r.ID
	}

	// Browser session
	drv := browser.New(browserOptions())
	cat := portal.DefaultCatalog()
	sup := portal.NewSupervisor(drv, cat, sessionConfig())
	defer func() {
		if err := sup.Close(); err != nil {
			log.Warn("closing browser: %v", err)
		}
	}()

	proc := portal.NewGroupProcessor(sup, cat, timing(), header)
	proc.DemotePartial = cfg.Form.DemotePartialRows

	runOpts := run.Options{
		RunID:    runID,
		Reporter: &consoleReporter{out: out},
	}
	if journal != nil {
		runOpts.Journal = journal
	}
	if continueAll {
		runOpts.Confirmer = run.ContinueAll
	} else {
		runOpts.Confirmer = &stdinConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: out}
	}
	runner := run.NewRunner(proc, runOpts)
	proc.OnOutcome = runner.Observe
	proc.ShouldStop = runner.Stopping

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Run %s: %d groups, %d records", shortID(runID), len(plans), countRecords(plans))))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	watchCtx, stopWatch := context.WithCancel(ctx)

	var (
		sum    run.Summary
		runErr error
	)
	g, gctx := errgroup.WithContext(watchCtx)
	g.Go(func() error {
		defer stopWatch()
		sum, runErr = runner.Run(ctx, plans)
		return nil
	})
	g.Go(func() error {
		return watchSignals(gctx, runner, cancel, out)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if journal != nil {
		sub, skip, fail := sum.Counts()
		if err := journal.FinishRun(runID, sum.Status(), sub, skip, fail); err != nil {
			log.Error("journal: %v", err)
		}
	}

	printSummary(out, sum)

	// Reconcile into the exported copy even after a failure: confirmed ids
	// are final once their report is sent.
	dst := outPath
	if dst == "" {
		dst = run.ExportPath(src)
	}
	if ids := sum.SubmittedIDs(); len(ids) > 0 {
		if err := exportTable(out, table, ids, dst); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("run %s ended early: %w", shortID(runID), runErr)
	}
	return nil
}

// exportTable writes the reconciled copy and lists ids it could not place.
func exportTable(out io.Writer, table *dataset.Table, ids []string, dst string) error {
	rep, err := run.Export(table, ids, dst)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s (%d rows updated)\n", successStyle.Render("Table written to"), dst, rep.Changed)
	if len(rep.Unmatched) > 0 {
		fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("%d ids not found in the table: %s", len(rep.Unmatched), strings.Join(rep.Unmatched, ", "))))
	}
	return nil
}

// watchSignals turns the first interrupt into a stop request at the next
// record boundary and the second into a hard cancel.
func watchSignals(ctx context.Context, runner *run.Runner, cancel context.CancelFunc, out io.Writer) error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			if !runner.Stopping() {
				fmt.Fprintln(out, warningStyle.Render("Stopping after the current record (press Ctrl+C again to abort)"))
				runner.RequestStop()
				continue
			}
			fmt.Fprintln(out, errorStyle.Render("Aborting"))
			cancel()
			return nil
		}
	}
}

func parseVisitDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	layout := cfg.Form.DateFormat
	if layout == "" {
		layout = "02/01/2006"
	}
	d, err := time.ParseInLocation(layout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (layout %s): %w", s, layout, err)
	}
	return d, nil
}

func headerDefaults() portal.HeaderDefaults {
	f := cfg.Form
	return portal.HeaderDefaults{
		Requester:      f.Requester,
		Urgency:        f.Urgency,
		OccurrenceType: f.OccurrenceType,
		DateFormat:     f.DateFormat,
		Narratives: portal.Narratives{
			ObjectiveNucleus:    f.Narratives.ObjectiveNucleus,
			ObjectiveProperty:   f.Narratives.ObjectiveProperty,
			Diagnosis:           f.Narratives.Diagnosis,
			LessonsLearned:      f.Narratives.LessonsLearned,
			FinalConsiderations: f.Narratives.FinalConsiderations,
		},
	}
}

func browserOptions() browser.Options {
	b := cfg.Browser
	return browser.Options{
		DebuggerURL:       b.DebuggerURL,
		Bin:               b.Bin,
		Flags:             b.Flags,
		Headless:          b.Headless,
		ViewportWidth:     b.ViewportWidth,
		ViewportHeight:    b.ViewportHeight,
		NavigationTimeout: cfg.Timeouts.GetNavigation(),
		ActionTimeout:     cfg.Timeouts.GetLocateAttempt(),
	}
}

func sessionConfig() portal.SessionConfig {
	t := cfg.Timeouts
	sc := portal.SessionConfig{
		BaseURL:       cfg.Portal.BaseURL,
		LoginTimeout:  t.GetLogin(),
		LoginPoll:     t.GetLoginPoll(),
		HealthTimeout: t.GetHealth(),
		NavTimeout:    t.GetNavigation(),
		LocateTimeout: t.GetLocateAttempt(),
		Settle:        t.GetSettle(),
	}
	if cfg.UseCredentials() {
		sc.Credentials = &portal.Credentials{
			Username: cfg.Portal.Username,
			Password: cfg.Portal.Password,
		}
	}
	return sc
}

func timing() portal.Timing {
	t := cfg.Timeouts
	return portal.Timing{
		Settle:          t.GetSettle(),
		FilterRefresh:   t.GetFilterRefresh(),
		NoMatchProbe:    t.GetNoMatchProbe(),
		Retries:         cfg.Retry.BindRetries,
		RetryWaitFactor: cfg.Retry.RetryWaitFactor,
	}
}

func countRecords(plans []portal.GroupPlan) int {
	n := 0
	for _, p := range plans {
		n += len(p.Records)
	}
	return n
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// =============================================================================
// OPERATOR I/O
// =============================================================================

// consoleReporter renders progress for the operator.
type consoleReporter struct {
	out io.Writer
}

func (r *consoleReporter) GroupStarted(index, total int, plan portal.GroupPlan) {
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "%s %s %s\n",
		headerStyle.Render(fmt.Sprintf("[%d/%d]", index+1, total)),
		plan.Name,
		mutedStyle.Render(fmt.Sprintf("region %s, %d records", plan.Region, len(plan.Records))))
}

func (r *consoleReporter) Outcome(groupID string, o portal.Outcome) {
	switch o.Status {
	case portal.Submitted:
		line := fmt.Sprintf("  ✓ %s row %d", o.RecordID, o.Row)
		if len(o.Partial) > 0 {
			fmt.Fprintln(r.out, warningStyle.Render(line+" (unconfirmed: "+strings.Join(o.Partial, ", ")+")"))
			return
		}
		fmt.Fprintln(r.out, successStyle.Render(line))
	case portal.Skipped:
		fmt.Fprintln(r.out, mutedStyle.Render(fmt.Sprintf("  - %s not in portal", o.RecordID)))
	default:
		fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("  ✗ %s: %s", o.RecordID, o.Reason)))
	}
}

func (r *consoleReporter) GroupFinished(g run.GroupSummary) {
	switch {
	case g.Err != nil:
		fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("  group failed: %v", g.Err)))
	case g.Finalized && g.Stopped:
		fmt.Fprintln(r.out, warningStyle.Render(fmt.Sprintf("  stopped, report sent with the %d records bound so far", len(g.Submitted))))
	case g.Finalized:
		fmt.Fprintln(r.out, successStyle.Render(fmt.Sprintf("  report sent: %d submitted in %s", len(g.Submitted), g.Duration.Round(time.Second))))
	case g.Stopped:
		fmt.Fprintln(r.out, warningStyle.Render("  stopped before any record was bound, nothing sent"))
	default:
		fmt.Fprintln(r.out, warningStyle.Render("  nothing to send"))
	}
}

// stdinConfirmer asks the operator on the terminal before each next group.
// A single goroutine reads stdin for the whole run, so a prompt abandoned
// by cancellation does not leave a reader behind to steal the next line.
type stdinConfirmer struct {
	in  *bufio.Reader
	out io.Writer

	once  sync.Once
	lines chan answer
}

type answer struct {
	line string
	err  error
}

func (c *stdinConfirmer) readLines() {
	defer close(c.lines)
	for {
		line, err := c.in.ReadString('\n')
		c.lines <- answer{line, err}
		if err != nil {
			return
		}
	}
}

func (c *stdinConfirmer) Continue(ctx context.Context, done run.GroupSummary, next portal.GroupPlan, remaining int) (bool, error) {
	c.once.Do(func() {
		c.lines = make(chan answer)
		go c.readLines()
	})
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "\nContinue with %s (%d groups left)? [y/N] ", next.Name, remaining)

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a, ok := <-c.lines:
		if !ok {
			return false, nil
		}
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes", "s", "sim":
			return true, nil
		}
		return false, nil
	}
}

func printSummary(out io.Writer, sum run.Summary) {
	sub, skip, fail := sum.Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render("Run "+shortID(sum.RunID)))
	fmt.Fprintf(&b, "groups     %d sent of %d attempted\n", finalizedGroups(sum), len(sum.Groups))
	fmt.Fprintf(&b, "submitted  %s\n", successStyle.Render(fmt.Sprint(sub)))
	fmt.Fprintf(&b, "skipped    %s\n", mutedStyle.Render(fmt.Sprint(skip)))
	fmt.Fprintf(&b, "failed     %s\n", errorStyle.Render(fmt.Sprint(fail)))
	fmt.Fprintf(&b, "success    %.1f%%\n", sum.SuccessRate())
	fmt.Fprintf(&b, "duration   %s", sum.Duration().Round(time.Second))

	switch {
	case sum.Interrupted:
		fmt.Fprintf(&b, "\n%s", errorStyle.Render("interrupted"))
	case sum.Stopped:
		fmt.Fprintf(&b, "\n%s", warningStyle.Render("stopped by operator"))
	case sum.Declined:
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render("operator ended the run"))
	}
	if len(sum.Unattempted) > 0 {
		fmt.Fprintf(&b, "\nnot attempted: %s", strings.Join(sum.Unattempted, ", "))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, summaryBox.Render(b.String()))
}

func finalizedGroups(sum run.Summary) int {
	n := 0
	for _, g := range sum.Groups {
		if g.Finalized {
			n++
		}
	}
	return n
}
