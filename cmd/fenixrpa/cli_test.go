package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenixrpa/internal/config"
	"fenixrpa/internal/dataset"
	"fenixrpa/internal/portal"
	"fenixrpa/internal/run"
	"fenixrpa/internal/store"
)

const sampleTable = "UP;Núcleo;Idade;Ocorrência Predominante;Severidade Predominante;Incidencia;Laudo Existente\n" +
	"UP001;CS1;8;INCENDIO;Alta;80;NÃO\n" +
	"UP002;CS1;2;VENDAVAL;Média;10;NÃO\n" +
	"UP003;ES2;5;INCENDIO;Alta;0,9;SIM\n" +
	"UP004;ES2;5;DEFICIT HIDRICO;Alta;0,5;NÃO\n"

// setup resets the package globals a command reads and returns a command
// whose output is captured.
func setup(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	cfg = config.DefaultConfig()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	includeExisting, continueAll = false, false
	groupBy, regionFilter, outPath, visitDate = "", "", "", ""
	groupSelectors = nil

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func writeTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ups.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleTable), 0644))
	return path
}

func TestRecommend(t *testing.T) {
	cmd, buf := setup(t)
	recSeverity, recIncidence, recAge = "Alta", "0.8", 2.5

	require.NoError(t, recommend(cmd, nil))
	out := buf.String()
	assert.Contains(t, out, "severity=High incidence=80% age=2.5")
	assert.Contains(t, out, "Limpeza de Área")
	assert.Contains(t, out, "AreaClearing")
}

func TestRecommendUnknownSeverity(t *testing.T) {
	cmd, buf := setup(t)
	recSeverity, recIncidence, recAge = "grave", "90%", 10

	require.NoError(t, recommend(cmd, nil))
	assert.Contains(t, buf.String(), "not recognized")
	assert.Contains(t, buf.String(), "Manter Ciclo")
}

func TestRecommendInvalidIncidence(t *testing.T) {
	cmd, _ := setup(t)
	recSeverity, recIncidence, recAge = "Alta", "muito", 1

	assert.Error(t, recommend(cmd, nil))
}

func TestListGroups(t *testing.T) {
	cmd, buf := setup(t)
	path := writeTable(t)

	require.NoError(t, listGroups(cmd, []string{path}))
	out := buf.String()
	assert.Contains(t, out, "2 groups by nucleus")
	assert.Contains(t, out, "UP001")
	assert.Contains(t, out, "Antecipar Colheita")
	assert.Contains(t, out, "region ES")
	assert.NotContains(t, out, "UP003", "already filed rows are left out")

	buf.Reset()
	includeExisting = true
	regionFilter = "ES"
	require.NoError(t, listGroups(cmd, []string{path}))
	out = buf.String()
	assert.Contains(t, out, "1 groups by nucleus")
	assert.Contains(t, out, "UP003")
	assert.NotContains(t, out, "UP001")
}

func TestListGroupsBadMode(t *testing.T) {
	cmd, _ := setup(t)
	groupBy = "farm"
	assert.Error(t, listGroups(cmd, []string{writeTable(t)}))
}

func TestRunNothingPending(t *testing.T) {
	cmd, buf := setup(t)
	groupSelectors = []string{"MS9"}

	require.NoError(t, runSubmission(cmd, []string{writeTable(t)}))
	assert.Contains(t, buf.String(), "No pending groups")
}

func TestRunRejectsBadDate(t *testing.T) {
	cmd, _ := setup(t)
	visitDate = "2026-03-09"

	err := runSubmission(cmd, []string{writeTable(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--date")
}

func TestParseVisitDate(t *testing.T) {
	setup(t)

	d, err := parseVisitDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseVisitDate("09/03/2026")
	require.NoError(t, err)
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 9, d.Day())
}

func TestSessionConfigCredentials(t *testing.T) {
	setup(t)
	assert.Nil(t, sessionConfig().Credentials)

	cfg.Portal.Username = "ana@example.com"
	cfg.Portal.Password = "secret"
	sc := sessionConfig()
	require.NotNil(t, sc.Credentials)
	assert.Equal(t, "ana@example.com", sc.Credentials.Username)
	assert.Equal(t, cfg.Portal.BaseURL, sc.BaseURL)

	cfg.Portal.LoginMode = "interactive"
	assert.Nil(t, sessionConfig().Credentials)
}

func TestTimingFromConfig(t *testing.T) {
	setup(t)
	cfg.Timeouts.Settle = "250ms"
	cfg.Retry.BindRetries = 3

	tm := timing()
	assert.Equal(t, 250*time.Millisecond, tm.Settle)
	assert.Equal(t, 3, tm.Retries)
	assert.Equal(t, 2*time.Second, tm.FilterRefresh)
}

func TestHeaderDefaultsFromConfig(t *testing.T) {
	setup(t)
	h := headerDefaults()
	require.NoError(t, h.Validate())
	assert.Equal(t, "Geocat", h.Requester)
	assert.Contains(t, h.Narratives.ObjectiveNucleus, "{{.Name}}")
}

func TestReconcileFromJournal(t *testing.T) {
	cmd, buf := setup(t)
	path := writeTable(t)

	st, err := store.Open(cfg.Journal.Path)
	require.NoError(t, err)
	r, err := st.BeginRun(path, "nucleus")
	require.NoError(t, err)
	for _, o := range []store.OutcomeRecord{
		{RunID: r.ID, GroupID: "CS1", RecordID: "UP001", Status: "submitted", Row: 0},
		{RunID: r.ID, GroupID: "CS1", RecordID: "UP002", Status: "submitted", Row: 1},
		{RunID: r.ID, GroupID: "ES2", RecordID: "UP004", Status: "submitted", Row: 0},
	} {
		require.NoError(t, st.AppendOutcome(o))
	}
	require.NoError(t, st.FinishGroup(store.GroupRecord{RunID: r.ID, GroupID: "CS1", Finalized: true}))
	require.NoError(t, st.FinishGroup(store.GroupRecord{RunID: r.ID, GroupID: "ES2", Failure: "finalize: send button missing"}))
	require.NoError(t, st.Close())

	reconcileRun = r.ID[:8]
	require.NoError(t, reconcileTable(cmd, []string{path}))
	assert.Contains(t, buf.String(), "confirmed 2 ids")

	out := run.ExportPath(path)
	tbl, err := dataset.Load(out, dataset.Options{})
	require.NoError(t, err)
	assert.Equal(t, "SIM", tbl.Flag(0))
	assert.Equal(t, "SIM", tbl.Flag(1))
	assert.Equal(t, "NÃO", tbl.Flag(3), "group ES2 was never sent")

	buf.Reset()
	require.NoError(t, showHistory(cmd, nil))
	assert.Contains(t, buf.String(), r.ID[:8])

	buf.Reset()
	require.NoError(t, showHistory(cmd, []string{r.ID}))
	assert.Contains(t, buf.String(), "not sent")
	assert.Contains(t, buf.String(), "UP004")
}

func TestReconcileUnknownRun(t *testing.T) {
	cmd, _ := setup(t)
	reconcileRun = "nope"

	err := reconcileTable(cmd, []string{writeTable(t)})
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestHistoryDisabledJournal(t *testing.T) {
	cmd, _ := setup(t)
	cfg.Journal.Enabled = false
	assert.Error(t, showHistory(cmd, nil))
}

func TestConfigInit(t *testing.T) {
	cmd, buf := setup(t)
	configPath = filepath.Join(t.TempDir(), ".fenix", "config.yaml")
	defer func() { configPath = config.DefaultPath }()

	require.NoError(t, configInit(cmd, nil))
	assert.Contains(t, buf.String(), "Wrote")

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Portal.BaseURL, loaded.Portal.BaseURL)

	assert.Error(t, configInit(cmd, nil), "existing file is not overwritten")

	configForce = true
	defer func() { configForce = false }()
	assert.NoError(t, configInit(cmd, nil))
}

func TestStdinConfirmer(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Sim\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		c := &stdinConfirmer{in: bufio.NewReader(strings.NewReader(tc.input)), out: &out}
		got, err := c.Continue(context.Background(), run.GroupSummary{}, portal.GroupPlan{Name: "CS2"}, 1)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "input %q", tc.input)
		assert.Contains(t, out.String(), "CS2")
	}
}

func TestStdinConfirmerSharesOneReader(t *testing.T) {
	var out bytes.Buffer
	c := &stdinConfirmer{in: bufio.NewReader(strings.NewReader("sim\nn\n")), out: &out}
	next := portal.GroupPlan{Name: "ES2"}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Continue(cancelled, run.GroupSummary{}, next, 2)
	assert.ErrorIs(t, err, context.Canceled)

	// The line typed after the abandoned prompt answers the next one.
	got, err := c.Continue(context.Background(), run.GroupSummary{}, next, 2)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = c.Continue(context.Background(), run.GroupSummary{}, next, 1)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = c.Continue(context.Background(), run.GroupSummary{}, next, 0)
	require.NoError(t, err)
	assert.False(t, got, "closed stdin declines")
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &consoleReporter{out: &buf}

	r.GroupStarted(0, 2, portal.GroupPlan{Name: "CS1", Region: "CS"})
	r.Outcome("CS1", portal.Outcome{RecordID: "UP001", Status: portal.Submitted, Row: 0})
	r.Outcome("CS1", portal.Outcome{RecordID: "UP002", Status: portal.Submitted, Row: 1, Partial: []string{"severity"}})
	r.Outcome("CS1", portal.Outcome{RecordID: "UP009", Status: portal.Skipped, Row: -1})
	r.Outcome("CS1", portal.Outcome{RecordID: "UP010", Status: portal.Failed, Row: -1, Reason: "damage_type: mismatch"})
	r.GroupFinished(run.GroupSummary{GroupID: "CS1", Finalized: true, Submitted: []string{"UP001", "UP002"}})

	out := buf.String()
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "UP002 row 1 (unconfirmed: severity)")
	assert.Contains(t, out, "UP009 not in portal")
	assert.Contains(t, out, "damage_type: mismatch")
	assert.Contains(t, out, "report sent: 2 submitted")
}

func TestConsoleReporterStoppedGroup(t *testing.T) {
	var buf bytes.Buffer
	r := &consoleReporter{out: &buf}

	r.GroupFinished(run.GroupSummary{GroupID: "CS1", Finalized: true, Stopped: true, Submitted: []string{"UP001"}})
	assert.Contains(t, buf.String(), "stopped, report sent with the 1 records bound so far")

	buf.Reset()
	r.GroupFinished(run.GroupSummary{GroupID: "CS2", Stopped: true})
	assert.Contains(t, buf.String(), "nothing sent")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	printSummary(&buf, run.Summary{
		RunID:      "0123456789abcdef",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Groups: []run.GroupSummary{
			{GroupID: "CS1", Finalized: true, Submitted: []string{"UP001"}, Skipped: []string{"UP009"}},
		},
		Unattempted: []string{"ES2"},
		Declined:    true,
	})

	out := buf.String()
	assert.Contains(t, out, "Run 01234567")
	assert.Contains(t, out, "1 sent of 1 attempted")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "not attempted: ES2")
}
