package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"fenixrpa/internal/decision"
)

// SourceRecord is one validated row. Immutable after ingest.
type SourceRecord struct {
	// Row is the 0-based data row in the Table.
	Row int

	ID string
	// PortalID is what gets typed into the portal's id selector. Defaults to ID.
	PortalID string
	GroupID  string
	// Region is the explicit region value, possibly empty.
	Region   string
	Property string

	Age        float64
	Occurrence string
	Severity   string
	// Incidence is a percentage in [0, 100].
	Incidence float64
	// Existing is true when a report was already filed for this row.
	Existing bool
	// Recommendation is the precomputed value from the sheet, if any.
	Recommendation string
}

// IssueLevel grades a RowIssue.
type IssueLevel int

const (
	// IssueWarning rows are kept with a substituted value.
	IssueWarning IssueLevel = iota
	// IssueError rows are dropped.
	IssueError
)

func (l IssueLevel) String() string {
	if l == IssueError {
		return "error"
	}
	return "warning"
}

// RowIssue reports a problem with one data row. Line is the 1-based sheet
// line, header included.
type RowIssue struct {
	Row    int
	Line   int
	ID     string
	Level  IssueLevel
	Reason string
}

func (i RowIssue) String() string {
	return fmt.Sprintf("line %d (%s) %s: %s", i.Line, i.ID, i.Level, i.Reason)
}

// Records converts every data row into a SourceRecord. Blank rows are
// passed over silently. Rows that cannot be used are reported as errors and
// left out; recoverable problems are reported as warnings.
func (t *Table) Records() ([]SourceRecord, []RowIssue) {
	var (
		recs   []SourceRecord
		issues []RowIssue
	)
	for i := range t.rows {
		if isBlank(t.rows[i]) {
			continue
		}
		rec, rowIssues := t.record(i)
		issues = append(issues, rowIssues...)
		if rec != nil {
			recs = append(recs, *rec)
		}
	}
	return recs, issues
}

func (t *Table) record(i int) (*SourceRecord, []RowIssue) {
	var issues []RowIssue
	id := t.Value(i, ColID)
	report := func(level IssueLevel, format string, args ...interface{}) {
		issues = append(issues, RowIssue{
			Row: i, Line: i + 2, ID: id, Level: level,
			Reason: fmt.Sprintf(format, args...),
		})
	}

	if id == "" || strings.EqualFold(id, "nan") {
		report(IssueError, "empty id")
		return nil, issues
	}
	group := t.Value(i, ColGroup)
	if group == "" {
		report(IssueError, "empty group")
		return nil, issues
	}

	age, err := parseNumber(t.Value(i, ColAge))
	if err != nil || age < 0 {
		report(IssueError, "invalid age %q", t.Value(i, ColAge))
		return nil, issues
	}

	inc, err := decision.NormalizeIncidence(t.Value(i, ColIncidence), t.opts.Unit)
	if err != nil {
		report(IssueWarning, "%v, using 0%%", err)
		inc = 0
	}

	sev := t.Value(i, ColSeverity)
	if decision.ParseSeverity(sev) == decision.SeverityUnknown {
		report(IssueWarning, "unrecognized severity %q, rules fall back to %s", sev, decision.MaintainCycle.Label())
	}

	portalID := t.Value(i, ColPortalID)
	if portalID == "" || strings.EqualFold(portalID, "nan") {
		portalID = id
	}

	return &SourceRecord{
		Row:            i,
		ID:             id,
		PortalID:       portalID,
		GroupID:        group,
		Region:         t.Value(i, ColRegion),
		Property:       t.Value(i, ColProperty),
		Age:            age,
		Occurrence:     t.Value(i, ColOccurrence),
		Severity:       sev,
		Incidence:      inc,
		Existing:       decision.Fold(t.Value(i, ColExisting)) == decision.Fold(t.opts.FlagYes),
		Recommendation: t.Value(i, ColRecommendation),
	}, issues
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}
