package run

import (
	"fmt"
	"time"

	"fenixrpa/internal/store"
)

// GroupSummary is one group's result as the operator sees it.
type GroupSummary struct {
	GroupID   string
	Name      string
	Planned   int
	Finalized bool
	Stopped   bool
	Submitted []string
	Skipped   []string
	Failed    []string
	Duration  time.Duration
	Err       error
}

// Attempted counts the records that produced an outcome.
func (g GroupSummary) Attempted() int {
	return len(g.Submitted) + len(g.Skipped) + len(g.Failed)
}

// Summary describes a whole run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Groups     []GroupSummary
	// Unattempted lists planned groups never started.
	Unattempted []string

	Stopped     bool
	Declined    bool
	Interrupted bool
}

// Counts totals outcomes across groups.
func (s Summary) Counts() (submitted, skipped, failed int) {
	for _, g := range s.Groups {
		submitted += len(g.Submitted)
		skipped += len(g.Skipped)
		failed += len(g.Failed)
	}
	return submitted, skipped, failed
}

// SubmittedIDs are the confirmed ids, in processing order.
func (s Summary) SubmittedIDs() []string {
	var ids []string
	for _, g := range s.Groups {
		ids = append(ids, g.Submitted...)
	}
	return ids
}

// SuccessRate is submitted over attempted, in percent.
func (s Summary) SuccessRate() float64 {
	sub, skip, fail := s.Counts()
	total := sub + skip + fail
	if total == 0 {
		return 0
	}
	return 100 * float64(sub) / float64(total)
}

// Duration is the run's wall time.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailedGroups counts groups that ended with an error.
func (s Summary) FailedGroups() int {
	n := 0
	for _, g := range s.Groups {
		if g.Err != nil {
			n++
		}
	}
	return n
}

// Status maps the run's ending to a journal status.
func (s Summary) Status() string {
	switch {
	case s.Interrupted:
		return store.RunInterrupted
	case len(s.Groups) > 0 && s.FailedGroups() == len(s.Groups):
		return store.RunFailed
	}
	return store.RunCompleted
}

func (s Summary) String() string {
	sub, skip, fail := s.Counts()
	return fmt.Sprintf("%d groups, submitted=%d skipped=%d failed=%d (%.1f%%) in %s",
		len(s.Groups), sub, skip, fail, s.SuccessRate(), s.Duration().Round(time.Second))
}
