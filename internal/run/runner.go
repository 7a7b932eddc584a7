package run

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"fenixrpa/internal/logging"
	"fenixrpa/internal/portal"
	"fenixrpa/internal/store"
)

// Processor runs one group. *portal.GroupProcessor satisfies it.
type Processor interface {
	ProcessGroup(ctx context.Context, plan portal.GroupPlan) (portal.GroupResult, error)
}

// Confirmer asks the operator whether to continue with the next group.
type Confirmer interface {
	Continue(ctx context.Context, done GroupSummary, next portal.GroupPlan, remaining int) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, done GroupSummary, next portal.GroupPlan, remaining int) (bool, error)

// Continue calls f.
func (f ConfirmerFunc) Continue(ctx context.Context, done GroupSummary, next portal.GroupPlan, remaining int) (bool, error) {
	return f(ctx, done, next, remaining)
}

// ContinueAll is the operator's up-front consent to process every selected
// group without being asked.
var ContinueAll = ConfirmerFunc(func(context.Context, GroupSummary, portal.GroupPlan, int) (bool, error) {
	return true, nil
})

// Reporter receives operator-facing progress. Calls come from the
// goroutine running Run.
type Reporter interface {
	GroupStarted(index, total int, plan portal.GroupPlan)
	Outcome(groupID string, o portal.Outcome)
	GroupFinished(g GroupSummary)
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) GroupStarted(int, int, portal.GroupPlan) {}
func (NopReporter) Outcome(string, portal.Outcome)          {}
func (NopReporter) GroupFinished(GroupSummary)              {}

// Journal persists outcomes as they happen. *store.Store satisfies it.
type Journal interface {
	AppendOutcome(o store.OutcomeRecord) error
	FinishGroup(g store.GroupRecord) error
}

// Options configures a Runner.
type Options struct {
	RunID string
	// Confirmer nil means stop after the first group.
	Confirmer Confirmer
	Reporter  Reporter
	Journal   Journal
}

// Runner processes groups strictly one after another on one session.
type Runner struct {
	proc Processor
	opts Options
	stop atomic.Bool

	now func() time.Time
	log *logging.Logger
}

// NewRunner creates a runner around proc.
func NewRunner(proc Processor, opts Options) *Runner {
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	return &Runner{
		proc: proc,
		opts: opts,
		now:  time.Now,
		log:  logging.Get(logging.CategoryRun),
	}
}

// RequestStop asks the run to stop at the next record boundary. The record
// in progress finishes first. Safe to call from any goroutine.
func (r *Runner) RequestStop() {
	if !r.stop.Swap(true) {
		r.log.Warn("stop requested, finishing the current record")
	}
}

// Stopping reports whether a stop was requested.
func (r *Runner) Stopping() bool { return r.stop.Load() }

// Observe journals and reports one outcome. Wire it as the processor's
// outcome callback.
func (r *Runner) Observe(groupID string, o portal.Outcome) {
	if r.opts.Journal != nil {
		rec := store.OutcomeRecord{
			RunID:    r.opts.RunID,
			GroupID:  groupID,
			RecordID: o.RecordID,
			Status:   o.Status.String(),
			Row:      o.Row,
			Reason:   o.Reason,
			Partial:  o.Partial,
			At:       r.now(),
		}
		if err := r.opts.Journal.AppendOutcome(rec); err != nil {
			r.log.Error("journal outcome %s: %v", o.RecordID, err)
		}
	}
	r.opts.Reporter.Outcome(groupID, o)
}

// Run processes plans in order. A GroupFailure aborts only its group; an
// exhausted recovery ladder or a cancelled context ends the run. The
// summary is always valid, even alongside an error.
func (r *Runner) Run(ctx context.Context, plans []portal.GroupPlan) (Summary, error) {
	sum := Summary{RunID: r.opts.RunID, StartedAt: r.now()}

	finish := func(err error) (Summary, error) {
		sum.FinishedAt = r.now()
		for _, p := range plans[len(sum.Groups):] {
			sum.Unattempted = append(sum.Unattempted, p.ID)
		}
		r.log.Info("run finished: %s", sum)
		return sum, err
	}

	for i, plan := range plans {
		if r.Stopping() {
			sum.Stopped = true
			return finish(nil)
		}
		if err := ctx.Err(); err != nil {
			sum.Interrupted = true
			return finish(err)
		}

		r.log.Info("group %d/%d: %s (%d records)", i+1, len(plans), plan.ID, len(plan.Records))
		r.opts.Reporter.GroupStarted(i, len(plans), plan)
		gs := r.runGroup(ctx, plan)
		sum.Groups = append(sum.Groups, gs)
		r.opts.Reporter.GroupFinished(gs)

		if gs.Stopped || r.Stopping() {
			sum.Stopped = true
			return finish(nil)
		}
		if errors.Is(gs.Err, portal.ErrSessionUnhealthy) {
			return finish(fmt.Errorf("group %s: %w", plan.ID, gs.Err))
		}
		if err := ctx.Err(); err != nil {
			sum.Interrupted = true
			return finish(err)
		}

		if i == len(plans)-1 {
			break
		}
		if r.opts.Confirmer == nil {
			sum.Declined = true
			return finish(nil)
		}
		ok, err := r.opts.Confirmer.Continue(ctx, gs, plans[i+1], len(plans)-i-1)
		if err != nil {
			if ctx.Err() != nil {
				sum.Interrupted = true
			}
			return finish(fmt.Errorf("confirm next group: %w", err))
		}
		if !ok {
			r.log.Info("operator declined to continue after %s", plan.ID)
			sum.Declined = true
			return finish(nil)
		}
	}
	return finish(nil)
}

func (r *Runner) runGroup(ctx context.Context, plan portal.GroupPlan) (gs GroupSummary) {
	gs = GroupSummary{GroupID: plan.ID, Name: plan.Name, Planned: len(plan.Records)}
	start := r.now()
	defer func() {
		if p := recover(); p != nil {
			gs.Err = fmt.Errorf("panic: %v", p)
			r.log.Error("group %s panicked: %v", plan.ID, p)
		}
		gs.Duration = r.now().Sub(start)
		r.journalGroup(gs)
	}()

	res, err := r.proc.ProcessGroup(ctx, plan)
	gs.Finalized = res.Finalized
	gs.Stopped = res.Stopped
	gs.Submitted = res.IDs(portal.Submitted)
	gs.Skipped = res.IDs(portal.Skipped)
	gs.Failed = res.IDs(portal.Failed)
	gs.Err = err
	if err != nil {
		r.log.Error("%v", err)
	}
	return gs
}

func (r *Runner) journalGroup(gs GroupSummary) {
	if r.opts.Journal == nil {
		return
	}
	rec := store.GroupRecord{
		RunID:     r.opts.RunID,
		GroupID:   gs.GroupID,
		Name:      gs.Name,
		Finalized: gs.Finalized,
		Duration:  gs.Duration,
	}
	if gs.Err != nil {
		rec.Failure = gs.Err.Error()
	}
	if err := r.opts.Journal.FinishGroup(rec); err != nil {
		r.log.Error("journal group %s: %v", gs.GroupID, err)
	}
}
