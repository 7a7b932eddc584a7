package portal

import (
	"context"
	"fmt"
	"time"

	"fenixrpa/internal/logging"
)

// GroupPlan is one report: header context plus the records for its matrix.
type GroupPlan struct {
	ID         string
	Name       string
	ByProperty bool
	Region     string
	VisitDate  time.Time
	Records    []RecordPlan
}

// GroupResult is what one group run produced. Outcomes hold one entry per
// attempted record; records after a stop request are not attempted.
type GroupResult struct {
	GroupID   string
	Outcomes  []Outcome
	Finalized bool
	Stopped   bool
	Success   bool
}

// IDs returns the record ids with the given status, in attempt order.
func (r GroupResult) IDs(status OutcomeStatus) []string {
	var ids []string
	for _, o := range r.Outcomes {
		if o.Status == status {
			ids = append(ids, o.RecordID)
		}
	}
	return ids
}

// SubmittedIDs are the records confirmed by a finalized report.
func (r GroupResult) SubmittedIDs() []string { return r.IDs(Submitted) }

// SkippedIDs are the records the portal does not know.
func (r GroupResult) SkippedIDs() []string { return r.IDs(Skipped) }

func (r *GroupResult) demoteSubmitted(reason string) {
	for i := range r.Outcomes {
		if r.Outcomes[i].Status == Submitted {
			r.Outcomes[i].Status = Failed
			r.Outcomes[i].Reason = reason
			r.Outcomes[i].Row = -1
		}
	}
}

// GroupProcessor runs one group's full lifecycle on the supervised session.
type GroupProcessor struct {
	sup    *Supervisor
	cat    *Catalog
	res    *Resolver
	binder *Binder
	header HeaderDefaults
	timing Timing

	// DemotePartial is passed to each group's RowAllocator.
	DemotePartial bool
	// OnOutcome sees every outcome as soon as it is produced.
	OnOutcome func(groupID string, o Outcome)
	// ShouldStop is polled between records.
	ShouldStop func() bool

	now func() time.Time
	log *logging.Logger
}

// NewGroupProcessor wires a resolver and binder onto the supervisor's page.
func NewGroupProcessor(sup *Supervisor, cat *Catalog, timing Timing, header HeaderDefaults) *GroupProcessor {
	res := NewResolver(sup, sup.cfg.LocateTimeout)
	return &GroupProcessor{
		sup:    sup,
		cat:    cat,
		res:    res,
		binder: NewBinder(sup, res, cat, timing),
		header: header,
		timing: timing,
		now:    time.Now,
		log:    logging.Get(logging.CategoryGroup),
	}
}

func (p *GroupProcessor) stopRequested() bool {
	return p.ShouldStop != nil && p.ShouldStop()
}

// ProcessGroup authenticates if needed, opens a fresh form, fills the
// header, binds every record and finalizes when at least one record was
// Submitted. A stop request ends binding early but still sends what was
// bound. Submitted outcomes of a group that is not finalized are turned
// into Failed and its form is abandoned. Errors are *GroupFailure; they
// abort this group only.
func (p *GroupProcessor) ProcessGroup(ctx context.Context, plan GroupPlan) (res GroupResult, err error) {
	res = GroupResult{GroupID: plan.ID}
	stage := "session"
	log := p.log.With("group", plan.ID)
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			err = p.fail(ctx, plan.ID, stage, fmt.Errorf("panic: %v", r))
		}
		if !res.Finalized {
			reason := "report not sent"
			if err != nil {
				reason = fmt.Sprintf("report not sent: %v", err)
			}
			res.demoteSubmitted(reason)
			p.abandonForm(ctx)
		}
		log.Info("done in %s: submitted=%d skipped=%d failed=%d finalized=%t",
			p.now().Sub(start).Round(time.Millisecond), len(res.IDs(Submitted)), len(res.IDs(Skipped)),
			len(res.IDs(Failed)), res.Finalized)
	}()

	if err := p.sup.EnsureAuthenticated(ctx); err != nil {
		return res, p.fail(ctx, plan.ID, stage, err)
	}
	if err := p.sup.EnsureHealthy(ctx); err != nil {
		return res, p.fail(ctx, plan.ID, stage, err)
	}

	stage = "form"
	if err := p.sup.EnterForm(ctx); err != nil {
		return res, p.fail(ctx, plan.ID, stage, err)
	}

	stage = "header"
	if err := p.fillHeader(ctx, plan); err != nil {
		return res, p.fail(ctx, plan.ID, stage, err)
	}

	stage = "rows"
	alloc := NewRowAllocator(p.binder)
	alloc.DemotePartial = p.DemotePartial
	for i, rec := range plan.Records {
		if p.stopRequested() || ctx.Err() != nil {
			res.Stopped = true
			log.Warn("stop requested, %d of %d records left unattempted", len(plan.Records)-i, len(plan.Records))
			break
		}
		more := i < len(plan.Records)-1 && !p.stopRequested()
		o := alloc.Process(ctx, rec, more)
		res.Outcomes = append(res.Outcomes, o)
		if p.OnOutcome != nil {
			p.OnOutcome(plan.ID, o)
		}
	}

	if len(res.IDs(Submitted)) == 0 {
		log.Warn("no record submitted, report not sent")
		return res, nil
	}

	stage = "finalize"
	if err := p.finalize(ctx); err != nil {
		return res, p.fail(ctx, plan.ID, stage, err)
	}
	res.Finalized = true
	res.Success = true
	return res, nil
}

// abandonForm drops an unsent report so its rows cannot leak into the next
// group's form.
func (p *GroupProcessor) abandonForm(ctx context.Context) {
	if p.sup.State() != StateOnForm || ctx.Err() != nil {
		return
	}
	if err := p.sup.LeaveForm(ctx); err != nil {
		p.log.Warn("leaving unsent form: %v", err)
	}
}

func (p *GroupProcessor) fillHeader(ctx context.Context, plan GroupPlan) error {
	values, err := p.header.values(p.cat, plan, p.now())
	if err != nil {
		return err
	}
	for _, hv := range values {
		if hv.value == "" {
			continue
		}
		r, err := p.binder.Bind(ctx, hv.field, 0, hv.value)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			p.log.Warn("header %s: %v", hv.field.Name, err)
			continue
		}
		if r.Status != BindOK {
			p.log.Warn("header %s %s (got %q)", hv.field.Name, r.Status, r.Got)
		}
	}
	return nil
}

// finalize sends the report: Enviar, Assinatura Funcional, Confirmar.
func (p *GroupProcessor) finalize(ctx context.Context) error {
	if err := p.sup.BeginSubmit(); err != nil {
		return err
	}
	sent := false
	defer func() { p.sup.EndSubmit(sent) }()

	wait := 3 * p.res.timeout
	steps := []struct {
		name       string
		strategies []Strategy
	}{
		{"send", p.cat.Send},
		{"signature", p.cat.Signature},
		{"confirm", p.cat.Confirm},
	}
	for _, st := range steps {
		el, _, err := p.res.Locate(ctx, "finalize."+st.name, st.strategies, 0, "", wait)
		if err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
		if err := el.Click(); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
		_ = p.binder.sleep(ctx, 2*p.timing.Settle)
	}
	sent = true
	return nil
}

func (p *GroupProcessor) fail(ctx context.Context, groupID, stage string, err error) error {
	d := p.sup.Diagnose(ctx)
	d.LastField = p.binder.LastField()
	p.log.Error("group %s failed at %s: %v [%s]", groupID, stage, err, d)
	return &GroupFailure{GroupID: groupID, Stage: stage, Diagnostics: d, Err: err}
}
