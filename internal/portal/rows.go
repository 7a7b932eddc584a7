package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fenixrpa/internal/logging"
)

// OutcomeStatus is the terminal state of one attempted record.
type OutcomeStatus int

const (
	Submitted OutcomeStatus = iota
	Skipped
	Failed
)

func (s OutcomeStatus) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "submitted"
}

// ParseOutcomeStatus is the inverse of String.
func ParseOutcomeStatus(s string) (OutcomeStatus, error) {
	switch strings.ToLower(s) {
	case "submitted":
		return Submitted, nil
	case "skipped":
		return Skipped, nil
	case "failed":
		return Failed, nil
	}
	return Failed, fmt.Errorf("unknown outcome status %q", s)
}

// Outcome is the result of one attempted record.
type Outcome struct {
	RecordID string
	Status   OutcomeStatus
	// Row is the matrix row the record occupies; -1 unless Submitted.
	Row    int
	Reason string
	// Partial lists non-id fields that never confirmed their value.
	Partial []string
}

// RecordPlan is one record's values in portal terms.
type RecordPlan struct {
	ID string
	// PortalID is typed into the id selector; empty means ID.
	PortalID       string
	DamageType     string
	Incidence      float64
	Severity       string
	Recommendation string
}

// IncidenceText formats the incidence the way the numeric input accepts it.
func (r RecordPlan) IncidenceText() string {
	return fmt.Sprintf("%.2f", r.Incidence)
}

// RowAllocator assigns records to matrix rows. The index advances only when
// a record is Submitted, so a skipped record's row is reused by the next.
type RowAllocator struct {
	b   *Binder
	cat *Catalog

	current  int
	occupied map[int]string
	needRow  bool

	// DemotePartial turns records with unconfirmed non-id fields into
	// Failed outcomes and frees their row.
	DemotePartial bool

	log *logging.Logger
}

// NewRowAllocator starts at row 0.
func NewRowAllocator(b *Binder) *RowAllocator {
	return &RowAllocator{
		b:        b,
		cat:      b.cat,
		occupied: make(map[int]string),
		log:      logging.Get(logging.CategoryRows),
	}
}

// Current returns the row the next record will use.
func (a *RowAllocator) Current() int { return a.current }

// Occupied returns a copy of row -> record id for Submitted records.
func (a *RowAllocator) Occupied() map[int]string {
	out := make(map[int]string, len(a.occupied))
	for k, v := range a.occupied {
		out[k] = v
	}
	return out
}

// Process binds rec into the current row. more asks for a new row to be
// appended after a successful record.
func (a *RowAllocator) Process(ctx context.Context, rec RecordPlan, more bool) (out Outcome) {
	row := a.current
	out = Outcome{RecordID: rec.ID, Row: -1}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("record %s panicked on row %d: %v", rec.ID, row, r)
			out = Outcome{RecordID: rec.ID, Row: -1, Status: Failed, Reason: fmt.Sprintf("panic: %v", r)}
			a.release(ctx, row)
		}
	}()

	if a.needRow {
		if err := a.addRow(ctx); err != nil {
			out.Status = Failed
			out.Reason = fmt.Sprintf("no free row: %v", err)
			return out
		}
	}

	portalID := rec.PortalID
	if portalID == "" {
		portalID = rec.ID
	}
	res, err := a.b.Bind(ctx, a.cat.UnitID, row, portalID)
	switch {
	case err != nil:
		out.Status = Failed
		out.Reason = fmt.Sprintf("id: %v", err)
		a.release(ctx, row)
		return out
	case res.Status == BindNotFound:
		out.Status = Skipped
		out.Reason = "not in portal"
		a.log.Info("%s not in portal, row %d stays free", rec.ID, row)
		a.release(ctx, row)
		return out
	case res.Status == BindMismatch:
		out.Status = Failed
		out.Reason = fmt.Sprintf("id did not stick (page shows %q)", res.Got)
		a.release(ctx, row)
		return out
	}

	steps := []struct {
		f Field
		v string
	}{
		{a.cat.DamageType, rec.DamageType},
		{a.cat.Occurrence, ""},
		{a.cat.Incidence, rec.IncidenceText()},
		{a.cat.Severity, rec.Severity},
		{a.cat.Recommendation, rec.Recommendation},
	}
	for _, st := range steps {
		r, err := a.b.Bind(ctx, st.f, row, st.v)
		if err == nil && r.Status == BindOK {
			continue
		}
		if ctx.Err() != nil {
			out.Status = Failed
			out.Reason = fmt.Sprintf("interrupted at %s", st.f.Name)
			a.release(ctx, row)
			return out
		}
		if err != nil {
			a.log.Warn("%s row %d: %s: %v", rec.ID, row, st.f.Name, err)
		} else {
			a.log.Warn("%s row %d: %s %s (want %q, got %q)", rec.ID, row, st.f.Name, r.Status, st.v, r.Got)
		}
		out.Partial = append(out.Partial, st.f.Name)
	}

	if len(out.Partial) > 0 && a.DemotePartial {
		out.Status = Failed
		out.Reason = "unconfirmed fields: " + strings.Join(out.Partial, ", ")
		a.release(ctx, row)
		return out
	}

	out.Status = Submitted
	out.Row = row
	if len(out.Partial) > 0 {
		out.Reason = "unconfirmed fields: " + strings.Join(out.Partial, ", ")
	}
	a.occupied[row] = rec.ID
	a.current++
	a.log.Info("%s bound to row %d", rec.ID, row)

	if more {
		if err := a.addRow(ctx); err != nil {
			a.log.Error("could not append row %d: %v", a.current, err)
			a.needRow = true
		}
	}
	return out
}

func (a *RowAllocator) addRow(ctx context.Context) error {
	el, _, err := a.b.res.Locate(ctx, "add_row", a.cat.AddRow, a.current, "", 0)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return fmt.Errorf("click add row: %w", err)
	}
	a.b.pause(ctx, a.b.timing.Settle, 1)
	if !a.b.res.Present(ctx, a.cat.UnitID.Control, a.current, "", 0) {
		return fmt.Errorf("row %d did not appear", a.current)
	}
	a.needRow = false
	return nil
}

// release clears a row that must be reused. A cancelled context still gets
// a short window so the row is not left half filled.
func (a *RowAllocator) release(ctx context.Context, row int) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
	}
	if err := a.b.ClearRow(ctx, row); err != nil {
		a.log.Warn("row %d not cleared: %v", row, err)
	}
}
