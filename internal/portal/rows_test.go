package portal

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan(id string) RecordPlan {
	return RecordPlan{ID: id, DamageType: "Incêndio", Incidence: 12.5, Severity: "Alta", Recommendation: "Reavaliar"}
}

func TestRowAllocatorReusesSkippedRows(t *testing.T) {
	f := newFakeForm("A", "C").showForm()
	b, _ := newTestBinder(f)
	a := NewRowAllocator(b)
	ctx := context.Background()

	recs := []RecordPlan{plan("A"), plan("B"), plan("C")}
	var got []Outcome
	for i, r := range recs {
		got = append(got, a.Process(ctx, r, i < len(recs)-1))
	}

	want := []Outcome{
		{RecordID: "A", Status: Submitted, Row: 0},
		{RecordID: "B", Status: Skipped, Row: -1, Reason: "not in portal"},
		{RecordID: "C", Status: Submitted, Row: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	// The index equals attempted minus not-found.
	assert.Equal(t, 2, a.Current())
	assert.Equal(t, map[int]string{0: "A", 1: "C"}, a.Occupied())
	assert.Equal(t, 2, f.rows, "B's row was reused, no extra row appended")
	assert.Equal(t, "C", f.value("unit", 1))
	assert.Equal(t, "Reavaliar", f.value("recommendation", 1))
	assert.Equal(t, "12.50", f.value("incidence", 1))
}

func TestRowAllocatorIdMismatchFreesRow(t *testing.T) {
	f := newFakeForm("A", "B").showForm()
	f.dropSets["unit"] = 2
	b, _ := newTestBinder(f)
	a := NewRowAllocator(b)

	o := a.Process(context.Background(), plan("A"), true)
	assert.Equal(t, Failed, o.Status)
	assert.Equal(t, -1, o.Row)
	assert.Contains(t, o.Reason, "id did not stick")
	assert.Equal(t, 0, a.Current())

	o = a.Process(context.Background(), plan("B"), false)
	assert.Equal(t, Submitted, o.Status)
	assert.Equal(t, 0, o.Row)
}

func TestRowAllocatorPartial(t *testing.T) {
	f := newFakeForm("A").showForm()
	f.dropSets["severity"] = 2
	b, _ := newTestBinder(f)
	a := NewRowAllocator(b)

	o := a.Process(context.Background(), plan("A"), false)
	assert.Equal(t, Submitted, o.Status)
	assert.Equal(t, []string{"severity"}, o.Partial)
	assert.Contains(t, o.Reason, "severity")
	assert.Equal(t, 1, a.Current())
}

func TestRowAllocatorDemotePartial(t *testing.T) {
	f := newFakeForm("A").showForm()
	f.dropSets["severity"] = 2
	b, _ := newTestBinder(f)
	a := NewRowAllocator(b)
	a.DemotePartial = true

	o := a.Process(context.Background(), plan("A"), false)
	assert.Equal(t, Failed, o.Status)
	assert.Equal(t, -1, o.Row)
	assert.Equal(t, 0, a.Current())
	assert.Empty(t, f.value("unit", 0), "row cleared for the next record")
	assert.Empty(t, a.Occupied())
}

func TestRowAllocatorAddRowFailureRetried(t *testing.T) {
	f := newFakeForm("A", "B").showForm()
	f.missing["addrow"] = 1
	b, _ := newTestBinder(f)
	a := NewRowAllocator(b)
	ctx := context.Background()

	o := a.Process(ctx, plan("A"), true)
	require.Equal(t, Submitted, o.Status)
	assert.Equal(t, 1, f.rows)

	o = a.Process(ctx, plan("B"), false)
	assert.Equal(t, Submitted, o.Status)
	assert.Equal(t, 1, o.Row)
	assert.Equal(t, 2, f.rows)
}

func TestRowAllocatorCancelled(t *testing.T) {
	f := newFakeForm("A").showForm()
	b, _ := newTestBinder(f)
	a := NewRowAllocator(b)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := a.Process(ctx, plan("A"), false)
	assert.Equal(t, Failed, o.Status)
	assert.Contains(t, o.Reason, "canceled")
	assert.Equal(t, 0, a.Current())
}

func TestOutcomeStatusRoundTrip(t *testing.T) {
	for _, s := range []OutcomeStatus{Submitted, Skipped, Failed} {
		got, err := ParseOutcomeStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseOutcomeStatus("bogus")
	assert.Error(t, err)
}
