package portal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fenixrpa/internal/browser"
	"fenixrpa/internal/decision"
	"fenixrpa/internal/logging"
)

// BindStatus is the outcome of one bind.
type BindStatus int

const (
	BindOK BindStatus = iota
	// BindMismatch means the field never displayed the intended value.
	BindMismatch
	// BindNotFound means the portal explicitly reported that the value has
	// no matching option. It is terminal and never retried.
	BindNotFound
)

func (s BindStatus) String() string {
	switch s {
	case BindMismatch:
		return "mismatch"
	case BindNotFound:
		return "not_found"
	}
	return "ok"
}

// BindResult describes a finished bind.
type BindResult struct {
	Field    string
	Row      int
	Status   BindStatus
	Want     string
	Got      string
	Attempts int
}

// Timing holds the waits and retry budget of the bind protocol.
type Timing struct {
	Settle        time.Duration
	FilterRefresh time.Duration
	NoMatchProbe  time.Duration
	// Retries is the number of extra attempts after a mismatch.
	Retries int
	// RetryWaitFactor stretches every wait on retries.
	RetryWaitFactor float64
}

// DefaultTiming returns the waits tuned against the live portal.
func DefaultTiming() Timing {
	return Timing{
		Settle:          time.Second,
		FilterRefresh:   2 * time.Second,
		NoMatchProbe:    time.Second,
		Retries:         1,
		RetryWaitFactor: 2,
	}
}

var errNoMatch = errors.New("no matching option")

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Binder sets a field and then checks what the page displays.
type Binder struct {
	src    SurfaceSource
	res    *Resolver
	cat    *Catalog
	timing Timing
	sleep  sleepFunc
	log    *logging.Logger

	last string
}

// NewBinder creates a binder over the current surface of src.
func NewBinder(src SurfaceSource, res *Resolver, cat *Catalog, timing Timing) *Binder {
	if timing.RetryWaitFactor < 1 {
		timing.RetryWaitFactor = 1
	}
	return &Binder{
		src:    src,
		res:    res,
		cat:    cat,
		timing: timing,
		sleep:  sleepCtx,
		log:    logging.Get(logging.CategoryBinder),
	}
}

// LastField describes the most recent bind, for diagnostics.
func (b *Binder) LastField() string { return b.last }

// Bind sets f on row to value. Protocol per attempt: dismiss overlays,
// resolve the control, commit the value, read back the displayed value.
// A mismatch is retried Timing.Retries times with stretched waits. An
// explicit "no match" from the portal returns BindNotFound at once. The
// error is non-nil only when the control could never be driven.
func (b *Binder) Bind(ctx context.Context, f Field, row int, value string) (BindResult, error) {
	res := BindResult{Field: f.Name, Row: row, Want: value}
	attempts := 1 + b.timing.Retries
	if attempts < 1 {
		attempts = 1
	}

	var (
		lastErr  error
		resolved bool
		wait     = 1.0
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		if attempt > 1 {
			wait = b.timing.RetryWaitFactor
		}

		got, err := b.attempt(ctx, f, row, value, wait)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if errors.Is(err, errNoMatch) {
			res.Status = BindNotFound
			b.remember(res)
			b.log.Info("%s[%d]: portal has no option for %q", f.Name, row, value)
			return res, nil
		}
		if err != nil {
			lastErr = err
			b.log.Warn("%s[%d] attempt %d: %v", f.Name, row, attempt, err)
			continue
		}

		resolved = true
		res.Got = got
		if Matches(f.Match, value, got) {
			res.Status = BindOK
			b.remember(res)
			return res, nil
		}
		b.log.Warn("%s[%d] attempt %d: want %q, page shows %q", f.Name, row, attempt, value, got)
	}

	res.Status = BindMismatch
	b.remember(res)
	if !resolved && lastErr != nil {
		return res, fmt.Errorf("bind %s[%d]: %w", f.Name, row, lastErr)
	}
	return res, nil
}

func (b *Binder) remember(r BindResult) {
	b.last = fmt.Sprintf("%s[%d] want=%q got=%q status=%s", r.Field, r.Row, r.Want, r.Got, r.Status)
}

func (b *Binder) pause(ctx context.Context, d time.Duration, factor float64) {
	_ = b.sleep(ctx, time.Duration(float64(d)*factor))
}

func (b *Binder) attempt(ctx context.Context, f Field, row int, value string, wait float64) (string, error) {
	s := b.src.Surface()
	if s == nil {
		return "", errors.New("no page")
	}
	_ = s.Press(ctx, browser.KeyEscape)

	el, err := b.res.Resolve(ctx, f, row)
	if err != nil {
		return "", err
	}
	_ = el.ScrollIntoView()

	switch f.Kind {
	case TextField:
		if err := el.Input(value); err != nil {
			return "", fmt.Errorf("input: %w", err)
		}
		b.pause(ctx, b.timing.Settle, wait)

	case SearchSelect:
		if err := b.open(ctx, el, wait); err != nil {
			return "", err
		}
		if err := s.InsertText(ctx, value); err != nil {
			return "", fmt.Errorf("type filter: %w", err)
		}
		b.pause(ctx, b.timing.FilterRefresh, wait)
		if b.res.Present(ctx, b.cat.NoMatch, row, value, b.timing.NoMatchProbe) {
			_ = s.Press(ctx, browser.KeyEscape)
			return "", errNoMatch
		}
		opt, _, err := b.res.Locate(ctx, f.Name+".option", b.cat.Option, row, value, 0)
		if err != nil {
			opt, _, err = b.res.Locate(ctx, f.Name+".first_option", b.cat.FirstOption, row, value, 0)
		}
		if err != nil {
			_ = s.Press(ctx, browser.KeyEscape)
			return "", err
		}
		if err := b.pick(ctx, opt, wait); err != nil {
			return "", err
		}

	case ChoiceSelect:
		if err := b.open(ctx, el, wait); err != nil {
			return "", err
		}
		opt, _, err := b.res.Locate(ctx, f.Name+".option", b.cat.Option, row, value, 0)
		if err != nil {
			// Long lists only render the options matching typed text.
			if ierr := s.InsertText(ctx, value); ierr == nil {
				b.pause(ctx, b.timing.FilterRefresh, wait)
				opt, _, err = b.res.Locate(ctx, f.Name+".option", b.cat.Option, row, value, 0)
			}
		}
		if err != nil {
			_ = s.Press(ctx, browser.KeyEscape)
			return "", err
		}
		if err := b.pick(ctx, opt, wait); err != nil {
			return "", err
		}

	case FirstChoice:
		if err := b.open(ctx, el, wait); err != nil {
			return "", err
		}
		opt, _, err := b.res.Locate(ctx, f.Name+".first_option", b.cat.FirstOption, row, value, 0)
		if err != nil {
			_ = s.Press(ctx, browser.KeyEscape)
			return "", err
		}
		if err := b.pick(ctx, opt, wait); err != nil {
			return "", err
		}
	}

	return b.read(ctx, f, row)
}

func (b *Binder) open(ctx context.Context, el browser.Element, wait float64) error {
	if err := el.Click(); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	b.pause(ctx, b.timing.Settle, wait)
	return nil
}

func (b *Binder) pick(ctx context.Context, opt browser.Element, wait float64) error {
	if err := opt.Click(); err != nil {
		return fmt.Errorf("pick option: %w", err)
	}
	b.pause(ctx, b.timing.Settle, wait)
	return nil
}

// read returns what the field displays now. A select without a display
// element shows its placeholder, which reads as empty.
func (b *Binder) read(ctx context.Context, f Field, row int) (string, error) {
	if len(f.Display) > 0 {
		el, _, err := b.res.Locate(ctx, f.Name+".value", f.Display, row, "", 0)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		return el.Text()
	}
	el, err := b.res.Resolve(ctx, f, row)
	if err != nil {
		return "", err
	}
	return el.Value()
}

// ClearRow empties the row's primary id so the row can take the next
// record. The clear indicator is preferred; otherwise the selection is
// removed with Backspace.
func (b *Binder) ClearRow(ctx context.Context, row int) error {
	s := b.src.Surface()
	if s == nil {
		return errors.New("no page")
	}
	f := b.cat.UnitID
	_ = s.Press(ctx, browser.KeyEscape)

	if el, _, err := b.res.Locate(ctx, f.Name+".clear", f.Clear, row, "", b.timing.NoMatchProbe); err == nil {
		if err := el.Click(); err != nil {
			return fmt.Errorf("clear row %d: %w", row, err)
		}
	} else {
		el, err := b.res.Resolve(ctx, f, row)
		if err != nil {
			return fmt.Errorf("clear row %d: %w", row, err)
		}
		if err := el.Click(); err != nil {
			return fmt.Errorf("clear row %d: %w", row, err)
		}
		b.pause(ctx, b.timing.Settle, 1)
		if err := s.Press(ctx, browser.KeyBackspace); err != nil {
			return fmt.Errorf("clear row %d: %w", row, err)
		}
	}
	_ = s.Press(ctx, browser.KeyEscape)
	b.pause(ctx, b.timing.Settle, 1)

	got, err := b.read(ctx, f, row)
	if err != nil {
		return fmt.Errorf("clear row %d: %w", row, err)
	}
	if strings.TrimSpace(got) != "" {
		return fmt.Errorf("row %d still shows %q after clearing", row, got)
	}
	b.log.Debug("row %d cleared", row)
	return nil
}

// Matches compares an intended value with a displayed one.
func Matches(mode MatchMode, want, got string) bool {
	switch mode {
	case MatchNonEmpty:
		return strings.TrimSpace(got) != ""
	case MatchContains:
		w := decision.Fold(want)
		return w != "" && strings.Contains(decision.Fold(got), w)
	case MatchNumeric:
		wv, werr := parseDecimal(want)
		gv, gerr := parseDecimal(got)
		return werr == nil && gerr == nil && math.Abs(wv-gv) < 0.01
	default:
		return decision.Fold(want) == decision.Fold(got)
	}
}

func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
