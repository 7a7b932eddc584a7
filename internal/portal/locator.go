package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fenixrpa/internal/browser"
	"fenixrpa/internal/logging"
)

// SurfaceSource yields the page currently in use. The Supervisor swaps it
// during recovery, so callers must not hold on to a Surface.
type SurfaceSource interface {
	Surface() browser.Surface
}

// Fixed adapts a single Surface to SurfaceSource.
type Fixed struct{ S browser.Surface }

// Surface returns the wrapped surface.
func (f Fixed) Surface() browser.Surface { return f.S }

// Resolver tries a field's strategies in order and returns the first
// visible match.
type Resolver struct {
	src     SurfaceSource
	timeout time.Duration
	log     *logging.Logger
}

// NewResolver creates a resolver; timeout bounds each strategy attempt.
func NewResolver(src SurfaceSource, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{src: src, timeout: timeout, log: logging.Get(logging.CategoryLocator)}
}

// Resolve locates a field's control for a row.
func (r *Resolver) Resolve(ctx context.Context, f Field, row int) (browser.Element, error) {
	el, _, err := r.Locate(ctx, f.Name, f.Control, row, "", r.timeout)
	return el, err
}

// Locate tries strategies in order, each bounded by timeout. It returns the
// element and the name of the strategy that found it.
func (r *Resolver) Locate(ctx context.Context, name string, strategies []Strategy, row int, value string, timeout time.Duration) (browser.Element, string, error) {
	s := r.src.Surface()
	if s == nil {
		return nil, "", fmt.Errorf("%s: no page: %w", name, ErrNotFound)
	}
	if timeout <= 0 {
		timeout = r.timeout
	}

	for _, st := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		sel := st.Render(row, value)
		el, err := s.Find(ctx, sel, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			if !errors.Is(err, browser.ErrNoElement) {
				r.log.Debug("%s[%d] strategy %s: %v", name, row, st.Name, err)
			}
			continue
		}
		if visible, verr := el.Visible(); verr != nil || !visible {
			r.log.Debug("%s[%d] strategy %s matched a hidden element", name, row, st.Name)
			continue
		}
		r.log.Debug("%s[%d] resolved by %s", name, row, st.Name)
		return el, st.Name, nil
	}
	return nil, "", fmt.Errorf("%s[%d]: %w", name, row, ErrNotFound)
}

// Present reports whether any strategy matches within timeout.
func (r *Resolver) Present(ctx context.Context, strategies []Strategy, row int, value string, timeout time.Duration) bool {
	_, _, err := r.Locate(ctx, "probe", strategies, row, value, timeout)
	return err == nil
}
