package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Page adapts a rod page to Surface.
type Page struct {
	page          *rod.Page
	navTimeout    time.Duration
	actionTimeout time.Duration
}

var _ Surface = (*Page)(nil)

// NewPage wraps an existing rod page.
func NewPage(p *rod.Page, navTimeout, actionTimeout time.Duration) *Page {
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	if actionTimeout <= 0 {
		actionTimeout = 10 * time.Second
	}
	return &Page{page: p, navTimeout: navTimeout, actionTimeout: actionTimeout}
}

// Find looks up one element.
func (p *Page) Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	pg := p.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	switch sel.Kind {
	case KindXPath:
		el, err = pg.ElementX(sel.Query)
	case KindText:
		el, err = pg.ElementR(sel.Query, sel.Pattern)
	default:
		el, err = pg.Element(sel.Query)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var notFound *rod.ElementNotFoundError
		if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s: %w", sel, ErrNoElement)
		}
		return nil, fmt.Errorf("%s: %w", sel, err)
	}
	return &rodElement{el: el.CancelTimeout(), timeout: p.actionTimeout}, nil
}

var keyMap = map[Key]input.Key{
	KeyEscape:    input.Escape,
	KeyEnter:     input.Enter,
	KeyTab:       input.Tab,
	KeyBackspace: input.Backspace,
}

// Press types named keys.
func (p *Page) Press(ctx context.Context, keys ...Key) error {
	mapped := make([]input.Key, 0, len(keys))
	for _, k := range keys {
		rk, ok := keyMap[k]
		if !ok {
			return fmt.Errorf("unsupported key %q", k)
		}
		mapped = append(mapped, rk)
	}
	return p.page.Context(ctx).Keyboard.Type(mapped...)
}

// InsertText types into the focused element.
func (p *Page) InsertText(ctx context.Context, text string) error {
	return p.page.Context(ctx).InsertText(text)
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// Reload reloads the current document.
func (p *Page) Reload(ctx context.Context) error {
	pg := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := pg.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return pg.WaitLoad()
}

// Eval runs js, a function expression such as "() => document.title".
func (p *Page) Eval(ctx context.Context, js string) (string, error) {
	res, err := p.page.Context(ctx).Timeout(p.actionTimeout).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

// URL returns the current location.
func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

const mirrorValuesJS = `() => {
	document.querySelectorAll('input, textarea').forEach(e => e.setAttribute('value', e.value));
	return true;
}`

// HTML serializes the document after mirroring input values.
func (p *Page) HTML(ctx context.Context) (string, error) {
	pg := p.page.Context(ctx).Timeout(p.actionTimeout)
	_, _ = pg.Eval(mirrorValuesJS)
	return pg.HTML()
}

// Close closes the page.
func (p *Page) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) Click() error {
	return e.el.Timeout(e.timeout).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Visible() (bool, error) {
	return e.el.Timeout(e.timeout).Visible()
}

func (e *rodElement) Text() (string, error) {
	return e.el.Timeout(e.timeout).Text()
}

func (e *rodElement) Value() (string, error) {
	res, err := e.el.Timeout(e.timeout).Eval(`() => (this.value !== undefined && this.value !== null) ? String(this.value) : this.innerText`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) Input(text string) error {
	el := e.el.Timeout(e.timeout)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (e *rodElement) ScrollIntoView() error {
	return e.el.Timeout(e.timeout).ScrollIntoView()
}
