package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoElement is returned when a single lookup finds nothing before its
// timeout.
var ErrNoElement = errors.New("element not found")

// SelectorKind selects the lookup engine.
type SelectorKind int

const (
	KindCSS SelectorKind = iota
	KindXPath
	// KindText matches the first element for a CSS query whose text matches
	// a regular expression.
	KindText
)

func (k SelectorKind) String() string {
	switch k {
	case KindXPath:
		return "xpath"
	case KindText:
		return "text"
	}
	return "css"
}

// Selector is one concrete lookup.
type Selector struct {
	Kind  SelectorKind
	Query string
	// Pattern is the text regex for KindText.
	Pattern string
}

// CSS builds a CSS selector.
func CSS(q string) Selector { return Selector{Kind: KindCSS, Query: q} }

// XPath builds an XPath selector.
func XPath(q string) Selector { return Selector{Kind: KindXPath, Query: q} }

// Text builds a selector matching elements of css whose text matches pattern.
func Text(css, pattern string) Selector {
	return Selector{Kind: KindText, Query: css, Pattern: pattern}
}

func (s Selector) String() string {
	if s.Kind == KindText {
		return fmt.Sprintf("text(%s ~ /%s/)", s.Query, s.Pattern)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Query)
}

// Key is a named keyboard key.
type Key string

const (
	KeyEscape    Key = "Escape"
	KeyEnter     Key = "Enter"
	KeyTab       Key = "Tab"
	KeyBackspace Key = "Backspace"
)

// Element is a resolved node. Every action is bounded by the page's action
// timeout.
type Element interface {
	Click() error
	Visible() (bool, error)
	Text() (string, error)
	// Value returns the control's value, or its visible text when the node
	// has no value property.
	Value() (string, error)
	// Input replaces the control's content with text.
	Input(text string) error
	ScrollIntoView() error
}

// Surface is the part of a browser page the portal automation drives.
type Surface interface {
	// Find returns the first element matching sel within timeout, or
	// ErrNoElement.
	Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	Press(ctx context.Context, keys ...Key) error
	// InsertText types into the focused element.
	InsertText(ctx context.Context, text string) error
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	// Eval runs a JS function expression and returns its result as text.
	Eval(ctx context.Context, js string) (string, error)
	URL(ctx context.Context) (string, error)
	// HTML returns the serialized document with live input values mirrored
	// into value attributes.
	HTML(ctx context.Context) (string, error)
	Close() error
}
