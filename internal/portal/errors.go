package portal

import (
	"errors"
	"fmt"
	"time"

	"fenixrpa/internal/browser"
)

var (
	// ErrNotFound means no locator strategy produced a visible element.
	ErrNotFound = errors.New("element not found by any strategy")
	// ErrSessionUnhealthy means the recovery ladder was exhausted.
	ErrSessionUnhealthy = errors.New("browser session unhealthy")
	// ErrInvalidState is returned for a session transition the state
	// machine does not allow.
	ErrInvalidState = errors.New("invalid session state")
	// ErrAuthTimeout means programmatic login never reached the home page.
	ErrAuthTimeout = errors.New("login marker not seen before timeout")
)

// Diagnostics describes where the page was when something failed.
type Diagnostics struct {
	URL        string
	Title      string
	LastField  string
	Form       browser.FormSnapshot
	CapturedAt time.Time
}

func (d Diagnostics) String() string {
	return fmt.Sprintf("url=%s last_field=%s %s", d.URL, d.LastField, d.Form)
}

// GroupFailure aborts one group; the run continues with the next.
type GroupFailure struct {
	GroupID     string
	Stage       string
	Diagnostics Diagnostics
	Err         error
}

func (e *GroupFailure) Error() string {
	return fmt.Sprintf("group %s failed at %s: %v (url=%s last_field=%s)",
		e.GroupID, e.Stage, e.Err, e.Diagnostics.URL, e.Diagnostics.LastField)
}

func (e *GroupFailure) Unwrap() error { return e.Err }
