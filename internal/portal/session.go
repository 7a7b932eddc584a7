package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fenixrpa/internal/browser"
	"fenixrpa/internal/logging"
)

// State is the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateAwaitingAuth
	StateAuthenticated
	StateOnForm
	StateSubmitting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateOnForm:
		return "on_form"
	case StateSubmitting:
		return "submitting"
	case StateClosed:
		return "closed"
	}
	return "idle"
}

// Driver opens pages on a browser.
type Driver interface {
	Start(ctx context.Context) error
	NewSurface(ctx context.Context, url string) (browser.Surface, error)
	Close() error
}

// Credentials enable programmatic login.
type Credentials struct {
	Username string
	Password string
}

// SessionConfig configures a Supervisor.
type SessionConfig struct {
	BaseURL string
	// Credentials nil means the operator logs in by hand.
	Credentials   *Credentials
	LoginTimeout  time.Duration
	LoginPoll     time.Duration
	HealthTimeout time.Duration
	// NavTimeout bounds waiting for the form after navigation.
	NavTimeout    time.Duration
	LocateTimeout time.Duration
	Settle        time.Duration
}

// Supervisor owns the browser session and its state. It is not safe for
// concurrent form work; the mutex only guards state reads from other
// goroutines such as a progress reporter.
type Supervisor struct {
	drv Driver
	cat *Catalog
	cfg SessionConfig
	res *Resolver

	mu      sync.Mutex
	state   State
	surface browser.Surface

	// formUsed is set once EnterForm hands the current form to a group.
	formUsed bool

	sleep sleepFunc
	log   *logging.Logger
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(drv Driver, cat *Catalog, cfg SessionConfig) *Supervisor {
	if cfg.LoginPoll <= 0 {
		cfg.LoginPoll = 2 * time.Second
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 2 * time.Minute
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	s := &Supervisor{
		drv:   drv,
		cat:   cat,
		cfg:   cfg,
		sleep: sleepCtx,
		log:   logging.Get(logging.CategorySession),
	}
	s.res = NewResolver(s, cfg.LocateTimeout)
	return s
}

// Surface returns the current page.
func (s *Supervisor) Surface() browser.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from != to {
		s.log.Debug("state %s -> %s", from, to)
	}
}

func (s *Supervisor) require(allowed ...State) error {
	cur := s.State()
	for _, a := range allowed {
		if cur == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, cur)
}

// Start launches the browser and opens the portal.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.require(StateIdle, StateClosed); err != nil {
		return err
	}
	s.setState(StateInitializing)
	if err := s.open(ctx); err != nil {
		s.setState(StateIdle)
		return err
	}
	s.setState(StateAwaitingAuth)
	s.log.Info("portal opened at %s", s.cfg.BaseURL)
	return nil
}

func (s *Supervisor) open(ctx context.Context) error {
	if err := s.drv.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	surface, err := s.drv.NewSurface(ctx, s.cfg.BaseURL)
	if err != nil {
		if surface != nil {
			_ = surface.Close()
		}
		return fmt.Errorf("open portal: %w", err)
	}
	s.mu.Lock()
	s.surface = surface
	s.formUsed = false
	s.mu.Unlock()
	return nil
}

// Authenticate waits for the portal's home marker. With credentials it
// fills the identity provider's form first and fails if the marker never
// shows; without, it waits for the operator and proceeds optimistically
// when the wait runs out.
func (s *Supervisor) Authenticate(ctx context.Context) error {
	if err := s.require(StateAwaitingAuth); err != nil {
		return err
	}
	if s.res.Present(ctx, s.cat.HomeMarker, 0, "", s.cfg.LocateTimeout) {
		s.log.Info("already authenticated")
		s.setState(StateAuthenticated)
		return nil
	}

	if s.cfg.Credentials != nil {
		if err := s.login(ctx, *s.cfg.Credentials); err != nil {
			return err
		}
	} else {
		s.log.Info("waiting up to %s for manual login", s.cfg.LoginTimeout)
	}

	if s.waitForHome(ctx) {
		s.log.Info("login confirmed")
		s.setState(StateAuthenticated)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.Credentials != nil {
		return ErrAuthTimeout
	}
	s.log.Warn("home marker not seen after %s, proceeding", s.cfg.LoginTimeout)
	s.setState(StateAuthenticated)
	return nil
}

func (s *Supervisor) waitForHome(ctx context.Context) bool {
	polls := int(s.cfg.LoginTimeout / s.cfg.LoginPoll)
	if polls < 1 {
		polls = 1
	}
	for i := 0; i < polls; i++ {
		if s.res.Present(ctx, s.cat.HomeMarker, 0, "", s.cfg.LocateTimeout) {
			return true
		}
		if err := s.sleep(ctx, s.cfg.LoginPoll); err != nil {
			return false
		}
		if i > 0 && i%10 == 0 {
			s.log.Info("still waiting for login (%d/%d)", i, polls)
		}
	}
	return false
}

func (s *Supervisor) login(ctx context.Context, c Credentials) error {
	lc := s.cat.Login
	surface := s.Surface()

	if el, _, err := s.res.Locate(ctx, "login.start", lc.Start, 0, "", 0); err == nil {
		if err := el.Click(); err != nil {
			return fmt.Errorf("login button: %w", err)
		}
		_ = s.sleep(ctx, s.cfg.Settle)
	}

	email, _, err := s.res.Locate(ctx, "login.email", lc.Email, 0, "", s.cfg.NavTimeout)
	if err != nil {
		return fmt.Errorf("login email field: %w", err)
	}
	if err := email.Input(c.Username); err != nil {
		return fmt.Errorf("type email: %w", err)
	}
	if next, _, err := s.res.Locate(ctx, "login.next", lc.Next, 0, "", 0); err == nil {
		_ = next.Click()
	} else {
		_ = surface.Press(ctx, browser.KeyEnter)
	}
	_ = s.sleep(ctx, s.cfg.Settle)

	pw, _, err := s.res.Locate(ctx, "login.password", lc.Password, 0, "", s.cfg.NavTimeout)
	if err != nil {
		return fmt.Errorf("login password field: %w", err)
	}
	if err := pw.Input(c.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := surface.Press(ctx, browser.KeyEnter); err != nil {
		if submit, _, serr := s.res.Locate(ctx, "login.submit", lc.Submit, 0, "", 0); serr == nil {
			_ = submit.Click()
		}
	}
	_ = s.sleep(ctx, s.cfg.Settle)

	// "Stay signed in?" prompt.
	if stay, _, err := s.res.Locate(ctx, "login.stay", lc.StaySignedIn, 0, "", s.cfg.LocateTimeout); err == nil {
		_ = stay.Click()
		_ = s.sleep(ctx, s.cfg.Settle)
	}
	s.log.Info("credentials submitted for %s", c.Username)
	return nil
}

// Healthy runs the health check: a trivial evaluation plus a location read.
func (s *Supervisor) Healthy(ctx context.Context) error {
	surface := s.Surface()
	if surface == nil {
		return errors.New("no page")
	}
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HealthTimeout)
	defer cancel()
	if _, err := surface.Eval(hctx, "() => document.title"); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	if _, err := surface.URL(hctx); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	return nil
}

// EnsureHealthy checks the session and recovers it when needed.
func (s *Supervisor) EnsureHealthy(ctx context.Context) error {
	err := s.Healthy(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.log.Warn("health check failed: %v", err)
	return s.Recover(ctx)
}

// Recover climbs the ladder: reload, navigate to the base URL, open a new
// page, restart the browser and log in again. Any form progress is lost,
// so a recovered session is Authenticated, not OnForm.
func (s *Supervisor) Recover(ctx context.Context) error {
	authed := s.State() >= StateAuthenticated && s.State() != StateClosed

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"reload", func(ctx context.Context) error { return s.Surface().Reload(ctx) }},
		{"navigate", func(ctx context.Context) error { return s.Surface().Navigate(ctx, s.cfg.BaseURL) }},
		{"new_page", s.replacePage},
		{"restart", s.restart},
	}

	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.log.Warn("recovery step %d/%d: %s", i+1, len(steps), st.name)
		if s.Surface() == nil && i < 2 {
			continue
		}
		if err := st.run(ctx); err != nil {
			s.log.Warn("recovery %s failed: %v", st.name, err)
			continue
		}
		if err := s.Healthy(ctx); err != nil {
			s.log.Warn("still unhealthy after %s: %v", st.name, err)
			continue
		}
		switch {
		case st.name == "restart":
			// restart leaves the state as Authenticate set it.
		case authed:
			s.setState(StateAuthenticated)
		}
		s.mu.Lock()
		s.formUsed = false
		s.mu.Unlock()
		s.log.Info("session recovered by %s", st.name)
		return nil
	}
	return ErrSessionUnhealthy
}

func (s *Supervisor) replacePage(ctx context.Context) error {
	surface, err := s.drv.NewSurface(ctx, s.cfg.BaseURL)
	if err != nil {
		if surface != nil {
			_ = surface.Close()
		}
		return err
	}
	s.mu.Lock()
	old := s.surface
	s.surface = surface
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (s *Supervisor) restart(ctx context.Context) error {
	s.mu.Lock()
	old := s.surface
	s.surface = nil
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	_ = s.drv.Close()

	s.setState(StateInitializing)
	if err := s.open(ctx); err != nil {
		s.setState(StateIdle)
		return err
	}
	s.setState(StateAwaitingAuth)
	return s.Authenticate(ctx)
}

// EnsureAuthenticated starts and authenticates as needed.
func (s *Supervisor) EnsureAuthenticated(ctx context.Context) error {
	switch s.State() {
	case StateIdle, StateClosed:
		if err := s.Start(ctx); err != nil {
			return err
		}
		return s.Authenticate(ctx)
	case StateAwaitingAuth:
		return s.Authenticate(ctx)
	case StateInitializing:
		return fmt.Errorf("%w: %s", ErrInvalidState, StateInitializing)
	}
	return nil
}

// EnterForm opens the report upload form. A form already showing is
// reused only while no group has had it; otherwise the page returns to the
// base URL first so each report starts from an empty matrix.
func (s *Supervisor) EnterForm(ctx context.Context) error {
	if err := s.require(StateAuthenticated, StateOnForm); err != nil {
		return err
	}
	if s.formClaimed() {
		s.log.Debug("previous report form still open, returning to %s", s.cfg.BaseURL)
		if err := s.LeaveForm(ctx); err != nil {
			return fmt.Errorf("enter form: %w", err)
		}
	}
	if s.res.Present(ctx, s.cat.FormMarker, 0, "", s.cfg.LocateTimeout) {
		s.claimForm()
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.log.Warn("form not reached (%v), returning to %s", lastErr, s.cfg.BaseURL)
			if err := s.Surface().Navigate(ctx, s.cfg.BaseURL); err != nil {
				return fmt.Errorf("navigate home: %w", err)
			}
		}
		if lastErr = s.openForm(ctx); lastErr == nil {
			s.claimForm()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("enter form: %w", lastErr)
}

// LeaveForm abandons whatever the current form holds by navigating to the
// base URL.
func (s *Supervisor) LeaveForm(ctx context.Context) error {
	if err := s.require(StateAuthenticated, StateOnForm); err != nil {
		return err
	}
	surface := s.Surface()
	if surface == nil {
		return errors.New("no page")
	}
	if err := surface.Navigate(ctx, s.cfg.BaseURL); err != nil {
		return fmt.Errorf("navigate home: %w", err)
	}
	s.mu.Lock()
	s.formUsed = false
	s.mu.Unlock()
	s.setState(StateAuthenticated)
	return nil
}

func (s *Supervisor) claimForm() {
	s.mu.Lock()
	s.formUsed = true
	s.mu.Unlock()
	s.setState(StateOnForm)
}

func (s *Supervisor) formClaimed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formUsed
}

func (s *Supervisor) openForm(ctx context.Context) error {
	home, _, err := s.res.Locate(ctx, "home.submission", s.cat.HomeMarker, 0, "", 0)
	if err != nil {
		return err
	}
	if err := home.Click(); err != nil {
		return err
	}
	_ = s.sleep(ctx, s.cfg.Settle)

	link, _, err := s.res.Locate(ctx, "home.upload", s.cat.UploadLink, 0, "", 0)
	if err != nil {
		return err
	}
	if err := link.Click(); err != nil {
		return err
	}
	_ = s.sleep(ctx, s.cfg.Settle)

	if _, _, err := s.res.Locate(ctx, "form", s.cat.FormMarker, 0, "", s.cfg.NavTimeout); err != nil {
		return err
	}
	return nil
}

// BeginSubmit marks the form as being finalized.
func (s *Supervisor) BeginSubmit() error {
	if err := s.require(StateOnForm); err != nil {
		return err
	}
	s.setState(StateSubmitting)
	return nil
}

// EndSubmit leaves Submitting. A sent report consumes the form; an unsent
// one stays on the page until LeaveForm or the next EnterForm.
func (s *Supervisor) EndSubmit(sent bool) {
	if s.State() != StateSubmitting {
		return
	}
	if sent {
		s.setState(StateAuthenticated)
	} else {
		s.setState(StateOnForm)
	}
}

// Diagnose captures the page's location and form state.
func (s *Supervisor) Diagnose(ctx context.Context) Diagnostics {
	d := Diagnostics{CapturedAt: time.Now()}
	surface := s.Surface()
	if surface == nil {
		return d
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	dctx, cancel := context.WithTimeout(ctx, s.cfg.HealthTimeout)
	defer cancel()

	if u, err := surface.URL(dctx); err == nil {
		d.URL = u
	}
	if t, err := surface.Eval(dctx, "() => document.title"); err == nil {
		d.Title = strings.TrimSpace(t)
	}
	if doc, err := surface.HTML(dctx); err == nil {
		if snap, err := browser.SummarizeForm(doc); err == nil {
			d.Form = snap
		}
	}
	return d
}

// Close closes the page and the browser.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	surface := s.surface
	s.surface = nil
	s.mu.Unlock()
	if surface != nil {
		_ = surface.Close()
	}
	err := s.drv.Close()
	s.setState(StateClosed)
	return err
}
