// Package browser drives Chrome through go-rod and exposes pages as
// Surfaces for the portal automation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"fenixrpa/internal/logging"
)

// Options configures the Chrome instance.
type Options struct {
	DebuggerURL       string
	Bin               string
	Flags             []string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

// DefaultOptions returns a visible 1920x1080 browser.
func DefaultOptions() Options {
	return Options{
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: 30 * time.Second,
		ActionTimeout:     10 * time.Second,
	}
}

// Browser owns one Chrome connection.
type Browser struct {
	opts Options

	mu         sync.Mutex
	rod        *rod.Browser
	launcher   *launcher.Launcher
	controlURL string

	// pages opened by NewSurface; in attach mode they are all Close touches.
	pages []*rod.Page
}

// New creates an unconnected Browser.
func New(opts Options) *Browser {
	return &Browser{opts: opts}
}

// Start connects to DebuggerURL when set, otherwise launches Chrome. A
// healthy existing connection is reused.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := logging.Get(logging.CategoryBrowser)

	if b.rod != nil {
		if _, err := b.rod.Version(); err == nil {
			return nil
		}
		log.Warn("stale browser connection detected, reconnecting")
		b.closeLocked()
	}

	controlURL := b.opts.DebuggerURL
	if controlURL == "" {
		l := b.newLauncher(true)
		u, err := l.Launch()
		if err != nil {
			// Retry without custom flags; some Chrome builds reject them.
			l.Kill()
			fallback := b.newLauncher(false)
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			log.Warn("chrome rejected custom flags (%v), launched with defaults", err)
			l, u = fallback, alt
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		b.killLauncherLocked()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	b.rod = browser
	b.controlURL = controlURL
	log.Info("connected to chrome at %s", controlURL)
	return nil
}

func (b *Browser) newLauncher(withFlags bool) *launcher.Launcher {
	l := launcher.New().Headless(b.opts.Headless).Leakless(true)
	if b.opts.Bin != "" {
		l = l.Bin(b.opts.Bin)
	}
	if !withFlags {
		return l
	}
	for _, raw := range b.opts.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// ControlURL returns the DevTools WebSocket URL of the connected Chrome.
func (b *Browser) ControlURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.controlURL
}

// Alive reports whether the connection answers.
func (b *Browser) Alive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rod == nil {
		return false
	}
	_, err := b.rod.Version()
	return err == nil
}

// NewSurface opens a page at url with the configured viewport.
func (b *Browser) NewSurface(ctx context.Context, url string) (Surface, error) {
	b.mu.Lock()
	br := b.rod
	b.mu.Unlock()
	if br == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := br.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// The browser's context must not leak into the page; it is re-scoped per call.
	page = page.Context(context.Background())
	b.mu.Lock()
	b.pages = append(b.pages, page)
	b.mu.Unlock()

	if b.opts.ViewportWidth > 0 && b.opts.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             b.opts.ViewportWidth,
			Height:            b.opts.ViewportHeight,
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		}).Call(page); err != nil {
			logging.Get(logging.CategoryBrowser).Warn("failed to set viewport: %v", err)
		}
	}

	p := NewPage(page, b.opts.NavigationTimeout, b.opts.ActionTimeout)
	if url != "" {
		if err := p.Navigate(ctx, url); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Close closes a launched Chrome. A Chrome reached through DebuggerURL
// belongs to the operator: only the pages opened here are closed and the
// browser keeps running.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Browser) attached() bool {
	return b.opts.DebuggerURL != "" && b.launcher == nil
}

func (b *Browser) closeLocked() error {
	var err error
	if b.rod != nil {
		if b.attached() {
			for _, p := range b.pages {
				// Pages already closed by their Surface fail here; that is fine.
				_ = p.Close()
			}
			logging.Get(logging.CategoryBrowser).Info("detached from chrome at %s", b.controlURL)
		} else {
			err = b.rod.Close()
		}
		b.rod = nil
	}
	b.pages = nil
	b.killLauncherLocked()
	b.controlURL = ""
	return err
}

func (b *Browser) killLauncherLocked() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
		b.launcher = nil
	}
}
