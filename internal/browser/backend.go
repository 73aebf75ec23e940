// Package browser launches a browser, loads a page and exposes it to the
// scroll driver. Three interchangeable backends are provided: chromedp,
// go-rod and playwright-go.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/insajin/lazyscroll/internal/scroll"
)

// Default viewport and timing values.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	DefaultNavTimeout     = 60 * time.Second
	DefaultIdleTimeout    = 30 * time.Second
)

// Scripts evaluated in the page. Height is read from the body, which is
// what grows as lazy content is appended.
const (
	scrollByJS     = `window.scrollBy(0, %d)`
	scrollHeightJS = `document.body ? document.body.scrollHeight : 0`
)

// ErrNotActive is returned by page operations before Launch or after Close.
var ErrNotActive = errors.New("browser is not active")

// Backend is a single browser with a single page.
type Backend interface {
	scroll.Page

	// Name returns the backend identifier used in configuration.
	Name() string
	// Launch starts the browser and opens a blank page.
	Launch(ctx context.Context) error
	// Navigate loads url and waits until the network is mostly idle.
	Navigate(ctx context.Context, url string) error
	// Close terminates the browser. It is safe to call more than once.
	Close() error
	// IsActive reports whether the browser is running.
	IsActive() bool
}

// Options configure how the browser is launched.
type Options struct {
	Headless  bool
	ViewportW int
	ViewportH int
	// ExecPath overrides the browser binary. Empty uses the backend default.
	ExecPath string
	// NavTimeout bounds the navigation itself.
	NavTimeout time.Duration
	// IdleTimeout bounds the wait for network idleness after load. When it
	// expires the page is used as loaded so far.
	IdleTimeout time.Duration
}

// DefaultOptions returns a headed 1280x800 browser.
func DefaultOptions() Options {
	return Options{
		Headless:    false,
		ViewportW:   DefaultViewportWidth,
		ViewportH:   DefaultViewportHeight,
		NavTimeout:  DefaultNavTimeout,
		IdleTimeout: DefaultIdleTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.ViewportW <= 0 {
		o.ViewportW = DefaultViewportWidth
	}
	if o.ViewportH <= 0 {
		o.ViewportH = DefaultViewportHeight
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = DefaultNavTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	return o
}

// Factory builds a backend from options.
type Factory func(opts Options) Backend

var factories = map[string]Factory{
	"chromedp":   func(o Options) Backend { return NewChromeBackend(o) },
	"rod":        func(o Options) Backend { return NewRodBackend(o) },
	"playwright": func(o Options) Backend { return NewPlaywrightBackend(o) },
}

// New returns the backend registered under name.
func New(name string, opts Options) (Backend, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown browser backend %q (available: %v)", name, Names())
	}
	return f(opts.withDefaults()), nil
}

// Names lists the registered backends in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unavailable tags err as a lost page so the scroll driver reports it as
// such.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, scroll.ErrPageUnavailable, err)
}

// toInt64 converts a JS number decoded as any Go numeric type.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected scroll height type %T", v)
	}
}
