package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/insajin/lazyscroll/internal/logger"
)

// RodBackend drives a single Chromium instance with go-rod.
type RodBackend struct {
	opts Options

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	active bool
	mu     sync.Mutex
}

// NewRodBackend creates a RodBackend. The browser is not started until
// Launch.
func NewRodBackend(opts Options) *RodBackend {
	return &RodBackend{opts: opts.withDefaults()}
}

// Name implements Backend.
func (rb *RodBackend) Name() string { return "rod" }

// Launch starts Chromium through the rod launcher and opens a blank page.
func (rb *RodBackend) Launch(ctx context.Context) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.active {
		return fmt.Errorf("browser is already launched")
	}

	l := launcher.New().Context(ctx).Headless(rb.opts.Headless)
	if rb.opts.ExecPath != "" {
		l = l.Bin(rb.opts.ExecPath)
	}
	l = l.Set("no-first-run").Set("no-default-browser-check").Set("disable-extensions")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             rb.opts.ViewportW,
		Height:            rb.opts.ViewportH,
		DeviceScaleFactor: 1,
	}); err != nil {
		logger.Warn().Err(err).Str("backend", rb.Name()).Msg("failed to set viewport")
	}

	rb.launcher = l
	rb.browser = browser
	rb.page = page
	rb.active = true

	logger.Info().
		Str("backend", rb.Name()).
		Int("viewport_w", rb.opts.ViewportW).
		Int("viewport_h", rb.opts.ViewportH).
		Bool("headless", rb.opts.Headless).
		Msg("browser launched")
	return nil
}

// Navigate loads url and waits for the networkAlmostIdle lifecycle event.
// The idle wait gets the full IdleTimeout after navigation returns.
func (rb *RodBackend) Navigate(ctx context.Context, url string) error {
	p, err := rb.activePage(ctx)
	if err != nil {
		return err
	}

	// Subscribe before navigating so the event cannot be missed.
	idleCtx, cancelIdle := context.WithCancel(ctx)
	defer cancelIdle()
	waitIdle := p.Context(idleCtx).WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)

	nav := p.Timeout(rb.opts.NavTimeout)
	defer nav.CancelTimeout()
	if err := nav.Navigate(url); err != nil {
		return unavailableIfClosed(ctx, fmt.Sprintf("failed to navigate to %s", url), err)
	}

	if idleExpired(rb.opts.IdleTimeout, cancelIdle, waitIdle) && ctx.Err() == nil {
		logger.Warn().Str("url", url).Dur("waited", rb.opts.IdleTimeout).Msg("network did not go idle; continuing")
	}
	return ctx.Err()
}

// ScrollBy scrolls the window vertically by dy pixels.
func (rb *RodBackend) ScrollBy(ctx context.Context, dy int64) error {
	p, err := rb.activePage(ctx)
	if err != nil {
		return unavailable("scroll", err)
	}
	if _, err := p.Eval(`(dy) => window.scrollBy(0, dy)`, dy); err != nil {
		return unavailableIfClosed(ctx, fmt.Sprintf("failed to scroll by %d", dy), err)
	}
	return nil
}

// ScrollHeight returns the current scrollable height of the document body.
func (rb *RodBackend) ScrollHeight(ctx context.Context) (int64, error) {
	p, err := rb.activePage(ctx)
	if err != nil {
		return 0, unavailable("read scroll height", err)
	}
	res, err := p.Eval(`() => ` + scrollHeightJS)
	if err != nil {
		return 0, unavailableIfClosed(ctx, "failed to read scroll height", err)
	}
	return int64(res.Value.Int()), nil
}

// Close terminates the browser and waits for the launcher to clean up.
func (rb *RodBackend) Close() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.active {
		return nil
	}
	rb.active = false

	var closeErr error
	if rb.browser != nil {
		closeErr = rb.browser.Close()
	}
	if rb.launcher != nil {
		rb.launcher.Kill()
		rb.launcher.Cleanup()
	}

	logger.Info().Str("backend", rb.Name()).Msg("browser closed")
	if closeErr != nil {
		return fmt.Errorf("failed to close browser: %w", closeErr)
	}
	return nil
}

// IsActive returns whether the browser is currently running.
func (rb *RodBackend) IsActive() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.active
}

// idleExpired runs wait and cancels it through cancel once d has passed.
// The clock starts when idleExpired is called. It reports whether d
// elapsed before wait returned on its own.
func idleExpired(d time.Duration, cancel context.CancelFunc, wait func()) bool {
	timer := time.AfterFunc(d, cancel)
	wait()
	return !timer.Stop()
}

func (rb *RodBackend) activePage(ctx context.Context) (*rod.Page, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.active || rb.page == nil {
		return nil, ErrNotActive
	}
	return rb.page.Context(ctx), nil
}

// unavailableIfClosed treats any failure not caused by ctx as a lost page;
// rod does not distinguish a closed target from other CDP failures.
func unavailableIfClosed(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return unavailable(op, err)
}
