package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/insajin/lazyscroll/internal/logger"
)

// PlaywrightBackend drives Chromium through playwright-go. Playwright calls
// are not context-aware, so ctx is checked before each call and the
// configured timeouts bound the calls themselves.
type PlaywrightBackend struct {
	opts Options

	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	active bool
	mu     sync.Mutex
}

// NewPlaywrightBackend creates a PlaywrightBackend. The driver and browser
// are not started until Launch.
func NewPlaywrightBackend(opts Options) *PlaywrightBackend {
	return &PlaywrightBackend{opts: opts.withDefaults()}
}

// Name implements Backend.
func (pb *PlaywrightBackend) Name() string { return "playwright" }

// Launch installs the playwright driver if needed, starts Chromium and
// opens a page with the configured viewport.
func (pb *PlaywrightBackend) Launch(ctx context.Context) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.active {
		return fmt.Errorf("browser is already launched")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(pb.opts.Headless),
	}
	if pb.opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(pb.opts.ExecPath)
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  pb.opts.ViewportW,
			Height: pb.opts.ViewportH,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}

	pb.pw = pw
	pb.browser = browser
	pb.context = bctx
	pb.page = page
	pb.active = true

	logger.Info().
		Str("backend", pb.Name()).
		Int("viewport_w", pb.opts.ViewportW).
		Int("viewport_h", pb.opts.ViewportH).
		Bool("headless", pb.opts.Headless).
		Msg("browser launched")
	return nil
}

// Navigate loads url and waits for playwright's networkidle state.
func (pb *PlaywrightBackend) Navigate(ctx context.Context, url string) error {
	p, err := pb.activePage(ctx)
	if err != nil {
		return err
	}

	if _, err := p.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(pb.opts.NavTimeout.Milliseconds())),
	}); err != nil {
		return unavailableIfClosed(ctx, fmt.Sprintf("failed to navigate to %s", url), err)
	}

	if err := p.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(pb.opts.IdleTimeout.Milliseconds())),
	}); err != nil {
		if p.IsClosed() {
			return unavailable(fmt.Sprintf("waiting for %s to load", url), err)
		}
		logger.Warn().Err(err).Str("url", url).Msg("network did not go idle; continuing")
	}
	return ctx.Err()
}

// ScrollBy scrolls the window vertically by dy pixels.
func (pb *PlaywrightBackend) ScrollBy(ctx context.Context, dy int64) error {
	p, err := pb.activePage(ctx)
	if err != nil {
		return unavailable("scroll", err)
	}
	if _, err := p.Evaluate(`(dy) => window.scrollBy(0, dy)`, dy); err != nil {
		return unavailableIfClosed(ctx, fmt.Sprintf("failed to scroll by %d", dy), err)
	}
	return nil
}

// ScrollHeight returns the current scrollable height of the document body.
func (pb *PlaywrightBackend) ScrollHeight(ctx context.Context) (int64, error) {
	p, err := pb.activePage(ctx)
	if err != nil {
		return 0, unavailable("read scroll height", err)
	}
	v, err := p.Evaluate(`() => ` + scrollHeightJS)
	if err != nil {
		return 0, unavailableIfClosed(ctx, "failed to read scroll height", err)
	}
	return toInt64(v)
}

// Close closes the page, context and browser, then stops the driver.
func (pb *PlaywrightBackend) Close() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if !pb.active {
		return nil
	}
	pb.active = false

	if pb.context != nil {
		if err := pb.context.Close(); err != nil {
			logger.Debug().Err(err).Msg("failed to close browser context")
		}
	}
	var closeErr error
	if pb.browser != nil {
		closeErr = pb.browser.Close()
	}
	if pb.pw != nil {
		if err := pb.pw.Stop(); err != nil && closeErr == nil {
			closeErr = err
		}
	}

	logger.Info().Str("backend", pb.Name()).Msg("browser closed")
	if closeErr != nil {
		return fmt.Errorf("failed to close browser: %w", closeErr)
	}
	return nil
}

// IsActive returns whether the browser is currently running.
func (pb *PlaywrightBackend) IsActive() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.active
}

func (pb *PlaywrightBackend) activePage(ctx context.Context) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	if !pb.active || pb.page == nil {
		return nil, ErrNotActive
	}
	return pb.page, nil
}
