package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/insajin/lazyscroll/internal/logger"
)

// ChromeBackend drives a single Chrome instance over the DevTools
// protocol using chromedp.
type ChromeBackend struct {
	opts Options

	// allocCtx and allocCancel control the browser process lifecycle.
	allocCtx    context.Context
	allocCancel context.CancelFunc

	// taskCtx and taskCancel control the browser tab lifecycle.
	taskCtx    context.Context
	taskCancel context.CancelFunc

	active bool
	mu     sync.Mutex
}

// NewChromeBackend creates a ChromeBackend. The browser is not started
// until Launch.
func NewChromeBackend(opts Options) *ChromeBackend {
	return &ChromeBackend{opts: opts.withDefaults()}
}

// Name implements Backend.
func (cb *ChromeBackend) Name() string { return "chromedp" }

// Launch starts Chrome and opens a blank tab with the configured viewport.
func (cb *ChromeBackend) Launch(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.active {
		return fmt.Errorf("browser is already launched")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(cb.opts.ViewportW, cb.opts.ViewportH),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-extensions", true),
	)
	if cb.opts.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cb.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cb.opts.ExecPath))
	}

	cb.allocCtx, cb.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	cb.taskCtx, cb.taskCancel = chromedp.NewContext(cb.allocCtx)

	// The first Run starts the browser.
	if err := chromedp.Run(cb.taskCtx,
		chromedp.Navigate("about:blank"),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		cb.taskCancel()
		cb.allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	if err := chromedp.Run(cb.taskCtx, chromedp.EmulateViewport(int64(cb.opts.ViewportW), int64(cb.opts.ViewportH))); err != nil {
		logger.Warn().Err(err).Str("backend", cb.Name()).Msg("failed to set viewport")
	}

	cb.active = true
	logger.Info().
		Str("backend", cb.Name()).
		Int("viewport_w", cb.opts.ViewportW).
		Int("viewport_h", cb.opts.ViewportH).
		Bool("headless", cb.opts.Headless).
		Msg("browser launched")
	return nil
}

// Navigate loads url and waits for Chrome's networkAlmostIdle lifecycle
// event, i.e. no more than two requests in flight for 500ms.
func (cb *ChromeBackend) Navigate(ctx context.Context, url string) error {
	runCtx, cancel, err := cb.runContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	idle := make(chan struct{})
	var once sync.Once
	var started bool
	listenCtx, stopListening := context.WithCancel(runCtx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		// Events before "init" belong to the previous document.
		switch e.Name {
		case "init":
			started = true
		case "networkAlmostIdle":
			if started {
				once.Do(func() { close(idle) })
			}
		}
	})

	navCtx, navCancel := context.WithTimeout(runCtx, cb.opts.NavTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return cb.classify(fmt.Sprintf("failed to navigate to %s", url), err)
	}

	timer := time.NewTimer(cb.opts.IdleTimeout)
	defer timer.Stop()
	select {
	case <-idle:
		logger.Debug().Str("url", url).Msg("network almost idle")
	case <-timer.C:
		logger.Warn().Str("url", url).Dur("waited", cb.opts.IdleTimeout).Msg("network did not go idle; continuing")
	case <-runCtx.Done():
		return cb.classify(fmt.Sprintf("waiting for %s to load", url), runCtx.Err())
	}
	return nil
}

// ScrollBy scrolls the window vertically by dy pixels.
func (cb *ChromeBackend) ScrollBy(ctx context.Context, dy int64) error {
	runCtx, cancel, err := cb.runContext(ctx)
	if err != nil {
		return unavailable("scroll", err)
	}
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf(scrollByJS, dy), nil)); err != nil {
		return cb.classify(fmt.Sprintf("failed to scroll by %d", dy), err)
	}
	return nil
}

// ScrollHeight returns the current scrollable height of the document body.
func (cb *ChromeBackend) ScrollHeight(ctx context.Context) (int64, error) {
	runCtx, cancel, err := cb.runContext(ctx)
	if err != nil {
		return 0, unavailable("read scroll height", err)
	}
	defer cancel()

	var height float64
	if err := chromedp.Run(runCtx, chromedp.Evaluate(scrollHeightJS, &height)); err != nil {
		return 0, cb.classify("failed to read scroll height", err)
	}
	return int64(height), nil
}

// Close terminates the browser process and releases resources.
func (cb *ChromeBackend) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.active {
		return nil
	}
	cb.active = false

	// Cancel contexts in reverse order.
	if cb.taskCancel != nil {
		cb.taskCancel()
	}
	if cb.allocCancel != nil {
		cb.allocCancel()
	}

	logger.Info().Str("backend", cb.Name()).Msg("browser closed")
	return nil
}

// IsActive returns whether the browser is currently running.
func (cb *ChromeBackend) IsActive() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.active
}

// runContext derives a context from the tab that is also cancelled with
// ctx. Cancelling it aborts the action without closing the tab.
func (cb *ChromeBackend) runContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.active {
		return nil, nil, ErrNotActive
	}
	runCtx, cancel := context.WithCancel(cb.taskCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

// classify marks errors caused by a closed tab or browser as a lost page.
func (cb *ChromeBackend) classify(op string, err error) error {
	if errors.Is(err, chromedp.ErrInvalidContext) ||
		errors.Is(err, chromedp.ErrChannelClosed) ||
		errors.Is(err, chromedp.ErrInvalidTarget) ||
		cb.taskCtx.Err() != nil {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
