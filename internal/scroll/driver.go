package scroll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults mirror the pacing of a person reading down an article.
const (
	DefaultStep        int64 = 100
	DefaultInterval          = 300 * time.Millisecond
	DefaultMaxTicks          = 10000
	DefaultMaxDuration       = 10 * time.Minute
)

// Config controls step size, pacing and the bounds on a single run.
// A zero MaxTicks or MaxDuration disables that bound.
type Config struct {
	Step        int64
	Interval    time.Duration
	MaxTicks    int
	MaxDuration time.Duration
}

// DefaultConfig returns the default pacing and bounds.
func DefaultConfig() Config {
	return Config{
		Step:        DefaultStep,
		Interval:    DefaultInterval,
		MaxTicks:    DefaultMaxTicks,
		MaxDuration: DefaultMaxDuration,
	}
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	if c.Step <= 0 {
		return fmt.Errorf("step must be positive, got %d", c.Step)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("max ticks must not be negative, got %d", c.MaxTicks)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative, got %s", c.MaxDuration)
	}
	return nil
}

// Observer is notified after every tick with the updated state and the
// height read on that tick. It runs on the driver's goroutine and must
// not block.
type Observer func(state ScrollState, height int64)

// Driver scrolls a Page by a fixed step on a fixed interval until the
// accumulated distance reaches the page's current scroll height.
type Driver struct {
	cfg      Config
	observer Observer
}

// NewDriver validates cfg and returns a Driver.
func NewDriver(cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scroll config: %w", err)
	}
	return &Driver{cfg: cfg}, nil
}

// Config returns the driver's configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

// OnTick registers an observer for tick updates. It must be called before
// Run.
func (d *Driver) OnTick(o Observer) {
	d.observer = o
}

// Run drives page until the bottom is reached, a bound is hit, ctx is
// cancelled or the page stops answering. The caller must not scroll the
// same page concurrently.
func (d *Driver) Run(ctx context.Context, page Page) (Result, error) {
	start := time.Now()
	state := ScrollState{
		Step:     d.cfg.Step,
		Interval: d.cfg.Interval,
		State:    Scrolling,
	}
	var lastHeight int64

	result := func(err error) (Result, error) {
		return Result{
			Outcome:    OutcomeOf(err),
			Ticks:      state.Ticks,
			Distance:   state.Distance,
			LastHeight: lastHeight,
			Elapsed:    time.Since(start),
		}, err
	}

	runCtx := ctx
	if d.cfg.MaxDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.MaxDuration)
		defer cancel()
	}

	// A ticker keeps one pending tick at a time; slow ticks drop, never
	// overlap.
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for state.State == Scrolling {
		select {
		case <-runCtx.Done():
			return result(d.stopErr(ctx, runCtx))
		case <-ticker.C:
		}
		if runCtx.Err() != nil {
			return result(d.stopErr(ctx, runCtx))
		}

		if err := page.ScrollBy(runCtx, state.Step); err != nil {
			return result(d.pageErr(ctx, runCtx, "scroll", err))
		}
		state.advance()

		height, err := page.ScrollHeight(runCtx)
		if err != nil {
			return result(d.pageErr(ctx, runCtx, "read scroll height", err))
		}
		lastHeight = height

		if state.reached(height) {
			state.State = Done
		}
		if d.observer != nil {
			d.observer(state, height)
		}

		if state.State == Scrolling && d.cfg.MaxTicks > 0 && state.Ticks >= d.cfg.MaxTicks {
			return result(fmt.Errorf("%w: %d ticks, distance %d, height %d",
				ErrMaxTicks, state.Ticks, state.Distance, height))
		}
	}

	return result(nil)
}

// stopErr explains why runCtx ended: the caller's context or our own
// duration bound.
func (d *Driver) stopErr(parent, runCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("scroll aborted: %w", err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, d.cfg.MaxDuration)
	}
	return fmt.Errorf("scroll aborted: %w", runCtx.Err())
}

// pageErr classifies a collaborator failure. Failures caused by our own
// context ending are reported as such, everything else means the page is
// gone.
func (d *Driver) pageErr(parent, runCtx context.Context, op string, err error) error {
	if runCtx.Err() != nil {
		return d.stopErr(parent, runCtx)
	}
	if errors.Is(err, ErrPageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrPageUnavailable, err)
}
