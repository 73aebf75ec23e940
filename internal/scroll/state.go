// Package scroll drives a page downward in fixed steps until the bottom of
// its (possibly growing) content has been reached.
package scroll

import (
	"context"
	"errors"
	"time"
)

// State is the driver's position in its two-state machine.
type State int

const (
	// Scrolling is the initial state; every tick that does not reach the
	// bottom leaves the driver here.
	Scrolling State = iota
	// Done is terminal.
	Done
)

// String returns a human-readable state label.
func (s State) String() string {
	switch s {
	case Scrolling:
		return "scrolling"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// ScrollState is the transient per-run state. It is created fresh by
// Driver.Run and only mutated by the driver's own loop.
type ScrollState struct {
	Distance int64
	Step     int64
	Interval time.Duration
	Ticks    int
	State    State
}

// advance records one scroll step. Distance grows by exactly Step.
func (s *ScrollState) advance() {
	s.Distance += s.Step
	s.Ticks++
}

// reached reports whether the accumulated distance covers height.
func (s *ScrollState) reached(height int64) bool {
	return s.Distance >= height
}

// Page is the collaborator contract the driver needs from a loaded page.
// Implementations must tolerate ScrollHeight being called after every
// ScrollBy; the height may change between calls as lazy content loads.
type Page interface {
	ScrollBy(ctx context.Context, dy int64) error
	ScrollHeight(ctx context.Context) (int64, error)
}

// Outcome tags how a run ended.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeMaxTicks        Outcome = "max_ticks"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeCanceled        Outcome = "canceled"
	OutcomePageUnavailable Outcome = "page_unavailable"
)

// Result is returned exactly once per Run, whatever the outcome.
type Result struct {
	Outcome    Outcome       `json:"outcome"`
	Ticks      int           `json:"ticks"`
	Distance   int64         `json:"distance"`
	LastHeight int64         `json:"last_height"`
	Elapsed    time.Duration `json:"elapsed"`
}

var (
	// ErrPageUnavailable is returned when the page or its browser stops
	// answering mid-run.
	ErrPageUnavailable = errors.New("page unavailable")
	// ErrMaxTicks is returned when the tick bound is hit before the bottom.
	ErrMaxTicks = errors.New("maximum tick count reached")
	// ErrTimeout is returned when the duration bound elapses first.
	ErrTimeout = errors.New("maximum scroll duration elapsed")
)

// OutcomeOf maps a Run error to its outcome tag.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrMaxTicks):
		return OutcomeMaxTicks
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomePageUnavailable
	}
}
