// Package session runs the whole flow for one page: launch the browser,
// load the page, scroll it to the bottom, optionally dwell, and close.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insajin/lazyscroll/internal/browser"
	"github.com/insajin/lazyscroll/internal/logger"
	"github.com/insajin/lazyscroll/internal/metrics"
	"github.com/insajin/lazyscroll/internal/scroll"
)

// Phase is the step of the flow a run is in.
type Phase string

const (
	PhaseLaunching  Phase = "launching"
	PhaseNavigating Phase = "navigating"
	PhaseScrolling  Phase = "scrolling"
	PhaseDwelling   Phase = "dwelling"
	PhaseClosing    Phase = "closing"
	PhaseDone       Phase = "done"
)

// Progress is published on every phase change and every scroll tick.
type Progress struct {
	RunID  string
	Phase  Phase
	State  scroll.ScrollState
	Height int64
	Err    error
}

// Report summarises a finished run.
type Report struct {
	RunID    string        `json:"run_id"`
	URL      string        `json:"url"`
	Backend  string        `json:"backend"`
	Result   scroll.Result `json:"result"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records run and tick counters into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithDwell keeps the page open for d after the bottom is reached.
func WithDwell(d time.Duration) Option {
	return func(r *Runner) { r.dwell = d }
}

// WithProgress registers fn to receive progress updates. fn runs on the
// scrolling goroutine and must not block.
func WithProgress(fn func(Progress)) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner owns one backend and one driver. A Runner runs one flow at a
// time.
type Runner struct {
	backend  browser.Backend
	driver   *scroll.Driver
	metrics  *metrics.Metrics
	dwell    time.Duration
	progress func(Progress)
}

// New creates a Runner.
func New(backend browser.Backend, driver *scroll.Driver, opts ...Option) *Runner {
	r := &Runner{
		backend: backend,
		driver:  driver,
		metrics: metrics.NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the runner's metrics.
func (r *Runner) Metrics() *metrics.Metrics {
	return r.metrics
}

// Run executes the flow against url. The browser is always closed before
// Run returns; a close failure is returned only when nothing else failed.
func (r *Runner) Run(ctx context.Context, url string) (report Report, err error) {
	report = Report{
		RunID:   uuid.New().String(),
		URL:     url,
		Backend: r.backend.Name(),
		Started: time.Now(),
	}
	log := logger.WithRunID(report.RunID)
	r.metrics.RunsStarted.Add(1)

	if err := browser.ValidateTarget(url); err != nil {
		return r.finish(report, log, err)
	}

	r.publish(Progress{RunID: report.RunID, Phase: PhaseLaunching})
	if err := r.backend.Launch(ctx); err != nil {
		return r.finish(report, log, fmt.Errorf("launch browser: %w", err))
	}

	defer func() {
		r.publish(Progress{RunID: report.RunID, Phase: PhaseClosing})
		if closeErr := r.backend.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close browser")
			if err == nil {
				err = fmt.Errorf("close browser: %w", closeErr)
			}
		}
		report, err = r.finish(report, log, err)
	}()

	r.publish(Progress{RunID: report.RunID, Phase: PhaseNavigating})
	log.Info().Str("url", url).Str("backend", report.Backend).Msg("navigating")
	if err := r.backend.Navigate(ctx, url); err != nil {
		return report, fmt.Errorf("navigate: %w", err)
	}

	r.publish(Progress{RunID: report.RunID, Phase: PhaseScrolling})
	last := time.Now()
	r.driver.OnTick(func(s scroll.ScrollState, height int64) {
		now := time.Now()
		r.metrics.RecordTick(s.Step, now.Sub(last))
		last = now
		log.Debug().
			Int("tick", s.Ticks).
			Int64("distance", s.Distance).
			Int64("height", height).
			Str("state", s.State.String()).
			Msg("scroll tick")
		r.publish(Progress{RunID: report.RunID, Phase: PhaseScrolling, State: s, Height: height})
	})

	res, err := r.driver.Run(ctx, r.backend)
	report.Result = res
	if err != nil {
		return report, fmt.Errorf("scroll: %w", err)
	}
	log.Info().
		Int("ticks", res.Ticks).
		Int64("distance", res.Distance).
		Int64("height", res.LastHeight).
		Dur("elapsed", res.Elapsed).
		Msg("reached bottom of page")

	if r.dwell > 0 {
		r.publish(Progress{RunID: report.RunID, Phase: PhaseDwelling})
		log.Info().Dur("dwell", r.dwell).Msg("dwelling on page")
		timer := time.NewTimer(r.dwell)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return report, fmt.Errorf("dwell: %w", ctx.Err())
		}
	}

	return report, nil
}

// finish stamps the report, records the run's final outcome and publishes
// the terminal progress update. A run that scrolled to the bottom but then
// failed (cancelled dwell, close error) is not counted as completed.
func (r *Runner) finish(report Report, log zerolog.Logger, err error) (Report, error) {
	report.Finished = time.Now()
	switch {
	case err != nil && (report.Result.Outcome == "" || report.Result.Outcome == scroll.OutcomeCompleted):
		report.Result.Outcome = scroll.OutcomeOf(err)
	case err == nil:
		report.Result.Outcome = scroll.OutcomeCompleted
	}
	r.metrics.RecordOutcome(report.Result.Outcome)
	if err != nil {
		log.Error().Err(err).Str("outcome", string(report.Result.Outcome)).Msg("run failed")
	} else {
		log.Info().Dur("total", report.Finished.Sub(report.Started)).Msg("run finished")
	}
	r.publish(Progress{RunID: report.RunID, Phase: PhaseDone, State: scroll.ScrollState{
		Distance: report.Result.Distance,
		Ticks:    report.Result.Ticks,
	}, Height: report.Result.LastHeight, Err: err})
	return report, err
}

func (r *Runner) publish(p Progress) {
	if r.progress != nil {
		r.progress(p)
	}
}
