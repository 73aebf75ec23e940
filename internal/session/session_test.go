package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/insajin/lazyscroll/internal/browser"
	"github.com/insajin/lazyscroll/internal/metrics"
	"github.com/insajin/lazyscroll/internal/scroll"
)

// fakeBackend records calls and serves a page of fixed height.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	height    int64
	active    bool
	launchErr error
	navErr    error
	closeErr  error
	// loseAfter makes ScrollBy fail once this many scrolls succeeded.
	loseAfter int
	scrolls   int
}

var _ browser.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Launch(ctx context.Context) error {
	f.record("launch")
	if f.launchErr != nil {
		return f.launchErr
	}
	f.active = true
	return nil
}

func (f *fakeBackend) Navigate(ctx context.Context, url string) error {
	f.record("navigate " + url)
	return f.navErr
}

func (f *fakeBackend) ScrollBy(ctx context.Context, dy int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loseAfter > 0 && f.scrolls >= f.loseAfter {
		return errors.New("target closed")
	}
	f.scrolls++
	return nil
}

func (f *fakeBackend) ScrollHeight(ctx context.Context) (int64, error) {
	return f.height, nil
}

func (f *fakeBackend) Close() error {
	f.record("close")
	f.active = false
	return f.closeErr
}

func (f *fakeBackend) IsActive() bool { return f.active }

func newDriver(t *testing.T) *scroll.Driver {
	t.Helper()
	d, err := scroll.NewDriver(scroll.Config{
		Step:        100,
		Interval:    time.Millisecond,
		MaxTicks:    100,
		MaxDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	return d
}

func TestRunner_Run_Completes(t *testing.T) {
	fb := &fakeBackend{height: 250}
	m := metrics.NewMetrics()

	var phases []Phase
	r := New(fb, newDriver(t), WithMetrics(m), WithProgress(func(p Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
	}))

	report, err := r.Run(context.Background(), "http://localhost/article")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.RunID == "" {
		t.Error("RunID is empty")
	}
	if report.Backend != "fake" || report.URL != "http://localhost/article" {
		t.Errorf("report = %+v; want fake backend and the given URL", report)
	}
	if report.Result.Outcome != scroll.OutcomeCompleted || report.Result.Ticks != 3 {
		t.Errorf("Result = %+v; want completed after 3 ticks", report.Result)
	}
	if report.Finished.Before(report.Started) {
		t.Error("Finished is before Started")
	}

	wantCalls := []string{"launch", "navigate http://localhost/article", "close"}
	if got := fb.Calls(); strings.Join(got, "|") != strings.Join(wantCalls, "|") {
		t.Errorf("calls = %v; want %v", got, wantCalls)
	}

	wantPhases := []Phase{PhaseLaunching, PhaseNavigating, PhaseScrolling, PhaseClosing, PhaseDone}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v; want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phase %d = %s; want %s", i, phases[i], wantPhases[i])
		}
	}

	snap := m.Snapshot()
	if snap.RunsStarted != 1 || snap.RunsCompleted != 1 || snap.RunsFailed != 0 {
		t.Errorf("run counters = %+v; want 1 started, 1 completed", snap)
	}
	if snap.TicksTotal != 3 || snap.DistanceTotal != 300 {
		t.Errorf("ticks/distance = %d/%d; want 3/300", snap.TicksTotal, snap.DistanceTotal)
	}
}

func TestRunner_Run_LaunchFailure(t *testing.T) {
	fb := &fakeBackend{launchErr: errors.New("chrome not found")}
	r := New(fb, newDriver(t))

	_, err := r.Run(context.Background(), "http://localhost/")
	if err == nil || !strings.Contains(err.Error(), "launch browser") {
		t.Fatalf("Run() error = %v; want launch browser error", err)
	}
	for _, c := range fb.Calls() {
		if c == "close" {
			t.Error("Close called although Launch failed")
		}
	}
	if r.Metrics().RunsFailed.Load() != 1 {
		t.Errorf("RunsFailed = %d; want 1", r.Metrics().RunsFailed.Load())
	}
}

func TestRunner_Run_InvalidTarget(t *testing.T) {
	fb := &fakeBackend{height: 250}
	r := New(fb, newDriver(t))

	_, err := r.Run(context.Background(), "file:///etc/passwd")
	if !errors.Is(err, browser.ErrInvalidTarget) {
		t.Fatalf("Run() error = %v; want ErrInvalidTarget", err)
	}
	if calls := fb.Calls(); len(calls) != 0 {
		t.Errorf("backend calls = %v; want none for a rejected URL", calls)
	}
	if r.Metrics().RunsFailed.Load() != 1 {
		t.Errorf("RunsFailed = %d; want 1", r.Metrics().RunsFailed.Load())
	}
}

func TestRunner_Run_NavigateFailureCloses(t *testing.T) {
	fb := &fakeBackend{height: 100, navErr: errors.New("dns failure")}
	r := New(fb, newDriver(t))

	_, err := r.Run(context.Background(), "http://nowhere.invalid/")
	if err == nil || !strings.Contains(err.Error(), "navigate") {
		t.Fatalf("Run() error = %v; want navigate error", err)
	}
	calls := fb.Calls()
	if calls[len(calls)-1] != "close" {
		t.Errorf("last call = %q; want close", calls[len(calls)-1])
	}
}

func TestRunner_Run_PageLostMidScroll(t *testing.T) {
	fb := &fakeBackend{height: 10000, loseAfter: 4}
	r := New(fb, newDriver(t))

	report, err := r.Run(context.Background(), "http://localhost/")
	if !errors.Is(err, scroll.ErrPageUnavailable) {
		t.Fatalf("Run() error = %v; want ErrPageUnavailable", err)
	}
	if report.Result.Outcome != scroll.OutcomePageUnavailable || report.Result.Ticks != 4 {
		t.Errorf("Result = %+v; want page_unavailable after 4 ticks", report.Result)
	}
	if fb.IsActive() {
		t.Error("backend still active; want closed")
	}
	if r.Metrics().RunsPageUnavailable.Load() != 1 {
		t.Errorf("RunsPageUnavailable = %d; want 1", r.Metrics().RunsPageUnavailable.Load())
	}
}

func TestRunner_Run_CloseErrorReported(t *testing.T) {
	fb := &fakeBackend{height: 100, closeErr: errors.New("process already gone")}
	r := New(fb, newDriver(t))

	report, err := r.Run(context.Background(), "http://localhost/")
	if err == nil || !strings.Contains(err.Error(), "close browser") {
		t.Fatalf("Run() error = %v; want close browser error", err)
	}
	if report.Result.Outcome == scroll.OutcomeCompleted {
		t.Error("Outcome = completed; want a failure outcome when close fails")
	}
	snap := r.Metrics().Snapshot()
	if snap.RunsCompleted != 0 || snap.RunsFailed != 1 {
		t.Errorf("run counters = %+v; want 0 completed, 1 failed", snap)
	}
}

func TestRunner_Run_CloseErrorDoesNotMaskPrimary(t *testing.T) {
	fb := &fakeBackend{height: 100, navErr: errors.New("dns failure"), closeErr: errors.New("gone")}
	r := New(fb, newDriver(t))

	_, err := r.Run(context.Background(), "http://localhost/")
	if err == nil || !strings.Contains(err.Error(), "dns failure") {
		t.Fatalf("Run() error = %v; want the navigate error", err)
	}
}

func TestRunner_Run_Dwell(t *testing.T) {
	fb := &fakeBackend{height: 100}
	r := New(fb, newDriver(t), WithDwell(30*time.Millisecond))

	start := time.Now()
	if _, err := r.Run(context.Background(), "http://localhost/"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Run() returned after %s; want at least the 30ms dwell", elapsed)
	}
}

func TestRunner_Run_DwellCanceled(t *testing.T) {
	fb := &fakeBackend{height: 100}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(fb, newDriver(t), WithDwell(time.Hour), WithProgress(func(p Progress) {
		if p.Phase == PhaseDwelling {
			cancel()
		}
	}))

	report, err := r.Run(ctx, "http://localhost/")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v; want context.Canceled", err)
	}
	if fb.IsActive() {
		t.Error("backend still active after cancelled dwell")
	}
	if report.Result.Outcome != scroll.OutcomeCanceled {
		t.Errorf("Outcome = %q; want canceled", report.Result.Outcome)
	}
	snap := r.Metrics().Snapshot()
	if snap.RunsCompleted != 0 || snap.RunsCanceled != 1 || snap.RunsFailed != 1 {
		t.Errorf("run counters = %+v; want 0 completed, 1 canceled, 1 failed", snap)
	}
}
