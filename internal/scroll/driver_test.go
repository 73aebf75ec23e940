package scroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePage is an in-memory Page. grow is added to the height after every
// height read, simulating content that loads just in time.
type fakePage struct {
	mu        sync.Mutex
	height    int64
	grow      int64
	scrolled  int64
	scrolls   int
	reads     int
	scrollErr error
	heightErr error
	failAfter int // fail ScrollBy once scrolls reaches failAfter (0 = never)
}

func (p *fakePage) ScrollBy(ctx context.Context, dy int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter > 0 && p.scrolls >= p.failAfter {
		return p.scrollErr
	}
	if p.failAfter == 0 && p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls++
	p.scrolled += dy
	return nil
}

func (p *fakePage) ScrollHeight(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heightErr != nil {
		return 0, p.heightErr
	}
	p.reads++
	h := p.height
	p.height += p.grow
	return h, nil
}

func fastConfig() Config {
	return Config{
		Step:        100,
		Interval:    time.Millisecond,
		MaxTicks:    1000,
		MaxDuration: 10 * time.Second,
	}
}

func newTestDriver(t *testing.T, cfg Config) *Driver {
	t.Helper()
	d, err := NewDriver(cfg)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	return d
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unbounded", mutate: func(c *Config) { c.MaxTicks = 0; c.MaxDuration = 0 }},
		{name: "zero step", mutate: func(c *Config) { c.Step = 0 }, wantErr: true},
		{name: "negative step", mutate: func(c *Config) { c.Step = -100 }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }, wantErr: true},
		{name: "negative max ticks", mutate: func(c *Config) { c.MaxTicks = -1 }, wantErr: true},
		{name: "negative max duration", mutate: func(c *Config) { c.MaxDuration = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewDriver_InvalidConfig(t *testing.T) {
	if _, err := NewDriver(Config{Step: 0, Interval: time.Millisecond}); err == nil {
		t.Error("NewDriver() with zero step returned nil error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Step != 100 {
		t.Errorf("Step = %d; want 100", cfg.Step)
	}
	if cfg.Interval != 300*time.Millisecond {
		t.Errorf("Interval = %s; want 300ms", cfg.Interval)
	}
	if cfg.MaxTicks <= 0 || cfg.MaxDuration <= 0 {
		t.Errorf("default bounds = (%d, %s); want both positive", cfg.MaxTicks, cfg.MaxDuration)
	}
}

// TestDriver_Run_FixedHeight checks that a fixed height H takes
// ceil(H/S) ticks, and at least one.
func TestDriver_Run_FixedHeight(t *testing.T) {
	tests := []struct {
		name      string
		height    int64
		wantTicks int
		wantDist  int64
	}{
		{name: "empty page", height: 0, wantTicks: 1, wantDist: 100},
		{name: "shorter than one step", height: 50, wantTicks: 1, wantDist: 100},
		{name: "exactly one step", height: 100, wantTicks: 1, wantDist: 100},
		{name: "250 takes three ticks", height: 250, wantTicks: 3, wantDist: 300},
		{name: "exact multiple", height: 1000, wantTicks: 10, wantDist: 1000},
		{name: "one past multiple", height: 1001, wantTicks: 11, wantDist: 1100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakePage{height: tt.height}
			d := newTestDriver(t, fastConfig())

			res, err := d.Run(context.Background(), page)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Outcome != OutcomeCompleted {
				t.Errorf("Outcome = %q; want %q", res.Outcome, OutcomeCompleted)
			}
			if res.Ticks != tt.wantTicks {
				t.Errorf("Ticks = %d; want %d", res.Ticks, tt.wantTicks)
			}
			if res.Distance != tt.wantDist {
				t.Errorf("Distance = %d; want %d", res.Distance, tt.wantDist)
			}
			if res.LastHeight != tt.height {
				t.Errorf("LastHeight = %d; want %d", res.LastHeight, tt.height)
			}
			if page.scrolled != tt.wantDist {
				t.Errorf("page scrolled %d; want %d", page.scrolled, tt.wantDist)
			}
			if page.reads != tt.wantTicks {
				t.Errorf("height reads = %d; want one per tick (%d)", page.reads, tt.wantTicks)
			}
		})
	}
}

func TestDriver_Run_ObserverSeesMonotonicSteps(t *testing.T) {
	page := &fakePage{height: 250}
	d := newTestDriver(t, fastConfig())

	var distances []int64
	var states []State
	d.OnTick(func(s ScrollState, height int64) {
		distances = append(distances, s.Distance)
		states = append(states, s.State)
		if height != 250 {
			t.Errorf("observer height = %d; want 250", height)
		}
	})

	if _, err := d.Run(context.Background(), page); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []int64{100, 200, 300}
	if len(distances) != len(want) {
		t.Fatalf("observed %d ticks; want %d", len(distances), len(want))
	}
	for i := range want {
		if distances[i] != want[i] {
			t.Errorf("tick %d distance = %d; want %d", i+1, distances[i], want[i])
		}
	}
	for i, s := range states[:len(states)-1] {
		if s != Scrolling {
			t.Errorf("tick %d state = %s; want scrolling", i+1, s)
		}
	}
	if states[len(states)-1] != Done {
		t.Errorf("final state = %s; want done", states[len(states)-1])
	}
}

func TestDriver_Run_GrowingHeightHitsMaxTicks(t *testing.T) {
	// Height grows by exactly one step per tick, so the bottom is never
	// reached.
	page := &fakePage{height: 150, grow: 100}
	cfg := fastConfig()
	cfg.MaxTicks = 25
	d := newTestDriver(t, cfg)

	res, err := d.Run(context.Background(), page)
	if !errors.Is(err, ErrMaxTicks) {
		t.Fatalf("Run() error = %v; want ErrMaxTicks", err)
	}
	if res.Outcome != OutcomeMaxTicks {
		t.Errorf("Outcome = %q; want %q", res.Outcome, OutcomeMaxTicks)
	}
	if res.Ticks != 25 {
		t.Errorf("Ticks = %d; want 25", res.Ticks)
	}
	if res.Distance != 2500 {
		t.Errorf("Distance = %d; want 2500", res.Distance)
	}
}

func TestDriver_Run_MaxTicksNotHitWhenLastTickCompletes(t *testing.T) {
	page := &fakePage{height: 300}
	cfg := fastConfig()
	cfg.MaxTicks = 3
	d := newTestDriver(t, cfg)

	res, err := d.Run(context.Background(), page)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeCompleted || res.Ticks != 3 {
		t.Errorf("Result = %+v; want completed after 3 ticks", res)
	}
}

func TestDriver_Run_Timeout(t *testing.T) {
	page := &fakePage{height: 150, grow: 100}
	cfg := fastConfig()
	cfg.MaxTicks = 0
	cfg.MaxDuration = 30 * time.Millisecond
	d := newTestDriver(t, cfg)

	res, err := d.Run(context.Background(), page)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v; want ErrTimeout", err)
	}
	if res.Outcome != OutcomeTimeout {
		t.Errorf("Outcome = %q; want %q", res.Outcome, OutcomeTimeout)
	}
	if res.Ticks == 0 {
		t.Error("Ticks = 0; want some progress before the timeout")
	}
}

func TestDriver_Run_Canceled(t *testing.T) {
	page := &fakePage{height: 150, grow: 100}
	cfg := fastConfig()
	cfg.MaxTicks = 0
	cfg.MaxDuration = 0
	d := newTestDriver(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	d.OnTick(func(s ScrollState, _ int64) {
		if s.Ticks == 5 {
			cancel()
		}
	})

	res, err := d.Run(ctx, page)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v; want context.Canceled", err)
	}
	if res.Outcome != OutcomeCanceled {
		t.Errorf("Outcome = %q; want %q", res.Outcome, OutcomeCanceled)
	}
	if res.Ticks != 5 {
		t.Errorf("Ticks = %d; want 5", res.Ticks)
	}
}

func TestDriver_Run_AlreadyCanceled(t *testing.T) {
	page := &fakePage{height: 1000}
	d := newTestDriver(t, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := d.Run(ctx, page)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v; want context.Canceled", err)
	}
	if res.Ticks != 0 || page.scrolls != 0 {
		t.Errorf("Ticks = %d, scrolls = %d; want no scrolling", res.Ticks, page.scrolls)
	}
}

func TestDriver_Run_PageUnavailable(t *testing.T) {
	closed := errors.New("target closed")

	tests := []struct {
		name      string
		page      *fakePage
		wantTicks int
	}{
		{
			name:      "scroll fails immediately",
			page:      &fakePage{height: 1000, scrollErr: closed},
			wantTicks: 0,
		},
		{
			name:      "scroll fails mid-run",
			page:      &fakePage{height: 1000, scrollErr: closed, failAfter: 3},
			wantTicks: 3,
		},
		{
			name:      "height read fails",
			page:      &fakePage{height: 1000, heightErr: closed},
			wantTicks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDriver(t, fastConfig())
			res, err := d.Run(context.Background(), tt.page)
			if !errors.Is(err, ErrPageUnavailable) {
				t.Fatalf("Run() error = %v; want ErrPageUnavailable", err)
			}
			if res.Outcome != OutcomePageUnavailable {
				t.Errorf("Outcome = %q; want %q", res.Outcome, OutcomePageUnavailable)
			}
			if res.Ticks != tt.wantTicks {
				t.Errorf("Ticks = %d; want %d", res.Ticks, tt.wantTicks)
			}
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeCompleted},
		{ErrMaxTicks, OutcomeMaxTicks},
		{ErrTimeout, OutcomeTimeout},
		{context.Canceled, OutcomeCanceled},
		{ErrPageUnavailable, OutcomePageUnavailable},
		{errors.New("anything else"), OutcomePageUnavailable},
	}
	for _, tt := range tests {
		if got := OutcomeOf(tt.err); got != tt.want {
			t.Errorf("OutcomeOf(%v) = %q; want %q", tt.err, got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if Scrolling.String() != "scrolling" || Done.String() != "done" || State(9).String() != "unknown" {
		t.Error("State.String() labels mismatch")
	}
}
