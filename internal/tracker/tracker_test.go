package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pairwatch/internal/alerting"
	"pairwatch/internal/render"
)

type step struct {
	price string
	err   error
}

// scriptedSource replays a fixed sequence of fetch results; the last step
// repeats once the script runs out.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	idx   int
}

func (s *scriptedSource) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.idx
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.idx++

	st := s.steps[i]
	if st.err != nil {
		return decimal.Decimal{}, st.err
	}
	return decimal.RequireFromString(st.price), nil
}

type captureRenderer struct {
	mu      sync.Mutex
	readies []render.ReadyPayload
	updates []render.UpdatePayload
}

func (c *captureRenderer) Ready(p render.ReadyPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readies = append(c.readies, p)
}

func (c *captureRenderer) Update(p render.UpdatePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, p)
}

func (c *captureRenderer) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func (c *captureRenderer) lastUpdate() render.UpdatePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates[len(c.updates)-1]
}

type captureNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (c *captureNotifier) Notify(ctx context.Context, n alerting.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	return nil
}

func (c *captureNotifier) kinds() []alerting.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]alerting.Kind, 0, len(c.notes))
	for _, n := range c.notes {
		out = append(out, n.Kind)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func testConfig() Config {
	return Config{
		Pair:   "XXBTZUSD",
		Units:  decimal.NewFromInt(1),
		Markup: decimal.RequireFromString("1.05"),
		BuyIn:  decimal.Zero,
	}
}

func newTestTracker(cfg Config, src *scriptedSource, r render.Renderer, n alerting.Notifier, cooldown time.Duration) *Tracker {
	return New(Options{
		Config:        cfg,
		FetchTimeout:  time.Second,
		AlertCooldown: cooldown,
	}, src, nil, r, n, zerolog.Nop())
}

func mustTick(t *testing.T, tr *Tracker) {
	t.Helper()
	if err := tr.tick(context.Background()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
}

func TestTrackerSessionExtremes(t *testing.T) {
	src := &scriptedSource{steps: []step{{price: "100"}, {price: "105"}, {price: "98"}, {price: "102"}}}
	r := &captureRenderer{}
	tr := newTestTracker(testConfig(), src, r, nil, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	mustTick(t, tr)
	mustTick(t, tr)
	mustTick(t, tr)

	snap, ok := tr.Snapshot()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if snap.SessionHigh != "105" || snap.SessionLow != "98" {
		t.Fatalf("expected high 105 low 98, got %s / %s", snap.SessionHigh, snap.SessionLow)
	}
	if snap.Price != "102" {
		t.Fatalf("expected current price 102, got %s", snap.Price)
	}
	if snap.ElapsedSeconds != 3 {
		t.Fatalf("expected 3 elapsed seconds, got %d", snap.ElapsedSeconds)
	}
}

func TestTrackerFailedTickLeavesStateUntouched(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{price: "100"},
		{price: "101"},
		{err: errors.New("upstream down")},
		{price: "102"},
	}}
	r := &captureRenderer{}
	tr := newTestTracker(testConfig(), src, r, nil, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	mustTick(t, tr)

	if err := tr.tick(context.Background()); err == nil {
		t.Fatal("expected the failed fetch to propagate")
	}

	snap, _ := tr.Snapshot()
	if snap.ElapsedSeconds != 1 {
		t.Fatalf("failed tick must not count, got %d elapsed", snap.ElapsedSeconds)
	}
	if snap.Price != "101" {
		t.Fatalf("failed tick must not move the price, got %s", snap.Price)
	}
	if len(tr.History()) != 2 {
		t.Fatalf("failed tick must not grow history, got %d samples", len(tr.History()))
	}

	mustTick(t, tr)
	snap, _ = tr.Snapshot()
	if snap.ElapsedSeconds != 2 || snap.Price != "102" {
		t.Fatalf("loop must recover after a failure: %+v", snap)
	}
}

func TestTrackerRendersOnlyOnPriceChange(t *testing.T) {
	src := &scriptedSource{steps: []step{{price: "100"}, {price: "100"}, {price: "100"}, {price: "101"}}}
	r := &captureRenderer{}
	tr := newTestTracker(testConfig(), src, r, nil, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if r.updateCount() != 1 {
		t.Fatalf("expected the initial render, got %d", r.updateCount())
	}

	mustTick(t, tr) // 100, unchanged
	mustTick(t, tr) // 100, unchanged
	if r.updateCount() != 1 {
		t.Fatalf("unchanged price must not render, got %d updates", r.updateCount())
	}

	mustTick(t, tr) // 101
	if r.updateCount() != 2 {
		t.Fatalf("changed price must render, got %d updates", r.updateCount())
	}
	if got := r.lastUpdate().ElapsedSeconds; got != 3 {
		t.Fatalf("elapsed must count silent ticks too, got %d", got)
	}
}

func TestTrackerTargetFrozenUntilReconfigure(t *testing.T) {
	src := &scriptedSource{steps: []step{{price: "100"}, {price: "200"}}}
	r := &captureRenderer{}
	cfg := testConfig()
	cfg.Units = decimal.NewFromInt(2)
	tr := newTestTracker(cfg, src, r, nil, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	snap, _ := tr.Snapshot()
	if snap.TargetValue != "$210.00" {
		t.Fatalf("expected initial target $210.00, got %s", snap.TargetValue)
	}

	mustTick(t, tr)
	snap, _ = tr.Snapshot()
	if snap.TargetValue != "$210.00" {
		t.Fatalf("target must stay frozen across ticks, got %s", snap.TargetValue)
	}
	if snap.CurrentValue != "$400.00" {
		t.Fatalf("expected current value $400.00, got %s", snap.CurrentValue)
	}

	next := ConfigFromPercent("XXBTZUSD", decimal.NewFromInt(2), decimal.NewFromInt(10), decimal.Zero)
	if err := tr.Reconfigure(next); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}

	snap, _ = tr.Snapshot()
	if snap.TargetValue != "$440.00" {
		t.Fatalf("reconfigure must recompute the target from the current price, got %s", snap.TargetValue)
	}
	if snap.ElapsedSeconds != 1 {
		t.Fatalf("reconfigure must preserve elapsed, got %d", snap.ElapsedSeconds)
	}
	if len(tr.History()) != 2 {
		t.Fatalf("reconfigure must preserve history, got %d samples", len(tr.History()))
	}
	if snap.SessionHigh != "200" || snap.SessionLow != "100" {
		t.Fatalf("reconfigure must preserve extremes, got %s / %s", snap.SessionHigh, snap.SessionLow)
	}
}

func TestTrackerReconfigureRendersWithoutPriceChange(t *testing.T) {
	src := &scriptedSource{steps: []step{{price: "100"}}}
	r := &captureRenderer{}
	tr := newTestTracker(testConfig(), src, r, nil, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	before := r.updateCount()

	next := testConfig()
	next.Markup = decimal.RequireFromString("1.10")
	if err := tr.Reconfigure(next); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}

	if r.updateCount() != before+1 {
		t.Fatalf("reconfigure must force a render, got %d updates", r.updateCount())
	}
}

func TestTrackerReconfigureRejectsPairMismatch(t *testing.T) {
	src := &scriptedSource{steps: []step{{price: "100"}}}
	tr := newTestTracker(testConfig(), src, &captureRenderer{}, nil, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	next := testConfig()
	next.Pair = "XETHZUSD"
	if err := tr.Reconfigure(next); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// gateSource answers the first call immediately and blocks later calls
// until the gate opens, with a different price per call.
type gateSource struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (g *gateSource) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()

	if call > 1 {
		<-g.gate
	}
	return decimal.NewFromInt(int64(100 + call)), nil
}

func (g *gateSource) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestTrackerStopDiscardsInFlightFetch(t *testing.T) {
	src := &gateSource{gate: make(chan struct{})}
	r := &captureRenderer{}
	tr := New(Options{Config: testConfig(), FetchTimeout: 5 * time.Second}, src, nil, r, nil, zerolog.Nop())

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- tr.tick(context.Background()) }()

	waitFor(t, func() bool { return src.callCount() == 2 })
	tr.Stop()
	close(src.gate)

	if err := <-done; err != nil {
		t.Fatalf("discarded tick should not error: %v", err)
	}

	snap, _ := tr.Snapshot()
	if snap.ElapsedSeconds != 0 {
		t.Fatalf("in-flight result must be discarded after stop, got %d elapsed", snap.ElapsedSeconds)
	}
	if snap.Price != "101" {
		t.Fatalf("price must stay at the init value, got %s", snap.Price)
	}
	if r.updateCount() != 1 {
		t.Fatalf("no render after stop, got %d updates", r.updateCount())
	}
}

func TestTrackerAlertEdgesNotifyOnce(t *testing.T) {
	cfg := testConfig()
	cfg.BuyIn = decimal.NewFromInt(50)
	src := &scriptedSource{steps: []step{
		{price: "100"}, // init: value 100, target 105
		{price: "106"}, // sell edge
		{price: "107"}, // still above, no new edge
		{price: "100"}, // back below
		{price: "49"},  // buy edge
	}}
	n := &captureNotifier{}
	tr := newTestTracker(cfg, src, &captureRenderer{}, n, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		mustTick(t, tr)
	}

	waitFor(t, func() bool { return len(n.kinds()) == 2 })
	kinds := n.kinds()
	if kinds[0] != alerting.KindSellTarget || kinds[1] != alerting.KindBuyIn {
		t.Fatalf("unexpected notification kinds: %v", kinds)
	}

	snap, _ := tr.Snapshot()
	if snap.SellAlert || !snap.BuyAlert {
		t.Fatalf("payload flags must stay pure predicates: %+v", snap)
	}
}

func TestTrackerAlertCooldownSuppressesRepeatEdges(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{price: "100"}, // init, target 105
		{price: "106"}, // sell edge, notifies
		{price: "100"}, // below again
		{price: "106"}, // second edge inside cooldown
	}}
	n := &captureNotifier{}
	tr := newTestTracker(testConfig(), src, &captureRenderer{}, n, time.Hour)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		mustTick(t, tr)
	}

	waitFor(t, func() bool { return len(n.kinds()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := len(n.kinds()); got != 1 {
		t.Fatalf("cooldown must suppress the repeat edge, got %d notifications", got)
	}
}

func TestTrackerRepeatEdgeFiresWithoutCooldown(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{price: "100"},
		{price: "106"},
		{price: "100"},
		{price: "106"},
	}}
	n := &captureNotifier{}
	tr := newTestTracker(testConfig(), src, &captureRenderer{}, n, 0)

	if err := tr.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		mustTick(t, tr)
	}

	waitFor(t, func() bool { return len(n.kinds()) == 2 })
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"valid", func(c *Config) {}, true},
		{"empty pair", func(c *Config) { c.Pair = " " }, false},
		{"zero units", func(c *Config) { c.Units = decimal.Zero }, false},
		{"negative units", func(c *Config) { c.Units = decimal.NewFromInt(-1) }, false},
		{"zero markup", func(c *Config) { c.Markup = decimal.Zero }, false},
		{"negative buy-in", func(c *Config) { c.BuyIn = decimal.NewFromInt(-5) }, false},
		{"zero buy-in ok", func(c *Config) { c.BuyIn = decimal.Zero }, true},
	}

	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.wantOK && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.wantOK {
			if err == nil {
				t.Fatalf("%s: expected an error", tc.name)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("%s: error must wrap ErrInvalidConfig, got %v", tc.name, err)
			}
		}
	}
}

func TestConfigFromPercent(t *testing.T) {
	cfg := ConfigFromPercent("XXBTZUSD", decimal.NewFromInt(3), decimal.NewFromInt(5), decimal.NewFromInt(10))
	if !cfg.Markup.Equal(decimal.RequireFromString("1.05")) {
		t.Fatalf("expected markup 1.05, got %s", cfg.Markup)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("converted config must validate: %v", err)
	}
}
