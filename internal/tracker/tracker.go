package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pairwatch/internal/alerting"
	"pairwatch/internal/history"
	"pairwatch/internal/provider"
	"pairwatch/internal/render"
	"pairwatch/internal/scheduler"
	"pairwatch/internal/stats"
)

var (
	// ErrInvalidConfig wraps all tracker configuration violations.
	ErrInvalidConfig = errors.New("tracker: invalid config")
	// ErrStopped is returned when operating on a stopped tracker.
	ErrStopped = errors.New("tracker: stopped")
)

var decOne = decimal.NewFromInt(1)

// Config holds the per-pair tracking parameters. Markup is a multiplier
// (1.05 means a 5% sell bonus over the starting value).
type Config struct {
	Pair   string
	Units  decimal.Decimal
	Markup decimal.Decimal
	BuyIn  decimal.Decimal
}

// Validate reports the first configuration violation.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Pair) == "" {
		return fmt.Errorf("%w: pair is required", ErrInvalidConfig)
	}
	if !c.Units.IsPositive() {
		return fmt.Errorf("%w: units must be greater than zero", ErrInvalidConfig)
	}
	if !c.Markup.IsPositive() {
		return fmt.Errorf("%w: markup must be greater than zero", ErrInvalidConfig)
	}
	if c.BuyIn.IsNegative() {
		return fmt.Errorf("%w: buy-in threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromPercent builds a Config from the control surface's
// markup-percent form, so 5 becomes the multiplier 1.05.
func ConfigFromPercent(pair string, units, markupPercent, buyIn decimal.Decimal) Config {
	return Config{
		Pair:   pair,
		Units:  units,
		Markup: decOne.Add(markupPercent.Div(decimal.NewFromInt(100))),
		BuyIn:  buyIn,
	}
}

// Options parameterise a tracker beyond its pair config.
type Options struct {
	Config          Config
	DisplayName     string
	BaseSymbol      string
	Interval        time.Duration
	HistoryCapacity int
	FetchTimeout    time.Duration
	AlertCooldown   time.Duration
}

const notifyTimeout = 10 * time.Second

// Tracker follows one pair: it polls the price source on second
// boundaries, maintains the rolling history and session statistics, and
// renders an update whenever the price moves.
type Tracker struct {
	pair     string
	symbol   string
	source   provider.PriceSource
	metadata provider.MetadataSource
	renderer render.Renderer
	notifier alerting.Notifier
	sched    *scheduler.Scheduler
	logger   zerolog.Logger

	fetchTimeout time.Duration
	cooldown     time.Duration

	mu          sync.Mutex
	cfg         Config
	display     string
	ready       render.ReadyPayload
	starting    decimal.Decimal
	current     decimal.Decimal
	high        decimal.Decimal
	low         decimal.Decimal
	lastSeen    decimal.Decimal
	target      decimal.Decimal
	elapsed     int64
	hist        *history.Buffer
	lastPayload render.UpdatePayload
	hasPayload  bool
	initialized bool
	stopped     bool
	cancel      context.CancelFunc

	prevSell       bool
	prevBuy        bool
	lastSellNotify time.Time
	lastBuyNotify  time.Time
}

// New constructs a tracker. The metadata source and notifier are optional.
func New(opts Options, source provider.PriceSource, metadata provider.MetadataSource, renderer render.Renderer, notifier alerting.Notifier, logger zerolog.Logger) *Tracker {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}

	display := opts.DisplayName
	if display == "" {
		display = opts.Config.Pair
	}
	symbol := opts.BaseSymbol
	if symbol == "" {
		symbol = baseFromDisplay(display, opts.Config.Pair)
	}

	componentLogger := logger.With().
		Str("component", "tracker").
		Str("pair", opts.Config.Pair).
		Logger()

	return &Tracker{
		pair:         opts.Config.Pair,
		symbol:       symbol,
		source:       source,
		metadata:     metadata,
		renderer:     renderer,
		notifier:     notifier,
		sched:        scheduler.New(scheduler.Options{Interval: interval}, componentLogger),
		logger:       componentLogger,
		fetchTimeout: fetchTimeout,
		cooldown:     opts.AlertCooldown,
		cfg:          opts.Config,
		display:      display,
		hist:         history.New(opts.HistoryCapacity),
	}
}

// Pair returns the tracked pair identifier.
func (t *Tracker) Pair() string {
	return t.pair
}

// Init performs the first price fetch, seeds the session state, freezes the
// target value and renders the ready payload followed by an initial update.
// A failed fetch aborts initialisation.
func (t *Tracker) Init(ctx context.Context) error {
	price, err := t.fetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("initial fetch for %s: %w", t.pair, err)
	}

	logoURL := t.lookupLogo(ctx)
	now := time.Now()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}

	t.starting = price
	t.current = price
	t.high = price
	t.low = price
	t.lastSeen = price
	t.target = stats.TargetValue(price, t.cfg.Markup, t.cfg.Units)
	t.hist.Push(price)
	t.initialized = true

	t.ready = render.ReadyPayload{
		Pair:        t.pair,
		DisplayName: t.display,
		LogoURL:     logoURL,
		At:          now,
	}
	payload := t.payloadLocked(now)
	t.lastPayload = payload
	t.hasPayload = true
	t.prevSell = payload.SellAlert
	t.prevBuy = payload.BuyAlert

	t.renderer.Ready(t.ready)
	t.renderer.Update(payload)
	t.mu.Unlock()

	t.logger.Info().Str("price", price.String()).Msg("tracker initialised")
	return nil
}

// Run drives the polling loop until the context is cancelled. Init must
// have succeeded first.
func (t *Tracker) Run(ctx context.Context) error {
	t.mu.Lock()
	if !t.initialized {
		t.mu.Unlock()
		return errors.New("tracker: run before init")
	}
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	return t.sched.Run(ctx, t.tick)
}

// tick fetches the current price and folds it into the session state. A
// fetch failure propagates so the scheduler logs it and re-arms with state
// untouched.
func (t *Tracker) tick(ctx context.Context) error {
	price, err := t.fetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", t.pair, err)
	}

	now := time.Now()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}

	t.elapsed++
	t.hist.Push(price)
	t.current = price
	if price.GreaterThan(t.high) {
		t.high = price
	}
	if price.LessThan(t.low) {
		t.low = price
	}

	changed := !price.Equal(t.lastSeen)
	t.lastSeen = price

	var notes []alerting.Notification
	if changed {
		payload := t.payloadLocked(now)
		t.lastPayload = payload
		notes = t.alertEventsLocked(payload, now)
		t.renderer.Update(payload)
	}
	t.mu.Unlock()

	for _, note := range notes {
		t.dispatch(note)
	}
	return nil
}

// Reconfigure swaps the trade parameters and recomputes the target value
// from the current price. History, session extremes and the elapsed counter
// are preserved; an update renders immediately even on an unchanged price.
func (t *Tracker) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Pair != t.pair {
		return fmt.Errorf("%w: pair mismatch (%s != %s)", ErrInvalidConfig, cfg.Pair, t.pair)
	}

	now := time.Now()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	if !t.initialized {
		t.mu.Unlock()
		return errors.New("tracker: reconfigure before init")
	}

	t.cfg = cfg
	t.target = stats.TargetValue(t.current, cfg.Markup, cfg.Units)

	payload := t.payloadLocked(now)
	t.lastPayload = payload
	notes := t.alertEventsLocked(payload, now)
	t.renderer.Update(payload)
	t.mu.Unlock()

	for _, note := range notes {
		t.dispatch(note)
	}

	t.logger.Info().
		Str("units", cfg.Units.String()).
		Str("markup", cfg.Markup.String()).
		Str("buy_in", cfg.BuyIn.String()).
		Msg("tracker reconfigured")
	return nil
}

// Stop marks the tracker stopped and cancels its loop. Fetches already in
// flight are discarded when they complete.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.logger.Info().Msg("tracker stopped")
}

// Snapshot returns the most recent update payload.
func (t *Tracker) Snapshot() (render.UpdatePayload, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPayload, t.hasPayload
}

// Ready returns the initialisation payload.
func (t *Tracker) Ready() render.ReadyPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// History returns a copy of the rolling price window.
func (t *Tracker) History() []decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hist.Values()
}

func (t *Tracker) fetchPrice(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, t.fetchTimeout)
	defer cancel()

	price, err := t.source.FetchPrice(ctx, t.pair)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("price for %s not positive: %s", t.pair, price)
	}
	return price, nil
}

// lookupLogo resolves display metadata best-effort; a failure only costs
// the logo.
func (t *Tracker) lookupLogo(ctx context.Context) string {
	if t.metadata == nil {
		return ""
	}
	meta, err := t.metadata.FetchMetadata(ctx, t.symbol)
	if err != nil {
		t.logger.Debug().Err(err).Str("symbol", t.symbol).Msg("metadata lookup failed")
		return ""
	}
	if meta.FullName != "" {
		t.mu.Lock()
		t.display = fmt.Sprintf("%s (%s)", t.display, meta.FullName)
		t.mu.Unlock()
	}
	return meta.LogoURL
}

// payloadLocked builds the full update payload. Callers hold t.mu.
func (t *Tracker) payloadLocked(now time.Time) render.UpdatePayload {
	change := stats.PercentChange(t.starting, t.current)
	net := stats.PercentChangeNetOfMarkup(t.starting, t.current, t.cfg.Markup)
	change1m := stats.WindowedChange(t.hist, 60, t.current)
	change5m := stats.WindowedChange(t.hist, 300, t.current)
	currentValue := stats.CurrentValue(t.current, t.cfg.Units)

	return render.UpdatePayload{
		Pair:               t.pair,
		Elapsed:            stats.FormatElapsed(t.elapsed),
		ElapsedSeconds:     t.elapsed,
		Price:              t.current.String(),
		ChangeFromStart:    stats.FormatPercent(change),
		NetChangeFromStart: stats.FormatPercent(net),
		Change1m:           stats.FormatPercent(change1m),
		Change5m:           stats.FormatPercent(change5m),
		CurrentValue:       stats.FormatCurrency(currentValue),
		TargetValue:        stats.FormatCurrency(t.target),
		SessionLow:         t.low.String(),
		SessionHigh:        t.high.String(),
		SellAlert:          stats.SellAlert(currentValue, t.target),
		BuyAlert:           stats.BuyAlert(currentValue, t.cfg.BuyIn),
		At:                 now,
	}
}

// alertEventsLocked detects false-to-true flag transitions and returns the
// notifications to dispatch, honoring the per-kind cooldown. Callers hold
// t.mu.
func (t *Tracker) alertEventsLocked(p render.UpdatePayload, now time.Time) []alerting.Notification {
	var notes []alerting.Notification

	currentValue := stats.CurrentValue(t.current, t.cfg.Units)

	if p.SellAlert && !t.prevSell && t.cooldownPassed(t.lastSellNotify, now) {
		notes = append(notes, alerting.Notification{
			ID:           uuid.New(),
			Pair:         t.pair,
			DisplayName:  t.display,
			Kind:         alerting.KindSellTarget,
			Price:        t.current,
			CurrentValue: currentValue,
			Threshold:    t.target,
			At:           now,
		})
		t.lastSellNotify = now
	}
	if p.BuyAlert && !t.prevBuy && t.cooldownPassed(t.lastBuyNotify, now) {
		notes = append(notes, alerting.Notification{
			ID:           uuid.New(),
			Pair:         t.pair,
			DisplayName:  t.display,
			Kind:         alerting.KindBuyIn,
			Price:        t.current,
			CurrentValue: currentValue,
			Threshold:    t.cfg.BuyIn,
			At:           now,
		})
		t.lastBuyNotify = now
	}

	t.prevSell = p.SellAlert
	t.prevBuy = p.BuyAlert
	return notes
}

func (t *Tracker) cooldownPassed(last time.Time, now time.Time) bool {
	if t.cooldown <= 0 {
		return true
	}
	return last.IsZero() || now.Sub(last) >= t.cooldown
}

// dispatch pushes a notification without blocking the tick loop.
func (t *Tracker) dispatch(note alerting.Notification) {
	if t.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := t.notifier.Notify(ctx, note); err != nil {
			t.logger.Error().Err(err).Str("kind", string(note.Kind)).Msg("failed to dispatch alert")
		}
	}()
}

func baseFromDisplay(display, fallback string) string {
	if i := strings.Index(display, "/"); i > 0 {
		return display[:i]
	}
	return fallback
}
