package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/alerting"
	"pairwatch/internal/provider"
	"pairwatch/internal/render"
)

// ErrNotTracked is returned for operations on an unknown pair.
var ErrNotTracked = errors.New("tracker: pair not tracked")

// RegistryOptions carry the per-tracker settings applied to every pair.
type RegistryOptions struct {
	Interval        time.Duration
	HistoryCapacity int
	FetchTimeout    time.Duration
	AlertCooldown   time.Duration
}

type entry struct {
	tracker *Tracker
	cancel  context.CancelFunc
	done    chan struct{}
}

// Registry owns the set of live trackers, one per pair. The catalog,
// metadata source and notifier are optional.
type Registry struct {
	opts     RegistryOptions
	source   provider.PriceSource
	catalog  provider.PairCatalog
	metadata provider.MetadataSource
	renderer render.Renderer
	notifier alerting.Notifier
	logger   zerolog.Logger

	runCtx    context.Context
	cancelRun context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry constructs an empty registry. Tracker loops run under the
// registry's own context so request-scoped contexts cannot kill them.
func NewRegistry(opts RegistryOptions, source provider.PriceSource, catalog provider.PairCatalog, metadata provider.MetadataSource, renderer render.Renderer, notifier alerting.Notifier, logger zerolog.Logger) *Registry {
	runCtx, cancelRun := context.WithCancel(context.Background())
	return &Registry{
		opts:      opts,
		source:    source,
		catalog:   catalog,
		metadata:  metadata,
		renderer:  renderer,
		notifier:  notifier,
		logger:    logger.With().Str("component", "registry").Logger(),
		runCtx:    runCtx,
		cancelRun: cancelRun,
		entries:   make(map[string]*entry),
	}
}

// CreateOrReconfigure validates cfg, then either reconfigures the existing
// tracker for the pair or creates one. Creation initialises synchronously
// (a failed first fetch registers nothing) before starting the poll loop.
// The returned bool reports whether a new tracker was created.
func (r *Registry) CreateOrReconfigure(ctx context.Context, cfg Config) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	if e, ok := r.entries[cfg.Pair]; ok {
		r.mu.Unlock()
		return false, e.tracker.Reconfigure(cfg)
	}
	r.mu.Unlock()

	display, symbol := r.resolvePair(ctx, cfg.Pair)

	tr := New(Options{
		Config:          cfg,
		DisplayName:     display,
		BaseSymbol:      symbol,
		Interval:        r.opts.Interval,
		HistoryCapacity: r.opts.HistoryCapacity,
		FetchTimeout:    r.opts.FetchTimeout,
		AlertCooldown:   r.opts.AlertCooldown,
	}, r.source, r.metadata, r.renderer, r.notifier, r.logger)

	if err := tr.Init(ctx); err != nil {
		return false, err
	}

	r.mu.Lock()
	if existing, ok := r.entries[cfg.Pair]; ok {
		// Another creation won the race while we were initialising.
		r.mu.Unlock()
		tr.Stop()
		return false, existing.tracker.Reconfigure(cfg)
	}
	runCtx, cancel := context.WithCancel(r.runCtx)
	e := &entry{tracker: tr, cancel: cancel, done: make(chan struct{})}
	r.entries[cfg.Pair] = e
	r.mu.Unlock()

	go func() {
		defer close(e.done)
		if err := tr.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Str("pair", cfg.Pair).Msg("tracker loop ended")
		}
	}()

	r.logger.Info().Str("pair", cfg.Pair).Msg("tracker created")
	return true, nil
}

// Get returns the tracker for a pair.
func (r *Registry) Get(pair string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pair]
	if !ok {
		return nil, false
	}
	return e.tracker, true
}

// Pairs returns the tracked pair identifiers, sorted.
func (r *Registry) Pairs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := make([]string, 0, len(r.entries))
	for pair := range r.entries {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

// Len returns the number of live trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Remove stops a pair's tracker and waits for its loop to exit.
func (r *Registry) Remove(pair string) error {
	r.mu.Lock()
	e, ok := r.entries[pair]
	if ok {
		delete(r.entries, pair)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, pair)
	}

	e.tracker.Stop()
	e.cancel()
	<-e.done

	r.logger.Info().Str("pair", pair).Msg("tracker removed")
	return nil
}

// Close stops every tracker and waits for all loops to exit.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.tracker.Stop()
		e.cancel()
	}
	for _, e := range entries {
		<-e.done
	}
	r.cancelRun()
}

// resolvePair looks the pair up in the catalog for its display name and
// base symbol. Lookup failures degrade to the raw identifier.
func (r *Registry) resolvePair(ctx context.Context, pair string) (string, string) {
	if r.catalog == nil {
		return pair, ""
	}

	pairs, err := r.catalog.FetchUSDPairs(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("pair", pair).Msg("pair catalog lookup failed")
		return pair, ""
	}

	for _, p := range pairs {
		if p.ID != pair && p.DisplayName != pair {
			continue
		}
		display := p.DisplayName
		if display == "" {
			display = pair
		}
		return display, baseFromDisplay(display, p.Base)
	}
	return pair, ""
}
