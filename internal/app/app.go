package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pairwatch/internal/alerting"
	"pairwatch/internal/cache"
	"pairwatch/internal/config"
	"pairwatch/internal/httpapi"
	"pairwatch/internal/provider"
	"pairwatch/internal/render"
	"pairwatch/internal/tracker"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// buildCache prefers redis and falls back to the in-process cache when no
// address is configured or the server is unreachable.
func (a *App) buildCache(ctx context.Context) cache.Store {
	addr := a.Config.Cache.Redis.Addr
	if addr == "" {
		return cache.NewMemory()
	}

	store, err := cache.NewRedis(ctx, addr, a.Config.Cache.Redis.Password, a.Config.Cache.Redis.DB)
	if err != nil {
		a.Logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable; using in-memory cache")
		return cache.NewMemory()
	}
	return store
}

// buildProviders assembles the configured price source plus the pair catalog
// and optional metadata source, both wrapped with the cache.
func (a *App) buildProviders(store cache.Store) (provider.PriceSource, provider.PairCatalog, provider.MetadataSource, error) {
	kraken := provider.NewKraken(provider.KrakenOptions{
		BaseURL:   a.Config.Kraken.BaseURL,
		Timeout:   a.Config.Kraken.RequestTimeout,
		UserAgent: a.Config.Kraken.UserAgent,
	}, a.Logger)

	var source provider.PriceSource
	switch a.Config.PriceSource {
	case config.SourceKraken, "":
		source = kraken
	case config.SourceOnchain:
		source = provider.NewChainlink(provider.ChainlinkOptions{
			RPCURL:  a.Config.Onchain.RPCURL,
			Feeds:   a.Config.Onchain.Feeds,
			Timeout: a.Config.Onchain.RequestTimeout,
		}, a.Logger)
	default:
		return nil, nil, nil, fmt.Errorf("unknown price_source %q", a.Config.PriceSource)
	}

	catalog := provider.NewCachedCatalog(kraken, store, a.Config.Cache.PairsTTL, a.Logger)

	var metadata provider.MetadataSource
	if a.Config.Metadata.Enabled {
		inner := provider.NewCryptoCompare(provider.CryptoCompareOptions{
			BaseURL:  a.Config.Metadata.BaseURL,
			ImageURL: a.Config.Metadata.ImageBaseURL,
			APIKey:   a.Config.Metadata.APIKey,
			Timeout:  a.Config.Metadata.RequestTimeout,
		}, a.Logger)
		metadata = provider.NewCachedMetadata(inner, store, a.Config.Metadata.TTL, a.Logger)
	}

	return source, catalog, metadata, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		tg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) registryOptions() tracker.RegistryOptions {
	return tracker.RegistryOptions{
		Interval:        a.Config.Tracker.Interval,
		HistoryCapacity: a.Config.Tracker.HistoryCapacity,
		FetchTimeout:    a.Config.Tracker.FetchTimeout,
		AlertCooldown:   a.Config.Alerting.Cooldown,
	}
}

// trackerConfig builds a pair config, filling zero numeric fields from
// tracker.defaults. A zero value therefore always means "use the default".
func (a *App) trackerConfig(pair string, units, markupPercent, buyIn float64) tracker.Config {
	defaults := a.Config.Tracker.Defaults
	if units == 0 {
		units = defaults.Units
	}
	if markupPercent == 0 {
		markupPercent = defaults.MarkupPercent
	}
	if buyIn == 0 {
		buyIn = defaults.BuyInThreshold
	}
	return tracker.ConfigFromPercent(
		pair,
		decimal.NewFromFloat(units),
		decimal.NewFromFloat(markupPercent),
		decimal.NewFromFloat(buyIn),
	)
}

func (a *App) serverDefaults() httpapi.Defaults {
	defaults := a.Config.Tracker.Defaults
	return httpapi.Defaults{
		Units:          decimal.NewFromFloat(defaults.Units),
		MarkupPercent:  decimal.NewFromFloat(defaults.MarkupPercent),
		BuyInThreshold: decimal.NewFromFloat(defaults.BuyInThreshold),
	}
}

// Run executes the long-running tracking service: boot trackers from the
// config, the HTTP control surface and the live stream, until a signal
// arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := a.buildCache(ctx)
	defer store.Close()

	source, catalog, metadata, err := a.buildProviders(store)
	if err != nil {
		return err
	}

	snapshots := render.NewSnapshots()
	broadcaster := render.NewBroadcaster(a.Logger)
	renderer := render.Multi{render.NewLog(a.Logger), snapshots, broadcaster}

	registry := tracker.NewRegistry(a.registryOptions(), source, catalog, metadata, renderer, a.newNotifier(), a.Logger)
	defer registry.Close()

	for _, boot := range a.Config.Trackers {
		cfg := a.trackerConfig(boot.Pair, boot.Units, boot.MarkupPercent, boot.BuyInThreshold)
		if _, err := registry.CreateOrReconfigure(ctx, cfg); err != nil {
			a.Logger.Error().Err(err).Str("pair", boot.Pair).Msg("boot tracker failed to start")
		}
	}

	server := httpapi.NewServer(httpapi.Options{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		TrackerInterval: a.Config.Tracker.Interval,
		Defaults:        a.serverDefaults(),
	}, registry, snapshots, broadcaster, catalog, a.Logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	a.Logger.Info().Int("boot_trackers", registry.Len()).Msg("service started")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown failed")
	}

	a.Logger.Info().Msg("service stopped")
	return nil
}
