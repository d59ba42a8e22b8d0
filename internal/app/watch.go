package app

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"pairwatch/internal/logging"
	"pairwatch/internal/render"
	"pairwatch/internal/tracker"
)

// WatchOptions configure the foreground watch command. Zero numeric fields
// fall back to tracker.defaults from the config.
type WatchOptions struct {
	Pair          string
	Units         float64
	MarkupPercent float64
	BuyIn         float64
	Duration      time.Duration
	PNGPath       string
	CSVPath       string
}

// Watch follows a single pair in the foreground, rendering every update to
// the console until the duration elapses or a signal arrives. On exit the
// final rolling window can be dumped as a PNG chart and/or CSV file.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if opts.Duration > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, opts.Duration)
		defer timeoutCancel()
	}

	store := a.buildCache(ctx)
	defer store.Close()

	source, catalog, metadata, err := a.buildProviders(store)
	if err != nil {
		return err
	}

	cfg := a.trackerConfig(opts.Pair, opts.Units, opts.MarkupPercent, opts.BuyIn)

	renderer := render.NewLog(logging.Console(a.Config.Logging))
	registry := tracker.NewRegistry(a.registryOptions(), source, catalog, metadata, renderer, a.newNotifier(), a.Logger)

	if _, err := registry.CreateOrReconfigure(ctx, cfg); err != nil {
		registry.Close()
		return err
	}

	<-ctx.Done()

	var samples []decimal.Decimal
	title := cfg.Pair
	if tr, ok := registry.Get(cfg.Pair); ok {
		samples = tr.History()
		if name := tr.Ready().DisplayName; name != "" {
			title = name
		}
	}
	registry.Close()

	if opts.PNGPath == "" && opts.CSVPath == "" {
		return nil
	}

	end := time.Now()
	interval := a.Config.Tracker.Interval

	if opts.PNGPath != "" {
		if err := writeChartFile(opts.PNGPath, title, samples, interval, end); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Int("samples", len(samples)).Msg("chart written")
	}

	if opts.CSVPath != "" {
		if err := writeCSVFile(opts.CSVPath, cfg.Pair, samples, interval, end); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("samples", len(samples)).Msg("csv written")
	}

	return nil
}

func writeChartFile(path, title string, samples []decimal.Decimal, interval time.Duration, end time.Time) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return render.WritePriceChartPNG(file, title, samples, interval, end)
}

func writeCSVFile(path, pair string, samples []decimal.Decimal, interval time.Duration, end time.Time) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return render.WritePriceCSV(file, pair, samples, interval, end)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
