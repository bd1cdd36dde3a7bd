package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlos-olivera/data-bs-cripto/internal/alerting"
	"github.com/carlos-olivera/data-bs-cripto/internal/config"
	"github.com/carlos-olivera/data-bs-cripto/internal/fetcher"
	"github.com/carlos-olivera/data-bs-cripto/internal/sampler"
	"github.com/carlos-olivera/data-bs-cripto/internal/scheduler"
	"github.com/carlos-olivera/data-bs-cripto/internal/service"
	"github.com/carlos-olivera/data-bs-cripto/internal/storage"
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

func (a *App) newFetchers() (fetcher.OfferFetcher, fetcher.ReferencePriceFetcher) {
	offers := fetcher.NewBinance(fetcher.BinanceOptions{
		BaseURL:      a.Config.Binance.BaseURL,
		Fiat:         a.Config.Binance.Fiat,
		Asset:        a.Config.Binance.Asset,
		PageSize:     a.Config.Binance.PageSize,
		VerifiedOnly: a.Config.Binance.VerifiedOnly,
		MaxRetries:   a.Config.Binance.MaxRetries,
		RetryDelay:   a.Config.Binance.RetryDelay,
		Timeout:      a.Config.Binance.RequestTimeout,
		UserAgent:    a.Config.Binance.UserAgent,
	}, a.Logger)

	reference := fetcher.NewCoingecko(fetcher.CoingeckoOptions{
		BaseURL:    a.Config.Coingecko.BaseURL,
		CoinID:     a.Config.Coingecko.CoinID,
		VsCurrency: a.Config.Coingecko.VsCurrency,
		Timeout:    a.Config.Coingecko.RequestTimeout,
		UserAgent:  a.Config.Coingecko.UserAgent,
	}, a.Logger)

	return offers, reference
}

func (a *App) newBuilder() *sampler.Builder {
	offers, reference := a.newFetchers()
	return sampler.NewBuilder(offers, reference, a.Config.Analysis.OffersToAverage, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newClassifier() *alerting.Classifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	return alerting.NewClassifier(a.newNotifier(), a.Config.Alerting.Channels, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store) *service.Service {
	var sampleStore storage.SampleStore
	var alertStore storage.AlertStore
	if store != nil {
		sampleStore = store
		alertStore = store
	}
	return service.New(a.Config, a.newBuilder(), sampleStore, alertStore, a.newClassifier(), a.Logger)
}

// Run executes the long-running monitoring service: one scheduler drives
// acquisition, a second drives trend analysis.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence and analysis disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.newService(store)

	sampleSched := scheduler.New(scheduler.Options{
		Name:         "sample_scheduler",
		Interval:     a.Config.Scheduler.SampleInterval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		RunAtStart:   a.Config.Scheduler.RunAtStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().
		Dur("sample_interval", a.Config.Scheduler.SampleInterval).
		Dur("analysis_interval", a.Config.Scheduler.AnalysisInterval).
		Msg("starting monitoring service")

	errCh := make(chan error, 2)
	running := 1
	go func() {
		errCh <- sampleSched.Run(ctx, svc.SampleTick)
	}()

	if store != nil {
		analysisSched := scheduler.New(scheduler.Options{
			Name:         "analysis_scheduler",
			Interval:     a.Config.Scheduler.AnalysisInterval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			RunAtStart:   a.Config.Scheduler.RunAtStart,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)
		running++
		go func() {
			errCh <- analysisSched.Run(ctx, func(ctx context.Context, at time.Time) error {
				return svc.AnalyzeTick(ctx, at, true)
			})
		}()
	}

	// first scheduler to stop brings the rest down; without a store only the
	// sample scheduler is running and the service keeps sampling unpersisted
	err = <-errCh
	cancel()
	for i := 1; i < running; i++ {
		if next := <-errCh; err == nil {
			err = next
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// AnalyzeOptions configure a one-shot analysis pass.
type AnalyzeOptions struct {
	Notify bool
}
