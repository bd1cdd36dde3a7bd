package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/carlos-olivera/data-bs-cripto/internal/storage"
)

type sampleLister interface {
	ListRecentSamples(ctx context.Context, limit int) ([]storage.PriceSample, error)
}

type alertLister interface {
	ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error)
}

// Show prints recent samples, or recent alerts when requested.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit)
	}
	return a.showSamples(ctx, store, opts.Limit)
}

func (a *App) showSamples(ctx context.Context, store sampleLister, limit int) error {
	samples, err := store.ListRecentSamples(ctx, limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Datetime\tBOL→USDT\tUSDT→BOL\tBTC/USD\tBOL→BTC")

	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%s\t%.2f\t%.2f\t%.2f\t%.8f\n",
			sample.Datetime(),
			sample.BuyRate,
			sample.SellRate,
			sample.BTCUSD,
			sample.CrossRate,
		)
	}

	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store alertLister, limit int) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tField\tDirection\tVariation%\tThreshold%\tChannels")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Field,
			alert.Direction,
			alert.VariationPct,
			alert.ThresholdPct,
			strings.Join(alert.Channels, ","),
		)
	}

	return writer.Flush()
}
