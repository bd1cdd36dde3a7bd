package app

import (
	"context"
	"time"
)

// SampleOnce runs a single acquisition cycle immediately.
func (a *App) SampleOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.newService(store)
	return svc.SampleTick(ctx, time.Now().UTC())
}

// AnalyzeOnce runs a single trend-analysis pass over the trailing lookback
// window.
func (a *App) AnalyzeOnce(ctx context.Context, opts AnalyzeOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.newService(store)
	return svc.AnalyzeTick(ctx, time.Now().UTC(), opts.Notify)
}
