package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlos-olivera/data-bs-cripto/internal/alerting"
	"github.com/carlos-olivera/data-bs-cripto/internal/analysis"
	"github.com/carlos-olivera/data-bs-cripto/internal/config"
	"github.com/carlos-olivera/data-bs-cripto/internal/sampler"
	"github.com/carlos-olivera/data-bs-cripto/internal/storage"
)

// defaultThreshold applies to a tracked field with no configured threshold.
const defaultThreshold = 2.0

// TrackedFields are the analyzed rates, in reporting order. The derived
// cross rate is persisted but not analyzed.
var TrackedFields = []string{
	storage.FieldBuyRate,
	storage.FieldSellRate,
	storage.FieldReferenceRate,
}

// Service orchestrates acquisition, persistence, analysis, and alerting.
type Service struct {
	builder    *sampler.Builder
	store      storage.SampleStore
	alertStore storage.AlertStore
	classifier *alerting.Classifier
	logger     zerolog.Logger

	thresholds map[string]float64
	lookback   time.Duration
	locker     storage.AdvisoryLocker
	lockKey    int64
}

// New constructs the monitoring service.
func New(cfg *config.Config, builder *sampler.Builder, store storage.SampleStore, alertStore storage.AlertStore, classifier *alerting.Classifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		builder:    builder,
		store:      store,
		alertStore: alertStore,
		classifier: classifier,
		logger:     logger.With().Str("component", "service").Logger(),
		thresholds: cfg.Analysis.Thresholds,
		lookback:   cfg.Analysis.Lookback,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// SampleTick 执行单个采集周期：构建完整样本并落库。
func (s *Service) SampleTick(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", at).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	sample, err := s.builder.Build(ctx, at)
	if err != nil {
		// either side exhausting retries discards the whole cycle; nothing
		// partial is persisted
		return fmt.Errorf("build sample: %w", err)
	}

	if s.store == nil {
		s.logger.Warn().Msg("persistence disabled; sample not stored")
		return nil
	}

	if err := s.store.InsertSample(ctx, sample); err != nil {
		s.logger.Error().Err(err).Str("datetime", sample.Datetime()).Msg("failed to persist sample")
		return nil
	}

	s.logger.Info().Str("datetime", sample.Datetime()).Msg("sample recorded")
	return nil
}

// AnalyzeTick runs the trend detector over the trailing lookback window for
// every tracked field. With notify=false verdicts are computed and logged but
// nothing is dispatched.
func (s *Service) AnalyzeTick(ctx context.Context, at time.Time, notify bool) error {
	if s.store == nil {
		return fmt.Errorf("analysis requires storage")
	}

	since := at.Add(-s.lookback)
	records, err := s.store.ListSamplesSince(ctx, since)
	if err != nil {
		return fmt.Errorf("load samples since %s: %w", since.Format(storage.TimeLayout), err)
	}

	samples := make([]analysis.Sample, len(records))
	for i, record := range records {
		samples[i] = record.AnalysisSample()
	}

	s.logger.Info().Int("samples", len(samples)).Dur("lookback", s.lookback).Msg("starting trend analysis")

	for _, field := range TrackedFields {
		threshold, ok := s.thresholds[field]
		if !ok {
			threshold = defaultThreshold
		}

		verdict := analysis.Analyze(samples, field, threshold)

		event := s.logger.Info()
		if verdict.Significant {
			event = s.logger.Warn()
		}
		event.Str("field", field).
			Bool("significant", verdict.Significant).
			Str("direction", string(verdict.Direction)).
			Float64("total_variation_pct", verdict.TotalVariationPct).
			Float64("slope", verdict.Slope).
			Float64("avg_volatility", verdict.AvgVolatility).
			Float64("max_interwindow_pct", verdict.MaxInterwindowVariationPct).
			Int("windows", len(verdict.Windows)).
			Str("reason", verdict.Reason).
			Msg("trend verdict")

		if !notify || s.classifier == nil {
			continue
		}

		alert, produced := s.classifier.ClassifyAndDispatch(ctx, field, at, verdict, threshold)
		if !produced {
			continue
		}

		if s.alertStore != nil {
			record := storage.AlertRecord{
				SampleTS:     at,
				Field:        field,
				Direction:    string(alert.Direction),
				VariationPct: alert.VariationPct,
				ThresholdPct: alert.ThresholdPct,
				Channels:     alert.Channels,
			}
			if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
				s.logger.Error().Err(err).Str("field", field).Msg("failed to persist alert record")
			}
		}
	}

	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
