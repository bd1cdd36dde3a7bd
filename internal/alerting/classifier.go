package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlos-olivera/data-bs-cripto/internal/analysis"
	"github.com/carlos-olivera/data-bs-cripto/internal/storage"
)

// fieldProfile maps a tracked field to its human label and directional
// recommendations. An upward move in a rate the caller pays to acquire the
// asset is a disposal opportunity, and vice versa.
type fieldProfile struct {
	Label  string
	OnUp   string
	OnDown string
}

// fieldProfiles is deliberately a lookup table, not derived logic: new fields
// are added here without touching the analyzer. Fields without a
// recommendation still alert, with the text omitted.
var fieldProfiles = map[string]fieldProfile{
	storage.FieldBuyRate: {
		Label:  "USDT/BOB",
		OnUp:   "Possible opportunity to SELL USDT (high price)",
		OnDown: "Possible opportunity to BUY USDT (low price)",
	},
	storage.FieldSellRate: {
		Label: "BOB/USDT",
	},
	storage.FieldReferenceRate: {
		Label:  "BTC/USD",
		OnUp:   "Possible opportunity to SELL BTC (high price)",
		OnDown: "Possible opportunity to BUY BTC (low price)",
	},
}

// Classifier turns significant verdicts into alerts and hands them to the
// notifier.
type Classifier struct {
	notifier Notifier
	channels []string
	logger   zerolog.Logger
}

// NewClassifier constructs a verdict classifier. notifier may be nil, in
// which case classification still happens but nothing is dispatched.
func NewClassifier(notifier Notifier, channels []string, logger zerolog.Logger) *Classifier {
	return &Classifier{
		notifier: notifier,
		channels: channels,
		logger:   logger.With().Str("component", "alert_classifier").Logger(),
	}
}

// ClassifyAndDispatch maps a verdict onto an alert and sends it; the returned
// bool reports whether an alert was produced. A flat regression direction does
// not suppress a significant verdict: with every sample inside a single
// hourly window there is no slope to fit, so the alert direction falls back
// to the sign of the end-to-end variation. Notification failures are logged,
// never retried and never re-raised: alerting is best-effort, the underlying
// trend re-evaluates on the next scheduled cycle regardless.
func (c *Classifier) ClassifyAndDispatch(ctx context.Context, field string, at time.Time, verdict analysis.Verdict, thresholdPct float64) (Alert, bool) {
	if !verdict.Significant {
		return Alert{}, false
	}

	direction := verdict.Direction
	if direction == analysis.DirectionFlat {
		switch {
		case verdict.TotalVariationPct > 0:
			direction = analysis.DirectionUp
		case verdict.TotalVariationPct < 0:
			direction = analysis.DirectionDown
		default:
			return Alert{}, false
		}
	}

	profile, ok := fieldProfiles[field]
	if !ok {
		c.logger.Warn().Str("field", field).Msg("significant verdict for unmapped field, skipping alert")
		return Alert{}, false
	}

	recommendation := profile.OnUp
	if direction == analysis.DirectionDown {
		recommendation = profile.OnDown
	}

	alert := Alert{
		Time:         at,
		Field:        field,
		AssetLabel:   profile.Label,
		Direction:    direction,
		VariationPct: verdict.TotalVariationPct,
		ThresholdPct: thresholdPct,
		Summary: fmt.Sprintf("Initial value: %.2f\nFinal value: %.2f\nVolatility: %.2f",
			verdict.FirstValue, verdict.LastValue, verdict.AvgVolatility),
		Recommendation: recommendation,
		Channels:       c.channels,
	}

	if c.notifier == nil {
		c.logger.Warn().Str("field", field).Msg("no notifier configured, alert not dispatched")
		return alert, true
	}

	if err := c.notifier.SendAlert(ctx, alert); err != nil {
		c.logger.Error().Err(err).Str("field", field).Msg("failed to dispatch alert")
	}

	return alert, true
}
