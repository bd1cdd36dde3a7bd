package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/carlos-olivera/data-bs-cripto/internal/analysis"
	"github.com/carlos-olivera/data-bs-cripto/internal/storage"
)

type recordingNotifier struct {
	alerts []Alert
	err    error
}

func (r *recordingNotifier) SendAlert(ctx context.Context, alert Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

var at = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestClassifierSkipsInsignificantVerdicts(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewClassifier(notifier, []string{"telegram"}, testLogger())

	verdict := analysis.Verdict{Significant: false, Direction: analysis.DirectionUp}
	if _, produced := c.ClassifyAndDispatch(context.Background(), storage.FieldBuyRate, at, verdict, 2.0); produced {
		t.Fatal("insignificant verdict must not produce an alert")
	}
	if len(notifier.alerts) != 0 {
		t.Fatal("nothing should have been dispatched")
	}
}

func TestClassifierSingleWindowFallsBackToVariationSign(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewClassifier(notifier, []string{"telegram"}, testLogger())

	// all samples inside one hourly window leave the regression flat, but a
	// 3% end-to-end move past a 2% threshold must still alert
	verdict := analysis.Verdict{
		Significant:       true,
		Direction:         analysis.DirectionFlat,
		FirstValue:        6.90,
		LastValue:         7.11,
		TotalVariationPct: 3.0,
	}

	alert, produced := c.ClassifyAndDispatch(context.Background(), storage.FieldBuyRate, at, verdict, 2.0)
	if !produced {
		t.Fatal("单窗口显著变动不得被丢弃")
	}
	if alert.Direction != analysis.DirectionUp {
		t.Fatalf("正向变动应判为上行, 实际 %s", alert.Direction)
	}
	if !strings.Contains(alert.Recommendation, "SELL USDT") {
		t.Fatalf("upward fallback must carry the upward recommendation: %q", alert.Recommendation)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(notifier.alerts))
	}

	verdict.TotalVariationPct = -3.0
	verdict.LastValue = 6.69
	alert, produced = c.ClassifyAndDispatch(context.Background(), storage.FieldBuyRate, at, verdict, 2.0)
	if !produced || alert.Direction != analysis.DirectionDown {
		t.Fatalf("负向变动应判为下行: produced=%v direction=%s", produced, alert.Direction)
	}
}

func TestClassifierFlatWithZeroVariation(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewClassifier(notifier, nil, testLogger())

	verdict := analysis.Verdict{Significant: true, Direction: analysis.DirectionFlat, TotalVariationPct: 0}
	if _, produced := c.ClassifyAndDispatch(context.Background(), storage.FieldBuyRate, at, verdict, 2.0); produced {
		t.Fatal("flat direction with zero variation has no side to alert on")
	}
}

func TestClassifierSkipsUnmappedField(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewClassifier(notifier, nil, testLogger())

	verdict := analysis.Verdict{Significant: true, Direction: analysis.DirectionUp}
	if _, produced := c.ClassifyAndDispatch(context.Background(), "bol2btc", at, verdict, 2.0); produced {
		t.Fatal("unmapped field must not produce an alert")
	}
}

func TestClassifierUpwardBuyRate(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewClassifier(notifier, []string{"telegram"}, testLogger())

	verdict := analysis.Verdict{
		Significant:       true,
		Direction:         analysis.DirectionUp,
		FirstValue:        6.90,
		LastValue:         7.15,
		TotalVariationPct: 3.62,
		AvgVolatility:     0.04,
	}

	alert, produced := c.ClassifyAndDispatch(context.Background(), storage.FieldBuyRate, at, verdict, 2.0)
	if !produced {
		t.Fatal("significant upward verdict must produce an alert")
	}
	if alert.AssetLabel != "USDT/BOB" {
		t.Fatalf("unexpected label: %s", alert.AssetLabel)
	}
	if !strings.Contains(alert.Recommendation, "SELL USDT") {
		t.Fatalf("upward buy rate must recommend selling: %q", alert.Recommendation)
	}
	if alert.ThresholdPct != 2.0 {
		t.Fatalf("threshold must be carried into the alert: %f", alert.ThresholdPct)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(notifier.alerts))
	}
	if !strings.Contains(alert.Summary, "6.90") || !strings.Contains(alert.Summary, "7.15") {
		t.Fatalf("summary must carry first/last values: %q", alert.Summary)
	}
}

func TestClassifierDownwardReference(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewClassifier(notifier, nil, testLogger())

	verdict := analysis.Verdict{
		Significant:       true,
		Direction:         analysis.DirectionDown,
		FirstValue:        68500,
		LastValue:         64250,
		TotalVariationPct: -6.2,
	}

	alert, produced := c.ClassifyAndDispatch(context.Background(), storage.FieldReferenceRate, at, verdict, 5.0)
	if !produced {
		t.Fatal("significant downward verdict must produce an alert")
	}
	if !strings.Contains(alert.Recommendation, "BUY BTC") {
		t.Fatalf("downward reference must recommend buying: %q", alert.Recommendation)
	}
	if !alert.Urgent() {
		t.Fatal("a -6.2% move must be urgent")
	}
}

func TestClassifierSellRateHasNoRecommendation(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewClassifier(notifier, nil, testLogger())

	verdict := analysis.Verdict{Significant: true, Direction: analysis.DirectionUp, TotalVariationPct: 2.4}
	alert, produced := c.ClassifyAndDispatch(context.Background(), storage.FieldSellRate, at, verdict, 2.0)
	if !produced {
		t.Fatal("sell rate still alerts")
	}
	if alert.Recommendation != "" {
		t.Fatalf("sell rate carries no recommendation, got %q", alert.Recommendation)
	}
}

func TestClassifierNotifierFailureIsSwallowed(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	c := NewClassifier(notifier, nil, testLogger())

	verdict := analysis.Verdict{Significant: true, Direction: analysis.DirectionUp, TotalVariationPct: 3.0}
	if _, produced := c.ClassifyAndDispatch(context.Background(), storage.FieldBuyRate, at, verdict, 2.0); !produced {
		t.Fatal("delivery failure must not suppress the alert result")
	}
}
