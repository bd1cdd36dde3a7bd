package storage

import (
	"time"

	"github.com/carlos-olivera/data-bs-cripto/internal/analysis"
)

// TimeLayout is the persisted `datetime` format. The string form is the wire
// contract other tooling reads, and it sorts lexicographically in
// chronological order, so range queries run on the column directly.
const TimeLayout = "2006-01-02 15:04:05"

// Persisted field names. These are part of the wire contract and must not be
// renamed.
const (
	FieldBuyRate       = "bol2usdt"
	FieldSellRate      = "usdt2bol"
	FieldReferenceRate = "btc2usd"
	FieldCrossRate     = "bol2btc"
)

// PriceSample is one complete acquisition-cycle observation. Samples are
// immutable and append-only; a sample is only ever created with every field
// present.
type PriceSample struct {
	SampledAt time.Time
	BTCUSD    float64
	BuyRate   float64
	SellRate  float64
	CrossRate float64
	CreatedAt time.Time
}

// Datetime renders the persisted timestamp in the wire format.
func (s PriceSample) Datetime() string {
	return s.SampledAt.Format(TimeLayout)
}

// AnalysisSample converts the record into the analyzer's schema.
func (s PriceSample) AnalysisSample() analysis.Sample {
	return analysis.Sample{
		Time: s.SampledAt,
		Fields: map[string]float64{
			FieldBuyRate:       s.BuyRate,
			FieldSellRate:      s.SellRate,
			FieldReferenceRate: s.BTCUSD,
			FieldCrossRate:     s.CrossRate,
		},
	}
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID           int64
	SampleTS     time.Time
	Field        string
	Direction    string
	VariationPct float64
	ThresholdPct float64
	Channels     []string
	CreatedAt    time.Time
}
