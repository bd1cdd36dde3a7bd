package analysis

import (
	"math"
	"sort"
	"time"
)

// Direction labels the fitted trend of a series.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// Sample is one timestamped observation of the tracked rates. Samples are
// complete by construction: the builder never persists a partial one.
type Sample struct {
	Time   time.Time
	Fields map[string]float64
}

// WindowStat holds descriptive statistics for one fixed 1-hour bucket.
// Windows are ephemeral and recomputed on every analysis run.
type WindowStat struct {
	Start  time.Time
	Mean   float64
	Stddev float64
	Count  int
	Min    float64
	Max    float64
}

// Verdict is the outcome of one (field, analysis-run) pair.
type Verdict struct {
	Significant                bool
	Reason                     string
	FirstValue                 float64
	LastValue                  float64
	TotalVariationPct          float64
	Direction                  Direction
	Slope                      float64
	AvgVolatility              float64
	MaxInterwindowVariationPct float64
	Windows                    []WindowStat
}

const (
	ReasonInsufficientData = "insufficient data"
	ReasonMissingField     = "missing field"
)

// PercentageVariation returns the percentage change from initial to final.
// A zero initial value yields 0 by policy, not an error: downstream alert
// thresholds were tuned against this behaviour.
func PercentageVariation(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial * 100
}

// Analyze buckets an ordered sample series into 1-hour windows, fits a
// least-squares line over the window means, and classifies whether the series
// exhibits a significant move against thresholdPct. A series is significant
// when either the end-to-end variation or the sharpest single-window jump
// meets the threshold; a spike that later partially reverses must still
// trigger.
//
// Fewer than 2 samples, or a field absent from the sample schema, yields a
// non-significant verdict rather than an error: both are normal states
// during warm-up.
func Analyze(samples []Sample, field string, thresholdPct float64) Verdict {
	if len(samples) < 2 {
		return Verdict{Direction: DirectionFlat, Reason: ReasonInsufficientData}
	}
	if _, ok := samples[0].Fields[field]; !ok {
		return Verdict{Direction: DirectionFlat, Reason: ReasonMissingField}
	}

	first := samples[0].Fields[field]
	last := samples[len(samples)-1].Fields[field]
	totalVariation := PercentageVariation(first, last)

	windows := hourlyWindows(samples, field)

	slope := 0.0
	direction := DirectionFlat
	if len(windows) > 1 {
		means := make([]float64, len(windows))
		for i, w := range windows {
			means[i] = w.Mean
		}
		slope = fitSlope(means)
		if slope > 0 {
			direction = DirectionUp
		} else {
			direction = DirectionDown
		}
	}

	volatilitySum := 0.0
	for _, w := range windows {
		volatilitySum += w.Stddev
	}
	avgVolatility := volatilitySum / float64(len(windows))

	maxInterwindow := 0.0
	for i := 1; i < len(windows); i++ {
		variation := math.Abs(PercentageVariation(windows[i-1].Mean, windows[i].Mean))
		if variation > maxInterwindow {
			maxInterwindow = variation
		}
	}

	significant := math.Abs(totalVariation) >= thresholdPct || maxInterwindow >= thresholdPct

	return Verdict{
		Significant:                significant,
		FirstValue:                 first,
		LastValue:                  last,
		TotalVariationPct:          totalVariation,
		Direction:                  direction,
		Slope:                      slope,
		AvgVolatility:              avgVolatility,
		MaxInterwindowVariationPct: maxInterwindow,
		Windows:                    windows,
	}
}

// hourlyWindows partitions samples by the floor of each timestamp to the hour
// and computes per-bucket descriptive statistics, chronologically ordered.
func hourlyWindows(samples []Sample, field string) []WindowStat {
	buckets := make(map[time.Time][]float64)
	for _, sample := range samples {
		hour := sample.Time.Truncate(time.Hour)
		buckets[hour] = append(buckets[hour], sample.Fields[field])
	}

	starts := make([]time.Time, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	windows := make([]WindowStat, 0, len(starts))
	for _, start := range starts {
		values := buckets[start]

		sum := 0.0
		min := values[0]
		max := values[0]
		for _, v := range values {
			sum += v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		mean := sum / float64(len(values))

		// sample standard deviation; a single-observation window has no
		// observed spread and contributes 0
		stddev := 0.0
		if len(values) > 1 {
			sq := 0.0
			for _, v := range values {
				sq += (v - mean) * (v - mean)
			}
			stddev = math.Sqrt(sq / float64(len(values)-1))
		}

		windows = append(windows, WindowStat{
			Start:  start,
			Mean:   mean,
			Stddev: stddev,
			Count:  len(values),
			Min:    min,
			Max:    max,
		})
	}

	return windows
}

// fitSlope computes the closed-form ordinary-least-squares slope over
// (i, means[i]) pairs with i = 0..n-1.
func fitSlope(means []float64) float64 {
	n := float64(len(means))

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range means {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
