// Package analyzer derives summary statistics from a progress series.
package analyzer

import (
	"github.com/wonny/surveyprogress/internal/contracts"
)

// TrendDirection velocity trend classification
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// trendEpsilon absorbs float noise when comparing half-window means
const trendEpsilon = 1e-9

// Summary statistics of a series
type Summary struct {
	Mean        float64
	StdDev      float64
	Min         float64
	Max         float64
	Count       int
	ActiveDays  int // daily_points > 0
	WorkdayMean float64
	WeekendMean float64
	TotalPoints float64
	SpanDays    int
}

// Trend early vs late half-window comparison
type Trend struct {
	Direction  TrendDirection
	EarlyMean  float64
	LateMean   float64
	Difference float64
	Window     int
}

// Analyzer read-only statistics over one series
// ⭐ SSOT: strategies read the series only through the analyzer
type Analyzer struct {
	series  contracts.Series
	summary Summary
}

// New creates an analyzer; the series is not copied and must not be mutated
func New(series contracts.Series) *Analyzer {
	a := &Analyzer{series: series}
	a.summary = a.computeSummary()
	return a
}

// Series returns the underlying series
func (a *Analyzer) Series() contracts.Series {
	return a.series
}

// Summary returns summary statistics; zero values for an empty series
func (a *Analyzer) Summary() Summary {
	return a.summary
}

func (a *Analyzer) computeSummary() Summary {
	if len(a.series) == 0 {
		return Summary{}
	}

	values := a.series.DailyPoints()
	lo, hi := MinMax(values)

	var workday, weekend []float64
	active := 0
	for _, r := range a.series {
		if r.DailyPoints > 0 {
			active++
		}
		if r.IsWorkday {
			workday = append(workday, r.DailyPoints)
		} else {
			weekend = append(weekend, r.DailyPoints)
		}
	}

	return Summary{
		Mean:        Mean(values),
		StdDev:      StdDev(values),
		Min:         lo,
		Max:         hi,
		Count:       len(values),
		ActiveDays:  active,
		WorkdayMean: Mean(workday),
		WeekendMean: Mean(weekend),
		TotalPoints: a.series.Total(),
		SpanDays:    a.series.SpanDays(),
	}
}

// RollingAverage mean of the trailing w records at each index
// (fewer records at the start of the series)
func (a *Analyzer) RollingAverage(w int) []float64 {
	if w <= 0 || len(a.series) == 0 {
		return []float64{}
	}

	values := a.series.DailyPoints()
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= w {
			sum -= values[i-w]
		}
		n := i + 1
		if n > w {
			n = w
		}
		out[i] = sum / float64(n)
	}
	return out
}

// RollingAverages rolling averages for several windows (e.g. 7, 14)
func (a *Analyzer) RollingAverages(windows ...int) map[int][]float64 {
	out := make(map[int][]float64, len(windows))
	for _, w := range windows {
		out[w] = a.RollingAverage(w)
	}
	return out
}

// VelocityTrend compares the early and late halves of the trailing 2w records
func (a *Analyzer) VelocityTrend(w int) Trend {
	trend := Trend{Direction: TrendStable, Window: w}
	if w <= 0 || len(a.series) < 2 {
		return trend
	}

	tail := a.series.Tail(2 * w).DailyPoints()
	split := len(tail) / 2
	if len(tail) >= 2*w {
		split = w
	}

	trend.EarlyMean = Mean(tail[:split])
	trend.LateMean = Mean(tail[split:])
	trend.Difference = trend.LateMean - trend.EarlyMean

	switch {
	case trend.Difference > trendEpsilon:
		trend.Direction = TrendIncreasing
	case trend.Difference < -trendEpsilon:
		trend.Direction = TrendDecreasing
	}
	return trend
}

// Quality data-quality signals for reliability scoring
func (a *Analyzer) Quality() contracts.QualitySignals {
	s := a.summary
	signals := contracts.QualitySignals{TotalDays: s.Count}
	if s.Count == 0 {
		signals.Tier = contracts.QualityInsufficient
		return signals
	}

	signals.ActivityRate = float64(s.ActiveDays) / float64(s.Count)
	switch {
	case s.Count >= 30 && signals.ActivityRate >= 0.7:
		signals.Tier = contracts.QualityExcellent
	case s.Count >= 14 && signals.ActivityRate >= 0.5:
		signals.Tier = contracts.QualityGood
	case s.Count >= 7 && signals.ActivityRate >= 0.3:
		signals.Tier = contracts.QualityFair
	default:
		signals.Tier = contracts.QualityPoor
	}
	return signals
}

// Pools workday and weekend empirical samples from the trailing n records
func (a *Analyzer) Pools(n int) (workday, weekend []float64) {
	for _, r := range a.series.Tail(n) {
		if r.IsWorkday {
			workday = append(workday, r.DailyPoints)
		} else {
			weekend = append(weekend, r.DailyPoints)
		}
	}
	return workday, weekend
}

// ToSummary converts to the contract snapshot
func (a *Analyzer) ToSummary(trendWindow int) contracts.SeriesSummary {
	s := a.summary
	return contracts.SeriesSummary{
		Mean:        s.Mean,
		StdDev:      s.StdDev,
		Min:         s.Min,
		Max:         s.Max,
		Count:       s.Count,
		ActiveDays:  s.ActiveDays,
		WorkdayMean: s.WorkdayMean,
		Trend:       string(a.VelocityTrend(trendWindow).Direction),
		Quality:     a.Quality().Tier,
	}
}
