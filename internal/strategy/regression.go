package strategy

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// LinearTrend OLS fit of cumulative points against days from series start
type LinearTrend struct {
	deps Deps
	log  zerolog.Logger
}

// NewLinearTrend creates the strategy
func NewLinearTrend(deps Deps) *LinearTrend {
	return &LinearTrend{deps: deps, log: deps.logger(contracts.MethodLinearTrend)}
}

// Method implements Strategy
func (l *LinearTrend) Method() contracts.Method { return contracts.MethodLinearTrend }

// Fit ordinary least squares result
type Fit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// FitLine fits y = intercept + slope*x; R² is 0 when y has no variance
func FitLine(xs, ys []float64) Fit {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return Fit{}
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var sxx, sxy, syy float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return Fit{Intercept: meanY}
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var r2 float64
	if syy > 0 {
		var ssRes float64
		for i := range xs {
			resid := ys[i] - (intercept + slope*xs[i])
			ssRes += resid * resid
		}
		r2 = math.Max(0, 1-ssRes/syy)
	}

	return Fit{Slope: slope, Intercept: intercept, RSquared: r2}
}

// Estimate implements Strategy
func (l *LinearTrend) Estimate(remaining, confidenceLevel float64) contracts.Estimate {
	series := l.deps.Analyzer.Series()
	minPoints := l.deps.Config.MinRegressionPoints
	if minPoints <= 0 {
		minPoints = DefaultConfig().MinRegressionPoints
	}

	if len(series) < minPoints {
		l.log.Debug().Int("records", len(series)).Int("required", minPoints).Msg("too few records for regression")
		return delegated(NewWeightedAverage(l.deps).Estimate(remaining, confidenceLevel), l.Method(), "insufficient records for regression")
	}

	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	start := series[0].Date
	for i, r := range series {
		xs[i] = float64(contracts.DaysBetween(start, r.Date))
		ys[i] = r.CumulativePoints
	}

	fit := FitLine(xs, ys)
	if fit.Slope <= 0 || math.IsNaN(fit.Slope) || math.IsInf(fit.Slope, 0) {
		return l.observedAverage(remaining, confidenceLevel, fit)
	}

	lastX := xs[len(xs)-1]
	currentPredicted := fit.Intercept + fit.Slope*lastX
	targetX := (currentPredicted + remaining - fit.Intercept) / fit.Slope
	days := targetX - lastX

	confidence := math.Min(fit.RSquared, confidenceLevel)
	uncertainty := days * (1 - fit.RSquared) * 0.5

	e := newEstimate(l.Method(), l.deps.Reference, days, fit.Slope, confidence, uncertainty, contracts.StatusEstimated)
	e.MethodDetails["r_squared"] = fit.RSquared
	e.MethodDetails["slope"] = fit.Slope
	e.MethodDetails["intercept"] = fit.Intercept
	e.MethodDetails["current_predicted"] = currentPredicted
	e.MethodDetails["sample_count"] = len(series)
	return e
}

// observedAverage replaces a flat or negative trend with average progress per day
func (l *LinearTrend) observedAverage(remaining, confidenceLevel float64, fit Fit) contracts.Estimate {
	series := l.deps.Analyzer.Series()
	velocity := series.Total() / float64(series.SpanDays())

	if velocity <= 0 {
		l.log.Debug().Msg("no observed progress, delegating to simple average")
		return delegated(NewSimpleAverage(l.deps).Estimate(remaining, confidenceLevel), l.Method(), "no observed progress")
	}

	l.log.Debug().
		Float64("slope", fit.Slope).
		Float64("observed_velocity", velocity).
		Msg("non-positive slope, using observed average")

	days := remaining / velocity
	e := newEstimate(l.Method(), l.deps.Reference, days, velocity, math.Min(confidenceLevel, 0.3), days*0.5, contracts.StatusEstimated)
	e.MethodDetails["degraded"] = true
	e.MethodDetails["slope"] = fit.Slope
	e.MethodDetails["r_squared"] = fit.RSquared
	e.MethodDetails["observed_velocity"] = velocity
	return e
}
