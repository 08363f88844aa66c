package strategy

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/analyzer"
	"github.com/wonny/surveyprogress/internal/contracts"
)

// WeightedAverage recency-weighted velocity over the trailing window.
// Record i is weighted exp(i/N) with N the configured window, so later
// records weigh more and a short series is not stretched over the full decay.
type WeightedAverage struct {
	deps Deps
	log  zerolog.Logger
}

// NewWeightedAverage creates the strategy
func NewWeightedAverage(deps Deps) *WeightedAverage {
	return &WeightedAverage{deps: deps, log: deps.logger(contracts.MethodWeightedAverage)}
}

// Method implements Strategy
func (w *WeightedAverage) Method() contracts.Method { return contracts.MethodWeightedAverage }

// Estimate implements Strategy
func (w *WeightedAverage) Estimate(remaining, confidenceLevel float64) contracts.Estimate {
	windowSize := w.deps.Config.RecencyWindow
	if windowSize <= 0 {
		windowSize = DefaultConfig().RecencyWindow
	}

	window := w.deps.Analyzer.Series().Tail(windowSize)
	if len(window) == 0 {
		w.log.Debug().Msg("empty window, using default velocity")
		return fallbackEstimate(w.Method(), remaining, w.deps, "no historical data")
	}

	values := window.DailyPoints()
	n := float64(len(values))
	decay := float64(windowSize)

	var weightedSum, weightSum float64
	for i, v := range values {
		weight := math.Exp(float64(i) / decay)
		weightedSum += weight * v
		weightSum += weight
	}
	velocity := weightedSum / weightSum
	source := "weighted"

	if velocity <= 0 {
		var nonZero []float64
		for _, v := range values {
			if v > 0 {
				nonZero = append(nonZero, v)
			}
		}
		velocity = analyzer.Mean(nonZero)
		source = "non_zero_mean"
	}

	if velocity <= 0 {
		w.log.Debug().Msg("no positive velocity in window, delegating to simple average")
		return delegated(NewSimpleAverage(w.deps).Estimate(remaining, confidenceLevel), w.Method(), "no positive velocity in window")
	}

	days := remaining / velocity
	std := analyzer.StdDev(values)
	sizeFactor := math.Min(1, n/float64(windowSize))
	confidence := math.Min(confidenceLevel, 0.5+0.3*sizeFactor)

	e := newEstimate(w.Method(), w.deps.Reference, days, velocity, confidence, days*(std/velocity), contracts.StatusEstimated)
	e.MethodDetails["weighted_velocity"] = velocity
	e.MethodDetails["velocity_source"] = source
	e.MethodDetails["window_size"] = len(values)
	e.MethodDetails["window_std"] = std
	return e
}
