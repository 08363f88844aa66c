package strategy

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// SimpleAverage days = remaining / mean daily velocity
type SimpleAverage struct {
	deps Deps
	log  zerolog.Logger
}

// NewSimpleAverage creates the strategy
func NewSimpleAverage(deps Deps) *SimpleAverage {
	return &SimpleAverage{deps: deps, log: deps.logger(contracts.MethodSimpleAverage)}
}

// Method implements Strategy
func (s *SimpleAverage) Method() contracts.Method { return contracts.MethodSimpleAverage }

// Estimate implements Strategy
func (s *SimpleAverage) Estimate(remaining, confidenceLevel float64) contracts.Estimate {
	summary := s.deps.Analyzer.Summary()
	if summary.Count == 0 {
		s.log.Debug().Msg("no window data, using default velocity")
		return fallbackEstimate(s.Method(), remaining, s.deps, "no historical data")
	}

	if summary.Mean <= 0 || summary.ActiveDays == 0 {
		// 활동 없음: elapsed-days based conservative velocity
		totalDays := float64(summary.SpanDays)
		if totalDays < 1 {
			totalDays = 1
		}
		velocity := math.Max(1, remaining/(totalDays*2))
		days := remaining / velocity

		s.log.Debug().
			Int("total_days", summary.SpanDays).
			Float64("velocity", velocity).
			Msg("no recorded activity, conservative velocity")

		e := newEstimate(s.Method(), s.deps.Reference, days, velocity, 0.3, days*0.5, contracts.StatusEstimated)
		e.MethodDetails["low_confidence"] = true
		e.MethodDetails["reason"] = "no recorded activity in window"
		e.MethodDetails["total_days"] = summary.SpanDays
		return e
	}

	days := remaining / summary.Mean
	cv := summary.StdDev / summary.Mean
	dataFactor := math.Min(1, float64(summary.Count)/30)
	confidence := math.Min(confidenceLevel, 0.4+0.4*dataFactor)

	e := newEstimate(s.Method(), s.deps.Reference, days, summary.Mean, confidence, days*cv, contracts.StatusEstimated)
	e.MethodDetails["mean_velocity"] = summary.Mean
	e.MethodDetails["std_dev"] = summary.StdDev
	e.MethodDetails["active_days"] = summary.ActiveDays
	e.MethodDetails["sample_count"] = summary.Count
	return e
}
