// Package strategy holds the interchangeable completion-date estimators.
package strategy

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/analyzer"
	"github.com/wonny/surveyprogress/internal/contracts"
)

// Strategy estimates the days needed to finish the remaining points.
// Implementations never mutate shared state and never fail: data sparsity
// is reported through Estimate.Status and Estimate.Confidence.
type Strategy interface {
	Method() contracts.Method
	Estimate(remaining, confidenceLevel float64) contracts.Estimate
}

// Config strategy tuning knobs
type Config struct {
	FallbackVelocity     float64 // points/day when no data exists (기본: 30)
	RecencyWindow        int     // weighted average trailing records (기본: 14)
	MinRegressionPoints  int     // minimum records for OLS (기본: 5)
	MonteCarloIterations int     // trials (기본: 1000)
	MonteCarloMinRecords int     // minimum trailing records (기본: 7)
	MonteCarloLookback   int     // trailing records sampled (기본: 30)
	MonteCarloDayCap     int     // per-trial day cap (기본: 365)
}

// DefaultConfig default strategy settings
func DefaultConfig() Config {
	return Config{
		FallbackVelocity:     30,
		RecencyWindow:        14,
		MinRegressionPoints:  5,
		MonteCarloIterations: 1000,
		MonteCarloMinRecords: 7,
		MonteCarloLookback:   30,
		MonteCarloDayCap:     365,
	}
}

// Deps per-call inputs shared by all strategies
type Deps struct {
	Analyzer  *analyzer.Analyzer
	Reference time.Time // days_remaining counts from this day
	Config    Config
	Rand      *rand.Rand
	Log       zerolog.Logger
}

func (d Deps) rng() *rand.Rand {
	if d.Rand != nil {
		return d.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (d Deps) logger(m contracts.Method) zerolog.Logger {
	return d.Log.With().Str("component", "strategy."+string(m)).Logger()
}

// Factory builds a strategy bound to one call's deps
type Factory func(deps Deps) Strategy

// Registry lookup table from method to factory
type Registry map[contracts.Method]Factory

// DefaultRegistry the four built-in strategies
func DefaultRegistry() Registry {
	return Registry{
		contracts.MethodSimpleAverage:   func(d Deps) Strategy { return NewSimpleAverage(d) },
		contracts.MethodWeightedAverage: func(d Deps) Strategy { return NewWeightedAverage(d) },
		contracts.MethodLinearTrend:     func(d Deps) Strategy { return NewLinearTrend(d) },
		contracts.MethodMonteCarlo:      func(d Deps) Strategy { return NewMonteCarlo(d) },
	}
}

// Build instantiates the strategy for a method
func (r Registry) Build(m contracts.Method, deps Deps) (Strategy, bool) {
	f, ok := r[m]
	if !ok {
		return nil, false
	}
	return f(deps), true
}

// Methods registered methods in priority order, unknown methods last
func (r Registry) Methods() []contracts.Method {
	methods := make([]contracts.Method, 0, len(r))
	for _, m := range contracts.MethodPriority {
		if _, ok := r[m]; ok {
			methods = append(methods, m)
		}
	}
	for m := range r {
		if m.Rank() == len(contracts.MethodPriority) {
			methods = append(methods, m)
		}
	}
	return methods
}

// Without returns a copy of the registry minus the given methods
func (r Registry) Without(disabled ...contracts.Method) Registry {
	out := make(Registry, len(r))
	for m, f := range r {
		out[m] = f
	}
	for _, m := range disabled {
		delete(out, m)
	}
	return out
}

// confidence ceiling for projections past contracts.MaxHorizonDays
const horizonConfidence = 0.2

func newEstimate(method contracts.Method, ref time.Time, days, velocity, confidence, uncertainty float64, status contracts.EstimateStatus) contracts.Estimate {
	if days < 0 {
		days = 0
	}
	if uncertainty < 0 {
		uncertainty = 0
	}
	details := map[string]interface{}{}
	capped := days > contracts.MaxHorizonDays || math.IsNaN(days)
	if capped {
		if !math.IsInf(days, 0) && !math.IsNaN(days) {
			details["unbounded_days"] = days
		}
		details["low_confidence"] = true
		days = contracts.MaxHorizonDays
		confidence = math.Min(confidence, horizonConfidence)
	}
	return contracts.Estimate{
		EstimatedDate:   contracts.AddDays(ref, days),
		DaysRemaining:   days,
		Confidence:      analyzer.Clamp(confidence, 0, 1),
		UncertaintyDays: contracts.ClampHorizon(uncertainty),
		DailyVelocity:   velocity,
		Status:          status,
		Method:          method,
		MethodDetails:   details,
		HorizonCapped:   capped,
	}
}

// fallbackEstimate fixed default velocity when no window data exists
func fallbackEstimate(method contracts.Method, remaining float64, deps Deps, reason string) contracts.Estimate {
	velocity := deps.Config.FallbackVelocity
	if velocity <= 0 {
		velocity = DefaultConfig().FallbackVelocity
	}
	days := remaining / velocity
	e := newEstimate(method, deps.Reference, days, velocity, 0.1, days*0.5, contracts.StatusFallback)
	e.MethodDetails["reason"] = reason
	e.MethodDetails["default_velocity"] = velocity
	return e
}

// delegated relabels an estimate produced by a simpler strategy
func delegated(e contracts.Estimate, as contracts.Method, reason string) contracts.Estimate {
	details := make(map[string]interface{}, len(e.MethodDetails)+2)
	for k, v := range e.MethodDetails {
		details[k] = v
	}
	details["delegated_to"] = string(e.Method)
	details["delegation_reason"] = reason
	e.MethodDetails = details
	e.Method = as
	return e
}
