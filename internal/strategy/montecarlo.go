package strategy

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/analyzer"
	"github.com/wonny/surveyprogress/internal/contracts"
)

// MonteCarlo bootstrap simulation over workday/weekend empirical pools.
// Each trial walks forward day by day from the reference date, drawing a
// daily value from the pool matching the simulated weekday.
type MonteCarlo struct {
	deps Deps
	rng  *rand.Rand
	log  zerolog.Logger
}

// NewMonteCarlo creates the strategy
func NewMonteCarlo(deps Deps) *MonteCarlo {
	return &MonteCarlo{deps: deps, rng: deps.rng(), log: deps.logger(contracts.MethodMonteCarlo)}
}

// Method implements Strategy
func (m *MonteCarlo) Method() contracts.Method { return contracts.MethodMonteCarlo }

// SimulationResult raw trial statistics
type SimulationResult struct {
	TrialDays    []float64 // ascending
	Mean         float64
	StdDev       float64
	CappedTrials int
}

// Estimate implements Strategy
func (m *MonteCarlo) Estimate(remaining, confidenceLevel float64) contracts.Estimate {
	cfg := m.config()
	tail := m.deps.Analyzer.Series().Tail(cfg.MonteCarloLookback)

	if len(tail) < cfg.MonteCarloMinRecords {
		m.log.Debug().Int("records", len(tail)).Int("required", cfg.MonteCarloMinRecords).Msg("too few records for simulation")
		return delegated(NewLinearTrend(m.deps).Estimate(remaining, confidenceLevel), m.Method(), "insufficient records for simulation")
	}

	workday, weekend := m.deps.Analyzer.Pools(cfg.MonteCarloLookback)
	if poolSum(workday)+poolSum(weekend) <= 0 {
		m.log.Debug().Msg("no positive samples, delegating to simple average")
		return delegated(NewSimpleAverage(m.deps).Estimate(remaining, confidenceLevel), m.Method(), "no positive samples")
	}
	if len(workday) == 0 {
		workday = weekend
	}
	if len(weekend) == 0 {
		weekend = workday
	}

	if remaining <= 0 {
		e := newEstimate(m.Method(), m.deps.Reference, 0, analyzer.Mean(workday), confidenceLevel, 0, contracts.StatusEstimated)
		e.MethodDetails["iterations"] = 0
		return e
	}

	sim := m.Simulate(remaining, workday, weekend, cfg.MonteCarloIterations, cfg.MonteCarloDayCap)

	cappedFraction := float64(sim.CappedTrials) / float64(len(sim.TrialDays))
	confidence := confidenceLevel * (1 - cappedFraction)
	confidenceDays := analyzer.Percentile(sim.TrialDays, confidenceLevel*100)

	velocity := 0.0
	if sim.Mean > 0 {
		velocity = remaining / sim.Mean
	}

	e := newEstimate(m.Method(), m.deps.Reference, sim.Mean, velocity, confidence, sim.StdDev, contracts.StatusEstimated)
	e.MethodDetails["iterations"] = len(sim.TrialDays)
	e.MethodDetails["confidence_date"] = contracts.AddDays(m.deps.Reference, confidenceDays)
	e.MethodDetails["confidence_days"] = confidenceDays
	e.MethodDetails["percentiles"] = map[string]float64{
		"min": sim.TrialDays[0],
		"p25": analyzer.Percentile(sim.TrialDays, 25),
		"p50": analyzer.Percentile(sim.TrialDays, 50),
		"p75": analyzer.Percentile(sim.TrialDays, 75),
		"max": sim.TrialDays[len(sim.TrialDays)-1],
	}
	e.MethodDetails["capped_trials"] = sim.CappedTrials
	e.MethodDetails["workday_samples"] = len(workday)
	e.MethodDetails["weekend_samples"] = len(weekend)

	m.log.Debug().
		Int("iterations", len(sim.TrialDays)).
		Float64("mean_days", sim.Mean).
		Float64("std_days", sim.StdDev).
		Int("capped", sim.CappedTrials).
		Msg("simulation completed")

	return e
}

// Simulate runs the trials; pools must be non-empty
func (m *MonteCarlo) Simulate(remaining float64, workday, weekend []float64, iterations, dayCap int) SimulationResult {
	if iterations <= 0 {
		iterations = DefaultConfig().MonteCarloIterations
	}
	if dayCap <= 0 {
		dayCap = DefaultConfig().MonteCarloDayCap
	}

	trials := make([]float64, iterations)
	capped := 0
	start := contracts.TruncateDay(m.deps.Reference)

	for i := 0; i < iterations; i++ {
		var done float64
		day := 0
		for done < remaining && day < dayCap {
			day++
			pool := workday
			if !contracts.IsWorkday(start.AddDate(0, 0, day)) {
				pool = weekend
			}
			draw := pool[m.rng.Intn(len(pool))]
			if draw < 0 {
				draw = 0
			}
			done += draw
		}
		if done < remaining {
			capped++
		}
		trials[i] = float64(day)
	}

	sorted := analyzer.Sorted(trials)
	return SimulationResult{
		TrialDays:    sorted,
		Mean:         analyzer.Mean(sorted),
		StdDev:       analyzer.StdDev(sorted),
		CappedTrials: capped,
	}
}

func (m *MonteCarlo) config() Config {
	cfg := m.deps.Config
	def := DefaultConfig()
	if cfg.MonteCarloIterations <= 0 {
		cfg.MonteCarloIterations = def.MonteCarloIterations
	}
	if cfg.MonteCarloMinRecords <= 0 {
		cfg.MonteCarloMinRecords = def.MonteCarloMinRecords
	}
	if cfg.MonteCarloLookback <= 0 {
		cfg.MonteCarloLookback = def.MonteCarloLookback
	}
	if cfg.MonteCarloLookback < cfg.MonteCarloMinRecords {
		cfg.MonteCarloLookback = cfg.MonteCarloMinRecords
	}
	if cfg.MonteCarloDayCap <= 0 {
		cfg.MonteCarloDayCap = def.MonteCarloDayCap
	}
	return cfg
}

func poolSum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += math.Max(0, v)
	}
	return sum
}
