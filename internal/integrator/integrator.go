// Package integrator scores strategy reliability and combines estimates.
package integrator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/analyzer"
	"github.com/wonny/surveyprogress/internal/contracts"
)

// Config integrator thresholds
type Config struct {
	EnsembleThreshold float64 // minimum reliability to join the ensemble (기본: 0.3)
	SampleBonus       float64 // multiplier when sample size is sufficient (기본: 1.1)
	SamplePenalty     float64 // multiplier when sample size is short (기본: 0.8)
	PreferredBonus    float64 // multiplier when the quality tier suits the method (기본: 1.2)
}

// DefaultConfig returns default thresholds
func DefaultConfig() Config {
	return Config{
		EnsembleThreshold: 0.3,
		SampleBonus:       1.1,
		SamplePenalty:     0.8,
		PreferredBonus:    1.2,
	}
}

// minimum series length each method needs before it earns the sample bonus
var minSamples = map[contracts.Method]int{
	contracts.MethodSimpleAverage:   1,
	contracts.MethodWeightedAverage: 7,
	contracts.MethodLinearTrend:     5,
	contracts.MethodMonteCarlo:      7,
}

// quality tiers under which each method is expected to do well
var preferredTiers = map[contracts.Method][]contracts.QualityTier{
	contracts.MethodMonteCarlo:      {contracts.QualityExcellent, contracts.QualityGood},
	contracts.MethodLinearTrend:     {contracts.QualityExcellent, contracts.QualityGood},
	contracts.MethodWeightedAverage: {contracts.QualityGood, contracts.QualityFair},
	contracts.MethodSimpleAverage:   {contracts.QualityFair, contracts.QualityPoor},
}

// consistency tier thresholds, checked in order
var consistencyBands = []struct {
	tier     contracts.ConsistencyTier
	maxRange float64
	maxCV    float64
	score    float64
}{
	{contracts.ConsistencyHigh, 7, 0.2, 0.9},
	{contracts.ConsistencyMedium, 21, 0.5, 0.6},
	{contracts.ConsistencyLow, 60, 1.0, 0.3},
}

// Integrator combines per-strategy estimates
type Integrator struct {
	config Config
	logger zerolog.Logger
}

// New creates an integrator
func New(config Config, logger zerolog.Logger) *Integrator {
	return &Integrator{
		config: config,
		logger: logger.With().Str("component", "integrator").Logger(),
	}
}

// Integrate scores usable estimates, selects the best method and builds the
// ensemble. When nothing survives filtering a fallback result is returned.
func (i *Integrator) Integrate(estimates map[contracts.Method]contracts.Estimate, quality contracts.QualitySignals, reference time.Time) contracts.IntegrationResult {
	usable := make([]contracts.Estimate, 0, len(estimates))
	for _, e := range estimates {
		if e.IsUsable() {
			usable = append(usable, e)
		}
	}
	// deterministic order for weights and logging
	sort.Slice(usable, func(a, b int) bool { return usable[a].Method.Rank() < usable[b].Method.Rank() })

	if len(usable) == 0 {
		i.logger.Warn().Int("estimates", len(estimates)).Msg("no usable estimates, integration fallback")
		return Fallback()
	}

	reliability := make(map[contracts.Method]float64, len(usable))
	for _, e := range usable {
		reliability[e.Method] = i.Reliability(e, quality)
	}

	best := SelectBest(reliability)
	ensemble := i.Ensemble(usable, reliability, reference)
	consistency := Consistency(usable)

	result := contracts.IntegrationResult{
		BestMethod:  best,
		Reliability: reliability,
		Ensemble:    ensemble,
		Consistency: consistency,
		Confidence:  ensemble.Confidence,
	}
	if ensemble.IsEmpty() && best != nil {
		result.Confidence = reliability[*best]
	}
	result.Recommendations = Recommendations(result, quality)

	logEvent := i.logger.Info().
		Int("usable", len(usable)).
		Str("consistency", string(consistency.Tier)).
		Float64("ensemble_days", ensemble.DaysRemaining).
		Float64("confidence", result.Confidence)
	if best != nil {
		logEvent = logEvent.Str("best_method", string(*best))
	}
	logEvent.Msg("integration completed")

	return result
}

// Reliability confidence adjusted by sample size, quality tier and activity, in [0, 1]
func (i *Integrator) Reliability(e contracts.Estimate, quality contracts.QualitySignals) float64 {
	score := e.Confidence

	if quality.TotalDays >= minSamples[e.Method] {
		score *= i.config.SampleBonus
	} else {
		score *= i.config.SamplePenalty
	}

	for _, tier := range preferredTiers[e.Method] {
		if tier == quality.Tier {
			score *= i.config.PreferredBonus
			break
		}
	}

	score *= 0.6 + 0.4*analyzer.Clamp(quality.ActivityRate, 0, 1)
	return analyzer.Clamp(score, 0, 1)
}

// SelectBest argmax reliability; ties go to the higher-priority method
func SelectBest(reliability map[contracts.Method]float64) *contracts.Method {
	var best *contracts.Method
	bestScore := math.Inf(-1)
	for _, m := range contracts.MethodPriority {
		score, ok := reliability[m]
		if !ok {
			continue
		}
		if score > bestScore {
			method := m
			best = &method
			bestScore = score
		}
	}
	return best
}

// Ensemble reliability-weighted combination of estimates scoring above the threshold
func (i *Integrator) Ensemble(usable []contracts.Estimate, reliability map[contracts.Method]float64, reference time.Time) contracts.EnsembleEstimate {
	var members []contracts.Estimate
	var total float64
	for _, e := range usable {
		if score := reliability[e.Method]; score > i.config.EnsembleThreshold {
			members = append(members, e)
			total += score
		}
	}

	ensemble := contracts.EnsembleEstimate{
		MethodsUsed:   []contracts.Method{},
		MethodWeights: map[contracts.Method]float64{},
	}
	if len(members) == 0 || total <= 0 {
		return ensemble
	}

	days := make([]float64, 0, len(members))
	for _, e := range members {
		w := reliability[e.Method] / total
		ensemble.MethodsUsed = append(ensemble.MethodsUsed, e.Method)
		ensemble.MethodWeights[e.Method] = w
		ensemble.DaysRemaining += w * e.DaysRemaining
		ensemble.Confidence += w * e.Confidence
		days = append(days, e.DaysRemaining)
	}

	ensemble.UncertaintyDays = analyzer.PopulationStdDev(days)
	ensemble.EstimatedDate = contracts.AddDays(reference, ensemble.DaysRemaining)
	return ensemble
}

// Consistency agreement across estimates by the spread of days remaining
// and its coefficient of variation. Every estimate shares one reference
// date, so the day spread equals the predicted-date range. Any projection
// clamped to the horizon makes the spread unmeasurable and rates very low.
func Consistency(estimates []contracts.Estimate) contracts.ConsistencyReport {
	report := contracts.ConsistencyReport{MethodCount: len(estimates)}
	if len(estimates) < 2 {
		report.Tier = contracts.ConsistencyInsufficient
		return report
	}

	days := make([]float64, len(estimates))
	capped := false
	for idx, e := range estimates {
		days[idx] = e.DaysRemaining
		capped = capped || e.HorizonCapped
	}

	lo, hi := days[0], days[0]
	for _, d := range days[1:] {
		lo, hi = math.Min(lo, d), math.Max(hi, d)
	}
	report.DateRangeDays = hi - lo
	if mean := analyzer.Mean(days); mean > 0 {
		report.CoefficientOfVariation = analyzer.PopulationStdDev(days) / mean
	}
	if math.IsNaN(report.DateRangeDays) || math.IsNaN(report.CoefficientOfVariation) {
		report.Tier = contracts.ConsistencyError
		return report
	}

	report.Tier = contracts.ConsistencyVeryLow
	report.Score = 0.1
	if capped {
		return report
	}
	for _, band := range consistencyBands {
		if report.DateRangeDays <= band.maxRange && report.CoefficientOfVariation <= band.maxCV {
			report.Tier = band.tier
			report.Score = band.score
			break
		}
	}
	return report
}

// Recommendations human-readable notes derived from an integration result
func Recommendations(result contracts.IntegrationResult, quality contracts.QualitySignals) []string {
	var notes []string

	switch result.Consistency.Tier {
	case contracts.ConsistencyHigh:
		notes = append(notes, "methods agree closely; the ensemble estimate is reliable")
	case contracts.ConsistencyMedium:
		notes = append(notes, "methods broadly agree; treat the estimate as a range")
	case contracts.ConsistencyLow, contracts.ConsistencyVeryLow:
		notes = append(notes, fmt.Sprintf("methods disagree by %.0f days; review recent progress before committing", result.Consistency.DateRangeDays))
	case contracts.ConsistencyInsufficient:
		notes = append(notes, "only one method produced a usable estimate")
	}

	switch quality.Tier {
	case contracts.QualityPoor, contracts.QualityInsufficient:
		notes = append(notes, "historical data is sparse; collect more daily records")
	}
	if quality.TotalDays > 0 && quality.ActivityRate < 0.5 {
		notes = append(notes, fmt.Sprintf("work happened on only %.0f%% of days", quality.ActivityRate*100))
	}

	if result.BestMethod == nil {
		return notes
	}
	best := *result.BestMethod
	notes = append(notes, fmt.Sprintf("recommended method: %s", best))
	for _, m := range RankMethods(result.Reliability) {
		if m == best {
			continue
		}
		gap := result.Reliability[best] - result.Reliability[m]
		notes = append(notes, fmt.Sprintf("runner-up method: %s (reliability gap %.2f)", m, gap))
		break
	}
	return notes
}

// RankMethods orders methods by reliability, highest first; ties keep priority order
func RankMethods(reliability map[contracts.Method]float64) []contracts.Method {
	ranked := make([]contracts.Method, 0, len(reliability))
	for m := range reliability {
		ranked = append(ranked, m)
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		ra, rb := reliability[ranked[a]], reliability[ranked[b]]
		if ra != rb {
			return ra > rb
		}
		return ranked[a].Rank() < ranked[b].Rank()
	})
	return ranked
}

// Fallback explicit result when no estimate survives filtering
func Fallback() contracts.IntegrationResult {
	return contracts.IntegrationResult{
		Reliability: map[contracts.Method]float64{},
		Ensemble: contracts.EnsembleEstimate{
			MethodsUsed:   []contracts.Method{},
			MethodWeights: map[contracts.Method]float64{},
		},
		Consistency:     contracts.ConsistencyReport{Tier: contracts.ConsistencyInsufficient},
		Recommendations: []string{"no estimation method produced a usable result; check the data source"},
		Fallback:        true,
	}
}
