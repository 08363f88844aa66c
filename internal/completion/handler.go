// Package completion handles projects whose target is already met.
package completion

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// 효율 점수 기준 (밴드별 기본값)
var categoryBase = map[contracts.CompletionCategory]float64{
	contracts.CompletionExactly:           0.9,
	contracts.CompletionSlightlyOver:      0.85,
	contracts.CompletionModeratelyOver:    0.75,
	contracts.CompletionSignificantlyOver: 0.6,
}

const (
	maxEarlyBonus    = 0.1
	earlyBonusPerDay = 0.01
)

// Handler produces the completed estimate and retrospective report.
// It holds no state between calls.
type Handler struct {
	minimal bool
	logger  zerolog.Logger
}

// New creates a handler; minimal=true skips backfill and scoring
func New(minimal bool, logger zerolog.Logger) *Handler {
	return &Handler{
		minimal: minimal,
		logger:  logger.With().Str("component", "completion").Logger(),
	}
}

// IsProjectCompleted target must be positive; a zero target never completes
func IsProjectCompleted(current, target float64) bool {
	return target > 0 && current >= target
}

// Categorize maps a completion rate (percent) to its band
func Categorize(rate float64) contracts.CompletionCategory {
	switch {
	case rate <= 100:
		return contracts.CompletionExactly
	case rate <= 110:
		return contracts.CompletionSlightlyOver
	case rate <= 125:
		return contracts.CompletionModeratelyOver
	default:
		return contracts.CompletionSignificantlyOver
	}
}

// EfficiencyScore band base plus a capped bonus for finishing early, in [0, 1]
func EfficiencyScore(category contracts.CompletionCategory, daysEarly int) float64 {
	base, ok := categoryBase[category]
	if !ok {
		base = 0.5
	}
	bonus := math.Min(maxEarlyBonus, float64(max(daysEarly, 0))*earlyBonusPerDay)
	return math.Max(0, math.Min(1, base+bonus))
}

// Backfill returns the first date whose cumulative points reach target
func Backfill(series contracts.Series, target float64) (time.Time, bool) {
	for _, r := range series {
		if r.CumulativePoints >= target {
			return r.Date, true
		}
	}
	return time.Time{}, false
}

// Handle builds the completed estimate for a project that met its target.
// today anchors days_early and the estimate date when no backfill is found.
func (h *Handler) Handle(state contracts.ProjectState, series contracts.Series, today time.Time) (contracts.Estimate, contracts.CompletionReport) {
	today = contracts.TruncateDay(today)
	rate := state.CompletionRate()

	estimate := contracts.Estimate{
		EstimatedDate:   today,
		DaysRemaining:   0,
		Confidence:      1.0,
		UncertaintyDays: 0,
		Status:          contracts.StatusCompleted,
		Method:          contracts.MethodCompleted,
		MethodDetails:   map[string]interface{}{"completion_rate": rate},
	}

	if h.minimal {
		h.logger.Debug().Float64("completion_rate", rate).Msg("project completed, minimal report")
		return estimate, contracts.CompletionReport{
			CompletionRate: rate,
			Category:       Categorize(rate),
			Minimal:        true,
		}
	}

	report := contracts.CompletionReport{
		CompletionRate: rate,
		ExcessRate:     math.Max(0, rate-100),
		ExcessPoints:   math.Max(0, state.CurrentPoints-state.TargetPoints),
		Category:       Categorize(rate),
	}

	if date, ok := Backfill(series, state.TargetPoints); ok {
		report.ActualCompletionDate = &date
		report.DaysEarly = max(0, contracts.DaysBetween(date, today))
		estimate.EstimatedDate = date
		estimate.MethodDetails["actual_completion_date"] = date
	}

	report.EfficiencyScore = EfficiencyScore(report.Category, report.DaysEarly)
	estimate.MethodDetails["completion_category"] = string(report.Category)
	estimate.MethodDetails["efficiency_score"] = report.EfficiencyScore
	estimate.MethodDetails["days_early"] = report.DaysEarly

	h.logger.Info().
		Float64("completion_rate", rate).
		Str("category", string(report.Category)).
		Int("days_early", report.DaysEarly).
		Float64("efficiency", report.EfficiencyScore).
		Msg("project already completed")

	return estimate, report
}
