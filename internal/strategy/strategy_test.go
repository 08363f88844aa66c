package strategy

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/surveyprogress/internal/analyzer"
	"github.com/wonny/surveyprogress/internal/contracts"
)

// 2024-03-04 is a Monday
var seriesStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func consecutiveSeries(values ...float64) contracts.Series {
	records := make([]contracts.DailyRecord, len(values))
	for i, v := range values {
		records[i] = contracts.DailyRecord{Date: seriesStart.AddDate(0, 0, i), DailyPoints: v}
	}
	return contracts.NewSeries(records)
}

func workdaySeries(values ...float64) contracts.Series {
	records := make([]contracts.DailyRecord, 0, len(values))
	day := seriesStart
	for _, v := range values {
		for !contracts.IsWorkday(day) {
			day = day.AddDate(0, 0, 1)
		}
		records = append(records, contracts.DailyRecord{Date: day, DailyPoints: v})
		day = day.AddDate(0, 0, 1)
	}
	return contracts.NewSeries(records)
}

func testDeps(series contracts.Series) Deps {
	ref := seriesStart
	if len(series) > 0 {
		ref = series[len(series)-1].Date.AddDate(0, 0, 1)
	}
	return Deps{
		Analyzer:  analyzer.New(series),
		Reference: ref,
		Config:    DefaultConfig(),
		Rand:      rand.New(rand.NewSource(42)),
		Log:       zerolog.Nop(),
	}
}

func TestSimpleAverage_EmptySeriesFallsBack(t *testing.T) {
	e := NewSimpleAverage(testDeps(contracts.Series{})).Estimate(1000, 0.8)

	assert.Equal(t, contracts.StatusFallback, e.Status)
	assert.Equal(t, 30.0, e.DailyVelocity)
	assert.InDelta(t, 33.33, e.DaysRemaining, 0.01)
	assert.LessOrEqual(t, e.Confidence, 0.3)
	assert.Equal(t, contracts.MethodSimpleAverage, e.Method)
}

func TestSimpleAverage_NoActivityIsConservative(t *testing.T) {
	series := consecutiveSeries(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	e := NewSimpleAverage(testDeps(series)).Estimate(100, 0.8)

	assert.Equal(t, contracts.StatusEstimated, e.Status)
	assert.Equal(t, 0.3, e.Confidence)
	assert.Equal(t, true, e.MethodDetails["low_confidence"])
	// velocity = max(1, 100/(10*2)) = 5
	assert.InDelta(t, 5.0, e.DailyVelocity, 1e-9)
	assert.InDelta(t, 20.0, e.DaysRemaining, 1e-9)
}

func TestSimpleAverage_MeanVelocity(t *testing.T) {
	series := consecutiveSeries(10, 20, 30)
	e := NewSimpleAverage(testDeps(series)).Estimate(100, 0.8)

	assert.Equal(t, contracts.StatusEstimated, e.Status)
	assert.InDelta(t, 5.0, e.DaysRemaining, 1e-9)
	assert.InDelta(t, 20.0, e.DailyVelocity, 1e-9)
	assert.LessOrEqual(t, e.Confidence, 0.8)
	assert.Equal(t, e.Confidence > 0, true)
}

func TestSimpleAverage_Monotonic(t *testing.T) {
	cases := []contracts.Series{
		consecutiveSeries(),
		consecutiveSeries(0, 0, 0, 0),
		consecutiveSeries(5, 0, 12, 7, 9),
	}

	for _, series := range cases {
		s := NewSimpleAverage(testDeps(series))
		prev := -1.0
		for remaining := 0.0; remaining <= 500; remaining += 7 {
			days := s.Estimate(remaining, 0.8).DaysRemaining
			assert.GreaterOrEqual(t, days, prev, "remaining=%v", remaining)
			prev = days
		}
	}
}

func TestWeightedAverage_RecentWorkdays(t *testing.T) {
	series := workdaySeries(50, 55, 45, 60, 50, 48, 52)
	e := NewWeightedAverage(testDeps(series)).Estimate(600, 0.8)

	assert.Equal(t, contracts.StatusEstimated, e.Status)
	assert.InDelta(t, 51.39, e.DailyVelocity, 0.05)
	assert.InDelta(t, 11.67, e.DaysRemaining, 0.05)
	assert.Greater(t, e.UncertaintyDays, 0.0)
}

func TestWeightedAverage_DecayUsesConfiguredWindow(t *testing.T) {
	// two records under a 14-day window: weights 1 and exp(1/14)
	e := NewWeightedAverage(testDeps(consecutiveSeries(0, 10))).Estimate(100, 0.8)

	want := 10 * math.Exp(1.0/14) / (1 + math.Exp(1.0/14))
	assert.InDelta(t, want, e.DailyVelocity, 1e-9)
	assert.InDelta(t, 100/want, e.DaysRemaining, 1e-9)
}

func TestWeightedAverage_EmptySeriesFallsBack(t *testing.T) {
	e := NewWeightedAverage(testDeps(contracts.Series{})).Estimate(1000, 0.8)

	assert.Equal(t, contracts.StatusFallback, e.Status)
	assert.Equal(t, 30.0, e.DailyVelocity)
	assert.InDelta(t, 33.33, e.DaysRemaining, 0.01)
}

func TestWeightedAverage_ZeroWindowDelegates(t *testing.T) {
	series := consecutiveSeries(0, 0, 0)
	e := NewWeightedAverage(testDeps(series)).Estimate(100, 0.8)

	assert.Equal(t, contracts.MethodWeightedAverage, e.Method)
	assert.Equal(t, string(contracts.MethodSimpleAverage), e.MethodDetails["delegated_to"])
	assert.Equal(t, 0.3, e.Confidence)
}

func TestWeightedAverage_OnlyTrailingWindow(t *testing.T) {
	values := make([]float64, 0, 28)
	for i := 0; i < 14; i++ {
		values = append(values, 1000)
	}
	for i := 0; i < 14; i++ {
		values = append(values, 10)
	}
	e := NewWeightedAverage(testDeps(consecutiveSeries(values...))).Estimate(100, 0.8)

	assert.InDelta(t, 10.0, e.DailyVelocity, 1e-9)
	assert.InDelta(t, 10.0, e.DaysRemaining, 1e-9)
}

func TestFitLine(t *testing.T) {
	fit := FitLine([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	assert.InDelta(t, 2.0, fit.Slope, 1e-9)
	assert.InDelta(t, 1.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)

	flat := FitLine([]float64{0, 1, 2}, []float64{4, 4, 4})
	assert.Equal(t, 0.0, flat.Slope)
	assert.Equal(t, 0.0, flat.RSquared)
}

func TestLinearTrend_PerfectLine(t *testing.T) {
	series := consecutiveSeries(10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	e := NewLinearTrend(testDeps(series)).Estimate(50, 0.8)

	assert.Equal(t, contracts.StatusEstimated, e.Status)
	assert.InDelta(t, 5.0, e.DaysRemaining, 1e-6)
	assert.InDelta(t, 10.0, e.DailyVelocity, 1e-6)
	// confidence = min(R², level)
	assert.InDelta(t, 0.8, e.Confidence, 1e-9)
	assert.InDelta(t, 0.0, e.UncertaintyDays, 1e-6)
	assert.InDelta(t, 1.0, e.MethodDetails["r_squared"].(float64), 1e-9)
}

func TestLinearTrend_TooFewRecordsDelegates(t *testing.T) {
	series := consecutiveSeries(10, 12, 11)
	e := NewLinearTrend(testDeps(series)).Estimate(100, 0.8)

	assert.Equal(t, contracts.MethodLinearTrend, e.Method)
	assert.Equal(t, string(contracts.MethodWeightedAverage), e.MethodDetails["delegated_to"])
}

func TestLinearTrend_NoProgressDelegatesToSimple(t *testing.T) {
	series := consecutiveSeries(0, 0, 0, 0, 0, 0)
	e := NewLinearTrend(testDeps(series)).Estimate(100, 0.8)

	assert.Equal(t, string(contracts.MethodSimpleAverage), e.MethodDetails["delegated_to"])
	assert.GreaterOrEqual(t, e.DaysRemaining, 0.0)
}

func TestMonteCarlo_ConstantVelocityIsExact(t *testing.T) {
	values := make([]float64, 14)
	for i := range values {
		values[i] = 10
	}
	e := NewMonteCarlo(testDeps(consecutiveSeries(values...))).Estimate(100, 0.8)

	require.Equal(t, contracts.StatusEstimated, e.Status)
	assert.InDelta(t, 10.0, e.DaysRemaining, 1e-9)
	assert.InDelta(t, 0.0, e.UncertaintyDays, 1e-9)
	assert.InDelta(t, 0.8, e.Confidence, 1e-9)

	percentiles := e.MethodDetails["percentiles"].(map[string]float64)
	assert.Equal(t, 10.0, percentiles["p50"])
	assert.Equal(t, 10.0, percentiles["min"])
	assert.Equal(t, 10.0, percentiles["max"])
	assert.Contains(t, e.MethodDetails, "confidence_date")
}

func TestMonteCarlo_StatisticalTolerance(t *testing.T) {
	// alternating 0/20 workdays: mean ~10/day
	values := make([]float64, 0, 28)
	for i := 0; i < 28; i++ {
		if i%2 == 0 {
			values = append(values, 0)
		} else {
			values = append(values, 20)
		}
	}
	deps := testDeps(consecutiveSeries(values...))
	deps.Config.MonteCarloIterations = 5000
	e := NewMonteCarlo(deps).Estimate(200, 0.8)

	assert.InDelta(t, 20.0, e.DaysRemaining, 2.0)
	assert.Greater(t, e.UncertaintyDays, 0.0)

	percentiles := e.MethodDetails["percentiles"].(map[string]float64)
	assert.LessOrEqual(t, percentiles["p25"], percentiles["p50"])
	assert.LessOrEqual(t, percentiles["p50"], percentiles["p75"])
}

func TestMonteCarlo_DayCapLimitsTrials(t *testing.T) {
	values := []float64{1, 1, 1, 1, 1, 1, 1}
	deps := testDeps(consecutiveSeries(values...))
	deps.Config.MonteCarloDayCap = 30
	deps.Config.MonteCarloIterations = 50
	e := NewMonteCarlo(deps).Estimate(1000, 0.8)

	assert.Equal(t, 30.0, e.DaysRemaining)
	assert.Equal(t, 50, e.MethodDetails["capped_trials"])
	assert.Equal(t, 0.0, e.Confidence)
}

func TestMonteCarlo_TooFewRecordsDelegates(t *testing.T) {
	series := consecutiveSeries(10, 10, 10, 10, 10, 10)
	e := NewMonteCarlo(testDeps(series)).Estimate(50, 0.8)

	assert.Equal(t, contracts.MethodMonteCarlo, e.Method)
	assert.Equal(t, string(contracts.MethodLinearTrend), e.MethodDetails["delegated_to"])
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []contracts.Method{
		contracts.MethodMonteCarlo,
		contracts.MethodLinearTrend,
		contracts.MethodWeightedAverage,
		contracts.MethodSimpleAverage,
	}, reg.Methods())

	reduced := reg.Without(contracts.MethodMonteCarlo)
	assert.Len(t, reduced, 3)
	assert.Len(t, reg, 4)

	s, ok := reg.Build(contracts.MethodSimpleAverage, testDeps(contracts.Series{}))
	require.True(t, ok)
	assert.Equal(t, contracts.MethodSimpleAverage, s.Method())

	_, ok = reduced.Build(contracts.MethodMonteCarlo, testDeps(contracts.Series{}))
	assert.False(t, ok)
}
