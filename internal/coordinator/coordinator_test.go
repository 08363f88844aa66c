package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/surveyprogress/internal/contracts"
	"github.com/wonny/surveyprogress/internal/strategy"
	"github.com/wonny/surveyprogress/pkg/config"
)

// fakeClock manually advanced clock
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 29, 10, 0, 0, 0, time.UTC)}
}

func ptr(v float64) *float64 { return &v }

// countingSource returns fixed records and counts loads
type countingSource struct {
	records []contracts.DailyRecord
	err     error
	loads   int
	scopes  []contracts.Scope
}

func (s *countingSource) Load(_ context.Context, scope contracts.Scope, _, _ time.Time) ([]contracts.DailyRecord, error) {
	s.loads++
	s.scopes = append(s.scopes, scope)
	return s.records, s.err
}

// workdayRecords values on consecutive workdays ending 2024-03-28 (Thursday)
func workdayRecords(values ...float64) []contracts.DailyRecord {
	records := make([]contracts.DailyRecord, len(values))
	day := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	for i := len(values) - 1; i >= 0; i-- {
		for !contracts.IsWorkday(day) {
			day = day.AddDate(0, 0, -1)
		}
		records[i] = contracts.DailyRecord{Date: day, DailyPoints: values[i]}
		day = day.AddDate(0, 0, -1)
	}
	return records
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 7
	return cfg
}

func newCoordinator(src contracts.SeriesSource, cfg Config, clock *fakeClock, opts ...Option) *Coordinator {
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return New(src, cfg, zerolog.Nop(), opts...)
}

func TestEstimate_CompletedShortCircuit(t *testing.T) {
	src := &countingSource{records: workdayRecords(500, 500)}
	c := newCoordinator(src, testConfig(), newClock())

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 1000, CurrentPoints: ptr(1000)})
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusCompleted, result.Status)
	assert.Equal(t, 0.0, result.DaysRemaining)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, contracts.MethodCompleted, result.Method)
	assert.Nil(t, result.Integration)
	require.NotNil(t, result.Completion)
	assert.Equal(t, contracts.CompletionExactly, result.Completion.Category)
	assert.Len(t, result.Estimates, 1)
}

func TestEstimate_CompletedMinimal(t *testing.T) {
	cfg := testConfig()
	cfg.SkipCompleted = true
	c := newCoordinator(&countingSource{records: workdayRecords(600)}, cfg, newClock())

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 500})
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusCompleted, result.Status)
	require.NotNil(t, result.Completion)
	assert.True(t, result.Completion.Minimal)
}

func TestEstimate_ConfigurationErrors(t *testing.T) {
	src := &countingSource{}
	c := newCoordinator(src, testConfig(), newClock())

	_, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 0})
	assert.ErrorIs(t, err, contracts.ErrInvalidTarget)

	_, err = c.Estimate(context.Background(), contracts.Request{TargetPoints: 100, ConfidenceLevel: 1.5})
	assert.ErrorIs(t, err, contracts.ErrInvalidConfidence)

	assert.Equal(t, 0, src.loads)
}

func TestEstimate_SourceUnreachable(t *testing.T) {
	cause := errors.New("connection refused")
	c := newCoordinator(&countingSource{err: cause}, testConfig(), newClock())

	_, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 100})
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestEstimate_EmptySeriesFallsBack(t *testing.T) {
	c := newCoordinator(&countingSource{}, testConfig(), newClock())

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 1000, CurrentPoints: ptr(0)})
	require.NoError(t, err)

	for _, m := range []contracts.Method{contracts.MethodSimpleAverage, contracts.MethodWeightedAverage} {
		e := result.Estimates[m]
		assert.Equal(t, contracts.StatusFallback, e.Status, m)
		assert.Equal(t, 30.0, e.DailyVelocity, m)
		assert.InDelta(t, 33.33, e.DaysRemaining, 0.01, m)
	}

	require.NotNil(t, result.Integration)
	assert.True(t, result.Integration.Fallback)
	assert.Equal(t, contracts.StatusFallback, result.Status)
	assert.Equal(t, contracts.MethodSimpleAverage, result.Method)
	assert.InDelta(t, 33.33, result.DaysRemaining, 0.01)
}

func TestEstimate_WorkdaySeries(t *testing.T) {
	src := &countingSource{records: workdayRecords(50, 55, 45, 60, 50, 48, 52)}
	c := newCoordinator(src, testConfig(), newClock())

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 1000, CurrentPoints: ptr(400)})
	require.NoError(t, err)

	wa := result.Estimates[contracts.MethodWeightedAverage]
	assert.Equal(t, contracts.StatusEstimated, wa.Status)
	assert.InDelta(t, 11.7, wa.DaysRemaining, 0.1)

	assert.Equal(t, contracts.StatusEstimated, result.Status)
	assert.Len(t, result.Estimates, 4)
	require.NotNil(t, result.Integration)
	assert.False(t, result.Integration.Fallback)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 600.0, result.Project.RemainingPoints)
	assert.Nil(t, result.Artifacts)
}

func TestEstimate_SparseSeriesStaysWithinHorizon(t *testing.T) {
	clock := newClock()
	src := &countingSource{records: workdayRecords(0, 0, 0, 0, 0, 0, 0, 0, 0, 1)}
	c := newCoordinator(src, testConfig(), clock)

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 1e6, CurrentPoints: ptr(1)})
	require.NoError(t, err)

	horizon := contracts.AddDays(clock.now(), contracts.MaxHorizonDays+1)
	for method, e := range result.Estimates {
		assert.False(t, e.EstimatedDate.Before(clock.now()), "%s date %v", method, e.EstimatedDate)
		assert.False(t, e.EstimatedDate.After(horizon), "%s date %v", method, e.EstimatedDate)
		assert.LessOrEqual(t, e.DaysRemaining, float64(contracts.MaxHorizonDays))
	}
	assert.True(t, result.Estimates[contracts.MethodSimpleAverage].HorizonCapped)
	assert.False(t, result.EstimatedDate.Before(clock.now()))

	require.NotNil(t, result.Integration)
	assert.Equal(t, contracts.ConsistencyVeryLow, result.Integration.Consistency.Tier)

	_, err = json.Marshal(result)
	assert.NoError(t, err)
}

func TestEstimate_CurrentDefaultsToSeriesTotal(t *testing.T) {
	c := newCoordinator(&countingSource{records: workdayRecords(100, 100, 100)}, testConfig(), newClock())

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 1000})
	require.NoError(t, err)
	assert.Equal(t, 300.0, result.Project.CurrentPoints)
	assert.Equal(t, 700.0, result.Project.RemainingPoints)
}

func TestEstimate_CacheIdempotence(t *testing.T) {
	clock := newClock()
	src := &countingSource{records: workdayRecords(50, 55, 45, 60, 50, 48, 52)}
	c := newCoordinator(src, testConfig(), clock)
	req := contracts.Request{TargetPoints: 1000, CurrentPoints: ptr(400)}

	first, err := c.Estimate(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Estimate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, src.loads)

	stats := c.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)

	// different key recomputes
	_, err = c.Estimate(context.Background(), contracts.Request{TargetPoints: 1000, CurrentPoints: ptr(400), ItemID: "sheet-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)

	// past TTL recomputes
	clock.advance(7 * time.Hour)
	third, err := c.Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, src.loads)
	assert.NotEqual(t, first.RunID, third.RunID)
}

func TestEstimate_BypassCache(t *testing.T) {
	src := &countingSource{records: workdayRecords(10, 20, 30)}
	c := newCoordinator(src, testConfig(), newClock())

	for i := 0; i < 2; i++ {
		_, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 500, Mode: contracts.ModeRealTime})
		require.NoError(t, err)
		_, err = c.Estimate(context.Background(), contracts.Request{TargetPoints: 500, BypassCache: true})
		require.NoError(t, err)
	}
	assert.Equal(t, 4, src.loads)
	assert.Equal(t, 0, c.CacheStats().Entries)

	cfg := testConfig()
	cfg.CacheEnabled = false
	disabled := newCoordinator(src, cfg, newClock())
	_, _ = disabled.Estimate(context.Background(), contracts.Request{TargetPoints: 500})
	_, _ = disabled.Estimate(context.Background(), contracts.Request{TargetPoints: 500})
	assert.Equal(t, 6, src.loads)
}

type panicStrategy struct{}

func (panicStrategy) Method() contracts.Method { return contracts.MethodLinearTrend }
func (panicStrategy) Estimate(float64, float64) contracts.Estimate {
	panic("singular matrix")
}

func TestEstimate_StrategyPanicBecomesErrorEstimate(t *testing.T) {
	registry := strategy.DefaultRegistry()
	registry[contracts.MethodLinearTrend] = func(strategy.Deps) strategy.Strategy { return panicStrategy{} }

	src := &countingSource{records: workdayRecords(50, 55, 45, 60, 50, 48, 52)}
	c := newCoordinator(src, testConfig(), newClock(), WithRegistry(registry))

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 1000, CurrentPoints: ptr(400)})
	require.NoError(t, err)

	lr := result.Estimates[contracts.MethodLinearTrend]
	assert.Equal(t, contracts.StatusError, lr.Status)
	assert.Equal(t, "singular matrix", lr.MethodDetails["error"])
	_, scored := result.Integration.Reliability[contracts.MethodLinearTrend]
	assert.False(t, scored)
	assert.Equal(t, contracts.StatusEstimated, result.Status)
}

func TestEstimate_DisabledMethodsAndNoIntegration(t *testing.T) {
	cfg := testConfig()
	cfg.EnableIntegration = false
	cfg.DisabledMethods = []contracts.Method{contracts.MethodMonteCarlo, contracts.MethodLinearTrend}

	src := &countingSource{records: workdayRecords(50, 55, 45, 60, 50, 48, 52)}
	c := newCoordinator(src, cfg, newClock())

	result, err := c.Estimate(context.Background(), contracts.Request{TargetPoints: 1000, CurrentPoints: ptr(400)})
	require.NoError(t, err)

	assert.Len(t, result.Estimates, 2)
	assert.Nil(t, result.Integration)
	assert.Equal(t, contracts.MethodWeightedAverage, result.Method)
	assert.InDelta(t, 11.7, result.DaysRemaining, 0.1)
}

func TestEstimate_ArtifactsByMode(t *testing.T) {
	src := &countingSource{records: workdayRecords(50, 55, 45, 60, 50, 48, 52)}
	c := newCoordinator(src, testConfig(), newClock())

	result, err := c.Estimate(context.Background(), contracts.Request{
		TargetPoints:  1000,
		CurrentPoints: ptr(400),
		Mode:          contracts.ModeMapsheet,
		ItemID:        "sheet-9",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Artifacts)
	burndown := result.Artifacts.Burndown
	require.NotEmpty(t, burndown)
	assert.Equal(t, 52.0+48+50+60+45+55+50, burndown[6].Actual)
	assert.Equal(t, 1000.0, burndown[len(burndown)-1].Projected)
	assert.Equal(t, "sheet-9", src.scopes[0].ItemID)
}

func TestWindow(t *testing.T) {
	clock := newClock()
	c := newCoordinator(&countingSource{}, testConfig(), clock)

	start, end := c.window(contracts.Request{})
	assert.Equal(t, time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, end.AddDate(0, 0, -30), start)

	from := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	start, end = c.window(contracts.Request{StartDate: &from, EndDate: &to})
	assert.Equal(t, contracts.TruncateDay(from), start)
	assert.Equal(t, to, end)
}

func TestConfigFrom(t *testing.T) {
	est := config.EstimationConfig{
		Mode:                 "advanced",
		ConfidenceLevel:      0.9,
		DaysBack:             45,
		EnableIntegration:    true,
		CacheEnabled:         true,
		CacheTTL:             time.Hour,
		MonteCarloIterations: 5000,
		DisabledMethods:      []string{"monte_carlo"},
	}

	cfg, err := ConfigFrom(est)
	require.NoError(t, err)
	assert.Equal(t, contracts.ModeAdvanced, cfg.Mode)
	assert.Equal(t, 5000, cfg.Strategy.MonteCarloIterations)
	assert.Equal(t, []contracts.Method{contracts.MethodMonteCarlo}, cfg.DisabledMethods)

	est.DisabledMethods = []string{"magic"}
	_, err = ConfigFrom(est)
	assert.Error(t, err)

	est.DisabledMethods = nil
	est.Mode = "weekly"
	_, err = ConfigFrom(est)
	assert.Error(t, err)
}

func TestRecommended(t *testing.T) {
	fallback := contracts.Estimate{Method: contracts.MethodSimpleAverage, Status: contracts.StatusFallback, Confidence: 0.1}
	lowWA := contracts.Estimate{Method: contracts.MethodWeightedAverage, Status: contracts.StatusEstimated, Confidence: 0.05}
	goodLR := contracts.Estimate{Method: contracts.MethodLinearTrend, Status: contracts.StatusEstimated, Confidence: 0.7}

	assert.Equal(t, goodLR, Recommended(map[contracts.Method]contracts.Estimate{
		contracts.MethodSimpleAverage:   fallback,
		contracts.MethodWeightedAverage: lowWA,
		contracts.MethodLinearTrend:     goodLR,
	}))
	assert.Equal(t, lowWA, Recommended(map[contracts.Method]contracts.Estimate{
		contracts.MethodSimpleAverage:   fallback,
		contracts.MethodWeightedAverage: lowWA,
	}))
	assert.Equal(t, fallback, Recommended(map[contracts.Method]contracts.Estimate{
		contracts.MethodSimpleAverage: fallback,
	}))
	assert.Equal(t, contracts.StatusError, Recommended(nil).Status)
}
