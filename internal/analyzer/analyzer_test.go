package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// 2024-03-04 is a Monday
var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func series(values ...float64) contracts.Series {
	records := make([]contracts.DailyRecord, len(values))
	for i, v := range values {
		records[i] = contracts.DailyRecord{Date: monday.AddDate(0, 0, i), DailyPoints: v}
	}
	return contracts.NewSeries(records)
}

func TestAnalyzer_EmptySeries(t *testing.T) {
	a := New(contracts.Series{})

	assert.Equal(t, Summary{}, a.Summary())
	assert.Empty(t, a.RollingAverage(7))
	assert.Equal(t, TrendStable, a.VelocityTrend(7).Direction)

	q := a.Quality()
	assert.Equal(t, contracts.QualityInsufficient, q.Tier)
	assert.Equal(t, 0, q.TotalDays)
	assert.Equal(t, 0.0, q.ActivityRate)
}

func TestAnalyzer_Summary(t *testing.T) {
	// Mon..Sun: weekend values 0 and 4
	a := New(series(10, 20, 30, 0, 10, 0, 4))
	s := a.Summary()

	assert.Equal(t, 7, s.Count)
	assert.Equal(t, 5, s.ActiveDays)
	assert.InDelta(t, 74.0/7, s.Mean, 1e-9)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 30.0, s.Max)
	assert.InDelta(t, 14.0, s.WorkdayMean, 1e-9)
	assert.InDelta(t, 2.0, s.WeekendMean, 1e-9)
	assert.Equal(t, 74.0, s.TotalPoints)
	assert.Equal(t, 7, s.SpanDays)
	assert.Greater(t, s.StdDev, 0.0)
}

func TestAnalyzer_RollingAverage(t *testing.T) {
	a := New(series(2, 4, 6, 8))

	assert.Equal(t, []float64{2, 3, 4, 6}, a.RollingAverage(2))
	assert.Equal(t, []float64{2, 3, 4, 5}, a.RollingAverage(7))

	all := a.RollingAverages(1, 3)
	assert.Equal(t, []float64{2, 4, 6, 8}, all[1])
	assert.Equal(t, []float64{2, 3, 4, 6}, all[3])
}

func TestAnalyzer_VelocityTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   TrendDirection
	}{
		{"increasing", []float64{1, 1, 1, 5, 5, 5}, TrendIncreasing},
		{"decreasing", []float64{5, 5, 5, 1, 1, 1}, TrendDecreasing},
		{"stable", []float64{3, 3, 3, 3, 3, 3}, TrendStable},
		{"uses trailing window only", []float64{100, 100, 1, 1, 2, 2}, TrendIncreasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := New(series(tt.values...)).VelocityTrend(2)
			assert.Equal(t, tt.want, trend.Direction)
		})
	}
}

func TestAnalyzer_Quality(t *testing.T) {
	active := make([]float64, 30)
	for i := range active {
		active[i] = 5
	}
	assert.Equal(t, contracts.QualityExcellent, New(series(active...)).Quality().Tier)
	assert.Equal(t, contracts.QualityGood, New(series(active[:14]...)).Quality().Tier)
	assert.Equal(t, contracts.QualityFair, New(series(active[:7]...)).Quality().Tier)
	assert.Equal(t, contracts.QualityPoor, New(series(5, 0, 0)).Quality().Tier)

	q := New(series(5, 0, 5, 0)).Quality()
	assert.Equal(t, 0.5, q.ActivityRate)
	assert.Equal(t, 4, q.TotalDays)
}

func TestAnalyzer_Pools(t *testing.T) {
	a := New(series(1, 2, 3, 4, 5, 6, 7, 8))

	workday, weekend := a.Pools(8)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 8}, workday)
	assert.Equal(t, []float64{6, 7}, weekend)

	workday, weekend = a.Pools(2)
	assert.Equal(t, []float64{8}, workday)
	assert.Equal(t, []float64{7}, weekend)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 3.0, Percentile(sorted, 50))
	assert.Equal(t, 5.0, Percentile(sorted, 100))
	assert.Equal(t, 2.0, Percentile(sorted, 25))
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{4}))
	assert.InDelta(t, 2.0, PopulationStdDev([]float64{10, 14}), 1e-9)
	assert.InDelta(t, 2.8284, StdDev([]float64{10, 14}), 1e-4)
}
