package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/surveyprogress/internal/contracts"
)

func sampleResult() *contracts.CompositeResult {
	best := contracts.MethodMonteCarlo
	date := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	return &contracts.CompositeResult{
		RunID:           "run-1",
		Mode:            contracts.ModeAdvanced,
		ItemID:          "sheet-3",
		Project:         contracts.NewProjectState(1000, 400),
		EstimatedDate:   date,
		DaysRemaining:   12,
		Confidence:      0.82,
		UncertaintyDays: 2,
		Method:          best,
		Status:          contracts.StatusEstimated,
		Estimates: map[contracts.Method]contracts.Estimate{
			contracts.MethodSimpleAverage: {Method: contracts.MethodSimpleAverage, Status: contracts.StatusEstimated, EstimatedDate: date, DaysRemaining: 14, Confidence: 0.7},
			contracts.MethodMonteCarlo:    {Method: contracts.MethodMonteCarlo, Status: contracts.StatusEstimated, EstimatedDate: date, DaysRemaining: 10, Confidence: 0.85},
		},
		Integration: &contracts.IntegrationResult{
			BestMethod:  &best,
			Reliability: map[contracts.Method]float64{contracts.MethodMonteCarlo: 0.9},
			Ensemble: contracts.EnsembleEstimate{
				MethodWeights: map[contracts.Method]float64{contracts.MethodMonteCarlo: 0.5, contracts.MethodSimpleAverage: 0.5},
			},
			Consistency:     contracts.ConsistencyReport{Tier: contracts.ConsistencyHigh, DateRangeDays: 4, MethodCount: 2},
			Recommendations: []string{"collect more history"},
		},
		Summary: contracts.SeriesSummary{Quality: contracts.QualityGood, Trend: "stable"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "sheet-3")
	assert.Contains(t, out, "2024-04-10")
	assert.Contains(t, out, "82.0%")
	assert.Contains(t, out, "monte_carlo")
	assert.Contains(t, out, "simple_average")
	assert.Contains(t, out, "Consistency: high")
	assert.Contains(t, out, "collect more history")

	// priority order: monte carlo before simple average
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("monte_carlo")), bytes.LastIndex(buf.Bytes(), []byte("simple_average")))
}

func TestWriteTable_Completed(t *testing.T) {
	done := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	result := &contracts.CompositeResult{
		RunID:   "run-2",
		Mode:    contracts.ModeBasic,
		Project: contracts.NewProjectState(500, 520),
		Method:  contracts.MethodCompleted,
		Status:  contracts.StatusCompleted,
		Completion: &contracts.CompletionReport{
			CompletionRate:       104,
			Category:             contracts.CompletionSlightlyOver,
			ActualCompletionDate: &done,
			DaysEarly:            10,
			EfficiencyScore:      0.95,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, result))
	out := buf.String()
	assert.Contains(t, out, "slightly_over")
	assert.Contains(t, out, "2024-03-20")
	assert.Contains(t, out, "0.95")
}

func TestWriteTable_Nil(t *testing.T) {
	assert.Error(t, WriteTable(&bytes.Buffer{}, nil))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "monte_carlo", decoded["method"])
	assert.Equal(t, 12.0, decoded["days_remaining"])
}

func TestWriteBatch(t *testing.T) {
	items := []contracts.BatchItem{
		{ItemID: "sheet-1", TargetPoints: 1000, Result: sampleResult()},
		{ItemID: "sheet-2", TargetPoints: 500, Error: "historical data unavailable"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBatch(&buf, FormatTable, items))
	out := buf.String()
	assert.Contains(t, out, "sheet-2")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "2 items, 1 failed")

	buf.Reset()
	require.NoError(t, WriteBatch(&buf, FormatJSON, items))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "historical data unavailable", decoded[1]["error"])
}
