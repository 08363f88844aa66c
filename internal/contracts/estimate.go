package contracts

import "time"

// Method estimation strategy identifier
type Method string

const (
	MethodSimpleAverage   Method = "simple_average"
	MethodWeightedAverage Method = "weighted_average"
	MethodLinearTrend     Method = "linear_regression"
	MethodMonteCarlo      Method = "monte_carlo"
	MethodCompleted       Method = "completed"
)

// MethodPriority tie-break order, highest first
var MethodPriority = []Method{
	MethodMonteCarlo,
	MethodLinearTrend,
	MethodWeightedAverage,
	MethodSimpleAverage,
}

// Rank returns the tie-break rank of a method (lower wins)
func (m Method) Rank() int {
	for i, p := range MethodPriority {
		if p == m {
			return i
		}
	}
	return len(MethodPriority)
}

// EstimateStatus outcome of a single strategy run
type EstimateStatus string

const (
	StatusEstimated EstimateStatus = "estimated"
	StatusCompleted EstimateStatus = "completed"
	StatusFallback  EstimateStatus = "fallback"
	StatusError     EstimateStatus = "error"
)

// Estimate produced by exactly one strategy
type Estimate struct {
	EstimatedDate   time.Time              `json:"estimated_date"`
	DaysRemaining   float64                `json:"days_remaining"`
	Confidence      float64                `json:"confidence"`       // 0.0 ~ 1.0
	UncertaintyDays float64                `json:"uncertainty_days"` // >= 0
	DailyVelocity   float64                `json:"daily_velocity"`   // points/day implied
	Status          EstimateStatus         `json:"status"`
	Method          Method                 `json:"method"`
	MethodDetails   map[string]interface{} `json:"method_details,omitempty"`
	HorizonCapped   bool                   `json:"horizon_capped,omitempty"` // projection clamped to MaxHorizonDays
}

// IsUsable reports whether the integrator may consider this estimate
func (e Estimate) IsUsable() bool {
	return e.Status != StatusFallback && e.Status != StatusError && e.Confidence > 0.1
}

// EnsembleEstimate reliability-weighted combination of estimates
type EnsembleEstimate struct {
	EstimatedDate   time.Time          `json:"estimated_date"`
	DaysRemaining   float64            `json:"days_remaining"`
	Confidence      float64            `json:"confidence"`
	UncertaintyDays float64            `json:"uncertainty_days"`
	MethodsUsed     []Method           `json:"methods_used"`
	MethodWeights   map[Method]float64 `json:"method_weights"` // sums to 1.0
}

// IsEmpty reports an ensemble without contributing methods
func (e EnsembleEstimate) IsEmpty() bool {
	return len(e.MethodsUsed) == 0
}

// ConsistencyTier agreement level across methods
type ConsistencyTier string

const (
	ConsistencyHigh         ConsistencyTier = "high"
	ConsistencyMedium       ConsistencyTier = "medium"
	ConsistencyLow          ConsistencyTier = "low"
	ConsistencyVeryLow      ConsistencyTier = "very_low"
	ConsistencyInsufficient ConsistencyTier = "insufficient_data"
	ConsistencyError        ConsistencyTier = "error"
)

// ConsistencyReport how tightly the methods agree
type ConsistencyReport struct {
	Tier                   ConsistencyTier `json:"tier"`
	Score                  float64         `json:"score"`
	DateRangeDays          float64         `json:"date_range_days"`
	CoefficientOfVariation float64         `json:"coefficient_of_variation"`
	MethodCount            int             `json:"method_count"`
}

// QualityTier data-quality classification of a series
type QualityTier string

const (
	QualityExcellent    QualityTier = "excellent"
	QualityGood         QualityTier = "good"
	QualityFair         QualityTier = "fair"
	QualityPoor         QualityTier = "poor"
	QualityInsufficient QualityTier = "insufficient"
)

// QualitySignals inputs the integrator uses for reliability scoring
type QualitySignals struct {
	Tier         QualityTier `json:"quality_tier"`
	TotalDays    int         `json:"total_days"`
	ActivityRate float64     `json:"activity_rate"` // active days / total days
}

// IntegrationResult output of the method integrator
type IntegrationResult struct {
	BestMethod      *Method            `json:"best_method"`
	Reliability     map[Method]float64 `json:"reliability"`
	Ensemble        EnsembleEstimate   `json:"ensemble"`
	Consistency     ConsistencyReport  `json:"consistency"`
	Recommendations []string           `json:"recommendations"`
	Confidence      float64            `json:"confidence"`
	Fallback        bool               `json:"fallback"`
}

// CompletionCategory band of over-achievement for a completed project
type CompletionCategory string

const (
	CompletionExactly           CompletionCategory = "exactly"
	CompletionSlightlyOver      CompletionCategory = "slightly_over"
	CompletionModeratelyOver    CompletionCategory = "moderately_over"
	CompletionSignificantlyOver CompletionCategory = "significantly_over"
)

// CompletionReport retrospective view of a completed project
type CompletionReport struct {
	CompletionRate       float64            `json:"completion_rate"` // percent
	ExcessRate           float64            `json:"excess_rate"`     // percent over target
	ExcessPoints         float64            `json:"excess_points"`
	Category             CompletionCategory `json:"completion_category"`
	ActualCompletionDate *time.Time         `json:"actual_completion_date,omitempty"`
	DaysEarly            int                `json:"days_early"`
	EfficiencyScore      float64            `json:"efficiency_score"`
	Minimal              bool               `json:"minimal"`
}

// BurndownPoint one point of the progress artifact
type BurndownPoint struct {
	Date      time.Time `json:"date"`
	Actual    float64   `json:"actual,omitempty"`
	Projected float64   `json:"projected,omitempty"`
}

// Artifacts presentation data attached by mode
type Artifacts struct {
	Burndown []BurndownPoint `json:"burndown,omitempty"`
}

// SeriesSummary statistics snapshot included in the composite result
type SeriesSummary struct {
	Mean        float64     `json:"mean"`
	StdDev      float64     `json:"std_dev"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Count       int         `json:"count"`
	ActiveDays  int         `json:"active_days"`
	WorkdayMean float64     `json:"workday_mean"`
	Trend       string      `json:"trend"`
	Quality     QualityTier `json:"quality_tier"`
}

// CompositeResult one estimation call's full output
// ⭐ SSOT: the only value the coordinator caches
type CompositeResult struct {
	RunID           string              `json:"run_id"`
	GeneratedAt     time.Time           `json:"generated_at"`
	Mode            Mode                `json:"mode"`
	ItemID          string              `json:"item_id,omitempty"`
	Project         ProjectState        `json:"project"`
	EstimatedDate   time.Time           `json:"estimated_date"`
	DaysRemaining   float64             `json:"days_remaining"`
	Confidence      float64             `json:"confidence"`
	UncertaintyDays float64             `json:"uncertainty_days"`
	Method          Method              `json:"method"`
	Status          EstimateStatus      `json:"status"`
	Estimates       map[Method]Estimate `json:"estimates,omitempty"`
	Integration     *IntegrationResult  `json:"integration,omitempty"`
	Completion      *CompletionReport   `json:"completion,omitempty"`
	Summary         SeriesSummary       `json:"summary"`
	Artifacts       *Artifacts          `json:"artifacts,omitempty"`
}

// BatchItem one entry of a batch estimation; exactly one of Result/Error is set
type BatchItem struct {
	ItemID       string           `json:"item_id"`
	TargetPoints float64          `json:"target_points"`
	Result       *CompositeResult `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
}
