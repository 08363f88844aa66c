package contracts

import (
	"math"
	"sort"
	"time"
)

// DailyRecord one day of completed survey points
type DailyRecord struct {
	Date             time.Time `json:"date"`
	DailyPoints      float64   `json:"daily_points"`
	CumulativePoints float64   `json:"cumulative_points"` // derived by NewSeries
	IsWorkday        bool      `json:"is_workday"`        // derived by NewSeries
	TeamsActive      int       `json:"teams_active,omitempty"`
}

// Series is an ascending, duplicate-free list of daily records.
// ⭐ SSOT: cumulative/workday fields are only derived in NewSeries
type Series []DailyRecord

// NewSeries normalizes raw records into a Series.
// Records are truncated to calendar days and sorted ascending; records that
// share a date are merged (points summed, teams_active max). Negative daily
// deltas are clamped to zero.
func NewSeries(records []DailyRecord) Series {
	if len(records) == 0 {
		return Series{}
	}

	byDay := make(map[time.Time]*DailyRecord, len(records))
	for _, r := range records {
		day := TruncateDay(r.Date)
		points := r.DailyPoints
		if points < 0 {
			points = 0
		}

		existing, ok := byDay[day]
		if !ok {
			byDay[day] = &DailyRecord{Date: day, DailyPoints: points, TeamsActive: r.TeamsActive}
			continue
		}
		existing.DailyPoints += points
		if r.TeamsActive > existing.TeamsActive {
			existing.TeamsActive = r.TeamsActive
		}
	}

	series := make(Series, 0, len(byDay))
	for _, r := range byDay {
		series = append(series, *r)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	var cumulative float64
	for i := range series {
		cumulative += series[i].DailyPoints
		series[i].CumulativePoints = cumulative
		series[i].IsWorkday = IsWorkday(series[i].Date)
	}

	return series
}

// Len returns the number of records
func (s Series) Len() int { return len(s) }

// Total returns the cumulative points at the end of the series
func (s Series) Total() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].CumulativePoints
}

// Tail returns the trailing n records (all records when n >= len)
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// DailyPoints returns the daily deltas in date order
func (s Series) DailyPoints() []float64 {
	values := make([]float64, len(s))
	for i, r := range s {
		values[i] = r.DailyPoints
	}
	return values
}

// SpanDays returns the number of calendar days covered, inclusive.
func (s Series) SpanDays() int {
	if len(s) == 0 {
		return 0
	}
	return DaysBetween(s[0].Date, s[len(s)-1].Date) + 1
}

// ProjectState target/current point counts for one estimation call
type ProjectState struct {
	TargetPoints    float64 `json:"target_points"`
	CurrentPoints   float64 `json:"current_points"`
	RemainingPoints float64 `json:"remaining_points"`
	IsCompleted     bool    `json:"is_completed"`
}

// NewProjectState derives remaining points and completion
func NewProjectState(target, current float64) ProjectState {
	remaining := target - current
	if remaining < 0 {
		remaining = 0
	}
	return ProjectState{
		TargetPoints:    target,
		CurrentPoints:   current,
		RemainingPoints: remaining,
		IsCompleted:     target > 0 && current >= target,
	}
}

// CompletionRate returns current/target in percent (0 when target <= 0)
func (p ProjectState) CompletionRate() float64 {
	if p.TargetPoints <= 0 {
		return 0
	}
	return p.CurrentPoints / p.TargetPoints * 100
}

// TruncateDay drops the time-of-day component, keeping the location
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns whole calendar days from a to b
func DaysBetween(a, b time.Time) int {
	a, b = TruncateDay(a), TruncateDay(b)
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// IsWorkday reports Monday through Friday
func IsWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// MaxHorizonDays furthest projection an estimated date may reach (100 years)
const MaxHorizonDays = 36500

// ClampHorizon bounds days to [0, MaxHorizonDays]; NaN maps to the horizon
func ClampHorizon(days float64) float64 {
	switch {
	case math.IsNaN(days) || days > MaxHorizonDays:
		return MaxHorizonDays
	case days < 0:
		return 0
	}
	return days
}

// AddDays adds a possibly fractional number of days, never past MaxHorizonDays
func AddDays(t time.Time, days float64) time.Time {
	if math.IsNaN(days) || days > MaxHorizonDays {
		days = MaxHorizonDays
	} else if days < -MaxHorizonDays {
		days = -MaxHorizonDays
	}
	whole, frac := math.Modf(days)
	return t.AddDate(0, 0, int(whole)).Add(time.Duration(frac * 24 * float64(time.Hour)))
}
