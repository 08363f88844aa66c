package coordinator

import (
	"math"
	"time"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// maxProjectedPoints bounds the projected tail of the burndown
const maxProjectedPoints = 365

// Burndown historical cumulative points followed by a straight-line
// projection from the current points to the target at the estimated date
func Burndown(series contracts.Series, state contracts.ProjectState, reference time.Time, daysRemaining float64) []contracts.BurndownPoint {
	points := make([]contracts.BurndownPoint, 0, len(series)+int(math.Min(math.Ceil(daysRemaining), maxProjectedPoints))+1)
	for _, r := range series {
		points = append(points, contracts.BurndownPoint{Date: r.Date, Actual: r.CumulativePoints})
	}

	if state.RemainingPoints <= 0 || daysRemaining <= 0 {
		return points
	}

	reference = contracts.TruncateDay(reference)
	days := int(math.Min(math.Ceil(daysRemaining), maxProjectedPoints))
	perDay := state.RemainingPoints / daysRemaining

	points = append(points, contracts.BurndownPoint{Date: reference, Projected: state.CurrentPoints})
	for d := 1; d <= days; d++ {
		projected := math.Min(state.TargetPoints, state.CurrentPoints+perDay*float64(d))
		points = append(points, contracts.BurndownPoint{
			Date:      reference.AddDate(0, 0, d),
			Projected: projected,
		})
	}
	return points
}
