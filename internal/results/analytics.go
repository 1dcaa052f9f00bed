package results

import (
	"math"

	"github.com/pavelanni/examgrader/internal/model"
)

// ComputeAnalytics sums marks over results. The average is obtained marks as
// a percentage of possible marks, or 0 when nothing was possible.
func ComputeAnalytics(list []model.Result) model.Analytics {
	var a model.Analytics
	a.TotalTests = len(list)
	for _, r := range list {
		a.ObtainedMarks += r.TotalScore
		a.TotalMarksPossible += r.MaxScore
	}
	a.AveragePercent = Percent(a.ObtainedMarks, a.TotalMarksPossible)
	a.ObtainedMarks = round2(a.ObtainedMarks)
	return a
}

// Percent returns score as a percentage of possible rounded to two decimals,
// or 0 if possible is not positive.
func Percent(score float64, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return round2(score / float64(possible) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
