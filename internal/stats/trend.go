package stats

import "github.com/shopspring/decimal"

// Trend compares two aggregated values. Lower emissions are better, so the
// direction lives in IsImprovement and PercentageChange is always a magnitude.
type Trend struct {
	Current          float64 `json:"current"`
	Previous         float64 `json:"previous"`
	PercentageChange float64 `json:"percentage_change"`
	IsImprovement    bool    `json:"is_improvement"`
}

// TrendBetween returns the relative change from previous to current. A zero
// previous value yields a zero change rather than an infinite one.
func TrendBetween(current, previous float64) Trend {
	t := Trend{
		Current:       current,
		Previous:      previous,
		IsImprovement: current < previous,
	}
	if previous == 0 {
		return t
	}

	prev := decimal.NewFromFloat(previous)
	change := decimal.NewFromFloat(current).Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
	t.PercentageChange = change.Abs().Round(Places).InexactFloat64()
	return t
}

// CompareSummaries is TrendBetween over two windows' totals.
func CompareSummaries(current, previous Summary) Trend {
	return TrendBetween(current.TotalCO2, previous.TotalCO2)
}
