package store

import (
	"math"

	"caratdash/api/models"
)

// Rates are rounded up, never half-even, so a rate is never understated.
// Every rate is 0 when its denominator is 0. Numerators are scaled before
// dividing so exact quotients such as 7/100 are not pushed up a step.

// CeilRate returns ceil(num/den*100)/100, a fraction with two decimals.
func CeilRate(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return math.Ceil(num*100/den) / 100
}

// CeilPercent returns ceil(num/den*100*100)/100, a percentage with two decimals.
func CeilPercent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return math.Ceil(num*100*100/den) / 100
}

// RoundPercent returns num/den*100 rounded half away from zero to two decimals.
func RoundPercent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(num*100*100/den) / 100
}

func coalesce[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// finite maps NaN and infinities, as produced by avg over no rows, to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ApplyMediaMetrics derives newVisitors and the three media rates from the
// raw aggregate fields of row.
func ApplyMediaMetrics(row *models.MediaRow) {
	row.NewVisitors = int64(row.UniqueVisitors) - int64(row.ReturningVisitors)
	row.NewRate = CeilRate(float64(row.NewVisitors), float64(row.UniqueVisitors))
	row.BounceRate = CeilRate(float64(row.Bounces), float64(row.Sessions))
	row.SpecRate = CeilRate(float64(row.SessionSpecs), float64(row.Sessions))
}

func ApplyExitMetrics(row *models.ExitPageRow) {
	row.ExitRate = CeilPercent(float64(row.Exits), float64(row.Sessions))
}

// ApplyBrowserShare sets each row's share of total visitors.
func ApplyBrowserShare(rows []models.BrowserRow, total uint64) {
	for i := range rows {
		rows[i].Rate = RoundPercent(float64(rows[i].Visitors), float64(total))
	}
}
