package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"caratdash/api/models"
)

func TestCeilRateRoundsUp(t *testing.T) {
	assert.Equal(t, 0.94, CeilRate(19156, 20397))
	assert.Equal(t, 0.48, CeilRate(11142, 23515))
	assert.Equal(t, 0.07, CeilRate(7, 100))
	assert.Equal(t, 0.34, CeilRate(1, 3))
	assert.Equal(t, 1.0, CeilRate(5, 5))
}

func TestCeilRateExactQuotients(t *testing.T) {
	// 7.0/100*100 is 7.000000000000001 in float64; scaling first keeps it at 7.
	assert.Equal(t, 0.07, CeilRate(7, 100))
	assert.Equal(t, 0.29, CeilRate(29, 100))
	assert.Equal(t, 57.0, CeilPercent(57, 100))
	assert.Equal(t, 0.56, CeilRate(14, 25))
}

func TestCeilPercent(t *testing.T) {
	assert.Equal(t, 34.97, CeilPercent(8463, 24201))
	assert.Equal(t, 82.11, CeilPercent(6748, 8219))
	assert.Equal(t, 33.34, CeilPercent(1, 3))
}

func TestRoundPercentRoundsHalfAway(t *testing.T) {
	assert.Equal(t, 33.33, RoundPercent(1, 3))
	assert.Equal(t, 66.67, RoundPercent(2, 3))
	assert.Equal(t, 12.5, RoundPercent(1, 8))
}

func TestZeroDenominatorYieldsZero(t *testing.T) {
	assert.Zero(t, CeilRate(3, 0))
	assert.Zero(t, CeilPercent(3, 0))
	assert.Zero(t, RoundPercent(3, 0))

	media := models.MediaRow{UniqueVisitors: 0, Sessions: 0, Bounces: 4, SessionSpecs: 2}
	ApplyMediaMetrics(&media)
	assert.Zero(t, media.NewRate)
	assert.Zero(t, media.BounceRate)
	assert.Zero(t, media.SpecRate)
	assert.False(t, math.IsNaN(media.NewRate))

	exit := models.ExitPageRow{Exits: 3, Sessions: 0}
	ApplyExitMetrics(&exit)
	assert.Zero(t, exit.ExitRate)
}

func TestApplyMediaMetrics(t *testing.T) {
	row := models.MediaRow{
		UniqueVisitors:    20397,
		ReturningVisitors: 1241,
		Sessions:          23515,
		Bounces:           11142,
		SessionSpecs:      2100,
	}
	ApplyMediaMetrics(&row)

	assert.Equal(t, int64(19156), row.NewVisitors)
	assert.Equal(t, 0.94, row.NewRate)
	assert.Equal(t, 0.48, row.BounceRate)
	assert.Equal(t, 0.09, row.SpecRate)

	again := row
	ApplyMediaMetrics(&again)
	assert.Equal(t, row, again, "metrics depend only on raw fields")
}

func TestApplyBrowserShare(t *testing.T) {
	rows := []models.BrowserRow{
		{Browser: "Chrome", Visitors: 2},
		{Browser: "Safari", Visitors: 1},
	}
	ApplyBrowserShare(rows, 3)
	assert.Equal(t, 66.67, rows[0].Rate)
	assert.Equal(t, 33.33, rows[1].Rate)

	ApplyBrowserShare(rows, 0)
	assert.Zero(t, rows[0].Rate)
}

func TestFiniteAndCoalesce(t *testing.T) {
	assert.Zero(t, finite(math.NaN()))
	assert.Zero(t, finite(math.Inf(1)))
	assert.Equal(t, 1.5, finite(1.5))

	var missing *float64
	v := 2.5
	assert.Zero(t, coalesce(missing))
	assert.Equal(t, 2.5, coalesce(&v))
}
