package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caratdash/api/models"
)

func TestIntOrDefault(t *testing.T) {
	assert.Equal(t, 25, IntOrDefault("25", 5))
	assert.Equal(t, 25, IntOrDefault(" 25 ", 5))
	assert.Equal(t, 5, IntOrDefault("", 5))
	assert.Equal(t, 5, IntOrDefault("abc", 5))
	assert.Equal(t, 5, IntOrDefault("-3", 5))
	assert.Equal(t, 0, IntOrDefault("0", 0))
}

func TestParseDevice(t *testing.T) {
	assert.Equal(t, models.DevicePC, ParseDevice("pc"))
	assert.Equal(t, models.DeviceMobile, ParseDevice("mobile"))
	assert.Equal(t, models.DeviceAll, ParseDevice("all"))
	assert.Equal(t, models.DeviceAll, ParseDevice("PC"))
	assert.Equal(t, models.DeviceAll, ParseDevice("pc' OR 1=1"))
}

func TestParseCohort(t *testing.T) {
	assert.Equal(t, int64(12), ParseCohort("12"))
	assert.Zero(t, ParseCohort(""))
	assert.Zero(t, ParseCohort("0"))
	assert.Zero(t, ParseCohort("1; DROP TABLE cluster_client"))
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("from", "2016-09-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 9, 12, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDay("from", "")
	assert.ErrorContains(t, err, "'from' query parameter is required")

	_, err = ParseDay("to", "12/09/2016")
	assert.ErrorContains(t, err, "invalid 'to' date format")
}
