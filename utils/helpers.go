package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"caratdash/api/models"
)

// DayLayout is the date format of the from/to request parameters.
const DayLayout = "2006-01-02"

var devicePattern = regexp.MustCompile(`^(pc|mobile)$`)

// IntOrDefault parses a positive integer, returning def for anything else.
// Missing or malformed values are never an error.
func IntOrDefault(raw string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// ParseDevice maps anything other than pc or mobile to all devices.
func ParseDevice(raw string) models.Device {
	if devicePattern.MatchString(raw) {
		return models.Device(raw)
	}
	return models.DeviceAll
}

// ParseCohort returns the cluster id, or 0 when raw is not a positive integer.
func ParseCohort(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// ParseDay parses a YYYY-MM-DD date in UTC.
func ParseDay(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("'%s' query parameter is required (e.g. 2016-09-12)", name)
	}
	t, err := time.ParseInLocation(DayLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid '%s' date format, use YYYY-MM-DD (e.g. 2016-09-12)", name)
	}
	return t, nil
}
