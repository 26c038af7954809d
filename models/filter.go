package models

import "time"

// Device selects which client class a report is restricted to.
type Device string

const (
	DeviceAll    Device = "all"
	DevicePC     Device = "pc"
	DeviceMobile Device = "mobile"
)

// Filter is the per-request filter context shared by every query a report
// issues. Build it once and pass it by value.
type Filter struct {
	Domain string
	From   time.Time // first day, inclusive
	To     time.Time // last day, inclusive
	Device Device
	Cohort int64 // cluster id, 0 when no cohort is selected
}

// RangeStart is midnight of the first reported day.
func (f Filter) RangeStart() time.Time {
	return startOfDay(f.From)
}

// RangeEnd is midnight of the day after the last reported day (exclusive bound).
func (f Filter) RangeEnd() time.Time {
	return startOfDay(f.To).AddDate(0, 0, 1)
}

func (f Filter) HasCohort() bool { return f.Cohort > 0 }

func (f Filter) HasDevice() bool { return f.Device == DevicePC || f.Device == DeviceMobile }

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
