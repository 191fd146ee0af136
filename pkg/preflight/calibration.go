package preflight

import (
	"sort"
	"strings"
	"time"

	"github.com/openrig/rigup/pkg/params"
)

// freshness is how long a calibration stays valid. Month windows follow the
// calendar (AddDate), not a fixed day count.
type freshness struct {
	days   int
	months int
}

// calibrationWindows maps each calibration date parameter to its freshness
// window. A calibration is stale once strictly more than a window has passed:
// a date exactly at the boundary is still fresh.
var calibrationWindows = map[string]freshness{
	params.KeyF2TTLCalibrationDate: {days: 7},
	params.KeyScreenFreqTestDate:   {months: 4},
	params.KeyScreenLuxDate:        {months: 4},
	params.KeyWaterCalibrationDate: {months: 1},
	params.KeyBpodTTLTestDate:      {months: 4},
}

// stale reports whether a calibration done on date has expired by today.
func (f freshness) stale(date, today time.Time) bool {
	return date.AddDate(0, f.months, f.days).Before(today)
}

// CalibrationDates checks that every calibration subsystem has a recorded
// date and that none of them has gone stale. Dates and calibration values
// are written together by the calibration tasks, so checking the dates is
// enough to know the values are there too.
func (c *Checker) CalibrationDates() Result {
	dates := c.pars.CalibrationDates()

	var missing, unknown []string
	for key := range calibrationWindows {
		if dates[key] == "" {
			missing = append(missing, key)
		}
	}
	for key := range dates {
		if _, ok := calibrationWindows[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		c.log.Warnf("unknown calibration date keys: %v", unknown)
		return fail(ProbeCalibrationDates, "unknown keys: "+strings.Join(unknown, ", "), nil)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		c.log.Warnf("not all calibration dates are present: %v", missing)
		return fail(ProbeCalibrationDates, "missing: "+strings.Join(missing, ", "), nil)
	}

	today := truncateToDay(c.now())

	var outdated []string
	for key, window := range calibrationWindows {
		date, err := c.pars.ParseDate(key)
		if err != nil {
			c.log.WithError(err).Warnf("bad calibration date %s", key)
			return fail(ProbeCalibrationDates, "unparseable date "+key, err)
		}
		if window.stale(date, today) {
			outdated = append(outdated, key)
		}
	}
	if len(outdated) > 0 {
		sort.Strings(outdated)
		c.log.Warnf("outdated calibrations: %v", outdated)
		return fail(ProbeCalibrationDates, "outdated: "+strings.Join(outdated, ", "), nil)
	}

	return pass(ProbeCalibrationDates, "all calibrations current")
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
