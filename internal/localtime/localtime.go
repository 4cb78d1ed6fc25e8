// Package localtime formats match times in the upstream's regional timezone.
//
// The schedule API keys its days and the playlist shows kick-off times in
// UTC+7 regardless of where this process runs, so every conversion here goes
// through a fixed-offset zone instead of the host's local zone.
package localtime

import (
	"fmt"
	"time"
)

// Zone is the fixed regional timezone (UTC+7) used for all calendar math.
var Zone = time.FixedZone("UTC+7", 7*60*60)

var dayNames = [...]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// RelativeDayTime renders a unix timestamp as "DAYLABEL DD/MM HH:MM" where
// DAYLABEL is TODAY, TMR, or a three-letter weekday, relative to now.
// Both instants are compared by calendar date in Zone.
func RelativeDayTime(unix int64, now time.Time) string {
	t := time.Unix(unix, 0).In(Zone)
	n := now.In(Zone)

	label := dayNames[int(t.Weekday())]
	if sameDate(t, n) {
		label = "TODAY"
	} else if sameDate(t, n.AddDate(0, 0, 1)) {
		label = "TMR"
	}
	return fmt.Sprintf("%s %02d/%02d %02d:%02d", label, t.Day(), int(t.Month()), t.Hour(), t.Minute())
}

// Clock renders a unix timestamp as "HH:MM" in Zone.
func Clock(unix int64) string {
	t := time.Unix(unix, 0).In(Zone)
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// DateKey returns the schedule API's calendar-date key ("DD-MM-YYYY") for
// now shifted by daysOffset days, in Zone.
func DateKey(now time.Time, daysOffset int) string {
	t := now.In(Zone).AddDate(0, 0, daysOffset)
	return fmt.Sprintf("%02d-%02d-%04d", t.Day(), int(t.Month()), t.Year())
}

// DateKeysForWindow returns the date keys covering every calendar day touched
// by the window [now - hoursBack, now + hoursAhead]. When the window start
// falls before today's midnight the previous day's key is included, and when
// the window end reaches past tomorrow's midnight the following day's key is,
// so matches near the boundary are never missed.
func DateKeysForWindow(now time.Time, hoursBack, hoursAhead int) []string {
	start := now.In(Zone).Add(-time.Duration(hoursBack) * time.Hour)
	end := now.In(Zone).Add(time.Duration(hoursAhead) * time.Hour)

	day := midnight(start)
	last := midnight(end)
	var keys []string
	for !day.After(last) {
		keys = append(keys, fmt.Sprintf("%02d-%02d-%04d", day.Day(), int(day.Month()), day.Year()))
		day = day.AddDate(0, 0, 1)
	}
	return keys
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Zone)
}
