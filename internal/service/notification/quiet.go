package notification

import "time"

// parseClock parses an "HH:MM" time-of-day into minutes since midnight.
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// inQuietHours reports whether now falls inside the [start, end] window.
// A window with start > end wraps midnight (e.g. 22:00-06:00). If either
// bound is absent or malformed, quiet hours never apply.
func inQuietHours(now time.Time, start, end string) bool {
	if start == "" || end == "" {
		return false
	}

	startMin, ok := parseClock(start)
	if !ok {
		return false
	}
	endMin, ok := parseClock(end)
	if !ok {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()

	if startMin > endMin {
		return nowMin >= startMin || nowMin <= endMin
	}
	return nowMin >= startMin && nowMin <= endMin
}

// nextQuietHoursEnd returns today's quiet-hours end, or tomorrow's when
// today's has already passed.
func nextQuietHoursEnd(now time.Time, end string) time.Time {
	endMin, ok := parseClock(end)
	if !ok {
		return now
	}

	t := time.Date(now.Year(), now.Month(), now.Day(), endMin/60, endMin%60, 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
