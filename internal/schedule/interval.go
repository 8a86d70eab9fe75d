// Package schedule decides whether a candidate booking collides with a
// barbershop's existing reservations for one calendar day.
//
// Times are minute-of-day integers in the UTC day. Every instant is
// normalized to UTC before extraction, so the same absolute time always maps
// to the same minute regardless of the zone offset it arrived with.
package schedule

import "time"

// Interval is a half-open [StartMinute, EndMinute) span within a single day.
type Interval struct {
	StartMinute int
	EndMinute   int
}

// MinuteOfDay converts an instant to its minute offset within its UTC day.
func MinuteOfDay(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}

// Overlaps reports whether the candidate [start, start+duration) interval
// intersects any existing interval. Two half-open intervals [s1,e1) and
// [s2,e2) overlap iff s1 < e2 && s2 < e1; touching endpoints do not count.
// The caller guarantees durationMinutes > 0.
func Overlaps(startMinute, durationMinutes int, existing []Interval) bool {
	endMinute := startMinute + durationMinutes

	for _, iv := range existing {
		if startMinute < iv.EndMinute && iv.StartMinute < endMinute {
			return true
		}
	}

	return false
}
