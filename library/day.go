package library

import "time"

// Day counts whole days since the Unix epoch (UTC).
type Day int

const secondsPerDay = 24 * 60 * 60

// DayOf truncates t to its day-number.
func DayOf(t time.Time) Day {
	return Day(t.Unix() / secondsPerDay)
}

func (d Day) AddDays(n int) Day { return d + Day(n) }

// DaysBetween returns a - b.
func DaysBetween(a, b Day) int { return int(a - b) }
