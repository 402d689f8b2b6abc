package common

import "time"

// Deadline is the first instant at which a poll active until activeUntil is
// closed: midnight after activeUntil's calendar day in loc.
func Deadline(activeUntil time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := activeUntil.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
}

// IsLive reports whether a poll active until activeUntil still accepts
// answers at now.
func IsLive(activeUntil time.Time, now time.Time, loc *time.Location) bool {
	return now.Before(Deadline(activeUntil, loc))
}
