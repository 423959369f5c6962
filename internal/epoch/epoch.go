// Package epoch computes weekly-epoch boundaries. Epochs are aligned to
// Friday 00:00 UTC through the following Thursday 23:59:59 UTC, and are
// identified by the ISO8601 timestamp of their start instant.
package epoch

import "time"

// ISO8601 is the layout used for epoch identifiers throughout the
// pipeline: "YYYY-MM-DDTHH:MM:SSZ".
const ISO8601 = "2006-01-02T15:04:05Z"

// WeeklyStart returns the Friday 00:00 UTC instant that begins the
// weekly epoch containing at.
func WeeklyStart(at time.Time) time.Time {
	at = at.UTC()
	daysSinceFriday := (int(at.Weekday()) - int(time.Friday) + 7) % 7
	midnight := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -daysSinceFriday)
}

// WeeklyEnd returns the Thursday 23:59:59 UTC instant that closes the
// weekly epoch containing at.
func WeeklyEnd(at time.Time) time.Time {
	return WeeklyStart(at).AddDate(0, 0, 6).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
}

// WeeklyVersion returns the stable ISO8601 identifier for the weekly
// epoch containing at. It is stable across validator restarts within
// the same interval.
func WeeklyVersion(at time.Time) string {
	return WeeklyStart(at).Format(ISO8601)
}

// ParseVersion parses an epoch identifier produced by WeeklyVersion (or
// accepted from the verifier) back into a time.Time.
func ParseVersion(version string) (time.Time, error) {
	return time.Parse(ISO8601, version)
}
