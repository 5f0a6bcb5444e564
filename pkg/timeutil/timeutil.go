// Package timeutil provides calendar-day utilities for the quiz pipeline.
// The daily schedule and the one-set-per-day rule are both defined in the
// family's local calendar, so every day boundary in the system goes through
// this package. The day helpers work in the location of the time they are
// given; Now and ToLocal supply São Paulo, the default production timezone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// SaoPauloTZ is the São Paulo timezone (UTC-3).
// Brazil abolished DST in 2019, so this is constant year-round.
var SaoPauloTZ = loadSaoPaulo()

func loadSaoPaulo() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("America/Sao_Paulo", -3*60*60)
	}
	return loc
}

// Now returns the current time in São Paulo timezone.
func Now() time.Time {
	return time.Now().In(SaoPauloTZ)
}

// ToLocal converts a time to São Paulo timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(SaoPauloTZ)
}

// StartOfDay returns the start of the day (00:00:00) in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the end of the day (23:59:59.999999999) in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, t.Location())
}

// DayOf truncates a time to its calendar day in t's location. Convert to
// the scheduling timezone first; two times map to the same day exactly when
// a quiz set created at the first would block an automatic set at the second.
func DayOf(t time.Time) time.Time {
	return StartOfDay(t)
}

// SameDay reports whether b falls on a's calendar day, in a's location.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b.In(a.Location())))
}

// FormatDay formats a time as an ISO calendar day (YYYY-MM-DD) in its own
// location. Used for the quiz_sets.created_on column and for logging.
func FormatDay(t time.Time) string {
	return t.Format("2006-01-02")
}

// NextMidnight returns the start of the next day in t's location.
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}
