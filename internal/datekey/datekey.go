// Package datekey handles the YYYY-MM-DD date keys that partition the
// event feed and drive date-based pagination.
package datekey

import "time"

// Layout is the only accepted date-key format.
const Layout = "2006-01-02"

// Parse strictly parses a date key. "2016-13-40" is rejected.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}

// Format renders t as a date key, dropping any time-of-day component.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Prev returns the key of the calendar day before d. d must be a valid
// key; the error from Parse is returned otherwise.
func Prev(d string) (string, error) {
	t, err := Parse(d)
	if err != nil {
		return "", err
	}
	return Format(t.AddDate(0, 0, -1)), nil
}

// Next returns the key of the calendar day after d.
func Next(d string) (string, error) {
	t, err := Parse(d)
	if err != nil {
		return "", err
	}
	return Format(t.AddDate(0, 0, 1)), nil
}
