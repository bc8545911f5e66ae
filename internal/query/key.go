// Package query implements the hierarchical view pipeline: query keys,
// their cache paths, memoized view computation, and the response envelope.
package query

import "fmt"

// Views enumerate the collection axes the feed is partitioned under.
const (
	ViewCollected = "collected"
	ViewOccurred  = "occurred"
)

// ValidView reports whether name is a known view.
func ValidView(name string) bool {
	return name == ViewCollected || name == ViewOccurred
}

// Key identifies one filtered projection of a day's events. View and Date
// are always set; at most one of Source/Prefix, plus optionally Work,
// narrows the projection further. Two keys are equal iff all present
// fields are equal.
type Key struct {
	View   string
	Date   string
	Source string
	Prefix string
	Work   string
}

// CachePath derives the storage object name for k. The same string,
// prefixed with the service base, is the pagination link for k — keeping
// the mapping in one pure function is what guarantees distinct keys never
// collide on a path.
func (k Key) CachePath() string {
	switch {
	case k.Source != "" && k.Work != "":
		return fmt.Sprintf("%s/%s/sources/%s/works/%s/events.json", k.View, k.Date, k.Source, k.Work)
	case k.Work != "":
		return fmt.Sprintf("%s/%s/works/%s/events.json", k.View, k.Date, k.Work)
	case k.Prefix != "":
		return fmt.Sprintf("%s/%s/prefixes/%s/events.json", k.View, k.Date, k.Prefix)
	case k.Source != "":
		return fmt.Sprintf("%s/%s/sources/%s/events.json", k.View, k.Date, k.Source)
	default:
		return fmt.Sprintf("%s/%s/events.json", k.View, k.Date)
	}
}

// WithDate returns a copy of k pointing at a different date, preserving
// the key shape. Used for previous/next pagination links.
func (k Key) WithDate(date string) Key {
	k.Date = date
	return k
}
