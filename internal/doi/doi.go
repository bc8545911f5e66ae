// Package doi normalizes DOI-shaped identifiers and extracts registrant
// prefixes from event records.
package doi

import (
	"regexp"
	"strings"

	"github.com/gyaneshwarpardhi/eventquery/internal/event"
)

// Resolver prefix every normalized DOI is expressed under.
const resolver = "https://doi.org/"

// doiPattern matches the DOI proper: a "10." registrant prefix, a slash,
// and a non-empty suffix.
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// Normalize reports whether s is DOI-shaped and, if so, returns the
// canonical form "https://doi.org/<doi>" with the DOI lowercased.
// Accepted shapes: http(s)://doi.org/<doi>, http(s)://dx.doi.org/<doi>,
// doi:<doi>, and a bare <doi>. Anything else is simply not a DOI —
// malformed input is never an error.
func Normalize(s string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{
		"https://doi.org/",
		"http://doi.org/",
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"doi:",
	} {
		if strings.HasPrefix(lower, p) {
			lower = lower[len(p):]
			break
		}
	}
	if !doiPattern.MatchString(lower) {
		return "", false
	}
	return resolver + lower, true
}

// Prefix returns the registrant portion ("10.xxxx") of a DOI-shaped
// identifier.
func Prefix(s string) (string, bool) {
	normalized, ok := Normalize(s)
	if !ok {
		return "", false
	}
	d := strings.TrimPrefix(normalized, resolver)
	slash := strings.Index(d, "/")
	return d[:slash], true
}

// EventDOIs returns the deduplicated set of normalized DOIs found in the
// subject and object positions of ev. Events with no DOI-shaped
// identifier yield an empty slice.
func EventDOIs(ev *event.Event) []string {
	return collect(ev, Normalize)
}

// EventPrefixes returns the deduplicated set of DOI prefixes across the
// subject and object positions of ev.
func EventPrefixes(ev *event.Event) []string {
	return collect(ev, Prefix)
}

func collect(ev *event.Event, extract func(string) (string, bool)) []string {
	var out []string
	seen := make(map[string]struct{}, 2)
	for _, id := range []string{ev.SubjID, ev.ObjID} {
		v, ok := extract(id)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
