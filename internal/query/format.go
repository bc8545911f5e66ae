package query

import (
	"github.com/gyaneshwarpardhi/eventquery/internal/datekey"
	"github.com/gyaneshwarpardhi/eventquery/internal/event"
)

// Meta is the envelope header.
type Meta struct {
	Status      string `json:"status"`
	MessageType string `json:"message-type"`
	Total       int    `json:"total"`
	TotalPages  int    `json:"total-pages"`
	Page        int    `json:"page"`
	Previous    string `json:"previous"`
	Next        string `json:"next"`
}

// Envelope is the full response document: it is both what callers receive
// and what gets persisted to the object cache, so a cache hit skips
// response construction entirely.
type Envelope struct {
	Meta   Meta          `json:"meta"`
	Events []event.Event `json:"events"`
}

const messageType = "event-list"

// Format wraps events in an envelope for key k. Pagination is date-based:
// previous/next point at the same key shape on the adjacent calendar day.
// A nil events slice becomes an empty one — the events field is never
// null.
func Format(serviceBase string, k Key, events []event.Event) *Envelope {
	if events == nil {
		events = []event.Event{}
	}
	return &Envelope{
		Meta: Meta{
			Status:      "ok",
			MessageType: messageType,
			Total:       len(events),
			TotalPages:  1,
			Page:        1,
			Previous:    adjacentLink(serviceBase, k, datekey.Prev),
			Next:        adjacentLink(serviceBase, k, datekey.Next),
		},
		Events: events,
	}
}

// NotFound is the well-formed empty envelope returned for dates outside
// the queryable window or keys with no data.
func NotFound(serviceBase string, k Key) *Envelope {
	env := Format(serviceBase, k, nil)
	env.Meta.Status = "error"
	return env
}

func adjacentLink(serviceBase string, k Key, shift func(string) (string, error)) string {
	date, err := shift(k.Date)
	if err != nil {
		return ""
	}
	return serviceBase + "/" + k.WithDate(date).CachePath()
}
