package query

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gyaneshwarpardhi/eventquery/internal/bus"
	"github.com/gyaneshwarpardhi/eventquery/internal/doi"
	"github.com/gyaneshwarpardhi/eventquery/internal/event"
	"github.com/gyaneshwarpardhi/eventquery/internal/metrics"
	"github.com/gyaneshwarpardhi/eventquery/internal/store"
	"github.com/gyaneshwarpardhi/eventquery/internal/uploader"
)

// Feed is the slice of the upstream client the pipeline needs. A nil
// event slice means the feed had nothing for that day.
type Feed interface {
	Archive(ctx context.Context, date string) ([]event.Event, error)
}

var _ Feed = (*bus.Client)(nil)

// Pipeline computes the five hierarchical views, each memoized through
// the object cache store and persisted in the background.
type Pipeline struct {
	store    store.Store
	uploads  *uploader.Uploader
	feed     Feed
	base     string
	excluded map[string]struct{}
}

// NewPipeline wires the pipeline. excludedSources are removed from the
// date view (and therefore from every derived view); the set is immutable
// after construction.
func NewPipeline(s store.Store, up *uploader.Uploader, feed Feed, serviceBase string, excludedSources []string) *Pipeline {
	excluded := make(map[string]struct{}, len(excludedSources))
	for _, src := range excludedSources {
		excluded[src] = struct{}{}
	}
	return &Pipeline{
		store:    s,
		uploads:  up,
		feed:     feed,
		base:     serviceBase,
		excluded: excluded,
	}
}

// Events answers the query identified by k. A (nil, nil) return means the
// view is absent: no data exists for the key. Errors are upstream feed
// failures and fail the request.
func (p *Pipeline) Events(ctx context.Context, k Key) (*Envelope, error) {
	switch {
	case k.Source != "" && k.Work != "":
		return p.sourceWorkEvents(ctx, k.View, k.Date, k.Source, k.Work)
	case k.Work != "":
		return p.workEvents(ctx, k.View, k.Date, k.Work)
	case k.Prefix != "":
		return p.prefixEvents(ctx, k.View, k.Date, k.Prefix)
	case k.Source != "":
		return p.sourceEvents(ctx, k.View, k.Date, k.Source)
	default:
		return p.dateEvents(ctx, k.View, k.Date)
	}
}

// getOrCompute is the memoization wrapper. A stored document is returned
// unchanged, with no freshness check. On a miss the computed envelope is
// enqueued for background persistence and returned immediately; a
// computed absence is returned without enqueueing. Concurrent misses for
// the same path race benignly: the content is deterministic and the last
// write wins.
func (p *Pipeline) getOrCompute(ctx context.Context, k Key, compute func(context.Context) ([]event.Event, error)) (*Envelope, error) {
	path := k.CachePath()
	body, ok, err := p.store.Get(ctx, path)
	if err != nil {
		// The cache is an optimization; a failing read degrades to a miss.
		slog.Warn("cache read failed", "path", path, "err", err)
	} else if ok {
		var env Envelope
		if err := json.Unmarshal(body, &env); err == nil {
			metrics.CacheHits.Inc()
			return &env, nil
		}
		slog.Warn("cached document unreadable, recomputing", "path", path, "err", err)
	}
	metrics.CacheMisses.Inc()

	events, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if events == nil {
		return nil, nil
	}
	env := Format(p.base, k, events)
	if body, err := json.Marshal(env); err == nil {
		p.uploads.Enqueue(path, body)
	}
	return env, nil
}

// dateEvents is the root of the hierarchy: the day's archive from the
// upstream feed, minus the process-wide excluded sources.
func (p *Pipeline) dateEvents(ctx context.Context, view, date string) (*Envelope, error) {
	k := Key{View: view, Date: date}
	return p.getOrCompute(ctx, k, func(ctx context.Context) ([]event.Event, error) {
		evs, err := p.feed.Archive(ctx, date)
		if err != nil {
			return nil, err
		}
		if evs == nil {
			return nil, nil
		}
		out := make([]event.Event, 0, len(evs))
		for _, ev := range evs {
			if _, skip := p.excluded[ev.SourceID]; skip {
				continue
			}
			out = append(out, ev)
		}
		return out, nil
	})
}

func (p *Pipeline) sourceEvents(ctx context.Context, view, date, source string) (*Envelope, error) {
	k := Key{View: view, Date: date, Source: source}
	return p.getOrCompute(ctx, k, func(ctx context.Context) ([]event.Event, error) {
		return p.filterParent(ctx, Key{View: view, Date: date}, func(ev *event.Event) bool {
			return ev.SourceID == source
		})
	})
}

func (p *Pipeline) prefixEvents(ctx context.Context, view, date, prefix string) (*Envelope, error) {
	k := Key{View: view, Date: date, Prefix: prefix}
	return p.getOrCompute(ctx, k, func(ctx context.Context) ([]event.Event, error) {
		return p.filterParent(ctx, Key{View: view, Date: date}, func(ev *event.Event) bool {
			return contains(doi.EventPrefixes(ev), prefix)
		})
	})
}

// workEvents routes through the prefix view for the work's own prefix: a
// prefix filter narrows the candidate set far more than a source filter
// would, so this is the cheapest parent to re-filter. A work that is not
// DOI-shaped can never match an event and is reported absent.
func (p *Pipeline) workEvents(ctx context.Context, view, date, work string) (*Envelope, error) {
	k := Key{View: view, Date: date, Work: work}
	return p.getOrCompute(ctx, k, func(ctx context.Context) ([]event.Event, error) {
		workDOI, ok := doi.Normalize(work)
		if !ok {
			return nil, nil
		}
		prefix, _ := doi.Prefix(work)
		return p.filterParent(ctx, Key{View: view, Date: date, Prefix: prefix}, func(ev *event.Event) bool {
			return contains(doi.EventDOIs(ev), workDOI)
		})
	})
}

func (p *Pipeline) sourceWorkEvents(ctx context.Context, view, date, source, work string) (*Envelope, error) {
	k := Key{View: view, Date: date, Source: source, Work: work}
	return p.getOrCompute(ctx, k, func(ctx context.Context) ([]event.Event, error) {
		return p.filterParent(ctx, Key{View: view, Date: date, Work: work}, func(ev *event.Event) bool {
			return ev.SourceID == source
		})
	})
}

// filterParent computes the parent view for parentKey and keeps the
// events passing pred. An absent parent propagates as absent.
func (p *Pipeline) filterParent(ctx context.Context, parentKey Key, pred func(*event.Event) bool) ([]event.Event, error) {
	parent, err := p.Events(ctx, parentKey)
	if err != nil || parent == nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(parent.Events))
	for i := range parent.Events {
		if pred(&parent.Events[i]) {
			out = append(out, parent.Events[i])
		}
	}
	return out, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// ServiceBase exposes the configured base URL for link construction
// outside the pipeline.
func (p *Pipeline) ServiceBase() string {
	return p.base
}
