package query_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/eventquery/internal/event"
	"github.com/gyaneshwarpardhi/eventquery/internal/query"
	"github.com/gyaneshwarpardhi/eventquery/internal/store"
	"github.com/gyaneshwarpardhi/eventquery/internal/uploader"
)

const (
	testBase = "https://query.example.org"
	testDate = "2017-06-01"
)

// fakeFeed serves a fixed archive and counts fetches.
type fakeFeed struct {
	events []event.Event
	calls  int
}

func (f *fakeFeed) Archive(_ context.Context, date string) ([]event.Event, error) {
	f.calls++
	return f.events, nil
}

func testEvents() []event.Event {
	return []event.Event{
		{SubjID: "https://twitter.com/s/1", ObjID: "https://doi.org/10.5555/aaa", SourceID: "twitter"},
		{SubjID: "10.4444/bbb", ObjID: "https://example.com/b", SourceID: "reddit"},
		{SubjID: "https://spam.example.com", ObjID: "10.5555/ccc", SourceID: "spammer"},
	}
}

func newTestPipeline(t *testing.T, feed query.Feed, excluded ...string) (*query.Pipeline, *store.Mem) {
	t.Helper()
	mem := store.NewMem()
	up := uploader.New(context.Background(), mem, 2, 64)
	return query.NewPipeline(mem, up, feed, testBase, excluded), mem
}

func waitForPuts(t *testing.T, mem *store.Mem, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for mem.PutCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d puts (have %d)", n, mem.PutCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sourceIDs(evs []event.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.SourceID
	}
	return out
}

func TestDateViewExcludesSources(t *testing.T) {
	feed := &fakeFeed{events: testEvents()}
	p, _ := newTestPipeline(t, feed, "spammer")

	env, err := p.Events(context.Background(), query.Key{View: "collected", Date: testDate})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if env == nil {
		t.Fatal("expected a present view")
	}
	if env.Meta.Total != 2 || len(env.Events) != 2 {
		t.Fatalf("total = %d, len = %d; want 2", env.Meta.Total, len(env.Events))
	}
	for _, src := range sourceIDs(env.Events) {
		if src == "spammer" {
			t.Error("excluded source leaked into date view")
		}
	}
	if env.Meta.Previous != testBase+"/collected/2017-05-31/events.json" {
		t.Errorf("previous = %q", env.Meta.Previous)
	}
	if env.Meta.Next != testBase+"/collected/2017-06-02/events.json" {
		t.Errorf("next = %q", env.Meta.Next)
	}
}

func TestCacheHitShortCircuit(t *testing.T) {
	feed := &fakeFeed{events: testEvents()}
	p, mem := newTestPipeline(t, feed)
	k := query.Key{View: "collected", Date: testDate}

	if _, err := p.Events(context.Background(), k); err != nil {
		t.Fatalf("first query: %v", err)
	}
	if feed.calls != 1 {
		t.Fatalf("upstream calls after miss = %d, want 1", feed.calls)
	}
	waitForPuts(t, mem, 1)

	env, err := p.Events(context.Background(), k)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if feed.calls != 1 {
		t.Errorf("cache hit re-invoked the upstream feed (%d calls)", feed.calls)
	}
	if env.Meta.Total != 3 {
		t.Errorf("cached total = %d, want 3", env.Meta.Total)
	}
}

func TestHierarchicalViews(t *testing.T) {
	cases := []struct {
		name    string
		key     query.Key
		sources []string
	}{
		{
			name:    "source view",
			key:     query.Key{View: "collected", Date: testDate, Source: "twitter"},
			sources: []string{"twitter"},
		},
		{
			name:    "prefix view matches subject or object",
			key:     query.Key{View: "collected", Date: testDate, Prefix: "10.5555"},
			sources: []string{"twitter", "spammer"},
		},
		{
			name:    "work view",
			key:     query.Key{View: "collected", Date: testDate, Work: "10.5555/aaa"},
			sources: []string{"twitter"},
		},
		{
			name:    "source and work",
			key:     query.Key{View: "collected", Date: testDate, Source: "twitter", Work: "10.5555/aaa"},
			sources: []string{"twitter"},
		},
		{
			name:    "work view via normalized url form",
			key:     query.Key{View: "collected", Date: testDate, Work: "https://doi.org/10.5555/ccc"},
			sources: []string{"spammer"},
		},
		{
			name:    "source and work disjoint",
			key:     query.Key{View: "collected", Date: testDate, Source: "reddit", Work: "10.5555/aaa"},
			sources: []string{},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			feed := &fakeFeed{events: testEvents()}
			p, _ := newTestPipeline(t, feed)
			env, err := p.Events(context.Background(), c.key)
			if err != nil {
				t.Fatalf("Events: %v", err)
			}
			if env == nil {
				t.Fatal("expected a present view")
			}
			got := sourceIDs(env.Events)
			if len(got) != len(c.sources) {
				t.Fatalf("sources = %v, want %v", got, c.sources)
			}
			for i := range got {
				if got[i] != c.sources[i] {
					t.Fatalf("sources = %v, want %v", got, c.sources)
				}
			}
			if env.Meta.Total != len(c.sources) {
				t.Errorf("total = %d, want %d", env.Meta.Total, len(c.sources))
			}
		})
	}
}

// Two cold computations of the same key must serialize identically: the
// envelope has no wall-clock-dependent fields.
func TestIdempotentEnvelope(t *testing.T) {
	k := query.Key{View: "occurred", Date: testDate, Prefix: "10.5555"}
	var bodies [][]byte
	for i := 0; i < 2; i++ {
		p, _ := newTestPipeline(t, &fakeFeed{events: testEvents()})
		env, err := p.Events(context.Background(), k)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		body, err := json.Marshal(env)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		bodies = append(bodies, body)
	}
	if !bytes.Equal(bodies[0], bodies[1]) {
		t.Errorf("envelopes differ:\n%s\n%s", bodies[0], bodies[1])
	}
}

func TestAbsentUpstreamNotPersisted(t *testing.T) {
	p, mem := newTestPipeline(t, &fakeFeed{events: nil})
	env, err := p.Events(context.Background(), query.Key{View: "collected", Date: testDate})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if env != nil {
		t.Fatal("expected absent view for empty upstream")
	}
	time.Sleep(20 * time.Millisecond)
	if mem.PutCount() != 0 {
		t.Errorf("absent result was persisted (%d puts)", mem.PutCount())
	}
}

func TestMalformedWorkIsAbsent(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeFeed{events: testEvents()})
	env, err := p.Events(context.Background(), query.Key{View: "collected", Date: testDate, Work: "not-a-doi"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if env != nil {
		t.Error("non-DOI work should be absent, not matched")
	}
}

func TestEmptyFilterResultIsPresent(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeFeed{events: testEvents()})
	env, err := p.Events(context.Background(), query.Key{View: "collected", Date: testDate, Source: "nobody"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if env == nil {
		t.Fatal("empty filter result should still be a present view")
	}
	if env.Meta.Total != 0 || env.Events == nil {
		t.Errorf("want total 0 and non-nil events, got total %d", env.Meta.Total)
	}
}
