package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const archiveJSON = `{"events":[
	{"subj_id":"https://twitter.com/s/1","obj_id":"10.5555/a","source_id":"twitter"},
	{"subj_id":"10.4444/b","obj_id":"https://example.com","source_id":"reddit"}
]}`

func TestArchiveFetch(t *testing.T) {
	var gotPath, gotAuth string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(archiveJSON))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token", 8)
	evs, err := c.Archive(context.Background(), "2017-06-01")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if gotPath != "/events/archive/2017-06-01" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if len(evs) != 2 || evs[0].SourceID != "twitter" || evs[1].SourceID != "reddit" {
		t.Errorf("events = %+v", evs)
	}

	// A day archive is an immutable snapshot: the second read comes from
	// the in-process cache.
	if _, err := c.Archive(context.Background(), "2017-06-01"); err != nil {
		t.Fatalf("cached Archive: %v", err)
	}
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
}

func TestArchiveHardFailsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "t", 8)
	if _, err := c.Archive(context.Background(), "2017-06-01"); err == nil {
		t.Error("expected hard failure for non-200 archive response")
	}
}

func TestArchiveAbsentBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "t", 8)
	evs, err := c.Archive(context.Background(), "2017-06-01")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if evs != nil {
		t.Errorf("want nil events for missing archive body, got %+v", evs)
	}
}
