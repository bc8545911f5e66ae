// Package allowlist holds the snapshot of permitted source IDs.
package allowlist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// List is an immutable-snapshot allowlist. The set behind the pointer is
// never mutated after construction; refresh swaps in a whole new set, so
// readers always see a consistent view.
type List struct {
	set atomic.Pointer[map[string]struct{}]
}

// New builds a List from source IDs.
func New(sources []string) *List {
	l := &List{}
	l.swap(sources)
	return l
}

// FetchURL loads a newline-delimited allowlist from an artifact URL once,
// at startup.
func FetchURL(ctx context.Context, url string) (*List, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch allowlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch allowlist: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch allowlist: %w", err)
	}
	return New(parse(string(body))), nil
}

// FromFile loads a newline-delimited allowlist from disk.
func FromFile(path string) (*List, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist %s: %w", path, err)
	}
	return New(parse(string(body))), nil
}

// Allowed reports whether source is on the list.
func (l *List) Allowed(source string) bool {
	set := l.set.Load()
	_, ok := (*set)[source]
	return ok
}

// Len returns the number of permitted sources.
func (l *List) Len() int {
	return len(*l.set.Load())
}

// Watch starts a background goroutine that re-reads path and swaps the
// snapshot whenever the file changes. Call the returned stop function to
// clean up.
func (l *List) Watch(path string) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("allowlist watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("allowlist watcher add %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					body, err := os.ReadFile(path)
					if err != nil {
						slog.Warn("allowlist reload skipped", "path", path, "err", err)
						continue
					}
					sources := parse(string(body))
					l.swap(sources)
					slog.Info("allowlist reloaded", "path", path, "sources", len(sources))
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

func (l *List) swap(sources []string) {
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	l.set.Store(&set)
}

func parse(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
