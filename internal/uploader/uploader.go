// Package uploader persists computed views to the object cache store in
// the background, off the request path.
package uploader

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/eventquery/internal/metrics"
	"github.com/gyaneshwarpardhi/eventquery/internal/store"
)

// Upload is one pending write: a document and the cache path to store it
// under. An upload is consumed exactly once and discarded after the write
// attempt, successful or not.
type Upload struct {
	Path string
	Body []byte
}

// Uploader is a fixed-size worker pool draining a bounded queue of
// uploads. Enqueue never blocks: when the queue is full the upload is
// dropped, and the next miss for that key recomputes and re-enqueues.
type Uploader struct {
	queue chan Upload
	store store.Store
	wg    sync.WaitGroup
}

// New starts n workers draining a queue of capacity depth.
func New(ctx context.Context, s store.Store, n, depth int) *Uploader {
	u := &Uploader{
		queue: make(chan Upload, depth),
		store: s,
	}
	for i := 0; i < n; i++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			u.run(ctx)
		}()
	}
	return u
}

func (u *Uploader) run(ctx context.Context) {
	for {
		select {
		case up, ok := <-u.queue:
			if !ok {
				return
			}
			if err := u.store.Put(ctx, up.Path, up.Body); err != nil {
				metrics.UploadsFailed.Inc()
				slog.Warn("cache upload failed", "path", up.Path, "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Enqueue submits an upload without blocking. Returns false if the queue
// was full and the upload dropped.
func (u *Uploader) Enqueue(path string, body []byte) bool {
	select {
	case u.queue <- Upload{Path: path, Body: body}:
		metrics.UploadsEnqueued.Inc()
		return true
	default:
		metrics.UploadsDropped.Inc()
		return false
	}
}

// Drain closes the queue and waits for the workers to finish the backlog.
func (u *Uploader) Drain() {
	close(u.queue)
	u.wg.Wait()
}

// QueueLen returns how many uploads are currently queued.
func (u *Uploader) QueueLen() int {
	return len(u.queue)
}

// QueueCap returns the total queue capacity.
func (u *Uploader) QueueCap() int {
	return cap(u.queue)
}
