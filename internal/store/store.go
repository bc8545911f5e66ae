// Package store is the durable object cache behind the query layer: a
// single bucket of JSON documents keyed by cache path.
package store

import "context"

// Store is a key-value blob store with an existence-aware read. Get
// distinguishes "absent" from "empty document"; an absent object is
// (nil, false, nil), not an error.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, bool, error)
	Put(ctx context.Context, path string, body []byte) error
}
