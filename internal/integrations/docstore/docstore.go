// Package docstore abstracts object storage for booking receipts and
// shipping documents. Writes are best-effort; the order flow never blocks
// on document storage.
package docstore

import (
	"context"
	"time"
)

// Store persists documents under opaque keys and produces time-limited
// download links.
type Store interface {
	Put(ctx context.Context, key string, contentType string, body []byte) error
	// Presign returns a URL that grants read access to key for ttl.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Noop discards writes and presigns nothing. Used when no bucket is
// configured.
type Noop struct{}

func (Noop) Put(context.Context, string, string, []byte) error { return nil }

func (Noop) Presign(context.Context, string, time.Duration) (string, error) { return "", nil }
