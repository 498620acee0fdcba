package forex

import (
	"sync/atomic"
	"time"
)

// Snapshot is the trimmed view served on the normalized endpoint.
type Snapshot struct {
	Timestamp int64              `json:"timestamp"`
	Rates     map[string]float64 `json:"rates"`
}

// payload is one refresh result: the normalized view plus the verbatim
// upstream body.
type payload struct {
	snapshot  Snapshot
	raw       []byte
	fetchedAt time.Time
}

// Cache holds the current snapshot behind an atomic pointer. Readers
// never contend with the refresher.
type Cache struct {
	current atomic.Pointer[payload]
}

// NewCache returns an empty cache. Current and Raw report no data until
// the first Store.
func NewCache() *Cache {
	return &Cache{}
}

// Store replaces the current snapshot.
func (c *Cache) Store(snap Snapshot, raw []byte, fetchedAt time.Time) {
	c.current.Store(&payload{snapshot: snap, raw: raw, fetchedAt: fetchedAt})
}

// Current returns the normalized snapshot, or false if no fetch has
// succeeded yet.
func (c *Cache) Current() (Snapshot, bool) {
	p := c.current.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return p.snapshot, true
}

// Raw returns the verbatim upstream payload, or false if no fetch has
// succeeded yet.
func (c *Cache) Raw() ([]byte, bool) {
	p := c.current.Load()
	if p == nil {
		return nil, false
	}
	return p.raw, true
}

// FetchedAt returns when the current snapshot was obtained, or the zero
// time if none exists.
func (c *Cache) FetchedAt() time.Time {
	p := c.current.Load()
	if p == nil {
		return time.Time{}
	}
	return p.fetchedAt
}
