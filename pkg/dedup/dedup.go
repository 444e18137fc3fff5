// Package dedup drops duplicate message deliveries. QoS 1 subscriptions
// can redeliver a payload after reconnect; the deduper remembers payload
// hashes for a TTL window.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time // id -> expiry
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// ShouldProcess reports whether this id was not seen within the TTL window,
// recording it as seen. Empty ids are always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.sweep(now)
	}
	return true
}

// sweep removes expired entries; if the map is still over capacity the
// entries closest to expiry go too.
func (d *Deduper) sweep(now time.Time) {
	for id, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, id)
		}
	}
	for len(d.seen) > d.max {
		var oldestID string
		var oldest time.Time
		for id, exp := range d.seen {
			if oldestID == "" || exp.Before(oldest) {
				oldestID, oldest = id, exp
			}
		}
		delete(d.seen, oldestID)
	}
}
