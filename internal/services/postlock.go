// Per-post write serialization.
//
// The key-value store offers no compare-and-swap, so every write path that
// read-modify-writes a post's documents (the comment log and the identity
// map) must hold that post's lock. Reads take no lock; they observe a
// snapshot of the store at call time.
//
// Locks are created on demand in a map guarded by a mutex, with
// opportunistic eviction of idle entries after a threshold of lookups to
// keep memory bounded across many posts.
package services

import (
	"sync"
	"time"
)

// postEntry holds one post's mutex together with bookkeeping for eviction.
// holders counts goroutines between Lock and Unlock; an entry is only
// evictable when nobody holds or awaits it.
type postEntry struct {
	mu       sync.Mutex
	holders  int
	lastSeen time.Time
}

// postLocks is a table of per-post mutexes. The zero value is not usable;
// construct with newPostLocks. Safe for concurrent use.
type postLocks struct {
	mu      sync.Mutex
	entries map[string]*postEntry

	ttl      time.Duration
	cleanupN uint64
}

// newPostLocks returns a lock table that evicts entries idle for ten
// minutes, checked opportunistically during lookups.
func newPostLocks() *postLocks {
	return &postLocks{
		entries: make(map[string]*postEntry),
		ttl:     10 * time.Minute,
	}
}

// Lock acquires the mutex for postID, creating it on first use.
// Every Lock must be paired with an Unlock for the same post.
func (pl *postLocks) Lock(postID string) {
	now := time.Now()

	pl.mu.Lock()
	// Opportunistic cleanup after a threshold of lookups. Run it BEFORE
	// fetching the requested entry so a stale entry for this very post can
	// still be evicted and recreated fresh.
	pl.cleanupN++
	if pl.cleanupN >= 5000 {
		for k, e := range pl.entries {
			if e.holders == 0 && now.Sub(e.lastSeen) >= pl.ttl {
				delete(pl.entries, k)
			}
		}
		pl.cleanupN = 0
	}

	e, ok := pl.entries[postID]
	if !ok {
		e = &postEntry{}
		pl.entries[postID] = e
	}
	e.holders++
	e.lastSeen = now
	pl.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for postID acquired by Lock.
func (pl *postLocks) Unlock(postID string) {
	pl.mu.Lock()
	e, ok := pl.entries[postID]
	if ok {
		e.holders--
		e.lastSeen = time.Now()
	}
	pl.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
