package rewards

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/holderrewards/dashboard/internal/models"
)

// snapshot is the cached eligibility of one wallet. A nil view is a tombstone
// left by Invalidate that still carries the generation floor.
type snapshot struct {
	generation uint64
	view       *models.EligibilityView
	storedAt   time.Time
}

type inflight struct {
	generation uint64
	cancel     context.CancelFunc
}

// snapshotCache keeps the latest eligibility per wallet. Every fetch takes a
// new generation and a result is only stored when it is newer than what the
// cache holds, so a slow fetch can never overwrite a later one. Starting a
// fetch cancels the previous in-flight fetch of the same wallet.
type snapshotCache struct {
	mu         sync.Mutex
	generation uint64
	floor      uint64 // rejects every generation up to it, set by purge
	entries    *lru.Cache[string, *snapshot]
	inflight   map[string]inflight
	ttl        time.Duration
	now        func() time.Time
}

func newSnapshotCache(size int, ttl time.Duration) (*snapshotCache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, *snapshot](size)
	if err != nil {
		return nil, err
	}
	return &snapshotCache{
		entries:  entries,
		inflight: make(map[string]inflight),
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// begin registers a fetch for wallet. The returned context is cancelled when a
// newer fetch for the same wallet begins; done must be called when the fetch
// ends.
func (c *snapshotCache) begin(ctx context.Context, wallet string) (uint64, context.Context, func()) {
	fetchCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if prev, ok := c.inflight[wallet]; ok {
		prev.cancel()
	}
	c.inflight[wallet] = inflight{generation: gen, cancel: cancel}
	c.mu.Unlock()

	done := func() {
		c.mu.Lock()
		if cur, ok := c.inflight[wallet]; ok && cur.generation == gen {
			delete(c.inflight, wallet)
		}
		c.mu.Unlock()
		cancel()
	}
	return gen, fetchCtx, done
}

// store saves view unless the cache already holds a newer generation. It
// reports whether the view was stored.
func (c *snapshotCache) store(wallet string, gen uint64, view *models.EligibilityView) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen <= c.floor {
		return false
	}
	if cur, ok := c.entries.Peek(wallet); ok && cur.generation >= gen {
		return false
	}
	c.entries.Add(wallet, &snapshot{generation: gen, view: view, storedAt: c.now()})
	return true
}

// get returns the cached view if it is younger than the ttl.
func (c *snapshotCache) get(wallet string) (*models.EligibilityView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries.Get(wallet)
	if !ok || cur.view == nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(cur.storedAt) > c.ttl {
		return nil, false
	}
	return cur.view.Clone(), true
}

// invalidate drops the wallet's view. Fetches that began before the call can
// no longer store their result.
func (c *snapshotCache) invalidate(wallet string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries.Add(wallet, &snapshot{generation: c.generation, storedAt: c.now()})
}

// purge invalidates every wallet.
func (c *snapshotCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.floor = c.generation
	c.entries.Purge()
}
