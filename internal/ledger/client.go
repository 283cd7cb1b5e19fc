package ledger

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"payshield/backend/internal/platform/retry"
	"payshield/backend/internal/proof"
)

// Config configures a Client.
type Config struct {
	ExplorerBase string
	CacheTTL     time.Duration
	Retry        retry.Policy
}

// snapshot is an immutable view of the cache. It is replaced, never mutated.
type snapshot struct {
	entries   []Entry
	fetchedAt time.Time
	stale     bool
}

// Client anchors approval hashes with bounded retry and serves recent entries from a cache.
// Ledger failures never escape as errors: Anchor degrades to a soft failure and RecentEntries to the
// last good snapshot. A Client with a nil backend is disabled. Safe for concurrent use.
type Client struct {
	backend Backend
	cfg     Config
	nowF    func() time.Time

	snap  atomic.Pointer[snapshot]
	gen   atomic.Uint64
	group singleflight.Group
	wg    sync.WaitGroup
}

// NewClient returns a ledger client. backend may be nil, in which case anchoring is skipped and
// RecentEntries is always empty.
func NewClient(backend Backend, cfg Config) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.ExplorerBase == "" {
		cfg.ExplorerBase = DefaultExplorerBase
	}
	c := &Client{backend: backend, cfg: cfg, nowF: time.Now}
	c.snap.Store(&snapshot{entries: []Entry{}, stale: true})
	return c
}

// Enabled reports whether a ledger backend is configured.
func (c *Client) Enabled() bool {
	return c.backend != nil
}

// Anchor submits approvalHash to the ledger. The write runs on a context detached from ctx so a
// caller that stops waiting does not cancel it; a late success still invalidates the cache.
func (c *Client) Anchor(ctx context.Context, approvalHash string) AnchorResult {
	if c.backend == nil {
		return AnchorResult{Skipped: true}
	}
	digest, err := proof.ParseHash(approvalHash)
	if err != nil {
		return AnchorResult{Err: err}
	}
	done := make(chan AnchorResult, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		done <- c.submit(context.WithoutCancel(ctx), approvalHash, digest)
	}()
	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		log.Printf("ledger: caller stopped waiting for anchor of %s, continuing in background", approvalHash)
		return AnchorResult{Pending: true, Err: ctx.Err()}
	}
}

func (c *Client) submit(ctx context.Context, approvalHash string, digest [32]byte) AnchorResult {
	txHash, err := retry.Do(ctx, "ledger anchor", c.cfg.Retry, func(ctx context.Context) (string, error) {
		return c.backend.Submit(ctx, digest)
	})
	if err != nil {
		log.Printf("ledger: anchor %s failed: %v", approvalHash, err)
		return AnchorResult{Err: err}
	}
	c.Invalidate()
	log.Printf("ledger: anchored %s in tx %s", approvalHash, txHash)
	return AnchorResult{Ref: &Ref{TxHash: txHash, ViewerURL: ViewerURL(c.cfg.ExplorerBase, txHash)}}
}

// Invalidate marks the cache stale so the next RecentEntries re-queries regardless of TTL.
// The last entries are kept for fallback.
func (c *Client) Invalidate() {
	c.gen.Add(1)
	for {
		old := c.snap.Load()
		next := &snapshot{entries: old.entries, fetchedAt: old.fetchedAt, stale: true}
		if c.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

// RecentEntries returns anchors from the ledger's recent window. A fresh snapshot is returned as is;
// otherwise one refresh runs for all concurrent callers. On query failure, or if ctx ends first, the
// last good snapshot is returned (possibly empty). The returned slice must not be modified.
func (c *Client) RecentEntries(ctx context.Context) []Entry {
	if c.backend == nil {
		return []Entry{}
	}
	cur := c.snap.Load()
	if !cur.stale && c.nowF().Sub(cur.fetchedAt) < c.cfg.CacheTTL {
		return cur.entries
	}
	ch := c.group.DoChan("recent", func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.([]Entry)
	case <-ctx.Done():
		return c.snap.Load().entries
	}
}

func (c *Client) refresh(ctx context.Context) []Entry {
	gen := c.gen.Load()
	entries, err := retry.Do(ctx, "ledger query", c.cfg.Retry, func(ctx context.Context) ([]Entry, error) {
		return c.backend.QueryRecent(ctx)
	})
	if err != nil {
		log.Printf("ledger: recent entries query failed, serving cached view: %v", err)
		return c.snap.Load().entries
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.ViewerURL == "" {
			e.ViewerURL = ViewerURL(c.cfg.ExplorerBase, e.LedgerRef)
		}
		out[i] = e
	}
	c.publish(&snapshot{entries: out, fetchedAt: c.nowF()}, gen)
	return out
}

// publish stores a snapshot built from a query started at generation gen. A write that landed
// during the query may be missing from it, so any Invalidate since gen leaves the cache stale,
// including one whose CAS ran just before this Store.
func (c *Client) publish(next *snapshot, gen uint64) {
	next.stale = c.gen.Load() != gen
	c.snap.Store(next)
	if !next.stale && c.gen.Load() != gen {
		c.Invalidate()
	}
}

// FindEntry looks up an anchored approval hash in the recent entries (case-insensitive, 0x optional).
func (c *Client) FindEntry(ctx context.Context, approvalHash string) (Entry, bool) {
	want := normalizeHash(approvalHash)
	for _, e := range c.RecentEntries(ctx) {
		if normalizeHash(e.ApprovalHash) == want {
			return e, true
		}
	}
	return Entry{}, false
}

// LastRefresh returns when the cache was last filled from the ledger (zero if never).
func (c *Client) LastRefresh() time.Time {
	return c.snap.Load().fetchedAt
}

// Wait blocks until background anchors finish or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func normalizeHash(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X"))
}
