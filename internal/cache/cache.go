// Package cache provides the content-addressed render cache: it maps
// (bookID, paragraphIndex) to a locally playable audio file, rendering on
// miss with single-flight deduplication per key.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/lectern/player"
)

// RenderFunc converts paragraph text into playable audio bytes. The cache
// calls it at most once per key while an entry is in flight.
type RenderFunc func(ctx context.Context, text string) ([]byte, error)

// entry is the single live slot for an index: either a resolved resource or
// one in-flight render, never both and never more than one render. The book
// tag pins the identity the entry was created under; a settlement whose tag
// no longer matches the cache's current book is discarded.
type entry struct {
	book   string
	ready  chan struct{}
	cancel context.CancelFunc
	res    player.Resource
	err    error
}

// Cache renders and stores paragraph audio. Entries are only ever evicted
// wholesale by Reset when the book changes; documents are paragraph-bounded
// and modest in count, so no LRU bound is kept.
type Cache struct {
	mu      sync.Mutex
	book    string
	entries map[int]*entry

	render RenderFunc
	dir    string
	lease  *player.BackgroundLease
	logger *log.Logger

	hits    int64
	misses  int64
	joins   int64
	written int64 // bytes spilled to disk
}

// New creates a cache spilling rendered audio into dir. The lease is
// acquired around every network render so in-flight work can finish after
// the foreground suspends; it may be nil.
func New(render RenderFunc, dir string, lease *player.BackgroundLease, logger *log.Logger) (*Cache, error) {
	if render == nil {
		return nil, fmt.Errorf("render func is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	if lease == nil {
		lease = player.NewBackgroundLease(nil, nil)
	}
	return &Cache{
		entries: make(map[int]*entry),
		render:  render,
		dir:     dir,
		lease:   lease,
		logger:  logger.WithPrefix("cache"),
	}, nil
}

// ResourcePath returns the deterministic on-disk name for a key, so lookups
// and cleanup stay idempotent and collision-free across concurrent books.
func (c *Cache) ResourcePath(bookID string, index int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%d.mp3", bookID, index))
}

// Get resolves the resource for (bookID, index), rendering on miss. All
// concurrent callers for the same key share one render; a failure is
// propagated to every joined caller and not cached, so the next access may
// retry. Get blocks until the entry settles or ctx is done. Cancelling ctx
// abandons the wait, not the render, which other consumers may still want.
func (c *Cache) Get(ctx context.Context, bookID string, index int, text string) (player.Resource, error) {
	c.mu.Lock()
	if c.book != bookID {
		c.mu.Unlock()
		return player.Resource{}, fmt.Errorf("book %q not active: %w", bookID, player.ErrSuperseded)
	}

	if e, ok := c.entries[index]; ok {
		c.joins++
		c.mu.Unlock()
		return c.wait(ctx, e)
	}

	// Spilled audio from an earlier session resolves without a render.
	path := c.ResourcePath(bookID, index)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		e := &entry{book: bookID, ready: make(chan struct{})}
		e.res = player.Resource{BookID: bookID, Index: index, Path: path}
		close(e.ready)
		c.entries[index] = e
		c.hits++
		c.mu.Unlock()
		return e.res, nil
	}

	c.misses++
	rctx, cancel := context.WithCancel(context.Background())
	e := &entry{book: bookID, ready: make(chan struct{}), cancel: cancel}
	c.entries[index] = e
	c.mu.Unlock()

	go c.fill(rctx, e, bookID, index, text)

	return c.wait(ctx, e)
}

// fill performs the single render for an entry and settles it. The render
// runs on its own context so that cancelling one waiting caller never kills
// work other consumers joined.
func (c *Cache) fill(ctx context.Context, e *entry, bookID string, index int, text string) {
	c.lease.Acquire()
	defer c.lease.Release()

	data, err := c.render(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(e.ready)

	if c.book != bookID {
		// The book changed while rendering; nothing of this result may
		// reach the new book's state.
		e.err = player.ErrSuperseded
		return
	}

	if err != nil {
		e.err = err
		delete(c.entries, index)
		c.logger.Debug("render failed", "book", bookID, "paragraph", index, "error", err)
		return
	}

	path := c.ResourcePath(bookID, index)
	if werr := os.WriteFile(path, data, 0o644); werr != nil {
		e.err = fmt.Errorf("writing audio file: %w", werr)
		delete(c.entries, index)
		return
	}

	c.written += int64(len(data))
	e.res = player.Resource{BookID: bookID, Index: index, Path: path}
	c.logger.Debug("rendered", "book", bookID, "paragraph", index,
		"size", humanize.Bytes(uint64(len(data))), "total", humanize.Bytes(uint64(c.written)))
}

// wait blocks until the entry settles or ctx is done.
func (c *Cache) wait(ctx context.Context, e *entry) (player.Resource, error) {
	select {
	case <-ctx.Done():
		return player.Resource{}, ctx.Err()
	case <-e.ready:
	}
	if e.err != nil {
		return player.Resource{}, e.err
	}
	return e.res, nil
}

// Reset switches the cache to a new book, cancelling every outstanding
// render. In-flight fills tagged with the old identity discard their
// results when they settle. Spilled files stay on disk; the deterministic
// naming lets a re-opened book reuse them.
func (c *Cache) Reset(bookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
	c.entries = make(map[int]*entry)
	c.book = bookID
	c.logger.Debug("reset", "book", bookID)
}

// Purge removes a book's spilled files. Safe to call repeatedly.
func (c *Cache) Purge(bookID string) error {
	pattern := filepath.Join(c.dir, fmt.Sprintf("%s_*.mp3", bookID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("listing cache files: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", m, err)
		}
	}
	return nil
}

// Stats reports cache effectiveness counters.
func (c *Cache) Stats() (hits, misses, joins int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.joins
}
