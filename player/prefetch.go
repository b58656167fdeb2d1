package player

import (
	"context"

	"github.com/charmbracelet/log"
)

// Prefetcher keeps a lookahead window of paragraphs warm in the render
// cache. It is fire-and-forget: warm-up never blocks a caller's own
// render-and-play path and failures are swallowed, since a miss later only
// costs the ordinary render latency. Repeated or concurrent invocations are
// safe because the cache is single-flight per key.
type Prefetcher struct {
	cache     RenderCache
	lookahead int
	logger    *log.Logger
}

// NewPrefetcher creates a prefetcher over the given cache.
func NewPrefetcher(cache RenderCache, lookahead int, logger *log.Logger) *Prefetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Prefetcher{
		cache:     cache,
		lookahead: lookahead,
		logger:    logger.WithPrefix("prefetch"),
	}
}

// Maintain warms current+1 .. current+lookahead, skipping indices beyond
// the document end.
func (p *Prefetcher) Maintain(doc *Document, current int) {
	if doc == nil || p.cache == nil {
		return
	}
	for i := 1; i <= p.lookahead; i++ {
		p.warmOne(doc, current+i)
	}
}

// Warm warms the exact indices given, used to pre-load a fresh book before
// playback starts.
func (p *Prefetcher) Warm(doc *Document, indices ...int) {
	if doc == nil || p.cache == nil {
		return
	}
	for _, idx := range indices {
		p.warmOne(doc, idx)
	}
}

func (p *Prefetcher) warmOne(doc *Document, idx int) {
	if idx < 0 || idx >= doc.Total() {
		return
	}
	text := doc.Paragraphs[idx]
	bookID := doc.ID
	go func() {
		if _, err := p.cache.Get(context.Background(), bookID, idx, text); err != nil {
			if IsDiscardable(err) {
				return
			}
			p.logger.Debug("warm-up failed", "book", bookID, "paragraph", idx, "error", err)
		}
	}()
}
