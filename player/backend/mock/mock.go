// Package mock provides a scripted synthesis backend for tests and for
// running the engine without audio hardware or credentials.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/lectern/player"
)

// Backend is a controllable in-memory synthesis backend. It can act as
// either the remote (render) or local (utterance) variant, injects
// configurable latency and failures, and records every call for
// assertions.
type Backend struct {
	mu sync.Mutex

	remote      bool
	renderDelay time.Duration
	renderErr   error
	speakErr    error
	rate        float64
	closed      bool

	renders    []string // rendered texts, in call order
	utterances []player.UtteranceRequest
	current    *player.UtteranceRequest

	events chan player.UtteranceEvent
}

// Option configures a Backend.
type Option func(*Backend)

// WithRemote makes the backend act as the remote variant.
func WithRemote() Option {
	return func(b *Backend) { b.remote = true }
}

// WithRenderDelay injects latency into every render.
func WithRenderDelay(d time.Duration) Option {
	return func(b *Backend) { b.renderDelay = d }
}

// WithRenderError makes every render fail with err.
func WithRenderError(err error) Option {
	return func(b *Backend) { b.renderErr = err }
}

// New creates a mock backend. Without options it acts as the local variant.
func New(opts ...Option) *Backend {
	b := &Backend{
		rate:   1.0,
		events: make(chan player.UtteranceEvent, 32),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements player.SynthesisBackend.
func (b *Backend) Name() string { return "mock" }

// IsRemote implements player.SynthesisBackend.
func (b *Backend) IsRemote() bool { return b.remote }

// Render implements player.SynthesisBackend.
func (b *Backend) Render(ctx context.Context, text string) ([]byte, error) {
	b.mu.Lock()
	delay := b.renderDelay
	err := b.renderErr
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.renders = append(b.renders, text)
	b.mu.Unlock()
	return []byte("audio:" + text), nil
}

// Speak implements player.SynthesisBackend.
func (b *Backend) Speak(_ context.Context, utt player.UtteranceRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.speakErr != nil {
		return b.speakErr
	}
	b.utterances = append(b.utterances, utt)
	u := utt
	b.current = &u
	b.emitLocked(player.UtteranceEvent{Type: player.UtteranceStarted, BookID: utt.BookID, Index: utt.Index})
	return nil
}

// FinishUtterance emits the finished event for the in-flight utterance,
// simulating it draining to its end.
func (b *Backend) FinishUtterance() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return
	}
	u := *b.current
	b.current = nil
	b.emitLocked(player.UtteranceEvent{Type: player.UtteranceFinished, BookID: u.BookID, Index: u.Index})
}

// PauseUtterance implements player.SynthesisBackend.
func (b *Backend) PauseUtterance() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.emitLocked(player.UtteranceEvent{Type: player.UtterancePaused, BookID: b.current.BookID, Index: b.current.Index})
	}
	return nil
}

// ResumeUtterance implements player.SynthesisBackend.
func (b *Backend) ResumeUtterance() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.emitLocked(player.UtteranceEvent{Type: player.UtteranceResumed, BookID: b.current.BookID, Index: b.current.Index})
	}
	return nil
}

// CancelUtterance implements player.SynthesisBackend.
func (b *Backend) CancelUtterance() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		u := *b.current
		b.current = nil
		b.emitLocked(player.UtteranceEvent{Type: player.UtteranceCancelled, BookID: u.BookID, Index: u.Index})
	}
	return nil
}

// SetRate implements player.SynthesisBackend.
func (b *Backend) SetRate(rate float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = rate
	return nil
}

// SetRenderError changes the injected render failure at runtime.
func (b *Backend) SetRenderError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.renderErr = err
}

// Events implements player.SynthesisBackend.
func (b *Backend) Events() <-chan player.UtteranceEvent {
	if b.remote {
		return nil
	}
	return b.events
}

// Close implements player.SynthesisBackend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.events)
	return nil
}

// RenderCount returns how many renders completed successfully.
func (b *Backend) RenderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.renders)
}

// Renders returns the rendered texts in call order.
func (b *Backend) Renders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.renders))
	copy(out, b.renders)
	return out
}

// Utterances returns the recorded utterance requests.
func (b *Backend) Utterances() []player.UtteranceRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]player.UtteranceRequest, len(b.utterances))
	copy(out, b.utterances)
	return out
}

// Rate returns the last rate passed to SetRate.
func (b *Backend) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

func (b *Backend) emitLocked(ev player.UtteranceEvent) {
	select {
	case b.events <- ev:
	default:
	}
}

var _ player.SynthesisBackend = (*Backend)(nil)
