package player

import (
	"context"
)

// Document is the playable unit: an ordered, immutable sequence of
// paragraphs plus the identity and metadata a transport layer publishes.
// Splitting source files into paragraphs is the caller's job.
type Document struct {
	ID         string   // Opaque stable identifier
	Title      string   // Human-readable title for now-playing metadata
	Artwork    []byte   // Optional cover image bytes
	Paragraphs []string // Non-empty, whitespace-trimmed paragraph strings
}

// Total returns the number of paragraphs.
func (d *Document) Total() int {
	if d == nil {
		return 0
	}
	return len(d.Paragraphs)
}

// Resource is a locally playable rendered paragraph, named deterministically
// as {bookID}_{paragraphIndex} so lookups and cleanup are idempotent across
// concurrent books.
type Resource struct {
	BookID string
	Index  int
	Path   string // Absolute path of the audio file
}

// SynthesisBackend converts paragraph text into audio. The remote
// implementation renders rate-independent resources pulled through the
// render cache; the local one drives an utterance primitive directly and
// reports its lifecycle on Events. A session decides between the two paths
// through IsRemote and nothing else.
type SynthesisBackend interface {
	// Name identifies the backend in logs.
	Name() string

	// IsRemote reports whether rendered audio flows through the cache
	// (remote) or the backend drives utterances directly (local).
	IsRemote() bool

	// Render converts text into playable audio bytes. Local backends return
	// ErrNotSupported.
	Render(ctx context.Context, text string) ([]byte, error)

	// Speak renders and starts one utterance. Remote backends return
	// ErrNotSupported. Lifecycle events for the utterance arrive on Events.
	Speak(ctx context.Context, utt UtteranceRequest) error

	// PauseUtterance halts the in-flight utterance, if any.
	PauseUtterance() error

	// ResumeUtterance continues a paused utterance.
	ResumeUtterance() error

	// CancelUtterance discards the in-flight utterance. Its terminal event
	// is UtteranceCancelled, never UtteranceFinished.
	CancelUtterance() error

	// SetRate updates the synthesis rate. On the local backend this cannot
	// affect an utterance already in flight; it applies from the next
	// utterance on and the call is a no-op, not an error.
	SetRate(rate float64) error

	// Events delivers utterance lifecycle events. Remote backends return a
	// nil channel.
	Events() <-chan UtteranceEvent

	// Close releases backend resources.
	Close() error
}

// UtteranceRequest describes one paragraph for direct utterance playback.
type UtteranceRequest struct {
	BookID string
	Index  int
	Text   string
	Rate   float64 // Effective rate, baked into the utterance
	Voice  string
}

// AudioPlayer plays rendered resources. Rate is applied at this layer on
// the remote path, so cached audio stays reusable across rate changes.
type AudioPlayer interface {
	// Play decodes and starts the resource at the given rate. onDone fires
	// exactly once when the resource drains to its end; it does not fire
	// after Stop.
	Play(res Resource, rate float64, onDone func()) error

	// Pause halts audible output, keeping position.
	Pause() error

	// Resume continues from the paused position.
	Resume() error

	// Stop discards the current resource without firing onDone.
	Stop() error

	// SetRate changes the playback rate of the current and subsequent
	// resources.
	SetRate(rate float64) error

	// IsPlaying reports whether audio is audibly playing.
	IsPlaying() bool
}

// RenderCache maps (bookID, index) to a playable resource, rendering on
// miss. Concurrent calls for the same key share a single render.
type RenderCache interface {
	// Get blocks until the resource for the key resolves or ctx is done.
	Get(ctx context.Context, bookID string, index int, text string) (Resource, error)

	// Reset switches the cache to a new book identity, cancelling all
	// outstanding renders. Results tagged with an older identity are
	// discarded when they settle.
	Reset(bookID string)
}

// ProgressStore persists the listening position. Called on every position
// change; never read back by the session.
type ProgressStore interface {
	Save(bookID string, index int) error
}

// Telemetry receives seconds-of-playback accounting.
type Telemetry interface {
	RecordSeconds(seconds float64)
}
