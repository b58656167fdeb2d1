package player

import "sync"

// NowPlaying is the metadata snapshot an integration layer publishes to the
// host OS media-session facility. Recomputed on every position, rate or
// session-active change.
type NowPlaying struct {
	Title           string
	Artwork         []byte // nil when the document has no cover
	DurationSeconds float64
	ElapsedSeconds  float64
	Rate            float64
	Playing         bool
}

// TransportPublisher receives now-playing snapshots. Implementations talk to
// whatever media-session facility the host offers; the engine only computes
// the fields. Publish runs on the session's owner thread and must not call
// back into the session.
type TransportPublisher interface {
	Publish(np NowPlaying)
}

// NopPublisher discards snapshots.
type NopPublisher struct{}

// Publish implements TransportPublisher.
func (NopPublisher) Publish(NowPlaying) {}

// RemoteCommand is a transport command received from the host OS. Commands
// map 1:1 onto session control calls. Scrub-to-absolute-time is not a
// command: the engine is paragraph-granular and fine-grained scrubbing is a
// stated capability limit of this design.
type RemoteCommand int

const (
	// CommandPlay starts or resumes playback.
	CommandPlay RemoteCommand = iota
	// CommandPause halts playback.
	CommandPause
	// CommandNext skips forward one paragraph.
	CommandNext
	// CommandPrevious skips backward one paragraph.
	CommandPrevious
)

// String returns the string representation of the command.
func (c RemoteCommand) String() string {
	switch c {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandNext:
		return "next"
	case CommandPrevious:
		return "previous"
	default:
		return "unknown"
	}
}

// BackgroundLease keeps the process alive while network renders are in
// flight after foreground execution suspends. Acquire/Release calls are
// reference-counted and Release is idempotent when nothing is held, so
// racing success and failure paths cannot double-release.
type BackgroundLease struct {
	mu    sync.Mutex
	held  int
	begin func()
	end   func()
}

// NewBackgroundLease creates a lease around begin/end callbacks. Either may
// be nil. begin fires when the count rises from zero, end when it returns
// to zero.
func NewBackgroundLease(begin, end func()) *BackgroundLease {
	return &BackgroundLease{begin: begin, end: end}
}

// Acquire takes one lease reference.
func (l *BackgroundLease) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held++
	if l.held == 1 && l.begin != nil {
		l.begin()
	}
}

// Release drops one lease reference. Safe to call when none is held.
func (l *BackgroundLease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == 0 {
		return
	}
	l.held--
	if l.held == 0 && l.end != nil {
		l.end()
	}
}

// Held returns the current reference count.
func (l *BackgroundLease) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
