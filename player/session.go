// Package player implements a paragraph-granular audio playback engine for
// long-form text: it renders a document's paragraphs into sequential audio
// through interchangeable synthesis backends, prefetches ahead of the
// listening position, and exposes transport controls plus progress
// estimation.
package player

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Dependencies are the collaborators injected into a session. Backend is
// required; everything else may be nil and is replaced with a no-op.
type Dependencies struct {
	Backend   SynthesisBackend
	Cache     RenderCache // required when Backend.IsRemote()
	Player    AudioPlayer // required when Backend.IsRemote()
	Store     ProgressStore
	Telemetry Telemetry
	Publisher TransportPublisher
	Lease     *BackgroundLease
	Logger    *log.Logger
}

// Session is the playback state machine and orchestrator. It owns the
// current position and session-active flag and reconciles user controls,
// render completions and utterance events into a single authoritative
// state: all mutation happens under one mutex, and asynchronous completions
// re-enter through an event loop that discards anything tagged with a
// superseded generation.
type Session struct {
	mu sync.Mutex

	cfg       Config
	backend   SynthesisBackend
	cache     RenderCache
	player    AudioPlayer
	store     ProgressStore
	telemetry Telemetry
	publisher TransportPublisher
	lease     *BackgroundLease
	prefetch  *Prefetcher
	logger    *log.Logger

	doc           *Document
	idx           int
	machine       *StateMachine
	sessionActive bool
	rate          float64
	errMsg        string

	// ended is set by the completion event for the current paragraph, so
	// Play can decide restart-vs-resume without comparing durations.
	ended       bool
	hasResource bool

	// gen identifies the active playback task. Every jump, pause or restart
	// replaces it; a task whose generation no longer matches must not touch
	// session state when it settles.
	gen        uint64
	cancelTask context.CancelFunc

	events chan sessionEvent
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewSession creates a session with the given configuration and
// collaborators and starts its event loop.
func NewSession(cfg Config, deps Dependencies) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if deps.Backend.IsRemote() {
		if deps.Cache == nil {
			return nil, errors.New("render cache is required for a remote backend")
		}
		if deps.Player == nil {
			return nil, errors.New("audio player is required for a remote backend")
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	store := deps.Store
	if store == nil {
		store = nopStore{}
	}
	telemetry := deps.Telemetry
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = NopPublisher{}
	}
	lease := deps.Lease
	if lease == nil {
		lease = NewBackgroundLease(nil, nil)
	}

	s := &Session{
		cfg:       cfg,
		backend:   deps.Backend,
		cache:     deps.Cache,
		player:    deps.Player,
		store:     store,
		telemetry: telemetry,
		publisher: publisher,
		lease:     lease,
		logger:    logger.WithPrefix("session"),
		machine:   NewStateMachine(),
		rate:      ClampRate(cfg.Rate),
		events:    make(chan sessionEvent, 16),
		done:      make(chan struct{}),
	}
	s.prefetch = NewPrefetcher(deps.Cache, cfg.Lookahead, logger)

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// LoadBook replaces the active document. Loading the same book again is a
// no-op. All per-book state resets atomically: position, session flags and
// the render cache, with every pending render cancelled, before the
// lookahead warm-up for the initial position starts.
func (s *Session) LoadBook(doc Document, initialIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if doc.Total() == 0 {
		return ErrEmptyDocument
	}
	if s.doc != nil && s.doc.ID == doc.ID {
		return nil
	}

	s.logger.Info("loading book", "book", doc.ID, "title", doc.Title, "paragraphs", doc.Total())

	s.supersedeLocked()
	s.stopOutputLocked()
	if s.cache != nil {
		s.cache.Reset(doc.ID)
	}

	d := doc
	s.doc = &d
	s.idx = clampIndex(initialIndex, doc.Total())
	s.machine.Reset()
	s.sessionActive = false
	s.ended = false
	s.hasResource = false
	s.errMsg = ""

	s.publishLocked()
	s.prefetch.Warm(s.doc, s.idx, s.idx+1)
	return nil
}

// Play marks the user intent to be playing and makes it so: resume the
// current resource if one is loaded and unfinished, otherwise start a fresh
// render-and-play of the current paragraph. A resource that already reached
// its end restarts instead of resuming.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.doc == nil {
		return ErrNoDocument
	}

	s.sessionActive = true
	s.errMsg = ""

	if s.hasResource && !s.ended {
		if s.backend.IsRemote() {
			_ = s.player.SetRate(s.rate)
			if err := s.player.Resume(); err != nil {
				s.logger.Warn("resume failed", "error", err)
			}
		} else {
			if err := s.backend.ResumeUtterance(); err != nil {
				s.logger.Warn("resume failed", "error", err)
			}
		}
		s.machine.Transition(StatePlaying)
		s.publishLocked()
		return nil
	}

	s.startPlaybackLocked()
	s.prefetch.Maintain(s.doc, s.idx)
	s.publishLocked()
	return nil
}

// Pause clears the session-active flag, halts audible output and cancels
// any in-flight work that exists solely to start playback. Cached and
// in-flight renders survive, so resuming is cheap.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.sessionActive = false
	s.supersedeLocked()

	if s.hasResource {
		if s.backend.IsRemote() {
			if err := s.player.Pause(); err != nil {
				s.logger.Warn("pause failed", "error", err)
			}
		} else {
			if err := s.backend.PauseUtterance(); err != nil {
				s.logger.Warn("pause failed", "error", err)
			}
		}
	}

	if st := s.machine.Current(); st == StatePlaying || st == StateLoading {
		s.machine.Transition(StatePaused)
	}
	s.publishLocked()
	return nil
}

// SkipForward jumps amount paragraphs ahead. A no-op at the last paragraph.
func (s *Session) SkipForward(amount int) {
	s.skip(amount)
}

// SkipBackward jumps amount paragraphs back. A no-op at the first paragraph.
func (s *Session) SkipBackward(amount int) {
	s.skip(-amount)
}

func (s *Session) skip(delta int) {
	if delta == 0 {
		delta = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.doc == nil {
		return
	}
	target := clampIndex(s.idx+delta, s.doc.Total())
	if target == s.idx {
		return
	}
	s.jumpLocked(target)
}

// Seek maps a fraction in [0, 1] onto a paragraph index and jumps there.
// Unlike skips, seeking always restarts playback, even when it resolves to
// the current index: seeking to 0% at paragraph 0 replays paragraph 0.
func (s *Session) Seek(percentage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.doc == nil {
		return
	}
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 1 {
		percentage = 1
	}
	target := clampIndex(int(percentage*float64(s.doc.Total())), s.doc.Total())
	s.jumpLocked(target)
}

// RestorePosition silently syncs the position to a persisted value without
// starting playback or persisting it back. Out-of-range input is ignored.
func (s *Session) RestorePosition(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.doc == nil {
		return
	}
	if index < 0 || index >= s.doc.Total() {
		return
	}
	s.idx = index
	s.ended = false
	s.hasResource = false
	s.publishLocked()
}

// SetRate updates the playback rate, clamped to the supported range. The
// remote path applies it to audio already playing; the local primitive
// cannot, so there it takes effect from the next utterance.
func (s *Session) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.rate = ClampRate(rate)
	if s.backend.IsRemote() {
		if s.hasResource {
			_ = s.player.SetRate(s.rate)
		}
	} else {
		_ = s.backend.SetRate(s.rate)
	}
	s.publishLocked()
}

// Rate returns the current playback rate.
func (s *Session) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// HandleRemoteCommand maps an OS transport command 1:1 onto the control
// surface.
func (s *Session) HandleRemoteCommand(cmd RemoteCommand) {
	switch cmd {
	case CommandPlay:
		_ = s.Play()
	case CommandPause:
		_ = s.Pause()
	case CommandNext:
		s.SkipForward(1)
	case CommandPrevious:
		s.SkipBackward(1)
	}
}

// Snapshot is the read-only observable state of a session.
type Snapshot struct {
	State            SessionState
	IsPlaying        bool // audibly producing sound; derived, never settable
	IsSessionActive  bool // user intent to be playing
	IsLoading        bool
	CurrentParagraph int
	TotalParagraphs  int
	ErrorMessage     string
	Progress         float64
	Percentage       string
	TimeElapsed      string
	TimeRemaining    string
	Rate             float64
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// NowPlaying returns the metadata snapshot for an OS media-session
// integration.
func (s *Session) NowPlaying() NowPlaying {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowPlayingLocked()
}

// Close shuts the session down: all pending work is superseded, output
// halts and the backend is released.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.supersedeLocked()
	s.stopOutputLocked()
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return s.backend.Close()
}

// run is the owner loop consuming asynchronous completions. Utterance
// events and internal task events both funnel through here so that only one
// goroutine ever advances the position in response to them.
func (s *Session) run() {
	defer s.wg.Done()

	backendEvents := s.backend.Events()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.handleTaskEvent(ev)
		case ue, ok := <-backendEvents:
			if !ok {
				backendEvents = nil
				continue
			}
			s.handleUtteranceEvent(ue)
		}
	}
}

func (s *Session) handleTaskEvent(ev sessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || ev.gen != s.gen || s.doc == nil || s.doc.ID != ev.bookID {
		s.logger.Debug("discarding superseded event", "book", ev.bookID, "paragraph", ev.index)
		return
	}
	switch ev.kind {
	case evFinished:
		s.finishParagraphLocked(ev.index)
	case evRenderErr:
		s.applyFailureLocked(ev.index, ev.err)
	}
}

func (s *Session) handleUtteranceEvent(ev UtteranceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.doc == nil || s.doc.ID != ev.BookID || ev.Index != s.idx {
		s.logger.Debug("discarding stale utterance event", "type", ev.Type, "book", ev.BookID, "paragraph", ev.Index)
		return
	}

	switch ev.Type {
	case UtteranceStarted:
		if s.sessionActive {
			s.machine.Transition(StatePlaying)
			s.publishLocked()
		}
	case UtteranceFinished:
		s.finishParagraphLocked(ev.Index)
	case UtteranceCancelled:
		// Superseded by a jump or pause; the control path already moved on.
		if ev.Err != nil && !IsDiscardable(ev.Err) {
			s.applyFailureLocked(ev.Index, ev.Err)
		}
	case UtterancePaused, UtteranceResumed:
		// Driven by this session's own control calls; nothing to reconcile.
	}
}

// finishParagraphLocked advances past a completed paragraph, or finishes the
// session at the end of the document. The index stays on the last paragraph
// when the book ends.
func (s *Session) finishParagraphLocked(index int) {
	if index != s.idx {
		return
	}

	s.ended = true
	s.hasResource = false
	s.telemetry.RecordSeconds(EstimateSeconds(len([]rune(s.doc.Paragraphs[index])), s.rate))

	if s.idx >= s.doc.Total()-1 {
		s.logger.Info("book finished", "book", s.doc.ID)
		s.sessionActive = false
		s.machine.Transition(StateFinished)
		s.persistLocked()
		s.publishLocked()
		return
	}

	s.idx++
	s.startPlaybackLocked()
	s.prefetch.Maintain(s.doc, s.idx)
	s.persistLocked()
	s.publishLocked()
}

// jumpLocked halts the current output, supersedes pending work and starts a
// fresh render-and-play at index. The old index's cache entry stays behind
// for potential reuse.
func (s *Session) jumpLocked(index int) {
	s.stopOutputLocked()
	s.idx = index
	s.sessionActive = true
	s.startPlaybackLocked()
	s.prefetch.Maintain(s.doc, index)
	s.persistLocked()
	s.publishLocked()
}

// startPlaybackLocked replaces the active playback task with a fresh one
// for the current paragraph. Oversized paragraphs fail here synchronously;
// everything else proceeds on a background task tagged with the new
// generation.
func (s *Session) startPlaybackLocked() {
	s.supersedeLocked()
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTask = cancel

	doc := s.doc
	index := s.idx
	text := doc.Paragraphs[index]
	rate := s.rate

	s.errMsg = ""
	s.ended = false
	s.hasResource = false
	s.machine.Transition(StateLoading)

	task := uuid.NewString()[:8]
	s.logger.Debug("starting playback task", "task", task, "book", doc.ID, "paragraph", index)

	if len([]rune(text)) > s.cfg.MaxParagraphChars {
		s.applyFailureLocked(index, NewPlaybackError(ErrContentTooLarge, "session", "render", index))
		return
	}

	if s.backend.IsRemote() {
		go s.renderAndPlay(ctx, gen, doc.ID, index, text)
	} else {
		go s.speak(ctx, gen, doc.ID, index, text, rate)
	}
}

// renderAndPlay is the remote playback task: pull the resource through the
// cache (render on miss, join on in-flight), then hand it to the player if
// this task is still the active one.
func (s *Session) renderAndPlay(ctx context.Context, gen uint64, bookID string, index int, text string) {
	s.lease.Acquire()
	defer s.lease.Release()

	res, err := s.cache.Get(ctx, bookID, index, text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen || s.doc == nil || s.doc.ID != bookID {
		return
	}
	if err != nil {
		if IsDiscardable(err) || errors.Is(err, context.Canceled) {
			return
		}
		s.applyFailureLocked(index, NewPlaybackError(err, "backend", "render", index))
		return
	}
	if !s.sessionActive {
		// Paused while loading; the resource stays cached for resume.
		return
	}

	onDone := func() {
		s.post(sessionEvent{kind: evFinished, bookID: bookID, index: index, gen: gen})
	}
	if err := s.player.Play(res, s.rate, onDone); err != nil {
		s.applyFailureLocked(index, NewPlaybackError(err, "player", "play", index))
		return
	}

	s.hasResource = true
	s.machine.Transition(StatePlaying)
	s.publishLocked()
}

// speak is the local playback task: drive the utterance primitive directly.
// Completion arrives as an UtteranceFinished event, not through the cache
// path.
func (s *Session) speak(ctx context.Context, gen uint64, bookID string, index int, text string, rate float64) {
	err := s.backend.Speak(ctx, UtteranceRequest{
		BookID: bookID,
		Index:  index,
		Text:   text,
		Rate:   rate,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen || s.doc == nil || s.doc.ID != bookID {
		return
	}
	if err != nil {
		if IsDiscardable(err) || errors.Is(err, context.Canceled) {
			return
		}
		s.applyFailureLocked(index, NewPlaybackError(err, "backend", "speak", index))
		return
	}

	s.hasResource = true
	if s.sessionActive {
		s.machine.Transition(StatePlaying)
	}
	s.publishLocked()
}

// applyFailureLocked converts a render or playback failure into the
// user-visible error surface. The session stays at the offending paragraph,
// non-playing, until the user skips or retries; nothing auto-advances.
func (s *Session) applyFailureLocked(index int, err error) {
	s.logger.Error("playback failed", "paragraph", index, "error", err)
	s.errMsg = err.Error()
	s.sessionActive = false
	s.hasResource = false
	s.ended = false
	if st := s.machine.Current(); st == StatePlaying || st == StateLoading {
		s.machine.Transition(StatePaused)
	}
	s.publishLocked()
}

// supersedeLocked invalidates the active playback task. Its eventual
// settlement becomes a no-op; renders it may have started keep running for
// the cache.
func (s *Session) supersedeLocked() {
	s.gen++
	if s.cancelTask != nil {
		s.cancelTask()
		s.cancelTask = nil
	}
}

func (s *Session) stopOutputLocked() {
	if s.backend.IsRemote() {
		if s.player != nil {
			_ = s.player.Stop()
		}
	} else {
		_ = s.backend.CancelUtterance()
	}
	s.hasResource = false
}

func (s *Session) persistLocked() {
	if s.doc == nil {
		return
	}
	if err := s.store.Save(s.doc.ID, s.idx); err != nil {
		s.logger.Warn("progress save failed", "book", s.doc.ID, "error", err)
	}
}

func (s *Session) publishLocked() {
	s.publisher.Publish(s.nowPlayingLocked())
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.machine.Current()
	snap := Snapshot{
		State:           st,
		IsSessionActive: s.sessionActive,
		IsLoading:       st == StateLoading,
		IsPlaying:       st == StatePlaying && s.sessionActive,
		ErrorMessage:    s.errMsg,
		Rate:            s.rate,
	}
	if s.doc == nil {
		return snap
	}
	snap.CurrentParagraph = s.idx
	snap.TotalParagraphs = s.doc.Total()
	snap.Progress = Progress(s.idx, s.doc.Total())
	snap.Percentage = FormatPercent(snap.Progress)
	snap.TimeElapsed = FormatClock(ElapsedSeconds(s.doc.Paragraphs, s.idx, s.rate))
	snap.TimeRemaining = FormatClock(RemainingSeconds(s.doc.Paragraphs, s.idx, s.rate))
	return snap
}

func (s *Session) nowPlayingLocked() NowPlaying {
	np := NowPlaying{
		Rate:    s.rate,
		Playing: s.machine.Current() == StatePlaying && s.sessionActive,
	}
	if s.doc == nil {
		return np
	}
	np.Title = s.doc.Title
	np.Artwork = s.doc.Artwork
	np.DurationSeconds = TotalSeconds(s.doc.Paragraphs, s.rate)
	np.ElapsedSeconds = ElapsedSeconds(s.doc.Paragraphs, s.idx, s.rate)
	return np
}

// post delivers an event to the owner loop unless the session is shutting
// down.
func (s *Session) post(ev sessionEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func clampIndex(index, total int) int {
	if index < 0 {
		return 0
	}
	if index > total-1 {
		return total - 1
	}
	return index
}

type nopStore struct{}

func (nopStore) Save(string, int) error { return nil }

type nopTelemetry struct{}

func (nopTelemetry) RecordSeconds(float64) {}
