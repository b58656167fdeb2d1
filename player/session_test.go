package player_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/lectern/internal/cache"
	"github.com/dgnsrekt/lectern/player"
	"github.com/dgnsrekt/lectern/player/audio"
	"github.com/dgnsrekt/lectern/player/backend/mock"
)

// memStore records progress saves for assertions.
type memStore struct {
	mu    sync.Mutex
	saves map[string]int
	calls int
}

func newMemStore() *memStore {
	return &memStore{saves: make(map[string]int)}
}

func (m *memStore) Save(bookID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[bookID] = index
	m.calls++
	return nil
}

func (m *memStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memStore) Saved(bookID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.saves[bookID]
	return idx, ok
}

// remoteFixture bundles a session wired with the remote mock backend, the
// real render cache and a mock audio player.
type remoteFixture struct {
	session *player.Session
	backend *mock.Backend
	out     *audio.MockPlayer
	store   *memStore
}

func newRemoteFixture(t *testing.T, opts ...mock.Option) *remoteFixture {
	t.Helper()

	b := mock.New(append([]mock.Option{mock.WithRemote()}, opts...)...)
	out := audio.NewMockPlayer()
	store := newMemStore()

	c, err := cache.New(b.Render, t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}

	cfg := player.DefaultConfig()
	cfg.Engine = player.EngineMock
	s, err := player.NewSession(cfg, player.Dependencies{
		Backend: b,
		Cache:   c,
		Player:  out,
		Store:   store,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return &remoteFixture{session: s, backend: b, out: out, store: store}
}

func testDocument(paragraphs ...string) player.Document {
	return player.Document{ID: "book1", Title: "Test Book", Paragraphs: paragraphs}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// countRenders returns how many times text was rendered, across playback
// and prefetch warm-ups.
func countRenders(b *mock.Backend, text string) int {
	n := 0
	for _, r := range b.Renders() {
		if r == text {
			n++
		}
	}
	return n
}

// TestPlayRendersAndAdvances walks a three-paragraph book to the end.
func TestPlayRendersAndAdvances(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("first paragraph", "second paragraph", "third paragraph")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatalf("LoadBook() error = %v", err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		want := i + 1
		waitFor(t, "paragraph to start", func() bool {
			play, _, _, _ := f.out.Counts()
			return play == want
		})
		snap := f.session.Snapshot()
		if snap.CurrentParagraph != i {
			t.Fatalf("CurrentParagraph = %d, want %d", snap.CurrentParagraph, i)
		}
		f.out.FinishCurrent()
	}

	waitFor(t, "finished state", func() bool {
		return f.session.Snapshot().State == player.StateFinished
	})
	snap := f.session.Snapshot()
	if snap.CurrentParagraph != 2 {
		t.Errorf("CurrentParagraph after finish = %d, want 2 (index stays on last paragraph)", snap.CurrentParagraph)
	}
	if snap.IsSessionActive {
		t.Error("IsSessionActive after finish = true, want false")
	}
	for _, text := range doc.Paragraphs {
		if n := countRenders(f.backend, text); n != 1 {
			t.Errorf("renders for %q = %d, want 1", text, n)
		}
	}
}

// TestCompletionReusesPrefetchedAudio verifies advancing to a paragraph the
// prefetcher already rendered does not render it again.
func TestCompletionReusesPrefetchedAudio(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("alpha", "beta", "gamma")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first paragraph playing", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 1
	})
	// Give the lookahead warm-up time to settle before advancing.
	waitFor(t, "prefetch of second paragraph", func() bool {
		return countRenders(f.backend, "beta") == 1
	})

	f.out.FinishCurrent()
	waitFor(t, "second paragraph playing", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 2
	})

	if n := countRenders(f.backend, "beta"); n != 1 {
		t.Errorf("renders for prefetched paragraph = %d, want 1", n)
	}
}

// TestPauseWhileLoadingSharesRender verifies the pause-then-play-before-
// settle sequence produces exactly one render: pausing cancels the playback
// task but never the render, and the retry joins it.
func TestPauseWhileLoadingSharesRender(t *testing.T) {
	f := newRemoteFixture(t, mock.WithRenderDelay(60*time.Millisecond))
	doc := testDocument("slow paragraph")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Pause(); err != nil {
		t.Fatal(err)
	}

	snap := f.session.Snapshot()
	if snap.State != player.StatePaused {
		t.Fatalf("State after pause = %v, want paused", snap.State)
	}
	if snap.IsSessionActive {
		t.Fatal("IsSessionActive after pause = true, want false")
	}

	// Let the in-flight render settle into the cache.
	waitFor(t, "render to settle", func() bool {
		return countRenders(f.backend, "slow paragraph") == 1
	})

	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback to start", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 1
	})

	if n := countRenders(f.backend, "slow paragraph"); n != 1 {
		t.Errorf("renders = %d, want 1 (resume must reuse the shared render)", n)
	}
}

// TestPauseResumeKeepsResource verifies pausing audible playback resumes the
// same resource instead of restarting it.
func TestPauseResumeKeepsResource(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("paragraph one", "paragraph two")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		return f.session.Snapshot().IsPlaying
	})

	if err := f.session.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing again", func() bool {
		return f.session.Snapshot().IsPlaying
	})

	play, pause, resume, _ := f.out.Counts()
	if play != 1 {
		t.Errorf("play calls = %d, want 1 (resume must not restart)", play)
	}
	if pause != 1 || resume != 1 {
		t.Errorf("pause/resume calls = %d/%d, want 1/1", pause, resume)
	}
}

// TestSeekZeroRestartsCurrentParagraph verifies seeking always restarts,
// even when it resolves to the current index.
func TestSeekZeroRestartsCurrentParagraph(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("only paragraph", "second")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 1
	})

	f.session.Seek(0)

	waitFor(t, "restart", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 2
	})
	if got := f.session.Snapshot().CurrentParagraph; got != 0 {
		t.Errorf("CurrentParagraph = %d, want 0", got)
	}
	if n := countRenders(f.backend, "only paragraph"); n != 1 {
		t.Errorf("renders = %d, want 1 (restart reuses the cached resource)", n)
	}
}

// TestSeekProgressRoundTrip verifies seek(p) lands on floor(p*total) and
// reading progress back is stable without further mutation.
func TestSeekProgressRoundTrip(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("a", "b", "c", "d", "e")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}

	for _, p := range []float64{0, 0.2, 0.5, 0.99, 1} {
		f.session.Seek(p)
		want := int(p * float64(doc.Total()))
		if want > doc.Total()-1 {
			want = doc.Total() - 1
		}
		first := f.session.Snapshot()
		if first.CurrentParagraph != want {
			t.Errorf("Seek(%v) index = %d, want %d", p, first.CurrentParagraph, want)
		}
		wantProgress := float64(want) / float64(doc.Total())
		if first.Progress != wantProgress {
			t.Errorf("Seek(%v) progress = %v, want %v", p, first.Progress, wantProgress)
		}
		if again := f.session.Snapshot(); again.Progress != first.Progress {
			t.Errorf("progress unstable across reads: %v then %v", first.Progress, again.Progress)
		}
	}
}

// TestSkipForwardAtLastParagraph verifies the forward skip is a no-op at
// the end of the document.
func TestSkipForwardAtLastParagraph(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("first", "last")

	if err := f.session.LoadBook(doc, 1); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 1
	})

	f.session.SkipForward(1)
	f.session.SkipForward(5)

	play, _, _, stop := f.out.Counts()
	if play != 1 || stop != 0 {
		t.Errorf("play/stop calls = %d/%d, want 1/0 (skip past the end must not restart)", play, stop)
	}
	if got := f.session.Snapshot().CurrentParagraph; got != 1 {
		t.Errorf("CurrentParagraph = %d, want 1", got)
	}
}

// TestSkipBackwardClampsToStart verifies backward skips clamp to paragraph
// zero and that a skip which lands on the current index does nothing.
func TestSkipBackwardClampsToStart(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("first", "second", "third")

	if err := f.session.LoadBook(doc, 2); err != nil {
		t.Fatal(err)
	}
	f.session.SkipBackward(10)

	waitFor(t, "playback after jump", func() bool {
		play, _, _, _ := f.out.Counts()
		return play >= 1
	})
	if got := f.session.Snapshot().CurrentParagraph; got != 0 {
		t.Errorf("CurrentParagraph = %d, want 0", got)
	}
	play, _, _, _ := f.out.Counts()

	f.session.SkipBackward(1)
	play2, _, _, _ := f.out.Counts()
	if play2 != play {
		t.Errorf("play calls after no-op skip = %d, want %d", play2, play)
	}
}

// TestOversizedParagraphFailsWithoutAdvancing verifies the size ceiling is
// reported and the position holds.
func TestOversizedParagraphFailsWithoutAdvancing(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument(strings.Repeat("x", 5000), "short")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}

	snap := f.session.Snapshot()
	if snap.ErrorMessage == "" {
		t.Error("ErrorMessage empty, want size-limit failure")
	}
	if snap.State != player.StatePaused {
		t.Errorf("State = %v, want paused", snap.State)
	}
	if snap.CurrentParagraph != 0 {
		t.Errorf("CurrentParagraph = %d, want 0 (no auto-advance past failures)", snap.CurrentParagraph)
	}
	if snap.IsSessionActive {
		t.Error("IsSessionActive = true, want false")
	}

	// An explicit skip moves past the bad paragraph.
	f.session.SkipForward(1)
	waitFor(t, "next paragraph playing", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 1
	})
	if got := f.session.Snapshot().ErrorMessage; got != "" {
		t.Errorf("ErrorMessage after skip = %q, want cleared", got)
	}
}

// TestRenderFailureSurfaces verifies a failed render pauses the session
// with a visible error instead of advancing.
func TestRenderFailureSurfaces(t *testing.T) {
	f := newRemoteFixture(t, mock.WithRenderError(errors.New("quota exhausted")))
	doc := testDocument("paragraph")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "failure to surface", func() bool {
		return f.session.Snapshot().ErrorMessage != ""
	})
	snap := f.session.Snapshot()
	if snap.State != player.StatePaused {
		t.Errorf("State = %v, want paused", snap.State)
	}
	if snap.CurrentParagraph != 0 {
		t.Errorf("CurrentParagraph = %d, want 0", snap.CurrentParagraph)
	}

	// Clearing the injected failure and replaying recovers.
	f.backend.SetRenderError(nil)
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "recovery", func() bool {
		return f.session.Snapshot().IsPlaying
	})
}

// TestPlayAfterFinishedRestarts verifies Play on a finished resource
// restarts the paragraph instead of resuming.
func TestPlayAfterFinishedRestarts(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("only")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 1
	})
	f.out.FinishCurrent()
	waitFor(t, "finished", func() bool {
		return f.session.Snapshot().State == player.StateFinished
	})

	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "restart", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 2
	})
	_, _, resume, _ := f.out.Counts()
	if resume != 0 {
		t.Errorf("resume calls = %d, want 0 (a drained resource restarts, never resumes)", resume)
	}
}

// TestLoadBookSameIDIsNoOp verifies reloading the active book keeps all
// state.
func TestLoadBookSameIDIsNoOp(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("first", "second")

	if err := f.session.LoadBook(doc, 1); err != nil {
		t.Fatal(err)
	}
	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if got := f.session.Snapshot().CurrentParagraph; got != 1 {
		t.Errorf("CurrentParagraph = %d, want 1 (same-book load must not reset)", got)
	}
}

// TestLoadBookReplacesState verifies switching books resets position, error
// and state wholesale.
func TestLoadBookReplacesState(t *testing.T) {
	f := newRemoteFixture(t)

	if err := f.session.LoadBook(testDocument("a", "b"), 1); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		return f.session.Snapshot().IsPlaying
	})

	other := player.Document{ID: "book2", Title: "Other", Paragraphs: []string{"x", "y", "z"}}
	if err := f.session.LoadBook(other, 2); err != nil {
		t.Fatal(err)
	}

	snap := f.session.Snapshot()
	if snap.State != player.StateIdle {
		t.Errorf("State = %v, want idle", snap.State)
	}
	if snap.CurrentParagraph != 2 {
		t.Errorf("CurrentParagraph = %d, want 2", snap.CurrentParagraph)
	}
	if snap.IsSessionActive {
		t.Error("IsSessionActive = true, want false")
	}
	_, _, _, stop := f.out.Counts()
	if stop == 0 {
		t.Error("output not stopped on book switch")
	}
}

// TestLoadBookEmpty verifies an empty document is rejected.
func TestLoadBookEmpty(t *testing.T) {
	f := newRemoteFixture(t)
	err := f.session.LoadBook(player.Document{ID: "empty"}, 0)
	if !errors.Is(err, player.ErrEmptyDocument) {
		t.Errorf("LoadBook() error = %v, want ErrEmptyDocument", err)
	}
}

// TestPlayWithoutDocument verifies controls without a book are rejected.
func TestPlayWithoutDocument(t *testing.T) {
	f := newRemoteFixture(t)
	if err := f.session.Play(); !errors.Is(err, player.ErrNoDocument) {
		t.Errorf("Play() error = %v, want ErrNoDocument", err)
	}
}

// TestRestorePosition verifies silent position restore: no playback, no
// persistence, out-of-range ignored.
func TestRestorePosition(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("a", "b", "c")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	saves := f.store.Calls()

	f.session.RestorePosition(2)
	if got := f.session.Snapshot().CurrentParagraph; got != 2 {
		t.Errorf("CurrentParagraph = %d, want 2", got)
	}
	if f.session.Snapshot().State != player.StateIdle {
		t.Error("restore must not start playback")
	}
	if f.store.Calls() != saves {
		t.Error("restore must not persist the position back")
	}

	f.session.RestorePosition(99)
	if got := f.session.Snapshot().CurrentParagraph; got != 2 {
		t.Errorf("CurrentParagraph after out-of-range restore = %d, want 2", got)
	}
}

// TestProgressPersistsOnAdvance verifies the position is saved when a
// paragraph completes.
func TestProgressPersistsOnAdvance(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("a", "b")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		play, _, _, _ := f.out.Counts()
		return play == 1
	})
	f.out.FinishCurrent()

	waitFor(t, "persisted advance", func() bool {
		idx, ok := f.store.Saved("book1")
		return ok && idx == 1
	})
}

// TestSetRateRemote verifies live rate changes reach the audio player,
// clamped to the supported range.
func TestSetRateRemote(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("paragraph")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		return f.session.Snapshot().IsPlaying
	})

	f.session.SetRate(2.0)
	if got := f.out.Rate(); got != 2.0 {
		t.Errorf("player rate = %v, want 2.0", got)
	}

	f.session.SetRate(99)
	if got := f.session.Rate(); got != player.MaxRate {
		t.Errorf("Rate() = %v, want %v", got, player.MaxRate)
	}
}

// TestHandleRemoteCommand verifies the 1:1 transport command mapping.
func TestHandleRemoteCommand(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("a", "b", "c")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}

	f.session.HandleRemoteCommand(player.CommandPlay)
	waitFor(t, "playing", func() bool {
		return f.session.Snapshot().IsPlaying
	})

	f.session.HandleRemoteCommand(player.CommandNext)
	waitFor(t, "skip forward", func() bool {
		return f.session.Snapshot().CurrentParagraph == 1
	})

	f.session.HandleRemoteCommand(player.CommandPrevious)
	waitFor(t, "skip backward", func() bool {
		return f.session.Snapshot().CurrentParagraph == 0
	})

	f.session.HandleRemoteCommand(player.CommandPause)
	if f.session.Snapshot().IsSessionActive {
		t.Error("IsSessionActive after pause command = true, want false")
	}
}

// TestCloseRejectsControls verifies controls after Close fail fast.
func TestCloseRejectsControls(t *testing.T) {
	f := newRemoteFixture(t)
	doc := testDocument("a")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.session.Play(); !errors.Is(err, player.ErrSessionClosed) {
		t.Errorf("Play() after close = %v, want ErrSessionClosed", err)
	}
	if err := f.session.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// TestNewSessionValidation verifies remote backends require their
// collaborators.
func TestNewSessionValidation(t *testing.T) {
	cfg := player.DefaultConfig()
	cfg.Engine = player.EngineMock

	if _, err := player.NewSession(cfg, player.Dependencies{}); err == nil {
		t.Error("NewSession() without backend = nil error")
	}
	if _, err := player.NewSession(cfg, player.Dependencies{Backend: mock.New(mock.WithRemote())}); err == nil {
		t.Error("NewSession() remote without cache and player = nil error")
	}
}

// localFixture bundles a session over the local mock backend; no cache or
// audio player is involved on this path.
type localFixture struct {
	session *player.Session
	backend *mock.Backend
}

func newLocalFixture(t *testing.T) *localFixture {
	t.Helper()
	b := mock.New()
	cfg := player.DefaultConfig()
	cfg.Engine = player.EngineMock
	s, err := player.NewSession(cfg, player.Dependencies{Backend: b})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return &localFixture{session: s, backend: b}
}

// TestLocalSpeakAndAdvance walks a two-paragraph book over the utterance
// path.
func TestLocalSpeakAndAdvance(t *testing.T) {
	f := newLocalFixture(t)
	doc := testDocument("first", "second")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first utterance", func() bool {
		return len(f.backend.Utterances()) == 1
	})
	waitFor(t, "playing", func() bool {
		return f.session.Snapshot().IsPlaying
	})

	f.backend.FinishUtterance()
	waitFor(t, "second utterance", func() bool {
		return len(f.backend.Utterances()) == 2
	})
	if got := f.session.Snapshot().CurrentParagraph; got != 1 {
		t.Errorf("CurrentParagraph = %d, want 1", got)
	}

	f.backend.FinishUtterance()
	waitFor(t, "finished", func() bool {
		return f.session.Snapshot().State == player.StateFinished
	})
}

// TestLocalPauseResume verifies pause and resume reach the utterance
// primitive without restarting it.
func TestLocalPauseResume(t *testing.T) {
	f := newLocalFixture(t)
	doc := testDocument("paragraph")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing", func() bool {
		return f.session.Snapshot().IsPlaying
	})

	if err := f.session.Pause(); err != nil {
		t.Fatal(err)
	}
	if got := f.session.Snapshot().State; got != player.StatePaused {
		t.Errorf("State = %v, want paused", got)
	}

	if err := f.session.Play(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playing again", func() bool {
		return f.session.Snapshot().IsPlaying
	})
	if got := len(f.backend.Utterances()); got != 1 {
		t.Errorf("utterances = %d, want 1 (resume must not restart)", got)
	}
}

// TestLocalSetRate verifies rate changes reach the local backend for the
// next utterance.
func TestLocalSetRate(t *testing.T) {
	f := newLocalFixture(t)
	doc := testDocument("paragraph")

	if err := f.session.LoadBook(doc, 0); err != nil {
		t.Fatal(err)
	}
	f.session.SetRate(1.5)
	if got := f.backend.Rate(); got != 1.5 {
		t.Errorf("backend rate = %v, want 1.5", got)
	}
}
