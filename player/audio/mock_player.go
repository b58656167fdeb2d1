package audio

import (
	"sync"

	"github.com/dgnsrekt/lectern/player"
)

// MockPlayer is an in-memory AudioPlayer for tests. It records every call
// and lets the test drive completion explicitly.
type MockPlayer struct {
	mu sync.Mutex

	playing bool
	paused  bool

	last   player.Resource
	rate   float64
	onDone func()

	playCount   int
	pauseCount  int
	resumeCount int
	stopCount   int

	playErr error

	played []player.Resource
}

// NewMockPlayer creates an idle mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Play implements player.AudioPlayer.
func (m *MockPlayer) Play(res player.Resource, rate float64, onDone func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.last = res
	m.rate = rate
	m.onDone = onDone
	m.playing = true
	m.paused = false
	m.playCount++
	m.played = append(m.played, res)
	return nil
}

// Pause implements player.AudioPlayer.
func (m *MockPlayer) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	m.pauseCount++
	return nil
}

// Resume implements player.AudioPlayer.
func (m *MockPlayer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	m.resumeCount++
	return nil
}

// Stop implements player.AudioPlayer. The stored onDone is dropped, like
// the real player discarding an undrained streamer.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	m.paused = false
	m.onDone = nil
	m.stopCount++
	return nil
}

// SetRate implements player.AudioPlayer.
func (m *MockPlayer) SetRate(rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
	return nil
}

// IsPlaying implements player.AudioPlayer.
func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing && !m.paused
}

// FinishCurrent simulates the current resource draining to its end, firing
// onDone exactly once.
func (m *MockPlayer) FinishCurrent() {
	m.mu.Lock()
	done := m.onDone
	m.onDone = nil
	m.playing = false
	m.mu.Unlock()
	if done != nil {
		done()
	}
}

// SetPlayError makes subsequent Play calls fail.
func (m *MockPlayer) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// Last returns the most recently played resource.
func (m *MockPlayer) Last() player.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Rate returns the most recent rate.
func (m *MockPlayer) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Counts returns play, pause, resume and stop call counts.
func (m *MockPlayer) Counts() (play, pause, resume, stop int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCount, m.pauseCount, m.resumeCount, m.stopCount
}

// Played returns every resource passed to Play, in order.
func (m *MockPlayer) Played() []player.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]player.Resource, len(m.played))
	copy(out, m.played)
	return out
}

var _ player.AudioPlayer = (*MockPlayer)(nil)
